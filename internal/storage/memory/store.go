package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/morganross/FilePromptForge/internal/storage"
)

// Store is an in-memory implementation of RunStore
type Store struct {
	mu   sync.RWMutex
	runs map[string]*storage.RunRecord
}

var _ storage.RunStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		runs: make(map[string]*storage.RunRecord),
	}
}

func (s *Store) SaveRun(ctx context.Context, rec *storage.RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("run id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.runs[rec.ID] = &cp
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*storage.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run %s: %w", id, storage.ErrNotFound)
	}

	cp := *rec
	return &cp, nil
}

func (s *Store) ListRuns(ctx context.Context, opts storage.ListOptions) ([]*storage.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.RunRecord
	for _, rec := range s.runs {
		if opts.Provider != "" && rec.Provider != opts.Provider {
			continue
		}
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		cp := *rec
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	limit := opts.Limit
	if limit == 0 {
		limit = storage.DefaultListLimit
	}
	if opts.Offset >= len(result) {
		return nil, nil
	}
	result = result[opts.Offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) Close() error {
	return nil
}
