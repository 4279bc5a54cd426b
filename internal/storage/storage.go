// Package storage defines the run ledger that records every run outcome.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/morganross/FilePromptForge/internal/domain"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID           string
	Provider     string
	Model        string
	Status       string
	Method       string
	ErrorKind    string
	ErrorMessage string
	Stage        string
	OutputPath   string
	SidecarPath  string
	LogPath      string
	InputTokens  int
	OutputTokens int
	TotalCostUSD *float64
	StartedAt    time.Time
	FinishedAt   time.Time
}

// ListOptions filters ListRuns. Zero values match everything.
type ListOptions struct {
	Provider string
	Status   string
	Limit    int
	Offset   int
}

// RunStore persists run records.
type RunStore interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, opts ListOptions) ([]*RunRecord, error)
	Close() error
}

// DefaultListLimit applies when ListOptions.Limit is zero.
const DefaultListLimit = 20

// RecordFromOutcome flattens a run outcome into a ledger record.
func RecordFromOutcome(o *domain.RunOutcome) *RunRecord {
	rec := &RunRecord{
		ID:          o.RunID,
		Provider:    string(o.Provider),
		Model:       o.Model,
		OutputPath:  o.OutputPath,
		SidecarPath: o.SidecarPath,
		LogPath:     o.LogPath,
		StartedAt:   parseTime(o.StartedAt),
		FinishedAt:  parseTime(o.FinishedAt),
	}

	if o.Succeeded() {
		rec.Status = StatusSucceeded
		rec.Method = string(o.Result.Method)
	} else {
		rec.Status = StatusFailed
		if o.Failure != nil {
			rec.Method = string(o.Failure.Method)
			rec.ErrorKind = string(o.Failure.Error.Type)
			rec.ErrorMessage = o.Failure.Error.Message
			rec.Stage = o.Failure.Stage
		}
	}

	if o.Usage != nil {
		rec.InputTokens = o.Usage.InputTokens
		rec.OutputTokens = o.Usage.OutputTokens
	}
	if o.Cost != nil {
		rec.TotalCostUSD = o.Cost.TotalCost
	}
	return rec
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
