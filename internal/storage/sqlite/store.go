package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/morganross/FilePromptForge/internal/storage"
)

// Store is a SQLite implementation of RunStore
type Store struct {
	db *sql.DB
}

var _ storage.RunStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			status TEXT NOT NULL,
			method TEXT,
			error_kind TEXT,
			error_message TEXT,
			stage TEXT,
			output_path TEXT,
			sidecar_path TEXT,
			log_path TEXT,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			total_cost_usd REAL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_provider ON runs(provider)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveRun(ctx context.Context, rec *storage.RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("run id is required")
	}

	query := `INSERT INTO runs (id, provider, model, status, method, error_kind, error_message, stage,
	              output_path, sidecar_path, log_path, input_tokens, output_tokens, total_cost_usd,
	              started_at, finished_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	              status = excluded.status,
	              method = excluded.method,
	              error_kind = excluded.error_kind,
	              error_message = excluded.error_message,
	              stage = excluded.stage,
	              output_path = excluded.output_path,
	              sidecar_path = excluded.sidecar_path,
	              log_path = excluded.log_path,
	              input_tokens = excluded.input_tokens,
	              output_tokens = excluded.output_tokens,
	              total_cost_usd = excluded.total_cost_usd,
	              finished_at = excluded.finished_at`

	var cost sql.NullFloat64
	if rec.TotalCostUSD != nil {
		cost = sql.NullFloat64{Float64: *rec.TotalCostUSD, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Provider, rec.Model, rec.Status, rec.Method, rec.ErrorKind, rec.ErrorMessage, rec.Stage,
		rec.OutputPath, rec.SidecarPath, rec.LogPath, rec.InputTokens, rec.OutputTokens, cost,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

const selectRun = `SELECT id, provider, model, status, method, error_kind, error_message, stage,
	output_path, sidecar_path, log_path, input_tokens, output_tokens, total_cost_usd,
	started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*storage.RunRecord, error) {
	var rec storage.RunRecord
	var method, kind, msg, stage, out, sidecar, logPath sql.NullString
	var cost sql.NullFloat64

	if err := row.Scan(&rec.ID, &rec.Provider, &rec.Model, &rec.Status, &method, &kind, &msg, &stage,
		&out, &sidecar, &logPath, &rec.InputTokens, &rec.OutputTokens, &cost,
		&rec.StartedAt, &rec.FinishedAt); err != nil {
		return nil, err
	}

	rec.Method = method.String
	rec.ErrorKind = kind.String
	rec.ErrorMessage = msg.String
	rec.Stage = stage.String
	rec.OutputPath = out.String
	rec.SidecarPath = sidecar.String
	rec.LogPath = logPath.String
	if cost.Valid {
		v := cost.Float64
		rec.TotalCostUSD = &v
	}
	return &rec, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*storage.RunRecord, error) {
	rec, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

func (s *Store) ListRuns(ctx context.Context, opts storage.ListOptions) ([]*storage.RunRecord, error) {
	query := selectRun + ` WHERE (? = '' OR provider = ?) AND (? = '' OR status = ?)
	          ORDER BY started_at DESC, id DESC
	          LIMIT ? OFFSET ?`

	limit := opts.Limit
	if limit == 0 {
		limit = storage.DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, query,
		opts.Provider, opts.Provider, opts.Status, opts.Status, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*storage.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}

	return runs, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
