// ABOUTME: SQLite-backed record of summary runs and of URLs whose summaries have been shown.
// ABOUTME: Serves run snapshots after the in-memory event log is gone and cached summaries by URL.

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// timeFormat is fixed-width so stored timestamps sort as strings.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord is one summary run.
type RunRecord struct {
	ID           string
	Status       string
	Task         string
	Model        string
	ModelLabel   string
	InputSummary string
	SourceURL    string
	Text         string
	Metrics      string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is the SQLite run history. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			task TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			model_label TEXT NOT NULL DEFAULT '',
			input_summary TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			metrics TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS runs_source_url ON runs(source_url, updated_at);

		CREATE TABLE IF NOT EXISTS seen_urls (
			url TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			seen_at TEXT NOT NULL
		);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces a run record. CreatedAt is kept from the first
// save; UpdatedAt is set to now.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, status, task, model, model_label, input_summary, source_url, text, metrics, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			model = excluded.model,
			model_label = excluded.model_label,
			input_summary = excluded.input_summary,
			text = excluded.text,
			metrics = excluded.metrics,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Status, rec.Task, rec.Model, rec.ModelLabel, rec.InputSummary, rec.SourceURL,
		rec.Text, rec.Metrics, rec.Error,
		rec.CreatedAt.UTC().Format(timeFormat), now.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return nil
}

const runColumns = `run_id, status, task, model, model_label, input_summary, source_url, text, metrics, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var rec RunRecord
	var created, updated string
	if err := row.Scan(&rec.ID, &rec.Status, &rec.Task, &rec.Model, &rec.ModelLabel, &rec.InputSummary,
		&rec.SourceURL, &rec.Text, &rec.Metrics, &rec.Error, &created, &updated); err != nil {
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(timeFormat, created)
	rec.UpdatedAt, _ = time.Parse(timeFormat, updated)
	return &rec, nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns the most recently updated runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// LatestForURL returns the newest completed run for a source URL, or
// ErrNotFound.
func (s *Store) LatestForURL(ctx context.Context, url string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE source_url = ? AND status = ? ORDER BY updated_at DESC LIMIT 1`,
		url, StatusCompleted)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run for %s: %w", url, err)
	}
	return rec, nil
}

// MarkSeen records that a summary of url was shown. Later marks overwrite
// the run id.
func (s *Store) MarkSeen(ctx context.Context, url, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seen_urls (url, run_id, seen_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET run_id = excluded.run_id, seen_at = excluded.seen_at`,
		url, runID, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("mark seen %s: %w", url, err)
	}
	return nil
}

// Seen reports whether url has been marked seen.
func (s *Store) Seen(ctx context.Context, url string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_urls WHERE url = ?`, url).Scan(&n); err != nil {
		return false, fmt.Errorf("check seen %s: %w", url, err)
	}
	return n > 0, nil
}

// MarkInterrupted flips runs left in the running state by a previous
// process to cancelled and returns how many were changed.
func (s *Store) MarkInterrupted(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = 'interrupted', updated_at = ? WHERE status = ?`,
		StatusCancelled, time.Now().UTC().Format(timeFormat), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
