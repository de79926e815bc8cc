package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/me/cpsync/internal/engine"
	"github.com/me/cpsync/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// --- engine.Recorder ---

func (s *SQLiteStore) StartRun(ctx context.Context, runID string, platform model.Platform, handle string) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", runID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, platform, handle, state, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(platform), handle, string(model.PhaseIdle), formatTime(time.Now()),
	)
	return err
}

func (s *SQLiteStore) RecordOutcome(ctx context.Context, runID string, o model.Outcome) error {
	s.logger.Debug("sql", "op", "insert", "table", "outcomes", "run_id", runID, "problem", o.Record.ProblemKey())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, seq, problem_key, submission_id, status, reason, path, created_at)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM outcomes WHERE run_id = ?), ?, ?, ?, ?, ?, ?)`,
		runID, runID, o.Record.ProblemKey(), o.Record.ID(), string(o.Status), o.Reason(), o.Path, formatTime(time.Now()),
	)
	return err
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, res *engine.PhaseResult, phaseErr error) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", runID)
	errText := ""
	if phaseErr != nil {
		errText = phaseErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, written = ?, skipped = ?, failed = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(res.State), res.Written, res.Skipped, len(res.Failed), errText, formatTime(time.Now()), runID,
	)
	return err
}

// --- Queries ---

const runColumns = `id, platform, handle, state, written, skipped, failed, error, started_at, finished_at`

func scanRun(sc interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var platform, state, startedAt string
	var finishedAt *string
	if err := sc.Scan(&r.ID, &platform, &r.Handle, &state, &r.Written, &r.Skipped, &r.Failed, &r.Error, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.Platform = model.Platform(platform)
	r.State = model.PhaseState(state)
	r.StartedAt = parseTime(startedAt)
	if finishedAt != nil {
		t := parseTime(*finishedAt)
		r.FinishedAt = &t
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", limit)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a run by id, or nil if it does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListOutcomes returns a run's outcomes in the order they were recorded.
func (s *SQLiteStore) ListOutcomes(ctx context.Context, runID string) ([]*OutcomeRow, error) {
	s.logger.Debug("sql", "op", "list", "table", "outcomes", "run_id", runID)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, problem_key, submission_id, status, reason, path, created_at
		 FROM outcomes WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*OutcomeRow
	for rows.Next() {
		var o OutcomeRow
		var status, createdAt string
		if err := rows.Scan(&o.RunID, &o.ProblemKey, &o.SubmissionID, &status, &o.Reason, &o.Path, &createdAt); err != nil {
			return nil, err
		}
		o.Status = model.OutcomeStatus(status)
		o.CreatedAt = parseTime(createdAt)
		out = append(out, &o)
	}
	return out, rows.Err()
}
