package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all history tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		platform    TEXT NOT NULL,
		handle      TEXT NOT NULL,
		state       TEXT NOT NULL DEFAULT 'IDLE',
		written     INTEGER NOT NULL DEFAULT 0,
		skipped     INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		started_at  TEXT NOT NULL,
		finished_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS outcomes (
		run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq           INTEGER NOT NULL,
		problem_key   TEXT NOT NULL,
		submission_id TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		reason        TEXT NOT NULL DEFAULT '',
		path          TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_platform_handle ON runs(platform, handle)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_outcomes_problem_key ON outcomes(problem_key)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
