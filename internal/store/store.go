package store

import (
	"context"
	"time"

	"github.com/me/cpsync/internal/engine"
	"github.com/me/cpsync/pkg/model"
)

// Run is one recorded sync phase.
type Run struct {
	ID         string
	Platform   model.Platform
	Handle     string
	State      model.PhaseState
	Written    int
	Skipped    int
	Failed     int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// OutcomeRow is one recorded candidate outcome.
type OutcomeRow struct {
	RunID        string
	ProblemKey   string
	SubmissionID string
	Status       model.OutcomeStatus
	Reason       string
	Path         string
	CreatedAt    time.Time
}

// Store defines the persistence layer for sync history.
type Store interface {
	engine.Recorder

	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListOutcomes(ctx context.Context, runID string) ([]*OutcomeRow, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
