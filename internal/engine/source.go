package engine

import (
	"context"

	"github.com/me/cpsync/pkg/model"
)

// Payload is what a Source returns for one fetched submission.
type Payload struct {
	// Text is the raw fetched text, before Normalize.
	Text string

	// Record optionally replaces the enumerated record once the fetch has
	// learned more about it (SPOJ only knows the language after reading
	// the edit page).
	Record model.Record
}

// Source is one platform's remote side of a phase.
type Source interface {
	Platform() model.Platform
	Handle() string

	// Authenticate is the login gate. It returns model.ErrAuthFailed when
	// the credentials are rejected. Sources that need no login return nil.
	Authenticate(ctx context.Context) error

	// Enumerate lists every candidate submission.
	Enumerate(ctx context.Context) ([]model.Record, error)

	// Fetch retrieves the raw source text of one candidate.
	Fetch(ctx context.Context, rec model.Record) (Payload, error)

	// Normalize turns fetched text into the file contents to write.
	Normalize(raw string) (string, error)

	// Repeatable reports whether the operator may re-run the phase when
	// some candidates failed.
	Repeatable() bool
}

// Confirmer asks the operator whether to repeat a phase. It must return
// promptly once ctx is done.
type Confirmer interface {
	ConfirmRepeat(ctx context.Context, platform model.Platform, failed []string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, platform model.Platform, failed []string) bool

func (f ConfirmFunc) ConfirmRepeat(ctx context.Context, platform model.Platform, failed []string) bool {
	return f(ctx, platform, failed)
}

// Recorder receives a journal of each phase. Implementations must not
// block the engine on failure; errors are logged and ignored.
type Recorder interface {
	StartRun(ctx context.Context, runID string, platform model.Platform, handle string) error
	RecordOutcome(ctx context.Context, runID string, o model.Outcome) error
	FinishRun(ctx context.Context, runID string, res *PhaseResult, phaseErr error) error
}
