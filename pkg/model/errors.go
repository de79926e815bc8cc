package model

import (
	"errors"
	"fmt"
)

// Phase-level failures. These abort the phase for one platform.
var (
	// ErrAuthFailed indicates the login gate rejected the credentials.
	ErrAuthFailed = errors.New("invalid handle/password")

	// ErrEnumeration indicates the remote listing returned a non-success status.
	ErrEnumeration = errors.New("error getting submission info")

	// ErrInterrupted indicates the phase was cancelled by the operator.
	ErrInterrupted = errors.New("interrupted")
)

// Per-candidate failures. These are recorded in the error set.
var (
	// ErrSourceNotFound indicates the source element was missing from the page.
	ErrSourceNotFound = errors.New("source code fetch failed")

	// ErrEmptySource indicates the fetched source was empty after normalization.
	ErrEmptySource = errors.New("empty source")

	// ErrExtraction indicates the source could not be located in the page markup.
	ErrExtraction = errors.New("source extraction failed")
)

// PhaseError wraps a failure that ended a platform phase.
type PhaseError struct {
	Platform Platform
	Stage    PhaseState
	Err      error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed during %s: %v", e.Platform, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// IsPhaseError reports whether err ended a phase.
func IsPhaseError(err error) bool {
	var pe *PhaseError
	return errors.As(err, &pe)
}
