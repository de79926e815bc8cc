package model

// OutcomeStatus classifies what happened to one candidate submission.
type OutcomeStatus string

const (
	OutcomeWritten OutcomeStatus = "WRITTEN"
	OutcomeSkipped OutcomeStatus = "SKIPPED"
	OutcomeFailed  OutcomeStatus = "FAILED"
)

// SkipReason says why a candidate was not fetched.
type SkipReason string

const (
	SkipAlreadyDownloaded SkipReason = "already-downloaded"
	SkipExcluded          SkipReason = "excluded"
	SkipVerdict           SkipReason = "verdict"
)

// Outcome is the result of processing one candidate.
type Outcome struct {
	Record Record
	Status OutcomeStatus
	Skip   SkipReason // set when Status is OutcomeSkipped
	Path   string     // set when Status is OutcomeWritten
	Err    error      // set when Status is OutcomeFailed
}

// Written returns a success outcome for rec written to path.
func Written(rec Record, path string) Outcome {
	return Outcome{Record: rec, Status: OutcomeWritten, Path: path}
}

// Skipped returns a skip outcome.
func Skipped(rec Record, reason SkipReason) Outcome {
	return Outcome{Record: rec, Status: OutcomeSkipped, Skip: reason}
}

// Failed returns a soft-failure outcome.
func Failed(rec Record, err error) Outcome {
	return Outcome{Record: rec, Status: OutcomeFailed, Err: err}
}

// Reason returns a short human-readable cause for a skip or failure.
func (o Outcome) Reason() string {
	switch o.Status {
	case OutcomeSkipped:
		return string(o.Skip)
	case OutcomeFailed:
		if o.Err != nil {
			return o.Err.Error()
		}
		return "failed"
	}
	return ""
}
