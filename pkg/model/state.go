package model

// PhaseState is the lifecycle state of one platform sync phase.
type PhaseState string

const (
	PhaseIdle                PhaseState = "IDLE"
	PhaseEnumeratingRemote   PhaseState = "ENUMERATING_REMOTE"
	PhaseFilteringCandidates PhaseState = "FILTERING_CANDIDATES"
	PhaseFetching            PhaseState = "FETCHING"
	PhaseWriting             PhaseState = "WRITING"
	PhaseReconciling         PhaseState = "RECONCILING"
	PhaseAborted             PhaseState = "ABORTED"
)

// String returns the string representation of the phase state.
func (s PhaseState) String() string {
	return string(s)
}

// IsTerminal returns true if the phase has finished, successfully or not.
func (s PhaseState) IsTerminal() bool {
	return s == PhaseIdle || s == PhaseAborted
}

// ValidPhaseTransitions defines the allowed state transitions for a phase.
// A candidate that is skipped or fails goes straight back to filtering the
// next one; the last candidate returns the phase to idle.
var ValidPhaseTransitions = map[PhaseState][]PhaseState{
	PhaseIdle:                {PhaseEnumeratingRemote, PhaseAborted},
	PhaseEnumeratingRemote:   {PhaseFilteringCandidates, PhaseIdle, PhaseAborted},
	PhaseFilteringCandidates: {PhaseFilteringCandidates, PhaseFetching, PhaseIdle, PhaseAborted},
	PhaseFetching:            {PhaseWriting, PhaseReconciling, PhaseAborted},
	PhaseWriting:             {PhaseReconciling, PhaseAborted},
	PhaseReconciling:         {PhaseFilteringCandidates, PhaseIdle, PhaseAborted},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s PhaseState) CanTransitionTo(next PhaseState) bool {
	for _, allowed := range ValidPhaseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
