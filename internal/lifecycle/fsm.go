// Package lifecycle implements the per-entry BuildJob state machine.
package lifecycle

import (
	"fmt"
	"slices"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Transition table: from -> allowed tos
var validTransitions = map[types.JobState][]types.JobState{
	types.JobQueued:          {types.JobManifestWritten, types.JobIOError},
	types.JobManifestWritten: {types.JobCompiling, types.JobIOError},
	types.JobCompiling:       {types.JobSuccess, types.JobTimeout, types.JobCompilerError, types.JobIOError},
	types.JobSuccess:         {types.JobLogged},
	types.JobTimeout:         {types.JobLogged},
	types.JobCompilerError:   {types.JobLogged},
	types.JobIOError:         {types.JobLogged},
	types.JobLogged:          {},
}

// CanTransition checks if moving a job from one state to another is valid.
func CanTransition(from, to types.JobState) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Transition validates a state change, returning an error if it is not allowed.
func Transition(from, to types.JobState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// Advance applies a transition to job in place.
func Advance(job *types.BuildJob, to types.JobState) error {
	if err := Transition(job.State, to); err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	job.State = to
	return nil
}

// IsTerminal returns true once the job's record has been logged.
func IsTerminal(state types.JobState) bool {
	return state == types.JobLogged
}

// OutcomeState maps an attempt outcome to the state that records it.
func OutcomeState(o types.Outcome) types.JobState {
	switch o {
	case types.OutcomeSuccess:
		return types.JobSuccess
	case types.OutcomeTimeout:
		return types.JobTimeout
	case types.OutcomeCompilerError:
		return types.JobCompilerError
	default:
		return types.JobIOError
	}
}
