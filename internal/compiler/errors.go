package compiler

import (
	"fmt"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Error reports a compiler invocation that did not succeed. Outcome
// distinguishes timeouts, compiler errors and I/O failures.
type Error struct {
	Outcome  types.Outcome
	ExitCode int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	switch e.Outcome {
	case types.OutcomeTimeout:
		return "compiler timed out: " + e.Message
	case types.OutcomeCompilerError:
		return fmt.Sprintf("compiler exited with code %d: %s", e.ExitCode, e.Message)
	default:
		return "compiler invocation failed: " + e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }
