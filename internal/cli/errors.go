package cli

import (
	"errors"
	"fmt"
)

// ExitError carries the process exit code out of a Cobra RunE function.
//
// Commands print their own error message and return NewExitError(code);
// [run] turns it into an [ExecuteResult] and only [Execute] calls os.Exit.
//
// Codes used by clubflow:
//   - 1: the command failed (bad input, refused transition, backend error)
//   - 2: the decision was accepted but the backend settled on another state
type ExitError struct {
	Code int
}

// Error returns "exit status N", the same text os/exec uses.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError reports whether err is, or wraps, an [ExitError] and returns its code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
