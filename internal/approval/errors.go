package approval

import "errors"

// Sentinel errors for approval validation.
//
// All four are local, synchronous validation failures. They are always returned
// wrapped with context, so callers must match them with [errors.Is].
var (
	// ErrInvalidConfiguration indicates an unusable [StageDefinition], such as
	// an empty stage list or duplicate stage names.
	ErrInvalidConfiguration = errors.New("invalid stage configuration")

	// ErrInvalidState indicates a malformed [State]: an out-of-range stage
	// index, an unknown outcome, or a history that contradicts the status.
	ErrInvalidState = errors.New("invalid approval state")

	// ErrInvalidTransition indicates an approve or reject attempted on a
	// terminal (Approved or Rejected) state.
	ErrInvalidTransition = errors.New("invalid approval transition")

	// ErrMissingComment indicates a rejection without an explanation.
	ErrMissingComment = errors.New("rejection requires comments")
)
