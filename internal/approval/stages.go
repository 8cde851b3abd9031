// Package approval models a fixed-length sequential approval chain.
//
// Proposals and venue bookings pass through an ordered list of stages
// (Club, Faculty Advisor, Student Council, Student Welfare, Security). The
// backend owns the authoritative state; this package only validates it,
// projects it into a render model and computes optimistic transitions.
//
// Key types:
//   - [StageDefinition] is the ordered, named list of stages
//   - [State] is the approval state of one subject
//   - [StageView] is one entry of the render model produced by [Project]
//   - [Gate] validates and applies approve/reject actions
//
// Everything in this package is pure and synchronous. Inputs are never
// mutated; every operation returns a new value or an error.
package approval

import (
	"fmt"
	"strings"
)

// DefaultStageNames is the university approval chain used for both proposals
// and venue bookings.
var DefaultStageNames = []string{
	"Club",
	"Faculty Advisor",
	"Student Council",
	"Student Welfare",
	"Security",
}

// StageDefinition is an ordered list of unique stage names.
//
// Order is significant: earlier stages must complete before later ones. A
// definition is immutable once built; use [NewStageDefinition] or
// [DefaultStages] to obtain one. The zero value has no stages and is rejected
// by every operation with [ErrInvalidConfiguration].
type StageDefinition struct {
	names []string
}

// NewStageDefinition builds a [StageDefinition] from the given names.
//
// Names are trimmed. Returns [ErrInvalidConfiguration] if the list is empty,
// a name is blank, or a name appears twice.
func NewStageDefinition(names ...string) (StageDefinition, error) {
	if len(names) == 0 {
		return StageDefinition{}, fmt.Errorf("%w: no stages defined", ErrInvalidConfiguration)
	}

	seen := make(map[string]bool, len(names))
	cleaned := make([]string, len(names))
	for i, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return StageDefinition{}, fmt.Errorf("%w: stage %d has no name", ErrInvalidConfiguration, i)
		}
		if seen[n] {
			return StageDefinition{}, fmt.Errorf("%w: duplicate stage %q", ErrInvalidConfiguration, n)
		}
		seen[n] = true
		cleaned[i] = n
	}

	return StageDefinition{names: cleaned}, nil
}

// MustStageDefinition is like [NewStageDefinition] but panics on error.
// Intended for package-level definitions built from literals.
func MustStageDefinition(names ...string) StageDefinition {
	d, err := NewStageDefinition(names...)
	if err != nil {
		panic(err)
	}
	return d
}

// DefaultStages returns the five-stage university chain.
func DefaultStages() StageDefinition {
	return MustStageDefinition(DefaultStageNames...)
}

// Len returns the number of stages.
func (d StageDefinition) Len() int {
	return len(d.names)
}

// Name returns the name of stage i, or "" if i is out of range.
func (d StageDefinition) Name(i int) string {
	if i < 0 || i >= len(d.names) {
		return ""
	}
	return d.names[i]
}

// Names returns a copy of the stage names in order.
func (d StageDefinition) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Index returns the position of the named stage.
func (d StageDefinition) Index(name string) (int, bool) {
	for i, n := range d.names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// LastIndex returns the index of the final stage, or -1 for an empty definition.
func (d StageDefinition) LastIndex() int {
	return len(d.names) - 1
}

func (d StageDefinition) validate() error {
	if len(d.names) == 0 {
		return fmt.Errorf("%w: no stages defined", ErrInvalidConfiguration)
	}
	return nil
}
