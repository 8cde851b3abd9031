package approval

import (
	"fmt"
	"strings"
	"time"
)

// Gate validates and applies approve/reject actions against a [State].
//
// The gate is an optimistic pre-check only. The backend re-validates every
// transition, and its answer always overrides the state computed here.
//
// Transitions:
//   - Pending(i) --approve--> Pending(i+1) when i < N-1
//   - Pending(N-1) --approve--> Approved
//   - Pending(i) --reject--> Rejected(i)
//
// Approved and Rejected are terminal.
type Gate struct {
	now func() time.Time
}

// GateOption configures a [Gate].
type GateOption func(*Gate)

// WithClock sets the clock used to timestamp history records.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// NewGate creates a [Gate]. Records are timestamped with [time.Now] unless
// [WithClock] is given.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CanApprove reports whether any decision may still be taken on s.
// It is true iff s is Pending.
func (g *Gate) CanApprove(s State) bool {
	return s.Status == OutcomePending
}

// ApplyApprove records an approval at the current stage.
//
// Returns [ErrInvalidTransition] if s is terminal and [ErrInvalidState] if s
// does not satisfy def. On the last stage the chain becomes Approved;
// otherwise CurrentStage advances by one and the chain stays Pending.
func (g *Gate) ApplyApprove(def StageDefinition, s State, approverName string) (State, error) {
	if !g.CanApprove(s) {
		return State{}, fmt.Errorf("%w: cannot approve, status is %s", ErrInvalidTransition, s.Status)
	}
	if err := s.Validate(def); err != nil {
		return State{}, err
	}

	next := s.Clone()
	next.History = append(next.History, StageRecord{
		StageIndex:   s.CurrentStage,
		Outcome:      OutcomeApproved,
		ApproverName: approverName,
		Timestamp:    g.now(),
	})

	if s.CurrentStage == def.LastIndex() {
		next.Status = OutcomeApproved
	} else {
		next.CurrentStage = s.CurrentStage + 1
	}
	return next, nil
}

// ApplyReject records a rejection at the current stage and ends the chain.
//
// Returns [ErrInvalidTransition] if s is terminal and [ErrMissingComment] if
// comments is blank.
func (g *Gate) ApplyReject(s State, approverName, comments string) (State, error) {
	if !g.CanApprove(s) {
		return State{}, fmt.Errorf("%w: cannot reject, status is %s", ErrInvalidTransition, s.Status)
	}
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return State{}, fmt.Errorf("%w: stage %d", ErrMissingComment, s.CurrentStage)
	}

	next := s.Clone()
	next.History = append(next.History, StageRecord{
		StageIndex:   s.CurrentStage,
		Outcome:      OutcomeRejected,
		ApproverName: approverName,
		Comments:     comments,
		Timestamp:    g.now(),
	})
	next.Status = OutcomeRejected
	return next, nil
}

// defaultGate backs the package-level functions.
var defaultGate = NewGate()

// CanApprove reports whether s is still Pending, using the default gate.
func CanApprove(s State) bool {
	return defaultGate.CanApprove(s)
}

// ApplyApprove applies an approval using the default gate.
// See [Gate.ApplyApprove].
func ApplyApprove(def StageDefinition, s State, approverName string) (State, error) {
	return defaultGate.ApplyApprove(def, s, approverName)
}

// ApplyReject applies a rejection using the default gate.
// See [Gate.ApplyReject].
func ApplyReject(s State, approverName, comments string) (State, error) {
	return defaultGate.ApplyReject(s, approverName, comments)
}
