package approval

import (
	"fmt"
	"time"
)

// Outcome is the status of a whole approval chain or of a single stage record.
type Outcome int

const (
	// OutcomePending means no decision has been made yet.
	OutcomePending Outcome = iota

	// OutcomeApproved means the stage (or the whole chain) was approved.
	OutcomeApproved

	// OutcomeRejected means the stage (or the whole chain) was rejected.
	OutcomeRejected
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeApproved:
		return "approved"
	case OutcomeRejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// IsValid returns true for the three known outcomes.
func (o Outcome) IsValid() bool {
	return o >= OutcomePending && o <= OutcomeRejected
}

// IsTerminal returns true for Approved and Rejected.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeApproved || o == OutcomeRejected
}

// StageRecord is one decision in an approval history.
type StageRecord struct {
	// StageIndex is the 0-based index of the stage the decision was made at.
	StageIndex int

	// Outcome is the decision taken.
	Outcome Outcome

	// ApproverName is the display name of the person who decided.
	ApproverName string

	// Comments explains the decision. Required for rejections.
	Comments string

	// Timestamp is when the decision was recorded.
	Timestamp time.Time
}

// State is the approval state of one subject (a proposal or a booking).
//
// CurrentStage is meaningful while Status is Pending (the stage awaiting a
// decision) and when Status is Rejected (the stage that rejected). It is
// ignored once Status is Approved.
//
// The backend is the sole authority over State. Values computed locally by
// [Gate] are optimistic and must be replaced by the server's answer.
type State struct {
	Status       Outcome
	CurrentStage int
	History      []StageRecord
}

// NewState returns the state of a freshly submitted subject: Pending at
// stage 0 with an empty history.
func NewState() State {
	return State{Status: OutcomePending}
}

// IsTerminal returns true once the chain has been approved or rejected.
func (s State) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	if s.History != nil {
		c.History = make([]StageRecord, len(s.History))
		copy(c.History, s.History)
	}
	return c
}

// Validate checks s against the invariants of def.
//
// Returns [ErrInvalidConfiguration] for an empty definition and
// [ErrInvalidState] when:
//   - the status is not a known outcome
//   - CurrentStage is out of range while Pending or Rejected
//   - a history record names an unknown stage or outcome
//   - a record below CurrentStage is not an approval
//   - an approval is recorded at or beyond CurrentStage of an unfinished chain
//   - more than one rejection is recorded, or a rejection disagrees with the status
//   - the status is Approved but some stage has no approval
func (s State) Validate(def StageDefinition) error {
	if err := def.validate(); err != nil {
		return err
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %d", ErrInvalidState, int(s.Status))
	}

	n := def.Len()
	if s.Status != OutcomeApproved && (s.CurrentStage < 0 || s.CurrentStage >= n) {
		return fmt.Errorf("%w: current stage %d out of range [0,%d)", ErrInvalidState, s.CurrentStage, n)
	}

	rejectedAt := -1
	approved := make([]bool, n)
	for i, r := range s.History {
		if r.StageIndex < 0 || r.StageIndex >= n {
			return fmt.Errorf("%w: history[%d] stage %d out of range [0,%d)", ErrInvalidState, i, r.StageIndex, n)
		}
		if !r.Outcome.IsValid() {
			return fmt.Errorf("%w: history[%d] has unknown outcome %d", ErrInvalidState, i, int(r.Outcome))
		}

		unfinished := s.Status != OutcomeApproved
		if unfinished && r.StageIndex < s.CurrentStage && r.Outcome != OutcomeApproved {
			return fmt.Errorf("%w: history[%d] stage %d is %s but precedes current stage %d",
				ErrInvalidState, i, r.StageIndex, r.Outcome, s.CurrentStage)
		}

		switch r.Outcome {
		case OutcomeApproved:
			if unfinished && r.StageIndex >= s.CurrentStage {
				return fmt.Errorf("%w: history[%d] approves stage %d at or beyond current stage %d",
					ErrInvalidState, i, r.StageIndex, s.CurrentStage)
			}
			approved[r.StageIndex] = true
		case OutcomeRejected:
			if rejectedAt >= 0 {
				return fmt.Errorf("%w: more than one rejection recorded", ErrInvalidState)
			}
			rejectedAt = r.StageIndex
		}
	}

	if rejectedAt >= 0 {
		if s.Status != OutcomeRejected {
			return fmt.Errorf("%w: rejection recorded but status is %s", ErrInvalidState, s.Status)
		}
		if rejectedAt != s.CurrentStage {
			return fmt.Errorf("%w: rejection recorded at stage %d but current stage is %d",
				ErrInvalidState, rejectedAt, s.CurrentStage)
		}
	}

	if s.Status == OutcomeApproved {
		for i, ok := range approved {
			if !ok {
				return fmt.Errorf("%w: status is approved but stage %d (%s) has no approval",
					ErrInvalidState, i, def.Name(i))
			}
		}
	}

	return nil
}

// CheckAdvance verifies that next is a legal successor observation of prev.
//
// The current stage never decreases while a chain is unfinished, and a
// terminal state never changes. Returns [ErrInvalidState] describing the
// first violation found.
func CheckAdvance(prev, next State) error {
	if prev.IsTerminal() {
		if next.Status != prev.Status {
			return fmt.Errorf("%w: terminal status changed from %s to %s", ErrInvalidState, prev.Status, next.Status)
		}
		if prev.Status == OutcomeRejected && next.CurrentStage != prev.CurrentStage {
			return fmt.Errorf("%w: rejected stage changed from %d to %d", ErrInvalidState, prev.CurrentStage, next.CurrentStage)
		}
		return nil
	}

	if next.Status != OutcomeApproved && next.CurrentStage < prev.CurrentStage {
		return fmt.Errorf("%w: stage regressed from %d to %d", ErrInvalidState, prev.CurrentStage, next.CurrentStage)
	}
	return nil
}
