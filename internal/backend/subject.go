// Package backend adapts the club administration REST backend to the approval
// core.
//
// The backend exposes proposals and venue bookings as JSON resources. Each
// carries a numeric status, the index of the stage currently awaiting a
// decision, and the list of approval records written so far. [Subject.State]
// turns that read shape into an [approval.State]; [Client] fetches subjects
// and submits approve/reject requests.
//
// Key types:
//   - [Subject] - Read shape of a proposal or booking
//   - [ApprovalRecord] - One entry of a subject's approval list
//   - [Client] - HTTP client for the backend
//   - [APIError] - Non-2xx backend response
package backend

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"clubflow/internal/approval"
	"clubflow/internal/status"
)

// Subject is the read shape of a proposal or venue booking.
//
// Only the fields the approval core needs are decoded; the backend sends many
// more (venue, dates, budget) which are ignored.
type Subject struct {
	ID            int64            `json:"id" yaml:"id"`
	Title         string           `json:"title,omitempty" yaml:"title,omitempty"`
	ClubName      string           `json:"club_name,omitempty" yaml:"club_name,omitempty"`
	Status        status.Status    `json:"status" yaml:"status"`
	StatusDisplay string           `json:"status_display,omitempty" yaml:"status_display,omitempty"`
	ApprovalStage int              `json:"approval_stage" yaml:"approval_stage"`
	Approvals     []ApprovalRecord `json:"approvals" yaml:"approvals"`
}

// ApprovalRecord is one decision recorded by the backend.
type ApprovalRecord struct {
	Stage        int           `json:"stage" yaml:"stage"`
	ApproverName string        `json:"approver_name" yaml:"approver_name"`
	Status       status.Status `json:"status" yaml:"status"`
	Comments     string        `json:"comments,omitempty" yaml:"comments,omitempty"`
	ApprovalDate time.Time     `json:"approval_date" yaml:"approval_date"`
}

// Key returns the snapshot key of the subject, e.g. "proposals/12".
func Key(kind, id string) string {
	return kind + "/" + id
}

// IDString returns the subject ID as used in backend paths.
func (s Subject) IDString() string {
	return strconv.FormatInt(s.ID, 10)
}

// DisplayMismatch reports whether status_display names a different status
// than the numeric code. An empty or unrecognized display never mismatches.
func (s Subject) DisplayMismatch() bool {
	if s.StatusDisplay == "" {
		return false
	}
	parsed, ok := status.ParseDisplay(s.StatusDisplay)
	return ok && parsed != s.Status
}

// State derives the [approval.State] of the subject against def.
//
// Approval records are ordered by stage, then by date. Pending records are
// placeholders the backend creates ahead of a decision and are dropped. The
// result is validated; a malformed subject returns [approval.ErrInvalidState].
func (s Subject) State(def approval.StageDefinition) (approval.State, error) {
	if !s.Status.IsValid() {
		return approval.State{}, fmt.Errorf("%w: subject %d has status code %d", approval.ErrInvalidState, s.ID, int(s.Status))
	}

	records := make([]ApprovalRecord, 0, len(s.Approvals))
	for _, a := range s.Approvals {
		if a.Status == status.StatusPending {
			continue
		}
		records = append(records, a)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Stage != records[j].Stage {
			return records[i].Stage < records[j].Stage
		}
		return records[i].ApprovalDate.Before(records[j].ApprovalDate)
	})

	history := make([]approval.StageRecord, len(records))
	for i, a := range records {
		history[i] = approval.StageRecord{
			StageIndex:   a.Stage,
			Outcome:      a.Status.Outcome(),
			ApproverName: strings.TrimSpace(a.ApproverName),
			Comments:     a.Comments,
			Timestamp:    a.ApprovalDate,
		}
	}

	state := approval.State{
		Status:       s.Status.Outcome(),
		CurrentStage: s.ApprovalStage,
		History:      history,
	}
	if err := state.Validate(def); err != nil {
		return approval.State{}, fmt.Errorf("subject %d: %w", s.ID, err)
	}
	return state, nil
}

// FromState builds the read shape of a state. It is the inverse of
// [Subject.State] for validated states and is used to write snapshots.
func FromState(id int64, s approval.State) Subject {
	approvals := make([]ApprovalRecord, len(s.History))
	for i, r := range s.History {
		approvals[i] = ApprovalRecord{
			Stage:        r.StageIndex,
			ApproverName: r.ApproverName,
			Status:       status.FromOutcome(r.Outcome),
			Comments:     r.Comments,
			ApprovalDate: r.Timestamp,
		}
	}
	st := status.FromOutcome(s.Status)
	return Subject{
		ID:            id,
		Status:        st,
		StatusDisplay: st.String(),
		ApprovalStage: s.CurrentStage,
		Approvals:     approvals,
	}
}
