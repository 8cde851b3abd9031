// Package status defines the numeric status codes used by the club
// administration backend.
//
// Proposals, venue bookings and individual approval records all carry a
// status field encoded as 0 (pending), 1 (approved) or 2 (rejected). The
// backend also sends a human-readable status_display string next to it; the
// numeric code is authoritative.
package status

import (
	"fmt"
	"strings"

	"clubflow/internal/approval"
)

// Status is a backend status code.
type Status int

// Status values as sent by the backend.
const (
	StatusPending  Status = 0
	StatusApproved Status = 1
	StatusRejected Status = 2
)

// IsValid returns true if the status is one of the known codes.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// String returns the display label the backend uses for the code.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Outcome converts the code to an [approval.Outcome].
// Unknown codes map to an invalid outcome so validation rejects them.
func (s Status) Outcome() approval.Outcome {
	switch s {
	case StatusPending:
		return approval.OutcomePending
	case StatusApproved:
		return approval.OutcomeApproved
	case StatusRejected:
		return approval.OutcomeRejected
	default:
		return approval.Outcome(-1)
	}
}

// FromOutcome converts an [approval.Outcome] to its backend code.
func FromOutcome(o approval.Outcome) Status {
	switch o {
	case approval.OutcomeApproved:
		return StatusApproved
	case approval.OutcomeRejected:
		return StatusRejected
	default:
		return StatusPending
	}
}

// ParseDisplay maps a status_display string to a code.
//
// Matching is case-insensitive and ignores surrounding whitespace. The
// dashboards also show "In Progress" and "Under Review" for pending subjects.
func ParseDisplay(label string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "pending", "in progress", "under review":
		return StatusPending, true
	case "approved":
		return StatusApproved, true
	case "rejected":
		return StatusRejected, true
	}
	return 0, false
}
