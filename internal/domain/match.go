package domain

import "time"

// MatchStatus tracks a developer's application to a request.
type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchApproved MatchStatus = "approved"
	MatchRejected MatchStatus = "rejected"
)

// Match is a developer's application record against a request. It has its own
// lifecycle, independent of the request's status: only an approved match lets
// a developer drive developer-role transitions (with the two exceptions
// enforced by the workflow engine: the initial dev_requested move and
// abandonment).
type Match struct {
	ID          string
	RequestID   string
	DeveloperID string
	Status      MatchStatus
	Pitch       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
