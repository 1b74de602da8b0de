package domain

import "time"

// RequestChangeType captures what changed in a history entry.
type RequestChangeType string

const (
	ChangeTypeStatus RequestChangeType = "STATUS_CHANGE"
)

// RequestHistory is an immutable audit trail entry. Entries are append-only:
// they are never updated or deleted, and ordering is guaranteed per request
// by ChangedAt only.
type RequestHistory struct {
	ID             string
	RequestID      string
	ChangeType     RequestChangeType
	PreviousStatus RequestStatus
	NewStatus      RequestStatus
	ChangedBy      string
	ChangedByRole  Role
	ChangedAt      time.Time
	Details        map[string]any
}
