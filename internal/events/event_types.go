package events

import (
	"time"

	"github.com/devmatch/request-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated       EventType = "request_created"
	EventRequestStatusChanged EventType = "request_status_changed"
	EventMatchApplied         EventType = "match_applied"
	EventMatchDecided         EventType = "match_decided"
)

// Actor encapsulates actor metadata for an event. ActorID is empty for
// system-triggered transitions.
type Actor struct {
	Role    domain.Role `json:"role"`
	ActorID string      `json:"actor_id,omitempty"`
}

// Event represents a domain event emitted by services and the workflow
// engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	ClientID string   `json:"client_id"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags,omitempty"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	PreviousStatus domain.RequestStatus `json:"previous_status"`
	NewStatus      domain.RequestStatus `json:"new_status"`
}

// MatchAppliedPayload payload.
type MatchAppliedPayload struct {
	MatchID     string `json:"match_id"`
	DeveloperID string `json:"developer_id"`
}

// MatchDecidedPayload payload.
type MatchDecidedPayload struct {
	MatchID     string             `json:"match_id"`
	DeveloperID string             `json:"developer_id"`
	Decision    domain.MatchStatus `json:"decision"`
}
