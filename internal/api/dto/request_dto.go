package dto

import (
	"time"

	"github.com/devmatch/request-service/internal/domain"
)

// CreateRequestRequest payload.
type CreateRequestRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// RequestSummary response.
type RequestSummary struct {
	ID          string               `json:"id"`
	ExternalKey string               `json:"external_key"`
	ClientID    string               `json:"client_id"`
	DeveloperID *string              `json:"developer_id,omitempty"`
	Title       string               `json:"title"`
	Status      domain.RequestStatus `json:"status"`
	StatusLabel string               `json:"status_label"`
	Tags        []string             `json:"tags"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// RequestDetailResponse provides full request info.
type RequestDetailResponse struct {
	ID                string                 `json:"id"`
	ExternalKey       string                 `json:"external_key"`
	ClientID          string                 `json:"client_id"`
	DeveloperID       *string                `json:"developer_id,omitempty"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Status            domain.RequestStatus   `json:"status"`
	StatusLabel       string                 `json:"status_label"`
	StatusDescription string                 `json:"status_description"`
	Tags              []string               `json:"tags"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	QAStartedAt       *time.Time             `json:"qa_started_at,omitempty"`
	ReviewStartedAt   *time.Time             `json:"review_started_at,omitempty"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty"`
	History           []HistoryEntryResponse `json:"history,omitempty"`
}

// ActionResponse describes an available transition for UI buttons.
type ActionResponse struct {
	To      domain.RequestStatus `json:"to"`
	Label   string               `json:"label"`
	Variant string               `json:"variant"`
}

// HistoryEntryResponse represents one audit entry.
type HistoryEntryResponse struct {
	ID             string               `json:"id"`
	ChangeType     string               `json:"change_type"`
	PreviousStatus domain.RequestStatus `json:"previous_status"`
	NewStatus      domain.RequestStatus `json:"new_status"`
	ChangedBy      string               `json:"changed_by,omitempty"`
	ChangedByRole  domain.Role          `json:"changed_by_role"`
	ChangedAt      time.Time            `json:"changed_at"`
	Details        map[string]any       `json:"details,omitempty"`
}
