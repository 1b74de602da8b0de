package dto

import (
	"time"

	"github.com/devmatch/request-service/internal/domain"
)

// ApplyRequest payload.
type ApplyRequest struct {
	Pitch string `json:"pitch"`
}

// MatchResponse represents a developer application.
type MatchResponse struct {
	ID          string             `json:"id"`
	RequestID   string             `json:"request_id"`
	DeveloperID string             `json:"developer_id"`
	Status      domain.MatchStatus `json:"status"`
	Pitch       string             `json:"pitch,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
