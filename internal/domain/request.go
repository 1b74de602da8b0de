package domain

import "time"

// RequestStatus enumerates lifecycle states for help requests. Codes use
// lowercase underscore form everywhere: storage, transition rules, and
// comparisons. Raw input from callers goes through workflow.Normalize before
// it is compared against these values.
type RequestStatus string

const (
	StatusSubmitted              RequestStatus = "submitted"
	StatusPendingMatch           RequestStatus = "pending_match"
	StatusDevRequested           RequestStatus = "dev_requested"
	StatusAwaitingClientApproval RequestStatus = "awaiting_client_approval"
	StatusApproved               RequestStatus = "approved"
	StatusRequirementsReview     RequestStatus = "requirements_review"
	StatusNeedMoreInfo           RequestStatus = "need_more_info"
	StatusInProgress             RequestStatus = "in_progress"
	StatusReadyForQA             RequestStatus = "ready_for_qa"
	StatusQAFail                 RequestStatus = "qa_fail"
	StatusQAPass                 RequestStatus = "qa_pass"
	StatusReadyForFinalAction    RequestStatus = "ready_for_final_action"
	StatusResolved               RequestStatus = "resolved"
	StatusReopened               RequestStatus = "reopened"
	StatusCancelledByClient      RequestStatus = "cancelled_by_client"
	StatusAbandonedByDev         RequestStatus = "abandoned_by_dev"
)

// AllStatuses lists every valid status code. Order matches the lifecycle.
var AllStatuses = []RequestStatus{
	StatusSubmitted,
	StatusPendingMatch,
	StatusDevRequested,
	StatusAwaitingClientApproval,
	StatusApproved,
	StatusRequirementsReview,
	StatusNeedMoreInfo,
	StatusInProgress,
	StatusReadyForQA,
	StatusQAFail,
	StatusQAPass,
	StatusReadyForFinalAction,
	StatusResolved,
	StatusReopened,
	StatusCancelledByClient,
	StatusAbandonedByDev,
}

// IsTerminal reports whether a status has no outbound transitions.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusCancelledByClient
}

// Request is the aggregate for client help requests.
type Request struct {
	ID              string
	ExternalKey     string
	ClientID        string
	DeveloperID     *string
	Title           string
	Description     string
	Status          RequestStatus
	Tags            []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	QAStartedAt     *time.Time
	ReviewStartedAt *time.Time
	CompletedAt     *time.Time
}

// RequestPatch carries the fields a validated transition may change. The
// engine never mutates a Request snapshot; it builds a patch and hands it to
// the repository's compare-and-update.
type RequestPatch struct {
	Status          RequestStatus
	DeveloperID     *string
	QAStartedAt     *time.Time
	ReviewStartedAt *time.Time
	CompletedAt     *time.Time
}
