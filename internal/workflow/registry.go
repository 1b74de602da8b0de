// Package workflow implements the request lifecycle state machine: the
// status registry, the declarative transition table, the transition engine
// with role-based authorization, and the audit recorder.
package workflow

import (
	"strings"

	"github.com/devmatch/request-service/internal/domain"
)

type statusInfo struct {
	label       string
	description string
}

var statusRegistry = map[domain.RequestStatus]statusInfo{
	domain.StatusSubmitted: {
		label:       "Submitted",
		description: "The request has been submitted and is queued for matching.",
	},
	domain.StatusPendingMatch: {
		label:       "Pending Match",
		description: "The request is open for developers to apply.",
	},
	domain.StatusDevRequested: {
		label:       "Developer Requested",
		description: "A developer has applied to work on this request.",
	},
	domain.StatusAwaitingClientApproval: {
		label:       "Awaiting Client Approval",
		description: "The client is reviewing the developer's application.",
	},
	domain.StatusApproved: {
		label:       "Approved",
		description: "The client approved a developer for this request.",
	},
	domain.StatusRequirementsReview: {
		label:       "Requirements Review",
		description: "The developer is reviewing the request requirements.",
	},
	domain.StatusNeedMoreInfo: {
		label:       "Need More Info",
		description: "The developer needs more information from the client before starting.",
	},
	domain.StatusInProgress: {
		label:       "In Progress",
		description: "The developer is actively working on the request.",
	},
	domain.StatusReadyForQA: {
		label:       "Ready for QA",
		description: "The work is complete and awaiting client quality review.",
	},
	domain.StatusQAFail: {
		label:       "QA Failed",
		description: "The client found issues during quality review.",
	},
	domain.StatusQAPass: {
		label:       "QA Passed",
		description: "The client accepted the work during quality review.",
	},
	domain.StatusReadyForFinalAction: {
		label:       "Ready for Final Action",
		description: "The request is awaiting final confirmation from the client.",
	},
	domain.StatusResolved: {
		label:       "Resolved",
		description: "The request has been completed and closed.",
	},
	domain.StatusReopened: {
		label:       "Reopened",
		description: "The client reopened the request for additional work.",
	},
	domain.StatusCancelledByClient: {
		label:       "Cancelled by Client",
		description: "The client cancelled the request.",
	},
	domain.StatusAbandonedByDev: {
		label:       "Abandoned by Developer",
		description: "The developer withdrew from the request; it will be re-matched.",
	},
}

// Normalize converts a raw status string to canonical form: trimmed,
// lowercase, underscore separators. It does not validate membership; use
// ParseStatus for that.
func Normalize(raw string) domain.RequestStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return domain.RequestStatus(s)
}

// ParseStatus normalizes a raw string and checks it against the registry.
func ParseStatus(raw string) (domain.RequestStatus, bool) {
	status := Normalize(raw)
	_, ok := statusRegistry[status]
	return status, ok
}

// LabelOf returns a human-readable label for a status. Unknown codes are
// title-cased as a fallback, never rejected.
func LabelOf(status domain.RequestStatus) string {
	if info, ok := statusRegistry[Normalize(string(status))]; ok {
		return info.label
	}
	return titleCase(string(status))
}

// DescriptionOf returns a one-sentence explanation suitable for tooltips.
// Unknown codes get a generic fallback.
func DescriptionOf(status domain.RequestStatus) string {
	if info, ok := statusRegistry[Normalize(string(status))]; ok {
		return info.description
	}
	return "No description available"
}

func titleCase(code string) string {
	code = strings.ReplaceAll(strings.ReplaceAll(code, "_", " "), "-", " ")
	words := strings.Fields(code)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
