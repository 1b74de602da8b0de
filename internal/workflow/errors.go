package workflow

import (
	"fmt"

	"github.com/devmatch/request-service/internal/domain"
)

// ErrorKind classifies why a transition was rejected.
type ErrorKind string

const (
	ErrNotFound      ErrorKind = "NOT_FOUND"
	ErrInvalidStatus ErrorKind = "INVALID_STATUS"
	ErrForbidden     ErrorKind = "FORBIDDEN"
	ErrNotAssigned   ErrorKind = "NOT_ASSIGNED"
	ErrConflict      ErrorKind = "CONFLICT"
	ErrUnknown       ErrorKind = "UNKNOWN"
)

// TransitionError is the typed rejection returned by the engine. It carries
// enough context for callers to render a precise message without re-deriving
// state.
type TransitionError struct {
	Kind            ErrorKind
	RequestID       string
	CurrentStatus   domain.RequestStatus
	RequestedStatus domain.RequestStatus
	ActingRole      domain.Role
	Cause           error
}

func (e *TransitionError) Error() string {
	msg := e.Message()
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return e.Cause
}

// Message renders a human-readable, role-aware explanation built from the
// status registry.
func (e *TransitionError) Message() string {
	switch e.Kind {
	case ErrNotFound:
		return fmt.Sprintf("request %s not found", e.RequestID)
	case ErrInvalidStatus:
		return fmt.Sprintf("%q is not a recognized status", string(e.RequestedStatus))
	case ErrForbidden:
		return fmt.Sprintf("a %s may not move this request from %s to %s",
			e.ActingRole, LabelOf(e.CurrentStatus), LabelOf(e.RequestedStatus))
	case ErrNotAssigned:
		return "you are not the approved developer for this request"
	case ErrConflict:
		return "someone else just updated this request, please retry"
	default:
		return "the request could not be updated"
	}
}

func newTransitionError(kind ErrorKind, requestID string, current, requested domain.RequestStatus, role domain.Role) *TransitionError {
	return &TransitionError{
		Kind:            kind,
		RequestID:       requestID,
		CurrentStatus:   current,
		RequestedStatus: requested,
		ActingRole:      role,
	}
}
