package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/devmatch/request-service/internal/workflow"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// transitionHTTPStatus maps workflow rejection kinds onto HTTP statuses.
var transitionHTTPStatus = map[workflow.ErrorKind]int{
	workflow.ErrNotFound:      http.StatusNotFound,
	workflow.ErrInvalidStatus: http.StatusUnprocessableEntity,
	workflow.ErrForbidden:     http.StatusForbidden,
	workflow.ErrNotAssigned:   http.StatusForbidden,
	workflow.ErrConflict:      http.StatusConflict,
	workflow.ErrUnknown:       http.StatusInternalServerError,
}

// FromTransitionError converts a typed workflow rejection into the HTTP
// error envelope, preserving the status context the engine attached.
func FromTransitionError(terr *workflow.TransitionError) *DomainError {
	status, ok := transitionHTTPStatus[terr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	details := map[string]any{}
	if terr.CurrentStatus != "" {
		details["current_status"] = string(terr.CurrentStatus)
	}
	if terr.RequestedStatus != "" {
		details["requested_status"] = string(terr.RequestedStatus)
	}
	if terr.ActingRole != "" {
		details["acting_role"] = string(terr.ActingRole)
	}
	return &DomainError{
		Code:       string(terr.Kind),
		Message:    terr.Message(),
		HTTPStatus: status,
		Details:    details,
		Err:        terr.Cause,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var transitionErr *workflow.TransitionError
	if errors.As(err, &transitionErr) {
		return FromTransitionError(transitionErr)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to the DomainError type as a plain error.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
