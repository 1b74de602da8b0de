package workflow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/devmatch/request-service/internal/domain"
	"github.com/devmatch/request-service/internal/events"
)

// statusHooks compute derived field updates when a status is entered. They
// replace the ad-hoc timestamp handling that otherwise ends up duplicated at
// every call site.
var statusHooks = map[domain.RequestStatus]func(patch *domain.RequestPatch, now time.Time){
	domain.StatusReadyForQA: func(patch *domain.RequestPatch, now time.Time) {
		patch.QAStartedAt = &now
	},
	domain.StatusQAFail: func(patch *domain.RequestPatch, now time.Time) {
		patch.ReviewStartedAt = &now
	},
	domain.StatusResolved: func(patch *domain.RequestPatch, now time.Time) {
		patch.CompletedAt = &now
	},
}

// TransitionInput describes one attempted status change.
type TransitionInput struct {
	RequestID       string
	RequestedStatus string
	ActingRole      domain.Role
	ActorID         string
	Details         map[string]any
}

// Engine validates and applies status transitions. Validation is synchronous
// and side-effect free; the only I/O boundaries are the request read, the
// compare-and-update write, and the history append.
type Engine struct {
	requests   RequestStore
	matches    MatchReader
	history    HistoryAppender
	recorder   *Recorder
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// EngineDependencies bundles collaborators for the engine.
type EngineDependencies struct {
	Requests   RequestStore
	Matches    MatchReader
	History    HistoryAppender
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewEngine constructs the transition engine.
func NewEngine(deps EngineDependencies) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		requests:   deps.Requests,
		matches:    deps.Matches,
		history:    deps.History,
		recorder:   &Recorder{now: clock},
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// AttemptTransition moves a request to the requested status if the acting
// role is allowed to. Repeating the current status is an idempotent no-op.
// Failures are always *TransitionError; concurrent writers racing on the
// same expected status leave exactly one winner, the loser observes
// ErrConflict and must retry with a fresh read.
func (e *Engine) AttemptTransition(ctx context.Context, input TransitionInput) (*domain.Request, error) {
	req, err := e.requests.GetByID(ctx, input.RequestID)
	if err != nil {
		if errors.Is(err, ErrRequestMissing) {
			return nil, newTransitionError(ErrNotFound, input.RequestID, "", Normalize(input.RequestedStatus), input.ActingRole)
		}
		return nil, e.unknown(input, "", err)
	}

	current := Normalize(string(req.Status))
	requested, ok := ParseStatus(input.RequestedStatus)
	if !ok {
		return nil, newTransitionError(ErrInvalidStatus, input.RequestID, current, requested, input.ActingRole)
	}

	if current == requested {
		return req, nil
	}

	if !transitionAllowed(current, requested, input.ActingRole) {
		return nil, newTransitionError(ErrForbidden, input.RequestID, current, requested, input.ActingRole)
	}

	if input.ActingRole == domain.RoleDeveloper {
		if err := e.checkDeveloperEligibility(ctx, req, requested, input); err != nil {
			return nil, err
		}
	}

	patch := domain.RequestPatch{Status: requested}
	if hook, ok := statusHooks[requested]; ok {
		hook(&patch, e.now())
	}

	updated, err := e.requests.CompareAndUpdate(ctx, req.ID, current, patch)
	if err != nil {
		switch {
		case errors.Is(err, ErrStaleStatus):
			return nil, newTransitionError(ErrConflict, input.RequestID, current, requested, input.ActingRole)
		case errors.Is(err, ErrRequestMissing):
			return nil, newTransitionError(ErrNotFound, input.RequestID, current, requested, input.ActingRole)
		default:
			return nil, e.unknown(input, current, err)
		}
	}

	// The primary record is committed at this point. History is best-effort:
	// an append failure is logged and the transition still succeeds.
	entry := e.recorder.Record(updated.ID, current, requested, input.ActorID, input.ActingRole, input.Details)
	if e.history != nil {
		if err := e.history.Append(ctx, entry); err != nil {
			e.logger.Warn("history append failed",
				zap.String("request_id", updated.ID),
				zap.String("previous_status", string(current)),
				zap.String("new_status", string(requested)),
				zap.Error(err))
		}
	}

	e.publishStatusChanged(ctx, updated, current, requested, input)
	return updated, nil
}

// checkDeveloperEligibility enforces the match-approval guard. Applying
// (dev_requested) needs no prior match; abandoning needs any existing match;
// everything else needs an approved one.
func (e *Engine) checkDeveloperEligibility(ctx context.Context, req *domain.Request, requested domain.RequestStatus, input TransitionInput) error {
	if requested == domain.StatusDevRequested {
		return nil
	}
	match, err := e.matches.GetByRequestAndDeveloper(ctx, req.ID, input.ActorID)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return newTransitionError(ErrNotAssigned, req.ID, Normalize(string(req.Status)), requested, input.ActingRole)
		}
		return e.unknown(input, Normalize(string(req.Status)), err)
	}
	if requested == domain.StatusAbandonedByDev {
		return nil
	}
	if match.Status != domain.MatchApproved {
		return newTransitionError(ErrNotAssigned, req.ID, Normalize(string(req.Status)), requested, input.ActingRole)
	}
	return nil
}

func (e *Engine) publishStatusChanged(ctx context.Context, req *domain.Request, previous, next domain.RequestStatus, input TransitionInput) {
	if e.dispatcher == nil {
		return
	}
	_ = e.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventRequestStatusChanged,
		RequestID: req.ID,
		Actor:     events.Actor{Role: input.ActingRole, ActorID: input.ActorID},
		Timestamp: e.now(),
		Payload: events.RequestStatusChangedPayload{
			PreviousStatus: previous,
			NewStatus:      next,
		},
	})
}

func (e *Engine) unknown(input TransitionInput, current domain.RequestStatus, cause error) *TransitionError {
	err := newTransitionError(ErrUnknown, input.RequestID, current, Normalize(input.RequestedStatus), input.ActingRole)
	err.Cause = cause
	return err
}
