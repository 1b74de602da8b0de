package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devmatch/request-service/internal/domain"
	"github.com/devmatch/request-service/internal/events"
	"github.com/devmatch/request-service/internal/repository"
	"github.com/devmatch/request-service/internal/workflow"
	apperrors "github.com/devmatch/request-service/pkg/util"
)

// MatchService handles developer applications and the client decisions on
// them. Request status changes ride on the workflow engine; this service
// only adds the match bookkeeping around them.
type MatchService struct {
	requests   repository.RequestRepository
	matches    repository.MatchRepository
	engine     *workflow.Engine
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// MatchDependencies bundles collaborators for the match service.
type MatchDependencies struct {
	RequestRepo repository.RequestRepository
	MatchRepo   repository.MatchRepository
	Engine      *workflow.Engine
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewMatchService creates the service.
func NewMatchService(deps MatchDependencies) *MatchService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchService{
		requests:   deps.RequestRepo,
		matches:    deps.MatchRepo,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Apply records a developer's application against a pending_match request and
// drives the request to dev_requested, then on to awaiting_client_approval.
func (s *MatchService) Apply(ctx context.Context, developerID, requestID, pitch string) (*domain.Match, *domain.Request, error) {
	if existing, err := s.matches.GetByRequestAndDeveloper(ctx, requestID, developerID); err == nil && existing.Status != domain.MatchRejected {
		return nil, nil, apperrors.NewConflict("you already applied to this request", map[string]any{"match_id": existing.ID})
	} else if err != nil && !errors.Is(err, workflow.ErrNoMatch) {
		return nil, nil, apperrors.MapError(err)
	}

	match := &domain.Match{
		RequestID:   requestID,
		DeveloperID: developerID,
		Status:      domain.MatchPending,
		Pitch:       strings.TrimSpace(pitch),
	}
	if err := s.matches.Create(ctx, match); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	request, err := s.engine.AttemptTransition(ctx, workflow.TransitionInput{
		RequestID:       requestID,
		RequestedStatus: string(domain.StatusDevRequested),
		ActingRole:      domain.RoleDeveloper,
		ActorID:         developerID,
		Details:         map[string]any{"match_id": match.ID},
	})
	if err != nil {
		// A refused application must not leave a pending match behind: it
		// would block the developer's next attempt and count as standing
		// they never had.
		if delErr := s.matches.Delete(ctx, match.ID); delErr != nil {
			s.logger.Warn("failed to remove match after refused application",
				zap.String("match_id", match.ID), zap.Error(delErr))
		}
		return nil, nil, apperrors.MapError(err)
	}

	// Hand the application off to the client immediately.
	request, err = s.engine.AttemptTransition(ctx, workflow.TransitionInput{
		RequestID:       requestID,
		RequestedStatus: string(domain.StatusAwaitingClientApproval),
		ActingRole:      domain.RoleSystem,
		Details:         map[string]any{"match_id": match.ID},
	})
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventMatchApplied,
		RequestID: requestID,
		Actor:     events.Actor{Role: domain.RoleDeveloper, ActorID: developerID},
		Payload:   events.MatchAppliedPayload{MatchID: match.ID, DeveloperID: developerID},
	})
	return match, request, nil
}

// Approve lets the owning client accept a developer's application: the match
// becomes approved, the developer is assigned, and the request moves to
// approved.
func (s *MatchService) Approve(ctx context.Context, clientID, matchID string) (*domain.Request, error) {
	match, request, err := s.loadForDecision(ctx, clientID, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.matches.UpdateStatus(ctx, match.ID, domain.MatchApproved); err != nil {
		return nil, apperrors.MapError(err)
	}

	updated, err := s.engine.AttemptTransition(ctx, workflow.TransitionInput{
		RequestID:       request.ID,
		RequestedStatus: string(domain.StatusApproved),
		ActingRole:      domain.RoleClient,
		ActorID:         clientID,
		Details:         map[string]any{"match_id": match.ID, "developer_id": match.DeveloperID},
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	updated, err = s.assignDeveloper(ctx, updated, match.DeveloperID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventMatchDecided,
		RequestID: request.ID,
		Actor:     events.Actor{Role: domain.RoleClient, ActorID: clientID},
		Payload: events.MatchDecidedPayload{
			MatchID:     match.ID,
			DeveloperID: match.DeveloperID,
			Decision:    domain.MatchApproved,
		},
	})
	return updated, nil
}

// Reject declines the application and returns the request to matching.
func (s *MatchService) Reject(ctx context.Context, clientID, matchID string) (*domain.Request, error) {
	match, request, err := s.loadForDecision(ctx, clientID, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.matches.UpdateStatus(ctx, match.ID, domain.MatchRejected); err != nil {
		return nil, apperrors.MapError(err)
	}

	updated, err := s.engine.AttemptTransition(ctx, workflow.TransitionInput{
		RequestID:       request.ID,
		RequestedStatus: string(domain.StatusPendingMatch),
		ActingRole:      domain.RoleClient,
		ActorID:         clientID,
		Details:         map[string]any{"match_id": match.ID, "developer_id": match.DeveloperID},
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventMatchDecided,
		RequestID: request.ID,
		Actor:     events.Actor{Role: domain.RoleClient, ActorID: clientID},
		Payload: events.MatchDecidedPayload{
			MatchID:     match.ID,
			DeveloperID: match.DeveloperID,
			Decision:    domain.MatchRejected,
		},
	})
	return updated, nil
}

// Abandon lets a matched developer withdraw. The request is marked
// abandoned_by_dev and then reopened for matching by the system.
func (s *MatchService) Abandon(ctx context.Context, developerID, requestID string) (*domain.Request, error) {
	request, err := s.engine.AttemptTransition(ctx, workflow.TransitionInput{
		RequestID:       requestID,
		RequestedStatus: string(domain.StatusAbandonedByDev),
		ActingRole:      domain.RoleDeveloper,
		ActorID:         developerID,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if match, err := s.matches.GetByRequestAndDeveloper(ctx, requestID, developerID); err == nil {
		if err := s.matches.UpdateStatus(ctx, match.ID, domain.MatchRejected); err != nil {
			s.logger.Warn("failed to close match after abandonment", zap.String("match_id", match.ID), zap.Error(err))
		}
	}

	reopened, err := s.engine.AttemptTransition(ctx, workflow.TransitionInput{
		RequestID:       requestID,
		RequestedStatus: string(domain.StatusPendingMatch),
		ActingRole:      domain.RoleSystem,
	})
	if err != nil {
		s.logger.Warn("failed to reopen matching after abandonment", zap.String("request_id", requestID), zap.Error(err))
		return request, nil
	}
	return reopened, nil
}

// ListByRequest returns all applications for a request the client owns.
func (s *MatchService) ListByRequest(ctx context.Context, clientID, requestID string) ([]domain.Match, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, workflow.ErrRequestMissing) {
			return nil, apperrors.NewNotFound("request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	if request.ClientID != clientID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return s.matches.ListByRequest(ctx, requestID)
}

func (s *MatchService) loadForDecision(ctx context.Context, clientID, matchID string) (*domain.Match, *domain.Request, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, nil, apperrors.NewNotFound("match", map[string]any{"match_id": matchID})
	}
	if match.Status != domain.MatchPending {
		return nil, nil, apperrors.NewConflict("match already decided", map[string]any{"match_id": matchID})
	}
	request, err := s.requests.GetByID(ctx, match.RequestID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if request.ClientID != clientID {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	return match, request, nil
}

// assignDeveloper records the approved developer on the request row via the
// same compare-and-update primitive used for status changes.
func (s *MatchService) assignDeveloper(ctx context.Context, request *domain.Request, developerID string) (*domain.Request, error) {
	updated, err := s.requests.CompareAndUpdate(ctx, request.ID, request.Status, domain.RequestPatch{
		Status:      request.Status,
		DeveloperID: &developerID,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return updated, nil
}

func (s *MatchService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
