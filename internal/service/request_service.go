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

// RequestService coordinates help-request workflows. All status mutation
// funnels through the workflow engine; the service never writes a status
// directly.
type RequestService struct {
	requests   repository.RequestRepository
	matches    repository.MatchRepository
	history    repository.RequestHistoryRepository
	engine     *workflow.Engine
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// RequestDependencies bundles collaborators for the request service.
type RequestDependencies struct {
	RequestRepo repository.RequestRepository
	MatchRepo   repository.MatchRepository
	HistoryRepo repository.RequestHistoryRepository
	Engine      *workflow.Engine
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// RequestCreateInput describes request creation payload.
type RequestCreateInput struct {
	Title       string
	Description string
	Tags        []string
}

// RequestListFilter describes listing filters.
type RequestListFilter struct {
	Statuses    []domain.RequestStatus
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		requests:   deps.RequestRepo,
		matches:    deps.MatchRepo,
		history:    deps.HistoryRepo,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateRequest creates a request for a client. New requests land in
// submitted and are immediately opened for matching by a system transition,
// so the submitted state is observable in history but requests surface to
// developers as pending_match.
func (s *RequestService) CreateRequest(ctx context.Context, clientID string, input RequestCreateInput) (*domain.Request, error) {
	request := &domain.Request{
		ExternalKey: generateRequestKey(),
		ClientID:    clientID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.StatusSubmitted,
		Tags:        input.Tags,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: request.ID,
		Actor:     events.Actor{Role: domain.RoleClient, ActorID: clientID},
		Payload: events.RequestCreatedPayload{
			ClientID: clientID,
			Title:    request.Title,
			Tags:     request.Tags,
		},
	})

	opened, err := s.engine.AttemptTransition(ctx, workflow.TransitionInput{
		RequestID:       request.ID,
		RequestedStatus: string(domain.StatusPendingMatch),
		ActingRole:      domain.RoleSystem,
	})
	if err != nil {
		// The request exists; matching can be reopened later. Surface the
		// submitted snapshot rather than failing creation.
		s.logger.Warn("auto-open for matching failed", zap.String("request_id", request.ID), zap.Error(err))
		return request, nil
	}
	return opened, nil
}

// ChangeStatus is the single entry point for caller-driven transitions.
func (s *RequestService) ChangeStatus(ctx context.Context, requestID, requestedStatus string, role domain.Role, actorID string, details map[string]any) (*domain.Request, error) {
	updated, err := s.engine.AttemptTransition(ctx, workflow.TransitionInput{
		RequestID:       requestID,
		RequestedStatus: requestedStatus,
		ActingRole:      role,
		ActorID:         actorID,
		Details:         details,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return updated, nil
}

// GetRequest fetches a request, enforcing visibility: clients see their own
// requests, developers see any request (they need to browse to apply).
func (s *RequestService) GetRequest(ctx context.Context, actor *domain.User, requestID string) (*domain.Request, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, workflow.ErrRequestMissing) {
			return nil, apperrors.NewNotFound("request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	if actor.Role == domain.RoleClient && request.ClientID != actor.ID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return request, nil
}

// ListClientRequests returns a client's own requests.
func (s *RequestService) ListClientRequests(ctx context.Context, clientID string, filter RequestListFilter) ([]domain.Request, error) {
	return s.requests.ListWithFilter(ctx, repository.RequestFilter{
		ClientID:    &clientID,
		Statuses:    filter.Statuses,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
}

// ListOpenRequests returns requests developers can browse and apply to.
func (s *RequestService) ListOpenRequests(ctx context.Context, filter RequestListFilter) ([]domain.Request, error) {
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []domain.RequestStatus{domain.StatusPendingMatch}
	}
	return s.requests.ListWithFilter(ctx, repository.RequestFilter{
		Statuses:    statuses,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
}

// AvailableActions returns the transition rules the actor may trigger from
// the request's current status. UI layers render these as buttons instead of
// re-deriving the state machine.
func (s *RequestService) AvailableActions(ctx context.Context, actor *domain.User, requestID string) ([]workflow.TransitionRule, error) {
	request, err := s.GetRequest(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	return workflow.RulesFor(request.Status, actor.Role), nil
}

// ListHistory returns the audit trail for a request the actor can see.
func (s *RequestService) ListHistory(ctx context.Context, actor *domain.User, requestID string, limit, offset int) ([]domain.RequestHistory, error) {
	if _, err := s.GetRequest(ctx, actor, requestID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByRequest(ctx, requestID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *RequestService) publishEvent(ctx context.Context, event events.Event) {
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

func generateRequestKey() string {
	return "REQ-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
