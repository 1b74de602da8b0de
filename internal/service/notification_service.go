package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/devmatch/request-service/internal/events"
)

// NotificationService observes domain events and logs what a delivery
// integration would act on. Actual delivery is handled outside this service.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRequestCreated, n.handleEvent("RequestCreated"))
	n.dispatcher.Subscribe(events.EventRequestStatusChanged, n.handleEvent("RequestStatusChanged"))
	n.dispatcher.Subscribe(events.EventMatchApplied, n.handleEvent("MatchApplied"))
	n.dispatcher.Subscribe(events.EventMatchDecided, n.handleEvent("MatchDecided"))
}

func (n *NotificationService) handleEvent(name string) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		n.logger.Info(name,
			zap.String("request_id", event.RequestID),
			zap.String("actor_role", string(event.Actor.Role)),
			zap.Any("payload", event.Payload))
		return nil
	}
}
