package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/board-api/internal/events"
	"github.com/spec-kit/board-api/internal/observability"
)

// AuditService records session lifecycle events in the log and metrics.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventSessionIssued, a.handleRoutine)
	a.dispatcher.Subscribe(events.EventSessionRotated, a.handleRoutine)
	a.dispatcher.Subscribe(events.EventSessionRevoked, a.handleRoutine)
	a.dispatcher.Subscribe(events.EventTheftDetected, a.handleTheft)
}

func (a *AuditService) handleRoutine(_ context.Context, event events.Event) error {
	a.metrics.RecordSessionEvent(string(event.Type))
	a.logger.Info("session event",
		zap.String("event_id", event.ID),
		zap.String("event", string(event.Type)),
		zap.String("subject_id", event.SubjectID),
		zap.String("device_id", event.DeviceID))
	return nil
}

func (a *AuditService) handleTheft(_ context.Context, event events.Event) error {
	a.metrics.RecordSessionEvent(string(event.Type))
	a.logger.Warn("security alert",
		zap.String("event_id", event.ID),
		zap.String("event", string(event.Type)),
		zap.String("subject_id", event.SubjectID),
		zap.String("device_id", event.DeviceID),
		zap.Any("payload", event.Payload))
	return nil
}
