package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/config"
	"github.com/spec-kit/travel-approval-service/internal/events"
)

// NotificationService reacts to workflow events. Delivery channels are
// stubs that log what would be sent.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{logger: logger, cfg: cfg}
}

// Handlers returns the event handlers to subscribe, keyed by event type.
func (n *NotificationService) Handlers() map[events.EventType]events.EventHandler {
	return map[events.EventType]events.EventHandler{
		events.EventCaseCreated:    n.handleCaseCreated,
		events.EventTaskResolved:   n.handleTaskResolved,
		events.EventTaskAssigned:   n.handleTaskAssigned,
		events.EventDocumentStored: n.handleDocumentStored,
	}
}

func (n *NotificationService) handleCaseCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("CaseCreated", zap.String("case_id", event.CaseID), zap.String("profile_id", event.ProfileID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTaskResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("TaskResolved", zap.String("case_id", event.CaseID), zap.Any("payload", event.Payload))
	if p, ok := event.Payload.(events.TaskResolvedPayload); ok && p.CaseStatus.Terminal() {
		n.sendEmailNotificationStub(ctx, event)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTaskAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TaskAssigned", zap.String("case_id", event.CaseID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDocumentStored(_ context.Context, event events.Event) error {
	n.logger.Debug("DocumentStored", zap.String("case_id", event.CaseID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("case_id", event.CaseID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("case_id", event.CaseID),
		zap.String("event_type", string(event.Type)))
}
