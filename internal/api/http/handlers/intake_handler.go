package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/api/dto"
	"github.com/spec-kit/travel-approval-service/internal/service"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

// EmailQueue schedules mailbox messages for background intake.
type EmailQueue interface {
	Enqueue(providerMessageID string) error
}

// IntakeHandler receives Microsoft Graph change notifications.
type IntakeHandler struct {
	intake      *service.IntakeService
	queue       EmailQueue
	clientState string
	logger      *zap.Logger
}

// NewIntakeHandler constructs handler. With a nil queue notifications are
// processed inline and the response carries one result per notification.
func NewIntakeHandler(intake *service.IntakeService, queue EmailQueue, clientState string, logger *zap.Logger) *IntakeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeHandler{intake: intake, queue: queue, clientState: clientState, logger: logger}
}

// Webhook POST /intake/webhook.
func (h *IntakeHandler) Webhook(c *fiber.Ctx) error {
	// Subscription validation handshake.
	if token := c.Query("validationToken"); token != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(http.StatusOK).SendString(token)
	}
	if !h.intake.EmailEnabled() {
		return apperrors.NewDomainError("INTAKE_DISABLED", "email intake is not configured", http.StatusServiceUnavailable, nil)
	}

	var batch dto.GraphNotificationBatch
	if err := c.BodyParser(&batch); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if len(batch.Value) == 0 {
		return apperrors.NewValidationError("no notifications", nil)
	}
	if h.clientState != "" {
		for _, n := range batch.Value {
			if subtle.ConstantTimeCompare([]byte(n.ClientState), []byte(h.clientState)) != 1 {
				h.logger.Warn("webhook clientState mismatch", zap.String("subscription_id", n.SubscriptionID))
				return apperrors.NewUnauthenticated("invalid clientState")
			}
		}
	}

	ids := make([]string, 0, len(batch.Value))
	for _, n := range batch.Value {
		event := service.EmailEvent{Resource: n.Resource}
		event.ResourceData.ID = n.ResourceData.ID
		ids = append(ids, event.ProviderMessageID())
	}

	if h.queue != nil {
		for _, id := range ids {
			if err := h.queue.Enqueue(id); err != nil {
				// Graph redelivers on 5xx; intake is idempotent.
				h.logger.Warn("intake queue rejected notification", zap.String("provider_message_id", id), zap.Error(err))
				return apperrors.NewDomainError("INTAKE_BUSY", "intake queue full", http.StatusServiceUnavailable, nil)
			}
		}
		return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"queued": len(ids)}})
	}

	results := make([]*service.IntakeResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, h.intake.ProcessEmail(c.UserContext(), id))
	}
	return c.JSON(fiber.Map{"data": results})
}
