package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

// Admission is the result of IdempotencyGuard.Admit.
type Admission struct {
	// AlreadyProcessed is true when another delivery claimed the message
	// first. Prior is that delivery's ledger row, possibly still IN_FLIGHT.
	AlreadyProcessed bool
	Prior            *domain.ProcessedMessage
	// Entry is the claimed ledger row when the message was admitted.
	Entry *domain.ProcessedMessage
}

// IdempotencyGuard deduplicates inbound email by internet message id.
type IdempotencyGuard struct {
	ledger repository.ProcessedMessageRepository
	logger *zap.Logger
}

// NewIdempotencyGuard creates the guard.
func NewIdempotencyGuard(ledger repository.ProcessedMessageRepository, logger *zap.Logger) *IdempotencyGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyGuard{ledger: ledger, logger: logger}
}

// Admit claims internetMessageID with an IN_FLIGHT row. Exactly one of any
// number of concurrent callers is admitted.
func (g *IdempotencyGuard) Admit(ctx context.Context, internetMessageID, providerMessageID string) (*Admission, error) {
	internetMessageID = strings.TrimSpace(internetMessageID)
	if internetMessageID == "" {
		return nil, apperrors.NewValidationError("message id is required", nil)
	}
	entry := &domain.ProcessedMessage{
		InternetMessageID: internetMessageID,
		ProviderMessageID: providerMessageID,
		Status:            domain.ProcessedMessageInFlight,
	}
	inserted, err := g.ledger.Insert(ctx, entry)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if inserted {
		return &Admission{Entry: entry}, nil
	}

	prior, err := g.ledger.GetByInternetMessageID(ctx, internetMessageID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}
	g.logger.Info("duplicate message skipped", zap.String("message_id", internetMessageID))
	return &Admission{AlreadyProcessed: true, Prior: prior}, nil
}

// Complete records the final outcome of an admitted message. An empty
// errText marks success.
func (g *IdempotencyGuard) Complete(ctx context.Context, entry *domain.ProcessedMessage, caseID, profileID *string, errText string) error {
	if entry == nil {
		return nil
	}
	entry.CaseID = caseID
	entry.ProfileID = profileID
	entry.Status = domain.ProcessedMessageOK
	entry.Error = nil
	if errText != "" {
		entry.Status = domain.ProcessedMessageFailed
		entry.Error = strPtr(errText)
	}
	if err := g.ledger.Finalize(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			g.logger.Warn("ledger row already finalized", zap.String("message_id", entry.InternetMessageID))
			return nil
		}
		g.logger.Error("ledger finalize failed", zap.String("message_id", entry.InternetMessageID), zap.Error(err))
		return apperrors.MapError(err)
	}
	return nil
}
