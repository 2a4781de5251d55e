package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/repository"
)

// AuditRecord is one entry to append. A nil actor marks a system action.
type AuditRecord struct {
	Action       domain.AuditAction
	ActorStaffID *string
	CaseID       *string
	ProfileID    *string
	Detail       map[string]any
}

// AuditRecorder appends to the audit trail. It is called synchronously, after
// the change it documents has been committed.
type AuditRecorder struct {
	repo   repository.AuditRepository
	logger *zap.Logger
}

// NewAuditRecorder creates the recorder.
func NewAuditRecorder(repo repository.AuditRepository, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{repo: repo, logger: logger}
}

// Record appends one entry. A failure is logged with enough context to
// reconstruct the missing entry and returned to the caller.
func (r *AuditRecorder) Record(ctx context.Context, rec AuditRecord) (*domain.AuditEntry, error) {
	detail := rec.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	entry := &domain.AuditEntry{
		ActorStaffID: rec.ActorStaffID,
		CaseID:       rec.CaseID,
		ProfileID:    rec.ProfileID,
		Action:       rec.Action,
		Detail:       detail,
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Error("audit write failed",
			zap.String("action", string(rec.Action)),
			zap.String("case_id", derefString(rec.CaseID)),
			zap.String("profile_id", derefString(rec.ProfileID)),
			zap.Any("detail", detail),
			zap.Error(err))
		return nil, err
	}
	return entry, nil
}

// CaseTrail lists a case's entries oldest first.
func (r *AuditRecorder) CaseTrail(ctx context.Context, caseID string) ([]domain.AuditEntry, error) {
	return r.repo.ListByCase(ctx, caseID)
}
