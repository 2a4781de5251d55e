package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

// CaseService serves staff views of cases and profiles.
type CaseService struct {
	cases     repository.CaseRepository
	tasks     repository.TaskRepository
	documents repository.DocumentRepository
	profiles  repository.ProfileRepository
	auditRepo repository.AuditRepository
	identity  *IdentityService
	audit     *AuditRecorder
	logger    *zap.Logger
}

// CaseDependencies bundles repositories.
type CaseDependencies struct {
	CaseRepo     repository.CaseRepository
	TaskRepo     repository.TaskRepository
	DocumentRepo repository.DocumentRepository
	ProfileRepo  repository.ProfileRepository
	AuditRepo    repository.AuditRepository
	Identity     *IdentityService
	Audit        *AuditRecorder
	Logger       *zap.Logger
}

// NewCaseService creates the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &CaseService{
		cases:     deps.CaseRepo,
		tasks:     deps.TaskRepo,
		documents: deps.DocumentRepo,
		profiles:  deps.ProfileRepo,
		auditRepo: deps.AuditRepo,
		identity:  deps.Identity,
		audit:     deps.Audit,
		logger:    deps.Logger,
	}
}

// CaseDetail is a case with everything attached to it.
type CaseDetail struct {
	Case          *domain.Case
	Profile       *domain.Profile
	Tasks         []domain.Task
	Documents     []domain.Document
	BaseDocuments []domain.Document
	Audit         []domain.AuditEntry
}

// GetCaseDetail loads a case with its profile, tasks, documents and trail.
func (s *CaseService) GetCaseDetail(ctx context.Context, caseID string) (*CaseDetail, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, notFoundOr(err, "case", map[string]any{"case_id": caseID})
	}
	detail := &CaseDetail{Case: c}
	if detail.Profile, err = s.profiles.GetByID(ctx, c.ProfileID); err != nil {
		return nil, apperrors.MapError(err)
	}
	if detail.Tasks, err = s.tasks.ListByCase(ctx, c.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	if detail.Documents, err = s.documents.ListByCase(ctx, c.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	if detail.BaseDocuments, err = s.documents.ListByProfile(ctx, c.ProfileID); err != nil {
		return nil, apperrors.MapError(err)
	}
	if detail.Audit, err = s.auditRepo.ListByCase(ctx, c.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	return detail, nil
}

// ListCases lists cases newest first.
func (s *CaseService) ListCases(ctx context.Context, filter repository.CaseFilter) ([]domain.Case, error) {
	cases, err := s.cases.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return cases, nil
}

// ProfileDetail is a profile with its base documents and cases.
type ProfileDetail struct {
	Profile       *domain.Profile
	BaseDocuments []domain.Document
	Cases         []domain.Case
	Audit         []domain.AuditEntry
}

// GetProfileDetail loads a profile with its base documents and cases.
func (s *CaseService) GetProfileDetail(ctx context.Context, profileID string) (*ProfileDetail, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, notFoundOr(err, "profile", map[string]any{"profile_id": profileID})
	}
	detail := &ProfileDetail{Profile: profile}
	if detail.BaseDocuments, err = s.documents.ListByProfile(ctx, profileID); err != nil {
		return nil, apperrors.MapError(err)
	}
	if detail.Cases, err = s.cases.ListWithFilter(ctx, repository.CaseFilter{ProfileID: &profileID, Limit: 200}); err != nil {
		return nil, apperrors.MapError(err)
	}
	if detail.Audit, err = s.auditRepo.ListByProfile(ctx, profileID); err != nil {
		return nil, apperrors.MapError(err)
	}
	return detail, nil
}

// UpsertProfile resolves staff-entered requester data through the identity
// resolver and records who did it.
func (s *CaseService) UpsertProfile(ctx context.Context, actor *domain.StaffMember, cand IdentityCandidate) (*Resolution, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("staff required")
	}
	res, err := s.identity.Resolve(ctx, cand)
	if err != nil {
		return nil, err
	}
	detail := map[string]any{"source": domain.CaseSourceManual, "outcome": res.Outcome}
	if res.Conflict != nil {
		detail["conflict"] = res.Conflict.Detail()
	}
	if _, err := s.audit.Record(ctx, AuditRecord{
		Action:       domain.AuditProfileUpserted,
		ActorStaffID: strPtr(actor.ID),
		ProfileID:    strPtr(res.Profile.ID),
		Detail:       detail,
	}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return res, nil
}
