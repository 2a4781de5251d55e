package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

func TestGetCaseDetail(t *testing.T) {
	h := newHarness(t)
	res, err := h.intake.SubmitPublicRequest(h.ctx, publicRequest("tok-detail"))
	require.NoError(t, err)

	detail, err := h.cases.GetCaseDetail(h.ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, res.ProfileID, detail.Profile.ID)
	assert.Len(t, detail.Tasks, 1)
	assert.Len(t, detail.Documents, 1)
	assert.Len(t, detail.BaseDocuments, 1)
	assert.Len(t, detail.Audit, 3)

	_, err = h.cases.GetCaseDetail(h.ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListCasesFilters(t *testing.T) {
	h := newHarness(t)
	_, err := h.intake.SubmitPublicRequest(h.ctx, publicRequest("tok-a"))
	require.NoError(t, err)
	other := h.profile(t, "luis@agency.gov")
	h.newCase(t, other.ID)

	all, err := h.cases.ListCases(h.ctx, repository.CaseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	manual, err := h.cases.ListCases(h.ctx, repository.CaseFilter{Sources: []domain.CaseSource{domain.CaseSourceManual}})
	require.NoError(t, err)
	require.Len(t, manual, 1)
	assert.Equal(t, other.ID, manual[0].ProfileID)
}

func TestGetProfileDetail(t *testing.T) {
	h := newHarness(t)
	res, err := h.intake.SubmitPublicRequest(h.ctx, publicRequest("tok-p"))
	require.NoError(t, err)

	detail, err := h.cases.GetProfileDetail(h.ctx, res.ProfileID)
	require.NoError(t, err)
	assert.Len(t, detail.Cases, 1)
	assert.Len(t, detail.BaseDocuments, 1)
	assert.NotEmpty(t, detail.Audit)

	_, err = h.cases.GetProfileDetail(h.ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUpsertProfileRecordsActor(t *testing.T) {
	h := newHarness(t)
	admin := h.staff(t, "admin", domain.StaffRoleAdmin)

	created, err := h.cases.UpsertProfile(h.ctx, admin, IdentityCandidate{Email: "Ana@Agency.gov", FirstName: "Ana"})
	require.NoError(t, err)
	assert.True(t, created.IsNew())

	updated, err := h.cases.UpsertProfile(h.ctx, admin, IdentityCandidate{Email: "ana@agency.gov", Department: "Legal"})
	require.NoError(t, err)
	assert.Equal(t, created.Profile.ID, updated.Profile.ID)
	assert.Equal(t, "Legal", *updated.Profile.Department)

	entries, err := h.repos.Audit.ListByProfile(h.ctx, created.Profile.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, domain.AuditProfileUpserted, e.Action)
		assert.Equal(t, admin.ID, *e.ActorStaffID)
	}

	_, err = h.cases.UpsertProfile(h.ctx, nil, IdentityCandidate{Email: "x@agency.gov"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = h.cases.UpsertProfile(h.ctx, admin, IdentityCandidate{FirstName: "Nobody"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIdentityError))
}
