package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/travel-approval-service/internal/api/dto"
	"github.com/spec-kit/travel-approval-service/internal/service"
)

// ProfilesHandler serves requester profile endpoints.
type ProfilesHandler struct {
	cases *service.CaseService
}

// NewProfilesHandler constructs handler.
func NewProfilesHandler(cases *service.CaseService) *ProfilesHandler {
	return &ProfilesHandler{cases: cases}
}

// Upsert POST /profiles/upsert.
func (h *ProfilesHandler) Upsert(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ProfileUpsertRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	res, err := h.cases.UpsertProfile(c.UserContext(), staff, service.IdentityCandidate{
		Email:           req.Email,
		NationalID:      req.NationalID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		FullName:        req.FullName,
		Phone:           req.Phone,
		Department:      req.Department,
		JobTitle:        req.JobTitle,
		PassportNumber:  req.PassportNumber,
		PassportCountry: req.PassportCountry,
	})
	if err != nil {
		return err
	}
	resp := dto.ProfileUpsertResponse{
		Profile: profileResponse(res.Profile),
		Outcome: string(res.Outcome),
		IsNew:   res.IsNew(),
	}
	if res.Conflict != nil {
		resp.Conflict = res.Conflict.Detail()
	}
	status := http.StatusOK
	if res.IsNew() {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": resp})
}

// GetProfile GET /profiles/:id.
func (h *ProfilesHandler) GetProfile(c *fiber.Ctx) error {
	detail, err := h.cases.GetProfileDetail(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ProfileDetailResponse{
		Profile:       profileResponse(detail.Profile),
		BaseDocuments: documentResponses(detail.BaseDocuments),
		Cases:         caseResponses(detail.Cases),
		Audit:         auditResponses(detail.Audit),
	}})
}
