package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/travel-approval-service/internal/api/dto"
	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	"github.com/spec-kit/travel-approval-service/internal/service"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

// CasesHandler serves staff case endpoints.
type CasesHandler struct {
	cases  *service.CaseService
	intake *service.IntakeService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(cases *service.CaseService, intake *service.IntakeService) *CasesHandler {
	return &CasesHandler{cases: cases, intake: intake}
}

// CreateCase POST /cases.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ManualCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	departure, err := parseDateField("departure_date", req.DepartureDate)
	if err != nil {
		return err
	}
	ret, err := parseDateField("return_date", req.ReturnDate)
	if err != nil {
		return err
	}
	created, err := h.intake.CreateManualCase(c.UserContext(), staff, service.ManualCaseInput{
		ProfileID:          req.ProfileID,
		DestinationCountry: req.DestinationCountry,
		DestinationCity:    req.DestinationCity,
		DepartureDate:      departure,
		ReturnDate:         ret,
		Reason:             req.Reason,
		EventName:          req.EventName,
		Institution:        req.OrganizingInstitution,
		EstimatedAmount:    req.EstimatedAmount,
		Currency:           req.Currency,
		CostCenter:         req.CostCenter,
		Notes:              req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": caseResponse(created)})
}

// ListCases GET /cases.
func (h *CasesHandler) ListCases(c *fiber.Ctx) error {
	cases, err := h.cases.ListCases(c.UserContext(), parseCaseFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseResponses(cases)})
}

// GetCase GET /cases/:id.
func (h *CasesHandler) GetCase(c *fiber.Ctx) error {
	detail, err := h.cases.GetCaseDetail(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseDetailResponse(detail)})
}

func parseDateField(field, val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid date", map[string]any{"field": field})
	}
	return &t, nil
}

func parseCaseFilter(c *fiber.Ctx) repository.CaseFilter {
	filter := repository.CaseFilter{}
	if profileID := c.Query("profile_id"); profileID != "" {
		filter.ProfileID = &profileID
	}
	for _, part := range splitQuery(c.Query("source")) {
		filter.Sources = append(filter.Sources, domain.CaseSource(part))
	}
	for _, part := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.CaseStatus(part))
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	filter.CreatedFrom = parseTime(c.Query("created_from"))
	filter.CreatedTo = parseTime(c.Query("created_to"))
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}
