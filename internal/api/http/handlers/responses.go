package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/travel-approval-service/internal/api/dto"
	"github.com/spec-kit/travel-approval-service/internal/auth"
	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/service"
)

const dateLayout = "2006-01-02"

func staffPrincipal(c *fiber.Ctx) (*domain.StaffMember, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return nil, fiber.NewError(http.StatusUnauthorized, "staff required")
	}
	return principal.Staff, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		if t, err = time.Parse(dateLayout, val); err != nil {
			return nil
		}
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseBoolQuery(c *fiber.Ctx, key string) *bool {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return &parsed
		}
	}
	return nil
}

func splitQuery(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func staffResponse(staff *domain.StaffMember) dto.StaffResponse {
	return dto.StaffResponse{
		ID:        staff.ID,
		Name:      staff.Name,
		Email:     staff.Email,
		Role:      staff.Role,
		Active:    staff.Active,
		CreatedAt: staff.CreatedAt,
	}
}

func caseResponse(c *domain.Case) dto.CaseResponse {
	return dto.CaseResponse{
		ID:                    c.ID,
		CaseNumber:            c.CaseNumber(),
		ProfileID:             c.ProfileID,
		CreatedByStaffID:      c.CreatedByStaffID,
		Source:                c.Source,
		Status:                c.Status,
		DestinationCountry:    c.DestinationCountry,
		DestinationCity:       c.DestinationCity,
		DepartureDate:         formatDate(c.DepartureDate),
		ReturnDate:            formatDate(c.ReturnDate),
		Reason:                c.Reason,
		EventName:             c.EventName,
		OrganizingInstitution: c.OrganizingInstitution,
		EstimatedAmount:       c.EstimatedAmount,
		Currency:              c.Currency,
		CostCenter:            c.CostCenter,
		Notes:                 c.Notes,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

func caseResponses(cases []domain.Case) []dto.CaseResponse {
	resp := make([]dto.CaseResponse, 0, len(cases))
	for i := range cases {
		resp = append(resp, caseResponse(&cases[i]))
	}
	return resp
}

func taskResponse(task *domain.Task) dto.TaskResponse {
	return dto.TaskResponse{
		ID:              task.ID,
		CaseID:          task.CaseID,
		CaseNumber:      domain.CaseNumberFor(task.CaseID),
		Step:            task.Step,
		Status:          task.Status,
		AssignedStaffID: task.AssignedStaffID,
		AssignedRole:    task.AssignedRole,
		CreatedAt:       task.CreatedAt,
		CompletedAt:     task.CompletedAt,
	}
}

func taskResponses(tasks []domain.Task) []dto.TaskResponse {
	resp := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, taskResponse(&tasks[i]))
	}
	return resp
}

func documentResponses(docs []domain.Document) []dto.DocumentResponse {
	resp := make([]dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, dto.DocumentResponse{
			ID:                   d.ID,
			ProfileID:            d.ProfileID,
			CaseID:               d.CaseID,
			Kind:                 d.Kind,
			OriginalFilename:     d.OriginalFilename,
			MediaType:            d.MediaType,
			SizeBytes:            d.SizeBytes,
			URL:                  d.BlobURL,
			Pathname:             d.BlobPathname,
			ChecksumSHA256:       d.ChecksumSHA256,
			SourceEmailMessageID: d.SourceEmailMessageID,
			CreatedAt:            d.CreatedAt,
		})
	}
	return resp
}

func auditResponses(entries []domain.AuditEntry) []dto.AuditEntryResponse {
	resp := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.AuditEntryResponse{
			ID:           e.ID,
			Action:       e.Action,
			ActorStaffID: e.ActorStaffID,
			CaseID:       e.CaseID,
			ProfileID:    e.ProfileID,
			Detail:       e.Detail,
			CreatedAt:    e.CreatedAt,
		})
	}
	return resp
}

func profileResponse(p *domain.Profile) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:              p.ID,
		PrimaryEmail:    p.PrimaryEmail,
		NationalID:      p.NationalID,
		FullName:        p.FullName,
		Phone:           p.Phone,
		Department:      p.Department,
		JobTitle:        p.JobTitle,
		PassportNumber:  p.PassportNumber,
		PassportCountry: p.PassportCountry,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func caseDetailResponse(detail *service.CaseDetail) dto.CaseDetailResponse {
	return dto.CaseDetailResponse{
		Case:          caseResponse(detail.Case),
		Profile:       profileResponse(detail.Profile),
		Tasks:         taskResponses(detail.Tasks),
		Documents:     documentResponses(detail.Documents),
		BaseDocuments: documentResponses(detail.BaseDocuments),
		Audit:         auditResponses(detail.Audit),
	}
}
