package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/travel-approval-service/internal/service"
)

// maxPublicFiles bounds the document_<i> fields read from one form.
const maxPublicFiles = 50

// PublicHandler accepts unauthenticated travel requests.
type PublicHandler struct {
	intake   *service.IntakeService
	maxBytes int64
}

// NewPublicHandler constructs handler. Files larger than maxBytes are still
// passed on so the intake can report them as failures.
func NewPublicHandler(intake *service.IntakeService, maxBytes int64) *PublicHandler {
	return &PublicHandler{intake: intake, maxBytes: maxBytes}
}

// SubmitRequest POST /public/requests. Accepts JSON or multipart/form-data
// with files in document_0, document_1, ... and optional document_<i>_kind.
func (h *PublicHandler) SubmitRequest(c *fiber.Ctx) error {
	var req service.PublicRequest
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid multipart form")
		}
		if req, err = h.fromForm(form); err != nil {
			return err
		}
	} else if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	result, err := h.intake.SubmitPublicRequest(c.UserContext(), req)
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if result.Outcome == service.OutcomeDuplicate {
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"data": result})
}

func (h *PublicHandler) fromForm(form *multipart.Form) (service.PublicRequest, error) {
	value := func(key string) string {
		if vals := form.Value[key]; len(vals) > 0 {
			return vals[0]
		}
		return ""
	}
	req := service.PublicRequest{
		ClientToken:        value("client_generated_id"),
		FirstName:          value("first_name"),
		LastName:           value("last_name"),
		Email:              value("email"),
		NationalID:         value("national_id"),
		Phone:              value("phone"),
		Department:         value("department"),
		JobTitle:           value("job_title"),
		DestinationCountry: value("destination_country"),
		DestinationCity:    value("destination_city"),
		DepartureDate:      value("departure_date"),
		ReturnDate:         value("return_date"),
		Reason:             value("reason"),
		EventName:          value("event_name"),
		Institution:        value("organizing_institution"),
		Amount:             value("amount"),
		Currency:           value("currency"),
		CostCenter:         value("cost_center"),
		Notes:              value("notes"),
	}
	for i := 0; i < maxPublicFiles; i++ {
		key := fmt.Sprintf("document_%d", i)
		headers := form.File[key]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		data, err := h.readFile(fh)
		if err != nil {
			return req, fiber.NewError(http.StatusBadRequest, "unreadable file "+key)
		}
		req.Files = append(req.Files, service.UploadedFile{
			Filename:     fh.Filename,
			MediaType:    fh.Header.Get(fiber.HeaderContentType),
			DeclaredKind: value(key + "_kind"),
			Data:         data,
		})
	}
	return req, nil
}

// readFile reads at most maxBytes+1 bytes so oversize files are detected
// without buffering them whole.
func (h *PublicHandler) readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if h.maxBytes <= 0 {
		return io.ReadAll(f)
	}
	return io.ReadAll(io.LimitReader(f, h.maxBytes+1))
}
