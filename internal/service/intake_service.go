package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/blob"
	"github.com/spec-kit/travel-approval-service/internal/config"
	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/events"
	"github.com/spec-kit/travel-approval-service/internal/intake"
	"github.com/spec-kit/travel-approval-service/internal/mailbox"
	"github.com/spec-kit/travel-approval-service/internal/observability"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

// IntakeOutcome is the definitive result of one intake event.
type IntakeOutcome string

const (
	OutcomeDuplicate IntakeOutcome = "DUPLICATE"
	OutcomeCreated   IntakeOutcome = "CREATED"
	OutcomeUpdated   IntakeOutcome = "UPDATED"
	OutcomePartial   IntakeOutcome = "PARTIAL"
	OutcomeFailed    IntakeOutcome = "FAILED"
)

// DocumentRef is a stored document.
type DocumentRef struct {
	ID       string              `json:"id"`
	Kind     domain.DocumentKind `json:"kind"`
	Filename string              `json:"filename"`
	Pathname string              `json:"pathname"`
	URL      string              `json:"url"`
	// Base is true for documents owned by the profile.
	Base bool `json:"base"`
}

// AttachmentFailure records one file that could not be stored. Failures never
// abort the sibling files of the same request.
type AttachmentFailure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// IntakeResult reports what an intake event did.
type IntakeResult struct {
	Outcome IntakeOutcome `json:"outcome"`
	Success bool          `json:"success"`
	// PriorOutcome is the ledger status of the first delivery when Outcome is
	// DUPLICATE. IN_FLIGHT means that delivery has not finished yet.
	PriorOutcome domain.ProcessedMessageStatus `json:"prior_outcome,omitempty"`
	PriorError   string                        `json:"prior_error,omitempty"`
	MessageID    string                        `json:"message_id,omitempty"`
	CaseID       string                        `json:"case_id,omitempty"`
	CaseNumber   string                        `json:"case_number,omitempty"`
	ProfileID    string                        `json:"profile_id,omitempty"`
	IsNew        bool                          `json:"is_new_profile"`
	Conflict     *IdentityConflict             `json:"conflict,omitempty"`
	Documents    []DocumentRef                 `json:"documents,omitempty"`
	Failures     []AttachmentFailure           `json:"failures,omitempty"`
	Error        string                        `json:"error,omitempty"`
}

func (r *IntakeResult) setCase(c *domain.Case) {
	r.CaseID = c.ID
	r.CaseNumber = c.CaseNumber()
	r.ProfileID = c.ProfileID
}

// setPrior copies what the ledger knows about the first delivery.
func (r *IntakeResult) setPrior(prior *domain.ProcessedMessage) {
	r.PriorOutcome = prior.Status
	r.PriorError = derefString(prior.Error)
	r.CaseID = derefString(prior.CaseID)
	r.ProfileID = derefString(prior.ProfileID)
	if r.CaseID != "" {
		r.CaseNumber = domain.CaseNumberFor(r.CaseID)
	}
}

// finish settles the outcome once documents have been processed.
func (r *IntakeResult) finish(outcome IntakeOutcome) {
	r.Outcome = outcome
	if len(r.Failures) > 0 {
		r.Outcome = OutcomePartial
	}
	r.Success = true
}

// EmailEvent identifies an inbound message. Resource is the Graph change
// notification resource path; its last segment is the message id.
type EmailEvent struct {
	MessageID    string `json:"message_id"`
	Resource     string `json:"resource"`
	ResourceData struct {
		ID string `json:"id"`
	} `json:"resourceData"`
}

// ProviderMessageID returns the mailbox message id carried by the event.
func (e EmailEvent) ProviderMessageID() string {
	if id := strings.TrimSpace(e.MessageID); id != "" {
		return id
	}
	if id := strings.TrimSpace(e.ResourceData.ID); id != "" {
		return id
	}
	resource := strings.TrimRight(e.Resource, "/")
	if idx := strings.LastIndex(resource, "/"); idx >= 0 {
		resource = resource[idx+1:]
	}
	// Graph resource paths quote the id: Messages('AAMk...').
	resource = strings.TrimSuffix(strings.TrimPrefix(resource, "Messages('"), "')")
	return strings.TrimSpace(resource)
}

// UploadedFile is a file submitted with the public form.
type UploadedFile struct {
	Filename     string `json:"filename"`
	MediaType    string `json:"media_type"`
	DeclaredKind string `json:"kind,omitempty"`
	Data         []byte `json:"data"`
}

// PublicRequest is a public form submission. Dates use YYYY-MM-DD (or the
// day-first forms the email parser accepts).
type PublicRequest struct {
	ClientToken        string         `json:"client_generated_id"`
	FirstName          string         `json:"first_name"`
	LastName           string         `json:"last_name"`
	Email              string         `json:"email"`
	NationalID         string         `json:"national_id"`
	Phone              string         `json:"phone"`
	Department         string         `json:"department"`
	JobTitle           string         `json:"job_title"`
	DestinationCountry string         `json:"destination_country"`
	DestinationCity    string         `json:"destination_city"`
	DepartureDate      string         `json:"departure_date"`
	ReturnDate         string         `json:"return_date"`
	Reason             string         `json:"reason"`
	EventName          string         `json:"event_name"`
	Institution        string         `json:"organizing_institution"`
	Amount             string         `json:"amount"`
	Currency           string         `json:"currency"`
	CostCenter         string         `json:"cost_center"`
	Notes              string         `json:"notes"`
	Files              []UploadedFile `json:"files"`
}

// IntakeService turns inbound email and public form submissions into
// profiles, cases and documents.
type IntakeService struct {
	identity   *IdentityService
	guard      *IdempotencyGuard
	workflow   *WorkflowService
	audit      *AuditRecorder
	cases      repository.CaseRepository
	documents  repository.DocumentRepository
	mailbox    mailbox.Reader
	blobs      blob.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.IntakeConfig
	now        func() time.Time
}

// IntakeDependencies bundles collaborators. Mailbox may be nil when email
// intake is not configured.
type IntakeDependencies struct {
	Identity     *IdentityService
	Guard        *IdempotencyGuard
	Workflow     *WorkflowService
	Audit        *AuditRecorder
	CaseRepo     repository.CaseRepository
	DocumentRepo repository.DocumentRepository
	Mailbox      mailbox.Reader
	Blobs        blob.Store
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Config       config.IntakeConfig
}

// NewIntakeService creates the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.MaxAttachments <= 0 {
		deps.Config.MaxAttachments = 20
	}
	if deps.Config.MaxAttachmentBytes <= 0 {
		deps.Config.MaxAttachmentBytes = 10 << 20
	}
	return &IntakeService{
		identity:   deps.Identity,
		guard:      deps.Guard,
		workflow:   deps.Workflow,
		audit:      deps.Audit,
		cases:      deps.CaseRepo,
		documents:  deps.DocumentRepo,
		mailbox:    deps.Mailbox,
		blobs:      deps.Blobs,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        deps.Config,
		now:        time.Now,
	}
}

// EmailEnabled reports whether a mailbox is wired.
func (s *IntakeService) EmailEnabled() bool {
	return s.mailbox != nil
}

// ProcessIntakeEvent is the single entry point for raw intake events. The
// payload is an EmailEvent for EMAIL_AUTOMATION and a PublicRequest for
// PUBLIC_FORM. It always returns a definitive result.
func (s *IntakeService) ProcessIntakeEvent(ctx context.Context, source domain.CaseSource, payload []byte) *IntakeResult {
	switch source {
	case domain.CaseSourceEmailAutomation:
		var event EmailEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return s.rejected(source, fmt.Errorf("decode email event: %w", err))
		}
		return s.ProcessEmail(ctx, event.ProviderMessageID())
	case domain.CaseSourcePublicForm:
		var req PublicRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return s.rejected(source, fmt.Errorf("decode public request: %w", err))
		}
		result, err := s.SubmitPublicRequest(ctx, req)
		if err != nil {
			return s.rejected(source, err)
		}
		return result
	default:
		return s.rejected(source, fmt.Errorf("unsupported intake source %q", source))
	}
}

func (s *IntakeService) rejected(source domain.CaseSource, err error) *IntakeResult {
	s.logger.Error("intake rejected", zap.String("source", string(source)), zap.Error(err))
	s.metrics.RecordIntake(string(source), string(OutcomeFailed))
	return &IntakeResult{Outcome: OutcomeFailed, Error: err.Error()}
}

// ProcessEmail ingests one mailbox message. Redelivery of the same message is
// a successful no-op.
func (s *IntakeService) ProcessEmail(ctx context.Context, providerMessageID string) *IntakeResult {
	source := domain.CaseSourceEmailAutomation
	if s.mailbox == nil {
		return s.rejected(source, errors.New("email intake is not configured"))
	}
	if providerMessageID == "" {
		return s.rejected(source, errors.New("message id is required"))
	}

	msg, err := s.mailbox.GetMessage(ctx, providerMessageID)
	if err != nil {
		return s.rejected(source, fmt.Errorf("fetch message %s: %w", providerMessageID, err))
	}
	internetID := strings.TrimSpace(msg.InternetMessageID)
	if internetID == "" {
		internetID = msg.ID
	}
	logger := s.logger.With(zap.String("message_id", internetID))

	admission, err := s.guard.Admit(ctx, internetID, msg.ID)
	if err != nil {
		return s.rejected(source, err)
	}
	if admission.AlreadyProcessed {
		result := &IntakeResult{Outcome: OutcomeDuplicate, Success: true, MessageID: internetID}
		if admission.Prior != nil {
			result.setPrior(admission.Prior)
		}
		s.metrics.RecordIntake(string(source), string(OutcomeDuplicate))
		return result
	}

	result := &IntakeResult{MessageID: internetID}
	if err := s.ingestEmail(ctx, msg, internetID, result); err != nil {
		logger.Error("email intake failed", zap.Error(err))
		result.Outcome = OutcomeFailed
		result.Success = false
		result.Error = err.Error()
		s.recordAudit(ctx, AuditRecord{
			Action:    domain.AuditIntakeFailed,
			CaseID:    optionalString(result.CaseID),
			ProfileID: optionalString(result.ProfileID),
			Detail:    map[string]any{"source": source, "message_id": internetID, "error": err.Error()},
		})
		_ = s.guard.Complete(ctx, admission.Entry, optionalString(result.CaseID), optionalString(result.ProfileID), err.Error())
		s.metrics.RecordIntake(string(source), string(OutcomeFailed))
		return result
	}

	_ = s.guard.Complete(ctx, admission.Entry, optionalString(result.CaseID), optionalString(result.ProfileID), "")
	s.metrics.RecordIntake(string(source), string(result.Outcome))
	logger.Info("email intake finished",
		zap.String("outcome", string(result.Outcome)),
		zap.String("case_id", result.CaseID),
		zap.String("profile_id", result.ProfileID),
		zap.Int("documents", len(result.Documents)),
		zap.Int("failures", len(result.Failures)))
	return result
}

func (s *IntakeService) ingestEmail(ctx context.Context, msg *mailbox.Message, internetID string, result *IntakeResult) error {
	source := domain.CaseSourceEmailAutomation
	parsed := intake.ParseEmail(msg.Subject, msg.Body.Content, msg.From.EmailAddress.Address)

	resolution, err := s.identity.Resolve(ctx, IdentityCandidate{
		Email:           parsed.Email,
		NationalID:      parsed.NationalID,
		FullName:        parsed.FullName,
		Phone:           parsed.Phone,
		PassportNumber:  parsed.PassportNumber,
		PassportCountry: parsed.PassportCountry,
	})
	if err != nil {
		return err
	}
	profile := resolution.Profile
	result.ProfileID = profile.ID
	result.IsNew = resolution.IsNew()
	result.Conflict = resolution.Conflict

	outcome := OutcomeCreated
	c := s.referencedCase(ctx, parsed.CaseID, profile.ID)
	if c != nil {
		applyParsedTrip(c, parsed, msg.Body.Content)
		if err := s.cases.UpdateDetails(ctx, c); err != nil {
			return apperrors.MapError(err)
		}
		outcome = OutcomeUpdated
		result.setCase(c)
		s.recordAudit(ctx, AuditRecord{
			Action:    domain.AuditCaseUpdated,
			CaseID:    strPtr(c.ID),
			ProfileID: strPtr(profile.ID),
			Detail:    map[string]any{"source": source, "message_id": internetID},
		})
	} else {
		c = &domain.Case{ProfileID: profile.ID, Source: source}
		applyParsedTrip(c, parsed, msg.Body.Content)
		if _, err := s.workflow.CreateCase(ctx, c); err != nil {
			return apperrors.MapError(err)
		}
		result.setCase(c)
		s.caseCreated(ctx, c, nil, resolution, map[string]any{"message_id": internetID})
	}

	if msg.HasAttachments {
		s.ingestAttachments(ctx, msg.ID, internetID, c, result)
	}
	if len(result.Documents) > 0 || len(result.Failures) > 0 {
		s.logger.Debug("attachments processed",
			zap.String("case_id", c.ID),
			zap.Int("stored", len(result.Documents)),
			zap.Int("failed", len(result.Failures)))
	}
	result.finish(outcome)
	return nil
}

// referencedCase returns the case named by a CASE_ID reference when it belongs
// to the resolved profile and is still open. Anything else starts a new case.
func (s *IntakeService) referencedCase(ctx context.Context, caseID, profileID string) *domain.Case {
	if caseID == "" {
		return nil
	}
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		s.logger.Warn("referenced case unavailable; creating a new case", zap.String("case_id", caseID), zap.Error(err))
		return nil
	}
	if c.ProfileID != profileID {
		s.logger.Warn("referenced case belongs to another profile; creating a new case",
			zap.String("case_id", caseID), zap.String("profile_id", profileID))
		return nil
	}
	if c.Status.Terminal() {
		s.logger.Info("referenced case is closed; creating a new case", zap.String("case_id", caseID), zap.String("status", string(c.Status)))
		return nil
	}
	return c
}

// applyParsedTrip copies the trip fields that were found onto c. Missing
// fields leave existing values untouched.
func applyParsedTrip(c *domain.Case, p intake.ParsedEmail, rawBody string) {
	overwrite(&c.DestinationCountry, p.DestinationCountry)
	overwrite(&c.DestinationCity, p.DestinationCity)
	overwrite(&c.Reason, p.Reason)
	overwrite(&c.EventName, p.EventName)
	overwrite(&c.OrganizingInstitution, p.Institution)
	if p.DepartureDate != nil {
		c.DepartureDate = p.DepartureDate
	}
	if p.ReturnDate != nil {
		c.ReturnDate = p.ReturnDate
	}
	// A return before departure cannot be stored; keep the departure.
	if c.DepartureDate != nil && c.ReturnDate != nil && c.ReturnDate.Before(*c.DepartureDate) {
		c.ReturnDate = nil
	}
	if p.EstimatedAmount != nil {
		c.EstimatedAmount = p.EstimatedAmount
	}
	if p.Currency != "" {
		c.Currency = p.Currency
	}
	if c.Currency == "" {
		c.Currency = domain.DefaultCurrency
	}
	if raw := strings.TrimSpace(rawBody); raw != "" {
		c.RawContent = &raw
	}
}

func (s *IntakeService) ingestAttachments(ctx context.Context, providerID, internetID string, c *domain.Case, result *IntakeResult) {
	attachments, err := s.mailbox.ListAttachments(ctx, providerID)
	if err != nil {
		s.attachmentFailed(result, c.ID, "*", fmt.Errorf("list attachments: %w", err))
		return
	}
	stored := 0
	for _, att := range attachments {
		if att.IsInline {
			continue
		}
		if !att.IsFile() {
			s.attachmentFailed(result, c.ID, att.Name, fmt.Errorf("unsupported attachment type %s", att.ODataType))
			continue
		}
		if stored >= s.cfg.MaxAttachments {
			s.attachmentFailed(result, c.ID, att.Name, errors.New("attachment limit reached"))
			continue
		}
		if att.Size > s.cfg.MaxAttachmentBytes {
			s.attachmentFailed(result, c.ID, att.Name, fmt.Errorf("attachment exceeds %d bytes", s.cfg.MaxAttachmentBytes))
			continue
		}
		data, err := s.mailbox.DownloadAttachment(ctx, providerID, att.ID)
		if err != nil {
			s.attachmentFailed(result, c.ID, att.Name, fmt.Errorf("download: %w", err))
			continue
		}
		if int64(len(data)) > s.cfg.MaxAttachmentBytes {
			s.attachmentFailed(result, c.ID, att.Name, fmt.Errorf("attachment exceeds %d bytes", s.cfg.MaxAttachmentBytes))
			continue
		}
		kind := intake.Classify(att.Name, att.ContentType)
		ref, err := s.storeDocument(ctx, c, kind, att.Name, att.ContentType, data, &internetID)
		if err != nil {
			s.attachmentFailed(result, c.ID, att.Name, err)
			continue
		}
		stored++
		result.Documents = append(result.Documents, ref)
	}
}

func (s *IntakeService) attachmentFailed(result *IntakeResult, caseID, filename string, err error) {
	s.logger.Warn("attachment failed",
		zap.String("case_id", caseID),
		zap.String("filename", filename),
		zap.Error(err))
	s.metrics.RecordAttachmentFailure()
	result.Failures = append(result.Failures, AttachmentFailure{Filename: filename, Reason: err.Error()})
}

// storeDocument uploads the bytes and records the document. Identity
// documents belong to the profile, everything else to the case.
func (s *IntakeService) storeDocument(ctx context.Context, c *domain.Case, kind domain.DocumentKind, filename, mediaType string, data []byte, sourceMessageID *string) (DocumentRef, error) {
	base := intake.IsBaseKind(kind)
	upload := blob.Upload{
		ProfileID: c.ProfileID,
		Kind:      kind,
		Filename:  filename,
		MediaType: mediaType,
		Data:      data,
		At:        s.now(),
	}
	if !base {
		upload.CaseID = c.ID
	}
	stored, err := blob.Put(ctx, s.blobs, upload)
	if err != nil {
		return DocumentRef{}, err
	}

	doc := &domain.Document{
		Kind:                 kind,
		OriginalFilename:     filename,
		MediaType:            mediaType,
		SizeBytes:            int64(len(data)),
		BlobURL:              stored.URL,
		BlobPathname:         stored.Pathname,
		ChecksumSHA256:       stored.ChecksumSHA256,
		SourceEmailMessageID: sourceMessageID,
	}
	if base {
		doc.ProfileID = strPtr(c.ProfileID)
	} else {
		doc.CaseID = strPtr(c.ID)
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return DocumentRef{}, fmt.Errorf("record document: %w", err)
	}

	s.recordAudit(ctx, AuditRecord{
		Action:    domain.AuditDocUploaded,
		CaseID:    strPtr(c.ID),
		ProfileID: strPtr(c.ProfileID),
		Detail: map[string]any{
			"document_id": doc.ID,
			"filename":    filename,
			"kind":        kind,
			"source":      c.Source,
		},
	})
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventDocumentStored,
		CaseID:    c.ID,
		ProfileID: c.ProfileID,
		Payload: events.DocumentStoredPayload{
			DocumentID: doc.ID,
			Kind:       kind,
			Pathname:   stored.Pathname,
		},
	})
	return DocumentRef{
		ID:       doc.ID,
		Kind:     kind,
		Filename: filename,
		Pathname: stored.Pathname,
		URL:      stored.URL,
		Base:     base,
	}, nil
}

// caseCreated writes the CASE_CREATED entry and emits the event.
func (s *IntakeService) caseCreated(ctx context.Context, c *domain.Case, actorStaffID *string, resolution *Resolution, extra map[string]any) {
	detail := map[string]any{"source": c.Source, "case_number": c.CaseNumber()}
	isNew := false
	if resolution != nil {
		isNew = resolution.IsNew()
		detail["is_new_profile"] = isNew
		if resolution.Conflict != nil {
			detail["conflict"] = resolution.Conflict.Detail()
		}
	}
	for k, v := range extra {
		detail[k] = v
	}
	s.recordAudit(ctx, AuditRecord{
		Action:       domain.AuditCaseCreated,
		ActorStaffID: actorStaffID,
		CaseID:       strPtr(c.ID),
		ProfileID:    strPtr(c.ProfileID),
		Detail:       detail,
	})
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:         events.EventCaseCreated,
		CaseID:       c.ID,
		ProfileID:    c.ProfileID,
		ActorStaffID: actorStaffID,
		Payload: events.CaseCreatedPayload{
			CaseNumber: c.CaseNumber(),
			Source:     c.Source,
			IsNew:      isNew,
		},
	})
}

// recordAudit writes an intake audit entry. The recorder already logs a
// failed write; intake carries on because the data change is committed.
func (s *IntakeService) recordAudit(ctx context.Context, rec AuditRecord) {
	_, _ = s.audit.Record(ctx, rec)
}

// SubmitPublicRequest handles a public form submission. The client token is
// claimed in the idempotency ledger before anything else is written, so a
// resubmission, concurrent or not, returns the original case and changes
// nothing.
func (s *IntakeService) SubmitPublicRequest(ctx context.Context, req PublicRequest) (*IntakeResult, error) {
	source := domain.CaseSourcePublicForm
	trip, err := validatePublicRequest(req)
	if err != nil {
		return nil, err
	}

	var claim *domain.ProcessedMessage
	token := strings.TrimSpace(req.ClientToken)
	if token != "" {
		admission, err := s.guard.Admit(ctx, formTokenKey(token), token)
		if err != nil {
			return nil, err
		}
		if admission.AlreadyProcessed {
			return s.duplicateSubmission(token, admission.Prior)
		}
		claim = admission.Entry
		// Cases stored before their token was claimed in the ledger.
		if existing, err := s.cases.GetByClientGeneratedID(ctx, token); err == nil {
			_ = s.guard.Complete(ctx, claim, strPtr(existing.ID), strPtr(existing.ProfileID), "")
			return s.duplicateCase(existing), nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, s.abandonClaim(ctx, claim, apperrors.MapError(err))
		}
	} else {
		token = uuid.NewString()
	}

	resolution, err := s.identity.Resolve(ctx, IdentityCandidate{
		Email:      req.Email,
		NationalID: req.NationalID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Department: req.Department,
		JobTitle:   req.JobTitle,
	})
	if err != nil {
		return nil, s.abandonClaim(ctx, claim, err)
	}

	c := trip
	c.ProfileID = resolution.Profile.ID
	c.Source = source
	c.ClientGeneratedID = &token
	if _, err := s.workflow.CreateCase(ctx, c); err != nil {
		return nil, s.abandonClaim(ctx, claim, apperrors.MapError(err))
	}

	result := &IntakeResult{IsNew: resolution.IsNew(), Conflict: resolution.Conflict}
	result.setCase(c)
	for i, f := range req.Files {
		name := f.Filename
		if name == "" {
			name = fmt.Sprintf("document_%d", i)
		}
		if len(f.Data) == 0 {
			s.attachmentFailed(result, c.ID, name, errors.New("empty file"))
			continue
		}
		if int64(len(f.Data)) > s.cfg.MaxAttachmentBytes {
			s.attachmentFailed(result, c.ID, name, fmt.Errorf("file exceeds %d bytes", s.cfg.MaxAttachmentBytes))
			continue
		}
		if len(result.Documents) >= s.cfg.MaxAttachments {
			s.attachmentFailed(result, c.ID, name, errors.New("attachment limit reached"))
			continue
		}
		kind := intake.ResolveKind(f.DeclaredKind, name, f.MediaType)
		ref, err := s.storeDocument(ctx, c, kind, name, f.MediaType, f.Data, nil)
		if err != nil {
			s.attachmentFailed(result, c.ID, name, err)
			continue
		}
		result.Documents = append(result.Documents, ref)
	}

	s.caseCreated(ctx, c, nil, resolution, map[string]any{"documents_count": len(result.Documents)})
	_ = s.guard.Complete(ctx, claim, strPtr(c.ID), strPtr(c.ProfileID), "")
	result.finish(OutcomeCreated)
	s.metrics.RecordIntake(string(source), string(result.Outcome))
	s.logger.Info("public request accepted",
		zap.String("case_id", c.ID),
		zap.String("profile_id", c.ProfileID),
		zap.Int("documents", len(result.Documents)),
		zap.Int("failures", len(result.Failures)))
	return result, nil
}

// formTokenKey namespaces public form tokens in the ledger shared with email
// internet message ids.
func formTokenKey(token string) string {
	return "form:" + token
}

// duplicateSubmission answers a token that is already claimed. A claim whose
// submission failed cannot be reused, since the failed attempt may have left
// partial data behind.
func (s *IntakeService) duplicateSubmission(token string, prior *domain.ProcessedMessage) (*IntakeResult, error) {
	s.metrics.RecordIntake(string(domain.CaseSourcePublicForm), string(OutcomeDuplicate))
	result := &IntakeResult{Outcome: OutcomeDuplicate, Success: true}
	if prior == nil {
		return result, nil
	}
	result.setPrior(prior)
	if prior.Status == domain.ProcessedMessageFailed {
		return nil, apperrors.NewConflict("an earlier submission with this token failed; submit again with a new token",
			map[string]any{"client_generated_id": token, "prior_error": derefString(prior.Error)})
	}
	s.logger.Info("duplicate public submission",
		zap.String("case_id", result.CaseID),
		zap.String("prior_outcome", string(prior.Status)))
	return result, nil
}

func (s *IntakeService) duplicateCase(existing *domain.Case) *IntakeResult {
	s.metrics.RecordIntake(string(domain.CaseSourcePublicForm), string(OutcomeDuplicate))
	result := &IntakeResult{Outcome: OutcomeDuplicate, Success: true, PriorOutcome: domain.ProcessedMessageOK}
	result.setCase(existing)
	return result
}

// abandonClaim marks a claimed token FAILED and passes err through.
func (s *IntakeService) abandonClaim(ctx context.Context, claim *domain.ProcessedMessage, err error) error {
	_ = s.guard.Complete(ctx, claim, nil, nil, err.Error())
	return err
}

// validatePublicRequest checks required fields and returns the trip data as
// an unsaved case.
func validatePublicRequest(req PublicRequest) (*domain.Case, error) {
	missing := []string{}
	for field, value := range map[string]string{
		"first_name":          req.FirstName,
		"last_name":           req.LastName,
		"email":               req.Email,
		"destination_country": req.DestinationCountry,
		"destination_city":    req.DestinationCity,
		"departure_date":      req.DepartureDate,
		"return_date":         req.ReturnDate,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("required fields missing", map[string]any{"fields": sortedStrings(missing)})
	}
	if !strings.Contains(req.Email, "@") {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
	}
	departure, ok := intake.ParseDate(req.DepartureDate)
	if !ok {
		return nil, apperrors.NewValidationError("invalid date", map[string]any{"field": "departure_date"})
	}
	ret, ok := intake.ParseDate(req.ReturnDate)
	if !ok {
		return nil, apperrors.NewValidationError("invalid date", map[string]any{"field": "return_date"})
	}
	if ret.Before(departure) {
		return nil, apperrors.NewValidationError("return date must not be before departure date", nil)
	}

	c := &domain.Case{
		DestinationCountry:    optionalString(req.DestinationCountry),
		DestinationCity:       optionalString(req.DestinationCity),
		DepartureDate:         &departure,
		ReturnDate:            &ret,
		Reason:                optionalString(req.Reason),
		EventName:             optionalString(req.EventName),
		OrganizingInstitution: optionalString(req.Institution),
		Currency:              strings.ToUpper(strings.TrimSpace(req.Currency)),
		CostCenter:            optionalString(req.CostCenter),
		Notes:                 optionalString(req.Notes),
	}
	if amount := strings.TrimSpace(req.Amount); amount != "" {
		v, err := strconv.ParseFloat(strings.ReplaceAll(amount, ",", ""), 64)
		if err != nil || v < 0 {
			return nil, apperrors.NewValidationError("invalid amount", map[string]any{"field": "amount"})
		}
		c.EstimatedAmount = &v
	}
	return c, nil
}

// ManualCaseInput is a case entered by staff for an existing profile.
type ManualCaseInput struct {
	ProfileID          string
	DestinationCountry string
	DestinationCity    string
	DepartureDate      *time.Time
	ReturnDate         *time.Time
	Reason             string
	EventName          string
	Institution        string
	EstimatedAmount    *float64
	Currency           string
	CostCenter         string
	Notes              string
}

// CreateManualCase opens a MANUAL case on behalf of a profile. The acting
// staff member is recorded as creator and audit actor.
func (s *IntakeService) CreateManualCase(ctx context.Context, actor *domain.StaffMember, input ManualCaseInput) (*domain.Case, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("staff required")
	}
	if strings.TrimSpace(input.ProfileID) == "" {
		return nil, apperrors.NewValidationError("profile_id is required", nil)
	}
	if input.DepartureDate != nil && input.ReturnDate != nil && input.ReturnDate.Before(*input.DepartureDate) {
		return nil, apperrors.NewValidationError("return date must not be before departure date", nil)
	}
	if input.EstimatedAmount != nil && *input.EstimatedAmount < 0 {
		return nil, apperrors.NewValidationError("invalid amount", map[string]any{"field": "estimated_amount"})
	}
	c := &domain.Case{
		ProfileID:             input.ProfileID,
		CreatedByStaffID:      strPtr(actor.ID),
		Source:                domain.CaseSourceManual,
		DestinationCountry:    optionalString(input.DestinationCountry),
		DestinationCity:       optionalString(input.DestinationCity),
		DepartureDate:         input.DepartureDate,
		ReturnDate:            input.ReturnDate,
		Reason:                optionalString(input.Reason),
		EventName:             optionalString(input.EventName),
		OrganizingInstitution: optionalString(input.Institution),
		EstimatedAmount:       input.EstimatedAmount,
		Currency:              strings.ToUpper(strings.TrimSpace(input.Currency)),
		CostCenter:            optionalString(input.CostCenter),
		Notes:                 optionalString(input.Notes),
	}
	if _, err := s.workflow.CreateCase(ctx, c); err != nil {
		return nil, notFoundOr(err, "profile", map[string]any{"profile_id": input.ProfileID})
	}
	s.caseCreated(ctx, c, strPtr(actor.ID), nil, nil)
	s.metrics.RecordIntake(string(domain.CaseSourceManual), string(OutcomeCreated))
	return c, nil
}
