package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/events"
	"github.com/spec-kit/travel-approval-service/internal/mailbox"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

const requestBody = `Solicitud de viaje
Nombre: Ana Pérez
Cédula: 001-1234567-8
Destino: España, Madrid
Fecha de salida: 15/03/2025
Fecha de retorno: 20/03/2025
Motivo: Conferencia anual
Monto: USD 1,500.00
`

func emailMessage(id, internetID string) *mailbox.Message {
	msg := &mailbox.Message{ID: id, InternetMessageID: internetID, Subject: "Solicitud de viaje"}
	msg.Body.Content = requestBody
	msg.From.EmailAddress.Address = "Ana@Agency.gov"
	return msg
}

func caseFilterAll() repository.CaseFilter {
	return repository.CaseFilter{Limit: 100}
}

func (h *harness) documents(t *testing.T, c *IntakeResult) ([]domain.Document, []domain.Document) {
	t.Helper()
	caseDocs, err := h.repos.Documents.ListByCase(h.ctx, c.CaseID)
	require.NoError(t, err)
	baseDocs, err := h.repos.Documents.ListByProfile(h.ctx, c.ProfileID)
	require.NoError(t, err)
	return caseDocs, baseDocs
}

func TestProcessEmailCreatesCaseAndDocuments(t *testing.T) {
	h := newHarness(t)
	h.mailbox.add(emailMessage("AAMk1", "<m1@mail>"), map[string][]byte{
		"CÉDULA_FRONTAL.jpg":   []byte("id-bytes"),
		"carta_invitacion.pdf": []byte("letter-bytes"),
	})

	res := h.intake.ProcessEmail(h.ctx, "AAMk1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.True(t, res.IsNew)
	assert.Equal(t, domain.CaseNumberFor(res.CaseID), res.CaseNumber)
	assert.Len(t, res.Documents, 2)

	c, err := h.repos.Cases.GetByID(h.ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseSourceEmailAutomation, c.Source)
	assert.Equal(t, domain.CaseStatusReceived, c.Status)
	assert.Equal(t, "España", *c.DestinationCountry)
	assert.Equal(t, "Madrid", *c.DestinationCity)
	assert.Equal(t, "USD", c.Currency)
	require.NotNil(t, c.EstimatedAmount)
	assert.InDelta(t, 1500.0, *c.EstimatedAmount, 0.001)
	require.NotNil(t, c.RawContent)

	profile, err := h.repos.Profiles.GetByID(h.ctx, res.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, "ana@agency.gov", *profile.PrimaryEmail)
	assert.Equal(t, "00112345678", *profile.NationalID)

	caseDocs, baseDocs := h.documents(t, res)
	require.Len(t, baseDocs, 1)
	assert.Equal(t, domain.DocumentKindNationalID, baseDocs[0].Kind)
	assert.Nil(t, baseDocs[0].CaseID)
	assert.True(t, strings.HasPrefix(baseDocs[0].BlobPathname, "profiles/"+res.ProfileID+"/base/NATIONAL_ID/"))
	require.Len(t, caseDocs, 1)
	assert.Equal(t, domain.DocumentKindInvitationLetter, caseDocs[0].Kind)
	assert.Equal(t, "<m1@mail>", *caseDocs[0].SourceEmailMessageID)
	assert.Equal(t, 2, h.blobs.Len())

	assert.Equal(t, []domain.AuditAction{domain.AuditCaseCreated, domain.AuditDocUploaded, domain.AuditDocUploaded}, h.auditActions(t, res.CaseID))
	assert.Equal(t, 1, h.published.count(events.EventCaseCreated))

	ledger, err := h.repos.ProcessedMessages.GetByInternetMessageID(h.ctx, "<m1@mail>")
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessedMessageOK, ledger.Status)
	assert.Equal(t, res.CaseID, *ledger.CaseID)
}

func TestProcessEmailIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.mailbox.add(emailMessage("AAMk1", "<m1@mail>"), map[string][]byte{"pasaporte.pdf": []byte("p")})

	first := h.intake.ProcessEmail(h.ctx, "AAMk1")
	require.True(t, first.Success)
	second := h.intake.ProcessEmail(h.ctx, "AAMk1")
	require.True(t, second.Success)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.CaseID, second.CaseID)
	assert.Equal(t, first.ProfileID, second.ProfileID)

	cases, err := h.repos.Cases.ListWithFilter(h.ctx, caseFilterAll())
	require.NoError(t, err)
	assert.Len(t, cases, 1)
	assert.Equal(t, 1, h.blobs.Len())
	_, baseDocs := h.documents(t, first)
	assert.Len(t, baseDocs, 1)
}

func TestProcessEmailDuplicateReportsPriorOutcome(t *testing.T) {
	h := newHarness(t)
	h.mailbox.add(emailMessage("AAMk1", "<m1@mail>"), nil)
	entry := &domain.ProcessedMessage{InternetMessageID: "<m1@mail>", ProviderMessageID: "AAMk1", Status: domain.ProcessedMessageInFlight}
	_, err := h.repos.ProcessedMessages.Insert(h.ctx, entry)
	require.NoError(t, err)

	inFlight := h.intake.ProcessEmail(h.ctx, "AAMk1")
	assert.Equal(t, OutcomeDuplicate, inFlight.Outcome)
	assert.Equal(t, domain.ProcessedMessageInFlight, inFlight.PriorOutcome)
	assert.Empty(t, inFlight.PriorError)

	require.NoError(t, h.guard.Complete(h.ctx, entry, nil, nil, "graph timeout"))
	failed := h.intake.ProcessEmail(h.ctx, "AAMk1")
	assert.Equal(t, OutcomeDuplicate, failed.Outcome)
	assert.Equal(t, domain.ProcessedMessageFailed, failed.PriorOutcome)
	assert.Equal(t, "graph timeout", failed.PriorError)
	assert.Empty(t, failed.CaseID)
}

func TestProcessEmailConcurrentDeliveries(t *testing.T) {
	h := newHarness(t)
	h.mailbox.add(emailMessage("AAMk1", "<m1@mail>"), map[string][]byte{"agenda.pdf": []byte("a")})

	const deliveries = 8
	results := make([]*IntakeResult, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.intake.ProcessEmail(h.ctx, "AAMk1")
		}(i)
	}
	wg.Wait()

	created := 0
	for _, r := range results {
		require.True(t, r.Success)
		if r.Outcome == OutcomeCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
	cases, err := h.repos.Cases.ListWithFilter(h.ctx, caseFilterAll())
	require.NoError(t, err)
	assert.Len(t, cases, 1)
	assert.Equal(t, 1, h.blobs.Len())
}

func TestProcessEmailPartialAttachments(t *testing.T) {
	h := newHarness(t)
	h.mailbox.add(emailMessage("AAMk1", "<m1@mail>"), map[string][]byte{
		"boleto.pdf":  []byte("ticket"),
		"agenda.pdf":  []byte("agenda"),
		"retrato.png": []byte("photo"),
	})
	h.mailbox.failures["AAMk1-agenda.pdf"] = errors.New("graph timeout")
	h.blobs.FailOn = func(pathname string) error {
		if strings.Contains(pathname, "/PHOTO/") {
			return errors.New("bucket unavailable")
		}
		return nil
	}

	res := h.intake.ProcessEmail(h.ctx, "AAMk1")
	require.True(t, res.Success)
	assert.Equal(t, OutcomePartial, res.Outcome)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, domain.DocumentKindTicket, res.Documents[0].Kind)
	require.Len(t, res.Failures, 2)
	failed := []string{res.Failures[0].Filename, res.Failures[1].Filename}
	assert.ElementsMatch(t, []string{"agenda.pdf", "retrato.png"}, failed)

	ledger, err := h.repos.ProcessedMessages.GetByInternetMessageID(h.ctx, "<m1@mail>")
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessedMessageOK, ledger.Status)
}

func TestProcessEmailAttachmentLimits(t *testing.T) {
	h := newHarness(t)
	msg := emailMessage("AAMk1", "<m1@mail>")
	h.mailbox.add(msg, map[string][]byte{"boleto.pdf": []byte("ticket")})
	h.mailbox.attachments["AAMk1"] = append(h.mailbox.attachments["AAMk1"],
		mailbox.Attachment{ID: "big", Name: "huge.pdf", Size: 2 << 20},
		mailbox.Attachment{ID: "inline", Name: "logo.png", IsInline: true, Size: 10},
		mailbox.Attachment{ID: "item", Name: "forwarded", ODataType: "#microsoft.graph.itemAttachment"},
	)

	res := h.intake.ProcessEmail(h.ctx, "AAMk1")
	require.True(t, res.Success)
	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Len(t, res.Documents, 1)
	require.Len(t, res.Failures, 2, "inline images are skipped silently")
}

func TestProcessEmailUpdatesReferencedCase(t *testing.T) {
	h := newHarness(t)
	h.mailbox.add(emailMessage("AAMk1", "<m1@mail>"), nil)
	first := h.intake.ProcessEmail(h.ctx, "AAMk1")
	require.True(t, first.Success)

	follow := &mailbox.Message{ID: "AAMk2", InternetMessageID: "<m2@mail>", Subject: "RE: CASE_ID=" + first.CaseID}
	follow.Body.Content = "Motivo: Cumbre regional\nEvento: Cumbre 2025\n"
	follow.From.EmailAddress.Address = "ana@agency.gov"
	h.mailbox.add(follow, map[string][]byte{"itinerario.pdf": []byte("i")})

	res := h.intake.ProcessEmail(h.ctx, "AAMk2")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, first.CaseID, res.CaseID)

	c, err := h.repos.Cases.GetByID(h.ctx, first.CaseID)
	require.NoError(t, err)
	assert.Equal(t, "Cumbre regional", *c.Reason)
	assert.Equal(t, "Cumbre 2025", *c.EventName)
	assert.Equal(t, "Madrid", *c.DestinationCity, "fields absent from the reply are kept")

	assert.Contains(t, h.auditActions(t, first.CaseID), domain.AuditCaseUpdated)
	assert.Len(t, h.pendingTasks(t, first.CaseID), 1)
}

func TestProcessEmailReferenceToForeignCaseOpensNewCase(t *testing.T) {
	h := newHarness(t)
	other := h.profile(t, "other@agency.gov")
	foreign, _ := h.newCase(t, other.ID)

	msg := emailMessage("AAMk1", "<m1@mail>")
	msg.Subject = "CASE_ID=" + foreign.ID
	h.mailbox.add(msg, nil)

	res := h.intake.ProcessEmail(h.ctx, "AAMk1")
	require.True(t, res.Success)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.NotEqual(t, foreign.ID, res.CaseID)
}

func TestProcessEmailFetchFailure(t *testing.T) {
	h := newHarness(t)
	res := h.intake.ProcessEmail(h.ctx, "missing")
	assert.False(t, res.Success)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.NotEmpty(t, res.Error)
}

func TestProcessIntakeEventDecodesGraphNotification(t *testing.T) {
	h := newHarness(t)
	h.mailbox.add(emailMessage("AAMkXYZ", "<n@mail>"), nil)

	payload := []byte(`{"resource":"Users/travel@agency.gov/Messages/AAMkXYZ","clientState":"s"}`)
	res := h.intake.ProcessIntakeEvent(h.ctx, domain.CaseSourceEmailAutomation, payload)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, OutcomeCreated, res.Outcome)

	bad := h.intake.ProcessIntakeEvent(h.ctx, domain.CaseSourceEmailAutomation, []byte("{"))
	assert.Equal(t, OutcomeFailed, bad.Outcome)

	unknown := h.intake.ProcessIntakeEvent(h.ctx, domain.CaseSource("FAX"), []byte("{}"))
	assert.Equal(t, OutcomeFailed, unknown.Outcome)
}

func TestEmailEventProviderMessageID(t *testing.T) {
	cases := map[string]EmailEvent{
		"direct": {MessageID: "direct"},
		"fromRD": {Resource: "ignored/x", ResourceData: struct {
			ID string `json:"id"`
		}{ID: "fromRD"}},
		"path":   {Resource: "Users/u/Messages/path"},
		"quoted": {Resource: "Users('u')/Messages('quoted')"},
	}
	for want, event := range cases {
		assert.Equal(t, want, event.ProviderMessageID())
	}
}

func publicRequest(token string) PublicRequest {
	return PublicRequest{
		ClientToken:        token,
		FirstName:          "Ana",
		LastName:           "Pérez",
		Email:              "ana@agency.gov",
		NationalID:         "001-1234567-8",
		DestinationCountry: "Chile",
		DestinationCity:    "Santiago",
		DepartureDate:      "2025-05-01",
		ReturnDate:         "2025-05-07",
		Reason:             "Training",
		Amount:             "2,300.50",
		CostCenter:         "CC-42",
		Files: []UploadedFile{
			{Filename: "scan.pdf", MediaType: "application/pdf", DeclaredKind: "passport", Data: []byte("pp")},
			{Filename: "carta.pdf", MediaType: "application/pdf", Data: []byte("letter")},
		},
	}
}

func TestSubmitPublicRequest(t *testing.T) {
	h := newHarness(t)
	res, err := h.intake.SubmitPublicRequest(h.ctx, publicRequest("tok-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.True(t, res.IsNew)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, domain.DocumentKindPassport, res.Documents[0].Kind, "declared kind wins")
	assert.True(t, res.Documents[0].Base)
	assert.Equal(t, domain.DocumentKindInvitationLetter, res.Documents[1].Kind, "classifier fallback")

	c, err := h.repos.Cases.GetByID(h.ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseSourcePublicForm, c.Source)
	assert.Equal(t, "tok-1", *c.ClientGeneratedID)
	assert.Equal(t, "CC-42", *c.CostCenter)
	assert.InDelta(t, 2300.5, *c.EstimatedAmount, 0.001)

	entries, err := h.repos.Audit.ListByCase(h.ctx, res.CaseID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, domain.AuditCaseCreated, last.Action)
	assert.Equal(t, 2, last.Detail["documents_count"])
	assert.Equal(t, true, last.Detail["is_new_profile"])
}

func TestSubmitPublicRequestTokenIsIdempotent(t *testing.T) {
	h := newHarness(t)
	first, err := h.intake.SubmitPublicRequest(h.ctx, publicRequest("tok-1"))
	require.NoError(t, err)
	blobs := h.blobs.Len()

	second, err := h.intake.SubmitPublicRequest(h.ctx, publicRequest("tok-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.CaseID, second.CaseID)
	assert.Equal(t, first.CaseNumber, second.CaseNumber)
	assert.Empty(t, second.Documents)
	assert.Equal(t, blobs, h.blobs.Len())

	caseDocs, baseDocs := h.documents(t, first)
	assert.Len(t, caseDocs, 1)
	assert.Len(t, baseDocs, 1)
}

func TestSubmitPublicRequestConcurrentTokenKeepsWinnerProfile(t *testing.T) {
	h := newHarness(t)

	const submissions = 8
	results := make([]*IntakeResult, submissions)
	errs := make([]error, submissions)
	var wg sync.WaitGroup
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := publicRequest("tok-race")
			req.Phone = fmt.Sprintf("809-555-000%d", i)
			req.JobTitle = fmt.Sprintf("Analyst %d", i)
			results[i], errs[i] = h.intake.SubmitPublicRequest(h.ctx, req)
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, r := range results {
		require.NoError(t, errs[i])
		if r.Outcome == OutcomeCreated {
			require.Equal(t, -1, winner, "only one submission may create the case")
			winner = i
			continue
		}
		assert.Equal(t, OutcomeDuplicate, r.Outcome)
		assert.Empty(t, r.Documents)
	}
	require.NotEqual(t, -1, winner)

	profile, err := h.repos.Profiles.GetByEmail(h.ctx, "ana@agency.gov")
	require.NoError(t, err)
	require.NotNil(t, profile.Phone)
	assert.Equal(t, fmt.Sprintf("809-555-000%d", winner), *profile.Phone)
	assert.Equal(t, fmt.Sprintf("Analyst %d", winner), *profile.JobTitle)

	cases, err := h.repos.Cases.ListWithFilter(h.ctx, caseFilterAll())
	require.NoError(t, err)
	assert.Len(t, cases, 1)

	ledger, err := h.repos.ProcessedMessages.GetByInternetMessageID(h.ctx, formTokenKey("tok-race"))
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessedMessageOK, ledger.Status)
	assert.Equal(t, results[winner].CaseID, *ledger.CaseID)
}

func TestSubmitPublicRequestInFlightTokenTouchesNothing(t *testing.T) {
	h := newHarness(t)
	inserted, err := h.repos.ProcessedMessages.Insert(h.ctx, &domain.ProcessedMessage{
		InternetMessageID: formTokenKey("tok-busy"),
		ProviderMessageID: "tok-busy",
		Status:            domain.ProcessedMessageInFlight,
	})
	require.NoError(t, err)
	require.True(t, inserted)

	res, err := h.intake.SubmitPublicRequest(h.ctx, publicRequest("tok-busy"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, domain.ProcessedMessageInFlight, res.PriorOutcome)
	assert.Empty(t, res.CaseID)

	_, err = h.repos.Profiles.GetByEmail(h.ctx, "ana@agency.gov")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 0, h.blobs.Len())
}

func TestSubmitPublicRequestFailedTokenConflicts(t *testing.T) {
	h := newHarness(t)
	entry := &domain.ProcessedMessage{
		InternetMessageID: formTokenKey("tok-failed"),
		ProviderMessageID: "tok-failed",
		Status:            domain.ProcessedMessageInFlight,
	}
	_, err := h.repos.ProcessedMessages.Insert(h.ctx, entry)
	require.NoError(t, err)
	require.NoError(t, h.guard.Complete(h.ctx, entry, nil, nil, "storage offline"))

	_, err = h.intake.SubmitPublicRequest(h.ctx, publicRequest("tok-failed"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = h.repos.Profiles.GetByEmail(h.ctx, "ana@agency.gov")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSubmitPublicRequestWithoutTokenCreatesEachTime(t *testing.T) {
	h := newHarness(t)
	first, err := h.intake.SubmitPublicRequest(h.ctx, publicRequest(""))
	require.NoError(t, err)
	second, err := h.intake.SubmitPublicRequest(h.ctx, publicRequest(""))
	require.NoError(t, err)
	assert.NotEqual(t, first.CaseID, second.CaseID)
	assert.Equal(t, first.ProfileID, second.ProfileID)
	assert.False(t, second.IsNew)
}

func TestSubmitPublicRequestValidation(t *testing.T) {
	h := newHarness(t)
	tests := map[string]func(*PublicRequest){
		"missing names":    func(r *PublicRequest) { r.FirstName, r.LastName = "", "" },
		"missing city":     func(r *PublicRequest) { r.DestinationCity = " " },
		"bad date":         func(r *PublicRequest) { r.DepartureDate = "2025-02-30" },
		"return before":    func(r *PublicRequest) { r.ReturnDate = "2025-04-01" },
		"bad amount":       func(r *PublicRequest) { r.Amount = "lots" },
		"email without at": func(r *PublicRequest) { r.Email = "ana" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := publicRequest("")
			mutate(&req)
			_, err := h.intake.SubmitPublicRequest(h.ctx, req)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
		})
	}
	cases, err := h.repos.Cases.ListWithFilter(h.ctx, caseFilterAll())
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestProcessIntakeEventPublicForm(t *testing.T) {
	h := newHarness(t)
	payload, err := json.Marshal(publicRequest("tok-json"))
	require.NoError(t, err)

	first := h.intake.ProcessIntakeEvent(h.ctx, domain.CaseSourcePublicForm, payload)
	require.True(t, first.Success, first.Error)
	second := h.intake.ProcessIntakeEvent(h.ctx, domain.CaseSourcePublicForm, payload)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.CaseID, second.CaseID)

	invalid := h.intake.ProcessIntakeEvent(h.ctx, domain.CaseSourcePublicForm, []byte(`{"first_name":"x"}`))
	assert.False(t, invalid.Success)
	assert.Equal(t, OutcomeFailed, invalid.Outcome)
}

func TestIntakeContinuesWhenAuditFails(t *testing.T) {
	h := newHarness(t)
	h.auditRepo.fail = true
	res, err := h.intake.SubmitPublicRequest(h.ctx, publicRequest("tok-audit"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
}

func TestCreateManualCase(t *testing.T) {
	h := newHarness(t)
	staff := h.staff(t, "analyst", domain.StaffRoleAnalyst)
	profile := h.profile(t, "ana@agency.gov")

	c, err := h.intake.CreateManualCase(h.ctx, staff, ManualCaseInput{ProfileID: profile.ID, DestinationCountry: "Peru", Currency: "pen"})
	require.NoError(t, err)
	assert.Equal(t, domain.CaseSourceManual, c.Source)
	assert.Equal(t, "PEN", c.Currency)
	assert.Equal(t, staff.ID, *c.CreatedByStaffID)

	entries, err := h.repos.Audit.ListByCase(h.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, staff.ID, *entries[0].ActorStaffID)

	_, err = h.intake.CreateManualCase(h.ctx, staff, ManualCaseInput{ProfileID: "missing"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
