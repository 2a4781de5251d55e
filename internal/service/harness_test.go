package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/travel-approval-service/internal/blob"
	"github.com/spec-kit/travel-approval-service/internal/config"
	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/events"
	"github.com/spec-kit/travel-approval-service/internal/mailbox"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	"github.com/spec-kit/travel-approval-service/internal/repository/memory"
)

// fakeMailbox serves canned messages and attachments.
type fakeMailbox struct {
	mu          sync.Mutex
	messages    map[string]*mailbox.Message
	attachments map[string][]mailbox.Attachment
	content     map[string][]byte
	failures    map[string]error
	fetches     int
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		messages:    map[string]*mailbox.Message{},
		attachments: map[string][]mailbox.Attachment{},
		content:     map[string][]byte{},
		failures:    map[string]error{},
	}
}

func (f *fakeMailbox) add(msg *mailbox.Message, files map[string][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.ID] = msg
	for name, data := range files {
		attID := fmt.Sprintf("%s-%s", msg.ID, name)
		f.attachments[msg.ID] = append(f.attachments[msg.ID], mailbox.Attachment{
			ID:          attID,
			Name:        name,
			ContentType: "application/octet-stream",
			Size:        int64(len(data)),
		})
		f.content[attID] = data
	}
	msg.HasAttachments = len(files) > 0
}

func (f *fakeMailbox) GetMessage(_ context.Context, id string) (*mailbox.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	msg, ok := f.messages[id]
	if !ok {
		return nil, &mailbox.APIError{Status: 404, Code: "ErrorItemNotFound"}
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeMailbox) ListAttachments(_ context.Context, id string) ([]mailbox.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailbox.Attachment(nil), f.attachments[id]...), nil
}

func (f *fakeMailbox) DownloadAttachment(_ context.Context, _, attachmentID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[attachmentID]; err != nil {
		return nil, err
	}
	return f.content[attachmentID], nil
}

// failingAudit wraps an audit repository and fails every write when on.
type failingAudit struct {
	repository.AuditRepository
	fail bool
}

func (f *failingAudit) Create(ctx context.Context, entry *domain.AuditEntry) error {
	if f.fail {
		return fmt.Errorf("audit store unavailable")
	}
	return f.AuditRepository.Create(ctx, entry)
}

type harness struct {
	ctx        context.Context
	repos      repository.Repositories
	auditRepo  *failingAudit
	blobs      *blob.MemoryStore
	mailbox    *fakeMailbox
	dispatcher events.Dispatcher
	published  *eventLog

	audit      *AuditRecorder
	identity   *IdentityService
	guard      *IdempotencyGuard
	workflow   *WorkflowService
	assignment *AssignmentService
	intake     *IntakeService
	cases      *CaseService
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) count(t events.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ctx:        context.Background(),
		repos:      memory.NewStore().Repositories(),
		blobs:      blob.NewMemoryStore(""),
		mailbox:    newFakeMailbox(),
		dispatcher: events.NewInMemoryDispatcher(),
		published:  &eventLog{},
	}
	for _, et := range []events.EventType{events.EventCaseCreated, events.EventTaskResolved, events.EventTaskAssigned, events.EventDocumentStored} {
		h.dispatcher.Subscribe(et, h.published.record)
	}
	h.auditRepo = &failingAudit{AuditRepository: h.repos.Audit}
	h.audit = NewAuditRecorder(h.auditRepo, nil)
	h.identity = NewIdentityService(IdentityDependencies{ProfileRepo: h.repos.Profiles})
	h.guard = NewIdempotencyGuard(h.repos.ProcessedMessages, nil)
	h.workflow = NewWorkflowService(WorkflowDependencies{
		CaseRepo:   h.repos.Cases,
		TaskRepo:   h.repos.Tasks,
		StaffRepo:  h.repos.Staff,
		Audit:      h.audit,
		Dispatcher: h.dispatcher,
	})
	h.assignment = NewAssignmentService(AssignmentDependencies{
		TaskRepo:   h.repos.Tasks,
		StaffRepo:  h.repos.Staff,
		Audit:      h.audit,
		Dispatcher: h.dispatcher,
	})
	h.intake = NewIntakeService(IntakeDependencies{
		Identity:     h.identity,
		Guard:        h.guard,
		Workflow:     h.workflow,
		Audit:        h.audit,
		CaseRepo:     h.repos.Cases,
		DocumentRepo: h.repos.Documents,
		Mailbox:      h.mailbox,
		Blobs:        h.blobs,
		Dispatcher:   h.dispatcher,
		Config:       config.IntakeConfig{MaxAttachmentBytes: 1 << 20, MaxAttachments: 5},
	})
	h.cases = NewCaseService(CaseDependencies{
		CaseRepo:     h.repos.Cases,
		TaskRepo:     h.repos.Tasks,
		DocumentRepo: h.repos.Documents,
		ProfileRepo:  h.repos.Profiles,
		AuditRepo:    h.repos.Audit,
		Identity:     h.identity,
		Audit:        h.audit,
	})
	return h
}

func (h *harness) staff(t *testing.T, name string, role domain.StaffRole) *domain.StaffMember {
	t.Helper()
	m := &domain.StaffMember{Name: name, Email: name + "@agency.gov", Role: role, Active: true}
	require.NoError(t, h.repos.Staff.Create(h.ctx, m))
	return m
}

func (h *harness) profile(t *testing.T, email string) *domain.Profile {
	t.Helper()
	res, err := h.identity.Resolve(h.ctx, IdentityCandidate{Email: email, FirstName: "Ana", LastName: "Pérez"})
	require.NoError(t, err)
	return res.Profile
}

// newCase opens a case and returns it with its first task.
func (h *harness) newCase(t *testing.T, profileID string) (*domain.Case, *domain.Task) {
	t.Helper()
	c := &domain.Case{ProfileID: profileID, Source: domain.CaseSourceManual}
	task, err := h.workflow.CreateCase(h.ctx, c)
	require.NoError(t, err)
	return c, task
}

func (h *harness) pendingTasks(t *testing.T, caseID string) []domain.Task {
	t.Helper()
	tasks, err := h.repos.Tasks.ListByCase(h.ctx, caseID)
	require.NoError(t, err)
	var pending []domain.Task
	for _, task := range tasks {
		if task.Status == domain.TaskStatusPending {
			pending = append(pending, task)
		}
	}
	return pending
}

func (h *harness) auditActions(t *testing.T, caseID string) []domain.AuditAction {
	t.Helper()
	entries, err := h.repos.Audit.ListByCase(h.ctx, caseID)
	require.NoError(t, err)
	actions := make([]domain.AuditAction, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}
