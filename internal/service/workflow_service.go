package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/events"
	"github.com/spec-kit/travel-approval-service/internal/observability"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

// WorkflowService drives cases through the fixed approval sequence.
type WorkflowService struct {
	cases      repository.CaseRepository
	tasks      repository.TaskRepository
	staff      repository.StaffRepository
	audit      *AuditRecorder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// WorkflowDependencies bundles collaborators.
type WorkflowDependencies struct {
	CaseRepo   repository.CaseRepository
	TaskRepo   repository.TaskRepository
	StaffRepo  repository.StaffRepository
	Audit      *AuditRecorder
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewWorkflowService creates the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &WorkflowService{
		cases:      deps.CaseRepo,
		tasks:      deps.TaskRepo,
		staff:      deps.StaffRepo,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// CreateCase persists a new case in RECEIVED together with its first pending
// task. The caller records the CASE_CREATED audit entry.
func (s *WorkflowService) CreateCase(ctx context.Context, c *domain.Case) (*domain.Task, error) {
	c.Status = domain.CaseStatusReceived
	if strings.TrimSpace(c.Currency) == "" {
		c.Currency = domain.DefaultCurrency
	}
	first := domain.NewStepTask("", domain.FirstStep())
	if err := s.cases.CreateWithTask(ctx, c, first); err != nil {
		return nil, err
	}
	return first, nil
}

// ActionResult is the outcome of ApplyAction.
type ActionResult struct {
	Task       *domain.Task
	CaseStatus domain.CaseStatus
	NextTaskID *string
}

// ApplyAction resolves a pending task. The task update, the case status and
// the follow-up task are written in one conditional operation, so two
// concurrent actions on the same task cannot both succeed.
func (s *WorkflowService) ApplyAction(ctx context.Context, taskID, actorStaffID string, action domain.TaskAction, comment string) (*ActionResult, error) {
	if !action.Valid() {
		return nil, apperrors.NewValidationError("unknown action", map[string]any{"action": action})
	}
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, notFoundOr(err, "task", map[string]any{"task_id": taskID})
	}
	if task.Status != domain.TaskStatusPending {
		return nil, apperrors.NewInvalidState("task is not pending", map[string]any{"task_id": taskID, "status": task.Status})
	}
	if err := s.authorize(ctx, task, actorStaffID); err != nil {
		return nil, err
	}

	res := repository.TaskResolution{
		TaskID:      task.ID,
		CaseID:      task.CaseID,
		CompletedAt: s.now(),
	}
	var (
		auditAction domain.AuditAction
		detail      = map[string]any{"task_id": task.ID, "step": task.Step}
	)
	switch action {
	case domain.TaskActionReject:
		res.Status = domain.TaskStatusCancelled
		res.CaseStatus = domain.CaseStatusRejected
		auditAction = domain.AuditTaskRejected
	case domain.TaskActionRequestInfo:
		res.Status = domain.TaskStatusCancelled
		res.CaseStatus = domain.CaseStatusNeedsInfo
		res.Next = domain.NewStepTask(task.CaseID, domain.FirstStep())
		auditAction = domain.AuditTaskRequestInfo
	case domain.TaskActionApprove:
		res.Status = domain.TaskStatusCompleted
		if next, ok := domain.NextStep(task.Step); ok {
			res.CaseStatus = next.CaseStatus()
			res.Next = domain.NewStepTask(task.CaseID, next)
			auditAction = domain.AuditTaskApproved
			detail["from_step"] = task.Step
			detail["to_step"] = next
		} else {
			res.CaseStatus = domain.CaseStatusApproved
			auditAction = domain.AuditCaseApproved
		}
	}
	if comment = strings.TrimSpace(comment); comment != "" {
		detail["comment"] = comment
	}

	if err := s.tasks.Resolve(ctx, res); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, apperrors.NewInvalidState("task is not pending", map[string]any{"task_id": taskID})
		}
		return nil, notFoundOr(err, "case", map[string]any{"case_id": task.CaseID})
	}

	task.Status = res.Status
	task.CompletedAt = &res.CompletedAt
	result := &ActionResult{Task: task, CaseStatus: res.CaseStatus}
	if res.Next != nil {
		result.NextTaskID = strPtr(res.Next.ID)
		detail["next_task_id"] = res.Next.ID
	}
	s.metrics.RecordWorkflowAction(string(task.Step), string(action))
	s.logger.Info("task resolved",
		zap.String("task_id", task.ID),
		zap.String("case_id", task.CaseID),
		zap.String("action", string(action)),
		zap.String("case_status", string(res.CaseStatus)))

	if _, err := s.audit.Record(ctx, AuditRecord{
		Action:       auditAction,
		ActorStaffID: strPtr(actorStaffID),
		CaseID:       strPtr(task.CaseID),
		Detail:       detail,
	}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:         events.EventTaskResolved,
		CaseID:       task.CaseID,
		ActorStaffID: strPtr(actorStaffID),
		Payload: events.TaskResolvedPayload{
			TaskID:     task.ID,
			Step:       task.Step,
			Action:     action,
			CaseStatus: res.CaseStatus,
			NextTaskID: result.NextTaskID,
			Comment:    comment,
		},
	})
	return result, nil
}

// authorize requires the actor to be the task's assignee or to hold the
// task's role.
func (s *WorkflowService) authorize(ctx context.Context, task *domain.Task, actorStaffID string) error {
	denied := apperrors.NewUnauthorized("not allowed to act on this task", map[string]any{"task_id": task.ID})
	if actorStaffID == "" {
		return denied
	}
	actor, err := s.staff.GetByID(ctx, actorStaffID)
	if errors.Is(err, repository.ErrNotFound) {
		return denied
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	if !actor.Active {
		return denied
	}
	if task.AssignedStaffID != nil && *task.AssignedStaffID == actor.ID {
		return nil
	}
	if task.AssignedRole != nil && *task.AssignedRole == actor.Role {
		return nil
	}
	return denied
}

// ListMyTasks returns pending tasks assigned to the staff member directly or
// through their role.
func (s *WorkflowService) ListMyTasks(ctx context.Context, staff *domain.StaffMember) ([]domain.Task, error) {
	if staff == nil {
		return nil, apperrors.NewUnauthenticated("staff required")
	}
	tasks, err := s.tasks.ListPending(ctx, staff.ID, staff.Role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tasks, nil
}
