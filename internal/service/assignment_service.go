package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/events"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

// AssignmentService routes pending tasks from a role queue to a person.
type AssignmentService struct {
	tasks      repository.TaskRepository
	staff      repository.StaffRepository
	audit      *AuditRecorder
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TaskRepo   repository.TaskRepository
	StaffRepo  repository.StaffRepository
	Audit      *AuditRecorder
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AssignmentService{
		tasks:      deps.TaskRepo,
		staff:      deps.StaffRepo,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// ClaimTask assigns a pending task to the acting staff member, who must hold
// the task's role.
func (s *AssignmentService) ClaimTask(ctx context.Context, actor *domain.StaffMember, taskID string) (*domain.Task, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("staff required")
	}
	task, err := s.pendingTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !holdsTaskRole(actor, task) {
		return nil, apperrors.NewUnauthorized("task is routed to another role", map[string]any{"task_id": taskID})
	}
	return s.assign(ctx, actor.ID, task, actor)
}

// AssignTask assigns a pending task to another staff member (MANAGER/ADMIN).
// The assignee must be active and hold the task's role.
func (s *AssignmentService) AssignTask(ctx context.Context, actor *domain.StaffMember, taskID, assigneeStaffID string) (*domain.Task, error) {
	if err := requireAssignPriv(actor); err != nil {
		return nil, err
	}
	assignee, err := s.staff.GetByID(ctx, assigneeStaffID)
	if err != nil {
		return nil, notFoundOr(err, "staff", map[string]any{"staff_id": assigneeStaffID})
	}
	if !assignee.Active {
		return nil, apperrors.NewConflict("assignee inactive", map[string]any{"staff_id": assigneeStaffID})
	}
	task, err := s.pendingTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !holdsTaskRole(assignee, task) {
		return nil, apperrors.NewValidationError("assignee does not hold the task's role", map[string]any{
			"staff_id": assigneeStaffID,
			"role":     task.Step.Role(),
		})
	}
	return s.assign(ctx, actor.ID, task, assignee)
}

// AutoAssignTask picks an active holder of the task's role. The choice is
// stable for a given task so retries land on the same person.
func (s *AssignmentService) AutoAssignTask(ctx context.Context, actor *domain.StaffMember, taskID string) (*domain.Task, error) {
	if err := requireAssignPriv(actor); err != nil {
		return nil, err
	}
	task, err := s.pendingTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	role := task.Step.Role()
	staffList, err := s.staff.List(ctx, repository.StaffFilter{Role: &role, Active: ptrBool(true), Limit: 1000})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(staffList) == 0 {
		return nil, apperrors.NewConflict("no eligible staff for role", map[string]any{"role": role})
	}
	sort.Slice(staffList, func(i, j int) bool {
		if !staffList[i].CreatedAt.Equal(staffList[j].CreatedAt) {
			return staffList[i].CreatedAt.Before(staffList[j].CreatedAt)
		}
		return staffList[i].ID < staffList[j].ID
	})
	assignee := staffList[selectIndex(task.ID, len(staffList))]
	return s.assign(ctx, actor.ID, task, &assignee)
}

func (s *AssignmentService) pendingTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, notFoundOr(err, "task", map[string]any{"task_id": taskID})
	}
	if task.Status != domain.TaskStatusPending {
		return nil, apperrors.NewInvalidState("task is not pending", map[string]any{"task_id": taskID, "status": task.Status})
	}
	return task, nil
}

func (s *AssignmentService) assign(ctx context.Context, actorID string, task *domain.Task, assignee *domain.StaffMember) (*domain.Task, error) {
	previous := task.AssignedStaffID
	updated, err := s.tasks.Assign(ctx, task.ID, assignee.ID)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, apperrors.NewInvalidState("task is not pending", map[string]any{"task_id": task.ID})
		}
		return nil, notFoundOr(err, "task", map[string]any{"task_id": task.ID})
	}
	s.logger.Info("task assigned",
		zap.String("task_id", task.ID),
		zap.String("case_id", task.CaseID),
		zap.String("assignee_staff_id", assignee.ID))

	if _, err := s.audit.Record(ctx, AuditRecord{
		Action:       domain.AuditTaskAssigned,
		ActorStaffID: strPtr(actorID),
		CaseID:       strPtr(task.CaseID),
		Detail: map[string]any{
			"task_id":       task.ID,
			"step":          task.Step,
			"old_assignee":  previous,
			"new_assignee":  assignee.ID,
			"assignee_role": assignee.Role,
		},
	}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:         events.EventTaskAssigned,
		CaseID:       task.CaseID,
		ActorStaffID: strPtr(actorID),
		Payload: events.TaskAssignedPayload{
			TaskID:          task.ID,
			AssigneeStaffID: assignee.ID,
		},
	})
	return updated, nil
}

func holdsTaskRole(staff *domain.StaffMember, task *domain.Task) bool {
	if staff == nil || !staff.Active {
		return false
	}
	if task.AssignedRole != nil {
		return *task.AssignedRole == staff.Role
	}
	return task.Step.Role() == staff.Role
}

func selectIndex(key string, length int) int {
	if length == 0 {
		return 0
	}
	sum := 0
	for _, ch := range key {
		sum += int(ch)
	}
	return sum % length
}

func ptrBool(v bool) *bool {
	return &v
}

func requireAssignPriv(staff *domain.StaffMember) error {
	if staff == nil {
		return apperrors.NewUnauthenticated("staff required")
	}
	if staff.Role != domain.StaffRoleManager && staff.Role != domain.StaffRoleAdmin {
		return apperrors.NewForbidden("insufficient role for assignment")
	}
	return nil
}
