package dto

import (
	"time"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// TaskActionRequest payload for POST /tasks/:id/action.
type TaskActionRequest struct {
	Action  domain.TaskAction `json:"action"`
	Comment string            `json:"comment"`
}

// TaskAssignRequest payload for POST /tasks/:id/assign.
type TaskAssignRequest struct {
	StaffID string `json:"staff_id"`
}

// TaskResponse describes a workflow task.
type TaskResponse struct {
	ID              string              `json:"id"`
	CaseID          string              `json:"case_id"`
	CaseNumber      string              `json:"case_number"`
	Step            domain.WorkflowStep `json:"step"`
	Status          domain.TaskStatus   `json:"status"`
	AssignedStaffID *string             `json:"assigned_staff_id"`
	AssignedRole    *domain.StaffRole   `json:"assigned_role"`
	CreatedAt       time.Time           `json:"created_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
}

// TaskActionResponse reports the effect of an action.
type TaskActionResponse struct {
	Task       TaskResponse      `json:"task"`
	CaseStatus domain.CaseStatus `json:"case_status"`
	NextTaskID *string           `json:"next_task_id"`
}
