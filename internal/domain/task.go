package domain

import "time"

// WorkflowStep is a position in the fixed approval sequence.
type WorkflowStep string

const (
	StepDocsValidation  WorkflowStep = "DOCS_VALIDATION"
	StepTechReview      WorkflowStep = "TECH_REVIEW"
	StepManagerApproval WorkflowStep = "MANAGER_APPROVAL"
	StepFinanceApproval WorkflowStep = "FINANCE_APPROVAL"
	StepHRApproval      WorkflowStep = "HR_APPROVAL"
)

// WorkflowSteps is the approval order every case walks through.
var WorkflowSteps = []WorkflowStep{
	StepDocsValidation,
	StepTechReview,
	StepManagerApproval,
	StepFinanceApproval,
	StepHRApproval,
}

var stepRoles = map[WorkflowStep]StaffRole{
	StepDocsValidation:  StaffRoleAnalyst,
	StepTechReview:      StaffRoleAnalyst,
	StepManagerApproval: StaffRoleManager,
	StepFinanceApproval: StaffRoleFinance,
	StepHRApproval:      StaffRoleHR,
}

var stepStatuses = map[WorkflowStep]CaseStatus{
	StepDocsValidation:  CaseStatusDocsValidation,
	StepTechReview:      CaseStatusTechReview,
	StepManagerApproval: CaseStatusManagerApproval,
	StepFinanceApproval: CaseStatusFinanceApproval,
	StepHRApproval:      CaseStatusHRApproval,
}

// FirstStep is where new and returned cases start.
func FirstStep() WorkflowStep {
	return WorkflowSteps[0]
}

// NextStep returns the step after s, or false when s is the last one.
func NextStep(s WorkflowStep) (WorkflowStep, bool) {
	for i, step := range WorkflowSteps {
		if step == s && i+1 < len(WorkflowSteps) {
			return WorkflowSteps[i+1], true
		}
	}
	return "", false
}

// Valid reports whether s is part of the approval sequence.
func (s WorkflowStep) Valid() bool {
	_, ok := stepRoles[s]
	return ok
}

// Role returns the role responsible for the step.
func (s WorkflowStep) Role() StaffRole {
	return stepRoles[s]
}

// CaseStatus returns the case status that corresponds to the step.
func (s WorkflowStep) CaseStatus() CaseStatus {
	return stepStatuses[s]
}

// TaskStatus enumerates task lifecycle states.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// TaskAction is a staff decision on a pending task.
type TaskAction string

const (
	TaskActionApprove     TaskAction = "APPROVE"
	TaskActionReject      TaskAction = "REJECT"
	TaskActionRequestInfo TaskAction = "REQUEST_INFO"
)

// Valid reports whether a is a known task action.
func (a TaskAction) Valid() bool {
	switch a {
	case TaskActionApprove, TaskActionReject, TaskActionRequestInfo:
		return true
	}
	return false
}

// Task is one unit of approval work at a single step of one case.
// At least one of AssignedStaffID and AssignedRole is set.
type Task struct {
	ID              string
	CaseID          string
	Step            WorkflowStep
	Status          TaskStatus
	AssignedStaffID *string
	AssignedRole    *StaffRole
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// NewStepTask builds the pending task for a step, routed to the step's role.
func NewStepTask(caseID string, step WorkflowStep) *Task {
	role := step.Role()
	return &Task{
		CaseID:       caseID,
		Step:         step,
		Status:       TaskStatusPending,
		AssignedRole: &role,
	}
}
