package events

import (
	"time"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCaseCreated    EventType = "case_created"
	EventTaskResolved   EventType = "task_resolved"
	EventTaskAssigned   EventType = "task_assigned"
	EventDocumentStored EventType = "document_stored"
)

// Event represents a domain event emitted by services after the change it
// describes has been committed.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	CaseID       string    `json:"case_id,omitempty"`
	ProfileID    string    `json:"profile_id,omitempty"`
	ActorStaffID *string   `json:"actor_staff_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      any       `json:"payload"`
}

// CaseCreatedPayload payload.
type CaseCreatedPayload struct {
	CaseNumber string            `json:"case_number"`
	Source     domain.CaseSource `json:"source"`
	IsNew      bool              `json:"is_new_profile"`
}

// TaskResolvedPayload payload.
type TaskResolvedPayload struct {
	TaskID     string              `json:"task_id"`
	Step       domain.WorkflowStep `json:"step"`
	Action     domain.TaskAction   `json:"action"`
	CaseStatus domain.CaseStatus   `json:"case_status"`
	NextTaskID *string             `json:"next_task_id,omitempty"`
	Comment    string              `json:"comment,omitempty"`
}

// TaskAssignedPayload payload.
type TaskAssignedPayload struct {
	TaskID          string `json:"task_id"`
	AssigneeStaffID string `json:"assignee_staff_id"`
}

// DocumentStoredPayload payload.
type DocumentStoredPayload struct {
	DocumentID string              `json:"document_id"`
	Kind       domain.DocumentKind `json:"kind"`
	Pathname   string              `json:"pathname"`
}
