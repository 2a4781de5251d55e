package domain

import "time"

// AuditAction names a recorded state change.
type AuditAction string

const (
	AuditCaseCreated     AuditAction = "CASE_CREATED"
	AuditCaseUpdated     AuditAction = "CASE_UPDATED"
	AuditCaseApproved    AuditAction = "CASE_APPROVED"
	AuditTaskApproved    AuditAction = "TASK_APPROVED"
	AuditTaskRejected    AuditAction = "TASK_REJECTED"
	AuditTaskRequestInfo AuditAction = "TASK_REQUEST_INFO"
	AuditTaskAssigned    AuditAction = "TASK_ASSIGNED"
	AuditDocUploaded     AuditAction = "DOC_UPLOADED"
	AuditProfileUpserted AuditAction = "PROFILE_UPSERTED"
	AuditIntakeFailed    AuditAction = "INTAKE_FAILED"
)

// AuditEntry is an immutable trail entry. System actions carry no actor.
type AuditEntry struct {
	ID           string
	ActorStaffID *string
	CaseID       *string
	ProfileID    *string
	Action       AuditAction
	Detail       map[string]any
	CreatedAt    time.Time
}
