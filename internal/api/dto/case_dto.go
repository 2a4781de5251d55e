package dto

import (
	"time"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// ManualCaseRequest payload for POST /cases. Dates use YYYY-MM-DD.
type ManualCaseRequest struct {
	ProfileID             string   `json:"profile_id"`
	DestinationCountry    string   `json:"destination_country"`
	DestinationCity       string   `json:"destination_city"`
	DepartureDate         string   `json:"departure_date"`
	ReturnDate            string   `json:"return_date"`
	Reason                string   `json:"reason"`
	EventName             string   `json:"event_name"`
	OrganizingInstitution string   `json:"organizing_institution"`
	EstimatedAmount       *float64 `json:"estimated_amount"`
	Currency              string   `json:"currency"`
	CostCenter            string   `json:"cost_center"`
	Notes                 string   `json:"notes"`
}

// CaseResponse summarizes a case.
type CaseResponse struct {
	ID                    string            `json:"id"`
	CaseNumber            string            `json:"case_number"`
	ProfileID             string            `json:"profile_id"`
	CreatedByStaffID      *string           `json:"created_by_staff_id,omitempty"`
	Source                domain.CaseSource `json:"source"`
	Status                domain.CaseStatus `json:"status"`
	DestinationCountry    *string           `json:"destination_country"`
	DestinationCity       *string           `json:"destination_city"`
	DepartureDate         *string           `json:"departure_date"`
	ReturnDate            *string           `json:"return_date"`
	Reason                *string           `json:"reason"`
	EventName             *string           `json:"event_name"`
	OrganizingInstitution *string           `json:"organizing_institution"`
	EstimatedAmount       *float64          `json:"estimated_amount"`
	Currency              string            `json:"currency"`
	CostCenter            *string           `json:"cost_center"`
	Notes                 *string           `json:"notes"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// CaseDetailResponse is a case with its profile, tasks, documents and trail.
type CaseDetailResponse struct {
	Case          CaseResponse         `json:"case"`
	Profile       ProfileResponse      `json:"profile"`
	Tasks         []TaskResponse       `json:"tasks"`
	Documents     []DocumentResponse   `json:"documents"`
	BaseDocuments []DocumentResponse   `json:"base_documents"`
	Audit         []AuditEntryResponse `json:"audit"`
}

// DocumentResponse describes a stored document.
type DocumentResponse struct {
	ID                   string              `json:"id"`
	ProfileID            *string             `json:"profile_id,omitempty"`
	CaseID               *string             `json:"case_id,omitempty"`
	Kind                 domain.DocumentKind `json:"kind"`
	OriginalFilename     string              `json:"original_filename"`
	MediaType            string              `json:"media_type"`
	SizeBytes            int64               `json:"size_bytes"`
	URL                  string              `json:"url"`
	Pathname             string              `json:"pathname"`
	ChecksumSHA256       string              `json:"checksum_sha256"`
	SourceEmailMessageID *string             `json:"source_email_message_id,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
}

// AuditEntryResponse is one trail entry.
type AuditEntryResponse struct {
	ID           string             `json:"id"`
	Action       domain.AuditAction `json:"action"`
	ActorStaffID *string            `json:"actor_staff_id"`
	CaseID       *string            `json:"case_id,omitempty"`
	ProfileID    *string            `json:"profile_id,omitempty"`
	Detail       map[string]any     `json:"detail"`
	CreatedAt    time.Time          `json:"created_at"`
}
