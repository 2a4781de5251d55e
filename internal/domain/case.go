package domain

import (
	"strings"
	"time"
)

// CaseStatus enumerates lifecycle states for a travel request.
type CaseStatus string

const (
	CaseStatusReceived        CaseStatus = "RECEIVED"
	CaseStatusDocsValidation  CaseStatus = "DOCS_VALIDATION"
	CaseStatusTechReview      CaseStatus = "TECH_REVIEW"
	CaseStatusManagerApproval CaseStatus = "MANAGER_APPROVAL"
	CaseStatusFinanceApproval CaseStatus = "FINANCE_APPROVAL"
	CaseStatusHRApproval      CaseStatus = "HR_APPROVAL"
	CaseStatusApproved        CaseStatus = "APPROVED"
	CaseStatusRejected        CaseStatus = "REJECTED"
	CaseStatusNeedsInfo       CaseStatus = "NEEDS_INFO"
	CaseStatusClosed          CaseStatus = "CLOSED"
)

// Terminal reports whether no further approval work happens in this status.
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusApproved || s == CaseStatusRejected || s == CaseStatusClosed
}

// CaseSource records how a case entered the system.
type CaseSource string

const (
	CaseSourceManual          CaseSource = "MANUAL"
	CaseSourcePublicForm      CaseSource = "PUBLIC_FORM"
	CaseSourceEmailAutomation CaseSource = "EMAIL_AUTOMATION"
)

// DefaultCurrency applies when a request does not state one.
const DefaultCurrency = "USD"

// Case is one travel-approval request owned by a single Profile.
type Case struct {
	ID                    string
	ProfileID             string
	CreatedByStaffID      *string
	Source                CaseSource
	Status                CaseStatus
	DestinationCountry    *string
	DestinationCity       *string
	DepartureDate         *time.Time
	ReturnDate            *time.Time
	Reason                *string
	EventName             *string
	OrganizingInstitution *string
	EstimatedAmount       *float64
	Currency              string
	CostCenter            *string
	Notes                 *string
	ClientGeneratedID     *string
	RawContent            *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CaseNumber is the public-facing identifier handed back to requesters.
func (c *Case) CaseNumber() string {
	return CaseNumberFor(c.ID)
}

// CaseNumberFor derives the public case number from a case id.
func CaseNumberFor(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "TRV-" + strings.ToUpper(short)
}
