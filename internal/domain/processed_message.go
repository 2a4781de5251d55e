package domain

import "time"

// ProcessedMessageStatus tracks an inbound message through intake.
type ProcessedMessageStatus string

const (
	ProcessedMessageInFlight ProcessedMessageStatus = "IN_FLIGHT"
	ProcessedMessageOK       ProcessedMessageStatus = "OK"
	ProcessedMessageFailed   ProcessedMessageStatus = "FAILED"
)

// ProcessedMessage is one idempotency ledger row, keyed by the stable
// internet message id of an inbound email.
type ProcessedMessage struct {
	ID                string
	InternetMessageID string
	ProviderMessageID string
	Status            ProcessedMessageStatus
	Error             *string
	CaseID            *string
	ProfileID         *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
