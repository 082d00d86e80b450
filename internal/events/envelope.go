// Package events is the domain event publisher: two ordered streams
// (transaction events, payment events), adapted from the teacher's
// internal/infrastructure/messaging package to the envelope contract of
// spec §6.3 instead of the teacher's five banking-specific event types.
package events

import "time"

const EnvelopeVersion = "1.0"

// Transaction event types (spec §4.4/§4.5).
const (
	TransactionCreated   = "TRANSACTION_CREATED"
	TransactionCompleted = "TRANSACTION_COMPLETED"
	TransactionFailed    = "TRANSACTION_FAILED"
)

// Payment event types (spec §4.5/§4.6).
const (
	PaymentInitiated  = "PAYMENT_INITIATED"
	PaymentProcessing = "PAYMENT_PROCESSING"
	PaymentCompleted  = "PAYMENT_COMPLETED"
	PaymentFailed     = "PAYMENT_FAILED"
	PaymentCancelled  = "PAYMENT_CANCELLED"
)

// Envelope is the wire shape shared by both streams; unused fields for a
// given event kind are simply omitted (spec §6.3 field list covers both
// transaction_id|payment_id and transaction_type|payment_type pairs).
type Envelope struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	EventTimestamp time.Time `json:"event_timestamp"`
	EventVersion   string    `json:"event_version"`

	TransactionID string `json:"transaction_id,omitempty"`
	PaymentID     string `json:"payment_id,omitempty"`

	ReferenceNumber      string `json:"reference_number"`
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Amount               int64  `json:"amount"`
	Currency             string `json:"currency"`

	TransactionType   string `json:"transaction_type,omitempty"`
	PaymentType       string `json:"payment_type,omitempty"`
	TransactionStatus string `json:"transaction_status,omitempty"`
	PaymentStatus     string `json:"payment_status,omitempty"`

	ReservationID string `json:"reservation_id,omitempty"`
	Description   string `json:"description,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}
