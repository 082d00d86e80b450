// Package domain holds the Transaction Record Store's entity: an
// append-only audit row per payment attempt (spec §3/§4.4).
package domain

import "time"

type Status string

const (
	Pending   Status = "PENDING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
)

// Transaction is owned by the Transaction Record Store. It never transitions
// out of a terminal state (I-T1).
type Transaction struct {
	ID                   string
	ReferenceNumber      string
	PaymentID            string
	ReservationID        string
	SourceAccountID      string
	DestinationAccountID string
	Amount               int64
	Currency             string
	Status               Status
	IdempotencyKey       string
	FailureReason        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	CompletedAt          *time.Time
}

func (t Transaction) IsTerminal() bool {
	return t.Status == Completed || t.Status == Failed
}
