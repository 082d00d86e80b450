// Package domain holds the Payment Orchestrator's entity: the one record
// that advances through the saga (spec §3/§4.6).
package domain

import "time"

type Status string

const (
	Pending    Status = "PENDING"
	Processing Status = "PROCESSING"
	Completed  Status = "COMPLETED"
	Failed     Status = "FAILED"
	Cancelled  Status = "CANCELLED"
)

// Payment is owned by the Payment Orchestrator. IdempotencyKey is the
// single source of every idempotency key threaded through the saga's
// outbound calls (DESIGN.md, the internal/pkg/idempotency entry under
// "Dropped teacher code") — it is generated once at
// CreatePayment and never regenerated per attempt.
type Payment struct {
	ID                   string
	ReferenceNumber      string
	SourceAccountID      string
	DestinationAccountID string
	Amount               int64
	Currency             string
	IdempotencyKey       string
	Status               Status
	ReservationID        string
	TransactionID        string
	FailureReason        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ProcessedAt          *time.Time
}

func (p Payment) IsTerminal() bool {
	return p.Status == Completed || p.Status == Cancelled
}

// CanProcess reports whether ProcessPayment may run against p (spec §4.6
// precondition: status=PENDING).
func (p Payment) CanProcess() bool {
	return p.Status == Pending
}

// CanCancel reports whether CancelPayment may run against p (spec §4.6:
// allowed from PENDING or PROCESSING).
func (p Payment) CanCancel() bool {
	return p.Status == Pending || p.Status == Processing
}
