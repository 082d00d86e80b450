package domain

import "time"

// ReservationStatus is the reservation state machine's current state
// (spec §3 "Reservation", invariant I-R2: PENDING is the only non-terminal
// state; it transitions only to COMMITTED or RELEASED, never back).
type ReservationStatus string

const (
	Pending   ReservationStatus = "PENDING"
	Committed ReservationStatus = "COMMITTED"
	Released  ReservationStatus = "RELEASED"
)

// Reservation is a hold placed against an account's available balance. It
// never moves money by itself; CommitReservation is what debits the
// account (spec §3, §4.3).
type Reservation struct {
	ID             string
	AccountID      string
	Amount         int64
	Currency       string
	Status         ReservationStatus
	IdempotencyKey string
	TransactionID  string
	ReleaseReason  string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	CommittedAt    *time.Time
	ReleasedAt     *time.Time
}

// IsTerminal reports whether the reservation has left PENDING (I-R2/I-R3).
func (r Reservation) IsTerminal() bool {
	return r.Status == Committed || r.Status == Released
}
