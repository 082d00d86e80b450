// Package store declares the Ledger's storage capability sets, following
// the teacher's Repository-interface pattern
// (internal/infrastructure/database/repository.go): the engine is
// polymorphic over any implementation satisfying these interfaces, which is
// what lets unit tests run against an in-memory store instead of Postgres
// (DESIGN.md, "Per-module grounding").
package store

import (
	"context"

	"ledgerflow/internal/ledger/domain"
)

// ErrNotFound is returned by store lookups that find nothing, wrapped by
// callers into the apperr taxonomy.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

// ErrDuplicateIdempotencyKey is returned by InsertReservation when the idempotency key
// already has a row (spec §3 invariant I-R1, §4.2).
var ErrDuplicateIdempotencyKey = errDuplicateKey{}

type errDuplicateKey struct{}

func (errDuplicateKey) Error() string { return "duplicate idempotency key" }

// Tx is a unit of work spanning the Balance and Reservation stores. Every
// public Ledger engine operation opens exactly one Tx and commits before
// returning (spec §9 "Transaction boundary").
type Tx interface {
	// LoadAccountForUpdate loads an account row and, for store
	// implementations backed by a real database, locks it for the
	// duration of the transaction (spec §5 "Locking discipline").
	LoadAccountForUpdate(ctx context.Context, accountID string) (domain.Account, error)
	SaveAccount(ctx context.Context, acc domain.Account) error

	// PendingReservationsTotal sums PENDING reservation amounts for the
	// account, locked against concurrent reservations within this Tx
	// (spec §4.1, §5 "Isolation requirement").
	PendingReservationsTotal(ctx context.Context, accountID string) (int64, error)

	FindReservationByID(ctx context.Context, id string) (domain.Reservation, error)
	FindReservationByIdempotencyKey(ctx context.Context, key string) (domain.Reservation, bool, error)
	InsertReservation(ctx context.Context, r domain.Reservation) error
	SaveReservation(ctx context.Context, r domain.Reservation) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens transactions against the Balance + Reservation stores. A
// single serializable (or row-locked) transaction spans both, as spec §4.1
// requires.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}
