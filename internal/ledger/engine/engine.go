// Package engine implements the Ledger's reservation engine — the five
// operations of spec §4.3, each running inside exactly one Store
// transaction. This is the core of the two-phase reservation pattern: a
// PENDING reservation withholds funds from the *available* balance without
// moving money; CommitReservation is the only operation that debits the
// account.
package engine

import (
	"context"
	"errors"
	"time"

	"ledgerflow/internal/apperr"
	"ledgerflow/internal/ids"
	"ledgerflow/internal/ledger/domain"
	"ledgerflow/internal/ledger/store"
	"ledgerflow/internal/money"
	"ledgerflow/internal/telemetry"
)

// Engine is the Ledger's reservation engine, backed by any Store
// implementation (Postgres in production, memory in unit tests).
type Engine struct {
	store      store.Store
	defaultTTL time.Duration
}

func New(s store.Store, defaultTTL time.Duration) *Engine {
	return &Engine{store: s, defaultTTL: defaultTTL}
}

// Balance is the result of GetBalance: the account's available balance and
// its currency (spec §4.3).
type Balance struct {
	Available int64
	Currency  string
}

// GetBalance returns the account's available balance: balance minus the
// sum of its PENDING reservations.
func (e *Engine) GetBalance(ctx context.Context, accountID string) (Balance, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return Balance{}, apperr.Internalf("begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	acc, err := tx.LoadAccountForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			recordAndReturn("get_balance", apperr.NotFound)
			return Balance{}, apperr.NotFoundf("account %s not found", accountID)
		}
		return Balance{}, apperr.Internalf("load account: %v", err)
	}

	pending, err := tx.PendingReservationsTotal(ctx, accountID)
	if err != nil {
		return Balance{}, apperr.Internalf("sum pending reservations: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Balance{}, apperr.Internalf("commit: %v", err)
	}

	telemetry.RecordReservationOp("get_balance", "success")
	return Balance{
		Available: domain.AvailableBalance(acc.Balance, pending),
		Currency:  acc.Currency,
	}, nil
}

// ReserveBalance places a hold for amount on accountID, keyed by
// idempotencyKey. A duplicate key returns the original reservation's id
// regardless of its current status or of whether amount/currency/account
// match the original call — see spec §9 "Open questions" and §8 scenario 5.
func (e *Engine) ReserveBalance(ctx context.Context, accountID string, amount int64, currency string, idempotencyKey string) (reservationID string, err error) {
	if _, err := money.New(amount, currency); err != nil {
		recordAndReturn("reserve", apperr.InvalidArgument)
		return "", apperr.InvalidArgumentf("%v", err)
	}
	if idempotencyKey == "" {
		recordAndReturn("reserve", apperr.InvalidArgument)
		return "", apperr.InvalidArgumentf("idempotency_key is required")
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return "", apperr.Internalf("begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if existing, found, err := tx.FindReservationByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return "", apperr.Internalf("idempotency lookup: %v", err)
	} else if found {
		if err := tx.Commit(ctx); err != nil {
			return "", apperr.Internalf("commit: %v", err)
		}
		telemetry.RecordReservationOp("reserve", "idempotent_replay")
		return existing.ID, nil
	}

	acc, err := tx.LoadAccountForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			recordAndReturn("reserve", apperr.NotFound)
			return "", apperr.NotFoundf("account %s not found", accountID)
		}
		return "", apperr.Internalf("load account: %v", err)
	}

	if !acc.Active {
		recordAndReturn("reserve", apperr.FailedPrecondition)
		return "", apperr.FailedPreconditionf("account %s is inactive", accountID)
	}
	if acc.Currency != currency {
		recordAndReturn("reserve", apperr.InvalidArgument)
		return "", apperr.InvalidArgumentf("currency mismatch: account is %s, request is %s", acc.Currency, currency)
	}

	pending, err := tx.PendingReservationsTotal(ctx, accountID)
	if err != nil {
		return "", apperr.Internalf("sum pending reservations: %v", err)
	}

	available := domain.AvailableBalance(acc.Balance, pending)
	if available < amount {
		recordAndReturn("reserve", apperr.FailedPrecondition)
		return "", apperr.FailedPreconditionf("insufficient funds: available %d, requested %d", available, amount)
	}

	r := domain.Reservation{
		ID:             ids.New(),
		AccountID:      accountID,
		Amount:         amount,
		Currency:       currency,
		Status:         domain.Pending,
		IdempotencyKey: idempotencyKey,
		ExpiresAt:      time.Now().Add(e.defaultTTL),
		CreatedAt:      time.Now(),
	}

	if err := tx.InsertReservation(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicateIdempotencyKey) {
			// Lost the race against a concurrent caller using the same key;
			// the spec's idempotency contract still applies, so look the
			// winner up and return its id rather than erroring.
			existing, found, lookupErr := tx.FindReservationByIdempotencyKey(ctx, idempotencyKey)
			if lookupErr == nil && found {
				if err := tx.Commit(ctx); err != nil {
					return "", apperr.Internalf("commit: %v", err)
				}
				telemetry.RecordReservationOp("reserve", "idempotent_replay")
				return existing.ID, nil
			}
			recordAndReturn("reserve", apperr.AlreadyExists)
			return "", apperr.AlreadyExistsf("idempotency key %q collided", idempotencyKey)
		}
		return "", apperr.Internalf("insert reservation: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", apperr.Internalf("commit: %v", err)
	}

	telemetry.RecordReservationOp("reserve", "success")
	return r.ID, nil
}

// CommitReservation debits the reservation's account by its amount and
// transitions the reservation PENDING -> COMMITTED. This is the only
// operation that ever reduces an account's balance.
func (e *Engine) CommitReservation(ctx context.Context, reservationID string, transactionID string) error {
	if transactionID == "" {
		recordAndReturn("commit", apperr.InvalidArgument)
		return apperr.InvalidArgumentf("transaction_id is required")
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return apperr.Internalf("begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	r, err := tx.FindReservationByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			recordAndReturn("commit", apperr.NotFound)
			return apperr.NotFoundf("reservation %s not found", reservationID)
		}
		return apperr.Internalf("load reservation: %v", err)
	}

	if r.Status != domain.Pending {
		recordAndReturn("commit", apperr.FailedPrecondition)
		return apperr.FailedPreconditionf("reservation %s is %s, not PENDING", reservationID, r.Status)
	}

	acc, err := tx.LoadAccountForUpdate(ctx, r.AccountID)
	if err != nil {
		return apperr.Internalf("load account: %v", err)
	}

	newBalance := acc.Balance - r.Amount
	if newBalance < 0 {
		// Defensive guard: I-R1 + reservation accounting should make this
		// unreachable. Surfacing it as InsufficientFunds rather than a
		// panic keeps the failure in the ordinary error taxonomy.
		recordAndReturn("commit", apperr.FailedPrecondition)
		return apperr.FailedPreconditionf("commit would drive balance negative for account %s", r.AccountID)
	}

	acc.Balance = newBalance
	if err := tx.SaveAccount(ctx, acc); err != nil {
		return apperr.Internalf("save account: %v", err)
	}

	now := time.Now()
	r.Status = domain.Committed
	r.TransactionID = transactionID
	r.CommittedAt = &now
	if err := tx.SaveReservation(ctx, r); err != nil {
		return apperr.Internalf("save reservation: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Internalf("commit: %v", err)
	}

	telemetry.RecordReservationOp("commit", "success")
	return nil
}

// ReleaseReservation lifts a hold without moving any money: the funds were
// only withheld from *available*, never debited.
func (e *Engine) ReleaseReservation(ctx context.Context, reservationID string, reason string) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return apperr.Internalf("begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	r, err := tx.FindReservationByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			recordAndReturn("release", apperr.NotFound)
			return apperr.NotFoundf("reservation %s not found", reservationID)
		}
		return apperr.Internalf("load reservation: %v", err)
	}

	if r.Status != domain.Pending {
		recordAndReturn("release", apperr.FailedPrecondition)
		return apperr.FailedPreconditionf("reservation %s is %s, not PENDING", reservationID, r.Status)
	}

	now := time.Now()
	r.Status = domain.Released
	r.ReleaseReason = reason
	r.ReleasedAt = &now
	if err := tx.SaveReservation(ctx, r); err != nil {
		return apperr.Internalf("save reservation: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Internalf("commit: %v", err)
	}

	telemetry.RecordReservationOp("release", "success")
	return nil
}

// CreditBalance adds amount to accountID's balance. Not idempotent on
// referenceID by design — see spec §9, flagged as an anomaly to reconcile
// before production use, not a bug to silently fix here.
func (e *Engine) CreditBalance(ctx context.Context, accountID string, amount int64, currency string, referenceID string) (newBalance int64, err error) {
	if _, err := money.New(amount, currency); err != nil {
		recordAndReturn("credit", apperr.InvalidArgument)
		return 0, apperr.InvalidArgumentf("%v", err)
	}
	if referenceID == "" {
		recordAndReturn("credit", apperr.InvalidArgument)
		return 0, apperr.InvalidArgumentf("reference_id is required")
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return 0, apperr.Internalf("begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	acc, err := tx.LoadAccountForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			recordAndReturn("credit", apperr.NotFound)
			return 0, apperr.NotFoundf("account %s not found", accountID)
		}
		return 0, apperr.Internalf("load account: %v", err)
	}

	if !acc.Active {
		recordAndReturn("credit", apperr.FailedPrecondition)
		return 0, apperr.FailedPreconditionf("account %s is inactive", accountID)
	}
	if acc.Currency != currency {
		recordAndReturn("credit", apperr.InvalidArgument)
		return 0, apperr.InvalidArgumentf("currency mismatch: account is %s, request is %s", acc.Currency, currency)
	}

	acc.Balance += amount
	if err := tx.SaveAccount(ctx, acc); err != nil {
		return 0, apperr.Internalf("save account: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, apperr.Internalf("commit: %v", err)
	}

	telemetry.RecordReservationOp("credit", "success")
	return acc.Balance, nil
}

func recordAndReturn(operation string, category apperr.Category) {
	telemetry.RecordReservationOp(operation, string(category))
}
