// Package engine implements the Transaction Record Store's three
// operations (spec §4.4): an append-only audit trail for each payment
// attempt, publishing one event per transition.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerflow/internal/apperr"
	"ledgerflow/internal/events"
	"ledgerflow/internal/ids"
	"ledgerflow/internal/money"
	"ledgerflow/internal/telemetry"
	"ledgerflow/internal/txrecord/domain"
	"ledgerflow/internal/txrecord/store"
)

type Engine struct {
	store     store.Store
	publisher events.Publisher
}

func New(s store.Store, publisher events.Publisher) *Engine {
	return &Engine{store: s, publisher: publisher}
}

// CreateTransaction inserts a PENDING row and publishes TRANSACTION_CREATED.
// Idempotent on idempotencyKey: a retry returns the original transaction_id
// and reference_number rather than creating a second row.
func (e *Engine) CreateTransaction(ctx context.Context, paymentID, reservationID, source, destination string, amount int64, currency, idempotencyKey string) (transactionID, referenceNumber string, err error) {
	if _, err := money.New(amount, currency); err != nil {
		return "", "", apperr.InvalidArgumentf("%v", err)
	}
	if idempotencyKey == "" {
		return "", "", apperr.InvalidArgumentf("idempotency_key is required")
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return "", "", apperr.Internalf("begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if existing, found, err := tx.FindByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return "", "", apperr.Internalf("idempotency lookup: %v", err)
	} else if found {
		if err := tx.Commit(ctx); err != nil {
			return "", "", apperr.Internalf("commit: %v", err)
		}
		return existing.ID, existing.ReferenceNumber, nil
	}

	now := time.Now()
	rec := domain.Transaction{
		ID:                   ids.New(),
		ReferenceNumber:      newReferenceNumber(),
		PaymentID:            paymentID,
		ReservationID:        reservationID,
		SourceAccountID:      source,
		DestinationAccountID: destination,
		Amount:               amount,
		Currency:             currency,
		Status:               domain.Pending,
		IdempotencyKey:       idempotencyKey,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := tx.Insert(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateIdempotencyKey) {
			existing, found, lookupErr := tx.FindByIdempotencyKey(ctx, idempotencyKey)
			if lookupErr == nil && found {
				if err := tx.Commit(ctx); err != nil {
					return "", "", apperr.Internalf("commit: %v", err)
				}
				return existing.ID, existing.ReferenceNumber, nil
			}
			return "", "", apperr.AlreadyExistsf("idempotency key %q collided", idempotencyKey)
		}
		return "", "", apperr.Internalf("insert transaction: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", apperr.Internalf("commit: %v", err)
	}

	e.publish(rec, events.TransactionCreated, "")
	telemetry.RecordSagaStep("create_transaction", "success")
	return rec.ID, rec.ReferenceNumber, nil
}

// CompleteTransaction transitions PENDING -> COMPLETED and publishes
// TRANSACTION_COMPLETED.
func (e *Engine) CompleteTransaction(ctx context.Context, transactionID string) error {
	return e.transition(ctx, transactionID, domain.Completed, "", events.TransactionCompleted)
}

// FailTransaction transitions PENDING -> FAILED and publishes
// TRANSACTION_FAILED.
func (e *Engine) FailTransaction(ctx context.Context, transactionID, reason string) error {
	return e.transition(ctx, transactionID, domain.Failed, reason, events.TransactionFailed)
}

func (e *Engine) transition(ctx context.Context, transactionID string, to domain.Status, reason, eventType string) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return apperr.Internalf("begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	rec, err := tx.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundf("transaction %s not found", transactionID)
		}
		return apperr.Internalf("load transaction: %v", err)
	}

	if rec.IsTerminal() {
		return apperr.FailedPreconditionf("transaction %s is %s, not PENDING", transactionID, rec.Status)
	}

	now := time.Now()
	rec.Status = to
	rec.UpdatedAt = now
	rec.FailureReason = reason
	if to == domain.Completed {
		rec.CompletedAt = &now
	}

	if err := tx.Save(ctx, rec); err != nil {
		return apperr.Internalf("save transaction: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Internalf("commit: %v", err)
	}

	e.publish(rec, eventType, reason)
	return nil
}

func (e *Engine) publish(rec domain.Transaction, eventType, failureReason string) {
	env := events.Envelope{
		EventID:              ids.New(),
		EventType:            eventType,
		EventTimestamp:       time.Now().UTC(),
		EventVersion:         events.EnvelopeVersion,
		TransactionID:        rec.ID,
		ReferenceNumber:      rec.ReferenceNumber,
		SourceAccountID:      rec.SourceAccountID,
		DestinationAccountID: rec.DestinationAccountID,
		Amount:               rec.Amount,
		Currency:             rec.Currency,
		TransactionType:      "payment",
		TransactionStatus:    string(rec.Status),
		PaymentID:            rec.PaymentID,
		ReservationID:        rec.ReservationID,
		FailureReason:        failureReason,
	}
	if err := e.publisher.PublishTransactionEvent(env); err != nil {
		// Best-effort: event delivery failure does not roll back the
		// transaction row (spec §4.5 "payment correctness does not depend
		// on successful event delivery").
	}
}

func newReferenceNumber() string {
	return fmt.Sprintf("TX-%s", ids.New())
}
