// Package service implements the Payment Orchestrator: the saga driver
// that holds the Payment record and coordinates the Ledger and Transaction
// Record collaborators (spec §4.6), the hardest single piece of logic in
// the system. The step table of §4.6 is expressed as the explicit
// domain.SagaStep enum plus a straight-line ProcessPayment method that
// hands each failing step's compensations to fail, in the idiom of the pack's saga coordinators
// (step name constants, one compensating action per step) rather than
// exception unwinding.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerflow/internal/apperr"
	ledgerrpc "ledgerflow/internal/ledger/rpc"
	"ledgerflow/internal/events"
	"ledgerflow/internal/ids"
	"ledgerflow/internal/logging"
	"ledgerflow/internal/money"
	"ledgerflow/internal/orchestrator/domain"
	"ledgerflow/internal/orchestrator/store"
	"ledgerflow/internal/telemetry"
	txrecordrpc "ledgerflow/internal/txrecord/rpc"
)

// Orchestrator drives the payment saga against a Ledger client, a
// Transaction Record client, an event publisher, and its own Payment
// store.
type Orchestrator struct {
	store     store.Store
	ledger    ledgerrpc.Client
	txrecord  txrecordrpc.Client
	publisher events.Publisher
}

func New(s store.Store, ledger ledgerrpc.Client, txrecord txrecordrpc.Client, publisher events.Publisher) *Orchestrator {
	return &Orchestrator{store: s, ledger: ledger, txrecord: txrecord, publisher: publisher}
}

// CreatePayment verifies both accounts exist, persists a new PENDING
// Payment with a fresh idempotency key, and emits PAYMENT_INITIATED.
func (o *Orchestrator) CreatePayment(ctx context.Context, source, destination string, amount int64, currency string) (domain.Payment, error) {
	if source == destination {
		return domain.Payment{}, apperr.InvalidArgumentf("source and destination accounts must differ")
	}
	if _, err := money.New(amount, currency); err != nil {
		return domain.Payment{}, apperr.InvalidArgumentf("%v", err)
	}

	if _, err := o.ledger.GetBalance(ctx, source); err != nil {
		return domain.Payment{}, classifyAccountProbe(err, source)
	}
	if _, err := o.ledger.GetBalance(ctx, destination); err != nil {
		return domain.Payment{}, classifyAccountProbe(err, destination)
	}

	now := time.Now()
	p := domain.Payment{
		ID:                   ids.New(),
		ReferenceNumber:      fmt.Sprintf("PAY-%s", ids.New()),
		SourceAccountID:      source,
		DestinationAccountID: destination,
		Amount:               amount,
		Currency:             currency,
		IdempotencyKey:       ids.New(),
		Status:               domain.Pending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := o.insert(ctx, p); err != nil {
		return domain.Payment{}, apperr.Internalf("persist payment: %v", err)
	}

	o.publishPayment(p, events.PaymentInitiated)
	return p, nil
}

func classifyAccountProbe(err error, accountID string) error {
	if apperr.CategoryOf(err) == apperr.NotFound {
		return apperr.NotFoundf("account %s not found", accountID)
	}
	return apperr.Wrap(apperr.CategoryOf(err), fmt.Sprintf("probe account %s", accountID), err)
}

// ProcessPayment runs the six-step saga of spec §4.6 against a PENDING
// payment. Every outbound call carries an idempotency key sourced from the
// Payment record itself, so a retried ProcessPayment on a PROCESSING-stuck
// record converges rather than duplicating side effects.
func (o *Orchestrator) ProcessPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	p, err := o.load(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if !p.CanProcess() {
		return domain.Payment{}, apperr.InvalidArgumentf("payment %s is %s, cannot process", paymentID, p.Status)
	}

	// Step 0: PENDING -> PROCESSING.
	p.Status = domain.Processing
	p.UpdatedAt = time.Now()
	if err := o.save(ctx, p); err != nil {
		return domain.Payment{}, apperr.Internalf("persist payment: %v", err)
	}
	telemetry.RecordSagaStep(domain.StepTransitionProcessing.String(), "success")
	o.publishPayment(p, events.PaymentProcessing)

	// Step 1: reserve funds on the source account.
	reservationID, err := o.ledger.ReserveBalance(ctx, p.SourceAccountID, p.Amount, p.Currency, p.IdempotencyKey)
	if err != nil {
		telemetry.RecordSagaStep(domain.StepReserveBalance.String(), "error")
		return o.fail(ctx, p, err.Error(), nil)
	}
	telemetry.RecordSagaStep(domain.StepReserveBalance.String(), "success")
	p.ReservationID = reservationID
	p.UpdatedAt = time.Now()
	if err := o.save(ctx, p); err != nil {
		return domain.Payment{}, apperr.Internalf("persist payment: %v", err)
	}

	// Step 2: record the transaction.
	transactionID, _, err := o.txrecord.CreateTransaction(ctx, p.ID, reservationID, p.SourceAccountID, p.DestinationAccountID, p.Amount, p.Currency, p.IdempotencyKey)
	if err != nil {
		telemetry.RecordSagaStep(domain.StepCreateTransaction.String(), "error")
		return o.fail(ctx, p, err.Error(), []compensation{
			{domain.StepReserveBalance, func() error {
				return o.ledger.ReleaseReservation(ctx, reservationID, "tx-create-failed")
			}},
		})
	}
	telemetry.RecordSagaStep(domain.StepCreateTransaction.String(), "success")
	p.TransactionID = transactionID
	p.UpdatedAt = time.Now()
	if err := o.save(ctx, p); err != nil {
		return domain.Payment{}, apperr.Internalf("persist payment: %v", err)
	}

	// Step 3: credit the destination account.
	if _, err := o.ledger.CreditBalance(ctx, p.DestinationAccountID, p.Amount, p.Currency, transactionID); err != nil {
		telemetry.RecordSagaStep(domain.StepCreditBalance.String(), "error")
		reason := err.Error()
		return o.fail(ctx, p, reason, []compensation{
			{domain.StepCreateTransaction, func() error { return o.txrecord.FailTransaction(ctx, transactionID, reason) }},
			{domain.StepReserveBalance, func() error { return o.ledger.ReleaseReservation(ctx, reservationID, reason) }},
		})
	}
	telemetry.RecordSagaStep(domain.StepCreditBalance.String(), "success")

	// Step 4: commit the reservation. A failure here is the "partial commit
	// anomaly" (§7): the credit already landed, so we must not attempt to
	// debit the destination back out or release a reservation that may
	// already be committed. We mark FAILED with the distinguished reason and
	// leave reconciliation to a retried CommitReservation against the same
	// transaction_id.
	if err := o.ledger.CommitReservation(ctx, reservationID, transactionID); err != nil {
		telemetry.RecordSagaStep(domain.StepCommitReservation.String(), "error")
		reason := fmt.Sprintf("%s: payment=%s reservation=%s transaction=%s: %v",
			domain.PartialCommitAnomaly, p.ID, reservationID, transactionID, err)
		p.Status = domain.Failed
		p.FailureReason = reason
		p.UpdatedAt = time.Now()
		if saveErr := o.save(ctx, p); saveErr != nil {
			return domain.Payment{}, apperr.Internalf("persist payment: %v", saveErr)
		}
		o.publishPayment(p, events.PaymentFailed)
		return p, nil
	}
	telemetry.RecordSagaStep(domain.StepCommitReservation.String(), "success")

	// Step 5: complete the transaction record and the payment.
	if err := o.txrecord.CompleteTransaction(ctx, transactionID); err != nil {
		telemetry.RecordSagaStep(domain.StepCompleteTransaction.String(), "error")
		// Best-effort per spec §4.6 step 5: log and leave the payment
		// PROCESSING rather than rolling back prior steps.
		logging.Warn("complete transaction failed, payment left PROCESSING", map[string]interface{}{
			"payment_id":     p.ID,
			"transaction_id": transactionID,
			"error":          err.Error(),
		})
		return p, nil
	}
	telemetry.RecordSagaStep(domain.StepCompleteTransaction.String(), "success")

	now := time.Now()
	p.Status = domain.Completed
	p.ProcessedAt = &now
	p.UpdatedAt = now
	if err := o.save(ctx, p); err != nil {
		return domain.Payment{}, apperr.Internalf("persist payment: %v", err)
	}
	o.publishPayment(p, events.PaymentCompleted)
	telemetry.PaymentAmountHistogram.Observe(float64(p.Amount))

	return p, nil
}

// CancelPayment transitions a PENDING or PROCESSING payment to CANCELLED,
// best-effort releasing any held reservation.
func (o *Orchestrator) CancelPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	p, err := o.load(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if !p.CanCancel() {
		return domain.Payment{}, apperr.InvalidArgumentf("payment %s is %s, cannot cancel", paymentID, p.Status)
	}

	if p.ReservationID != "" {
		if err := o.ledger.ReleaseReservation(ctx, p.ReservationID, "user cancellation"); err != nil {
			telemetry.RecordCompensation("release_on_cancel", "error")
			p.FailureReason = appendWarning(p.FailureReason, "release", err)
		} else {
			telemetry.RecordCompensation("release_on_cancel", "success")
		}
	}

	p.Status = domain.Cancelled
	p.UpdatedAt = time.Now()
	if err := o.save(ctx, p); err != nil {
		return domain.Payment{}, apperr.Internalf("persist payment: %v", err)
	}
	o.publishPayment(p, events.PaymentCancelled)
	return p, nil
}

// compensation is one best-effort rollback action tied to the step it
// undoes, run in reverse step order (spec §4.6 compensation table).
type compensation struct {
	step domain.SagaStep
	run  func() error
}

// fail runs every compensation once, best-effort, appending any compensation
// failure onto the failure reason (spec §4.6 "Compensation must be best-
// effort"), then marks the payment FAILED and emits PAYMENT_FAILED.
func (o *Orchestrator) fail(ctx context.Context, p domain.Payment, reason string, compensations []compensation) (domain.Payment, error) {
	p.FailureReason = reason
	for _, c := range compensations {
		if err := c.run(); err != nil {
			telemetry.RecordCompensation(c.step.String(), "error")
			p.FailureReason = appendWarning(p.FailureReason, c.step.String(), err)
		} else {
			telemetry.RecordCompensation(c.step.String(), "success")
		}
	}

	p.Status = domain.Failed
	p.UpdatedAt = time.Now()
	if err := o.save(ctx, p); err != nil {
		return domain.Payment{}, apperr.Internalf("persist payment: %v", err)
	}
	o.publishPayment(p, events.PaymentFailed)
	return p, nil
}

func appendWarning(reason, action string, err error) string {
	return fmt.Sprintf("%s (WARNING: failed to roll back %s: %v)", reason, action, err)
}

func (o *Orchestrator) load(ctx context.Context, id string) (domain.Payment, error) {
	tx, err := o.store.Begin(ctx)
	if err != nil {
		return domain.Payment{}, apperr.Internalf("begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	p, err := tx.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Payment{}, apperr.NotFoundf("payment %s not found", id)
		}
		return domain.Payment{}, apperr.Internalf("load payment: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Payment{}, apperr.Internalf("commit: %v", err)
	}
	return p, nil
}

func (o *Orchestrator) insert(ctx context.Context, p domain.Payment) error {
	tx, err := o.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := tx.Insert(ctx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (o *Orchestrator) save(ctx context.Context, p domain.Payment) error {
	tx, err := o.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := tx.Save(ctx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (o *Orchestrator) publishPayment(p domain.Payment, eventType string) {
	env := events.Envelope{
		EventID:              ids.New(),
		EventType:            eventType,
		EventTimestamp:       time.Now().UTC(),
		EventVersion:         events.EnvelopeVersion,
		PaymentID:            p.ID,
		ReferenceNumber:      p.ReferenceNumber,
		SourceAccountID:      p.SourceAccountID,
		DestinationAccountID: p.DestinationAccountID,
		Amount:               p.Amount,
		Currency:             p.Currency,
		PaymentType:          "transfer",
		PaymentStatus:        string(p.Status),
		ReservationID:        p.ReservationID,
		TransactionID:        p.TransactionID,
		FailureReason:        p.FailureReason,
	}
	_ = o.publisher.PublishPaymentEvent(env)
}
