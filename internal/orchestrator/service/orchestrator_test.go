package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerflow/internal/apperr"
	"ledgerflow/internal/events"
	"ledgerflow/internal/ledger/rpc"
	"ledgerflow/internal/orchestrator/domain"
	"ledgerflow/internal/orchestrator/service"
	"ledgerflow/internal/orchestrator/store/memory"
	txrecordrpc "ledgerflow/internal/txrecord/rpc"
)

// fakeLedger is a hand-rolled test double for the Ledger's RPC Client,
// letting each saga step's failure be injected independently.
type fakeLedger struct {
	balances     map[string]int64
	reserveErr   error
	commitErr    error
	releaseErr   error
	creditErr    error
	reservations map[string]bool
	released     []string
	committed    []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:     map[string]int64{},
		reservations: map[string]bool{},
	}
}

func (f *fakeLedger) GetBalance(ctx context.Context, accountID string) (rpc.GetBalanceResponse, error) {
	if _, ok := f.balances[accountID]; !ok {
		return rpc.GetBalanceResponse{}, apperr.NotFoundf("account %s not found", accountID)
	}
	return rpc.GetBalanceResponse{Available: f.balances[accountID], Currency: "USD"}, nil
}

func (f *fakeLedger) ReserveBalance(ctx context.Context, accountID string, amount int64, currency, idempotencyKey string) (string, error) {
	if f.reserveErr != nil {
		return "", f.reserveErr
	}
	id := "res-" + idempotencyKey
	f.reservations[id] = true
	return id, nil
}

func (f *fakeLedger) CommitReservation(ctx context.Context, reservationID, transactionID string) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = append(f.committed, reservationID)
	return nil
}

func (f *fakeLedger) ReleaseReservation(ctx context.Context, reservationID, reason string) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.released = append(f.released, reservationID)
	return nil
}

func (f *fakeLedger) CreditBalance(ctx context.Context, accountID string, amount int64, currency, referenceID string) (int64, error) {
	if f.creditErr != nil {
		return 0, f.creditErr
	}
	f.balances[accountID] += amount
	return f.balances[accountID], nil
}

// fakeTxRecord is a hand-rolled test double for the Transaction Record
// Store's RPC Client.
type fakeTxRecord struct {
	createErr   error
	completeErr error
	failed      []string
	completed   []string
}

func (f *fakeTxRecord) CreateTransaction(ctx context.Context, paymentID, reservationID, sourceID, destinationID string, amount int64, currency, idempotencyKey string) (string, string, error) {
	if f.createErr != nil {
		return "", "", f.createErr
	}
	return "tx-" + idempotencyKey, "TX-REF-" + idempotencyKey, nil
}

func (f *fakeTxRecord) CompleteTransaction(ctx context.Context, transactionID string) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = append(f.completed, transactionID)
	return nil
}

func (f *fakeTxRecord) FailTransaction(ctx context.Context, transactionID, reason string) error {
	f.failed = append(f.failed, transactionID)
	return nil
}

var _ rpc.Client = (*fakeLedger)(nil)
var _ txrecordrpc.Client = (*fakeTxRecord)(nil)

func newOrchestrator(ledger *fakeLedger, txrecord *fakeTxRecord) (*service.Orchestrator, *memory.Store) {
	st := memory.New()
	return service.New(st, ledger, txrecord, events.NewNoOpPublisher()), st
}

func TestCreatePayment_ProbesBothAccounts(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["src"] = 1000
	ledger.balances["dst"] = 0
	o, _ := newOrchestrator(ledger, &fakeTxRecord{})

	p, err := o.CreatePayment(context.Background(), "src", "dst", 100, "USD")
	require.NoError(t, err)
	assert.Equal(t, domain.Pending, p.Status)
	assert.NotEmpty(t, p.IdempotencyKey)
}

func TestCreatePayment_RejectsSameAccount(t *testing.T) {
	o, _ := newOrchestrator(newFakeLedger(), &fakeTxRecord{})
	_, err := o.CreatePayment(context.Background(), "same", "same", 100, "USD")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.CategoryOf(err))
}

func TestCreatePayment_UnknownSourceAccount(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["dst"] = 0
	o, _ := newOrchestrator(ledger, &fakeTxRecord{})

	_, err := o.CreatePayment(context.Background(), "missing", "dst", 100, "USD")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.CategoryOf(err))
}

// TestProcessPayment_HappyPath covers end-to-end scenario 1: a full saga
// run lands the payment COMPLETED with the reservation committed and the
// transaction completed.
func TestProcessPayment_HappyPath(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["src"] = 1000
	ledger.balances["dst"] = 0
	txrecord := &fakeTxRecord{}
	o, st := newOrchestrator(ledger, txrecord)

	p, err := o.CreatePayment(context.Background(), "src", "dst", 100, "USD")
	require.NoError(t, err)

	processed, err := o.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Completed, processed.Status)
	assert.NotEmpty(t, processed.ReservationID)
	assert.NotEmpty(t, processed.TransactionID)
	require.NotNil(t, processed.ProcessedAt)

	assert.Len(t, ledger.committed, 1)
	assert.Len(t, txrecord.completed, 1)
	assert.Equal(t, int64(100), ledger.balances["dst"])

	stored, ok := st.GetPayment(p.ID)
	require.True(t, ok)
	assert.Equal(t, domain.Completed, stored.Status)
}

// TestProcessPayment_ReserveFails covers step 1 failure: no compensation is
// needed since nothing has happened yet, and the payment is marked FAILED.
func TestProcessPayment_ReserveFails(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["src"] = 1000
	ledger.balances["dst"] = 0
	ledger.reserveErr = apperr.FailedPreconditionf("insufficient funds")
	o, _ := newOrchestrator(ledger, &fakeTxRecord{})

	p, err := o.CreatePayment(context.Background(), "src", "dst", 100, "USD")
	require.NoError(t, err)

	processed, err := o.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Failed, processed.Status)
	assert.Contains(t, processed.FailureReason, "insufficient funds")
}

// TestProcessPayment_CreateTransactionFails_ReleasesReservation covers the
// step 2 compensation path: the reservation made in step 1 is released.
func TestProcessPayment_CreateTransactionFails_ReleasesReservation(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["src"] = 1000
	ledger.balances["dst"] = 0
	txrecord := &fakeTxRecord{createErr: apperr.Internalf("txrecord unreachable")}
	o, _ := newOrchestrator(ledger, txrecord)

	p, err := o.CreatePayment(context.Background(), "src", "dst", 100, "USD")
	require.NoError(t, err)

	processed, err := o.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Failed, processed.Status)
	assert.Len(t, ledger.released, 1)
}

// TestProcessPayment_CreditFails_FailsTransactionAndReleases covers the
// step 3 compensation path: both the transaction record and the
// reservation are rolled back.
func TestProcessPayment_CreditFails_FailsTransactionAndReleases(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["src"] = 1000
	ledger.balances["dst"] = 0
	ledger.creditErr = apperr.Internalf("ledger credit path down")
	txrecord := &fakeTxRecord{}
	o, _ := newOrchestrator(ledger, txrecord)

	p, err := o.CreatePayment(context.Background(), "src", "dst", 100, "USD")
	require.NoError(t, err)

	processed, err := o.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Failed, processed.Status)
	assert.Len(t, txrecord.failed, 1)
	assert.Len(t, ledger.released, 1)
}

// TestProcessPayment_CommitFails_PartialCommitAnomaly covers the
// distinguished anomaly of spec scenario 6: the credit already landed, so
// no further compensation is attempted and the failure reason carries the
// anomaly tag plus every id needed for reconciliation.
func TestProcessPayment_CommitFails_PartialCommitAnomaly(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["src"] = 1000
	ledger.balances["dst"] = 0
	ledger.commitErr = apperr.Internalf("connection dropped after credit")
	txrecord := &fakeTxRecord{}
	o, _ := newOrchestrator(ledger, txrecord)

	p, err := o.CreatePayment(context.Background(), "src", "dst", 100, "USD")
	require.NoError(t, err)

	processed, err := o.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Failed, processed.Status)
	assert.Contains(t, processed.FailureReason, domain.PartialCommitAnomaly)
	assert.Contains(t, processed.FailureReason, p.ID)
	assert.Contains(t, processed.FailureReason, processed.ReservationID)
	assert.Contains(t, processed.FailureReason, processed.TransactionID)
	// The credit already landed; nothing should have been released.
	assert.Empty(t, ledger.released)
	assert.Equal(t, int64(100), ledger.balances["dst"])
}

// TestCancelPayment_PendingWithoutReservation covers cancelling a PENDING
// payment: it becomes CANCELLED, and since no reservation was held yet no
// release call is made.
func TestCancelPayment_PendingWithoutReservation(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["src"] = 1000
	ledger.balances["dst"] = 0
	o, _ := newOrchestrator(ledger, &fakeTxRecord{})

	p, err := o.CreatePayment(context.Background(), "src", "dst", 100, "USD")
	require.NoError(t, err)

	cancelled, err := o.CancelPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Cancelled, cancelled.Status)
	assert.Empty(t, ledger.released, "no reservation was ever held, nothing to release")
}

func TestCancelPayment_RejectsCompleted(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["src"] = 1000
	ledger.balances["dst"] = 0
	o, _ := newOrchestrator(ledger, &fakeTxRecord{})

	p, err := o.CreatePayment(context.Background(), "src", "dst", 100, "USD")
	require.NoError(t, err)
	_, err = o.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = o.CancelPayment(context.Background(), p.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.CategoryOf(err))
}
