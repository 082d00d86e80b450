package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerflow/internal/apperr"
	"ledgerflow/internal/ledger/domain"
	"ledgerflow/internal/ledger/engine"
	"ledgerflow/internal/ledger/store/memory"
)

func newEngine() (*engine.Engine, *memory.Store) {
	st := memory.New()
	return engine.New(st, 15*time.Minute), st
}

func seedAccount(st *memory.Store, id, currency string, balance int64) {
	st.PutAccount(domain.Account{ID: id, Currency: currency, Balance: balance, Active: true})
}

func TestReserveBalance_InsufficientFunds(t *testing.T) {
	e, st := newEngine()
	seedAccount(st, "acct-1", "USD", 100)

	_, err := e.ReserveBalance(context.Background(), "acct-1", 500, "USD", "idem-1")
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.FailedPrecondition, appErr.Category)
}

func TestReserveBalance_AccountNotFound(t *testing.T) {
	e, _ := newEngine()
	_, err := e.ReserveBalance(context.Background(), "missing", 10, "USD", "idem-1")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.CategoryOf(err))
}

func TestReserveBalance_CurrencyMismatch(t *testing.T) {
	e, st := newEngine()
	seedAccount(st, "acct-1", "EUR", 1000)

	_, err := e.ReserveBalance(context.Background(), "acct-1", 10, "USD", "idem-1")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.CategoryOf(err))
}

// TestReserveBalance_IdempotentRetry covers L-IDEM: retrying with the same
// idempotency key returns the original reservation id and never places a
// second hold against the account.
func TestReserveBalance_IdempotentRetry(t *testing.T) {
	e, st := newEngine()
	seedAccount(st, "acct-1", "USD", 1000)

	first, err := e.ReserveBalance(context.Background(), "acct-1", 100, "USD", "idem-1")
	require.NoError(t, err)

	second, err := e.ReserveBalance(context.Background(), "acct-1", 999, "USD", "idem-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	pending, _ := st.GetReservation(first)
	assert.Equal(t, int64(100), pending.Amount)

	balance, err := e.GetBalance(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance.Available)
}

func TestReserveBalance_HoldsAgainstAvailableNotBalance(t *testing.T) {
	e, st := newEngine()
	seedAccount(st, "acct-1", "USD", 1000)

	_, err := e.ReserveBalance(context.Background(), "acct-1", 600, "USD", "idem-1")
	require.NoError(t, err)

	_, err = e.ReserveBalance(context.Background(), "acct-1", 500, "USD", "idem-2")
	require.Error(t, err)
	assert.Equal(t, apperr.FailedPrecondition, apperr.CategoryOf(err))
}

// TestCommitReservation_DebitsOnlyOnce covers L-COMMIT-ONCE: a reservation
// can only ever be committed once; retrying after it has already left
// PENDING is rejected rather than double-debiting.
func TestCommitReservation_DebitsOnlyOnce(t *testing.T) {
	e, st := newEngine()
	seedAccount(st, "acct-1", "USD", 1000)

	reservationID, err := e.ReserveBalance(context.Background(), "acct-1", 400, "USD", "idem-1")
	require.NoError(t, err)

	require.NoError(t, e.CommitReservation(context.Background(), reservationID, "tx-1"))

	acc, _ := st.GetAccount("acct-1")
	assert.Equal(t, int64(600), acc.Balance)

	err = e.CommitReservation(context.Background(), reservationID, "tx-2")
	require.Error(t, err)
	assert.Equal(t, apperr.FailedPrecondition, apperr.CategoryOf(err))

	acc, _ = st.GetAccount("acct-1")
	assert.Equal(t, int64(600), acc.Balance, "second commit must not debit again")
}

func TestCommitReservation_NotFound(t *testing.T) {
	e, _ := newEngine()
	err := e.CommitReservation(context.Background(), "missing", "tx-1")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.CategoryOf(err))
}

// TestReleaseReservation_NeverMovesFunds covers L-RELEASE-NO-FUNDS: a
// release only lifts the hold; the account's balance is untouched and the
// amount becomes available again.
func TestReleaseReservation_NeverMovesFunds(t *testing.T) {
	e, st := newEngine()
	seedAccount(st, "acct-1", "USD", 1000)

	reservationID, err := e.ReserveBalance(context.Background(), "acct-1", 400, "USD", "idem-1")
	require.NoError(t, err)

	require.NoError(t, e.ReleaseReservation(context.Background(), reservationID, "user cancellation"))

	acc, _ := st.GetAccount("acct-1")
	assert.Equal(t, int64(1000), acc.Balance, "release must never move money")

	balance, err := e.GetBalance(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance.Available)

	r, _ := st.GetReservation(reservationID)
	assert.Equal(t, domain.Released, r.Status)
	assert.Equal(t, "user cancellation", r.ReleaseReason)
}

func TestReleaseReservation_AlreadyTerminal(t *testing.T) {
	e, st := newEngine()
	seedAccount(st, "acct-1", "USD", 1000)

	reservationID, err := e.ReserveBalance(context.Background(), "acct-1", 400, "USD", "idem-1")
	require.NoError(t, err)
	require.NoError(t, e.CommitReservation(context.Background(), reservationID, "tx-1"))

	err = e.ReleaseReservation(context.Background(), reservationID, "too late")
	require.Error(t, err)
	assert.Equal(t, apperr.FailedPrecondition, apperr.CategoryOf(err))
}

func TestCreditBalance_AddsFunds(t *testing.T) {
	e, st := newEngine()
	seedAccount(st, "acct-2", "USD", 500)

	newBalance, err := e.CreditBalance(context.Background(), "acct-2", 250, "USD", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, int64(750), newBalance)
}

func TestCreditBalance_RejectsNonPositiveAmount(t *testing.T) {
	e, st := newEngine()
	seedAccount(st, "acct-2", "USD", 500)

	_, err := e.CreditBalance(context.Background(), "acct-2", 0, "USD", "tx-1")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.CategoryOf(err))
}

func TestGetBalance_NotFound(t *testing.T) {
	e, _ := newEngine()
	_, err := e.GetBalance(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.CategoryOf(err))
}
