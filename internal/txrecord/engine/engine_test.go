package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerflow/internal/apperr"
	"ledgerflow/internal/events"
	"ledgerflow/internal/txrecord/domain"
	"ledgerflow/internal/txrecord/engine"
	"ledgerflow/internal/txrecord/store/memory"
)

func newEngine() (*engine.Engine, *memory.Store) {
	st := memory.New()
	return engine.New(st, events.NewNoOpPublisher()), st
}

func TestCreateTransaction_InsertsPending(t *testing.T) {
	e, st := newEngine()

	id, ref, err := e.CreateTransaction(context.Background(), "pay-1", "res-1", "acct-a", "acct-b", 500, "USD", "idem-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, ref, "TX-")

	rec, ok := st.GetTransaction(id)
	require.True(t, ok)
	assert.Equal(t, domain.Pending, rec.Status)
	assert.Equal(t, int64(500), rec.Amount)
}

// TestCreateTransaction_IdempotentRetry covers L-IDEM for the Transaction
// Record Store: replaying CreateTransaction with the same idempotency key
// returns the original row instead of inserting a second one.
func TestCreateTransaction_IdempotentRetry(t *testing.T) {
	e, _ := newEngine()

	id1, ref1, err := e.CreateTransaction(context.Background(), "pay-1", "res-1", "a", "b", 100, "USD", "idem-1")
	require.NoError(t, err)

	id2, ref2, err := e.CreateTransaction(context.Background(), "pay-1", "res-1", "a", "b", 999, "EUR", "idem-1")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, ref1, ref2)
}

func TestCreateTransaction_RejectsNonPositiveAmount(t *testing.T) {
	e, _ := newEngine()
	_, _, err := e.CreateTransaction(context.Background(), "pay-1", "res-1", "a", "b", 0, "USD", "idem-1")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.CategoryOf(err))
}

func TestCompleteTransaction_TransitionsToTerminal(t *testing.T) {
	e, st := newEngine()
	id, _, err := e.CreateTransaction(context.Background(), "pay-1", "res-1", "a", "b", 100, "USD", "idem-1")
	require.NoError(t, err)

	require.NoError(t, e.CompleteTransaction(context.Background(), id))

	rec, _ := st.GetTransaction(id)
	assert.Equal(t, domain.Completed, rec.Status)
	require.NotNil(t, rec.CompletedAt)
}

func TestCompleteTransaction_RejectsAlreadyTerminal(t *testing.T) {
	e, _ := newEngine()
	id, _, err := e.CreateTransaction(context.Background(), "pay-1", "res-1", "a", "b", 100, "USD", "idem-1")
	require.NoError(t, err)
	require.NoError(t, e.CompleteTransaction(context.Background(), id))

	err = e.CompleteTransaction(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, apperr.FailedPrecondition, apperr.CategoryOf(err))
}

func TestFailTransaction_RecordsReason(t *testing.T) {
	e, st := newEngine()
	id, _, err := e.CreateTransaction(context.Background(), "pay-1", "res-1", "a", "b", 100, "USD", "idem-1")
	require.NoError(t, err)

	require.NoError(t, e.FailTransaction(context.Background(), id, "ledger unavailable"))

	rec, _ := st.GetTransaction(id)
	assert.Equal(t, domain.Failed, rec.Status)
	assert.Equal(t, "ledger unavailable", rec.FailureReason)
}

func TestCompleteTransaction_NotFound(t *testing.T) {
	e, _ := newEngine()
	err := e.CompleteTransaction(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.CategoryOf(err))
}
