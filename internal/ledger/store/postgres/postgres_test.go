package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ledgerflow/internal/ledger/domain"
	"ledgerflow/internal/ledger/store"
	"ledgerflow/internal/ledger/store/postgres"
)

// setupStore starts a throwaway Postgres container, loads the schema, and
// returns a connected Store. Mirrors the teacher's
// testenv.SetupPostgresContainer, collapsed into this package since only
// the Ledger's own store exercises the SELECT ... FOR UPDATE path.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger_test_pass"),
		tcpostgres.WithInitScripts("testdata/schema.sql"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres testcontainer")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := postgres.Connect(ctx, connStr, 5, 1, 30*time.Minute)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st
}

func seedAccount(t *testing.T, st *postgres.Store, id, currency string, balance int64) {
	t.Helper()
	require.NoError(t, st.SeedAccount(context.Background(), id, currency, balance))
}

// TestReserveAndCommit_DebitsAccount exercises the real SELECT ... FOR
// UPDATE path end to end: reserve, then commit, across a real pgx.Tx.
func TestReserveAndCommit_DebitsAccount(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	seedAccount(t, st, "acct-pg-1", "USD", 1000)

	tx, err := st.Begin(ctx)
	require.NoError(t, err)

	pending, err := tx.PendingReservationsTotal(ctx, "acct-pg-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), pending)

	r := domain.Reservation{
		ID:             "res-pg-1",
		AccountID:      "acct-pg-1",
		Amount:         400,
		Currency:       "USD",
		Status:         domain.Pending,
		IdempotencyKey: "idem-pg-1",
		ExpiresAt:      time.Now().Add(time.Hour),
		CreatedAt:      time.Now(),
	}
	require.NoError(t, tx.InsertReservation(ctx, r))
	require.NoError(t, tx.Commit(ctx))

	tx, err = st.Begin(ctx)
	require.NoError(t, err)
	acc, err := tx.LoadAccountForUpdate(ctx, "acct-pg-1")
	require.NoError(t, err)
	acc.Balance -= r.Amount
	require.NoError(t, tx.SaveAccount(ctx, acc))

	r.Status = domain.Committed
	require.NoError(t, tx.SaveReservation(ctx, r))
	require.NoError(t, tx.Commit(ctx))

	tx, err = st.Begin(ctx)
	require.NoError(t, err)
	acc, err = tx.LoadAccountForUpdate(ctx, "acct-pg-1")
	require.NoError(t, err)
	require.Equal(t, int64(600), acc.Balance)
	require.NoError(t, tx.Rollback(ctx))
}

// TestInsertReservation_DuplicateIdempotencyKey exercises the unique
// constraint the idempotency lookup depends on.
func TestInsertReservation_DuplicateIdempotencyKey(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	seedAccount(t, st, "acct-pg-2", "USD", 1000)

	r := domain.Reservation{
		ID:             "res-pg-2",
		AccountID:      "acct-pg-2",
		Amount:         100,
		Currency:       "USD",
		Status:         domain.Pending,
		IdempotencyKey: "idem-pg-2",
		ExpiresAt:      time.Now().Add(time.Hour),
		CreatedAt:      time.Now(),
	}

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertReservation(ctx, r))
	require.NoError(t, tx.Commit(ctx))

	r.ID = "res-pg-2-dup"
	tx, err = st.Begin(ctx)
	require.NoError(t, err)
	err = tx.InsertReservation(ctx, r)
	require.ErrorIs(t, err, store.ErrDuplicateIdempotencyKey)
	require.NoError(t, tx.Rollback(ctx))
}

func TestLoadAccountForUpdate_NotFound(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.LoadAccountForUpdate(ctx, "does-not-exist")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, tx.Rollback(ctx))
}
