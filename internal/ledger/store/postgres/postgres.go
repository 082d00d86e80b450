// Package postgres is the production Ledger store, adapted from the
// teacher's internal/infrastructure/database/postgres/postgres.go: a
// pgxpool-backed repository using SELECT ... FOR UPDATE inside a single
// pgx.Tx per engine call, the same pattern the teacher uses in
// AtomicTransfer and AtomicDepositWithIdempotency, generalized here to the
// reservation state machine instead of direct balance mutation.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgerflow/internal/ledger/domain"
	"ledgerflow/internal/ledger/store"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-index conflict,
// raised here when two concurrent inserts race on the same idempotency key.
const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pgxpool against connString with the given pool bounds,
// pings it, and wraps it in a Store. Mirrors the teacher's
// NewPostgresRepository.
func Connect(ctx context.Context, connString string, maxConns, minConns int32, connMaxLifetime time.Duration) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = minConns
	poolConfig.MaxConnLifetime = connMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(pool), nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// SeedAccount inserts a new account directly, bypassing the reservation
// engine. Account provisioning is external to this service (spec §1, §3);
// this exists only for test and local-development seeding, mirroring the
// teacher's PostgresRepository.CreateAccount used by its own simulator.
func (s *Store) SeedAccount(ctx context.Context, id, currency string, balance int64) error {
	const q = `
		INSERT INTO accounts (id, currency, balance, active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, q, id, currency, balance)
	if err != nil {
		return fmt.Errorf("seed account: %w", err)
	}
	return nil
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	pgxTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &tx{pgxTx: pgxTx}, nil
}

type tx struct {
	pgxTx pgx.Tx
	done  bool
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.pgxTx.Commit(ctx)
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.pgxTx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *tx) LoadAccountForUpdate(ctx context.Context, accountID string) (domain.Account, error) {
	const q = `
		SELECT id, currency, balance, active
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`
	var acc domain.Account
	err := t.pgxTx.QueryRow(ctx, q, accountID).Scan(&acc.ID, &acc.Currency, &acc.Balance, &acc.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}
	return acc, nil
}

func (t *tx) SaveAccount(ctx context.Context, acc domain.Account) error {
	const q = `UPDATE accounts SET balance = $1, active = $2 WHERE id = $3`
	_, err := t.pgxTx.Exec(ctx, q, acc.Balance, acc.Active, acc.ID)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (t *tx) PendingReservationsTotal(ctx context.Context, accountID string) (int64, error) {
	const q = `
		SELECT COALESCE(SUM(amount), 0)
		FROM (
			SELECT amount
			FROM reservations
			WHERE account_id = $1 AND status = 'PENDING'
			FOR UPDATE
		) AS pending
	`
	var total int64
	if err := t.pgxTx.QueryRow(ctx, q, accountID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum pending reservations: %w", err)
	}
	return total, nil
}

func (t *tx) FindReservationByID(ctx context.Context, id string) (domain.Reservation, error) {
	const q = `
		SELECT id, account_id, amount, currency, status, idempotency_key,
		       COALESCE(transaction_id, ''), COALESCE(release_reason, ''),
		       expires_at, created_at, committed_at, released_at
		FROM reservations
		WHERE id = $1
		FOR UPDATE
	`
	return scanReservation(t.pgxTx.QueryRow(ctx, q, id))
}

func (t *tx) FindReservationByIdempotencyKey(ctx context.Context, key string) (domain.Reservation, bool, error) {
	const q = `
		SELECT id, account_id, amount, currency, status, idempotency_key,
		       COALESCE(transaction_id, ''), COALESCE(release_reason, ''),
		       expires_at, created_at, committed_at, released_at
		FROM reservations
		WHERE idempotency_key = $1
	`
	r, err := scanReservation(t.pgxTx.QueryRow(ctx, q, key))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Reservation{}, false, nil
	}
	if err != nil {
		return domain.Reservation{}, false, err
	}
	return r, true, nil
}

func (t *tx) InsertReservation(ctx context.Context, r domain.Reservation) error {
	const q = `
		INSERT INTO reservations
			(id, account_id, amount, currency, status, idempotency_key, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.pgxTx.Exec(ctx, q, r.ID, r.AccountID, r.Amount, r.Currency, r.Status, r.IdempotencyKey, r.ExpiresAt, r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (t *tx) SaveReservation(ctx context.Context, r domain.Reservation) error {
	const q = `
		UPDATE reservations
		SET status = $1, transaction_id = NULLIF($2, ''), release_reason = NULLIF($3, ''),
		    committed_at = $4, released_at = $5
		WHERE id = $6
	`
	_, err := t.pgxTx.Exec(ctx, q, r.Status, r.TransactionID, r.ReleaseReason, r.CommittedAt, r.ReleasedAt, r.ID)
	if err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}
	return nil
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var r domain.Reservation
	err := row.Scan(
		&r.ID, &r.AccountID, &r.Amount, &r.Currency, &r.Status, &r.IdempotencyKey,
		&r.TransactionID, &r.ReleaseReason, &r.ExpiresAt, &r.CreatedAt, &r.CommittedAt, &r.ReleasedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reservation{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("scan reservation: %w", err)
	}
	return r, nil
}
