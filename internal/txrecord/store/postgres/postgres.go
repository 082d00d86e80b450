// Package postgres is the production Transaction Record store, adapted
// from internal/ledger/store/postgres in the same idiom: a pgxpool-backed
// repository issuing SQL against the transactions table (spec §6.5) inside
// a single pgx.Tx per engine call.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgerflow/internal/txrecord/domain"
	"ledgerflow/internal/txrecord/store"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
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

func (t *tx) FindByID(ctx context.Context, id string) (domain.Transaction, error) {
	const q = `
		SELECT id, reference_number, payment_id, reservation_id, source_account_id,
		       destination_account_id, amount, currency, status, idempotency_key,
		       COALESCE(failure_reason, ''), created_at, updated_at, completed_at
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`
	return scanTransaction(t.pgxTx.QueryRow(ctx, q, id))
}

func (t *tx) FindByIdempotencyKey(ctx context.Context, key string) (domain.Transaction, bool, error) {
	const q = `
		SELECT id, reference_number, payment_id, reservation_id, source_account_id,
		       destination_account_id, amount, currency, status, idempotency_key,
		       COALESCE(failure_reason, ''), created_at, updated_at, completed_at
		FROM transactions
		WHERE idempotency_key = $1
	`
	rec, err := scanTransaction(t.pgxTx.QueryRow(ctx, q, key))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Transaction{}, false, nil
	}
	if err != nil {
		return domain.Transaction{}, false, err
	}
	return rec, true, nil
}

func (t *tx) Insert(ctx context.Context, rec domain.Transaction) error {
	const q = `
		INSERT INTO transactions
			(id, reference_number, payment_id, reservation_id, source_account_id,
			 destination_account_id, amount, currency, status, idempotency_key,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := t.pgxTx.Exec(ctx, q,
		rec.ID, rec.ReferenceNumber, rec.PaymentID, rec.ReservationID, rec.SourceAccountID,
		rec.DestinationAccountID, rec.Amount, rec.Currency, rec.Status, rec.IdempotencyKey,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *tx) Save(ctx context.Context, rec domain.Transaction) error {
	const q = `
		UPDATE transactions
		SET status = $1, failure_reason = NULLIF($2, ''), updated_at = $3, completed_at = $4
		WHERE id = $5
	`
	_, err := t.pgxTx.Exec(ctx, q, rec.Status, rec.FailureReason, rec.UpdatedAt, rec.CompletedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var rec domain.Transaction
	err := row.Scan(
		&rec.ID, &rec.ReferenceNumber, &rec.PaymentID, &rec.ReservationID, &rec.SourceAccountID,
		&rec.DestinationAccountID, &rec.Amount, &rec.Currency, &rec.Status, &rec.IdempotencyKey,
		&rec.FailureReason, &rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	return rec, nil
}
