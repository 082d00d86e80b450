// Package postgres is the production Payment store, adapted from
// internal/ledger/store/postgres and internal/txrecord/store/postgres in
// the same idiom: a pgxpool-backed repository issuing SQL against the
// payments table (spec §6.5) inside a single pgx.Tx per service call.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgerflow/internal/orchestrator/domain"
	"ledgerflow/internal/orchestrator/store"
)

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

func (t *tx) FindByID(ctx context.Context, id string) (domain.Payment, error) {
	const q = `
		SELECT id, reference_number, source_account_id, destination_account_id, amount, currency,
		       idempotency_key, status, COALESCE(reservation_id, ''), COALESCE(transaction_id, ''),
		       COALESCE(failure_reason, ''), created_at, updated_at, processed_at
		FROM payments
		WHERE id = $1
		FOR UPDATE
	`
	return scanPayment(t.pgxTx.QueryRow(ctx, q, id))
}

func (t *tx) Insert(ctx context.Context, p domain.Payment) error {
	const q = `
		INSERT INTO payments
			(id, reference_number, source_account_id, destination_account_id, amount, currency,
			 idempotency_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := t.pgxTx.Exec(ctx, q,
		p.ID, p.ReferenceNumber, p.SourceAccountID, p.DestinationAccountID, p.Amount, p.Currency,
		p.IdempotencyKey, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (t *tx) Save(ctx context.Context, p domain.Payment) error {
	const q = `
		UPDATE payments
		SET status = $1, reservation_id = NULLIF($2, ''), transaction_id = NULLIF($3, ''),
		    failure_reason = NULLIF($4, ''), updated_at = $5, processed_at = $6
		WHERE id = $7
	`
	_, err := t.pgxTx.Exec(ctx, q, p.Status, p.ReservationID, p.TransactionID, p.FailureReason, p.UpdatedAt, p.ProcessedAt, p.ID)
	if err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	return nil
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.ReferenceNumber, &p.SourceAccountID, &p.DestinationAccountID, &p.Amount, &p.Currency,
		&p.IdempotencyKey, &p.Status, &p.ReservationID, &p.TransactionID,
		&p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &p.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}
