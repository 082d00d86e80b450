// Package memory is an in-memory Store implementation used by unit tests
// for the Ledger engine, so the reservation/commit/release state machine
// can be exercised without Postgres (DESIGN.md, "Per-module grounding").
// It serializes all transactions behind a single mutex, which is
// stronger than the row-level locking the Postgres implementation uses but
// preserves the same externally observable guarantees.
package memory

import (
	"context"
	"sync"

	"ledgerflow/internal/ledger/domain"
	"ledgerflow/internal/ledger/store"
)

type Store struct {
	mu           sync.Mutex
	accounts     map[string]domain.Account
	reservations map[string]domain.Reservation
	byIdemKey    map[string]string // idempotency_key -> reservation id
}

func New() *Store {
	return &Store{
		accounts:     make(map[string]domain.Account),
		reservations: make(map[string]domain.Reservation),
		byIdemKey:    make(map[string]string),
	}
}

// PutAccount seeds or overwrites an account, for test setup.
func (s *Store) PutAccount(acc domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.ID] = acc
}

// GetAccount is a direct, non-transactional read for test assertions.
func (s *Store) GetAccount(id string) (domain.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	return acc, ok
}

// GetReservation is a direct, non-transactional read for test assertions.
func (s *Store) GetReservation(id string) (domain.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	return r, ok
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	s.mu.Lock()
	return &tx{s: s}, nil
}

// tx holds the store's single mutex for its whole lifetime, released on
// Commit or Rollback, modeling the teacher's single-pgx.Tx-per-call shape.
type tx struct {
	s    *Store
	done bool
}

func (t *tx) unlockOnce() {
	if !t.done {
		t.done = true
		t.s.mu.Unlock()
	}
}

func (t *tx) Commit(ctx context.Context) error {
	t.unlockOnce()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.unlockOnce()
	return nil
}

func (t *tx) LoadAccountForUpdate(ctx context.Context, accountID string) (domain.Account, error) {
	acc, ok := t.s.accounts[accountID]
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	return acc, nil
}

func (t *tx) SaveAccount(ctx context.Context, acc domain.Account) error {
	t.s.accounts[acc.ID] = acc
	return nil
}

func (t *tx) PendingReservationsTotal(ctx context.Context, accountID string) (int64, error) {
	var total int64
	for _, r := range t.s.reservations {
		if r.AccountID == accountID && r.Status == domain.Pending {
			total += r.Amount
		}
	}
	return total, nil
}

func (t *tx) FindReservationByID(ctx context.Context, id string) (domain.Reservation, error) {
	r, ok := t.s.reservations[id]
	if !ok {
		return domain.Reservation{}, store.ErrNotFound
	}
	return r, nil
}

func (t *tx) FindReservationByIdempotencyKey(ctx context.Context, key string) (domain.Reservation, bool, error) {
	id, ok := t.s.byIdemKey[key]
	if !ok {
		return domain.Reservation{}, false, nil
	}
	return t.s.reservations[id], true, nil
}

func (t *tx) InsertReservation(ctx context.Context, r domain.Reservation) error {
	if _, exists := t.s.byIdemKey[r.IdempotencyKey]; exists {
		return store.ErrDuplicateIdempotencyKey
	}
	t.s.reservations[r.ID] = r
	t.s.byIdemKey[r.IdempotencyKey] = r.ID
	return nil
}

func (t *tx) SaveReservation(ctx context.Context, r domain.Reservation) error {
	t.s.reservations[r.ID] = r
	return nil
}
