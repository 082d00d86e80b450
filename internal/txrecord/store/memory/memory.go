// Package memory is an in-memory Store implementation used by unit tests
// for the Transaction Record engine, mirroring internal/ledger/store/memory:
// a single mutex held for the lifetime of each transaction.
package memory

import (
	"context"
	"sync"

	"ledgerflow/internal/txrecord/domain"
	"ledgerflow/internal/txrecord/store"
)

type Store struct {
	mu           sync.Mutex
	transactions map[string]domain.Transaction
	byIdemKey    map[string]string // idempotency_key -> transaction id
}

func New() *Store {
	return &Store{
		transactions: make(map[string]domain.Transaction),
		byIdemKey:    make(map[string]string),
	}
}

// GetTransaction is a direct, non-transactional read for test assertions.
func (s *Store) GetTransaction(id string) (domain.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	return t, ok
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	s.mu.Lock()
	return &tx{s: s}, nil
}

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

func (t *tx) FindByID(ctx context.Context, id string) (domain.Transaction, error) {
	rec, ok := t.s.transactions[id]
	if !ok {
		return domain.Transaction{}, store.ErrNotFound
	}
	return rec, nil
}

func (t *tx) FindByIdempotencyKey(ctx context.Context, key string) (domain.Transaction, bool, error) {
	id, ok := t.s.byIdemKey[key]
	if !ok {
		return domain.Transaction{}, false, nil
	}
	return t.s.transactions[id], true, nil
}

func (t *tx) Insert(ctx context.Context, rec domain.Transaction) error {
	if _, exists := t.s.byIdemKey[rec.IdempotencyKey]; exists {
		return store.ErrDuplicateIdempotencyKey
	}
	t.s.transactions[rec.ID] = rec
	t.s.byIdemKey[rec.IdempotencyKey] = rec.ID
	return nil
}

func (t *tx) Save(ctx context.Context, rec domain.Transaction) error {
	t.s.transactions[rec.ID] = rec
	return nil
}
