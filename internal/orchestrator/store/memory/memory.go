// Package memory is an in-memory Store implementation used by unit tests
// for the Payment Orchestrator, mirroring internal/ledger/store/memory and
// internal/txrecord/store/memory.
package memory

import (
	"context"
	"sync"

	"ledgerflow/internal/orchestrator/domain"
	"ledgerflow/internal/orchestrator/store"
)

type Store struct {
	mu       sync.Mutex
	payments map[string]domain.Payment
}

func New() *Store {
	return &Store{payments: make(map[string]domain.Payment)}
}

// GetPayment is a direct, non-transactional read for test assertions.
func (s *Store) GetPayment(id string) (domain.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	return p, ok
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

func (t *tx) FindByID(ctx context.Context, id string) (domain.Payment, error) {
	p, ok := t.s.payments[id]
	if !ok {
		return domain.Payment{}, store.ErrNotFound
	}
	return p, nil
}

func (t *tx) Insert(ctx context.Context, p domain.Payment) error {
	t.s.payments[p.ID] = p
	return nil
}

func (t *tx) Save(ctx context.Context, p domain.Payment) error {
	t.s.payments[p.ID] = p
	return nil
}
