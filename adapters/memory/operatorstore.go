package memory

import (
	"context"
	"sync"

	"github.com/fiberline/backoffice/ports"
)

// OperatorStore is an in-memory implementation of ports.OperatorStore.
type OperatorStore struct {
	mu      sync.RWMutex
	byEmail map[string]ports.Operator
}

// NewOperatorStore creates a new in-memory operator store.
func NewOperatorStore() *OperatorStore {
	return &OperatorStore{
		byEmail: make(map[string]ports.Operator),
	}
}

// GetByEmail retrieves an operator by email.
func (s *OperatorStore) GetByEmail(ctx context.Context, email string) (ports.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.byEmail[email]
	if !ok {
		return ports.Operator{}, ErrNotFound
	}
	return op, nil
}

// Create stores a new operator.
func (s *OperatorStore) Create(ctx context.Context, op ports.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[op.Email]; exists {
		return ErrDuplicate
	}
	s.byEmail[op.Email] = op
	return nil
}

// Count returns total operator count.
func (s *OperatorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEmail), nil
}

// Ensure interface compliance.
var _ ports.OperatorStore = (*OperatorStore)(nil)
