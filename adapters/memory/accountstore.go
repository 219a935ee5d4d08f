// Package memory provides in-memory store implementations used by tests
// and by the intake gate when no external directory is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fiberline/backoffice/ports"
)

// ErrNotFound is returned when an entity is not found.
var ErrNotFound = ports.ErrNotFound

// ErrDuplicate is returned on a uniqueness violation.
var ErrDuplicate = ports.ErrDuplicate

// AccountStore is an in-memory implementation of ports.AccountStore.
type AccountStore struct {
	mu         sync.RWMutex
	accounts   map[string]ports.Account // by ID
	byIdentity map[string]string        // identity number -> ID
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts:   make(map[string]ports.Account),
		byIdentity: make(map[string]string),
	}
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return ports.Account{}, ErrNotFound
	}
	return a, nil
}

// GetByIdentity retrieves an account by identity number.
func (s *AccountStore) GetByIdentity(ctx context.Context, identityNumber string) (ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentity[identityNumber]
	if !ok {
		return ports.Account{}, ErrNotFound
	}
	return s.accounts[id], nil
}

// Create stores a new account. The identity number must be unused.
func (s *AccountStore) Create(ctx context.Context, a ports.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byIdentity[a.IdentityNumber]; exists {
		return ErrDuplicate
	}
	if _, exists := s.accounts[a.ID]; exists {
		return ErrDuplicate
	}

	s.accounts[a.ID] = a
	s.byIdentity[a.IdentityNumber] = a.ID
	return nil
}

// Update modifies an existing account.
func (s *AccountStore) Update(ctx context.Context, a ports.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.accounts[a.ID]
	if !ok {
		return ErrNotFound
	}

	if old.IdentityNumber != a.IdentityNumber {
		if owner, exists := s.byIdentity[a.IdentityNumber]; exists && owner != a.ID {
			return ErrDuplicate
		}
		delete(s.byIdentity, old.IdentityNumber)
		s.byIdentity[a.IdentityNumber] = a.ID
	}

	s.accounts[a.ID] = a
	return nil
}

// List returns accounts with pagination, ordered by name for stable output.
func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]ports.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]

	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Count returns total account count.
func (s *AccountStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

// Ensure interface compliance.
var _ ports.AccountStore = (*AccountStore)(nil)
