package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fiberline/backoffice/ports"
)

// InstallationStore is an in-memory implementation of ports.InstallationStore.
type InstallationStore struct {
	mu            sync.RWMutex
	installations map[string]ports.Installation
}

// NewInstallationStore creates a new in-memory installation store.
func NewInstallationStore() *InstallationStore {
	return &InstallationStore{
		installations: make(map[string]ports.Installation),
	}
}

// Get retrieves an installation by ID.
func (s *InstallationStore) Get(ctx context.Context, id string) (ports.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.installations[id]
	if !ok {
		return ports.Installation{}, ErrNotFound
	}
	return inst, nil
}

// Create stores a new installation.
func (s *InstallationStore) Create(ctx context.Context, inst ports.Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.installations[inst.ID]; exists {
		return ErrDuplicate
	}
	s.installations[inst.ID] = inst
	return nil
}

// UpdateAnchor corrects the anchor date. Other configuration is immutable.
func (s *InstallationStore) UpdateAnchor(ctx context.Context, id string, anchor time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.installations[id]
	if !ok {
		return ErrNotFound
	}
	inst.AnchorDate = anchor
	inst.UpdatedAt = time.Now().UTC()
	s.installations[id] = inst
	return nil
}

// ListByAccount returns the account's installations, oldest first.
func (s *InstallationStore) ListByAccount(ctx context.Context, accountID string) ([]ports.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ports.Installation
	for _, inst := range s.installations {
		if inst.AccountID == accountID {
			result = append(result, inst)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Ensure interface compliance.
var _ ports.InstallationStore = (*InstallationStore)(nil)
