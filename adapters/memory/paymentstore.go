package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fiberline/backoffice/domain/billing"
	"github.com/fiberline/backoffice/ports"
)

// PaymentStore is an in-memory implementation of ports.PaymentStore.
type PaymentStore struct {
	mu       sync.RWMutex
	payments map[string]billing.Payment
}

// NewPaymentStore creates a new in-memory payment store.
func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		payments: make(map[string]billing.Payment),
	}
}

// Get retrieves a payment by ID.
func (s *PaymentStore) Get(ctx context.Context, id string) (billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return billing.Payment{}, ErrNotFound
	}
	return clonePayment(p), nil
}

// Create stores a fully composed payment in one write. Mirrors the
// database's one-open-commitment constraint.
func (s *PaymentStore) Create(ctx context.Context, p billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID]; exists {
		return ErrDuplicate
	}
	if p.IsCommitment() {
		for _, existing := range s.payments {
			if existing.InstallationID == p.InstallationID && existing.IsCommitment() {
				return ErrDuplicate
			}
		}
	}

	s.payments[p.ID] = clonePayment(p)
	return nil
}

// Update rewrites a payment's mutable fields.
func (s *PaymentStore) Update(ctx context.Context, p billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.ID]; !ok {
		return ErrNotFound
	}
	s.payments[p.ID] = clonePayment(p)
	return nil
}

// ListByInstallation returns payments ordered by due date ascending.
func (s *PaymentStore) ListByInstallation(ctx context.Context, installationID string) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []billing.Payment
	for _, p := range s.payments {
		if p.InstallationID == installationID {
			result = append(result, clonePayment(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DueDate.Equal(result[j].DueDate) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].DueDate.Before(result[j].DueDate)
	})
	return result, nil
}

// SettledCycleCount counts the installation's terminal-paid payments.
func (s *PaymentStore) SettledCycleCount(ctx context.Context, installationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.payments {
		if p.InstallationID == installationID && p.Status.TerminalPaid() {
			count++
		}
	}
	return count, nil
}

// OpenCommitment returns the installation's open postponement, if any.
func (s *PaymentStore) OpenCommitment(ctx context.Context, installationID string) (billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payments {
		if p.InstallationID == installationID && p.IsCommitment() {
			return clonePayment(p), nil
		}
	}
	return billing.Payment{}, ErrNotFound
}

// ListOpenCommitments returns open postponements engaged strictly before
// the given day.
func (s *PaymentStore) ListOpenCommitments(ctx context.Context, before time.Time) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []billing.Payment
	for _, p := range s.payments {
		if p.IsCommitment() && p.EngagementDate.Before(before) {
			result = append(result, clonePayment(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EngagementDate.Before(*result[j].EngagementDate)
	})
	return result, nil
}

// clonePayment copies the pointer fields so callers cannot mutate stored
// state through a returned value.
func clonePayment(p billing.Payment) billing.Payment {
	if p.PaymentDate != nil {
		t := *p.PaymentDate
		p.PaymentDate = &t
	}
	if p.EngagementDate != nil {
		t := *p.EngagementDate
		p.EngagementDate = &t
	}
	return p
}

// Ensure interface compliance.
var _ ports.PaymentStore = (*PaymentStore)(nil)
