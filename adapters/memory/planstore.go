package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fiberline/backoffice/ports"
)

// PlanStore is an in-memory implementation of ports.PlanStore.
type PlanStore struct {
	mu    sync.RWMutex
	plans map[string]ports.Plan
}

// NewPlanStore creates a new in-memory plan store.
func NewPlanStore() *PlanStore {
	return &PlanStore{
		plans: make(map[string]ports.Plan),
	}
}

// Get retrieves a plan by ID.
func (s *PlanStore) Get(ctx context.Context, id string) (ports.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok {
		return ports.Plan{}, ErrNotFound
	}
	return p, nil
}

// List returns all enabled plans, cheapest first.
func (s *PlanStore) List(ctx context.Context) ([]ports.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ports.Plan
	for _, p := range s.plans {
		if p.Enabled {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PriceMonthly < result[j].PriceMonthly
	})
	return result, nil
}

// Create stores a new plan.
func (s *PlanStore) Create(ctx context.Context, p ports.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[p.ID]; exists {
		return ErrDuplicate
	}
	s.plans[p.ID] = p
	return nil
}

// Update modifies a plan.
func (s *PlanStore) Update(ctx context.Context, p ports.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[p.ID]; !ok {
		return ErrNotFound
	}
	s.plans[p.ID] = p
	return nil
}

// Ensure interface compliance.
var _ ports.PlanStore = (*PlanStore)(nil)
