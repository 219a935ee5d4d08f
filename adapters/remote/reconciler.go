package remote

import (
	"context"

	"github.com/fiberline/backoffice/ports"
)

// Reconciler triggers the provisioning system's bulk status sweep, which
// corrects drift between account statuses and payment history.
//
// API Contract:
//
//	POST /sync/statuses
//	Response: {"checked": 120, "reconciled": 3}
type Reconciler struct {
	client *Client
}

// NewReconciler creates a remote reconciler.
func NewReconciler(client *Client) *Reconciler {
	return &Reconciler{client: client}
}

// BulkReconcile runs the sweep and reports how many accounts were checked
// and how many had their status corrected.
func (r *Reconciler) BulkReconcile(ctx context.Context) (ports.ReconcileResult, error) {
	var out ports.ReconcileResult
	if err := r.client.Request(ctx, "POST", "/sync/statuses", nil, &out); err != nil {
		return ports.ReconcileResult{}, err
	}
	return out, nil
}

// Ensure interface compliance.
var _ ports.Reconciler = (*Reconciler)(nil)
