// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/fiberline/backoffice/domain/billing"
	"github.com/fiberline/backoffice/domain/intake"
)

// ErrNotFound is returned by stores when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by stores on a uniqueness violation, e.g. a
// second account with the same identity number.
var ErrDuplicate = errors.New("duplicate")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability. Status classification and due-date
// derivation take "today" from here, never from time.Now directly.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher hashes operator passwords.
type Hasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Entities owned by the back office
// -----------------------------------------------------------------------------

// Account is a client of the ISP. One person, one account, any number of
// installations.
type Account struct {
	ID             string
	Name           string
	IdentityNumber string
	Phone          string
	Address        string
	Status         string // "active", "suspended"
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Installation is one service hookup, owner of a billing configuration.
type Installation struct {
	ID        string
	AccountID string
	PlanID    string
	Address   string

	// AnchorDate is the due date of the very first billing cycle. Editable
	// by an operator to correct data entry; zero means not configured.
	AnchorDate time.Time

	// AdvancePayment requests first-cycle collection at intake time.
	// Immutable after creation.
	AdvancePayment bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Plan is a service plan with the base price payments are composed from.
type Plan struct {
	ID           string
	Name         string
	PriceMonthly float64
	DownloadMbps int
	UploadMbps   int
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Operator is a back-office user who can log in to the admin API.
type Operator struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// AccountStore persists client accounts.
type AccountStore interface {
	Get(ctx context.Context, id string) (Account, error)

	// GetByIdentity retrieves an account by identity number.
	// Returns ErrNotFound when the identifier is unregistered.
	GetByIdentity(ctx context.Context, identityNumber string) (Account, error)

	// Create stores a new account. Returns ErrDuplicate when the identity
	// number is already registered; this constraint, not the intake gate,
	// is authoritative for uniqueness.
	Create(ctx context.Context, a Account) error

	Update(ctx context.Context, a Account) error
	List(ctx context.Context, limit, offset int) ([]Account, error)
	Count(ctx context.Context) (int, error)
}

// InstallationStore persists installations and their billing configuration.
type InstallationStore interface {
	Get(ctx context.Context, id string) (Installation, error)
	Create(ctx context.Context, inst Installation) error

	// UpdateAnchor corrects the anchor date. AdvancePayment is deliberately
	// not updatable: it is immutable after intake.
	UpdateAnchor(ctx context.Context, id string, anchor time.Time) error

	ListByAccount(ctx context.Context, accountID string) ([]Installation, error)
}

// PlanStore persists service plans.
type PlanStore interface {
	Get(ctx context.Context, id string) (Plan, error)
	List(ctx context.Context) ([]Plan, error)
	Create(ctx context.Context, p Plan) error
	Update(ctx context.Context, p Plan) error
}

// PaymentStore persists payments.
type PaymentStore interface {
	Get(ctx context.Context, id string) (billing.Payment, error)

	// Create stores a fully composed payment in one write. Callers compose
	// amount and status before calling so a failure leaves no partial record.
	Create(ctx context.Context, p billing.Payment) error

	Update(ctx context.Context, p billing.Payment) error

	// ListByInstallation returns payments ordered by due date ascending,
	// reconstructing the cycle sequence.
	ListByInstallation(ctx context.Context, installationID string) ([]billing.Payment, error)

	// SettledCycleCount counts the installation's payments in a terminal
	// paid state. This count drives next-due-date derivation.
	SettledCycleCount(ctx context.Context, installationID string) (int, error)

	// OpenCommitment returns the installation's open postponement, or
	// ErrNotFound when there is none. At most one can exist.
	OpenCommitment(ctx context.Context, installationID string) (billing.Payment, error)

	// ListOpenCommitments returns every open postponement whose engagement
	// date falls strictly before the given day, for lapse evaluation.
	ListOpenCommitments(ctx context.Context, before time.Time) ([]billing.Payment, error)
}

// OperatorStore persists back-office operators.
type OperatorStore interface {
	GetByEmail(ctx context.Context, email string) (Operator, error)
	Create(ctx context.Context, op Operator) error
	Count(ctx context.Context) (int, error)
}

// -----------------------------------------------------------------------------
// External Collaborator Ports
// -----------------------------------------------------------------------------

// AccountDirectory answers the intake gate's identity lookups. Backed by
// the local account store, or by a remote system of record when accounts
// live elsewhere.
type AccountDirectory interface {
	// FindByIdentity returns the account summary registered under the
	// identity number, or ErrNotFound.
	FindByIdentity(ctx context.Context, identityNumber string) (intake.AccountSummary, error)
}

// ReconcileResult is the outcome of a remote bulk status reconciliation.
type ReconcileResult struct {
	Checked    int `json:"checked"`
	Reconciled int `json:"reconciled"`
}

// Reconciler triggers the remote batch operation that corrects drift
// between account statuses and payment history. Its implementation is
// opaque to this core.
type Reconciler interface {
	BulkReconcile(ctx context.Context) (ReconcileResult, error)
}
