package app

import (
	"context"

	"github.com/fiberline/backoffice/domain/intake"
	"github.com/fiberline/backoffice/ports"
)

// LocalDirectory answers identity lookups from the local account store,
// the default when the account registry is not remote.
type LocalDirectory struct {
	accounts ports.AccountStore
}

// NewLocalDirectory creates a directory backed by the account store.
func NewLocalDirectory(accounts ports.AccountStore) *LocalDirectory {
	return &LocalDirectory{accounts: accounts}
}

// FindByIdentity returns the account registered under the identity number.
func (d *LocalDirectory) FindByIdentity(ctx context.Context, identityNumber string) (intake.AccountSummary, error) {
	a, err := d.accounts.GetByIdentity(ctx, identityNumber)
	if err != nil {
		return intake.AccountSummary{}, err
	}
	return intake.AccountSummary{
		ID:             a.ID,
		Name:           a.Name,
		IdentityNumber: a.IdentityNumber,
		Phone:          a.Phone,
	}, nil
}

// Ensure interface compliance.
var _ ports.AccountDirectory = (*LocalDirectory)(nil)
