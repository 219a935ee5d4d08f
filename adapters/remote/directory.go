package remote

import (
	"context"
	"net/url"

	"github.com/fiberline/backoffice/domain/intake"
	"github.com/fiberline/backoffice/ports"
)

// Directory answers identity lookups against the provisioning system,
// for deployments where the account registry lives there rather than in
// the local database.
//
// API Contract:
//
//	GET /accounts/by-identity/{number}
//	Response: {"account_id": "...", "name": "...", "identity_number": "...", "phone": "..."}
//	404 when the identity number is unregistered.
type Directory struct {
	client *Client
}

// NewDirectory creates a remote account directory.
func NewDirectory(client *Client) *Directory {
	return &Directory{client: client}
}

type remoteAccount struct {
	AccountID      string `json:"account_id"`
	Name           string `json:"name"`
	IdentityNumber string `json:"identity_number"`
	Phone          string `json:"phone"`
}

// FindByIdentity looks up the account registered under the identity number.
func (d *Directory) FindByIdentity(ctx context.Context, identityNumber string) (intake.AccountSummary, error) {
	var out remoteAccount
	err := d.client.Request(ctx, "GET", "/accounts/by-identity/"+url.PathEscape(identityNumber), nil, &out)
	if IsNotFound(err) {
		return intake.AccountSummary{}, ports.ErrNotFound
	}
	if err != nil {
		return intake.AccountSummary{}, err
	}

	return intake.AccountSummary{
		ID:             out.AccountID,
		Name:           out.Name,
		IdentityNumber: out.IdentityNumber,
		Phone:          out.Phone,
	}, nil
}

// Ensure interface compliance.
var _ ports.AccountDirectory = (*Directory)(nil)
