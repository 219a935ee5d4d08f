// Package intake provides the identity deduplication gate applied during
// client creation. The gate is advisory: it exists to give the operator a
// good resolution path, while the persistence layer's unique constraint
// remains the system of record for uniqueness.
package intake

// DefaultIdentityLength is the expected length of a national identity
// number. The gate only fires once the identifier is complete.
const DefaultIdentityLength = 8

// IdentityReady reports whether the identifier has reached its full
// expected length and contains only digits. Lookups before this point are
// wasted round trips.
func IdentityReady(identity string, length int) bool {
	if length <= 0 {
		length = DefaultIdentityLength
	}
	if len(identity) != length {
		return false
	}
	for _, r := range identity {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AccountSummary is the slice of an existing account shown to the operator
// when the gate finds a match.
type AccountSummary struct {
	ID             string
	Name           string
	IdentityNumber string
	Phone          string
}

// Decision is the gate's outcome for a completed identifier.
type Decision struct {
	// Existing is nil when no account holds the identifier and the normal
	// new-account flow may proceed.
	Existing *AccountSummary
}

// ProceedNew reports whether intake may create a brand-new account.
func (d Decision) ProceedNew() bool {
	return d.Existing == nil
}

// Prefill is the intake state handed back when the operator adopts an
// existing account: identity fields come from the record on file and the
// flow fast-forwards to installation configuration. Adopting never creates
// a second billing configuration for the same person.
type Prefill struct {
	AccountID      string
	Name           string
	IdentityNumber string
	Phone          string
}

// PrefillFrom builds the adopt-existing prefill from an account summary.
func PrefillFrom(a AccountSummary) Prefill {
	return Prefill{
		AccountID:      a.ID,
		Name:           a.Name,
		IdentityNumber: a.IdentityNumber,
		Phone:          a.Phone,
	}
}
