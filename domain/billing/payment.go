// Package billing provides payment value types and the pure functions of
// the recurring-billing engine: lifecycle classification and amount
// composition.
package billing

import "time"

// Status represents a payment's lifecycle state.
type Status string

const (
	// StatusPending is a payment awaiting collection.
	StatusPending Status = "PENDING"
	// StatusPaymentDaily is a payment collected on or before its due date.
	StatusPaymentDaily Status = "PAYMENT_DAILY"
	// StatusLatePayment is a payment collected after its due date, or one
	// that is overdue and still uncollected.
	StatusLatePayment Status = "LATE_PAYMENT"
	// StatusVoided is a cancelled payment. It settles no cycle.
	StatusVoided Status = "VOIDED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaymentDaily, StatusLatePayment, StatusVoided:
		return true
	}
	return false
}

// TerminalPaid reports whether s means money was actually collected.
// The count of an installation's terminal-paid payments is the number of
// billing cycles it has consumed.
func (s Status) TerminalPaid() bool {
	return s == StatusPaymentDaily || s == StatusLatePayment
}

// Payment represents one billing cycle attempt, or a postponement.
type Payment struct {
	ID             string
	InstallationID string

	Amount     float64 // charged amount, see ComposeAmount
	BaseAmount float64 // plan price frozen at creation time

	DueDate        time.Time  // the cycle this payment settles
	PaymentDate    *time.Time // when money was received, nil while pending
	EngagementDate *time.Time // promised pay-by date, set only on postponements

	Status Status

	// Payment instrument metadata, required only in a terminal paid state.
	Method       string
	Reference    string
	TransferName string

	Reconnection   bool    // adds the fixed reconnection surcharge
	Discount       float64 // subtracted from the amount, never below zero
	AdvancePayment bool    // the one first-cycle payment collected at intake

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminalPaid reports whether the payment has been collected.
// Amount fields are frozen once this holds.
func (p Payment) IsTerminalPaid() bool {
	return p.Status.TerminalPaid()
}

// IsCommitment reports whether the payment is an open postponement: still
// pending, with a promised pay-by date and no real receipt behind it.
func (p Payment) IsCommitment() bool {
	return p.Status == StatusPending && p.EngagementDate != nil
}

// IsVoided reports whether the payment was cancelled.
func (p Payment) IsVoided() bool {
	return p.Status == StatusVoided
}
