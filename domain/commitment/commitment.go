// Package commitment models the postponement lifecycle: a payment that
// starts as a promise to pay by a future date and later either matures
// into a real payment or lapses. All transitions are pure functions over
// billing.Payment values; persistence is the caller's concern.
package commitment

import (
	"time"

	"github.com/fiberline/backoffice/domain/billing"
	"github.com/fiberline/backoffice/domain/calendar"
)

// State is the position of a payment in the postponement lifecycle.
type State string

const (
	// StateNone: the payment is not a postponement at all.
	StateNone State = "none"
	// StateCommitted: an open postponement. Pending, engagement date set,
	// no payment instrument recorded.
	StateCommitted State = "committed"
	// StateRegularized: the postponement matured into a collected payment.
	StateRegularized State = "regularized"
	// StateLapsed: the engagement date passed with no action and the
	// payment was reclassified as late.
	StateLapsed State = "lapsed"
)

// StateOf derives the lifecycle state of a payment.
func StateOf(p billing.Payment) State {
	if p.EngagementDate == nil {
		return StateNone
	}
	switch {
	case p.Status == billing.StatusPending:
		return StateCommitted
	case p.IsTerminalPaid() && p.PaymentDate != nil:
		return StateRegularized
	case p.Status == billing.StatusLatePayment:
		return StateLapsed
	}
	return StateNone
}

// Open validates and builds an open postponement for the given cycle.
// The result carries the engagement date and no payment instrument; its
// status stays PENDING until it is regularized or lapses.
func Open(p billing.Payment, engagementDate, today time.Time) (billing.Payment, error) {
	if p.DueDate.IsZero() {
		return billing.Payment{}, &billing.ValidationError{Field: "due_date", Reason: "postponement needs the cycle it defers"}
	}
	if calendar.DayAfter(today, engagementDate) {
		return billing.Payment{}, &billing.ValidationError{Field: "engagement_date", Reason: "promised date is already in the past"}
	}

	e := calendar.DateOnly(engagementDate)
	p.EngagementDate = &e
	p.Status = billing.StatusPending
	p.PaymentDate = nil
	p.Method = ""
	p.Reference = ""
	p.TransferName = ""
	return p, nil
}

// RegularizeInput carries the fields an operator supplies to convert an
// open postponement into a finalized payment.
type RegularizeInput struct {
	PaymentDate  time.Time
	Method       string
	Reference    string
	TransferName string
}

// Regularize converts an open postponement into a finalized payment.
//
// The final status follows the normal classification rule measured against
// the ORIGINAL due date, not the engagement date: a client who promised
// Feb 20 for a Feb 5 cycle and pays Feb 18 is still late.
//
// Calling it on an already-regularized payment fails with
// ErrAlreadyRegularized rather than re-mutating financial fields.
func Regularize(p billing.Payment, in RegularizeInput) (billing.Payment, error) {
	switch StateOf(p) {
	case StateCommitted:
		// The only state this transition accepts.
	case StateRegularized:
		return billing.Payment{}, ErrAlreadyRegularized
	default:
		return billing.Payment{}, ErrNotCommitted
	}

	if in.PaymentDate.IsZero() {
		return billing.Payment{}, &billing.ValidationError{Field: "payment_date", Reason: "required to regularize"}
	}
	if in.Method == "" {
		return billing.Payment{}, &billing.ValidationError{Field: "method", Reason: "required to regularize"}
	}
	if in.Reference == "" {
		return billing.Payment{}, &billing.ValidationError{Field: "reference", Reason: "required to regularize"}
	}

	paid := calendar.DateOnly(in.PaymentDate)
	p.PaymentDate = &paid
	p.Method = in.Method
	p.Reference = in.Reference
	p.TransferName = in.TransferName
	p.Status = billing.Classify(p.DueDate, &paid, paid)
	return p, nil
}

// Lapse reclassifies an open postponement whose engagement date has passed
// with no action taken. It returns the updated payment and whether a
// change was made; commitments still within their promised window are
// returned untouched.
func Lapse(p billing.Payment, today time.Time) (billing.Payment, bool) {
	if StateOf(p) != StateCommitted {
		return p, false
	}
	if !calendar.DayAfter(today, *p.EngagementDate) {
		return p, false
	}

	p.Status = billing.StatusLatePayment
	return p, true
}
