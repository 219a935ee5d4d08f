package billing

import (
	"time"

	"github.com/fiberline/backoffice/domain/calendar"
)

// StatusStrategy selects how a payment's status is determined at creation.
type StatusStrategy string

const (
	// StrategyAuto derives the status from the payment's dates via Classify.
	StrategyAuto StatusStrategy = "auto"
	// StrategyManual takes the status the operator supplied verbatim.
	// Once created, a manual payment is never reclassified unless the
	// operator explicitly re-triggers classification.
	StrategyManual StatusStrategy = "manual"
)

// Valid reports whether s is a known strategy.
func (s StatusStrategy) Valid() bool {
	return s == StrategyAuto || s == StrategyManual
}

// Classify derives the lifecycle state of a normal (non-postponement)
// payment from its dates. Rules, in order:
//
//  1. paid on or before the due date  -> PAYMENT_DAILY
//  2. paid after the due date         -> LATE_PAYMENT
//  3. unpaid, due date not yet passed -> PENDING
//  4. unpaid, due date passed         -> LATE_PAYMENT
//
// All comparisons are calendar-day comparisons; paying at 23:59 on the due
// date is on time. This is a PURE function.
func Classify(dueDate time.Time, paymentDate *time.Time, today time.Time) Status {
	if paymentDate != nil {
		if calendar.OnOrBefore(*paymentDate, dueDate) {
			return StatusPaymentDaily
		}
		return StatusLatePayment
	}

	if calendar.OnOrBefore(today, dueDate) {
		return StatusPending
	}
	return StatusLatePayment
}
