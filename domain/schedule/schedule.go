// Package schedule derives billing cycle due dates from an anchor date.
// All functions are deterministic with no side effects.
package schedule

import (
	"time"

	"github.com/fiberline/backoffice/domain/calendar"
)

// NextDueDate returns the due date of the next unsettled billing cycle for
// an installation whose first cycle falls due on anchor and which has
// settledCycles payments already in a terminal paid state.
//
// The result is always derived directly from the anchor, never chained off
// the previous due date, so clamp adjustments in short months do not
// accumulate drift. With zero settled cycles the due date is the anchor
// itself.
// This is a PURE function.
func NextDueDate(anchor time.Time, settledCycles int) time.Time {
	if settledCycles < 0 {
		settledCycles = 0
	}
	return calendar.AddMonthsClamped(calendar.DateOnly(anchor), settledCycles)
}

// DueDates returns the due dates of the first n cycles, in order.
// Used to reconstruct an installation's cycle sequence for statements.
func DueDates(anchor time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		dates[i] = NextDueDate(anchor, i)
	}
	return dates
}
