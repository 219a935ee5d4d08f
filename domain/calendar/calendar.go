// Package calendar provides pure date arithmetic for billing cycles.
// All functions are deterministic with no side effects and operate on
// date-only values (midnight, original location preserved).
package calendar

import "time"

// AddMonthsClamped advances d by n whole months, clamping the day-of-month
// to the last valid day of the target month when d's day does not exist
// there (e.g. Jan 31 + 1 month = Feb 28/29, never March).
//
// Computed directly from d, never by chaining single-month steps, so a
// clamp in one cycle does not propagate into later cycles.
// This is a PURE function.
func AddMonthsClamped(d time.Time, n int) time.Time {
	year, month, day := d.Date()

	// Day 1 of the target month cannot overflow, so resolve the target
	// year/month first, then clip the day.
	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, d.Location())

	last := DaysInMonth(target.Year(), target.Month())
	if day > last {
		day = last
	}

	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, d.Location())
}

// DaysInMonth returns the number of days in the given month.
// Day 0 of the following month is the last day of this one.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayAfter reports whether a falls on a calendar day strictly after b.
// Time-of-day is ignored.
func DayAfter(a, b time.Time) bool {
	return DateOnly(a).After(DateOnly(b))
}

// OnOrBefore reports whether a falls on the same calendar day as b or
// on an earlier one. Time-of-day is ignored.
func OnOrBefore(a, b time.Time) bool {
	return !DayAfter(a, b)
}
