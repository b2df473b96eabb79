package model

import "time"

// Day is one materialized calendar day inside the visible window.
//
// Days are value objects: the window manager recreates them whenever the
// window shifts, and Index/StartOffset are positional, not durable
// identifiers. Only Date survives a window change.
type Day struct {
	// Date is midnight of the calendar day in the display timezone.
	Date time.Time

	// Index is the day's position (0..N-1) within the loaded window.
	Index int

	// StartOffset is the day's vertical pixel offset within the rendered
	// band: Index * (dayHeight + daySeparatorHeight).
	StartOffset float64
}

// SameDate reports whether d falls on the given calendar date.
func (d Day) SameDate(t time.Time) bool {
	return d.Date.Year() == t.Year() && d.Date.YearDay() == t.YearDay()
}
