package booking

import "time"

// WindowOffset is how far ahead of a class's start the vendor opens reservations.
const WindowOffset = 7*24*time.Hour + 2*time.Hour

// OpeningInstant returns the moment the reservation window for a slot
// starting at start opens.
func OpeningInstant(start time.Time) time.Time {
	return start.Add(-WindowOffset)
}

// CatalogDays is the number of catalog days that must be fetched to see every
// slot whose window can be open today.
func CatalogDays() int {
	day := 24 * time.Hour
	n := int(WindowOffset / day)
	if WindowOffset%day != 0 {
		n++
	}
	return n
}

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
