// Package attempt claims a slot with bounded retries, deciding after each
// rejected reservation whether to stop, succeed or try again.
package attempt

import (
	"errors"
	"strings"

	"github.com/example/gym-sniper/internal/booking"
)

// Class is the category of a rejected reservation.
type Class int

const (
	Unknown Class = iota
	// PermanentStop ends the loop with a failure. The vendor's daily
	// reservation limit is the only such signal.
	PermanentStop
	// NotYetOpen means the reservation window has not opened.
	NotYetOpen
	// AlreadyDone means the user already holds or waits for the slot.
	AlreadyDone
	// CapacityFull means the slot is full or waitlist only.
	CapacityFull
)

func (c Class) String() string {
	switch c {
	case PermanentStop:
		return "permanent-stop"
	case NotYetOpen:
		return "not-yet-open"
	case AlreadyDone:
		return "already-done"
	case CapacityFull:
		return "capacity-full"
	default:
		return "unknown"
	}
}

// Retryable reports whether the loop should try again after this class.
func (c Class) Retryable() bool {
	return c == NotYetOpen || c == CapacityFull || c == Unknown
}

var rules = []struct {
	class  Class
	tokens []string
}{
	{PermanentStop, []string{"DailyBookingLimitReached"}},
	{NotYetOpen, []string{"TooSoonToBook"}},
	{AlreadyDone, []string{"already", "Already"}},
	{CapacityFull, []string{"Full", "full", "Awaitable"}},
}

// Classify maps a reservation error to its Class. The vendor's raw response
// text is used when err is a *booking.ReservationError, otherwise err.Error().
func Classify(err error) Class {
	if err == nil {
		return Unknown
	}
	text := err.Error()
	var re *booking.ReservationError
	if errors.As(err, &re) {
		text = re.Text
	}
	return ClassifyText(text)
}

// ClassifyText applies the token rules to raw vendor text.
func ClassifyText(text string) Class {
	for _, r := range rules {
		for _, tok := range r.tokens {
			if strings.Contains(text, tok) {
				return r.class
			}
		}
	}
	return Unknown
}
