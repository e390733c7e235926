package booking

import "time"

// Status is the vendor's availability state for a slot. Unknown vendor values
// are carried verbatim.
type Status string

const (
	StatusBookable    Status = "Bookable"
	StatusFull        Status = "Full"
	StatusBooked      Status = "Booked"
	StatusAwaiting    Status = "Awaiting"
	StatusUnavailable Status = "Unavailable"
)

// Reservable reports whether a reservation attempt can be made right now.
func (s Status) Reservable() bool { return s == StatusBookable }

// Held reports whether the current user already holds the slot, either
// booked or waitlisted.
func (s Status) Held() bool { return s == StatusBooked || s == StatusAwaiting }

// Slot is a snapshot of one class instance from a catalog fetch.
type Slot struct {
	ID        int64
	Name      string
	StartTime time.Time
	Status    Status
	Trainer   string // empty when unassigned
}

// OpensAt is the instant the slot's reservation window opens.
func (s Slot) OpensAt() time.Time { return OpeningInstant(s.StartTime) }

// SlotDetail is the detail view of a single slot.
type SlotDetail struct {
	Slot
	// WaitlistPosition is the current user's standby number, 0 when not waitlisted.
	WaitlistPosition int
}

// Ticket is the vendor's confirmation of a successful reservation.
type Ticket struct {
	Name      string
	StartTime time.Time
	Trainer   string
}

// Session is an authenticated credential with a finite lifetime.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the session can still be used at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && (s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt))
}
