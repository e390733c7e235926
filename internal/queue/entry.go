package queue

import (
	"fmt"
	"time"

	"github.com/example/gym-sniper/internal/booking"
)

// Status is the lifecycle state of a queued snipe.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Entry is one scheduled snipe.
type Entry struct {
	ClassID       int64     `json:"class_id"`
	ClassName     string    `json:"class_name"`
	ClassTime     time.Time `json:"class_time"`
	BookingWindow time.Time `json:"booking_window"`
	Trainer       string    `json:"trainer,omitempty"`
	AddedAt       time.Time `json:"added_at"`
	Status        Status    `json:"status"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// NewEntry builds a pending entry for a catalog slot.
func NewEntry(s booking.Slot, now time.Time) Entry {
	return Entry{
		ClassID:       s.ID,
		ClassName:     s.Name,
		ClassTime:     s.StartTime,
		BookingWindow: booking.OpeningInstant(s.StartTime),
		Trainer:       s.Trainer,
		AddedAt:       now,
		Status:        StatusPending,
	}
}

// Slot returns the catalog view of the entry.
func (e Entry) Slot() booking.Slot {
	return booking.Slot{ID: e.ClassID, Name: e.ClassName, StartTime: e.ClassTime, Trainer: e.Trainer}
}

func (e Entry) String() string {
	return fmt.Sprintf("%s (id %d) at %s", e.ClassName, e.ClassID, e.ClassTime.Format("2006-01-02 15:04"))
}
