// Package notify delivers booking outcomes to the user. Every Notifier is best
// effort: delivery failures are logged and never reach the caller.
package notify

import (
	"context"
	"time"

	"github.com/example/gym-sniper/internal/booking"
)

// TimeLayout is how class times are rendered in notifications.
const TimeLayout = "Mon 02 Jan 15:04"

// Notice identifies the class a notification is about.
type Notice struct {
	ClassID int64
	Name    string
	Time    time.Time
	Trainer string
}

// NoticeFor builds a Notice from a catalog slot.
func NoticeFor(s booking.Slot) Notice {
	return Notice{ClassID: s.ID, Name: s.Name, Time: s.StartTime, Trainer: s.Trainer}
}

// TrainerOrDefault returns the trainer name, or "Not assigned".
func (n Notice) TrainerOrDefault() string {
	if n.Trainer == "" {
		return "Not assigned"
	}
	return n.Trainer
}

// Notifier reports the terminal outcome of a reservation.
type Notifier interface {
	NotifySuccess(ctx context.Context, n Notice)
	NotifyFailure(ctx context.Context, n Notice, reason string)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) NotifySuccess(context.Context, Notice)         {}
func (Nop) NotifyFailure(context.Context, Notice, string) {}

// OrNop returns n, or Nop when n is nil.
func OrNop(n Notifier) Notifier {
	if n == nil {
		return Nop{}
	}
	return n
}
