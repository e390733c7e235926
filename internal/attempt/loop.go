package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/gym-sniper/internal/booking"
	"github.com/example/gym-sniper/internal/clock"
	"github.com/example/gym-sniper/internal/logger"
	"github.com/example/gym-sniper/internal/notify"
)

const (
	DefaultMaxAttempts = 10
	DefaultDelay       = 200 * time.Millisecond

	// notYetOpenLogEvery throttles "not open yet" log lines.
	notYetOpenLogEvery = 10
)

var (
	ErrDailyLimit  = errors.New("daily booking limit reached")
	ErrMaxAttempts = errors.New("max attempts reached")
)

// Outcome describes a successful Reserve.
type Outcome struct {
	Attempts int
	// Held is true when the user already had the slot and no new ticket was issued.
	Held   bool
	Ticket booking.Ticket
}

// Loop reserves one slot with a fixed attempt budget.
type Loop struct {
	Reserver    booking.Reserver
	Notifier    notify.Notifier
	Clock       clock.Clock
	Log         logger.Logger
	MaxAttempts int
	Delay       time.Duration
}

// New returns a Loop with the default budget and delay.
func New(r booking.Reserver, n notify.Notifier, c clock.Clock, l logger.Logger) *Loop {
	return &Loop{Reserver: r, Notifier: n, Clock: c, Log: l}
}

// Reserve attempts slot until it is claimed, a permanent stop is signalled, or
// the budget runs out. Exactly one notification is sent unless ctx is cancelled
// first, in which case ctx.Err() is returned and nothing is sent.
func (l *Loop) Reserve(ctx context.Context, slot booking.Slot) (Outcome, error) {
	maxAttempts := l.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	delay := l.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	clk := l.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	log := logger.OrNop(l.Log)
	n := notify.OrNop(l.Notifier)
	notice := notify.NoticeFor(slot)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Attempts: attempt - 1}, err
		}
		ticket, err := l.Reserver.ReserveSlot(ctx, slot.ID)
		if err == nil {
			log.Info("reserved %s (id %d) on attempt %d", slot.Name, slot.ID, attempt)
			if ticket.Trainer != "" {
				notice.Trainer = ticket.Trainer
			}
			n.NotifySuccess(ctx, notice)
			return Outcome{Attempts: attempt, Ticket: ticket}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{Attempts: attempt}, ctxErr
		}

		class := Classify(err)
		switch class {
		case PermanentStop:
			log.Warning("daily booking limit reached, giving up on %s", slot.Name)
			n.NotifyFailure(ctx, notice, ErrDailyLimit.Error())
			return Outcome{Attempts: attempt}, fmt.Errorf("attempt %d: %w: %v", attempt, ErrDailyLimit, err)
		case AlreadyDone:
			log.Info("%s is already booked or waitlisted", slot.Name)
			n.NotifySuccess(ctx, notice)
			return Outcome{Attempts: attempt, Held: true}, nil
		case NotYetOpen:
			if attempt%notYetOpenLogEvery == 1 {
				log.Info("booking window for %s not open yet (attempt %d/%d)", slot.Name, attempt, maxAttempts)
			}
		case CapacityFull:
			log.Warning("%s is full (attempt %d/%d)", slot.Name, attempt, maxAttempts)
		default:
			log.Warning("attempt %d/%d for %s failed: %v", attempt, maxAttempts, slot.Name, err)
		}

		if attempt >= maxAttempts {
			n.NotifyFailure(ctx, notice, ErrMaxAttempts.Error())
			return Outcome{Attempts: attempt}, fmt.Errorf("%w after %d attempts: %v", ErrMaxAttempts, attempt, err)
		}
		if err := clk.Sleep(ctx, delay); err != nil {
			return Outcome{Attempts: attempt}, err
		}
	}
}
