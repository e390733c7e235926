// Package snipe drives a single slot from its first fetch to a claimed
// reservation, sleeping up to the opening of its booking window.
package snipe

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/gym-sniper/internal/attempt"
	"github.com/example/gym-sniper/internal/booking"
	"github.com/example/gym-sniper/internal/clock"
	"github.com/example/gym-sniper/internal/logger"
)

// ErrSlotExpired means the class started without ever becoming reservable.
var ErrSlotExpired = errors.New("class has already started")

// State is a step of a snipe.
type State int

const (
	Fetching State = iota
	Bookable
	AlreadyHeld
	Waiting
	Attempting
	Succeeded
	Failed
)

var stateNames = [...]string{"fetching", "bookable", "already-held", "waiting", "attempting", "succeeded", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result is the terminal report of a snipe.
type Result struct {
	State   State
	Slot    booking.Slot
	Held    bool
	Polls   int
	Outcome attempt.Outcome
}

// Sniper waits for one slot's window and claims it.
type Sniper struct {
	Service  booking.Service
	Attempts *attempt.Loop
	Clock    clock.Clock
	Log      logger.Logger
	Timing   Timing
	// Rand returns a value in [0,1) for poll jitter.
	Rand func() float64
}

// New returns a Sniper with default timing.
func New(svc booking.Service, loop *attempt.Loop, c clock.Clock, l logger.Logger) *Sniper {
	return &Sniper{Service: svc, Attempts: loop, Clock: c, Log: l, Timing: DefaultTiming()}
}

// Snipe fetches slotID and reserves it as soon as its window opens. Fetch
// errors are returned without retrying. Cancelling ctx abandons the snipe
// and returns ctx.Err().
func (s *Sniper) Snipe(ctx context.Context, slotID int64) (Result, error) {
	clk := s.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	log := logger.OrNop(s.Log)
	timing := s.Timing.withDefaults()

	detail, err := s.Service.GetSlotDetails(ctx, slotID)
	if err != nil {
		return Result{State: Failed}, fmt.Errorf("fetch slot %d: %w", slotID, err)
	}
	slot := detail.Slot
	res := Result{State: Fetching, Slot: slot}

	switch {
	case slot.Status.Held():
		log.Info("%s (id %d) is already %s", slot.Name, slot.ID, slot.Status)
		res.State, res.Held = Succeeded, true
		return res, nil
	case slot.Status.Reservable():
		res.State = Bookable
	case !clk.Now().Before(slot.StartTime):
		res.State = Failed
		return res, fmt.Errorf("%s (id %d): %w", slot.Name, slot.ID, ErrSlotExpired)
	default:
		res.State = Waiting
		next, err := s.wait(ctx, clk, log, timing, &res)
		if err != nil || next != Attempting {
			return res, err
		}
	}

	res.State = Attempting
	out, err := s.Attempts.Reserve(ctx, res.Slot)
	res.Outcome = out
	if err != nil {
		res.State = Failed
		return res, err
	}
	res.State = Succeeded
	res.Held = out.Held
	return res, nil
}

// wait sleeps until the window opens or a poll shows the slot can be acted on.
// It returns Attempting when a reservation should be made now.
func (s *Sniper) wait(ctx context.Context, clk clock.Clock, log logger.Logger, t Timing, res *Result) (State, error) {
	opens := res.Slot.OpensAt()
	log.Info("waiting for %s (id %d): window opens %s", res.Slot.Name, res.Slot.ID, opens.Format(time.RFC3339))

	for {
		remaining := opens.Sub(clk.Now())
		if remaining <= t.NearThreshold {
			break
		}
		d := t.coarseSleep(remaining)
		log.Info("%s until window opens, sleeping %s", remaining.Round(time.Second), d.Round(time.Second))
		if err := clk.Sleep(ctx, d); err != nil {
			return Waiting, err
		}
	}

	if _, err := s.Service.Login(ctx); err != nil {
		res.State = Failed
		return Failed, fmt.Errorf("refresh session: %w", err)
	}
	relogged := false

	for {
		remaining := opens.Sub(clk.Now())
		if remaining <= 0 {
			return Attempting, nil
		}

		detail, err := s.Service.GetSlotDetails(ctx, res.Slot.ID)
		res.Polls++
		switch {
		case err == nil:
			res.Slot = detail.Slot
			if detail.Status.Held() {
				log.Info("%s is already %s", detail.Name, detail.Status)
				res.State, res.Held = Succeeded, true
				return Succeeded, nil
			}
			if detail.Status.Reservable() {
				log.Info("%s is bookable %s early", detail.Name, remaining.Round(time.Second))
				return Attempting, nil
			}
		case ctx.Err() != nil:
			return Waiting, ctx.Err()
		case booking.IsAuth(err) && !relogged:
			relogged = true
			log.Warning("session rejected while polling, logging in again")
			if _, err := s.Service.Login(ctx); err != nil {
				log.Error("re-login failed: %v", err)
			}
		default:
			log.Warning("poll for %s failed: %v", res.Slot.Name, err)
		}

		d := t.pollInterval(remaining)
		if t.PollJitter > 0 {
			d += time.Duration(s.rand() * float64(t.PollJitter))
		}
		if err := clk.Sleep(ctx, min(d, remaining)); err != nil {
			return Waiting, err
		}
	}
}

func (s *Sniper) rand() float64 {
	if s.Rand != nil {
		return s.Rand()
	}
	return rand.Float64()
}
