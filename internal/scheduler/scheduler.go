package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/gym-sniper/internal/attempt"
	"github.com/example/gym-sniper/internal/booking"
	"github.com/example/gym-sniper/internal/clock"
	"github.com/example/gym-sniper/internal/history"
	"github.com/example/gym-sniper/internal/logger"
)

const (
	DefaultInterval  = time.Minute
	DefaultLookahead = 5 * time.Minute
)

// Scheduler scans the catalog on a fixed tick and books every slot matching
// a recurring target once its window is open.
type Scheduler struct {
	Service  booking.Service
	Attempts *attempt.Loop
	Targets  []Target
	Clock    clock.Clock
	Log      logger.Logger
	History  history.Recorder

	Interval  time.Duration
	Lookahead time.Duration

	mu      sync.Mutex
	handled map[int64]bool
}

func New(svc booking.Service, loop *attempt.Loop, targets []Target, c clock.Clock, l logger.Logger) *Scheduler {
	return &Scheduler{
		Service:   svc,
		Attempts:  loop,
		Targets:   targets,
		Clock:     c,
		Log:       l,
		Interval:  DefaultInterval,
		Lookahead: DefaultLookahead,
	}
}

func (s *Scheduler) clock() clock.Clock {
	if s.Clock == nil {
		return clock.Real{}
	}
	return s.Clock
}

// Run logs in, then ticks until ctx is done. A failed login or tick is logged
// and the next tick proceeds; Run only returns once ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	log := logger.OrNop(s.Log)
	if _, err := s.Service.Login(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.Warning("scheduler: login failed, retrying on the next tick: %v", err)
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log.Info("scheduler started with %d targets, checking every %s", len(s.Targets), interval)

	for {
		if _, err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("scheduler: tick failed: %v", err)
		}
		if err := s.clock().Sleep(ctx, interval); err != nil {
			return nil
		}
	}
}

// Tick fetches the catalog once and reserves every matching bookable slot
// whose window is open or opens within Lookahead. It returns the number of
// reservations attempted. A slot that failed with a retryable error is tried
// again on the next tick while it stays bookable.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	log := logger.OrNop(s.Log)
	lookahead := s.Lookahead
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}

	slots, err := s.Service.ListAvailableSlots(ctx, booking.CatalogDays())
	if err != nil {
		if booking.IsAuth(err) {
			log.Warning("scheduler: session expired, logging in again")
			if _, lerr := s.Service.Login(ctx); lerr != nil {
				return 0, fmt.Errorf("re-login: %w", lerr)
			}
		}
		return 0, fmt.Errorf("fetch catalog: %w", err)
	}
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].StartTime.Equal(slots[j].StartTime) {
			return slots[i].StartTime.Before(slots[j].StartTime)
		}
		return slots[i].ID < slots[j].ID
	})

	attempted := 0
	for _, slot := range slots {
		if !slot.Status.Reservable() || s.isHandled(slot.ID) || !s.wanted(slot) {
			continue
		}
		until := slot.OpensAt().Sub(s.clock().Now())
		if until > lookahead {
			continue
		}
		if until > 0 {
			log.Info("booking opens in %s for %s at %s", until.Round(time.Second), slot.Name, slot.StartTime.Format(time.RFC3339))
			if err := s.clock().Sleep(ctx, until); err != nil {
				return attempted, err
			}
		} else {
			log.Info("booking window open for %s at %s", slot.Name, slot.StartTime.Format(time.RFC3339))
		}

		started := s.clock().Now()
		out, err := s.Attempts.Reserve(ctx, slot)
		if ctx.Err() != nil {
			return attempted, ctx.Err()
		}
		attempted++
		if settled(err) {
			s.markHandled(slot.ID)
		}
		s.record(ctx, slot, out, err, started)
	}
	return attempted, nil
}

// settled reports whether a reservation outcome is final for this slot: it was
// booked, already held, or the vendor refused for the day.
func settled(err error) bool {
	return err == nil || errors.Is(err, attempt.ErrDailyLimit)
}

func (s *Scheduler) wanted(slot booking.Slot) bool {
	for _, t := range s.Targets {
		if t.Matches(slot) {
			return true
		}
	}
	return false
}

func (s *Scheduler) isHandled(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handled[id]
}

func (s *Scheduler) markHandled(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handled == nil {
		s.handled = map[int64]bool{}
	}
	s.handled[id] = true
}

func (s *Scheduler) record(ctx context.Context, slot booking.Slot, out attempt.Outcome, runErr error, started time.Time) {
	if s.History == nil {
		return
	}
	run := history.Run{
		ID:         uuid.New(),
		ClassID:    slot.ID,
		ClassName:  slot.Name,
		ClassTime:  slot.StartTime,
		Source:     history.SourceScheduler,
		Outcome:    history.OutcomeBooked,
		Attempts:   out.Attempts,
		StartedAt:  started,
		FinishedAt: s.clock().Now(),
	}
	switch {
	case runErr != nil:
		run.Outcome = history.OutcomeFailed
		run.Error = history.StrPtr(runErr.Error())
	case out.Held:
		run.Outcome = history.OutcomeHeld
	}
	if err := s.History.Record(ctx, run); err != nil {
		logger.OrNop(s.Log).Warning("scheduler: could not record history: %v", err)
	}
}
