// Package daemon runs the snipe queue: it waits for the earliest pending
// entry's window and hands it to the sniper, one entry at a time.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/gym-sniper/internal/attempt"
	"github.com/example/gym-sniper/internal/booking"
	"github.com/example/gym-sniper/internal/clock"
	"github.com/example/gym-sniper/internal/history"
	"github.com/example/gym-sniper/internal/logger"
	"github.com/example/gym-sniper/internal/queue"
	"github.com/example/gym-sniper/internal/snipe"
)

// Action is what a Step decided to do.
type Action int

const (
	// Idle means the queue had nothing pending.
	Idle Action = iota
	// Wait means the next window is still outside the near threshold.
	Wait
	// Snipe means an entry was dispatched to the sniper.
	Snipe
	// Expire means the earliest entry's class had already started and the
	// entry was marked failed without a snipe.
	Expire
)

func (a Action) String() string {
	switch a {
	case Idle:
		return "idle"
	case Wait:
		return "wait"
	case Snipe:
		return "snipe"
	case Expire:
		return "expire"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Decision is the result of one daemon iteration. Sleep is how long Run waits
// before the next one.
type Decision struct {
	Action    Action
	Sleep     time.Duration
	Entry     queue.Entry
	Remaining time.Duration
	// Status is the entry's status after the iteration. Pending after a
	// Snipe means the failure was transient and the entry will be retried.
	Status queue.Status
	Err    error
}

// Sniper runs one snipe to completion.
type Sniper interface {
	Snipe(ctx context.Context, slotID int64) (snipe.Result, error)
}

// Tier maps "remaining is more than Above" to a sleep.
type Tier struct {
	Above time.Duration
	Sleep time.Duration
}

// Config holds the daemon's loop timings.
type Config struct {
	NearThreshold time.Duration
	EmptyPoll     time.Duration
	Pause         time.Duration
	// MaxDeferrals is how many consecutive transient failures an entry may
	// have before it is marked failed.
	MaxDeferrals int
	// Tiers must be ordered by Above, largest first. Remaining times below
	// every tier use the last tier's Sleep.
	Tiers []Tier
}

func DefaultConfig() Config {
	return Config{
		NearThreshold: 5 * time.Minute,
		EmptyPoll:     time.Minute,
		Pause:         5 * time.Second,
		MaxDeferrals:  3,
		Tiers: []Tier{
			{Above: time.Hour, Sleep: 30 * time.Minute},
			{Above: 30 * time.Minute, Sleep: 10 * time.Minute},
			{Above: 0, Sleep: time.Minute},
		},
	}
}

// TierSleep returns the sleep for a given remaining time.
func (c Config) TierSleep(remaining time.Duration) time.Duration {
	for _, t := range c.Tiers {
		if remaining > t.Above {
			return t.Sleep
		}
	}
	if n := len(c.Tiers); n > 0 {
		return c.Tiers[n-1].Sleep
	}
	return time.Minute
}

type Daemon struct {
	Queue   *queue.Queue
	Service booking.Service
	Sniper  Sniper
	Clock   clock.Clock
	Log     logger.Logger
	// History, when set, receives one run per dispatched entry.
	History history.Recorder
	Config  Config

	deferrals map[int64]deferral
}

type deferral struct {
	count int
	err   error
}

func New(q *queue.Queue, svc booking.Service, s Sniper, c clock.Clock, l logger.Logger) *Daemon {
	return &Daemon{Queue: q, Service: svc, Sniper: s, Clock: c, Log: l, Config: DefaultConfig()}
}

func (d *Daemon) clock() clock.Clock {
	if d.Clock == nil {
		return clock.Real{}
	}
	return d.Clock
}

// Run loops Step until ctx is done or the queue file cannot be read or written.
func (d *Daemon) Run(ctx context.Context) error {
	log := logger.OrNop(d.Log)
	log.Info("snipe daemon started (queue %s)", d.Queue.Path())
	for {
		dec, err := d.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("snipe daemon stopping")
				return nil
			}
			return err
		}
		if err := d.clock().Sleep(ctx, dec.Sleep); err != nil {
			log.Info("snipe daemon stopping")
			return nil
		}
	}
}

// Step runs one iteration: reload and clean the queue, pick the entry with
// the earliest window, and either compute a wait or snipe it.
func (d *Daemon) Step(ctx context.Context) (Decision, error) {
	log := logger.OrNop(d.Log)
	cfg := d.Config

	if err := d.Queue.Load(); err != nil {
		return Decision{}, fmt.Errorf("load queue: %w", err)
	}
	if n, err := d.Queue.Cleanup(); err != nil {
		return Decision{}, fmt.Errorf("cleanup queue: %w", err)
	} else if n > 0 {
		log.Info("removed %d old entries from the queue", n)
	}

	pending := d.Queue.Pending()
	if len(pending) == 0 {
		return Decision{Action: Idle, Sleep: cfg.EmptyPoll}, nil
	}

	e := pending[0]
	if !d.clock().Now().Before(e.ClassTime) {
		return d.expire(ctx, e)
	}
	remaining := e.BookingWindow.Sub(d.clock().Now())
	if remaining > cfg.NearThreshold {
		sleep := cfg.TierSleep(remaining)
		log.Info("next snipe %s opens in %s, sleeping %s", e, remaining.Round(time.Second), sleep)
		return Decision{Action: Wait, Sleep: sleep, Entry: e, Remaining: remaining, Status: e.Status}, nil
	}

	dec := Decision{Action: Snipe, Sleep: cfg.Pause, Entry: e, Remaining: remaining, Status: queue.StatusPending}
	started := d.clock().Now()

	log.Info("starting snipe for %s", e)
	if _, err := d.Service.Login(ctx); err != nil {
		if ctx.Err() != nil {
			return dec, ctx.Err()
		}
		log.Warning("login failed for %s: %v", e, err)
		dec.Err = err
		st, ferr := d.deferOrFail(ctx, e, snipe.Result{}, err, started)
		dec.Status = st
		return dec, ferr
	}

	res, err := d.Sniper.Snipe(ctx, e.ClassID)
	if ctx.Err() != nil {
		return dec, ctx.Err()
	}
	dec.Err = err

	switch {
	case err == nil:
		delete(d.deferrals, e.ClassID)
		if res.Held {
			log.Info("%s is already held", e)
		} else {
			log.Info("snipe for %s succeeded", e)
		}
		if err := d.finish(e, queue.StatusCompleted, ""); err != nil {
			return dec, err
		}
		dec.Status = queue.StatusCompleted
		outcome := history.OutcomeBooked
		if res.Held {
			outcome = history.OutcomeHeld
		}
		d.record(ctx, e, res, nil, outcome, started)
	case transient(err):
		log.Warning("snipe for %s interrupted: %v", e, err)
		st, ferr := d.deferOrFail(ctx, e, res, err, started)
		dec.Status = st
		if ferr != nil {
			return dec, ferr
		}
	default:
		delete(d.deferrals, e.ClassID)
		if errors.Is(err, attempt.ErrDailyLimit) {
			log.Warning("daily booking limit reached for %s", e)
		} else {
			log.Error("snipe for %s failed: %v", e, err)
		}
		if err := d.finish(e, queue.StatusFailed, err.Error()); err != nil {
			return dec, err
		}
		dec.Status = queue.StatusFailed
		d.record(ctx, e, res, err, history.OutcomeFailed, started)
	}
	return dec, nil
}

// deferOrFail keeps e pending after a transient failure until it has failed
// MaxDeferrals times in a row, then marks it failed.
func (d *Daemon) deferOrFail(ctx context.Context, e queue.Entry, res snipe.Result, err error, started time.Time) (queue.Status, error) {
	if d.deferrals == nil {
		d.deferrals = map[int64]deferral{}
	}
	df := d.deferrals[e.ClassID]
	df.count++
	df.err = err

	limit := d.Config.MaxDeferrals
	if limit <= 0 {
		limit = DefaultConfig().MaxDeferrals
	}
	if df.count < limit {
		d.deferrals[e.ClassID] = df
		logger.OrNop(d.Log).Info("will retry %s (%d/%d)", e, df.count, limit)
		d.record(ctx, e, res, err, history.OutcomeDeferred, started)
		return queue.StatusPending, nil
	}

	delete(d.deferrals, e.ClassID)
	reason := fmt.Sprintf("gave up after %d failed tries: %v", df.count, err)
	logger.OrNop(d.Log).Error("snipe for %s %s", e, reason)
	if ferr := d.finish(e, queue.StatusFailed, reason); ferr != nil {
		return queue.StatusPending, ferr
	}
	d.record(ctx, e, res, err, history.OutcomeFailed, started)
	return queue.StatusFailed, nil
}

// expire fails an entry whose class started before it could be booked, so
// the entries behind it are not starved.
func (d *Daemon) expire(ctx context.Context, e queue.Entry) (Decision, error) {
	reason := "class started before it could be booked"
	var lastErr error
	if df, ok := d.deferrals[e.ClassID]; ok {
		lastErr = df.err
		reason += ": " + df.err.Error()
		delete(d.deferrals, e.ClassID)
	}
	logger.OrNop(d.Log).Warning("%s: %s", e, reason)
	dec := Decision{Action: Expire, Entry: e, Remaining: e.BookingWindow.Sub(d.clock().Now()), Status: queue.StatusFailed, Err: lastErr}
	if err := d.finish(e, queue.StatusFailed, reason); err != nil {
		return dec, err
	}
	now := d.clock().Now()
	d.record(ctx, e, snipe.Result{}, errors.New(reason), history.OutcomeFailed, now)
	return dec, nil
}

// transient errors leave the entry pending. A slot that no longer exists is
// not transient.
func transient(err error) bool {
	if errors.Is(err, booking.ErrNotFound) {
		return false
	}
	var fe *booking.FetchError
	return booking.IsAuth(err) || errors.As(err, &fe)
}

func (d *Daemon) finish(e queue.Entry, st queue.Status, reason string) error {
	var err error
	if st == queue.StatusCompleted {
		err = d.Queue.MarkCompleted(e.ClassID)
	} else {
		err = d.Queue.MarkFailed(e.ClassID, reason)
	}
	if errors.Is(err, queue.ErrNotFound) || errors.Is(err, queue.ErrNotPending) {
		// Removed or finished by someone else while the snipe ran.
		logger.OrNop(d.Log).Warning("could not record result for %s: %v", e, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("update queue: %w", err)
	}
	return nil
}

func (d *Daemon) record(ctx context.Context, e queue.Entry, res snipe.Result, runErr error, outcome string, started time.Time) {
	if d.History == nil {
		return
	}
	run := history.Run{
		ID:         uuid.New(),
		ClassID:    e.ClassID,
		ClassName:  e.ClassName,
		ClassTime:  e.ClassTime,
		Source:     history.SourceDaemon,
		Outcome:    outcome,
		Attempts:   res.Outcome.Attempts,
		StartedAt:  started,
		FinishedAt: d.clock().Now(),
	}
	if runErr != nil {
		run.Error = history.StrPtr(runErr.Error())
	}
	if err := d.History.Record(ctx, run); err != nil {
		logger.OrNop(d.Log).Warning("could not record history for %s: %v", e, err)
	}
}
