package snipe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gym-sniper/internal/attempt"
	"github.com/example/gym-sniper/internal/booking"
	"github.com/example/gym-sniper/internal/booking/bookingtest"
	"github.com/example/gym-sniper/internal/clock"
	"github.com/example/gym-sniper/internal/logger"
	"github.com/example/gym-sniper/internal/notify"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *bookingtest.Service
	clk    *clock.Fake
	rec    *notify.Recorder
	log    *logger.MockLogger
	sniper *Sniper
}

func newFixture(slot booking.Slot) *fixture {
	f := &fixture{
		svc: bookingtest.New(slot),
		clk: clock.NewFake(now),
		rec: &notify.Recorder{},
		log: logger.NewMockLogger(),
	}
	loop := attempt.New(f.svc, f.rec, f.clk, f.log)
	f.sniper = New(f.svc, loop, f.clk, f.log)
	return f
}

// opensIn returns a slot whose window opens d from now.
func opensIn(d time.Duration, st booking.Status) booking.Slot {
	return booking.Slot{ID: 100, Name: "Crossfit", StartTime: now.Add(booking.WindowOffset + d), Status: st}
}

func detail(s booking.Slot, st booking.Status) booking.SlotDetail {
	s.Status = st
	return booking.SlotDetail{Slot: s}
}

func TestSnipe_BookableAttemptsImmediately(t *testing.T) {
	f := newFixture(opensIn(-time.Hour, booking.StatusBookable))

	res, err := f.sniper.Snipe(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.State)
	assert.Equal(t, 1, f.svc.ReserveCalls)
	assert.Empty(t, f.clk.Sleeps())
	assert.Zero(t, f.svc.LoginCalls)
	require.Len(t, f.rec.Records(), 1)
}

func TestSnipe_AlreadyHeld(t *testing.T) {
	for _, st := range []booking.Status{booking.StatusBooked, booking.StatusAwaiting} {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture(opensIn(time.Hour, st))

			res, err := f.sniper.Snipe(context.Background(), 100)

			require.NoError(t, err)
			assert.Equal(t, Succeeded, res.State)
			assert.True(t, res.Held)
			assert.Zero(t, f.svc.ReserveCalls)
			assert.Empty(t, f.clk.Sleeps())
		})
	}
}

func TestSnipe_FetchErrorIsReturned(t *testing.T) {
	f := newFixture(opensIn(time.Hour, booking.StatusFull))

	_, err := f.sniper.Snipe(context.Background(), 999)

	assert.ErrorIs(t, err, booking.ErrNotFound)
	assert.Equal(t, 1, f.svc.DetailCalls)
	assert.Zero(t, f.svc.ReserveCalls)
}

func TestSnipe_SleepsInChunksThenPolls(t *testing.T) {
	slot := opensIn(3*time.Hour, booking.StatusFull)
	f := newFixture(slot)

	res, err := f.sniper.Snipe(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.State)

	sleeps := f.clk.Sleeps()
	require.Greater(t, len(sleeps), 3)
	assert.Equal(t, []time.Duration{time.Hour, time.Hour, 55 * time.Minute}, sleeps[:3])
	for _, d := range sleeps[3:] {
		assert.LessOrEqual(t, d, 10*time.Second)
	}
	// 24 polls every 10s down to one minute, then 30 polls every 2s.
	assert.Equal(t, 54, res.Polls)
	assert.True(t, f.clk.Now().Equal(slot.OpensAt()))
	assert.Equal(t, 1, f.svc.LoginCalls)
	assert.Equal(t, 1, f.svc.ReserveCalls)
}

func TestSnipe_EarlyOpeningDuringPoll(t *testing.T) {
	slot := opensIn(2*time.Minute, booking.StatusFull)
	f := newFixture(slot)
	f.svc.DetailFunc = func(call int, id int64) (booking.SlotDetail, error) {
		if call < 3 {
			return detail(slot, booking.StatusFull), nil
		}
		return detail(slot, booking.StatusBookable), nil
	}

	res, err := f.sniper.Snipe(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.State)
	assert.Equal(t, 2, res.Polls)
	assert.Equal(t, []time.Duration{10 * time.Second}, f.clk.Sleeps())
	assert.Equal(t, 1, f.svc.ReserveCalls)
}

func TestSnipe_HeldDuringPoll(t *testing.T) {
	slot := opensIn(2*time.Minute, booking.StatusFull)
	f := newFixture(slot)
	f.svc.DetailFunc = func(call int, id int64) (booking.SlotDetail, error) {
		if call == 1 {
			return detail(slot, booking.StatusFull), nil
		}
		return detail(slot, booking.StatusAwaiting), nil
	}

	res, err := f.sniper.Snipe(context.Background(), 100)

	require.NoError(t, err)
	assert.True(t, res.Held)
	assert.Zero(t, f.svc.ReserveCalls)
}

func TestSnipe_ReloginOnceOnAuthError(t *testing.T) {
	slot := opensIn(time.Minute, booking.StatusFull)
	f := newFixture(slot)
	f.svc.DetailFunc = func(call int, id int64) (booking.SlotDetail, error) {
		switch call {
		case 1:
			return detail(slot, booking.StatusFull), nil
		case 2, 3:
			return booking.SlotDetail{}, &booking.AuthError{Reason: "token expired"}
		default:
			return detail(slot, booking.StatusBookable), nil
		}
	}

	res, err := f.sniper.Snipe(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.State)
	assert.Equal(t, 2, f.svc.LoginCalls)
	assert.Equal(t, 3, res.Polls)
}

func TestSnipe_PollErrorsAreTolerated(t *testing.T) {
	slot := opensIn(10*time.Second, booking.StatusFull)
	f := newFixture(slot)
	f.svc.DetailFunc = func(call int, id int64) (booking.SlotDetail, error) {
		if call == 1 {
			return detail(slot, booking.StatusFull), nil
		}
		return booking.SlotDetail{}, &booking.FetchError{Op: "details", Err: errors.New("timeout")}
	}

	res, err := f.sniper.Snipe(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, 5, res.Polls)
	assert.Len(t, f.log.Warnings(), 5)
	assert.Equal(t, 1, f.svc.ReserveCalls)
}

func TestSnipe_WindowAlreadyOpenAndFull(t *testing.T) {
	f := newFixture(opensIn(-time.Minute, booking.StatusFull))

	res, err := f.sniper.Snipe(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.State)
	assert.Zero(t, res.Polls)
	assert.Equal(t, 1, f.svc.LoginCalls)
	assert.Equal(t, 1, f.svc.ReserveCalls)
}

func TestSnipe_ExpiredSlot(t *testing.T) {
	slot := booking.Slot{ID: 100, Name: "Crossfit", StartTime: now.Add(-time.Minute), Status: booking.StatusUnavailable}
	f := newFixture(slot)

	res, err := f.sniper.Snipe(context.Background(), 100)

	assert.ErrorIs(t, err, ErrSlotExpired)
	assert.Equal(t, Failed, res.State)
	assert.Zero(t, f.svc.ReserveCalls)
}

func TestSnipe_LoginFailure(t *testing.T) {
	f := newFixture(opensIn(time.Minute, booking.StatusFull))
	f.svc.LoginErr = &booking.AuthError{Reason: "bad password"}

	_, err := f.sniper.Snipe(context.Background(), 100)

	assert.True(t, booking.IsAuth(err))
	assert.Zero(t, f.svc.ReserveCalls)
}

func TestSnipe_AttemptFailureIsReturned(t *testing.T) {
	f := newFixture(opensIn(-time.Hour, booking.StatusBookable))
	f.svc.ReserveFunc = bookingtest.Reject("DailyBookingLimitReached")

	res, err := f.sniper.Snipe(context.Background(), 100)

	assert.ErrorIs(t, err, attempt.ErrDailyLimit)
	assert.Equal(t, Failed, res.State)
}

func TestSnipe_CancelDuringCoarseSleep(t *testing.T) {
	f := newFixture(opensIn(10*time.Hour, booking.StatusFull))
	ctx, cancel := context.WithCancel(context.Background())
	f.clk.OnSleep = func(time.Duration) { cancel() }

	_, err := f.sniper.Snipe(ctx, 100)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.svc.LoginCalls)
	assert.Zero(t, f.svc.ReserveCalls)
	assert.Empty(t, f.rec.Records())
}

func TestSnipe_PollJitter(t *testing.T) {
	slot := opensIn(2*time.Minute, booking.StatusFull)
	f := newFixture(slot)
	f.sniper.Timing.PollJitter = time.Second
	f.sniper.Rand = func() float64 { return 0.5 }
	f.svc.DetailFunc = func(call int, id int64) (booking.SlotDetail, error) {
		if call < 3 {
			return detail(slot, booking.StatusFull), nil
		}
		return detail(slot, booking.StatusBookable), nil
	}

	_, err := f.sniper.Snipe(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10*time.Second + 500*time.Millisecond}, f.clk.Sleeps())
}

func TestTiming_PollInterval(t *testing.T) {
	tm := DefaultTiming().withDefaults()
	assert.Equal(t, 10*time.Second, tm.pollInterval(5*time.Minute))
	assert.Equal(t, 10*time.Second, tm.pollInterval(61*time.Second))
	assert.Equal(t, 2*time.Second, tm.pollInterval(time.Minute))
	assert.Equal(t, 2*time.Second, tm.pollInterval(time.Second))
	assert.Equal(t, 10*time.Second, tm.pollInterval(20*time.Minute))
	assert.Equal(t, 30*time.Minute, tm.coarseSleep(35*time.Minute))
	assert.Equal(t, time.Hour, tm.coarseSleep(3*time.Hour))
}
