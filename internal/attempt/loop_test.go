package attempt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gym-sniper/internal/booking"
	"github.com/example/gym-sniper/internal/booking/bookingtest"
	"github.com/example/gym-sniper/internal/clock"
	"github.com/example/gym-sniper/internal/logger"
	"github.com/example/gym-sniper/internal/notify"
)

var slot = booking.Slot{
	ID:        100,
	Name:      "Crossfit",
	StartTime: time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC),
	Status:    booking.StatusBookable,
}

type fixture struct {
	svc  *bookingtest.Service
	rec  *notify.Recorder
	clk  *clock.Fake
	log  *logger.MockLogger
	loop *Loop
}

func newFixture() *fixture {
	f := &fixture{
		svc: bookingtest.New(slot),
		rec: &notify.Recorder{},
		clk: clock.NewFake(time.Date(2026, 3, 8, 16, 0, 0, 0, time.UTC)),
		log: logger.NewMockLogger(),
	}
	f.loop = New(f.svc, f.rec, f.clk, f.log)
	return f
}

func TestReserve_SuccessFirstTry(t *testing.T) {
	f := newFixture()
	out, err := f.loop.Reserve(context.Background(), slot)

	require.NoError(t, err)
	assert.Equal(t, 1, out.Attempts)
	assert.False(t, out.Held)
	assert.Equal(t, 1, f.svc.ReserveCalls)
	assert.Empty(t, f.clk.Sleeps())

	recs := f.rec.Records()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Success)
	assert.Equal(t, "Crossfit", recs[0].Notice.Name)
}

func TestReserve_DailyLimitStopsImmediately(t *testing.T) {
	f := newFixture()
	f.svc.ReserveFunc = bookingtest.Reject("DailyBookingLimitReached")

	out, err := f.loop.Reserve(context.Background(), slot)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDailyLimit)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, f.svc.ReserveCalls)
	assert.Empty(t, f.clk.Sleeps())

	recs := f.rec.Records()
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Success)
	assert.Equal(t, ErrDailyLimit.Error(), recs[0].Reason)
}

func TestReserve_AlreadyBookedIsSuccess(t *testing.T) {
	f := newFixture()
	f.svc.ReserveFunc = bookingtest.Reject("User is already booked for this class")

	out, err := f.loop.Reserve(context.Background(), slot)

	require.NoError(t, err)
	assert.True(t, out.Held)
	assert.Equal(t, 1, f.svc.ReserveCalls)
	assert.Empty(t, f.clk.Sleeps())
	require.Len(t, f.rec.Records(), 1)
	assert.True(t, f.rec.Records()[0].Success)
}

func TestReserve_UnknownErrorExhaustsBudget(t *testing.T) {
	f := newFixture()
	f.svc.ReserveFunc = bookingtest.Reject("Internal Server Error")

	out, err := f.loop.Reserve(context.Background(), slot)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxAttempts)
	assert.Equal(t, DefaultMaxAttempts, out.Attempts)
	assert.Equal(t, DefaultMaxAttempts, f.svc.ReserveCalls)

	sleeps := f.clk.Sleeps()
	require.Len(t, sleeps, DefaultMaxAttempts-1)
	for _, d := range sleeps {
		assert.Equal(t, DefaultDelay, d)
	}

	recs := f.rec.Records()
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Success)
	assert.Equal(t, "max attempts reached", recs[0].Reason)
	assert.Len(t, f.log.Warnings(), DefaultMaxAttempts)
}

func TestReserve_RetriesUntilOpen(t *testing.T) {
	f := newFixture()
	f.loop.MaxAttempts = 15
	f.svc.ReserveFunc = func(call int, id int64) (booking.Ticket, error) {
		if call < 12 {
			return booking.Ticket{}, &booking.ReservationError{Text: "TooSoonToBook"}
		}
		return booking.Ticket{Name: "Crossfit", Trainer: "Anna"}, nil
	}

	out, err := f.loop.Reserve(context.Background(), slot)

	require.NoError(t, err)
	assert.Equal(t, 12, out.Attempts)
	assert.Equal(t, "Anna", out.Ticket.Trainer)
	assert.Len(t, f.clk.Sleeps(), 11)
	// Logged on attempts 1 and 11 only.
	assert.Len(t, f.log.InfoCalls, 3)
	recs := f.rec.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "Anna", recs[0].Notice.Trainer)
}

func TestReserve_FullCountsTowardBudget(t *testing.T) {
	f := newFixture()
	f.loop.MaxAttempts = 3
	f.svc.ReserveFunc = bookingtest.Reject("Full")

	_, err := f.loop.Reserve(context.Background(), slot)

	assert.ErrorIs(t, err, ErrMaxAttempts)
	assert.Equal(t, 3, f.svc.ReserveCalls)
}

func TestReserve_CancelledSendsNothing(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.svc.ReserveFunc = bookingtest.Reject("TooSoonToBook")
	f.clk.OnSleep = func(time.Duration) { cancel() }

	_, err := f.loop.Reserve(ctx, slot)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, f.svc.ReserveCalls)
	assert.Empty(t, f.rec.Records())
}
