package clock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_SleepAdvancesAndRecords(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := NewFake(start)

	require.NoError(t, f.Sleep(context.Background(), time.Minute))
	require.NoError(t, f.Sleep(context.Background(), 0))
	require.NoError(t, f.Sleep(context.Background(), 30*time.Second))

	assert.Equal(t, start.Add(90*time.Second), f.Now())
	assert.Equal(t, []time.Duration{time.Minute, 0, 30 * time.Second}, f.Sleeps())
	assert.Equal(t, 90*time.Second, f.Slept())
}

func TestFake_SleepHonoursCancelledContext(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Sleep(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, f.Sleeps())
}

func TestFake_OnSleepHook(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var seen []time.Duration
	f.OnSleep = func(d time.Duration) { seen = append(seen, d) }

	_ = f.Sleep(context.Background(), time.Second)
	assert.Equal(t, []time.Duration{time.Second}, seen)
}

func TestReal_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Real{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestReal_SleepNonPositive(t *testing.T) {
	assert.NoError(t, Real{}.Sleep(context.Background(), -time.Second))
}
