package cmd

import (
	"bytes"
	"encoding/json"
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/example/gym-sniper/internal/booking"
	"github.com/example/gym-sniper/internal/queue"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"version", "keys", "creds", "login", "classes", "bookings", "book", "cancel", "snipe", "queue", "daemon", "schedule", "history"} {
		assert.Contains(t, names, want)
	}
	assert.Equal(t, "config.toml", root.PersistentFlags().Lookup("config").DefValue)
}

func TestVersionAndKeys(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gymsniper dev")

	out, err = run(t, "", "keys")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "export SESSION_SECRET="))
	assert.Len(t, strings.TrimSpace(strings.TrimPrefix(out, "export SESSION_SECRET=")), 44)
}

func TestCurrentBuild(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
		},
	}
	b := currentBuild(info)
	assert.Equal(t, "v1.4.0", b.Version)
	assert.Equal(t, "0123456789ab", b.Commit)
	assert.Equal(t, "2026-03-01T10:00:00Z", b.BuiltAt)
	assert.Equal(t, runtime.Version(), b.GoVersion)

	nostamp := currentBuild(nil)
	assert.Equal(t, "dev", nostamp.Version)
	assert.Equal(t, "none", nostamp.Commit)

	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, b, true))
	var got buildInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, b, got)
}

func TestCreds(t *testing.T) {
	keyring.MockInit()

	out, err := run(t, "s3cret\n", "creds", "set", "me@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "password saved")

	pw, err := keyring.Get("gym-sniper", "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	_, err = run(t, "", "creds", "delete", "me@example.com")
	require.NoError(t, err)
	_, err = run(t, "", "creds", "delete", "me@example.com")
	assert.ErrorContains(t, err, "no password stored")

	_, err = run(t, "\n", "creds", "set", "me@example.com")
	assert.ErrorContains(t, err, "empty password")
}

func TestCommandsNeedConfig(t *testing.T) {
	_, err := run(t, "", "--config", t.TempDir()+"/nope.toml", "queue", "list")
	assert.ErrorContains(t, err, "read config")
}

func TestParseClassID(t *testing.T) {
	id, err := parseClassID("12345")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseClassID(bad)
		assert.Error(t, err, bad)
	}
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Minute, "open"},
		{0, "open"},
		{20 * time.Second, "0m"},
		{45 * time.Minute, "45m"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
		{3 * 24 * time.Hour, "3d"},
		{7*24*time.Hour + 2*time.Hour + time.Minute, "7d 2h 1m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanDuration(tt.in), tt.in.String())
	}
}

func sampleEntries() []queue.Entry {
	class := time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)
	e := queue.NewEntry(booking.Slot{ID: 7, Name: "Yoga", StartTime: class, Trainer: "Ann"}, class.Add(-9*24*time.Hour))
	done := queue.NewEntry(booking.Slot{ID: 8, Name: "Spin", StartTime: class.Add(24 * time.Hour)}, class)
	done.Status = queue.StatusFailed
	done.ErrorMessage = "daily limit"
	return []queue.Entry{e, done}
}

func TestWriteEntries(t *testing.T) {
	entries := sampleEntries()
	now := entries[0].BookingWindow.Add(-90 * time.Minute)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeEntries(&buf, "table", entries, now))
		out := buf.String()
		assert.Contains(t, out, "OPENS IN")
		assert.Contains(t, out, "Yoga")
		assert.Contains(t, out, "1h 30m")
		assert.Contains(t, out, "failed")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeEntries(&buf, "json", entries, now))
		var rows []entryRow
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
		require.Len(t, rows, 2)
		assert.Equal(t, "1h 30m", rows[0].OpensIn)
		assert.Equal(t, "Ann", rows[0].Trainer)
		assert.Empty(t, rows[1].OpensIn)
		assert.Equal(t, "daily limit", rows[1].Error)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeEntries(&buf, "yaml", entries, now))
		assert.Contains(t, buf.String(), "class_name: Yoga")
		var rows []entryRow
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
		assert.Equal(t, int64(8), rows[1].ClassID)
	})

	t.Run("empty table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeEntries(&buf, "", nil, now))
		assert.Equal(t, "No snipes queued.\n", buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		assert.Error(t, writeEntries(&bytes.Buffer{}, "xml", entries, now))
	})
}

func TestFilterTrainer(t *testing.T) {
	slots := []booking.Slot{{ID: 1, Trainer: "Anna Smith"}, {ID: 2, Trainer: ""}, {ID: 3, Trainer: "Joanna"}}
	got := filterTrainer(slots, "ANNA")
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
	assert.Len(t, filterTrainer(slots, " "), 3)
}

func TestWriteBookings(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)
	require.NoError(t, writeBookings(&buf, []booking.SlotDetail{
		{Slot: booking.Slot{ID: 1, Name: "Yoga", StartTime: start, Status: booking.StatusBooked}},
		{Slot: booking.Slot{ID: 2, Name: "Spin", StartTime: start, Status: booking.StatusAwaiting}, WaitlistPosition: 3},
	}))
	assert.Contains(t, buf.String(), "#3")
	assert.Contains(t, buf.String(), "Booked")
}
