// Package queue is the persistent store of scheduled snipes. Every mutation
// rewrites the whole file atomically before it becomes visible in memory.
package queue

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/example/gym-sniper/internal/booking"
	"github.com/example/gym-sniper/internal/clock"
)

// Retention is how long terminal entries are kept after their class time.
const Retention = 7 * 24 * time.Hour

const fileMode = 0o600

type document struct {
	Snipes []Entry `json:"snipes"`
}

// Queue is the snipe queue backed by a JSON file. Only one process may write
// the file at a time.
type Queue struct {
	mu      sync.Mutex
	fs      afero.Fs
	path    string
	loc     *time.Location
	clock   clock.Clock
	entries []Entry
}

// Option configures a Queue.
type Option func(*Queue)

// WithLocation sets the zone used to decide a class's calendar date.
func WithLocation(loc *time.Location) Option {
	return func(q *Queue) { q.loc = loc }
}

// WithClock sets the time source for AddedAt and Cleanup.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// Open returns the queue stored at path, loading it if the file exists.
func Open(fsys afero.Fs, path string, opts ...Option) (*Queue, error) {
	q := &Queue{fs: fsys, path: path, loc: time.Local, clock: clock.Real{}}
	for _, o := range opts {
		o(q)
	}
	if err := q.Load(); err != nil {
		return nil, err
	}
	return q, nil
}

// Path is the location of the queue file.
func (q *Queue) Path() string { return q.path }

// Load replaces the in-memory state with the file's contents. A missing file
// is an empty queue.
func (q *Queue) Load() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := afero.ReadFile(q.fs, q.path)
	if errors.Is(err, fs.ErrNotExist) {
		q.entries = nil
		return nil
	}
	if err != nil {
		return &PersistenceError{Op: "read", Path: q.path, Err: err}
	}
	var doc document
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return &PersistenceError{Op: "decode", Path: q.path, Err: err}
		}
	}
	q.entries = doc.Snipes
	return nil
}

// Save writes the in-memory state to disk.
func (q *Queue) Save() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.write(q.entries)
}

func (q *Queue) write(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(document{Snipes: entries}, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Path: q.path, Err: err}
	}

	dir := filepath.Dir(q.path)
	if err := q.fs.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := afero.TempFile(q.fs, dir, ".snipes.json.tmp.*")
	if err != nil {
		return &PersistenceError{Op: "create", Path: q.path, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		q.fs.Remove(tmpPath)
		return &PersistenceError{Op: "write", Path: q.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		q.fs.Remove(tmpPath)
		return &PersistenceError{Op: "close", Path: q.path, Err: err}
	}
	if err := q.fs.Chmod(tmpPath, fileMode); err != nil {
		q.fs.Remove(tmpPath)
		return &PersistenceError{Op: "chmod", Path: q.path, Err: err}
	}
	if err := q.fs.Rename(tmpPath, q.path); err != nil {
		q.fs.Remove(tmpPath)
		return &PersistenceError{Op: "rename", Path: q.path, Err: err}
	}
	return nil
}

// commit persists next and, only on success, makes it the in-memory state.
func (q *Queue) commit(next []Entry) error {
	if err := q.write(next); err != nil {
		return err
	}
	q.entries = next
	return nil
}

func (q *Queue) clone() []Entry {
	return append([]Entry(nil), q.entries...)
}

func (q *Queue) index(id int64) int {
	for i, e := range q.entries {
		if e.ClassID == id {
			return i
		}
	}
	return -1
}

// Add inserts a new pending entry. It fails with a *ConflictError when a
// pending entry already exists on the same local date as e.ClassTime, or when
// e.ClassID is already queued in any state. The queue is unchanged on error.
func (q *Queue) Add(e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, x := range q.entries {
		if x.Status == StatusPending && booking.SameDay(x.ClassTime, e.ClassTime, q.loc) {
			return &ConflictError{Reason: SameDay, Existing: x}
		}
	}
	if i := q.index(e.ClassID); i >= 0 {
		return &ConflictError{Reason: DuplicateID, Existing: q.entries[i]}
	}

	e.Status = StatusPending
	e.ErrorMessage = ""
	e.BookingWindow = booking.OpeningInstant(e.ClassTime)
	if e.AddedAt.IsZero() {
		e.AddedAt = q.clock.Now()
	}
	return q.commit(append(q.clone(), e))
}

// Remove deletes the entry for id regardless of its state. It reports whether
// an entry was removed.
func (q *Queue) Remove(id int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.index(id)
	if i < 0 {
		return false, nil
	}
	next := q.clone()
	next = append(next[:i], next[i+1:]...)
	if err := q.commit(next); err != nil {
		return false, err
	}
	return true, nil
}

// Pending returns the pending entries, earliest booking window first.
func (q *Queue) Pending() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Entry
	for _, e := range q.entries {
		if e.Status == StatusPending {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BookingWindow.Before(out[j].BookingWindow)
	})
	return out
}

// Entries returns every entry in insertion order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clone()
}

// Get returns the entry for id.
func (q *Queue) Get(id int64) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.index(id); i >= 0 {
		return q.entries[i], true
	}
	return Entry{}, false
}

// MarkCompleted moves a pending entry to completed.
func (q *Queue) MarkCompleted(id int64) error {
	return q.finish(id, StatusCompleted, "")
}

// MarkFailed moves a pending entry to failed with the given reason.
func (q *Queue) MarkFailed(id int64, reason string) error {
	return q.finish(id, StatusFailed, reason)
}

func (q *Queue) finish(id int64, st Status, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.index(id)
	if i < 0 {
		return ErrNotFound
	}
	if q.entries[i].Status != StatusPending {
		return ErrNotPending
	}
	next := q.clone()
	next[i].Status = st
	next[i].ErrorMessage = reason
	return q.commit(next)
}

// Cleanup purges terminal entries whose class time is more than Retention in
// the past. Pending entries are never purged. The file is only rewritten when
// something was removed.
func (q *Queue) Cleanup() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := q.clock.Now().Add(-Retention)
	next := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		if e.Status == StatusPending || e.ClassTime.After(cutoff) {
			next = append(next, e)
		}
	}
	removed := len(q.entries) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := q.commit(next); err != nil {
		return 0, err
	}
	return removed, nil
}
