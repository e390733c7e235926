package queue

import (
	"errors"
	"fmt"
)

var (
	ErrConflict   = errors.New("queue conflict")
	ErrNotFound   = errors.New("class not in queue")
	ErrNotPending = errors.New("entry is not pending")
)

// ConflictReason says which insertion rule was violated.
type ConflictReason int

const (
	SameDay ConflictReason = iota + 1
	DuplicateID
)

// ConflictError is returned by Add when the new entry violates a queue rule.
// Existing is the entry it collides with.
type ConflictError struct {
	Reason   ConflictReason
	Existing Entry
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case SameDay:
		return fmt.Sprintf("already have a pending snipe on %s: %s",
			e.Existing.ClassTime.Format("2006-01-02"), e.Existing)
	default:
		return fmt.Sprintf("class %d is already in the queue (%s)", e.Existing.ClassID, e.Existing.Status)
	}
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// PersistenceError wraps an I/O or encoding failure on the queue file.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("queue %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
