package booking

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// AuthError means the session is missing, invalid or expired. Callers react
// by logging in again.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

// FetchError wraps a network or decoding failure while reading the catalog or
// a slot's details.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Op, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// ReservationError is a rejected reservation. Text holds the vendor's raw
// response so it can be classified.
type ReservationError struct {
	SlotID     int64
	StatusCode int
	Text       string
}

func (e *ReservationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("booking failed (%d): %s", e.StatusCode, e.Text)
	}
	return "booking failed: " + e.Text
}

// IsAuth reports whether err signals an invalid session.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) || errors.Is(err, ErrUnauthorized)
}
