// Package bookingtest provides an in-memory booking.Service for tests.
package bookingtest

import (
	"context"
	"sync"
	"time"

	"github.com/example/gym-sniper/internal/booking"
)

// Service is a scriptable fake. Hooks, when set, override the default
// behaviour of looking slots up in Slots.
type Service struct {
	mu sync.Mutex

	Slots map[int64]booking.SlotDetail

	LoginErr   error
	LoginFunc  func(call int) (booking.Session, error)
	ListErr    error
	DetailFunc func(call int, id int64) (booking.SlotDetail, error)
	// ReserveFunc receives the 1-based call number.
	ReserveFunc func(call int, id int64) (booking.Ticket, error)
	CancelErr   error

	LoginCalls   int
	ListCalls    int
	DetailCalls  int
	ReserveCalls int
	Reserved     []int64
	Cancelled    []int64
}

// New returns a fake holding the given slots.
func New(slots ...booking.Slot) *Service {
	s := &Service{Slots: map[int64]booking.SlotDetail{}}
	for _, sl := range slots {
		s.Slots[sl.ID] = booking.SlotDetail{Slot: sl}
	}
	return s
}

// SetStatus changes the status of a known slot.
func (s *Service) SetStatus(id int64, st booking.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.Slots[id]
	d.Status = st
	s.Slots[id] = d
}

func (s *Service) Login(ctx context.Context) (booking.Session, error) {
	s.mu.Lock()
	s.LoginCalls++
	call, fn := s.LoginCalls, s.LoginFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(call)
	}
	if s.LoginErr != nil {
		return booking.Session{}, s.LoginErr
	}
	return booking.Session{Token: "token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *Service) ListAvailableSlots(ctx context.Context, rangeDays int) ([]booking.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalls++
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := make([]booking.Slot, 0, len(s.Slots))
	for _, d := range s.Slots {
		out = append(out, d.Slot)
	}
	return out, nil
}

func (s *Service) GetSlotDetails(ctx context.Context, id int64) (booking.SlotDetail, error) {
	s.mu.Lock()
	s.DetailCalls++
	call, fn := s.DetailCalls, s.DetailFunc
	d, ok := s.Slots[id]
	s.mu.Unlock()
	if fn != nil {
		return fn(call, id)
	}
	if !ok {
		return booking.SlotDetail{}, booking.ErrNotFound
	}
	return d, nil
}

func (s *Service) ReserveSlot(ctx context.Context, id int64) (booking.Ticket, error) {
	s.mu.Lock()
	s.ReserveCalls++
	call, fn := s.ReserveCalls, s.ReserveFunc
	d := s.Slots[id]
	s.mu.Unlock()
	if fn != nil {
		t, err := fn(call, id)
		if err == nil {
			s.mu.Lock()
			s.Reserved = append(s.Reserved, id)
			s.mu.Unlock()
		}
		return t, err
	}
	s.mu.Lock()
	s.Reserved = append(s.Reserved, id)
	s.mu.Unlock()
	return booking.Ticket{Name: d.Name, StartTime: d.StartTime, Trainer: d.Trainer}, nil
}

func (s *Service) CancelReservation(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CancelErr != nil {
		return s.CancelErr
	}
	s.Cancelled = append(s.Cancelled, id)
	return nil
}

// Reject returns a ReserveFunc that always fails with the given vendor text.
func Reject(text string) func(int, int64) (booking.Ticket, error) {
	return func(_ int, id int64) (booking.Ticket, error) {
		return booking.Ticket{}, &booking.ReservationError{SlotID: id, StatusCode: 400, Text: text}
	}
}

var _ booking.Service = (*Service)(nil)
