package booking

import "context"

// Service is the booking platform as seen by the snipe engine.
type Service interface {
	Login(ctx context.Context) (Session, error)
	ListAvailableSlots(ctx context.Context, rangeDays int) ([]Slot, error)
	GetSlotDetails(ctx context.Context, id int64) (SlotDetail, error)
	ReserveSlot(ctx context.Context, id int64) (Ticket, error)
	CancelReservation(ctx context.Context, id int64) error
}

// Reserver is the subset of Service needed to claim a slot.
type Reserver interface {
	ReserveSlot(ctx context.Context, id int64) (Ticket, error)
}
