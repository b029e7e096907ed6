package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/linderfish/looking-glass-groomery-sub000/internal/domain"
)

// AppointmentStore is the single source of truth for local busy state.
type AppointmentStore interface {
	// FindOccupying returns appointments overlapping the window whose status
	// is in domain.OccupyingStatuses, ordered by start time.
	FindOccupying(ctx context.Context, window domain.TimeInterval) ([]domain.Appointment, error)

	List(ctx context.Context, window domain.TimeInterval) ([]domain.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error)

	// InBookingTransaction runs fn inside a transaction serialized against all
	// other booking transactions. The re-check-then-insert that closes the
	// double-booking race happens entirely within fn.
	InBookingTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
}

// BookingTx is the slice of the store visible inside a serialized booking
// transaction.
type BookingTx interface {
	FindOccupying(ctx context.Context, window domain.TimeInterval) ([]domain.Appointment, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}
