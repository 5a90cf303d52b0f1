package biz

import (
	"context"
	"time"

	"AeroSentry/internal/data"
)

// BookingRepo defines the interface for booking persistence.
// Following Kratos v2 DDD architecture, interfaces are defined in biz layer.
// Implementation is in data layer (data.BookingRepo).
type BookingRepo interface {
	// CreateBooking inserts a booking; duplicates on (PNR, flight number)
	// return the existing row with created=false.
	CreateBooking(ctx context.Context, booking *data.Booking) (created bool, err error)
	// GetBooking retrieves a booking by ID.
	GetBooking(ctx context.Context, id int64) (*data.Booking, error)
	// ListUpcoming returns CONFIRMED bookings departing within the window.
	ListUpcoming(ctx context.Context, window time.Duration) ([]*data.Booking, error)
	// ListByUser returns a user's bookings.
	ListByUser(ctx context.Context, userID int64) ([]*data.Booking, error)
	// UpdateLastChecked records when a booking's flight was last swept.
	UpdateLastChecked(ctx context.Context, id int64, checkedAt time.Time) error
	// UpdateStatus moves a booking through its lifecycle.
	UpdateStatus(ctx context.Context, id int64, status data.BookingStatus) error
}

// DisruptionRepo defines the interface for disruption event persistence.
type DisruptionRepo interface {
	// CreateEvent persists an event; an open event for the same booking and
	// type is returned instead with created=false.
	CreateEvent(ctx context.Context, event *data.DisruptionEvent) (created bool, err error)
	// GetEvent retrieves an event by its public event ID.
	GetEvent(ctx context.Context, eventID string) (*data.DisruptionEvent, error)
	// ListOpenEvents returns unresolved events.
	ListOpenEvents(ctx context.Context) ([]*data.DisruptionEvent, error)
	// UpdateCompensationStatus moves an event's compensation lifecycle.
	UpdateCompensationStatus(ctx context.Context, eventID string, status data.CompensationStatus) error
	// MarkNotified flags an event as alerted.
	MarkNotified(ctx context.Context, eventID string) error
	// ResolveEvent closes an event.
	ResolveEvent(ctx context.Context, eventID string) error
}
