package bookingRepo

import (
	"context"
	"errors"
	"time"

	"fitbook/models"
)

// ErrBookingNotFound is returned when a booking id resolves to nothing.
var ErrBookingNotFound = errors.New("booking not found")

// ErrSessionTypeNotFound is returned for unknown session type ids.
var ErrSessionTypeNotFound = errors.New("session type not found")

// ErrStaleStatus is returned by ApplyTransition when the booking no longer
// holds the expected status. Callers surface it as a conflict; the write is
// never applied against a stale read.
var ErrStaleStatus = errors.New("booking status changed since read")

// BookingRepository defines data access for bookings. Status and payment
// status are only ever written through ApplyTransition, which performs a
// compare-and-swap on the expected current status.
type BookingRepository interface {
	// CreateWithPaymentRecord inserts the pending booking and its initial
	// payment record in one multi-document transaction.
	CreateWithPaymentRecord(ctx context.Context, b *models.Booking, rec *models.PaymentRecord) error
	GetByID(ctx context.Context, bookingID string) (*models.Booking, error)
	// ListOverlapping returns the trainer's bookings with a status in the
	// given set whose window [scheduled_at, scheduled_at+duration) overlaps
	// [start, end). excludeID, when non-empty, is skipped (reschedule case).
	ListOverlapping(ctx context.Context, trainerID string, start, end time.Time, statuses []models.BookingStatus, excludeID string) ([]models.Booking, error)
	// ApplyTransition replaces the booking document iff its status still
	// equals expected. Returns ErrStaleStatus if the CAS loses.
	ApplyTransition(ctx context.Context, expected models.BookingStatus, updated *models.Booking) error
	// ListStalePending returns pending bookings with pending payment created
	// before the cutoff, for the staleness sweep.
	ListStalePending(ctx context.Context, createdBefore time.Time) ([]models.Booking, error)
	// UpdateSyncState records the calendar mirror state without touching
	// booking or payment status.
	UpdateSyncState(ctx context.Context, bookingID, eventID string, status models.SyncStatus, syncErr string, attempts int) error

	GetSessionType(ctx context.Context, sessionTypeID string) (*models.SessionType, error)
}
