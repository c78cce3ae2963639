package booking

import (
	"context"
	"time"

	"fitbook/models"
)

// BookingEngine is the boundary consumed by route handlers and workers.
type BookingEngine interface {
	RequestBooking(ctx context.Context, clientID, trainerID, sessionTypeID string, window Window) (*models.Booking, error)
	Transition(ctx context.Context, bookingID string, action Action, actor Actor, meta TransitionMeta) (*models.Booking, error)
	ResolveAvailability(ctx context.Context, trainerID string, from, to time.Time) ([]ResolvedWindow, error)
	HandlePaymentEvent(ctx context.Context, eventID, eventType string, payload PaymentEventPayload) error
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
}

// DefaultBookingEngine wires the lifecycle manager, conflict detector and
// payment reconciler behind one surface.
type DefaultBookingEngine struct {
	Lifecycle  *LifecycleManager
	Detector   *ConflictDetector
	Reconciler *PaymentReconciler
}

func (e *DefaultBookingEngine) RequestBooking(ctx context.Context, clientID, trainerID, sessionTypeID string, window Window) (*models.Booking, error) {
	return e.Lifecycle.RequestBooking(ctx, clientID, trainerID, sessionTypeID, window)
}

func (e *DefaultBookingEngine) Transition(ctx context.Context, bookingID string, action Action, actor Actor, meta TransitionMeta) (*models.Booking, error) {
	return e.Lifecycle.Transition(ctx, bookingID, action, actor, meta)
}

// ResolveAvailability returns the trainer's free windows with remaining
// capacity. Read-only; callers must not treat the numbers as a reservation.
func (e *DefaultBookingEngine) ResolveAvailability(ctx context.Context, trainerID string, from, to time.Time) ([]ResolvedWindow, error) {
	windows, err := e.Detector.Resolver.Resolve(ctx, trainerID, from, to)
	if err != nil {
		return nil, err
	}
	if err := e.Detector.AnnotateRemaining(ctx, trainerID, windows); err != nil {
		return nil, err
	}
	return windows, nil
}

func (e *DefaultBookingEngine) HandlePaymentEvent(ctx context.Context, eventID, eventType string, payload PaymentEventPayload) error {
	return e.Reconciler.HandlePaymentEvent(ctx, eventID, eventType, payload)
}

func (e *DefaultBookingEngine) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return e.Lifecycle.Bookings.GetByID(ctx, bookingID)
}
