package booking

import (
	"context"
	"errors"
	"time"

	bookingRepo "fitbook/database/repository/booking"
	"fitbook/models"

	"go.uber.org/zap"
)

// StalenessSweep force-cancels pending bookings whose payment never
// confirmed within the configured timeout. It runs on a schedule, not per
// request, and takes the per-trainer lock before cancelling so it cannot
// race a late-arriving payment success event.
type StalenessSweep struct {
	Lifecycle *LifecycleManager
	Bookings  bookingRepo.BookingRepository
	Locker    TrainerLocker
	Timeout   time.Duration
	Logger    *zap.Logger
}

func NewStalenessSweep(lifecycle *LifecycleManager, bookings bookingRepo.BookingRepository, locker TrainerLocker, timeout time.Duration, logger *zap.Logger) *StalenessSweep {
	return &StalenessSweep{
		Lifecycle: lifecycle,
		Bookings:  bookings,
		Locker:    locker,
		Timeout:   timeout,
		Logger:    logger,
	}
}

// Run executes one sweep pass.
func (s *StalenessSweep) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.Timeout)
	stale, err := s.Bookings.ListStalePending(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, b := range stale {
		s.sweepOne(ctx, b)
	}
	return nil
}

func (s *StalenessSweep) sweepOne(ctx context.Context, b models.Booking) {
	release, err := s.Locker.Acquire(ctx, b.TrainerID)
	if err != nil {
		s.Logger.Warn("sweep could not lock trainer, will retry next pass",
			zap.String("trainerID", b.TrainerID), zap.Error(err))
		return
	}
	defer release()

	// Re-read under lock: a payment event may have confirmed the booking
	// between the listing and now.
	fresh, err := s.Bookings.GetByID(ctx, b.ID)
	if err != nil {
		s.Logger.Warn("sweep re-read failed", zap.String("bookingID", b.ID), zap.Error(err))
		return
	}
	if fresh.Status != models.BookingPending || fresh.PaymentStatus != models.PaymentPending {
		return
	}

	if _, err := s.Lifecycle.Transition(ctx, b.ID, ActionFail, Actor{Role: RoleSystem},
		TransitionMeta{Reason: "payment_timeout"}); err != nil {
		var stale *StaleTransitionError
		if errors.As(err, &stale) {
			return
		}
		s.Logger.Error("sweep failed to cancel stale booking",
			zap.String("bookingID", b.ID), zap.Error(err))
		return
	}
	s.Logger.Info("force-cancelled stale pending booking",
		zap.String("bookingID", b.ID),
		zap.Duration("timeout", s.Timeout))
}
