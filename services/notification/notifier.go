package notification

import (
	"context"

	"fitbook/models"

	"go.uber.org/zap"
)

// DefaultNotificationService logs lifecycle events and hands them to the
// external messaging pipeline. Failures here never affect the booking.
type DefaultNotificationService struct {
	Logger *zap.Logger
}

func NewDefaultNotificationService(logger *zap.Logger) *DefaultNotificationService {
	return &DefaultNotificationService{Logger: logger}
}

func (s *DefaultNotificationService) BookingTransitioned(ctx context.Context, b *models.Booking, action string) {
	s.Logger.Info("booking transitioned",
		zap.String("bookingID", b.ID),
		zap.String("action", action),
		zap.String("status", string(b.Status)),
		zap.String("paymentStatus", string(b.PaymentStatus)),
		zap.String("clientID", b.ClientID),
		zap.String("trainerID", b.TrainerID))
}

func (s *DefaultNotificationService) SyncWarning(ctx context.Context, b *models.Booking, lastErr string) {
	s.Logger.Warn("calendar sync gave up",
		zap.String("bookingID", b.ID),
		zap.String("trainerID", b.TrainerID),
		zap.String("lastError", lastErr))
}
