package notification

import (
	"context"

	"fitbook/models"
)

// NotificationService consumes booking lifecycle events. Delivery itself
// (push, email, chat) happens out of band in the messaging system; the
// engine only emits.
type NotificationService interface {
	// BookingTransitioned fires after every durable lifecycle transition.
	BookingTransitioned(ctx context.Context, b *models.Booking, action string)
	// SyncWarning surfaces an exhausted calendar retry budget to the
	// trainer as a non-blocking warning.
	SyncWarning(ctx context.Context, b *models.Booking, lastErr string)
}
