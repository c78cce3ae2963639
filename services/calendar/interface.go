package calendar

import (
	"context"

	"fitbook/models"
)

// CalendarClient talks to the external calendar provider. It is a
// best-effort mirror: calls may fail or desync and the engine tolerates it.
type CalendarClient interface {
	// UpsertEvent creates or updates the provider-side event for the
	// booking and returns the external event id.
	UpsertEvent(ctx context.Context, b *models.Booking) (string, error)
	DeleteEvent(ctx context.Context, b *models.Booking) error
}
