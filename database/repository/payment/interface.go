package paymentRepo

import (
	"context"
	"errors"

	"fitbook/models"
)

// ErrRecordNotFound is returned when no payment record matches.
var ErrRecordNotFound = errors.New("payment record not found")

// ErrDuplicateEvent is returned by MarkEventProcessed when the provider
// event id was already applied. Callers treat it as "already done".
var ErrDuplicateEvent = errors.New("provider event already processed")

// PaymentRepository defines data access for the append-only payment history
// and the webhook dedup table.
type PaymentRepository interface {
	Append(ctx context.Context, rec *models.PaymentRecord) error
	LatestByBooking(ctx context.Context, bookingID string) (*models.PaymentRecord, error)
	FindByProviderRef(ctx context.Context, providerRef string) (*models.PaymentRecord, error)
	// MarkEventProcessed claims the provider event id; exactly one caller
	// per id succeeds, every other gets ErrDuplicateEvent.
	MarkEventProcessed(ctx context.Context, ev *models.ProcessedEvent) error
}
