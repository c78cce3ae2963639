package booking

import (
	"context"
	"math"

	"fitbook/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"go.uber.org/zap"
)

// PaymentProcessor is the engine's view of the payment provider. All calls
// happen outside the booking transaction and outside the trainer lock.
type PaymentProcessor interface {
	// Authorize opens a payment attempt for the booking and returns the
	// provider reference. Settlement arrives asynchronously via webhook.
	Authorize(ctx context.Context, b *models.Booking) (string, error)
	// Capture settles a previously authorized payment. Idempotent per
	// booking id and transition.
	Capture(ctx context.Context, b *models.Booking, providerRef string) error
	// Refund sends amount back on the given provider reference and returns
	// the refund reference. Idempotent per booking id and transition.
	Refund(ctx context.Context, b *models.Booking, providerRef string, amount float64) (string, error)
}

// StripePaymentProcessor implements PaymentProcessor over the Stripe API.
// stripe.Key is set once in main from config.
type StripePaymentProcessor struct {
	logger *zap.Logger
}

func NewStripePaymentProcessor(logger *zap.Logger) *StripePaymentProcessor {
	return &StripePaymentProcessor{logger: logger}
}

func toStripeAmount(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (p *StripePaymentProcessor) Authorize(ctx context.Context, b *models.Booking) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toStripeAmount(b.TotalAmount)),
		Currency:      stripe.String(b.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Metadata: map[string]string{
			"booking_id": b.ID,
			"trainer_id": b.TrainerID,
			"client_id":  b.ClientID,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(b.ID + ":authorize")

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", &PaymentError{BookingID: b.ID, Err: err}
	}
	p.logger.Info("payment authorized",
		zap.String("bookingID", b.ID),
		zap.String("paymentIntent", pi.ID))
	return pi.ID, nil
}

func (p *StripePaymentProcessor) Capture(ctx context.Context, b *models.Booking, providerRef string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey(b.ID + ":capture")

	if _, err := paymentintent.Capture(providerRef, params); err != nil {
		return &PaymentError{BookingID: b.ID, Err: err}
	}
	p.logger.Info("payment captured",
		zap.String("bookingID", b.ID),
		zap.String("paymentIntent", providerRef))
	return nil
}

func (p *StripePaymentProcessor) Refund(ctx context.Context, b *models.Booking, providerRef string, amount float64) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(providerRef),
		Amount:        stripe.Int64(toStripeAmount(amount)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(b.ID + ":refund")

	r, err := refund.New(params)
	if err != nil {
		return "", &PaymentError{BookingID: b.ID, Err: err}
	}
	p.logger.Info("refund issued",
		zap.String("bookingID", b.ID),
		zap.String("refund", r.ID),
		zap.Float64("amount", amount))
	return r.ID, nil
}
