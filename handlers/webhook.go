package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"fitbook/services/booking"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// maxWebhookBody caps the payload we are willing to read from the provider.
const maxWebhookBody = 64 << 10

// StripeWebhookHandler verifies the provider signature and feeds the event
// into the payment reconciler. Replayed events answer 200 so the provider
// stops retrying.
func (hb *HandlerBundle) StripeWebhookHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	event, err := webhook.ConstructEvent(body, c.GetHeader("Stripe-Signature"), hb.WebhookSecret)
	if err != nil {
		getLogger(c).Warn("webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	switch string(event.Type) {
	case booking.EventChargeSucceeded, booking.EventChargeFailed, booking.EventChargeRefunded:
	default:
		// Not an event the engine reacts to; acknowledge and move on.
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		getLogger(c).Warn("failed to decode charge payload",
			zap.String("eventID", event.ID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}

	payload := booking.PaymentEventPayload{
		BookingID:     charge.Metadata["booking_id"],
		Amount:        float64(charge.Amount) / 100,
		FailureReason: charge.FailureMessage,
	}
	if charge.PaymentIntent != nil {
		payload.ProviderRef = charge.PaymentIntent.ID
	}

	if err := hb.Engine.HandlePaymentEvent(c.Request.Context(), event.ID, string(event.Type), payload); err != nil {
		getLogger(c).Error("payment event processing failed",
			zap.String("eventID", event.ID), zap.Error(err))
		// Non-200 makes the provider redeliver; the event id claim keeps
		// the redelivery from double-applying.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

type syncResultInput struct {
	ExternalEventID string `json:"externalEventId"`
	Error           string `json:"error"`
}

// CalendarSyncResultHandler records the outcome of an asynchronous calendar
// sync delivered by the provider's callback.
func (hb *HandlerBundle) CalendarSyncResultHandler(c *gin.Context) {
	bookingID := c.Param("bookingID")
	if bookingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking id required"})
		return
	}

	var input syncResultInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	if err := hb.Sync.HandleSyncResult(c.Request.Context(), bookingID, input.ExternalEventID, input.Error); err != nil {
		getLogger(c).Error("failed to record calendar sync result",
			zap.String("bookingID", bookingID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}
