package booking

import (
	"math"

	"fitbook/models"
)

// Quote is the priced breakdown of a booking before it is persisted.
type Quote struct {
	TotalAmount   float64
	PlatformFee   float64
	TrainerPayout float64
	Currency      string
}

// PriceSession computes flat rate times duration, the platform's cut and
// the trainer payout. feePercent is a configuration input.
func PriceSession(st models.SessionType, durationMinutes int, feePercent float64) Quote {
	total := st.HourlyRate * float64(durationMinutes) / 60.0
	total = roundCents(total)
	fee := roundCents(total * feePercent)
	return Quote{
		TotalAmount:   total,
		PlatformFee:   fee,
		TrainerPayout: roundCents(total - fee),
		Currency:      st.Currency,
	}
}

// RefundAmount computes how much to send back when a paid booking is
// cancelled. On-time cancellations refund in full. Late cancellations refund
// the configured fraction of the refundable base; the platform fee is never
// part of a late refund.
func RefundAmount(b *models.Booking, lateCancellation bool, lateRefundPercent float64) float64 {
	if !lateCancellation {
		return b.TotalAmount
	}
	refundable := b.TotalAmount - b.PlatformFee
	if refundable <= 0 {
		return 0
	}
	return roundCents(refundable * lateRefundPercent)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
