package models

import "time"

// PaymentRecordStatus is the provider-side state of one payment attempt.
type PaymentRecordStatus string

const (
	PaymentRecordPending  PaymentRecordStatus = "pending"
	PaymentRecordPaid     PaymentRecordStatus = "paid"
	PaymentRecordFailed   PaymentRecordStatus = "failed"
	PaymentRecordRefunded PaymentRecordStatus = "refunded"
)

// PaymentRecord is one attempt against the payment provider. Records are
// append-only: a new attempt or a refund appends a row rather than mutating
// history, so the audit trail survives.
type PaymentRecord struct {
	ID            string              `bson:"id" json:"id"`
	BookingID     string              `bson:"booking_id" json:"bookingId"`
	ProviderRef   string              `bson:"provider_ref,omitempty" json:"providerRef,omitempty"`
	Amount        float64             `bson:"amount" json:"amount"`
	Currency      string              `bson:"currency" json:"currency"`
	Status        PaymentRecordStatus `bson:"status" json:"status"`
	FailureReason string              `bson:"failure_reason,omitempty" json:"failureReason,omitempty"`
	CreatedAt     time.Time           `bson:"created_at" json:"createdAt"`
}

// ProcessedEvent dedupes provider webhook deliveries. Insertion hits a unique
// index on EventID; a duplicate key error means the event was already applied.
type ProcessedEvent struct {
	EventID     string    `bson:"event_id" json:"eventId"`
	Type        string    `bson:"type" json:"type"`
	BookingID   string    `bson:"booking_id,omitempty" json:"bookingId,omitempty"`
	ProcessedAt time.Time `bson:"processed_at" json:"processedAt"`
}
