package models

import "time"

// BookingStatus is the booking lifecycle state.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
	BookingNoShow     BookingStatus = "no_show"
)

// IsTerminal reports whether no further transition may leave the status.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingCompleted, BookingCancelled, BookingNoShow:
		return true
	}
	return false
}

// ActiveBookingStatuses are the statuses that occupy slot capacity. Cancelled,
// completed and no-show bookings free their window.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingInProgress}

// PaymentStatus tracks money state on the booking itself.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// SyncStatus mirrors the state of the external calendar event for a booking.
type SyncStatus string

const (
	SyncNone    SyncStatus = ""
	SyncPending SyncStatus = "pending"
	SyncOK      SyncStatus = "ok"
	SyncFailed  SyncStatus = "failed"
)

// Booking is a client's reservation of a trainer session.
type Booking struct {
	ID            string `bson:"id" json:"id"`
	ClientID      string `bson:"client_id" json:"clientId"`
	TrainerID     string `bson:"trainer_id" json:"trainerId"`
	SessionTypeID string `bson:"session_type_id" json:"sessionTypeId"`

	ScheduledAt     time.Time `bson:"scheduled_at" json:"scheduledAt"`
	DurationMinutes int       `bson:"duration_minutes" json:"durationMinutes"`

	Status        BookingStatus `bson:"status" json:"status"`
	PaymentStatus PaymentStatus `bson:"payment_status" json:"paymentStatus"`

	TotalAmount   float64 `bson:"total_amount" json:"totalAmount"`
	PlatformFee   float64 `bson:"platform_fee" json:"platformFee"`
	TrainerPayout float64 `bson:"trainer_payout" json:"trainerPayout"`
	Currency      string  `bson:"currency" json:"currency"`

	CancellationReason string     `bson:"cancellation_reason,omitempty" json:"cancellationReason,omitempty"`
	CancelledBy        string     `bson:"cancelled_by,omitempty" json:"cancelledBy,omitempty"`
	CancelledAt        *time.Time `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
	LateCancellation   bool       `bson:"late_cancellation,omitempty" json:"lateCancellation,omitempty"`

	ConfirmedAt *time.Time `bson:"confirmed_at,omitempty" json:"confirmedAt,omitempty"`
	StartedAt   *time.Time `bson:"started_at,omitempty" json:"startedAt,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`

	// External calendar mirror, best effort only.
	CalendarEventID string     `bson:"calendar_event_id,omitempty" json:"calendarEventId,omitempty"`
	LastSyncStatus  SyncStatus `bson:"last_sync_status,omitempty" json:"lastSyncStatus,omitempty"`
	LastSyncError   string     `bson:"last_sync_error,omitempty" json:"lastSyncError,omitempty"`
	SyncAttempts    int        `bson:"sync_attempts,omitempty" json:"syncAttempts,omitempty"`

	// Deprecated read-only mirror of the pre-normalization schema. Never
	// written by the engine; SessionTypeID is authoritative.
	LegacySessionType string `bson:"legacy_session_type,omitempty" json:"-"`
	LegacyLocation    string `bson:"legacy_location,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// SessionType is the normalized definition of a bookable session.
type SessionType struct {
	ID              string    `bson:"id" json:"id"`
	TrainerID       string    `bson:"trainer_id" json:"trainerId"`
	Name            string    `bson:"name" json:"name"`
	DurationMinutes int       `bson:"duration_minutes" json:"durationMinutes"`
	HourlyRate      float64   `bson:"hourly_rate" json:"hourlyRate"`
	Currency        string    `bson:"currency" json:"currency"`
	Active          bool      `bson:"active" json:"active"`
	CreatedAt       time.Time `bson:"created_at" json:"createdAt"`
}
