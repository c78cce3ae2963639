package booking

import (
	"errors"
	"fmt"
)

// ErrInvalidWindow rejects zero or negative duration windows at construction.
var ErrInvalidWindow = errors.New("window must have positive duration")

// ErrBookingNotFound is returned when a booking id resolves to nothing.
var ErrBookingNotFound = errors.New("booking not found")

// ConflictKind classifies why a booking request or transition was refused.
type ConflictKind string

const (
	ConflictOutsideAvailability   ConflictKind = "outside_availability"
	ConflictSlotFull              ConflictKind = "slot_full"
	ConflictConflictingTransition ConflictKind = "conflicting_transition"
)

// ConflictError is surfaced to the caller immediately and never retried by
// the engine; the user may retry with a different window.
type ConflictError struct {
	Kind    ConflictKind
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewConflictError(kind ConflictKind, format string, args ...any) error {
	return &ConflictError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsConflict unwraps a ConflictError if err carries one.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// StaleTransitionError means a re-read under lock showed the booking already
// left the state the caller assumed. Surfaced as a conflict, never silently
// overwritten.
type StaleTransitionError struct {
	BookingID string
	Expected  string
	Actual    string
}

func (e *StaleTransitionError) Error() string {
	return fmt.Sprintf("booking %s is %s, not %s", e.BookingID, e.Actual, e.Expected)
}

// InvalidTransitionError rejects an action the state machine does not allow
// from the booking's current status, or an actor the action is not open to.
type InvalidTransitionError struct {
	BookingID string
	Action    string
	Status    string
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s booking %s in status %s: %s", e.Action, e.BookingID, e.Status, e.Reason)
}

// PaymentError wraps a provider-side failure; the lifecycle reacts with an
// automatic cancel (reason payment_failed) and does not retry beyond the
// provider's own retry semantics.
type PaymentError struct {
	BookingID string
	Err       error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment for booking %s failed: %v", e.BookingID, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }
