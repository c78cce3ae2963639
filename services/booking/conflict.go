package booking

import (
	"context"
	"fmt"

	bookingRepo "fitbook/database/repository/booking"
	"fitbook/models"
)

// ConflictDetector validates a proposed booking window against the trainer's
// resolved availability and the existing active bookings. The caller must
// hold the per-trainer lock across CheckAvailability and the subsequent
// insert; checking and inserting without that lock is the race that
// double-books a slot.
type ConflictDetector struct {
	Resolver *AvailabilityResolver
	Bookings bookingRepo.BookingRepository
}

func NewConflictDetector(resolver *AvailabilityResolver, bookings bookingRepo.BookingRepository) *ConflictDetector {
	return &ConflictDetector{Resolver: resolver, Bookings: bookings}
}

// CheckAvailability returns nil when the window fits, or a ConflictError.
// excludeBookingID, when non-empty, is ignored during overlap counting
// (reschedule re-check of an existing booking).
func (d *ConflictDetector) CheckAvailability(ctx context.Context, trainerID string, window Window, excludeBookingID string) error {
	dayStart := dateOnlyUTC(window.Start)
	dayEnd := dateOnlyUTC(window.End).AddDate(0, 0, 1)

	resolved, err := d.Resolver.Resolve(ctx, trainerID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("failed to resolve availability: %w", err)
	}

	// The buffered window must fit inside a single resolved window: buffers
	// are trainer-defined dead time and count against the trainer's own
	// availability, the conservative reading.
	var owner *ResolvedWindow
	for i := range resolved {
		rw := &resolved[i]
		buffered := window.Expand(rw.BufferBefore, rw.BufferAfter)
		if rw.Contains(buffered) {
			owner = rw
			break
		}
	}
	if owner == nil {
		return NewConflictError(ConflictOutsideAvailability,
			"window [%s, %s) does not fit inside trainer %s's availability",
			window.Start.Format("2006-01-02 15:04"), window.End.Format("2006-01-02 15:04"), trainerID)
	}

	buffered := window.Expand(owner.BufferBefore, owner.BufferAfter)
	existing, err := d.Bookings.ListOverlapping(ctx, trainerID, buffered.Start, buffered.End, models.ActiveBookingStatuses, excludeBookingID)
	if err != nil {
		return fmt.Errorf("failed to load overlapping bookings: %w", err)
	}

	if len(existing)+1 > owner.MaxBookings {
		return NewConflictError(ConflictSlotFull,
			"slot already holds %d of %d concurrent bookings", len(existing), owner.MaxBookings)
	}
	return nil
}

// AnnotateRemaining fills each window's Remaining capacity from the current
// active booking counts. Used by the read-only availability endpoint; the
// booking path re-checks under lock instead of trusting these numbers.
func (d *ConflictDetector) AnnotateRemaining(ctx context.Context, trainerID string, windows []ResolvedWindow) error {
	for i := range windows {
		existing, err := d.Bookings.ListOverlapping(ctx, trainerID, windows[i].Start, windows[i].End, models.ActiveBookingStatuses, "")
		if err != nil {
			return fmt.Errorf("failed to count bookings for window: %w", err)
		}
		remaining := windows[i].MaxBookings - len(existing)
		if remaining < 0 {
			remaining = 0
		}
		windows[i].Remaining = remaining
	}
	return nil
}
