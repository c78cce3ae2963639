package handlers

import (
	availabilityRepo "fitbook/database/repository/availability"
	"fitbook/services/booking"
	"fitbook/services/calendar"
)

// HandlerBundle groups the dependencies every endpoint handler needs.
type HandlerBundle struct {
	Engine           booking.BookingEngine
	AvailabilityRepo availabilityRepo.AvailabilityRepository
	Sync             *calendar.SyncService
	WebhookSecret    string
}
