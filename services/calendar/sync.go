package calendar

import (
	"context"
	"errors"

	bookingRepo "fitbook/database/repository/booking"
	"fitbook/models"
	"fitbook/services/notification"

	"go.uber.org/zap"
)

// Sync actions.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// SyncService mirrors bookings into the external calendar. It runs strictly
// outside the booking's own transaction: a failure here updates the sync
// fields on the booking and schedules a retry, nothing more.
type SyncService struct {
	Client     CalendarClient
	Bookings   bookingRepo.BookingRepository
	Notifier   notification.NotificationService
	MaxRetries int
	Logger     *zap.Logger
}

func NewSyncService(client CalendarClient, bookings bookingRepo.BookingRepository, notifier notification.NotificationService, maxRetries int, logger *zap.Logger) *SyncService {
	return &SyncService{
		Client:     client,
		Bookings:   bookings,
		Notifier:   notifier,
		MaxRetries: maxRetries,
		Logger:     logger,
	}
}

// Sync performs one attempt for the booking. A returned error tells the task
// queue to retry with backoff; once attempt reaches the retry budget the
// failure is downgraded to a trainer-visible warning and nil is returned so
// the task stops.
func (s *SyncService) Sync(ctx context.Context, bookingID, action string, attempt int) error {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, bookingRepo.ErrBookingNotFound) {
		s.Logger.Warn("calendar sync for unknown booking, dropping",
			zap.String("bookingID", bookingID))
		return nil
	}
	if err != nil {
		return err
	}

	var eventID string
	var syncErr error
	switch action {
	case ActionDelete:
		syncErr = s.Client.DeleteEvent(ctx, b)
		eventID = b.CalendarEventID
	default:
		eventID, syncErr = s.Client.UpsertEvent(ctx, b)
	}

	if syncErr == nil {
		if err := s.Bookings.UpdateSyncState(ctx, bookingID, eventID, models.SyncOK, "", attempt); err != nil {
			s.Logger.Error("failed to record sync success", zap.String("bookingID", bookingID), zap.Error(err))
		}
		return nil
	}

	if err := s.Bookings.UpdateSyncState(ctx, bookingID, "", models.SyncFailed, syncErr.Error(), attempt); err != nil {
		s.Logger.Error("failed to record sync failure", zap.String("bookingID", bookingID), zap.Error(err))
	}

	if attempt >= s.MaxRetries {
		s.Logger.Warn("calendar sync retries exhausted",
			zap.String("bookingID", bookingID),
			zap.Int("attempts", attempt),
			zap.Error(syncErr))
		s.Notifier.SyncWarning(ctx, b, syncErr.Error())
		return nil
	}
	return syncErr
}

// HandleSyncResult records a result reported by an out-of-band sync worker.
// Passing an empty syncErr marks the mirror healthy.
func (s *SyncService) HandleSyncResult(ctx context.Context, bookingID, externalEventID, syncErr string) error {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, bookingRepo.ErrBookingNotFound) {
		s.Logger.Warn("sync result for unknown booking, dropping",
			zap.String("bookingID", bookingID))
		return nil
	}
	if err != nil {
		return err
	}

	status := models.SyncOK
	if syncErr != "" {
		status = models.SyncFailed
	}
	return s.Bookings.UpdateSyncState(ctx, bookingID, externalEventID, status, syncErr, b.SyncAttempts)
}
