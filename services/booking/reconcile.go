package booking

import (
	"context"
	"errors"
	"fmt"

	bookingRepo "fitbook/database/repository/booking"
	paymentRepo "fitbook/database/repository/payment"
	"fitbook/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provider event types the reconciler understands.
const (
	EventChargeSucceeded = "charge.succeeded"
	EventChargeFailed    = "charge.failed"
	EventChargeRefunded  = "charge.refunded"
)

// PaymentEventPayload is the decoded body of a provider event. BookingID
// comes from the charge metadata when present; otherwise the provider
// reference resolves it through payment history.
type PaymentEventPayload struct {
	ProviderRef   string
	BookingID     string
	Amount        float64
	FailureReason string
}

// PaymentReconciler translates asynchronous provider events into lifecycle
// transitions. Events may replay or arrive out of order; each provider event
// id is applied at most once and an unknown booking is logged and dropped,
// never fatal.
type PaymentReconciler struct {
	Lifecycle *LifecycleManager
	Bookings  bookingRepo.BookingRepository
	Payments  paymentRepo.PaymentRepository
	Logger    *zap.Logger
}

func NewPaymentReconciler(lifecycle *LifecycleManager, bookings bookingRepo.BookingRepository, payments paymentRepo.PaymentRepository, logger *zap.Logger) *PaymentReconciler {
	return &PaymentReconciler{Lifecycle: lifecycle, Bookings: bookings, Payments: payments, Logger: logger}
}

// HandlePaymentEvent processes one provider event. Replays of the same event
// id are no-ops.
func (r *PaymentReconciler) HandlePaymentEvent(ctx context.Context, eventID, eventType string, payload PaymentEventPayload) error {
	bookingID := payload.BookingID
	if bookingID == "" && payload.ProviderRef != "" {
		rec, err := r.Payments.FindByProviderRef(ctx, payload.ProviderRef)
		if err == nil {
			bookingID = rec.BookingID
		}
	}

	err := r.Payments.MarkEventProcessed(ctx, &models.ProcessedEvent{
		EventID:   eventID,
		Type:      eventType,
		BookingID: bookingID,
	})
	if errors.Is(err, paymentRepo.ErrDuplicateEvent) {
		r.Logger.Debug("duplicate provider event, skipping",
			zap.String("eventID", eventID), zap.String("type", eventType))
		return nil
	}
	if err != nil {
		return err
	}

	if bookingID == "" {
		r.Logger.Warn("provider event references no known booking, dropping",
			zap.String("eventID", eventID), zap.String("providerRef", payload.ProviderRef))
		return nil
	}

	b, err := r.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, bookingRepo.ErrBookingNotFound) {
		r.Logger.Warn("provider event for unknown booking, dropping",
			zap.String("eventID", eventID), zap.String("bookingID", bookingID))
		return nil
	}
	if err != nil {
		return err
	}

	switch eventType {
	case EventChargeSucceeded:
		return r.handleChargeSucceeded(ctx, b, payload)
	case EventChargeFailed:
		return r.handleChargeFailed(ctx, b, payload)
	case EventChargeRefunded:
		return r.handleChargeRefunded(ctx, b)
	default:
		r.Logger.Debug("ignoring provider event type",
			zap.String("eventID", eventID), zap.String("type", eventType))
		return nil
	}
}

func (r *PaymentReconciler) handleChargeSucceeded(ctx context.Context, b *models.Booking, payload PaymentEventPayload) error {
	switch b.Status {
	case models.BookingPending:
		if _, err := r.Lifecycle.Transition(ctx, b.ID, ActionConfirm, Actor{Role: RoleSystem}, TransitionMeta{}); err != nil {
			var stale *StaleTransitionError
			if errors.As(err, &stale) {
				r.Logger.Warn("booking moved during confirmation, leaving to next event",
					zap.String("bookingID", b.ID))
				return nil
			}
			return err
		}
		r.appendRecord(ctx, b, payload.ProviderRef, payload.Amount, models.PaymentRecordPaid, "")
		return nil
	case models.BookingCancelled:
		// The staleness sweep got here first. The money came in anyway, so
		// it goes straight back; the booking is not resurrected.
		r.Logger.Info("late payment success on cancelled booking, refunding",
			zap.String("bookingID", b.ID))
		return r.Lifecycle.RefundOrphanedPayment(ctx, b, payload.ProviderRef)
	default:
		r.Logger.Debug("charge.succeeded on booking already settled",
			zap.String("bookingID", b.ID), zap.String("status", string(b.Status)))
		return nil
	}
}

func (r *PaymentReconciler) handleChargeFailed(ctx context.Context, b *models.Booking, payload PaymentEventPayload) error {
	r.appendRecord(ctx, b, payload.ProviderRef, payload.Amount, models.PaymentRecordFailed, payload.FailureReason)
	if b.Status.IsTerminal() {
		return nil
	}
	if _, err := r.Lifecycle.Transition(ctx, b.ID, ActionFail, Actor{Role: RoleSystem}, TransitionMeta{Reason: "payment_failed"}); err != nil {
		var stale *StaleTransitionError
		if errors.As(err, &stale) {
			return nil
		}
		return err
	}
	return nil
}

func (r *PaymentReconciler) handleChargeRefunded(ctx context.Context, b *models.Booking) error {
	switch b.Status {
	case models.BookingConfirmed, models.BookingInProgress:
		// The refund already settled provider-side; cancel without issuing
		// a second refund request.
		_, err := r.Lifecycle.Transition(ctx, b.ID, ActionCancel, Actor{Role: RoleSystem},
			TransitionMeta{Reason: "charge_refunded", RefundSettled: true})
		if err != nil {
			var stale *StaleTransitionError
			if errors.As(err, &stale) {
				return nil
			}
			return err
		}
		return nil
	default:
		r.Logger.Debug("charge.refunded on booking outside refundable state",
			zap.String("bookingID", b.ID), zap.String("status", string(b.Status)))
		return nil
	}
}

func (r *PaymentReconciler) appendRecord(ctx context.Context, b *models.Booking, ref string, amount float64, status models.PaymentRecordStatus, failure string) {
	if amount == 0 {
		amount = b.TotalAmount
	}
	if err := r.Payments.Append(ctx, &models.PaymentRecord{
		ID:            uuid.New().String(),
		BookingID:     b.ID,
		ProviderRef:   ref,
		Amount:        amount,
		Currency:      b.Currency,
		Status:        status,
		FailureReason: failure,
	}); err != nil {
		r.Logger.Error("failed to append payment record",
			zap.String("bookingID", b.ID), zap.Error(err))
	}
}

// RefundOrphanedPayment handles money that arrived for a booking the sweep
// already cancelled: refund in full and move the cancelled booking's payment
// status to refunded. The booking's lifecycle state does not change.
func (m *LifecycleManager) RefundOrphanedPayment(ctx context.Context, b *models.Booking, providerRef string) error {
	if b.Status != models.BookingCancelled {
		return fmt.Errorf("booking %s is %s, not cancelled", b.ID, b.Status)
	}

	refundRef, err := m.Processor.Refund(ctx, b, providerRef, b.TotalAmount)
	if err != nil {
		m.Logger.Error("orphaned payment refund failed",
			zap.String("bookingID", b.ID), zap.Error(err))
		return err
	}
	if err := m.Payments.Append(ctx, &models.PaymentRecord{
		ID:          uuid.New().String(),
		BookingID:   b.ID,
		ProviderRef: refundRef,
		Amount:      b.TotalAmount,
		Currency:    b.Currency,
		Status:      models.PaymentRecordRefunded,
	}); err != nil {
		m.Logger.Error("failed to append orphaned refund record",
			zap.String("bookingID", b.ID), zap.Error(err))
	}

	updated := *b
	updated.PaymentStatus = models.PaymentRefunded
	if err := m.Bookings.ApplyTransition(ctx, models.BookingCancelled, &updated); err != nil {
		return err
	}
	m.notify(ctx, &updated, "orphaned_payment_refunded")
	return nil
}
