package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingRepo "fitbook/database/repository/booking"
	paymentRepo "fitbook/database/repository/payment"
	"fitbook/models"
	"fitbook/services/notification"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action names a lifecycle transition request.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "mark_no_show"
	ActionFail     Action = "fail"
)

// RoleSystem marks transitions driven by the engine itself (payment
// reconciliation, schedule, staleness sweep) rather than a person.
const RoleSystem = "system"

// Actor is the authenticated principal requesting a transition.
type Actor struct {
	ID        string
	Role      string
	AdminRank models.AdminRank
}

// TransitionMeta carries optional per-transition input.
type TransitionMeta struct {
	Reason string
	// RefundSettled marks a cancel whose refund already happened on the
	// provider side (charge.refunded event); no new refund request is made.
	RefundSettled bool
}

// transitions is the complete state machine. Anything absent is invalid;
// terminal states have no outgoing edges.
var transitions = map[models.BookingStatus]map[Action]models.BookingStatus{
	models.BookingPending: {
		ActionConfirm: models.BookingConfirmed,
		ActionCancel:  models.BookingCancelled,
		ActionFail:    models.BookingCancelled,
	},
	models.BookingConfirmed: {
		ActionStart:  models.BookingInProgress,
		ActionCancel: models.BookingCancelled,
		ActionNoShow: models.BookingNoShow,
		ActionFail:   models.BookingCancelled,
	},
	models.BookingInProgress: {
		ActionComplete: models.BookingCompleted,
		ActionNoShow:   models.BookingNoShow,
		ActionFail:     models.BookingCancelled,
	},
}

// TrainerLocker serializes booking writes per trainer. The production
// implementation lives in utils.RedisTrainerLock; the lock must be visible
// at the persistence layer, never a process-local mutex.
type TrainerLocker interface {
	Acquire(ctx context.Context, trainerID string) (func(), error)
}

// CalendarScheduler enqueues best-effort calendar mirror work. The cron
// worker implements it over asynq.
type CalendarScheduler interface {
	EnqueueSync(bookingID, action string)
}

// LifecycleManager owns booking state. No other component writes status or
// payment status.
type LifecycleManager struct {
	Bookings  bookingRepo.BookingRepository
	Payments  paymentRepo.PaymentRepository
	Processor PaymentProcessor
	Notifier  notification.NotificationService
	Calendar  CalendarScheduler
	Locker    TrainerLocker
	Detector  *ConflictDetector
	Logger    *zap.Logger

	// Tunables, loaded from config in main.
	PlatformFeePercent float64
	LateCancelCutoff   time.Duration
	LateRefundPercent  float64
}

// RequestBooking runs the whole reserve flow: validate, lock the trainer,
// conflict-check, price, persist the pending booking with its payment
// record, release the lock, then open the payment attempt. Payment
// settlement arrives later through the reconciliation adapter.
func (m *LifecycleManager) RequestBooking(ctx context.Context, clientID, trainerID, sessionTypeID string, window Window) (*models.Booking, error) {
	if !window.End.After(window.Start) {
		return nil, ErrInvalidWindow
	}

	st, err := m.Bookings.GetSessionType(ctx, sessionTypeID)
	if err != nil {
		return nil, fmt.Errorf("invalid session type: %w", err)
	}

	quote := PriceSession(*st, int(window.Duration().Minutes()), m.PlatformFeePercent)

	release, err := m.Locker.Acquire(ctx, trainerID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire trainer lock: %w", err)
	}

	if err := m.Detector.CheckAvailability(ctx, trainerID, window, ""); err != nil {
		release()
		return nil, err
	}

	now := time.Now().UTC()
	b := &models.Booking{
		ID:              uuid.New().String(),
		ClientID:        clientID,
		TrainerID:       trainerID,
		SessionTypeID:   sessionTypeID,
		ScheduledAt:     window.Start,
		DurationMinutes: int(window.Duration().Minutes()),
		Status:          models.BookingPending,
		PaymentStatus:   models.PaymentPending,
		TotalAmount:     quote.TotalAmount,
		PlatformFee:     quote.PlatformFee,
		TrainerPayout:   quote.TrainerPayout,
		Currency:        quote.Currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	rec := &models.PaymentRecord{
		ID:        uuid.New().String(),
		BookingID: b.ID,
		Amount:    quote.TotalAmount,
		Currency:  quote.Currency,
		Status:    models.PaymentRecordPending,
		CreatedAt: now,
	}

	if err := m.Bookings.CreateWithPaymentRecord(ctx, b, rec); err != nil {
		release()
		return nil, err
	}

	// The lock only covers check-then-insert. Payment authorization is
	// external I/O and must not run while holding it.
	release()

	providerRef, err := m.Processor.Authorize(ctx, b)
	if err != nil {
		m.Logger.Warn("payment authorization failed, cancelling booking",
			zap.String("bookingID", b.ID), zap.Error(err))
		failed, ferr := m.Transition(ctx, b.ID, ActionFail, Actor{Role: RoleSystem}, TransitionMeta{Reason: "payment_failed"})
		if ferr != nil {
			m.Logger.Error("failed to cancel booking after payment failure",
				zap.String("bookingID", b.ID), zap.Error(ferr))
			return nil, err
		}
		return failed, err
	}

	authRec := &models.PaymentRecord{
		ID:          uuid.New().String(),
		BookingID:   b.ID,
		ProviderRef: providerRef,
		Amount:      quote.TotalAmount,
		Currency:    quote.Currency,
		Status:      models.PaymentRecordPending,
	}
	if err := m.Payments.Append(ctx, authRec); err != nil {
		m.Logger.Error("failed to record payment authorization",
			zap.String("bookingID", b.ID), zap.Error(err))
	}

	m.notify(ctx, b, "requested")
	return b, nil
}

// Transition applies one lifecycle action. The booking is re-read and the
// write is a compare-and-swap on the status seen here: a concurrent
// transition loses the race and surfaces StaleTransitionError instead of
// silently overwriting. Side effects run only after the durable write.
func (m *LifecycleManager) Transition(ctx context.Context, bookingID string, action Action, actor Actor, meta TransitionMeta) (*models.Booking, error) {
	b, err := m.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, bookingRepo.ErrBookingNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	current := b.Status
	if current.IsTerminal() {
		return nil, &InvalidTransitionError{
			BookingID: bookingID, Action: string(action), Status: string(current),
			Reason: "booking is in a terminal state",
		}
	}

	next, ok := transitions[current][action]
	if !ok {
		return nil, &InvalidTransitionError{
			BookingID: bookingID, Action: string(action), Status: string(current),
			Reason: "transition not defined",
		}
	}

	if err := m.authorizeActor(b, action, actor); err != nil {
		return nil, err
	}

	updated := *b
	updated.Status = next
	now := time.Now().UTC()
	var refundAmount float64

	switch action {
	case ActionConfirm:
		updated.PaymentStatus = models.PaymentPaid
		updated.ConfirmedAt = &now
	case ActionStart:
		updated.StartedAt = &now
	case ActionComplete:
		updated.CompletedAt = &now
	case ActionCancel:
		updated.CancelledAt = &now
		updated.CancelledBy = actor.ID
		updated.CancellationReason = meta.Reason
		if current == models.BookingConfirmed && now.After(b.ScheduledAt.Add(-m.LateCancelCutoff)) {
			updated.LateCancellation = true
		}
		// A cancelled booking must never stay "paid": the refund decision
		// is made here, atomically with the status change.
		if b.PaymentStatus == models.PaymentPaid {
			if meta.RefundSettled {
				updated.PaymentStatus = models.PaymentRefunded
			} else {
				refundAmount = RefundAmount(b, updated.LateCancellation, m.LateRefundPercent)
				if refundAmount >= b.TotalAmount {
					updated.PaymentStatus = models.PaymentRefunded
				} else {
					updated.PaymentStatus = models.PaymentPartiallyRefunded
				}
			}
		}
	case ActionFail:
		updated.CancelledAt = &now
		updated.CancelledBy = RoleSystem
		updated.CancellationReason = meta.Reason
		if updated.CancellationReason == "" {
			updated.CancellationReason = "payment_failed"
		}
		// The provider can report a charge failure after confirmation
		// already marked the booking paid. The failure is not the client's
		// doing, so the money goes back in full.
		if b.PaymentStatus == models.PaymentPaid {
			refundAmount = b.TotalAmount
			updated.PaymentStatus = models.PaymentRefunded
		}
	}

	if err := validateStatePair(updated.Status, updated.PaymentStatus); err != nil {
		return nil, &InvalidTransitionError{
			BookingID: bookingID, Action: string(action), Status: string(current),
			Reason: err.Error(),
		}
	}

	if err := m.Bookings.ApplyTransition(ctx, current, &updated); err != nil {
		if errors.Is(err, bookingRepo.ErrStaleStatus) {
			fresh, ferr := m.Bookings.GetByID(ctx, bookingID)
			actual := "unknown"
			if ferr == nil {
				actual = string(fresh.Status)
			}
			return nil, &StaleTransitionError{BookingID: bookingID, Expected: string(current), Actual: actual}
		}
		return nil, err
	}

	m.runSideEffects(ctx, &updated, action, refundAmount)
	return &updated, nil
}

// validateStatePair rejects the status/paymentStatus combinations the data
// model forbids.
func validateStatePair(s models.BookingStatus, p models.PaymentStatus) error {
	switch s {
	case models.BookingCompleted:
		if p != models.PaymentPaid && p != models.PaymentPartiallyRefunded {
			return fmt.Errorf("completed booking cannot have payment status %s", p)
		}
	case models.BookingCancelled:
		if p == models.PaymentPaid {
			return fmt.Errorf("cancelled booking cannot remain paid; a refund must be recorded")
		}
	}
	return nil
}

func (m *LifecycleManager) authorizeActor(b *models.Booking, action Action, actor Actor) error {
	deny := func(reason string) error {
		return &InvalidTransitionError{
			BookingID: b.ID, Action: string(action), Status: string(b.Status), Reason: reason,
		}
	}

	switch action {
	case ActionConfirm, ActionFail:
		if actor.Role != RoleSystem {
			return deny("only the payment reconciler may drive this transition")
		}
	case ActionCancel:
		switch actor.Role {
		case models.RoleClient:
			if actor.ID != b.ClientID {
				return deny("clients may only cancel their own bookings")
			}
		case models.RoleTrainer:
			if actor.ID != b.TrainerID {
				return deny("trainers may only cancel their own bookings")
			}
		case models.RoleAdmin:
			if !actor.AdminRank.Has(models.CapCancelAnyBooking) {
				return deny("admin rank lacks cancel capability")
			}
		case RoleSystem:
		default:
			return deny("unknown actor role")
		}
	case ActionStart, ActionComplete:
		if actor.Role != models.RoleTrainer && actor.Role != RoleSystem {
			return deny("only the trainer or the schedule may drive this transition")
		}
		if actor.Role == models.RoleTrainer && actor.ID != b.TrainerID {
			return deny("trainers may only act on their own bookings")
		}
	case ActionNoShow:
		switch actor.Role {
		case models.RoleTrainer:
			if actor.ID != b.TrainerID {
				return deny("trainers may only act on their own bookings")
			}
		case models.RoleAdmin:
			if !actor.AdminRank.Has(models.CapOverrideTransition) {
				return deny("admin rank lacks override capability")
			}
		default:
			return deny("only the trainer may mark a no-show")
		}
	}
	return nil
}

// runSideEffects executes the post-commit mirrors of a transition. Each is
// idempotent (keyed by booking id + transition) and a failure is recorded
// and retried out of band, never rolled back into the transition.
func (m *LifecycleManager) runSideEffects(ctx context.Context, b *models.Booking, action Action, refundAmount float64) {
	switch action {
	case ActionConfirm:
		rec, err := m.Payments.LatestByBooking(ctx, b.ID)
		if err != nil || rec.ProviderRef == "" {
			m.Logger.Error("confirm without payment reference, capture skipped",
				zap.String("bookingID", b.ID), zap.Error(err))
		} else if err := m.Processor.Capture(ctx, b, rec.ProviderRef); err != nil {
			m.Logger.Error("payment capture failed, will reconcile from provider events",
				zap.String("bookingID", b.ID), zap.Error(err))
		}
		m.Calendar.EnqueueSync(b.ID, "upsert")
	case ActionCancel:
		if refundAmount > 0 {
			m.issueRefund(ctx, b, refundAmount)
		}
		m.Calendar.EnqueueSync(b.ID, "delete")
	case ActionFail:
		if refundAmount > 0 {
			m.issueRefund(ctx, b, refundAmount)
		}
		m.Calendar.EnqueueSync(b.ID, "delete")
	case ActionStart, ActionComplete, ActionNoShow:
		m.Calendar.EnqueueSync(b.ID, "upsert")
	}

	m.notify(ctx, b, string(action))
}

// issueRefund sends exactly one refund request for the booking and appends
// the audit record.
func (m *LifecycleManager) issueRefund(ctx context.Context, b *models.Booking, amount float64) {
	rec, err := m.Payments.LatestByBooking(ctx, b.ID)
	if err != nil || rec.ProviderRef == "" {
		m.Logger.Error("refund requested but no payment reference found",
			zap.String("bookingID", b.ID), zap.Error(err))
		return
	}

	refundRef, err := m.Processor.Refund(ctx, b, rec.ProviderRef, amount)
	if err != nil {
		m.Logger.Error("refund request failed, provider events will reconcile",
			zap.String("bookingID", b.ID), zap.Error(err))
		return
	}

	if err := m.Payments.Append(ctx, &models.PaymentRecord{
		ID:          uuid.New().String(),
		BookingID:   b.ID,
		ProviderRef: refundRef,
		Amount:      amount,
		Currency:    b.Currency,
		Status:      models.PaymentRecordRefunded,
	}); err != nil {
		m.Logger.Error("failed to append refund record",
			zap.String("bookingID", b.ID), zap.Error(err))
	}
}

func (m *LifecycleManager) notify(ctx context.Context, b *models.Booking, action string) {
	if m.Notifier != nil {
		m.Notifier.BookingTransitioned(ctx, b, action)
	}
}
