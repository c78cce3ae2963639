package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fitbook/models"
)

func seedSessionType(env *testEnv) {
	env.bookings.sessionTypes["st-1"] = &models.SessionType{
		ID: "st-1", TrainerID: "t1", Name: "Personal Training",
		DurationMinutes: 60, HourlyRate: 100, Currency: "usd", Active: true,
	}
}

func TestRequestBookingHappyPath(t *testing.T) {
	env := newTestEnv()
	seedSessionType(env)
	day := dayAfterTomorrow()
	env.openDay("t1", day, 1)

	window, _ := NewWindow(day.Add(10*time.Hour), day.Add(11*time.Hour))
	b, err := env.manager.RequestBooking(context.Background(), "client-1", "t1", "st-1", window)
	if err != nil {
		t.Fatalf("RequestBooking: %v", err)
	}

	if b.Status != models.BookingPending || b.PaymentStatus != models.PaymentPending {
		t.Fatalf("new booking state: %s/%s", b.Status, b.PaymentStatus)
	}
	if b.TotalAmount != 100 || b.PlatformFee != 15 || b.TrainerPayout != 85 {
		t.Fatalf("pricing: total=%.2f fee=%.2f payout=%.2f", b.TotalAmount, b.PlatformFee, b.TrainerPayout)
	}
	if len(env.processor.authorized) != 1 {
		t.Fatalf("expected one authorization, got %d", len(env.processor.authorized))
	}
	if env.locker.acquired != 1 || env.locker.released != 1 {
		t.Fatalf("lock acquired=%d released=%d", env.locker.acquired, env.locker.released)
	}

	rec, err := env.payments.LatestByBooking(context.Background(), b.ID)
	if err != nil || rec.ProviderRef != "pi_"+b.ID {
		t.Fatalf("authorization record: %+v, err=%v", rec, err)
	}
	if len(env.notifier.events) != 1 || env.notifier.events[0] != b.ID+":requested" {
		t.Fatalf("notifications: %v", env.notifier.events)
	}
}

func TestRequestBookingOutsideAvailability(t *testing.T) {
	env := newTestEnv()
	seedSessionType(env)
	// No availability rules at all.

	day := dayAfterTomorrow()
	window, _ := NewWindow(day.Add(10*time.Hour), day.Add(11*time.Hour))
	_, err := env.manager.RequestBooking(context.Background(), "client-1", "t1", "st-1", window)
	if ce, ok := AsConflict(err); !ok || ce.Kind != ConflictOutsideAvailability {
		t.Fatalf("expected outside_availability, got %v", err)
	}
	if env.locker.released != env.locker.acquired {
		t.Fatal("lock must be released on conflict")
	}
	if len(env.bookings.bookings) != 0 {
		t.Fatal("no booking must be persisted on conflict")
	}
}

func TestRequestBookingSlotFull(t *testing.T) {
	env := newTestEnv()
	seedSessionType(env)
	day := dayAfterTomorrow()
	env.openDay("t1", day, 1)
	env.seedBooking("existing", "t1", models.BookingConfirmed, models.PaymentPaid, day.Add(10*time.Hour))

	window, _ := NewWindow(day.Add(10*time.Hour+30*time.Minute), day.Add(11*time.Hour+30*time.Minute))
	_, err := env.manager.RequestBooking(context.Background(), "client-2", "t1", "st-1", window)
	if ce, ok := AsConflict(err); !ok || ce.Kind != ConflictSlotFull {
		t.Fatalf("expected slot_full, got %v", err)
	}
}

func TestRequestBookingConcurrentRaceAdmitsOne(t *testing.T) {
	env := newTestEnv()
	seedSessionType(env)
	env.manager.Locker = &mutexLocker{}
	day := dayAfterTomorrow()
	env.openDay("t1", day, 1)

	window, _ := NewWindow(day.Add(10*time.Hour), day.Add(11*time.Hour))

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(client string) {
			defer wg.Done()
			_, err := env.manager.RequestBooking(context.Background(), client, "t1", "st-1", window)
			errs <- err
		}(fmt.Sprintf("client-%d", i+1))
	}
	wg.Wait()
	close(errs)

	var admitted, rejected int
	for err := range errs {
		if err == nil {
			admitted++
			continue
		}
		if ce, ok := AsConflict(err); ok && ce.Kind == ConflictSlotFull {
			rejected++
			continue
		}
		t.Fatalf("unexpected outcome: %v", err)
	}
	if admitted != 1 || rejected != 1 {
		t.Fatalf("admitted=%d rejected=%d, want exactly one of each", admitted, rejected)
	}
	if n := env.bookings.countByStatus(models.BookingPending); n != 1 {
		t.Fatalf("pending bookings persisted: %d", n)
	}
}

func TestRequestBookingUnknownSessionType(t *testing.T) {
	env := newTestEnv()
	day := dayAfterTomorrow()
	env.openDay("t1", day, 1)

	window, _ := NewWindow(day.Add(10*time.Hour), day.Add(11*time.Hour))
	if _, err := env.manager.RequestBooking(context.Background(), "client-1", "t1", "missing", window); err == nil {
		t.Fatal("expected error for unknown session type")
	}
	if env.locker.acquired != 0 {
		t.Fatal("lock must not be taken before the session type resolves")
	}
}

func TestRequestBookingPaymentAuthFailure(t *testing.T) {
	env := newTestEnv()
	seedSessionType(env)
	day := dayAfterTomorrow()
	env.openDay("t1", day, 1)
	env.processor.authorizeErr = errors.New("card declined")

	window, _ := NewWindow(day.Add(10*time.Hour), day.Add(11*time.Hour))
	b, err := env.manager.RequestBooking(context.Background(), "client-1", "t1", "st-1", window)
	if err == nil {
		t.Fatal("expected authorization error to surface")
	}
	if b == nil || b.Status != models.BookingCancelled {
		t.Fatalf("booking must be auto-cancelled, got %+v", b)
	}
	if b.CancellationReason != "payment_failed" {
		t.Fatalf("reason: got %q", b.CancellationReason)
	}
}

func TestTransitionConfirmCapturesPayment(t *testing.T) {
	env := newTestEnv()
	b := env.seedBooking("b1", "t1", models.BookingPending, models.PaymentPending, time.Now().UTC().Add(48*time.Hour))
	env.payments.Append(context.Background(), &models.PaymentRecord{
		ID: "rec1", BookingID: "b1", ProviderRef: "pi_b1", Amount: 100, Currency: "usd",
		Status: models.PaymentRecordPending,
	})

	updated, err := env.manager.Transition(context.Background(), b.ID, ActionConfirm, Actor{Role: RoleSystem}, TransitionMeta{})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != models.BookingConfirmed || updated.PaymentStatus != models.PaymentPaid {
		t.Fatalf("state after confirm: %s/%s", updated.Status, updated.PaymentStatus)
	}
	if updated.ConfirmedAt == nil {
		t.Fatal("ConfirmedAt must be set")
	}
	if len(env.processor.captured) != 1 || env.processor.captured[0] != "pi_b1" {
		t.Fatalf("capture calls: %v", env.processor.captured)
	}
	if len(env.scheduler.enqueued) != 1 || env.scheduler.enqueued[0] != "b1:upsert" {
		t.Fatalf("calendar work: %v", env.scheduler.enqueued)
	}
}

func TestTransitionConfirmRequiresSystemActor(t *testing.T) {
	env := newTestEnv()
	env.seedBooking("b1", "t1", models.BookingPending, models.PaymentPending, time.Now().UTC().Add(48*time.Hour))

	_, err := env.manager.Transition(context.Background(), "b1", ActionConfirm,
		Actor{ID: "client-1", Role: models.RoleClient}, TransitionMeta{})
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestTransitionTerminalIsAbsorbing(t *testing.T) {
	env := newTestEnv()
	for _, status := range []models.BookingStatus{models.BookingCompleted, models.BookingCancelled, models.BookingNoShow} {
		id := "b-" + string(status)
		env.seedBooking(id, "t1", status, models.PaymentPaid, time.Now().UTC())

		_, err := env.manager.Transition(context.Background(), id, ActionCancel, Actor{Role: RoleSystem}, TransitionMeta{})
		var invalid *InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s: expected terminal rejection, got %v", status, err)
		}
	}
}

func TestTransitionUndefinedEdge(t *testing.T) {
	env := newTestEnv()
	env.seedBooking("b1", "t1", models.BookingPending, models.PaymentPending, time.Now().UTC().Add(48*time.Hour))

	_, err := env.manager.Transition(context.Background(), "b1", ActionComplete,
		Actor{ID: "t1", Role: models.RoleTrainer}, TransitionMeta{})
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("pending cannot complete, got %v", err)
	}
}

func TestTransitionCancelOnTimeRefundsInFull(t *testing.T) {
	env := newTestEnv()
	b := env.seedBooking("b1", "t1", models.BookingConfirmed, models.PaymentPaid, time.Now().UTC().Add(48*time.Hour))
	env.payments.Append(context.Background(), &models.PaymentRecord{
		ID: "rec1", BookingID: "b1", ProviderRef: "pi_b1", Amount: 100, Currency: "usd",
		Status: models.PaymentRecordPaid,
	})

	updated, err := env.manager.Transition(context.Background(), b.ID, ActionCancel,
		Actor{ID: "client-1", Role: models.RoleClient}, TransitionMeta{Reason: "changed plans"})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != models.BookingCancelled || updated.PaymentStatus != models.PaymentRefunded {
		t.Fatalf("state: %s/%s", updated.Status, updated.PaymentStatus)
	}
	if updated.LateCancellation {
		t.Fatal("48h out is not a late cancellation")
	}
	if len(env.processor.refunds) != 1 || env.processor.refunds[0] != 100 {
		t.Fatalf("refund calls: %v", env.processor.refunds)
	}
	if len(env.scheduler.enqueued) != 1 || env.scheduler.enqueued[0] != "b1:delete" {
		t.Fatalf("calendar work: %v", env.scheduler.enqueued)
	}
}

func TestTransitionLateCancelRefundsPartially(t *testing.T) {
	env := newTestEnv()
	b := env.seedBooking("b1", "t1", models.BookingConfirmed, models.PaymentPaid, time.Now().UTC().Add(2*time.Hour))
	env.payments.Append(context.Background(), &models.PaymentRecord{
		ID: "rec1", BookingID: "b1", ProviderRef: "pi_b1", Amount: 100, Currency: "usd",
		Status: models.PaymentRecordPaid,
	})

	updated, err := env.manager.Transition(context.Background(), b.ID, ActionCancel,
		Actor{ID: "client-1", Role: models.RoleClient}, TransitionMeta{})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !updated.LateCancellation {
		t.Fatal("2h out must flag a late cancellation")
	}
	if updated.PaymentStatus != models.PaymentPartiallyRefunded {
		t.Fatalf("payment status: %s", updated.PaymentStatus)
	}
	// Half of (100 - 15), rounded to cents.
	if len(env.processor.refunds) != 1 || env.processor.refunds[0] != 42.5 {
		t.Fatalf("refund calls: %v", env.processor.refunds)
	}
}

func TestTransitionCancelRefundSettledSkipsRefund(t *testing.T) {
	env := newTestEnv()
	b := env.seedBooking("b1", "t1", models.BookingConfirmed, models.PaymentPaid, time.Now().UTC().Add(48*time.Hour))

	updated, err := env.manager.Transition(context.Background(), b.ID, ActionCancel,
		Actor{Role: RoleSystem}, TransitionMeta{Reason: "charge_refunded", RefundSettled: true})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.PaymentStatus != models.PaymentRefunded {
		t.Fatalf("payment status: %s", updated.PaymentStatus)
	}
	if len(env.processor.refunds) != 0 {
		t.Fatalf("no refund request may be issued, got %v", env.processor.refunds)
	}
}

func TestTransitionFailOnPaidBookingRefundsInFull(t *testing.T) {
	env := newTestEnv()
	b := env.seedBooking("b1", "t1", models.BookingConfirmed, models.PaymentPaid, time.Now().UTC().Add(48*time.Hour))
	env.payments.Append(context.Background(), &models.PaymentRecord{
		ID: "rec1", BookingID: "b1", ProviderRef: "pi_b1", Amount: 100, Currency: "usd",
		Status: models.PaymentRecordPaid,
	})

	updated, err := env.manager.Transition(context.Background(), b.ID, ActionFail,
		Actor{Role: RoleSystem}, TransitionMeta{Reason: "payment_failed"})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != models.BookingCancelled || updated.PaymentStatus != models.PaymentRefunded {
		t.Fatalf("state: %s/%s", updated.Status, updated.PaymentStatus)
	}
	if len(env.processor.refunds) != 1 || env.processor.refunds[0] != 100 {
		t.Fatalf("expected one full refund, got %v", env.processor.refunds)
	}
}

func TestTransitionActorGuards(t *testing.T) {
	cases := []struct {
		name   string
		status models.BookingStatus
		action Action
		actor  Actor
		allow  bool
	}{
		{"client cancels own", models.BookingConfirmed, ActionCancel, Actor{ID: "client-1", Role: models.RoleClient}, true},
		{"client cancels other", models.BookingConfirmed, ActionCancel, Actor{ID: "client-2", Role: models.RoleClient}, false},
		{"trainer cancels own", models.BookingConfirmed, ActionCancel, Actor{ID: "t1", Role: models.RoleTrainer}, true},
		{"trainer cancels other", models.BookingConfirmed, ActionCancel, Actor{ID: "t2", Role: models.RoleTrainer}, false},
		{"moderator cancels any", models.BookingConfirmed, ActionCancel, Actor{ID: "a1", Role: models.RoleAdmin, AdminRank: models.AdminModerator}, true},
		{"trainer starts own", models.BookingConfirmed, ActionStart, Actor{ID: "t1", Role: models.RoleTrainer}, true},
		{"client starts", models.BookingConfirmed, ActionStart, Actor{ID: "client-1", Role: models.RoleClient}, false},
		{"trainer marks no-show", models.BookingConfirmed, ActionNoShow, Actor{ID: "t1", Role: models.RoleTrainer}, true},
		{"moderator marks no-show", models.BookingConfirmed, ActionNoShow, Actor{ID: "a1", Role: models.RoleAdmin, AdminRank: models.AdminModerator}, false},
		{"super marks no-show", models.BookingConfirmed, ActionNoShow, Actor{ID: "a1", Role: models.RoleAdmin, AdminRank: models.AdminSuper}, true},
		{"trainer completes in-progress", models.BookingInProgress, ActionComplete, Actor{ID: "t1", Role: models.RoleTrainer}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.seedBooking("b1", "t1", tc.status, models.PaymentPaid, time.Now().UTC().Add(48*time.Hour))
			env.payments.Append(context.Background(), &models.PaymentRecord{
				ID: "rec1", BookingID: "b1", ProviderRef: "pi_b1", Amount: 100, Currency: "usd",
				Status: models.PaymentRecordPaid,
			})

			_, err := env.manager.Transition(context.Background(), "b1", tc.action, tc.actor, TransitionMeta{})
			if tc.allow && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.allow {
				var invalid *InvalidTransitionError
				if !errors.As(err, &invalid) {
					t.Fatalf("expected denial, got %v", err)
				}
			}
		})
	}
}

func TestTransitionStaleStatusSurfacesConflict(t *testing.T) {
	env := newTestEnv()
	env.seedBooking("b1", "t1", models.BookingPending, models.PaymentPending, time.Now().UTC().Add(48*time.Hour))

	// A concurrent transition lands between the read and the CAS write.
	env.bookings.beforeApply = func() {
		env.bookings.bookings["b1"].Status = models.BookingCancelled
		env.bookings.beforeApply = nil
	}

	_, err := env.manager.Transition(context.Background(), "b1", ActionConfirm, Actor{Role: RoleSystem}, TransitionMeta{})
	var stale *StaleTransitionError
	if !errors.As(err, &stale) {
		t.Fatalf("expected StaleTransitionError, got %v", err)
	}
	if stale.Actual != string(models.BookingCancelled) {
		t.Fatalf("actual status: got %q", stale.Actual)
	}
	if env.bookings.bookings["b1"].Status != models.BookingCancelled {
		t.Fatal("loser of the race must not overwrite the booking")
	}
}

func TestTransitionCompleteRequiresPaidBooking(t *testing.T) {
	env := newTestEnv()
	env.seedBooking("b1", "t1", models.BookingInProgress, models.PaymentPending, time.Now().UTC())

	_, err := env.manager.Transition(context.Background(), "b1", ActionComplete,
		Actor{ID: "t1", Role: models.RoleTrainer}, TransitionMeta{})
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("completed+pending-payment must be rejected, got %v", err)
	}
}

func TestTransitionUnknownBooking(t *testing.T) {
	env := newTestEnv()
	_, err := env.manager.Transition(context.Background(), "missing", ActionCancel, Actor{Role: RoleSystem}, TransitionMeta{})
	if !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}
