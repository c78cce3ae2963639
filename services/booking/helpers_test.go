package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	bookingRepo "fitbook/database/repository/booking"
	paymentRepo "fitbook/database/repository/payment"
	"fitbook/models"

	"go.uber.org/zap"
)

// fakeBookingRepo is an in-memory BookingRepository with the same CAS
// semantics as the Mongo implementation. Safe for concurrent use so tests
// can race request flows against each other.
type fakeBookingRepo struct {
	mu           sync.Mutex
	bookings     map[string]*models.Booking
	sessionTypes map[string]*models.SessionType
	createErr    error
	transitions  int
	// beforeApply, when set, runs at the top of ApplyTransition. Tests use
	// it to race a concurrent status change against the CAS.
	beforeApply func()
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		bookings:     make(map[string]*models.Booking),
		sessionTypes: make(map[string]*models.SessionType),
	}
}

func (r *fakeBookingRepo) put(b *models.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.bookings[b.ID] = &cp
}

func (r *fakeBookingRepo) CreateWithPaymentRecord(ctx context.Context, b *models.Booking, rec *models.PaymentRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.put(b)
	return nil
}

func (r *fakeBookingRepo) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBookingRepo) ListOverlapping(ctx context.Context, trainerID string, start, end time.Time, statuses []models.BookingStatus, excludeID string) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if b.TrainerID != trainerID || b.ID == excludeID {
			continue
		}
		match := false
		for _, s := range statuses {
			if b.Status == s {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		bEnd := b.ScheduledAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
		if b.ScheduledAt.Before(end) && start.Before(bEnd) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) ApplyTransition(ctx context.Context, expected models.BookingStatus, updated *models.Booking) error {
	if r.beforeApply != nil {
		r.beforeApply()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.bookings[updated.ID]
	if !ok || cur.Status != expected {
		return bookingRepo.ErrStaleStatus
	}
	cp := *updated
	r.bookings[updated.ID] = &cp
	r.transitions++
	return nil
}

func (r *fakeBookingRepo) ListStalePending(ctx context.Context, createdBefore time.Time) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if b.Status == models.BookingPending && b.PaymentStatus == models.PaymentPending && b.CreatedAt.Before(createdBefore) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) UpdateSyncState(ctx context.Context, bookingID, eventID string, status models.SyncStatus, syncErr string, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return bookingRepo.ErrBookingNotFound
	}
	if eventID != "" {
		b.CalendarEventID = eventID
	}
	b.LastSyncStatus = status
	b.LastSyncError = syncErr
	b.SyncAttempts = attempts
	return nil
}

func (r *fakeBookingRepo) GetSessionType(ctx context.Context, sessionTypeID string) (*models.SessionType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessionTypes[sessionTypeID]
	if !ok {
		return nil, bookingRepo.ErrSessionTypeNotFound
	}
	cp := *st
	return &cp, nil
}

// countByStatus reports how many stored bookings carry the given status.
func (r *fakeBookingRepo) countByStatus(status models.BookingStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.bookings {
		if b.Status == status {
			n++
		}
	}
	return n
}

// fakePaymentRepo keeps append-only records and a processed-event set.
type fakePaymentRepo struct {
	mu        sync.Mutex
	records   []*models.PaymentRecord
	processed map[string]bool
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{processed: make(map[string]bool)}
}

func (r *fakePaymentRepo) Append(ctx context.Context, rec *models.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *fakePaymentRepo) LatestByBooking(ctx context.Context, bookingID string) (*models.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].BookingID == bookingID {
			cp := *r.records[i]
			return &cp, nil
		}
	}
	return nil, paymentRepo.ErrRecordNotFound
}

func (r *fakePaymentRepo) FindByProviderRef(ctx context.Context, providerRef string) (*models.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].ProviderRef == providerRef {
			cp := *r.records[i]
			return &cp, nil
		}
	}
	return nil, paymentRepo.ErrRecordNotFound
}

func (r *fakePaymentRepo) MarkEventProcessed(ctx context.Context, ev *models.ProcessedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processed[ev.EventID] {
		return paymentRepo.ErrDuplicateEvent
	}
	r.processed[ev.EventID] = true
	return nil
}

// fakeProcessor records payment calls instead of hitting a provider.
type fakeProcessor struct {
	mu           sync.Mutex
	authorizeErr error
	captureErr   error
	refundErr    error

	authorized []string
	captured   []string
	refunds    []float64
}

func (p *fakeProcessor) Authorize(ctx context.Context, b *models.Booking) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authorizeErr != nil {
		return "", p.authorizeErr
	}
	p.authorized = append(p.authorized, b.ID)
	return "pi_" + b.ID, nil
}

func (p *fakeProcessor) Capture(ctx context.Context, b *models.Booking, providerRef string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captureErr != nil {
		return p.captureErr
	}
	p.captured = append(p.captured, providerRef)
	return nil
}

func (p *fakeProcessor) Refund(ctx context.Context, b *models.Booking, providerRef string, amount float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return "", p.refundErr
	}
	p.refunds = append(p.refunds, amount)
	return "re_" + b.ID, nil
}

// fakeLocker counts acquisitions and releases.
type fakeLocker struct {
	mu       sync.Mutex
	err      error
	acquired int
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, trainerID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, nil
}

// mutexLocker serializes callers the way the Redis lock does: one holder at
// a time, the rest blocked until release.
type mutexLocker struct {
	mu sync.Mutex
}

func (l *mutexLocker) Acquire(ctx context.Context, trainerID string) (func(), error) {
	l.mu.Lock()
	return func() { l.mu.Unlock() }, nil
}

// fakeScheduler records enqueued calendar work as "bookingID:action".
type fakeScheduler struct {
	mu       sync.Mutex
	enqueued []string
}

func (s *fakeScheduler) EnqueueSync(bookingID, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued = append(s.enqueued, fmt.Sprintf("%s:%s", bookingID, action))
}

// fakeNotifier records emitted lifecycle events.
type fakeNotifier struct {
	mu       sync.Mutex
	events   []string
	warnings []string
}

func (n *fakeNotifier) BookingTransitioned(ctx context.Context, b *models.Booking, action string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, fmt.Sprintf("%s:%s", b.ID, action))
}

func (n *fakeNotifier) SyncWarning(ctx context.Context, b *models.Booking, lastErr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, fmt.Sprintf("%s:%s", b.ID, lastErr))
}

// fakeAvailabilityRepo serves rules from memory.
type fakeAvailabilityRepo struct {
	rules []models.AvailabilityRule
}

func (r *fakeAvailabilityRepo) Create(ctx context.Context, rule *models.AvailabilityRule) error {
	r.rules = append(r.rules, *rule)
	return nil
}

func (r *fakeAvailabilityRepo) Update(ctx context.Context, rule *models.AvailabilityRule) error {
	for i := range r.rules {
		if r.rules[i].ID == rule.ID {
			r.rules[i] = *rule
			return nil
		}
	}
	return nil
}

func (r *fakeAvailabilityRepo) Deactivate(ctx context.Context, ruleID string) error {
	for i := range r.rules {
		if r.rules[i].ID == ruleID {
			r.rules[i].Active = false
		}
	}
	return nil
}

func (r *fakeAvailabilityRepo) GetByID(ctx context.Context, ruleID string) (*models.AvailabilityRule, error) {
	for i := range r.rules {
		if r.rules[i].ID == ruleID {
			cp := r.rules[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAvailabilityRepo) ListActiveByTrainer(ctx context.Context, trainerID string) ([]models.AvailabilityRule, error) {
	var out []models.AvailabilityRule
	for _, rule := range r.rules {
		if rule.TrainerID == trainerID && rule.Active {
			out = append(out, rule)
		}
	}
	return out, nil
}

// testEnv bundles a fully wired lifecycle manager over fakes.
type testEnv struct {
	bookings  *fakeBookingRepo
	payments  *fakePaymentRepo
	processor *fakeProcessor
	locker    *fakeLocker
	scheduler *fakeScheduler
	notifier  *fakeNotifier
	avail     *fakeAvailabilityRepo
	manager   *LifecycleManager
}

func newTestEnv() *testEnv {
	env := &testEnv{
		bookings:  newFakeBookingRepo(),
		payments:  newFakePaymentRepo(),
		processor: &fakeProcessor{},
		locker:    &fakeLocker{},
		scheduler: &fakeScheduler{},
		notifier:  &fakeNotifier{},
		avail:     &fakeAvailabilityRepo{},
	}
	detector := NewConflictDetector(NewAvailabilityResolver(env.avail), env.bookings)
	env.manager = &LifecycleManager{
		Bookings:  env.bookings,
		Payments:  env.payments,
		Processor: env.processor,
		Notifier:  env.notifier,
		Calendar:  env.scheduler,
		Locker:    env.locker,
		Detector:  detector,
		Logger:    zap.NewNop(),

		PlatformFeePercent: 0.15,
		LateCancelCutoff:   24 * time.Hour,
		LateRefundPercent:  0.5,
	}
	return env
}

// openDay adds a single-date regular rule covering the whole given day.
func (env *testEnv) openDay(trainerID string, day time.Time, maxBookings int) {
	anchor := day
	env.avail.rules = append(env.avail.rules, models.AvailabilityRule{
		ID:          fmt.Sprintf("rule-%s-%s", trainerID, day.Format("20060102")),
		TrainerID:   trainerID,
		StartMinute: 0,
		EndMinute:   24 * 60,
		SlotType:    models.SlotTypeRegular,
		Recurrence:  models.RecurrencePattern{Kind: models.RecurrenceNone, Start: &anchor},
		MaxBookings: maxBookings,
		Active:      true,
	})
}

// seedBooking inserts a booking directly, bypassing the request flow.
func (env *testEnv) seedBooking(id, trainerID string, status models.BookingStatus, pay models.PaymentStatus, scheduledAt time.Time) *models.Booking {
	b := &models.Booking{
		ID:              id,
		ClientID:        "client-1",
		TrainerID:       trainerID,
		SessionTypeID:   "st-1",
		ScheduledAt:     scheduledAt,
		DurationMinutes: 60,
		Status:          status,
		PaymentStatus:   pay,
		TotalAmount:     100,
		PlatformFee:     15,
		TrainerPayout:   85,
		Currency:        "usd",
		CreatedAt:       time.Now().UTC().Add(-time.Hour),
		UpdatedAt:       time.Now().UTC().Add(-time.Hour),
	}
	env.bookings.put(b)
	return b
}

func dayAfterTomorrow() time.Time {
	return dateOnlyUTC(time.Now().UTC().AddDate(0, 0, 2))
}
