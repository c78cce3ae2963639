package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"fitbook/database"
	"fitbook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBookingRepo implements BookingRepository over the bookings and
// session_types collections.
type MongoBookingRepo struct {
	bookingColl     *mongo.Collection
	paymentColl     *mongo.Collection
	sessionTypeColl *mongo.Collection
}

func NewMongoBookingRepo() *MongoBookingRepo {
	return &MongoBookingRepo{
		bookingColl:     database.Collection("bookings"),
		paymentColl:     database.Collection("payment_records"),
		sessionTypeColl: database.Collection("session_types"),
	}
}

// EnsureIndexes creates the overlap-query and sweep indexes.
func (repo *MongoBookingRepo) EnsureIndexes(ctx context.Context) error {
	_, err := repo.bookingColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "trainer_id", Value: 1}, {Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "payment_status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	return err
}

// CreateWithPaymentRecord inserts the booking and its first payment record in
// one session transaction, so a crash can never leave a booking without its
// payment history or vice versa.
func (repo *MongoBookingRepo) CreateWithPaymentRecord(ctx context.Context, b *models.Booking, rec *models.PaymentRecord) error {
	client := repo.bookingColl.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnFn := func(sc mongo.SessionContext) error {
		if _, err := repo.bookingColl.InsertOne(sc, b); err != nil {
			return fmt.Errorf("insert booking failed: %w", err)
		}
		if _, err := repo.paymentColl.InsertOne(sc, rec); err != nil {
			return fmt.Errorf("insert payment record failed: %w", err)
		}
		return nil
	}

	if err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	}); err != nil {
		return fmt.Errorf("booking create transaction failed: %w", err)
	}
	return nil
}

func (repo *MongoBookingRepo) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	var b models.Booking
	err := repo.bookingColl.FindOne(ctx, bson.M{"id": bookingID}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking %s: %w", bookingID, err)
	}
	return &b, nil
}

func (repo *MongoBookingRepo) ListOverlapping(ctx context.Context, trainerID string, start, end time.Time, statuses []models.BookingStatus, excludeID string) ([]models.Booking, error) {
	// Overlap of [scheduled_at, scheduled_at+duration) with [start, end):
	// scheduled_at < end AND scheduled_at + duration > start. Mongo cannot
	// index the computed end, so the filter bounds scheduled_at below by
	// start minus the longest plausible session and the exact check happens
	// here after decode.
	const maxSessionMinutes = 24 * 60
	filter := bson.M{
		"trainer_id":   trainerID,
		"status":       bson.M{"$in": statuses},
		"scheduled_at": bson.M{"$lt": end, "$gt": start.Add(-maxSessionMinutes * time.Minute)},
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}

	cursor, err := repo.bookingColl.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var candidates []models.Booking
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, fmt.Errorf("failed to decode overlapping bookings: %w", err)
	}

	var out []models.Booking
	for _, b := range candidates {
		bEnd := b.ScheduledAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
		if b.ScheduledAt.Before(end) && bEnd.After(start) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ApplyTransition is the single write path for booking status. The filter
// pins the expected status so a concurrent transition loses the CAS instead
// of being overwritten.
func (repo *MongoBookingRepo) ApplyTransition(ctx context.Context, expected models.BookingStatus, updated *models.Booking) error {
	updated.UpdatedAt = time.Now().UTC()
	res, err := repo.bookingColl.ReplaceOne(ctx, bson.M{"id": updated.ID, "status": expected}, updated)
	if err != nil {
		return fmt.Errorf("failed to apply transition for booking %s: %w", updated.ID, err)
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing booking from a lost race.
		if err := repo.bookingColl.FindOne(ctx, bson.M{"id": updated.ID}).Err(); err == mongo.ErrNoDocuments {
			return ErrBookingNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

func (repo *MongoBookingRepo) ListStalePending(ctx context.Context, createdBefore time.Time) ([]models.Booking, error) {
	cursor, err := repo.bookingColl.Find(ctx, bson.M{
		"status":         models.BookingPending,
		"payment_status": models.PaymentPending,
		"created_at":     bson.M{"$lt": createdBefore},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query stale pending bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Booking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode stale pending bookings: %w", err)
	}
	return out, nil
}

func (repo *MongoBookingRepo) UpdateSyncState(ctx context.Context, bookingID, eventID string, status models.SyncStatus, syncErr string, attempts int) error {
	set := bson.M{
		"last_sync_status": status,
		"last_sync_error":  syncErr,
		"sync_attempts":    attempts,
		"updated_at":       time.Now().UTC(),
	}
	if eventID != "" {
		set["calendar_event_id"] = eventID
	}
	res, err := repo.bookingColl.UpdateOne(ctx, bson.M{"id": bookingID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update sync state for booking %s: %w", bookingID, err)
	}
	if res.MatchedCount == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (repo *MongoBookingRepo) GetSessionType(ctx context.Context, sessionTypeID string) (*models.SessionType, error) {
	var st models.SessionType
	err := repo.sessionTypeColl.FindOne(ctx, bson.M{"id": sessionTypeID, "active": true}).Decode(&st)
	if err == mongo.ErrNoDocuments {
		return nil, ErrSessionTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session type %s: %w", sessionTypeID, err)
	}
	return &st, nil
}
