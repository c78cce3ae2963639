package paymentRepo

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

// MongoPaymentRepo implements PaymentRepository over payment_records and
// processed_events.
type MongoPaymentRepo struct {
	recordColl *mongo.Collection
	eventColl  *mongo.Collection
}

func NewMongoPaymentRepo() *MongoPaymentRepo {
	return &MongoPaymentRepo{
		recordColl: database.Collection("payment_records"),
		eventColl:  database.Collection("processed_events"),
	}
}

// EnsureIndexes creates the dedup unique index. Webhook idempotency depends
// on it: without the unique constraint a replayed event would apply twice.
func (repo *MongoPaymentRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := repo.eventColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	_, err := repo.recordColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "provider_ref", Value: 1}}},
	})
	return err
}

func (repo *MongoPaymentRepo) Append(ctx context.Context, rec *models.PaymentRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, err := repo.recordColl.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to append payment record: %w", err)
	}
	return nil
}

func (repo *MongoPaymentRepo) LatestByBooking(ctx context.Context, bookingID string) (*models.PaymentRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var rec models.PaymentRecord
	err := repo.recordColl.FindOne(ctx, bson.M{"booking_id": bookingID}, opts).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment record for booking %s: %w", bookingID, err)
	}
	return &rec, nil
}

func (repo *MongoPaymentRepo) FindByProviderRef(ctx context.Context, providerRef string) (*models.PaymentRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var rec models.PaymentRecord
	err := repo.recordColl.FindOne(ctx, bson.M{"provider_ref": providerRef}, opts).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment record for ref %s: %w", providerRef, err)
	}
	return &rec, nil
}

func (repo *MongoPaymentRepo) MarkEventProcessed(ctx context.Context, ev *models.ProcessedEvent) error {
	if ev.ProcessedAt.IsZero() {
		ev.ProcessedAt = time.Now().UTC()
	}
	_, err := repo.eventColl.InsertOne(ctx, ev)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("failed to mark event %s processed: %w", ev.EventID, err)
	}
	return nil
}
