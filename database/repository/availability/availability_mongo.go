package availabilityRepo

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

// MongoAvailabilityRepo implements AvailabilityRepository over the
// availability_slots collection.
type MongoAvailabilityRepo struct {
	coll *mongo.Collection
}

func NewMongoAvailabilityRepo() *MongoAvailabilityRepo {
	return &MongoAvailabilityRepo{coll: database.Collection("availability_slots")}
}

// EnsureIndexes creates the lookup index used by the resolver hot path.
func (repo *MongoAvailabilityRepo) EnsureIndexes(ctx context.Context) error {
	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "trainer_id", Value: 1}, {Key: "active", Value: 1}}},
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

func (repo *MongoAvailabilityRepo) Create(ctx context.Context, rule *models.AvailabilityRule) error {
	rule.CreatedAt = time.Now().UTC()
	rule.UpdatedAt = rule.CreatedAt
	if _, err := repo.coll.InsertOne(ctx, rule); err != nil {
		return fmt.Errorf("failed to insert availability rule: %w", err)
	}
	return nil
}

func (repo *MongoAvailabilityRepo) Update(ctx context.Context, rule *models.AvailabilityRule) error {
	rule.UpdatedAt = time.Now().UTC()
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"id": rule.ID, "trainer_id": rule.TrainerID}, rule)
	if err != nil {
		return fmt.Errorf("failed to update availability rule %s: %w", rule.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Deactivate soft-disables a rule. Hard deletion is intentionally not
// offered: future bookings may still reference the rule's windows.
func (repo *MongoAvailabilityRepo) Deactivate(ctx context.Context, ruleID string) error {
	res, err := repo.coll.UpdateOne(ctx,
		bson.M{"id": ruleID},
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate availability rule %s: %w", ruleID, err)
	}
	if res.MatchedCount == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (repo *MongoAvailabilityRepo) GetByID(ctx context.Context, ruleID string) (*models.AvailabilityRule, error) {
	var rule models.AvailabilityRule
	err := repo.coll.FindOne(ctx, bson.M{"id": ruleID}).Decode(&rule)
	if err == mongo.ErrNoDocuments {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch availability rule %s: %w", ruleID, err)
	}
	return &rule, nil
}

func (repo *MongoAvailabilityRepo) ListActiveByTrainer(ctx context.Context, trainerID string) ([]models.AvailabilityRule, error) {
	cursor, err := repo.coll.Find(ctx, bson.M{"trainer_id": trainerID, "active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list availability rules for trainer %s: %w", trainerID, err)
	}
	defer cursor.Close(ctx)

	var rules []models.AvailabilityRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode availability rules: %w", err)
	}
	return rules, nil
}
