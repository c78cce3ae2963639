package availabilityRepo

import (
	"context"
	"errors"

	"fitbook/models"
)

// ErrRuleNotFound is returned when a rule id resolves to nothing.
var ErrRuleNotFound = errors.New("availability rule not found")

// AvailabilityRepository defines data access for trainer availability rules.
// Rules are owned by the trainer: mutation happens only through trainer or
// admin surfaces, and rules are soft-deactivated rather than deleted.
type AvailabilityRepository interface {
	Create(ctx context.Context, rule *models.AvailabilityRule) error
	Update(ctx context.Context, rule *models.AvailabilityRule) error
	Deactivate(ctx context.Context, ruleID string) error
	GetByID(ctx context.Context, ruleID string) (*models.AvailabilityRule, error)
	ListActiveByTrainer(ctx context.Context, trainerID string) ([]models.AvailabilityRule, error)
}
