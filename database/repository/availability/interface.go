// File: database/repository/availability/interface.go
package availabilityRepo

import (
	"context"
	"errors"

	"creatorhub/database"
	"creatorhub/models"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound        = errors.New("availability: not found")
	ErrVersionConflict = errors.New("availability: rule was modified concurrently")
)

// RuleRepository stores availability rules and blackout exceptions.
type RuleRepository interface {
	GetRule(ctx context.Context, creatorID string) (*models.AvailabilityRule, error)
	// SaveRule writes rule only if the stored version still equals
	// expectedVersion (0 means no rule exists yet). rule.Version is bumped.
	SaveRule(ctx context.Context, rule *models.AvailabilityRule, expectedVersion int) error
	// GetExceptions returns recurring exceptions plus one-off exceptions
	// touching the inclusive civil date range [fromDate, toDate].
	GetExceptions(ctx context.Context, creatorID, fromDate, toDate string) ([]models.BlackoutException, error)
	AddException(ctx context.Context, exc *models.BlackoutException) error
	DeleteException(ctx context.Context, creatorID, exceptionID string) error
	EnsureIndexes(ctx context.Context) error
}

type mongoRuleRepo struct {
	rules      *mongo.Collection
	exceptions *mongo.Collection
}

// NewMongoRuleRepo constructs a MongoDB RuleRepository.
func NewMongoRuleRepo() RuleRepository {
	db := database.DB()
	return &mongoRuleRepo{
		rules:      db.Collection("availability_rules"),
		exceptions: db.Collection("blackout_exceptions"),
	}
}
