// File: database/repository/availability/crud.go
package availabilityRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"creatorhub/models"
)

// GetRule returns the newest version of the creator's rule.
func (r *mongoRuleRepo) GetRule(ctx context.Context, creatorID string) (*models.AvailabilityRule, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rule models.AvailabilityRule
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	err := r.rules.FindOne(ctx, bson.M{"creatorId": creatorID}, opts).Decode(&rule)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rule for %s: %w", creatorID, err)
	}
	return &rule, nil
}

// SaveRule appends version expectedVersion+1. Earlier versions stay in the
// collection; the unique (creatorId, version) index turns a concurrent save
// of the same version into ErrVersionConflict.
func (r *mongoRuleRepo) SaveRule(ctx context.Context, rule *models.AvailabilityRule, expectedVersion int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if expectedVersion > 0 {
		n, err := r.rules.CountDocuments(ctx, ruleVersionFilter(rule.CreatorID, expectedVersion))
		if err != nil {
			return fmt.Errorf("failed to check rule version: %w", err)
		}
		if n == 0 {
			return ErrVersionConflict
		}
	}

	rule.Version = expectedVersion + 1
	if _, err := r.rules.InsertOne(ctx, rule); err != nil {
		return insertRuleError(err)
	}
	return nil
}

func insertRuleError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrVersionConflict
	}
	return fmt.Errorf("failed to insert rule: %w", err)
}

func (r *mongoRuleRepo) GetExceptions(ctx context.Context, creatorID, fromDate, toDate string) ([]models.BlackoutException, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.exceptions.Find(ctx, exceptionRangeFilter(creatorID, fromDate, toDate))
	if err != nil {
		return nil, fmt.Errorf("failed to query exceptions: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.BlackoutException
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode exceptions: %w", err)
	}
	return out, nil
}

func (r *mongoRuleRepo) AddException(ctx context.Context, exc *models.BlackoutException) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if exc.ID == "" {
		exc.ID = uuid.New().String()
	}
	if exc.EndDate == "" {
		exc.EndDate = exc.Date
	}
	if _, err := r.exceptions.InsertOne(ctx, exc); err != nil {
		return fmt.Errorf("failed to insert exception: %w", err)
	}
	return nil
}

func (r *mongoRuleRepo) DeleteException(ctx context.Context, creatorID, exceptionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.exceptions.DeleteOne(ctx, bson.M{"id": exceptionID, "creatorId": creatorID})
	if err != nil {
		return fmt.Errorf("failed to delete exception: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
