// FILE: database/repository/availability/indexes.go
package availabilityRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes on the rules and exceptions collections.
func (r *mongoRuleRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Rules are versioned documents; the single-document index is gone.
	if _, err := r.rules.Indexes().DropOne(ctx, "unique_creator"); err != nil && !indexMissing(err) {
		return fmt.Errorf("failed to drop legacy rule index: %w", err)
	}
	if _, err := r.rules.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "creatorId", Value: 1}, {Key: "version", Value: -1}},
		Options: options.Index().SetUnique(true).SetName("unique_creator_version"),
	}); err != nil {
		return fmt.Errorf("failed to create rule indexes: %w", err)
	}

	exceptionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "creatorId", Value: 1}, {Key: "recurring", Value: 1}, {Key: "date", Value: 1}, {Key: "endDate", Value: 1}},
			Options: options.Index().SetName("creator_recurring_dates_idx"),
		},
	}
	if _, err := r.exceptions.Indexes().CreateMany(ctx, exceptionIndexes); err != nil {
		return fmt.Errorf("failed to create exception indexes: %w", err)
	}
	return nil
}

// indexMissing reports the server errors for dropping an index or collection
// that does not exist.
func indexMissing(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && (cmdErr.Code == 26 || cmdErr.Code == 27)
}
