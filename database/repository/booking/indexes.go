// FILE: database/repository/booking/indexes.go
package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"creatorhub/models"
)

// EnsureIndexes creates the indexes on the bookings and claims collections.
func (r *mongoBookingRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		// Primary query pattern: creator + time range.
		{
			Keys:    bson.D{{Key: "creatorId", Value: 1}, {Key: "startTime", Value: 1}, {Key: "endTime", Value: 1}},
			Options: options.Index().SetName("creator_start_end_idx"),
		},
		// Backstop against double booking: one confirmed client booking per start.
		{
			Keys: bson.D{{Key: "creatorId", Value: 1}, {Key: "startTime", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("unique_confirmed_creator_start").
				SetPartialFilterExpression(bson.M{
					"kind":   models.KindClientBooking,
					"status": models.BookingConfirmed,
				}),
		},
	}
	if _, err := r.bookings.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}

	if _, err := r.claims.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "creatorId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_creator"),
	}); err != nil {
		return fmt.Errorf("failed to create claim indexes: %w", err)
	}
	return nil
}
