// File: database/repository/booking/queries.go
package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"creatorhub/models"
)

func (r *mongoBookingRepo) ListBusyInRange(ctx context.Context, creatorID string, start, end, now time.Time, excludeID string) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := r.bookings.Find(ctx, busyRangeFilter(creatorID, start, end, now, excludeID), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Booking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return out, nil
}

// busyRangeFilter selects bookings overlapping [start, end) that block time:
// confirmed ones and pending holds that have not expired.
func busyRangeFilter(creatorID string, start, end, now time.Time, excludeID string) bson.M {
	filter := bson.M{
		"creatorId": creatorID,
		"startTime": bson.M{"$lt": end},
		"endTime":   bson.M{"$gt": start},
		"$or": bson.A{
			bson.M{"status": models.BookingConfirmed},
			bson.M{
				"status": models.BookingPending,
				"$or": bson.A{
					bson.M{"holdExpiresAt": nil},
					bson.M{"holdExpiresAt": bson.M{"$gt": now}},
				},
			},
		},
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}
	return filter
}

func statusTransitionFilter(bookingID string, from []models.BookingStatus) bson.M {
	return bson.M{"id": bookingID, "status": bson.M{"$in": from}}
}

func liveHoldFilter(bookingID string, now time.Time) bson.M {
	return bson.M{
		"id":            bookingID,
		"status":        models.BookingPending,
		"holdExpiresAt": bson.M{"$gt": now},
	}
}
