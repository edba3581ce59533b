// File: database/repository/booking/transaction.go
package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WithClaimTransaction runs fn inside a multi-document transaction. Before fn
// runs, the creator's claim document is bumped so two concurrent claims for
// the same creator always write the same document; the loser hits a write
// conflict and WithTransaction re-runs it, at which point fn sees the
// winner's booking.
func (r *mongoBookingRepo) WithClaimTransaction(ctx context.Context, creatorID string, fn func(ctx context.Context) error) error {
	client := r.bookings.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		_, err := r.claims.UpdateOne(sc,
			bson.M{"creatorId": creatorID},
			bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return nil, fmt.Errorf("claim token update failed: %w", err)
		}
		return nil, fn(sc)
	})
	if err != nil {
		return fmt.Errorf("claim transaction failed: %w", err)
	}
	return nil
}
