// File: database/repository/booking/crud.go
package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"creatorhub/models"
)

func (r *mongoBookingRepo) Create(ctx context.Context, b *models.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if _, err := r.bookings.InsertOne(ctx, b); err != nil {
		return writeError(err, "insert booking failed")
	}
	return nil
}

func (r *mongoBookingRepo) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var b models.Booking
	err := r.bookings.FindOne(ctx, bson.M{"id": bookingID}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking %s: %w", bookingID, err)
	}
	return &b, nil
}

func (r *mongoBookingRepo) UpdateStatus(ctx context.Context, bookingID string, from []models.BookingStatus, to models.BookingStatus, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := statusUpdate(to, reason, time.Now().UTC())
	res, err := r.bookings.UpdateOne(ctx, statusTransitionFilter(bookingID, from), update)
	if err != nil {
		return writeError(err, "failed to update booking status")
	}
	if res.MatchedCount == 0 {
		return r.missingOrConflict(ctx, bookingID)
	}
	return nil
}

// statusUpdate builds the update document for a status change. Leaving the
// cancelled state clears the cancel reason unless a new one is given.
func statusUpdate(to models.BookingStatus, reason string, now time.Time) bson.M {
	set := bson.M{"status": to, "updatedAt": now}
	unset := bson.M{}
	if reason != "" {
		set["cancelReason"] = reason
	} else if to != models.BookingCancelled {
		unset["cancelReason"] = ""
	}
	if to != models.BookingPending {
		unset["holdExpiresAt"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// writeError maps a violation of the unique confirmed-start index to
// ErrDuplicateSlot.
func writeError(err error, msg string) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateSlot
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (r *mongoBookingRepo) ConfirmHold(ctx context.Context, bookingID string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set":   bson.M{"status": models.BookingConfirmed, "updatedAt": now},
		"$unset": bson.M{"holdExpiresAt": ""},
	}
	res, err := r.bookings.UpdateOne(ctx, liveHoldFilter(bookingID, now), update)
	if err != nil {
		return writeError(err, "failed to confirm hold")
	}
	if res.MatchedCount == 0 {
		return r.missingOrConflict(ctx, bookingID)
	}
	return nil
}

func (r *mongoBookingRepo) Delete(ctx context.Context, bookingID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.bookings.DeleteOne(ctx, bson.M{"id": bookingID})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepo) SetExternalEventID(ctx context.Context, bookingID, provider, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"externalEventIds." + provider: eventID,
		"updatedAt":                    time.Now().UTC(),
	}}
	res, err := r.bookings.UpdateOne(ctx, bson.M{"id": bookingID}, update)
	if err != nil {
		return fmt.Errorf("failed to record external event: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepo) missingOrConflict(ctx context.Context, bookingID string) error {
	n, err := r.bookings.CountDocuments(ctx, bson.M{"id": bookingID})
	if err != nil {
		return fmt.Errorf("failed to check booking: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStatusConflict
}
