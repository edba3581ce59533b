// File: database/repository/booking/interface.go
package bookingRepo

import (
	"context"
	"errors"
	"time"

	"creatorhub/database"
	"creatorhub/models"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("booking: not found")
	// ErrDuplicateSlot is returned when the unique (creatorId, startTime)
	// backstop rejects a second confirmed booking.
	ErrDuplicateSlot = errors.New("booking: slot already confirmed")
	// ErrStatusConflict is returned when a conditional status change finds the
	// booking in an unexpected state.
	ErrStatusConflict = errors.New("booking: status changed concurrently")
)

// BookingRepository stores bookings, holds and manual blocks.
type BookingRepository interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, bookingID string) (*models.Booking, error)
	// ListBusyInRange returns bookings of creatorID that block time at now and
	// overlap [start, end), oldest first. excludeID is skipped when non-empty.
	ListBusyInRange(ctx context.Context, creatorID string, start, end, now time.Time, excludeID string) ([]models.Booking, error)
	// UpdateStatus moves a booking to status `to` only if it is currently in one of `from`.
	UpdateStatus(ctx context.Context, bookingID string, from []models.BookingStatus, to models.BookingStatus, reason string) error
	// ConfirmHold turns a live hold into a confirmed booking.
	ConfirmHold(ctx context.Context, bookingID string, now time.Time) error
	Delete(ctx context.Context, bookingID string) error
	SetExternalEventID(ctx context.Context, bookingID, provider, eventID string) error
	// WithClaimTransaction runs fn atomically with respect to every other
	// claim for the same creator. Store calls made with the ctx passed to fn
	// join the transaction.
	WithClaimTransaction(ctx context.Context, creatorID string, fn func(ctx context.Context) error) error
	EnsureIndexes(ctx context.Context) error
}

type mongoBookingRepo struct {
	bookings *mongo.Collection
	claims   *mongo.Collection
}

// NewMongoBookingRepo constructs a MongoDB BookingRepository.
func NewMongoBookingRepo() BookingRepository {
	db := database.DB()
	return &mongoBookingRepo{
		bookings: db.Collection("bookings"),
		claims:   db.Collection("creator_claims"),
	}
}
