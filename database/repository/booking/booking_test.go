package bookingRepo

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"creatorhub/models"
)

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func booking(id string, start time.Duration, status models.BookingStatus) *models.Booking {
	return &models.Booking{
		ID:        id,
		CreatorID: "c1",
		Kind:      models.KindClientBooking,
		Status:    status,
		StartTime: t0.Add(start),
		EndTime:   t0.Add(start + time.Hour),
		CreatedAt: t0.Add(-time.Hour),
	}
}

func TestMemoryListBusyInRange(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepo()

	expired := t0.Add(-time.Minute)
	live := t0.Add(time.Hour)
	fixtures := []*models.Booking{
		booking("confirmed", 0, models.BookingConfirmed),
		booking("cancelled", time.Hour, models.BookingCancelled),
		booking("refunded", 2*time.Hour, models.BookingRefunded),
		booking("live-hold", 3*time.Hour, models.BookingPending),
		booking("expired-hold", 4*time.Hour, models.BookingPending),
		booking("outside", 10*time.Hour, models.BookingConfirmed),
	}
	fixtures[3].HoldExpiresAt = &live
	fixtures[4].HoldExpiresAt = &expired
	for _, b := range fixtures {
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("Create(%s): %v", b.ID, err)
		}
	}

	got, err := repo.ListBusyInRange(ctx, "c1", t0, t0.Add(8*time.Hour), t0, "")
	if err != nil {
		t.Fatalf("ListBusyInRange: %v", err)
	}
	ids := map[string]bool{}
	for _, b := range got {
		ids[b.ID] = true
	}
	want := map[string]bool{"confirmed": true, "live-hold": true}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("busy ids = %v, want %v", ids, want)
	}

	got, _ = repo.ListBusyInRange(ctx, "c1", t0, t0.Add(8*time.Hour), t0, "confirmed")
	for _, b := range got {
		if b.ID == "confirmed" {
			t.Errorf("excluded booking was returned")
		}
	}
}

func TestMemoryUniqueConfirmedStart(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepo()

	if err := repo.Create(ctx, booking("a", 0, models.BookingConfirmed)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, booking("b", 0, models.BookingConfirmed)); !errors.Is(err, ErrDuplicateSlot) {
		t.Fatalf("expected ErrDuplicateSlot, got %v", err)
	}

	// A cancelled booking frees the start for a new confirmation.
	if err := repo.UpdateStatus(ctx, "a", []models.BookingStatus{models.BookingConfirmed}, models.BookingCancelled, "client"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := repo.Create(ctx, booking("c", 0, models.BookingConfirmed)); err != nil {
		t.Fatalf("Create after cancel: %v", err)
	}
	if err := repo.UpdateStatus(ctx, "a", []models.BookingStatus{models.BookingConfirmed}, models.BookingCancelled, ""); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}
}

func TestMemoryConfirmHold(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepo()

	exp := t0.Add(10 * time.Minute)
	hold := booking("h", 0, models.BookingPending)
	hold.HoldExpiresAt = &exp
	if err := repo.Create(ctx, hold); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.ConfirmHold(ctx, "h", exp.Add(time.Second)); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expired hold must not confirm, got %v", err)
	}
	if err := repo.ConfirmHold(ctx, "h", t0); err != nil {
		t.Fatalf("ConfirmHold: %v", err)
	}
	got, _ := repo.GetByID(ctx, "h")
	if got.Status != models.BookingConfirmed || got.HoldExpiresAt != nil {
		t.Errorf("unexpected booking after confirm: %+v", got)
	}
}

func TestBusyRangeFilter(t *testing.T) {
	start, end := t0, t0.Add(time.Hour)
	got := busyRangeFilter("c1", start, end, t0, "skip")
	want := bson.M{
		"creatorId": "c1",
		"startTime": bson.M{"$lt": end},
		"endTime":   bson.M{"$gt": start},
		"$or": bson.A{
			bson.M{"status": models.BookingConfirmed},
			bson.M{
				"status": models.BookingPending,
				"$or": bson.A{
					bson.M{"holdExpiresAt": nil},
					bson.M{"holdExpiresAt": bson.M{"$gt": t0}},
				},
			},
		},
		"id": bson.M{"$ne": "skip"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filter mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestMemoryClaimTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepo()
	if err := repo.Create(ctx, booking("orig", 0, models.BookingConfirmed)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	boom := errors.New("insert failed")
	err := repo.WithClaimTransaction(ctx, "c1", func(tx context.Context) error {
		if err := repo.UpdateStatus(tx, "orig", []models.BookingStatus{models.BookingConfirmed}, models.BookingCancelled, "rescheduled"); err != nil {
			return err
		}
		if err := repo.Create(tx, booking("moved", time.Hour, models.BookingConfirmed)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	got, err := repo.GetByID(ctx, "orig")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.BookingConfirmed || got.CancelReason != "" {
		t.Errorf("original booking not restored: %+v", got)
	}
	if _, err := repo.GetByID(ctx, "moved"); !errors.Is(err, ErrNotFound) {
		t.Errorf("booking created inside the failed transaction survived: %v", err)
	}

	// a successful transaction keeps its writes
	if err := repo.WithClaimTransaction(ctx, "c1", func(tx context.Context) error {
		return repo.Create(tx, booking("kept", time.Hour, models.BookingConfirmed))
	}); err != nil {
		t.Fatalf("WithClaimTransaction: %v", err)
	}
	if _, err := repo.GetByID(ctx, "kept"); err != nil {
		t.Errorf("committed booking missing: %v", err)
	}
}

func TestMemoryUpdateStatusClearsReason(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepo()
	if err := repo.Create(ctx, booking("a", 0, models.BookingConfirmed)); err != nil {
		t.Fatal(err)
	}
	_ = repo.UpdateStatus(ctx, "a", []models.BookingStatus{models.BookingConfirmed}, models.BookingCancelled, "rescheduled")
	if err := repo.UpdateStatus(ctx, "a", []models.BookingStatus{models.BookingCancelled}, models.BookingConfirmed, ""); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got, _ := repo.GetByID(ctx, "a"); got.CancelReason != "" {
		t.Errorf("cancel reason kept after restore: %q", got.CancelReason)
	}
}

func TestStatusUpdate(t *testing.T) {
	now := t0
	got := statusUpdate(models.BookingCancelled, "client", now)
	want := bson.M{
		"$set":   bson.M{"status": models.BookingCancelled, "updatedAt": now, "cancelReason": "client"},
		"$unset": bson.M{"holdExpiresAt": ""},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cancel update:\n got %v\nwant %v", got, want)
	}

	got = statusUpdate(models.BookingConfirmed, "", now)
	want = bson.M{
		"$set":   bson.M{"status": models.BookingConfirmed, "updatedAt": now},
		"$unset": bson.M{"cancelReason": "", "holdExpiresAt": ""},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("restore update:\n got %v\nwant %v", got, want)
	}
}

func TestWriteErrorMapsDuplicateKey(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
	if err := writeError(dup, "failed to update booking status"); !errors.Is(err, ErrDuplicateSlot) {
		t.Errorf("duplicate key: got %v, want ErrDuplicateSlot", err)
	}

	other := errors.New("connection reset")
	err := writeError(other, "failed to update booking status")
	if errors.Is(err, ErrDuplicateSlot) || !errors.Is(err, other) {
		t.Errorf("other error: got %v", err)
	}
}
