// File: database/repository/booking/memory.go
package bookingRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"creatorhub/models"
)

// MemoryBookingRepo is an in-process BookingRepository. Claim transactions are
// serialized per creator and undone when they fail, and the unique confirmed-start backstop is enforced
// like the Mongo partial index.
type MemoryBookingRepo struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking

	claimMu sync.Mutex
	claims  map[string]*sync.Mutex
}

func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{
		bookings: make(map[string]models.Booking),
		claims:   make(map[string]*sync.Mutex),
	}
}

func (m *MemoryBookingRepo) Create(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if m.violatesUnique(*b) {
		return ErrDuplicateSlot
	}
	m.bookings[b.ID] = cloneBooking(*b)
	return nil
}

func (m *MemoryBookingRepo) GetByID(_ context.Context, bookingID string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneBooking(b)
	return &out, nil
}

func (m *MemoryBookingRepo) ListBusyInRange(_ context.Context, creatorID string, start, end, now time.Time, excludeID string) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Booking
	for _, b := range m.bookings {
		if b.CreatorID != creatorID || b.ID == excludeID && excludeID != "" {
			continue
		}
		if !b.StartTime.Before(end) || !b.EndTime.After(start) || !b.IsBusy(now) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryBookingRepo) UpdateStatus(_ context.Context, bookingID string, from []models.BookingStatus, to models.BookingStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	if !statusIn(b.Status, from) {
		return ErrStatusConflict
	}
	b.Status = to
	if reason != "" {
		b.CancelReason = reason
	} else if to != models.BookingCancelled {
		b.CancelReason = ""
	}
	if to != models.BookingPending {
		b.HoldExpiresAt = nil
	}
	b.UpdatedAt = time.Now().UTC()
	if m.violatesUnique(b) {
		return ErrDuplicateSlot
	}
	m.bookings[bookingID] = b
	return nil
}

func (m *MemoryBookingRepo) ConfirmHold(_ context.Context, bookingID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	if b.Status != models.BookingPending || b.HoldExpiresAt == nil || !b.HoldExpiresAt.After(now) {
		return ErrStatusConflict
	}
	b.Status = models.BookingConfirmed
	b.HoldExpiresAt = nil
	b.UpdatedAt = now
	if m.violatesUnique(b) {
		return ErrDuplicateSlot
	}
	m.bookings[bookingID] = b
	return nil
}

func (m *MemoryBookingRepo) Delete(_ context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[bookingID]; !ok {
		return ErrNotFound
	}
	delete(m.bookings, bookingID)
	return nil
}

func (m *MemoryBookingRepo) SetExternalEventID(_ context.Context, bookingID, provider, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	b = cloneBooking(b)
	if b.ExternalEventIDs == nil {
		b.ExternalEventIDs = make(map[string]string)
	}
	b.ExternalEventIDs[provider] = eventID
	m.bookings[bookingID] = b
	return nil
}

func (m *MemoryBookingRepo) WithClaimTransaction(ctx context.Context, creatorID string, fn func(ctx context.Context) error) error {
	m.claimMu.Lock()
	lock, ok := m.claims[creatorID]
	if !ok {
		lock = &sync.Mutex{}
		m.claims[creatorID] = lock
	}
	m.claimMu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	snapshot := m.creatorSnapshot(creatorID)
	if err := fn(ctx); err != nil {
		m.rollback(creatorID, snapshot)
		return err
	}
	return nil
}

func (m *MemoryBookingRepo) creatorSnapshot(creatorID string) map[string]models.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.Booking)
	for id, b := range m.bookings {
		if b.CreatorID == creatorID {
			out[id] = cloneBooking(b)
		}
	}
	return out
}

// rollback puts the creator's bookings back to snapshot, like an aborted
// Mongo transaction.
func (m *MemoryBookingRepo) rollback(creatorID string, snapshot map[string]models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, b := range m.bookings {
		if b.CreatorID == creatorID {
			delete(m.bookings, id)
		}
	}
	for id, b := range snapshot {
		m.bookings[id] = b
	}
}

func (m *MemoryBookingRepo) EnsureIndexes(context.Context) error { return nil }

// All returns every stored booking; used by tests.
func (m *MemoryBookingRepo) All() []models.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (m *MemoryBookingRepo) violatesUnique(b models.Booking) bool {
	if b.Kind != models.KindClientBooking || b.Status != models.BookingConfirmed {
		return false
	}
	for id, other := range m.bookings {
		if id == b.ID || other.Kind != models.KindClientBooking || other.Status != models.BookingConfirmed {
			continue
		}
		if other.CreatorID == b.CreatorID && other.StartTime.Equal(b.StartTime) {
			return true
		}
	}
	return false
}

func statusIn(s models.BookingStatus, set []models.BookingStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func cloneBooking(b models.Booking) models.Booking {
	if b.HoldExpiresAt != nil {
		t := *b.HoldExpiresAt
		b.HoldExpiresAt = &t
	}
	b.MirrorTo = append([]string(nil), b.MirrorTo...)
	if b.ExternalEventIDs != nil {
		ids := make(map[string]string, len(b.ExternalEventIDs))
		for k, v := range b.ExternalEventIDs {
			ids[k] = v
		}
		b.ExternalEventIDs = ids
	}
	return b
}
