package availability

import (
	"context"
	"sync"
	"testing"
	"time"

	availabilityRepo "creatorhub/database/repository/availability"
	bookingRepo "creatorhub/database/repository/booking"
	calendarLinkRepo "creatorhub/database/repository/calendarlink"
	"creatorhub/models"
	"creatorhub/services/calendarsync"
	"creatorhub/utils"
)

// monday is 2025-03-03, a Monday.
var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(day time.Time, h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type recordingQueue struct {
	mu       sync.Mutex
	err      error
	mirrors  []models.MirrorBookingPayload
	releases []models.HoldReleasePayload
}

func (q *recordingQueue) EnqueueMirror(_ context.Context, p models.MirrorBookingPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.mirrors = append(q.mirrors, p)
	return nil
}

func (q *recordingQueue) EnqueueHoldRelease(_ context.Context, p models.HoldReleasePayload, _ time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.releases = append(q.releases, p)
	return nil
}

type fixture struct {
	svc      *DefaultAvailabilityService
	rules    *availabilityRepo.MemoryRuleRepo
	bookings *bookingRepo.MemoryBookingRepo
	conns    *calendarLinkRepo.MemoryConnectionRepo
	calendar *calendarsync.MemoryProvider
	tasks    *recordingQueue

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rules:    availabilityRepo.NewMemoryRuleRepo(),
		bookings: bookingRepo.NewMemoryBookingRepo(),
		conns:    calendarLinkRepo.NewMemoryConnectionRepo(),
		calendar: calendarsync.NewMemoryProvider("google"),
		tasks:    &recordingQueue{},
		now:      at(monday, -24, 0), // the Sunday before
	}
	f.svc = &DefaultAvailabilityService{
		Rules:       f.rules,
		Bookings:    f.bookings,
		Connections: f.conns,
		Calendars:   calendarsync.NewRegistry(nil, f.calendar),
		Tasks:       f.tasks,
		Clock:       utils.ClockFunc(f.clock),
		Config:      Config{ProviderTimeout: 200 * time.Millisecond},
	}
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// weekdayRule is Monday 09:00-17:00 UTC on an hourly grid.
func weekdayRule(creatorID string) models.AvailabilityRule {
	return models.AvailabilityRule{
		CreatorID:              creatorID,
		Timezone:               "UTC",
		WeeklyWindows:          []models.WeeklyWindow{{Day: "monday", Start: "09:00", End: "17:00"}},
		SlotGranularityMinutes: 60,
	}
}

func (f *fixture) seedRule(t *testing.T, rule models.AvailabilityRule) {
	t.Helper()
	if err := f.rules.SaveRule(context.Background(), &rule, 0); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
}

func (f *fixture) seedBooking(t *testing.T, b models.Booking) {
	t.Helper()
	if b.Kind == "" {
		b.Kind = models.KindClientBooking
	}
	if b.Status == "" {
		b.Status = models.BookingConfirmed
	}
	if err := f.bookings.Create(context.Background(), &b); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
}

func creatorActor(id string) models.Actor { return models.Actor{ID: id, Role: models.RoleCreator} }
