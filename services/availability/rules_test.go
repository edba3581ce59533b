package availability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"creatorhub/models"
)

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.AvailabilityRule)
		wantField string
	}{
		{"valid", func(*models.AvailabilityRule) {}, ""},
		{"overlapping windows", func(r *models.AvailabilityRule) {
			r.WeeklyWindows = append(r.WeeklyWindows, models.WeeklyWindow{Day: "monday", Start: "16:00", End: "18:00"})
		}, "weeklyWindows[1]"},
		{"touching windows are fine", func(r *models.AvailabilityRule) {
			r.WeeklyWindows = append(r.WeeklyWindows, models.WeeklyWindow{Day: "monday", Start: "17:00", End: "24:00"})
		}, ""},
		{"end before start", func(r *models.AvailabilityRule) {
			r.WeeklyWindows[0].End = "08:00"
		}, "weeklyWindows[0]"},
		{"bad clock", func(r *models.AvailabilityRule) {
			r.WeeklyWindows[0].Start = "9am"
		}, "weeklyWindows[0].start"},
		{"unknown day", func(r *models.AvailabilityRule) {
			r.WeeklyWindows[0].Day = "funday"
		}, "WeeklyWindows[0].Day"},
		{"unknown timezone", func(r *models.AvailabilityRule) {
			r.Timezone = "Mars/Olympus"
		}, "timezone"},
		{"zero granularity", func(r *models.AvailabilityRule) {
			r.SlotGranularityMinutes = 0
		}, "SlotGranularityMinutes"},
		{"negative buffer", func(r *models.AvailabilityRule) {
			r.BufferMinutes = -5
		}, "BufferMinutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := weekdayRule("c1")
			tt.mutate(&rule)
			err := ValidateRule(&rule)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, f := range ve.Fields {
				if strings.HasPrefix(f.Field, tt.wantField) {
					found = true
				}
			}
			if !found {
				t.Errorf("no error on %s: %v", tt.wantField, ve.Fields)
			}
		})
	}
}

func TestSaveRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := weekdayRule("c1")
	rule.WeeklyWindows = []models.WeeklyWindow{
		{Day: "Friday", Start: "09:00", End: "12:00"},
		{Day: "monday", Start: "13:00", End: "15:00"},
	}

	saved, err := f.svc.SaveRule(ctx, creatorActor("c1"), rule)
	if err != nil {
		t.Fatalf("SaveRule: %v", err)
	}
	if saved.Version != 1 || saved.UpdatedBy != "c1" {
		t.Errorf("unexpected saved rule: %+v", saved)
	}
	if saved.WeeklyWindows[0].Day != "monday" || saved.WeeklyWindows[1].Day != "friday" {
		t.Errorf("windows not normalized: %+v", saved.WeeklyWindows)
	}

	saved.BufferMinutes = 10
	again, err := f.svc.SaveRule(ctx, models.Actor{ID: "ops", Role: models.RoleAdmin}, *saved)
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if again.Version != 2 || !again.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("version = %d createdAt = %s", again.Version, again.CreatedAt)
	}

	got, err := f.svc.GetRule(ctx, "c1")
	if err != nil || got.BufferMinutes != 10 {
		t.Fatalf("GetRule: %+v %v", got, err)
	}
	if _, err := f.svc.GetRule(ctx, "nobody"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("missing rule: got %v", err)
	}
}

func TestSaveRuleRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SaveRule(ctx, creatorActor("c2"), weekdayRule("c1")); !errors.Is(err, ErrForbidden) {
		t.Errorf("other creator: got %v", err)
	}
	if _, err := f.svc.SaveRule(ctx, models.Actor{ID: "c1", Role: models.RoleClient}, weekdayRule("c1")); !errors.Is(err, ErrForbidden) {
		t.Errorf("client role: got %v", err)
	}

	bad := weekdayRule("c1")
	bad.WeeklyWindows = append(bad.WeeklyWindows, models.WeeklyWindow{Day: "monday", Start: "10:00", End: "11:00"})
	_, err := f.svc.SaveRule(ctx, creatorActor("c1"), bad)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("overlapping windows: expected ValidationError, got %v", err)
	}
	if _, err := f.svc.GetRule(ctx, "c1"); !errors.Is(err, ErrRuleNotFound) {
		t.Error("invalid rule was stored")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in       string
		midnight bool
		want     int
		wantErr  bool
	}{
		{"00:00", false, 0, false},
		{"09:30", false, 570, false},
		{"23:59", false, 1439, false},
		{"24:00", true, 1440, false},
		{"24:00", false, 0, true},
		{"24:30", true, 0, true},
		{"9:30", false, 0, true},
		{"09:60", false, 0, true},
		{"ab:cd", false, 0, true},
	}
	for _, tt := range tests {
		got, err := parseClock(tt.in, tt.midnight)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseClock(%q, %v) = %d, %v", tt.in, tt.midnight, got, err)
		}
	}
}

func TestBlackoutLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := creatorActor("c1")

	invalid := []models.BlackoutInput{
		{CreatorID: "c1", Date: "03/03/2025"},
		{CreatorID: "c1", Date: "2025-03-05", EndDate: "2025-03-01"},
		{CreatorID: "c1", Date: "2025-03-05", StartTime: "10:00"},
		{CreatorID: "c1", Date: "2025-03-05", StartTime: "12:00", EndTime: "10:00"},
		{CreatorID: "c1", Date: "2025-03-05", Recurring: true, Frequency: "daily"},
	}
	for _, in := range invalid {
		if _, err := f.svc.AddBlackoutDate(ctx, owner, in); !errors.Is(err, ErrValidation) {
			t.Errorf("%+v: expected ErrValidation, got %v", in, err)
		}
	}

	exc, err := f.svc.AddBlackoutDate(ctx, owner, models.BlackoutInput{CreatorID: "c1", Date: "2025-03-05", Reason: "dentist"})
	if err != nil {
		t.Fatalf("AddBlackoutDate: %v", err)
	}
	if exc.EndDate != "2025-03-05" || exc.ID == "" {
		t.Errorf("unexpected exception: %+v", exc)
	}

	list, err := f.svc.ListExceptions(ctx, "c1", "2025-03-01", "2025-03-31")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListExceptions: %+v %v", list, err)
	}
	if err := f.svc.RemoveBlackout(ctx, creatorActor("c2"), "c1", exc.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("other creator remove: got %v", err)
	}
	if err := f.svc.RemoveBlackout(ctx, owner, "c1", exc.ID); err != nil {
		t.Fatalf("RemoveBlackout: %v", err)
	}
	if err := f.svc.RemoveBlackout(ctx, owner, "c1", exc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove: got %v", err)
	}
}

func TestConnectCalendar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := creatorActor("c1")

	if _, err := f.svc.ConnectCalendar(ctx, owner, models.CalendarConnection{CreatorID: "c1", Provider: "outlook"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown provider: got %v", err)
	}
	conn, err := f.svc.ConnectCalendar(ctx, owner, models.CalendarConnection{
		CreatorID: "c1", Provider: models.ProviderCalDAV, Endpoint: "https://dav.example.com", Username: "c1", Secret: "s3cret",
	})
	if err != nil {
		t.Fatalf("ConnectCalendar: %v", err)
	}
	if conn.Secret != "" {
		t.Error("secret leaked from ConnectCalendar")
	}

	stored, err := f.conns.Get(ctx, "c1", models.ProviderCalDAV)
	if err != nil || stored.Secret != "s3cret" {
		t.Fatalf("secret must be stored: %+v %v", stored, err)
	}

	list, err := f.svc.ListConnections(ctx, owner, "c1")
	if err != nil || len(list) != 1 || list[0].Secret != "" {
		t.Fatalf("ListConnections: %+v %v", list, err)
	}
	if _, err := f.svc.ListConnections(ctx, creatorActor("c2"), "c1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("other creator list: got %v", err)
	}
}

func TestSlotLength(t *testing.T) {
	g := 30 * time.Minute
	for _, tt := range []struct{ in, want time.Duration }{
		{0, g}, {g, g}, {31 * time.Minute, time.Hour}, {time.Hour, time.Hour},
	} {
		if got := slotLength(tt.in, g); got != tt.want {
			t.Errorf("slotLength(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
