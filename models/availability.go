package models

import "time"

// BusyKind names the origin of an interval that blocks a creator's time.
type BusyKind string

const (
	BusyBooking     BusyKind = "booking"
	BusyHold        BusyKind = "hold"
	BusyManualBlock BusyKind = "manual_block"
	BusyExternal    BusyKind = "external"
)

// AvailabilityRule is a creator's recurring weekly working hours. One per creator.
type AvailabilityRule struct {
	CreatorID              string           `bson:"creatorId" json:"creatorId" validate:"required"`
	Timezone               string           `bson:"timezone" json:"timezone" validate:"required"`                              // IANA zone, e.g. "Europe/Berlin"
	WeeklyWindows          []WeeklyWindow   `bson:"weeklyWindows" json:"weeklyWindows" validate:"dive"`                        // Multiple windows per day allowed
	SlotGranularityMinutes int              `bson:"slotGranularityMinutes" json:"slotGranularityMinutes" validate:"gt=0,lte=1440"` // Grid anchored at local midnight
	MinNoticeMinutes       int              `bson:"minNoticeMinutes" json:"minNoticeMinutes" validate:"gte=0"`
	BufferMinutes          int              `bson:"bufferMinutes" json:"bufferMinutes" validate:"gte=0"`
	BufferByKind           map[BusyKind]int `bson:"bufferByKind,omitempty" json:"bufferByKind,omitempty" validate:"omitempty,dive,gte=0"` // Overrides BufferMinutes per busy kind
	Version                int              `bson:"version" json:"version"`
	UpdatedBy              string           `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	CreatedAt              time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt              time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// WeeklyWindow is one working window on a weekday, in the rule's timezone.
type WeeklyWindow struct {
	Day   string `bson:"day" json:"day" validate:"required,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	Start string `bson:"start" json:"start" validate:"required"` // "HH:MM"
	End   string `bson:"end" json:"end" validate:"required"`     // "HH:MM", "24:00" allowed
}

// BufferFor returns the gap enforced around a busy interval of the given kind.
func (r AvailabilityRule) BufferFor(kind BusyKind) time.Duration {
	minutes := r.BufferMinutes
	if v, ok := r.BufferByKind[kind]; ok {
		minutes = v
	}
	return time.Duration(minutes) * time.Minute
}

func (r AvailabilityRule) Granularity() time.Duration {
	return time.Duration(r.SlotGranularityMinutes) * time.Minute
}

func (r AvailabilityRule) MinNotice() time.Duration {
	return time.Duration(r.MinNoticeMinutes) * time.Minute
}

// MaxBuffer is the widest buffer across all kinds; used to widen store queries.
func (r AvailabilityRule) MaxBuffer() time.Duration {
	max := r.BufferMinutes
	for _, v := range r.BufferByKind {
		if v > max {
			max = v
		}
	}
	return time.Duration(max) * time.Minute
}

const (
	RecurWeekly = "weekly"
	RecurYearly = "yearly"
)

// BlackoutException removes working time on matching dates.
type BlackoutException struct {
	ID        string    `bson:"id" json:"id"`
	CreatorID string    `bson:"creatorId" json:"creatorId" validate:"required"`
	Date      string    `bson:"date" json:"date" validate:"required,datetime=2006-01-02"`                  // First day
	EndDate   string    `bson:"endDate" json:"endDate" validate:"omitempty,datetime=2006-01-02"`           // Inclusive last day, equals Date for one day
	StartTime string    `bson:"startTime,omitempty" json:"startTime,omitempty" validate:"omitempty"`       // Optional "HH:MM" partial-day blackout
	EndTime   string    `bson:"endTime,omitempty" json:"endTime,omitempty" validate:"omitempty"`           // Optional "HH:MM"
	Reason    string    `bson:"reason,omitempty" json:"reason,omitempty"`
	Recurring bool      `bson:"recurring" json:"recurring"`
	Frequency string    `bson:"frequency,omitempty" json:"frequency,omitempty" validate:"omitempty,oneof=weekly yearly"` // weekly when empty
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// BlackoutInput is the payload for adding a blackout date.
type BlackoutInput struct {
	CreatorID string `json:"creatorId"`
	Date      string `json:"date" binding:"required"`
	EndDate   string `json:"endDate"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Reason    string `json:"reason"`
	Recurring bool   `json:"recurring"`
	Frequency string `json:"frequency"`
}
