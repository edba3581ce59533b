package models

import "time"

// SlotState is the outcome computed for one grid slot in a query snapshot.
type SlotState string

const (
	SlotAvailable SlotState = "available"
	SlotBooked    SlotState = "booked"
	SlotHeld      SlotState = "held"
	SlotBlocked   SlotState = "blocked"  // creator's manual block
	SlotExternal  SlotState = "external" // busy in a connected calendar
)

type ConflictKind string

const (
	ConflictBooking             ConflictKind = "booking"
	ConflictHold                ConflictKind = "hold"
	ConflictManualBlock         ConflictKind = "manual_block"
	ConflictExternal            ConflictKind = "external"
	ConflictProviderCheckFailed ConflictKind = "provider_check_failed"
	ConflictOutsideWorkingHours ConflictKind = "outside_working_hours"
	ConflictInsufficientNotice  ConflictKind = "insufficient_notice"
	ConflictBlackout            ConflictKind = "blackout"
)

// ConflictDescriptor explains why an interval is not bookable.
type ConflictDescriptor struct {
	Kind      ConflictKind `json:"kind"`
	Source    string       `json:"source"` // "booking", provider name, "rule" ...
	StartTime time.Time    `json:"startTime"`
	EndTime   time.Time    `json:"endTime"`
	BookingID string       `json:"bookingId,omitempty"`
	Detail    string       `json:"detail,omitempty"`
}

// ConflictResult is returned by point-in-time availability checks.
type ConflictResult struct {
	HasConflicts    bool                 `json:"hasConflicts"`
	Conflicts       []ConflictDescriptor `json:"conflicts"`
	Degraded        bool                 `json:"degraded,omitempty"`        // A provider could not be consulted
	FailedProviders []string             `json:"failedProviders,omitempty"`
}

// AvailableSlot is one grid slot of a generated availability range.
type AvailableSlot struct {
	CreatorID string               `json:"creatorId"`
	StartTime time.Time            `json:"startTime"`
	EndTime   time.Time            `json:"endTime"`
	Available bool                 `json:"available"`
	Duration  int                  `json:"duration"` // minutes
	State     SlotState            `json:"state"`
	Conflicts []ConflictDescriptor `json:"conflicts,omitempty"`
}

// Availability is the result of slot generation for a range.
type Availability struct {
	CreatorID       string          `json:"creatorId"`
	Timezone        string          `json:"timezone,omitempty"`
	RangeStart      time.Time       `json:"rangeStart"`
	RangeEnd        time.Time       `json:"rangeEnd"`
	Slots           []AvailableSlot `json:"slots"`
	Degraded        bool            `json:"degraded,omitempty"`
	FailedProviders []string        `json:"failedProviders,omitempty"`
}
