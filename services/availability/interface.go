package availability

import (
	"context"
	"time"

	"creatorhub/models"
	"creatorhub/services/timewindow"
)

// SlotQuery asks for the bookable grid of a creator over [RangeStart, RangeEnd).
// Duration is rounded up to a whole number of grid steps; zero means one step.
type SlotQuery struct {
	CreatorID  string
	RangeStart time.Time
	RangeEnd   time.Time
	Duration   time.Duration
}

// AvailabilityService combines working hours, blackouts, stored bookings and
// connected calendars into bookable slots, and owns the claim path.
type AvailabilityService interface {
	GenerateAvailableSlots(ctx context.Context, q SlotQuery) (*models.Availability, error)
	IsSlotAvailable(ctx context.Context, creatorID string, start, end time.Time) (*models.ConflictResult, error)
	Claim(ctx context.Context, req models.ClaimRequest) (*models.Booking, error)
	CancelBooking(ctx context.Context, actor models.Actor, bookingID string) error
	BlockTimeSlot(ctx context.Context, actor models.Actor, creatorID string, start, end time.Time, reason string) (string, error)
	AddBlackoutDate(ctx context.Context, actor models.Actor, in models.BlackoutInput) (*models.BlackoutException, error)
	ListExceptions(ctx context.Context, creatorID, fromDate, toDate string) ([]models.BlackoutException, error)
	RemoveBlackout(ctx context.Context, actor models.Actor, creatorID, exceptionID string) error
	GetRule(ctx context.Context, creatorID string) (*models.AvailabilityRule, error)
	SaveRule(ctx context.Context, actor models.Actor, rule models.AvailabilityRule) (*models.AvailabilityRule, error)
	ConnectCalendar(ctx context.Context, actor models.Actor, conn models.CalendarConnection) (*models.CalendarConnection, error)
	ListConnections(ctx context.Context, actor models.Actor, creatorID string) ([]models.CalendarConnection, error)
}

// BackgroundService is driven by the task worker.
type BackgroundService interface {
	MirrorBooking(ctx context.Context, bookingID, provider string) error
	ReleaseExpiredHold(ctx context.Context, bookingID string) error
}

// ConflictOptions tunes a conflict check.
type ConflictOptions struct {
	// Rule supplies the buffers around busy intervals; nil means no buffer.
	Rule *models.AvailabilityRule
	// ExcludeBookingID ignores one stored booking, and the calendar copies of it.
	ExcludeBookingID string
	// Strict turns a provider that could not be consulted into a conflict.
	Strict bool
	// SkipBookings and SkipExternal restrict the check to one source.
	SkipBookings bool
	SkipExternal bool
}

// ConflictDetectionService answers whether an interval collides with existing
// bookings, holds, manual blocks or external busy time.
type ConflictDetectionService interface {
	HasConflict(ctx context.Context, creatorID string, start, end time.Time, opts ConflictOptions) (*models.ConflictResult, error)
	// BusyIntervals gathers every buffered busy interval touching window.
	BusyIntervals(ctx context.Context, creatorID string, window timewindow.Interval, opts ConflictOptions) (*BusySet, error)
}

// TaskQueue schedules background work produced by claims.
type TaskQueue interface {
	EnqueueMirror(ctx context.Context, payload models.MirrorBookingPayload) error
	EnqueueHoldRelease(ctx context.Context, payload models.HoldReleasePayload, at time.Time) error
}
