package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	bookingRepo "creatorhub/database/repository/booking"
	"creatorhub/models"
	"creatorhub/services/calendarsync"
	"creatorhub/services/timewindow"
	"creatorhub/utils"
)

// BusyInterval is one busy record widened by its buffer.
type BusyInterval struct {
	Window     timewindow.Interval // buffered
	Descriptor models.ConflictDescriptor
}

// BusySet is the buffered busy time of a creator over a window.
type BusySet struct {
	Intervals       []BusyInterval        // sorted by Window.Start
	Merged          []timewindow.Interval // union of Intervals
	FailedProviders []string
	Failures        map[string]error
}

// Degraded reports whether some provider could not be consulted.
func (b *BusySet) Degraded() bool { return len(b.FailedProviders) > 0 }

// Free reports whether iv touches no busy interval.
func (b *BusySet) Free(iv timewindow.Interval) bool {
	i := sort.Search(len(b.Merged), func(i int) bool { return b.Merged[i].End.After(iv.Start) })
	return i == len(b.Merged) || !timewindow.Overlaps(b.Merged[i], iv)
}

// ConflictsWith lists the busy records iv collides with.
func (b *BusySet) ConflictsWith(iv timewindow.Interval) []models.ConflictDescriptor {
	var out []models.ConflictDescriptor
	for _, bi := range b.Intervals {
		if !bi.Window.Start.Before(iv.End) {
			break
		}
		if timewindow.Overlaps(bi.Window, iv) {
			out = append(out, bi.Descriptor)
		}
	}
	return out
}

// DefaultConflictDetectionService implements ConflictDetectionService over the
// booking store and the calendar provider registry. Calendars may be nil.
type DefaultConflictDetectionService struct {
	Bookings        bookingRepo.BookingRepository
	Calendars       *calendarsync.Registry
	Clock           utils.Clock
	Logger          *zap.Logger
	ProviderTimeout time.Duration
}

func (c *DefaultConflictDetectionService) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now()
}

// HasConflict checks [start, end) against stored and external busy time. In
// strict mode a provider that could not be consulted is itself a conflict.
func (c *DefaultConflictDetectionService) HasConflict(ctx context.Context, creatorID string, start, end time.Time, opts ConflictOptions) (*models.ConflictResult, error) {
	candidate, err := timewindow.New(start, end)
	if err != nil {
		return nil, newValidationError("endTime", "must be after startTime")
	}
	if opts.SkipBookings && !opts.SkipExternal && c.Calendars != nil {
		res, ok, err := c.detectExternal(ctx, creatorID, candidate, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			return res, nil
		}
	}
	busy, err := c.BusyIntervals(ctx, creatorID, candidate, opts)
	if err != nil {
		return nil, err
	}

	result := &models.ConflictResult{
		Conflicts:       busy.ConflictsWith(candidate),
		Degraded:        busy.Degraded(),
		FailedProviders: busy.FailedProviders,
	}
	if opts.Strict {
		for _, name := range busy.FailedProviders {
			result.Conflicts = append(result.Conflicts, models.ConflictDescriptor{
				Kind:      models.ConflictProviderCheckFailed,
				Source:    name,
				StartTime: start,
				EndTime:   end,
				Detail:    busy.Failures[name].Error(),
			})
		}
	}
	if result.Conflicts == nil {
		result.Conflicts = []models.ConflictDescriptor{}
	}
	result.HasConflicts = len(result.Conflicts) > 0
	return result, nil
}

// detectExternal answers a calendars-only check with each provider's yes/no
// conflict query over the buffered candidate. It declines (ok false) when the
// excluded booking has calendar copies, which only a block listing can tell
// apart from other busy time.
func (c *DefaultConflictDetectionService) detectExternal(ctx context.Context, creatorID string, candidate timewindow.Interval, opts ConflictOptions) (*models.ConflictResult, bool, error) {
	if opts.ExcludeBookingID != "" {
		b, err := c.Bookings.GetByID(ctx, opts.ExcludeBookingID)
		if err != nil && !errors.Is(err, bookingRepo.ErrNotFound) {
			return nil, false, fmt.Errorf("failed to load excluded booking: %w", err)
		}
		if err == nil && len(b.ExternalEventIDs) > 0 {
			return nil, false, nil
		}
	}
	rule := opts.Rule
	if rule == nil {
		rule = &models.AvailabilityRule{}
	}
	buf := rule.BufferFor(models.BusyExternal)
	window := candidate.Expand(buf, buf)
	check := c.Calendars.DetectConflicts(ctx, creatorID, window.Start, window.End, calendarsync.FetchOptions{
		Timeout:   c.ProviderTimeout,
		RetryOnce: opts.Strict,
	})

	result := &models.ConflictResult{
		Conflicts:       []models.ConflictDescriptor{},
		FailedProviders: check.FailedProviders(),
	}
	result.Degraded = len(result.FailedProviders) > 0
	for _, name := range check.Busy {
		result.Conflicts = append(result.Conflicts, models.ConflictDescriptor{
			Kind:      models.ConflictExternal,
			Source:    name,
			StartTime: candidate.Start,
			EndTime:   candidate.End,
			Detail:    "busy in connected calendar",
		})
	}
	if opts.Strict {
		for _, name := range result.FailedProviders {
			result.Conflicts = append(result.Conflicts, models.ConflictDescriptor{
				Kind:      models.ConflictProviderCheckFailed,
				Source:    name,
				StartTime: candidate.Start,
				EndTime:   candidate.End,
				Detail:    check.Failures[name].Error(),
			})
		}
	}
	if result.Degraded && c.Logger != nil {
		c.Logger.Warn("conflict check ran without some providers",
			zap.String("creatorId", creatorID),
			zap.Strings("failedProviders", result.FailedProviders))
	}
	result.HasConflicts = len(result.Conflicts) > 0
	return result, true, nil
}

// BusyIntervals gathers buffered busy time touching window. Stored records are
// fetched once for the whole window, widened by the largest buffer so records
// whose buffer reaches into the window are included.
func (c *DefaultConflictDetectionService) BusyIntervals(ctx context.Context, creatorID string, window timewindow.Interval, opts ConflictOptions) (*BusySet, error) {
	rule := opts.Rule
	if rule == nil {
		rule = &models.AvailabilityRule{}
	}
	set := &BusySet{Failures: map[string]error{}}
	now := c.now()

	var excluded *models.Booking
	if opts.ExcludeBookingID != "" {
		b, err := c.Bookings.GetByID(ctx, opts.ExcludeBookingID)
		switch {
		case err == nil:
			excluded = b
		case !errors.Is(err, bookingRepo.ErrNotFound):
			return nil, fmt.Errorf("failed to load excluded booking: %w", err)
		}
	}

	if !opts.SkipBookings {
		fetch := window.Expand(rule.MaxBuffer(), rule.MaxBuffer())
		bookings, err := c.Bookings.ListBusyInRange(ctx, creatorID, fetch.Start, fetch.End, now, opts.ExcludeBookingID)
		if err != nil {
			return nil, fmt.Errorf("failed to list bookings: %w", err)
		}
		for _, b := range bookings {
			kind := b.BusyKind()
			buf := rule.BufferFor(kind)
			set.Intervals = append(set.Intervals, BusyInterval{
				Window: timewindow.Interval{Start: b.StartTime, End: b.EndTime}.Expand(buf, buf),
				Descriptor: models.ConflictDescriptor{
					Kind:      models.ConflictKind(kind),
					Source:    "booking",
					StartTime: b.StartTime,
					EndTime:   b.EndTime,
					BookingID: b.ID,
					Detail:    b.Reason,
				},
			})
		}
	}

	if !opts.SkipExternal && c.Calendars != nil {
		buf := rule.BufferFor(models.BusyExternal)
		fetch := window.Expand(buf, buf)
		res := c.Calendars.FetchBusy(ctx, creatorID, fetch.Start, fetch.End, calendarsync.FetchOptions{
			Timeout:   c.ProviderTimeout,
			RetryOnce: opts.Strict,
		})
		for _, blk := range res.Blocks {
			if excluded != nil && isMirrorOf(blk, excluded) {
				continue
			}
			set.Intervals = append(set.Intervals, BusyInterval{
				Window: timewindow.Interval{Start: blk.StartTime, End: blk.EndTime}.Expand(buf, buf),
				Descriptor: models.ConflictDescriptor{
					Kind:      models.ConflictExternal,
					Source:    blk.Source,
					StartTime: blk.StartTime,
					EndTime:   blk.EndTime,
				},
			})
		}
		set.Failures = res.Failures
		set.FailedProviders = res.FailedProviders()
		if set.Degraded() && c.Logger != nil {
			c.Logger.Warn("availability computed without some providers",
				zap.String("creatorId", creatorID),
				zap.Strings("failedProviders", set.FailedProviders))
		}
	}

	sort.SliceStable(set.Intervals, func(i, j int) bool {
		return set.Intervals[i].Window.Start.Before(set.Intervals[j].Window.Start)
	})
	windows := make([]timewindow.Interval, 0, len(set.Intervals))
	for _, bi := range set.Intervals {
		windows = append(windows, bi.Window)
	}
	set.Merged = timewindow.MergeOverlapping(windows)
	return set, nil
}

// isMirrorOf reports whether blk is the calendar copy of booking b.
func isMirrorOf(blk models.ExternalBusyBlock, b *models.Booking) bool {
	if _, mirrored := b.ExternalEventIDs[blk.Source]; !mirrored {
		return false
	}
	return blk.StartTime.Equal(b.StartTime) && blk.EndTime.Equal(b.EndTime)
}
