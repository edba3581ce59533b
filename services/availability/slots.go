package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"creatorhub/models"
	"creatorhub/services/timewindow"
)

// loadRuleContext fetches the rule and the blackouts touching rng.
func (s *DefaultAvailabilityService) loadRuleContext(ctx context.Context, creatorID string, rng timewindow.Interval) (ruleContext, error) {
	rule, err := s.GetRule(ctx, creatorID)
	if err != nil {
		return ruleContext{}, err
	}
	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		return ruleContext{}, fmt.Errorf("rule of %s has invalid timezone %q: %w", creatorID, rule.Timezone, err)
	}
	// one day of slack on both sides: the range is in UTC, dates are local
	from := rng.Start.In(loc).AddDate(0, 0, -1).Format(dateLayout)
	to := rng.End.In(loc).AddDate(0, 0, 1).Format(dateLayout)
	exceptions, err := s.Rules.GetExceptions(ctx, creatorID, from, to)
	if err != nil {
		return ruleContext{}, fmt.Errorf("failed to load blackout dates: %w", err)
	}
	return ruleContext{rule: rule, loc: loc, exceptions: exceptions}, nil
}

// slotLength rounds the requested duration up to whole grid steps.
func slotLength(requested, granularity time.Duration) time.Duration {
	if requested <= 0 {
		return granularity
	}
	steps := requested / granularity
	if requested%granularity != 0 {
		steps++
	}
	return steps * granularity
}

// GenerateAvailableSlots returns every grid slot of the creator's working
// hours in the range, each flagged available or not. Slots cut by notice or a
// blackout are not emitted; slots under busy time are emitted as unavailable
// with their conflicts. A creator without a rule has no slots.
func (s *DefaultAvailabilityService) GenerateAvailableSlots(ctx context.Context, q SlotQuery) (*models.Availability, error) {
	rng, err := timewindow.New(q.RangeStart, q.RangeEnd)
	if err != nil {
		return nil, newValidationError("end", "must be after start")
	}
	if q.CreatorID == "" {
		return nil, newValidationError("creatorId", "is required")
	}
	if rng.Duration() > s.cfg().MaxRange {
		return nil, newValidationError("end", "range may span at most %s", s.cfg().MaxRange)
	}

	result := &models.Availability{
		CreatorID:  q.CreatorID,
		RangeStart: rng.Start,
		RangeEnd:   rng.End,
		Slots:      []models.AvailableSlot{},
	}

	rc, err := s.loadRuleContext(ctx, q.CreatorID, rng)
	if errors.Is(err, ErrRuleNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Timezone = rc.rule.Timezone

	granularity := rc.rule.Granularity()
	length := slotLength(q.Duration, granularity)

	windows, err := expandWindows(rc.rule, rc.loc, rc.exceptions, rng)
	if err != nil {
		return nil, err
	}
	windows = applyNotice(windows, s.now().Add(rc.rule.MinNotice()))
	if len(windows) == 0 {
		return result, nil
	}

	busy, err := s.conflicts().BusyIntervals(ctx, q.CreatorID, rng, ConflictOptions{Rule: rc.rule})
	if err != nil {
		return nil, err
	}
	result.Degraded = busy.Degraded()
	result.FailedProviders = busy.FailedProviders

	for _, w := range windows {
		for _, slot := range timewindow.AlignToGridWithLength(w.Interval, granularity, length, w.Anchor) {
			out := models.AvailableSlot{
				CreatorID: q.CreatorID,
				StartTime: slot.Start.UTC(),
				EndTime:   slot.End.UTC(),
				Duration:  int(length / time.Minute),
				Available: true,
				State:     models.SlotAvailable,
			}
			if !busy.Free(slot) {
				out.Available = false
				out.Conflicts = busy.ConflictsWith(slot)
				out.State = stateFor(out.Conflicts)
			}
			result.Slots = append(result.Slots, out)
		}
	}
	sort.SliceStable(result.Slots, func(i, j int) bool {
		return result.Slots[i].StartTime.Before(result.Slots[j].StartTime)
	})

	s.log().Debug("availability generated",
		zap.String("creatorId", q.CreatorID),
		zap.Int("slots", len(result.Slots)),
		zap.Bool("degraded", result.Degraded))
	return result, nil
}

// stateFor names a busy slot after its strongest conflict.
func stateFor(conflicts []models.ConflictDescriptor) models.SlotState {
	state := models.SlotExternal
	rank := map[models.SlotState]int{models.SlotBooked: 4, models.SlotHeld: 3, models.SlotBlocked: 2, models.SlotExternal: 1}
	for _, c := range conflicts {
		var st models.SlotState
		switch c.Kind {
		case models.ConflictBooking:
			st = models.SlotBooked
		case models.ConflictHold:
			st = models.SlotHeld
		case models.ConflictManualBlock:
			st = models.SlotBlocked
		default:
			st = models.SlotExternal
		}
		if rank[st] > rank[state] {
			state = st
		}
	}
	return state
}

// IsSlotAvailable checks one interval against the rule and all busy time. It
// reports problems as conflicts; errors are reserved for bad input and store
// failures.
func (s *DefaultAvailabilityService) IsSlotAvailable(ctx context.Context, creatorID string, start, end time.Time) (*models.ConflictResult, error) {
	candidate, err := timewindow.New(start, end)
	if err != nil {
		return nil, newValidationError("end", "must be after start")
	}

	rc, err := s.loadRuleContext(ctx, creatorID, candidate)
	if errors.Is(err, ErrRuleNotFound) {
		return &models.ConflictResult{
			HasConflicts: true,
			Conflicts: []models.ConflictDescriptor{{
				Kind:      models.ConflictOutsideWorkingHours,
				Source:    "rule",
				StartTime: start,
				EndTime:   end,
				Detail:    "creator has no availability rule",
			}},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	conflicts, err := ruleConflicts(rc, start, end, s.now())
	if err != nil {
		return nil, err
	}
	res, err := s.conflicts().HasConflict(ctx, creatorID, start, end, ConflictOptions{Rule: rc.rule})
	if err != nil {
		return nil, err
	}
	res.Conflicts = append(conflicts, res.Conflicts...)
	if res.Conflicts == nil {
		res.Conflicts = []models.ConflictDescriptor{}
	}
	res.HasConflicts = len(res.Conflicts) > 0
	return res, nil
}
