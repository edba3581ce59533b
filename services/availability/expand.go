package availability

import (
	"fmt"
	"time"

	"creatorhub/models"
	"creatorhub/services/timewindow"
)

const dateLayout = "2006-01-02"

// workingWindow is a concrete working interval together with the local
// midnight its slot grid is anchored to.
type workingWindow struct {
	Interval timewindow.Interval
	Anchor   time.Time
}

// localDays returns the local midnights of every civil day touching [start, end).
func localDays(start, end time.Time, loc *time.Location) []time.Time {
	s := start.In(loc)
	day := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	var days []time.Time
	for day.Before(end) {
		days = append(days, day)
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	}
	return days
}

// atClock is the instant minutes after the local midnight of day. 24:00 is the
// next midnight, so DST days keep their real length.
func atClock(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

// expandWindows turns the weekly pattern into concrete working intervals
// clipped to rng. Blackouts matching a day are cut from that day's windows,
// and windows of the same day that touch are joined.
func expandWindows(rule *models.AvailabilityRule, loc *time.Location, exceptions []models.BlackoutException, rng timewindow.Interval) ([]workingWindow, error) {
	var out []workingWindow
	for _, day := range localDays(rng.Start, rng.End, loc) {
		var blackouts []timewindow.Interval
		for _, exc := range exceptions {
			if !exceptionApplies(exc, day) {
				continue
			}
			cut, err := blackoutInterval(exc, day)
			if err != nil {
				return nil, err
			}
			blackouts = append(blackouts, cut)
		}

		var pieces []timewindow.Interval
		for _, w := range rule.WeeklyWindows {
			if weekdays[w.Day] != day.Weekday() {
				continue
			}
			startMin, err := parseClock(w.Start, false)
			if err != nil {
				return nil, fmt.Errorf("weekly window %s: %w", w.Day, err)
			}
			endMin, err := parseClock(w.End, true)
			if err != nil {
				return nil, fmt.Errorf("weekly window %s: %w", w.Day, err)
			}
			iv, ok := (timewindow.Interval{Start: atClock(day, startMin), End: atClock(day, endMin)}).Intersect(rng)
			if !ok {
				continue
			}
			pieces = append(pieces, timewindow.SubtractAll([]timewindow.Interval{iv}, blackouts)...)
		}
		// adjacent windows of one day form a single stretch of working time
		for _, piece := range timewindow.MergeOverlapping(pieces) {
			out = append(out, workingWindow{Interval: piece, Anchor: day})
		}
	}
	return out, nil
}

// exceptionApplies reports whether the blackout covers the civil date of day
// (a local midnight).
func exceptionApplies(exc models.BlackoutException, day time.Time) bool {
	key := day.Format(dateLayout)
	last := exc.EndDate
	if last == "" {
		last = exc.Date
	}
	if !exc.Recurring {
		return key >= exc.Date && key <= last
	}
	if key < exc.Date {
		return false
	}

	first, err := time.Parse(dateLayout, exc.Date)
	if err != nil {
		return false
	}
	end, err := time.Parse(dateLayout, last)
	if err != nil || end.Before(first) {
		end = first
	}

	if exc.Frequency == models.RecurYearly {
		md, from, to := day.Format("01-02"), first.Format("01-02"), end.Format("01-02")
		if from <= to {
			return md >= from && md <= to
		}
		// span crosses the new year
		return md >= from || md <= to
	}

	span := int(end.Sub(first).Hours() / 24)
	if span >= 6 {
		return true
	}
	offset := (int(day.Weekday()) - int(first.Weekday()) + 7) % 7
	return offset <= span
}

// blackoutInterval is the part of day the blackout removes: the whole day, or
// StartTime..EndTime for a partial-day blackout.
func blackoutInterval(exc models.BlackoutException, day time.Time) (timewindow.Interval, error) {
	if exc.StartTime == "" && exc.EndTime == "" {
		return timewindow.Interval{Start: day, End: atClock(day, 24*60)}, nil
	}
	startMin, err := parseClock(exc.StartTime, false)
	if err != nil {
		return timewindow.Interval{}, fmt.Errorf("blackout %s: %w", exc.ID, err)
	}
	endMin, err := parseClock(exc.EndTime, true)
	if err != nil {
		return timewindow.Interval{}, fmt.Errorf("blackout %s: %w", exc.ID, err)
	}
	return timewindow.Interval{Start: atClock(day, startMin), End: atClock(day, endMin)}, nil
}

// ruleContext is the rule, its location and the blackouts relevant to a range.
type ruleContext struct {
	rule       *models.AvailabilityRule
	loc        *time.Location
	exceptions []models.BlackoutException
}

// applyNotice drops working time that starts sooner than cutoff.
func applyNotice(windows []workingWindow, cutoff time.Time) []workingWindow {
	out := windows[:0:0]
	for _, w := range windows {
		if !w.Interval.End.After(cutoff) {
			continue
		}
		if w.Interval.Start.Before(cutoff) {
			w.Interval.Start = cutoff
		}
		out = append(out, w)
	}
	return out
}

// ruleConflicts checks [start, end) against the rule alone: notice, working
// hours and blackouts. Busy time is not consulted.
func ruleConflicts(rc ruleContext, start, end, now time.Time) ([]models.ConflictDescriptor, error) {
	candidate := timewindow.Interval{Start: start, End: end}
	var conflicts []models.ConflictDescriptor

	if start.Before(now.Add(rc.rule.MinNotice())) {
		conflicts = append(conflicts, models.ConflictDescriptor{
			Kind:      models.ConflictInsufficientNotice,
			Source:    "rule",
			StartTime: start,
			EndTime:   end,
			Detail:    fmt.Sprintf("requires %d minutes notice", rc.rule.MinNoticeMinutes),
		})
	}

	plain, err := expandWindows(rc.rule, rc.loc, nil, candidate)
	if err != nil {
		return nil, err
	}
	if !coveredBy(candidate, plain) {
		return append(conflicts, models.ConflictDescriptor{
			Kind:      models.ConflictOutsideWorkingHours,
			Source:    "rule",
			StartTime: start,
			EndTime:   end,
		}), nil
	}

	withBlackouts, err := expandWindows(rc.rule, rc.loc, rc.exceptions, candidate)
	if err != nil {
		return nil, err
	}
	if !coveredBy(candidate, withBlackouts) {
		conflicts = append(conflicts, models.ConflictDescriptor{
			Kind:      models.ConflictBlackout,
			Source:    "blackout",
			StartTime: start,
			EndTime:   end,
			Detail:    blackoutReason(rc.exceptions, rc.loc, candidate),
		})
	}
	return conflicts, nil
}

// coveredBy reports whether one window alone contains iv. Windows are clipped
// to iv, so a match means the original window contains it.
func coveredBy(iv timewindow.Interval, windows []workingWindow) bool {
	for _, w := range windows {
		if w.Interval.ContainsInterval(iv) {
			return true
		}
	}
	return false
}

func blackoutReason(exceptions []models.BlackoutException, loc *time.Location, iv timewindow.Interval) string {
	for _, day := range localDays(iv.Start, iv.End, loc) {
		for _, exc := range exceptions {
			if !exceptionApplies(exc, day) {
				continue
			}
			if cut, err := blackoutInterval(exc, day); err == nil && timewindow.Overlaps(cut, iv) {
				if exc.Reason != "" {
					return exc.Reason
				}
				return "blackout " + exc.Date
			}
		}
	}
	return ""
}
