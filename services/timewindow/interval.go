// Package timewindow implements half-open [start, end) interval arithmetic
// used for working windows, busy blocks and slots.
package timewindow

import (
	"errors"
	"sort"
	"time"
)

// ErrInvalidInterval is returned when end is not after start.
var ErrInvalidInterval = errors.New("interval end must be after start")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds an interval, rejecting empty or inverted ranges.
func New(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start, End: end}, nil
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Empty reports whether the interval covers no time.
func (iv Interval) Empty() bool {
	return !iv.End.After(iv.Start)
}

// ContainsInterval reports whether o lies entirely within iv.
func (iv Interval) ContainsInterval(o Interval) bool {
	return !o.Start.Before(iv.Start) && !o.End.After(iv.End)
}

// Intersect returns the common part of two intervals.
func (iv Interval) Intersect(o Interval) (Interval, bool) {
	start := maxTime(iv.Start, o.Start)
	end := minTime(iv.End, o.End)
	if !end.After(start) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Expand widens the interval by before and after. Negative values are ignored.
func (iv Interval) Expand(before, after time.Duration) Interval {
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}
	return Interval{Start: iv.Start.Add(-before), End: iv.End.Add(after)}
}

// Overlaps reports whether a and b share any instant. Touching intervals and
// empty intervals never overlap.
func Overlaps(a, b Interval) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Subtract returns the parts of base not covered by cut (zero, one or two
// intervals).
func Subtract(base, cut Interval) []Interval {
	if base.Empty() {
		return nil
	}
	if !Overlaps(base, cut) {
		return []Interval{base}
	}
	var out []Interval
	if base.Start.Before(cut.Start) {
		out = append(out, Interval{Start: base.Start, End: cut.Start})
	}
	if cut.End.Before(base.End) {
		out = append(out, Interval{Start: cut.End, End: base.End})
	}
	return out
}

// SubtractAll carves every cut out of every base.
func SubtractAll(bases, cuts []Interval) []Interval {
	remaining := append([]Interval(nil), bases...)
	for _, cut := range cuts {
		next := remaining[:0:0]
		for _, base := range remaining {
			next = append(next, Subtract(base, cut)...)
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}
	}
	return remaining
}

// MergeOverlapping returns the minimal sorted set of intervals covering the
// input. Touching intervals are merged. The input slice is not modified.
func MergeOverlapping(ivs []Interval) []Interval {
	sorted := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// AlignToGrid splits iv into consecutive slots of the given size whose starts
// fall on anchor + k*granularity. A trailing remainder shorter than the
// granularity is dropped. A zero anchor aligns to iv.Start.
func AlignToGrid(iv Interval, granularity time.Duration, anchor time.Time) []Interval {
	return AlignToGridWithLength(iv, granularity, granularity, anchor)
}

// AlignToGridWithLength is AlignToGrid for slots longer than the grid step:
// slots of the given length start on every grid boundary that leaves room for a
// full slot inside iv.
func AlignToGridWithLength(iv Interval, granularity, length time.Duration, anchor time.Time) []Interval {
	if granularity <= 0 || length <= 0 || iv.Empty() {
		return nil
	}
	if anchor.IsZero() {
		anchor = iv.Start
	}

	start := anchor
	if offset := iv.Start.Sub(anchor); offset > 0 {
		steps := offset / granularity
		if offset%granularity != 0 {
			steps++
		}
		start = anchor.Add(steps * granularity)
	} else if offset < 0 {
		steps := (-offset) / granularity
		start = anchor.Add(-steps * granularity)
	}

	var slots []Interval
	for s := start; !s.Add(length).After(iv.End); s = s.Add(granularity) {
		slots = append(slots, Interval{Start: s, End: s.Add(length)})
	}
	return slots
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
