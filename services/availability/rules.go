package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	availabilityRepo "creatorhub/database/repository/availability"
	"creatorhub/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// parseClock turns "HH:MM" into minutes after midnight. "24:00" is accepted
// only when allowMidnight is set (window ends).
func parseClock(v string, allowMidnight bool) (int, error) {
	hh, mm, ok := strings.Cut(v, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%q is not HH:MM", v)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || m < 0 || m > 59 || h < 0 {
		return 0, fmt.Errorf("%q is not HH:MM", v)
	}
	if h == 24 && m == 0 && allowMidnight {
		return 24 * 60, nil
	}
	if h > 23 {
		return 0, fmt.Errorf("%q is out of range", v)
	}
	return h*60 + m, nil
}

// collectValidatorErrors copies struct tag failures into ve.
func collectValidatorErrors(ve *ValidationError, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			ve.add("", "%v", err)
		}
		return
	}
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), strings.Split(fe.Namespace(), ".")[0]+".")
		if fe.Param() != "" {
			ve.add(field, "failed %s=%s", fe.Tag(), fe.Param())
		} else {
			ve.add(field, "failed %s", fe.Tag())
		}
	}
}

// ValidateRule checks a rule before it is stored: struct constraints, the
// timezone, window times, and that no two windows of a day overlap.
func ValidateRule(rule *models.AvailabilityRule) error {
	ve := &ValidationError{}
	collectValidatorErrors(ve, validate.Struct(rule))

	if rule.Timezone != "" {
		if _, err := time.LoadLocation(rule.Timezone); err != nil {
			ve.add("timezone", "unknown timezone %q", rule.Timezone)
		}
	}

	type span struct{ start, end, idx int }
	byDay := map[string][]span{}
	for i, w := range rule.WeeklyWindows {
		field := fmt.Sprintf("weeklyWindows[%d]", i)
		start, err := parseClock(w.Start, false)
		if err != nil {
			ve.add(field+".start", "%v", err)
			continue
		}
		end, err := parseClock(w.End, true)
		if err != nil {
			ve.add(field+".end", "%v", err)
			continue
		}
		if end <= start {
			ve.add(field, "end %s must be after start %s", w.End, w.Start)
			continue
		}
		byDay[w.Day] = append(byDay[w.Day], span{start, end, i})
	}
	for day, spans := range byDay {
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		for i := 1; i < len(spans); i++ {
			if spans[i].start < spans[i-1].end {
				ve.add(fmt.Sprintf("weeklyWindows[%d]", spans[i].idx),
					"overlaps weeklyWindows[%d] on %s", spans[i-1].idx, day)
			}
		}
	}
	sort.Slice(ve.Fields, func(i, j int) bool { return ve.Fields[i].Field < ve.Fields[j].Field })
	return ve.orNil()
}

// normalizeRule lowercases day names and orders windows by day then start.
func normalizeRule(rule *models.AvailabilityRule) {
	for i := range rule.WeeklyWindows {
		rule.WeeklyWindows[i].Day = strings.ToLower(strings.TrimSpace(rule.WeeklyWindows[i].Day))
	}
	sort.SliceStable(rule.WeeklyWindows, func(i, j int) bool {
		a, b := rule.WeeklyWindows[i], rule.WeeklyWindows[j]
		if weekdays[a.Day] != weekdays[b.Day] {
			return weekdays[a.Day] < weekdays[b.Day]
		}
		return a.Start < b.Start
	})
}

// GetRule returns the creator's rule or ErrRuleNotFound.
func (s *DefaultAvailabilityService) GetRule(ctx context.Context, creatorID string) (*models.AvailabilityRule, error) {
	rule, err := s.Rules.GetRule(ctx, creatorID)
	if errors.Is(err, availabilityRepo.ErrNotFound) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load availability rule: %w", err)
	}
	return rule, nil
}

// SaveRule validates and stores a creator's rule. A concurrent edit is retried
// once against the fresh version before the conflict is surfaced.
func (s *DefaultAvailabilityService) SaveRule(ctx context.Context, actor models.Actor, rule models.AvailabilityRule) (*models.AvailabilityRule, error) {
	if err := authorize(actor, rule.CreatorID); err != nil {
		return nil, err
	}
	normalizeRule(&rule)
	if err := ValidateRule(&rule); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		expected := 0
		createdAt := s.now()
		current, err := s.Rules.GetRule(ctx, rule.CreatorID)
		switch {
		case err == nil:
			expected = current.Version
			createdAt = current.CreatedAt
		case !errors.Is(err, availabilityRepo.ErrNotFound):
			return nil, fmt.Errorf("failed to load availability rule: %w", err)
		}

		candidate := rule
		candidate.CreatedAt = createdAt
		candidate.UpdatedAt = s.now()
		candidate.UpdatedBy = actor.ID
		lastErr = s.Rules.SaveRule(ctx, &candidate, expected)
		if lastErr == nil {
			s.log().Info("availability rule saved",
				zap.String("creatorId", rule.CreatorID),
				zap.Int("version", candidate.Version))
			return &candidate, nil
		}
		if !errors.Is(lastErr, availabilityRepo.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to save availability rule: %w", lastErr)
		}
		s.log().Debug("availability rule version conflict, retrying",
			zap.String("creatorId", rule.CreatorID), zap.Int("expectedVersion", expected))
	}
	return nil, lastErr
}
