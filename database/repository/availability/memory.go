// File: database/repository/availability/memory.go
package availabilityRepo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"creatorhub/models"
)

// MemoryRuleRepo is an in-process RuleRepository with the same version and
// range semantics as the Mongo implementation. Every saved version is kept.
type MemoryRuleRepo struct {
	mu         sync.RWMutex
	rules      map[string][]models.AvailabilityRule // oldest first
	exceptions map[string][]models.BlackoutException
}

func NewMemoryRuleRepo() *MemoryRuleRepo {
	return &MemoryRuleRepo{
		rules:      make(map[string][]models.AvailabilityRule),
		exceptions: make(map[string][]models.BlackoutException),
	}
}

func (m *MemoryRuleRepo) GetRule(_ context.Context, creatorID string) (*models.AvailabilityRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.rules[creatorID]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	rule := cloneRule(versions[len(versions)-1])
	return &rule, nil
}

func (m *MemoryRuleRepo) SaveRule(_ context.Context, rule *models.AvailabilityRule, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.rules[rule.CreatorID]) != expectedVersion {
		return ErrVersionConflict
	}
	rule.Version = expectedVersion + 1
	m.rules[rule.CreatorID] = append(m.rules[rule.CreatorID], cloneRule(*rule))
	return nil
}

// Versions returns every stored version of a creator's rule, oldest first.
func (m *MemoryRuleRepo) Versions(creatorID string) []models.AvailabilityRule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.AvailabilityRule, 0, len(m.rules[creatorID]))
	for _, r := range m.rules[creatorID] {
		out = append(out, cloneRule(r))
	}
	return out
}

func cloneRule(r models.AvailabilityRule) models.AvailabilityRule {
	r.WeeklyWindows = append([]models.WeeklyWindow(nil), r.WeeklyWindows...)
	if r.BufferByKind != nil {
		buffers := make(map[models.BusyKind]int, len(r.BufferByKind))
		for k, v := range r.BufferByKind {
			buffers[k] = v
		}
		r.BufferByKind = buffers
	}
	return r
}

func (m *MemoryRuleRepo) GetExceptions(_ context.Context, creatorID, fromDate, toDate string) ([]models.BlackoutException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.BlackoutException
	for _, exc := range m.exceptions[creatorID] {
		if exc.Date > toDate {
			continue
		}
		if exc.Recurring || exc.EndDate >= fromDate {
			out = append(out, exc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *MemoryRuleRepo) AddException(_ context.Context, exc *models.BlackoutException) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if exc.ID == "" {
		exc.ID = uuid.New().String()
	}
	if exc.EndDate == "" {
		exc.EndDate = exc.Date
	}
	m.exceptions[exc.CreatorID] = append(m.exceptions[exc.CreatorID], *exc)
	return nil
}

func (m *MemoryRuleRepo) DeleteException(_ context.Context, creatorID, exceptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.exceptions[creatorID]
	for i, exc := range list {
		if exc.ID == exceptionID {
			m.exceptions[creatorID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryRuleRepo) EnsureIndexes(context.Context) error { return nil }
