package calendarsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"creatorhub/models"
	"creatorhub/services/timewindow"
)

// MemoryProvider keeps busy blocks in memory. Tests use it in place of real
// calendar services; failures and latency can be injected.
type MemoryProvider struct {
	name string

	mu      sync.RWMutex
	busy    map[string][]models.ExternalBusyBlock
	created map[string][]CreatedBlock
	failN   int   // fail the next N ListBusyBlocks calls
	failErr error // error returned while failing
	delay   time.Duration
	calls   int
	seq     int
}

// CreatedBlock records a CreateBlock call.
type CreatedBlock struct {
	EventID string
	Slot    timewindow.Interval
	Label   string
}

func NewMemoryProvider(name string) *MemoryProvider {
	return &MemoryProvider{
		name:    name,
		busy:    make(map[string][]models.ExternalBusyBlock),
		created: make(map[string][]CreatedBlock),
	}
}

func (m *MemoryProvider) Name() string { return m.name }

// AddBusy registers a busy interval for a creator.
func (m *MemoryProvider) AddBusy(creatorID string, start, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy[creatorID] = append(m.busy[creatorID], models.ExternalBusyBlock{
		StartTime: start, EndTime: end, Source: m.name, Opaque: true,
	})
}

// FailNext makes the next n ListBusyBlocks calls return err (ErrProviderUnavailable when nil).
func (m *MemoryProvider) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = ErrProviderUnavailable
	}
	m.failN, m.failErr = n, err
}

// SetDelay makes every ListBusyBlocks call wait d or until ctx is done.
func (m *MemoryProvider) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls reports how many times ListBusyBlocks ran.
func (m *MemoryProvider) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Created returns the blocks mirrored for a creator.
func (m *MemoryProvider) Created(creatorID string) []CreatedBlock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CreatedBlock(nil), m.created[creatorID]...)
}

func (m *MemoryProvider) ListBusyBlocks(ctx context.Context, creatorID string, start, end time.Time) ([]models.ExternalBusyBlock, error) {
	m.mu.Lock()
	m.calls++
	delay := m.delay
	var failErr error
	if m.failN > 0 {
		m.failN--
		failErr = m.failErr
	}
	blocks := append([]models.ExternalBusyBlock(nil), m.busy[creatorID]...)
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, unavailable(m.name, ctx.Err())
		}
	}
	if failErr != nil {
		return nil, unavailable(m.name, failErr)
	}

	window := timewindow.Interval{Start: start, End: end}
	var out []models.ExternalBusyBlock
	for _, b := range blocks {
		if timewindow.Overlaps(window, timewindow.Interval{Start: b.StartTime, End: b.EndTime}) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemoryProvider) CreateBlock(_ context.Context, creatorID string, slot timewindow.Interval, label string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("%s-evt-%d", m.name, m.seq)
	m.created[creatorID] = append(m.created[creatorID], CreatedBlock{EventID: id, Slot: slot, Label: label})
	m.busy[creatorID] = append(m.busy[creatorID], models.ExternalBusyBlock{
		StartTime: slot.Start, EndTime: slot.End, Source: m.name, Opaque: true,
	})
	return id, nil
}
