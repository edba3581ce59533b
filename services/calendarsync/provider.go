// Package calendarsync connects creators' external calendars: one Provider per
// calendar service, plus a Registry that queries them in parallel.
package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creatorhub/models"
	"creatorhub/services/timewindow"
)

var (
	// ErrProviderUnavailable marks network, auth or protocol failures.
	ErrProviderUnavailable = errors.New("calendar provider unavailable")
	// ErrNotConnected means the creator has not linked this provider. It
	// contributes no busy blocks and is not a failure.
	ErrNotConnected = errors.New("calendar provider not connected")
	// ErrUnknownProvider is returned by the registry for unregistered names.
	ErrUnknownProvider = errors.New("unknown calendar provider")
)

// Provider is the capability every calendar integration implements.
type Provider interface {
	Name() string
	ListBusyBlocks(ctx context.Context, creatorID string, start, end time.Time) ([]models.ExternalBusyBlock, error)
	// CreateBlock mirrors an interval outward and returns the provider's event id.
	CreateBlock(ctx context.Context, creatorID string, slot timewindow.Interval, label string) (string, error)
}

// ConflictDetector is implemented by providers with a cheaper server-side
// free/busy check.
type ConflictDetector interface {
	DetectConflict(ctx context.Context, creatorID string, start, end time.Time) (bool, error)
}

// DetectConflict uses the provider's own check when it has one and falls back
// to listing busy blocks.
func DetectConflict(ctx context.Context, p Provider, creatorID string, start, end time.Time) (bool, error) {
	if d, ok := p.(ConflictDetector); ok {
		return d.DetectConflict(ctx, creatorID, start, end)
	}
	blocks, err := p.ListBusyBlocks(ctx, creatorID, start, end)
	if err != nil {
		return false, err
	}
	candidate := timewindow.Interval{Start: start, End: end}
	for _, b := range blocks {
		if timewindow.Overlaps(candidate, timewindow.Interval{Start: b.StartTime, End: b.EndTime}) {
			return true, nil
		}
	}
	return false, nil
}

// ProviderError wraps a failure from a named provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderUnavailable
}

func unavailable(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: err}
}
