package calendarsync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"creatorhub/models"
)

// FetchOptions bounds a busy-block fan-out.
type FetchOptions struct {
	Timeout   time.Duration // per provider; zero means no extra bound
	RetryOnce bool          // retry a failed provider once (claim path)
}

// BusyResult is the union of every provider's busy blocks. A provider that
// failed contributes nothing and is listed in Failures.
type BusyResult struct {
	Blocks   []models.ExternalBusyBlock
	Failures map[string]error
}

func (r BusyResult) FailedProviders() []string { return failedNames(r.Failures) }

// ConflictCheck is the outcome of asking every provider whether an interval is
// busy. Busy lists the providers that reported a conflict.
type ConflictCheck struct {
	Busy     []string
	Failures map[string]error
}

func (c ConflictCheck) FailedProviders() []string { return failedNames(c.Failures) }

func failedNames(failures map[string]error) []string {
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry holds the configured providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
	logger    *zap.Logger
}

func NewRegistry(logger *zap.Logger, providers ...Provider) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{providers: make(map[string]Provider), logger: logger}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Providers returns the providers in registration order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// FetchBusy queries every provider in parallel. One slow or failing provider
// never blocks or cancels the others. Any busy interval from any provider is
// kept.
func (r *Registry) FetchBusy(ctx context.Context, creatorID string, start, end time.Time, opts FetchOptions) BusyResult {
	providers := r.Providers()
	blocks := make([][]models.ExternalBusyBlock, len(providers))
	errs := make([]error, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			blocks[i], errs[i] = r.fetchOne(ctx, p, creatorID, start, end, opts)
			return nil
		})
	}
	_ = g.Wait()

	result := BusyResult{Failures: map[string]error{}}
	for i, p := range providers {
		if errs[i] != nil {
			result.Failures[p.Name()] = errs[i]
			continue
		}
		result.Blocks = append(result.Blocks, blocks[i]...)
	}
	sort.Slice(result.Blocks, func(i, j int) bool {
		return result.Blocks[i].StartTime.Before(result.Blocks[j].StartTime)
	})
	return result
}

// DetectConflicts asks every provider in parallel whether [start, end) is
// busy, through the provider's own check when it has one.
func (r *Registry) DetectConflicts(ctx context.Context, creatorID string, start, end time.Time, opts FetchOptions) ConflictCheck {
	providers := r.Providers()
	busy := make([]bool, len(providers))
	errs := make([]error, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			busy[i], errs[i] = callProvider(ctx, r.logger, p, creatorID, opts, func(ctx context.Context) (bool, error) {
				return DetectConflict(ctx, p, creatorID, start, end)
			})
			return nil
		})
	}
	_ = g.Wait()

	result := ConflictCheck{Failures: map[string]error{}}
	for i, p := range providers {
		switch {
		case errs[i] != nil:
			result.Failures[p.Name()] = errs[i]
		case busy[i]:
			result.Busy = append(result.Busy, p.Name())
		}
	}
	return result
}

func (r *Registry) fetchOne(ctx context.Context, p Provider, creatorID string, start, end time.Time, opts FetchOptions) ([]models.ExternalBusyBlock, error) {
	return callProvider(ctx, r.logger, p, creatorID, opts, func(ctx context.Context) ([]models.ExternalBusyBlock, error) {
		return p.ListBusyBlocks(ctx, creatorID, start, end)
	})
}

// callProvider runs call against p with the per-provider timeout, retrying
// once when asked. ErrNotConnected yields the zero value and no error.
func callProvider[T any](ctx context.Context, logger *zap.Logger, p Provider, creatorID string, opts FetchOptions, call func(context.Context) (T, error)) (T, error) {
	attempts := 1
	if opts.RetryOnce {
		attempts = 2
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := callWithTimeout(ctx, p.Name(), opts.Timeout, call)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, ErrNotConnected) {
			return zero, nil
		}
		lastErr = err
		logger.Warn("calendar provider call failed",
			zap.String("provider", p.Name()),
			zap.String("creatorId", creatorID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if !errors.Is(lastErr, ErrProviderUnavailable) {
		lastErr = unavailable(p.Name(), lastErr)
	}
	return zero, lastErr
}

func callWithTimeout[T any](ctx context.Context, provider string, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		out T
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := call(ctx)
		done <- result{out, err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		var zero T
		return zero, unavailable(provider, ctx.Err())
	}
}
