package calendarsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"creatorhub/models"
	"creatorhub/services/timewindow"
)

var day = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

type notConnectedProvider struct{}

func (notConnectedProvider) Name() string { return "idle" }
func (notConnectedProvider) ListBusyBlocks(context.Context, string, time.Time, time.Time) ([]models.ExternalBusyBlock, error) {
	return nil, ErrNotConnected
}
func (notConnectedProvider) CreateBlock(context.Context, string, timewindow.Interval, string) (string, error) {
	return "", ErrNotConnected
}

func TestFetchBusyUnionAndFailureIsolation(t *testing.T) {
	a := NewMemoryProvider("a")
	b := NewMemoryProvider("b")
	broken := NewMemoryProvider("broken")
	a.AddBusy("c1", hour(10), hour(11))
	b.AddBusy("c1", hour(10), hour(12)) // disagrees with a; busy wins
	b.AddBusy("c1", hour(20), hour(21)) // outside the window
	broken.FailNext(5, nil)

	reg := NewRegistry(nil, a, b, broken, notConnectedProvider{})
	res := reg.FetchBusy(context.Background(), "c1", hour(8), hour(18), FetchOptions{})

	if len(res.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %+v", len(res.Blocks), res.Blocks)
	}
	if got := res.FailedProviders(); len(got) != 1 || got[0] != "broken" {
		t.Errorf("failed providers = %v, want [broken]", got)
	}
	if !errors.Is(res.Failures["broken"], ErrProviderUnavailable) {
		t.Errorf("failure should match ErrProviderUnavailable: %v", res.Failures["broken"])
	}
	if broken.Calls() != 1 {
		t.Errorf("display fetch must not retry, got %d calls", broken.Calls())
	}
}

func TestFetchBusyRetryOnce(t *testing.T) {
	flaky := NewMemoryProvider("flaky")
	flaky.AddBusy("c1", hour(9), hour(10))
	flaky.FailNext(1, nil)

	reg := NewRegistry(nil, flaky)
	res := reg.FetchBusy(context.Background(), "c1", hour(8), hour(18), FetchOptions{RetryOnce: true})
	if len(res.Failures) != 0 {
		t.Fatalf("expected retry to succeed, failures: %v", res.Failures)
	}
	if len(res.Blocks) != 1 || flaky.Calls() != 2 {
		t.Errorf("blocks=%d calls=%d, want 1 and 2", len(res.Blocks), flaky.Calls())
	}

	flaky.FailNext(2, nil)
	res = reg.FetchBusy(context.Background(), "c1", hour(8), hour(18), FetchOptions{RetryOnce: true})
	if _, failed := res.Failures["flaky"]; !failed {
		t.Errorf("two consecutive failures must be reported")
	}
}

func TestFetchBusyTimeout(t *testing.T) {
	slow := NewMemoryProvider("slow")
	slow.SetDelay(2 * time.Second)
	fast := NewMemoryProvider("fast")
	fast.AddBusy("c1", hour(9), hour(10))

	reg := NewRegistry(nil, slow, fast)
	started := time.Now()
	res := reg.FetchBusy(context.Background(), "c1", hour(8), hour(18), FetchOptions{Timeout: 50 * time.Millisecond})
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("slow provider blocked the fan-out for %v", elapsed)
	}
	if _, failed := res.Failures["slow"]; !failed {
		t.Errorf("slow provider should be reported as failed")
	}
	if len(res.Blocks) != 1 {
		t.Errorf("fast provider's blocks missing: %+v", res.Blocks)
	}
}

func TestDetectConflictFallback(t *testing.T) {
	p := NewMemoryProvider("m")
	p.AddBusy("c1", hour(10), hour(11))

	busy, err := DetectConflict(context.Background(), p, "c1", hour(10), hour(12))
	if err != nil || !busy {
		t.Errorf("DetectConflict = %v, %v; want true", busy, err)
	}
	busy, _ = DetectConflict(context.Background(), p, "c1", hour(11), hour(12))
	if busy {
		t.Errorf("touching interval must not conflict")
	}
}

type detectingProvider struct {
	*MemoryProvider
	detects int
}

func (d *detectingProvider) DetectConflict(ctx context.Context, creatorID string, start, end time.Time) (bool, error) {
	d.detects++
	return DetectConflict(ctx, d.MemoryProvider, creatorID, start, end)
}

func TestDetectConflictsFanOut(t *testing.T) {
	busy := &detectingProvider{MemoryProvider: NewMemoryProvider("busy")}
	busy.AddBusy("c1", hour(10), hour(11))
	free := NewMemoryProvider("free")
	free.AddBusy("c1", hour(11), hour(12))
	broken := NewMemoryProvider("broken")
	broken.FailNext(5, nil)

	reg := NewRegistry(nil, busy, free, broken, notConnectedProvider{})
	res := reg.DetectConflicts(context.Background(), "c1", hour(10), hour(11), FetchOptions{RetryOnce: true})

	if len(res.Busy) != 1 || res.Busy[0] != "busy" {
		t.Errorf("busy providers = %v, want [busy]", res.Busy)
	}
	if busy.detects != 1 {
		t.Errorf("provider's own conflict check ran %d times, want 1", busy.detects)
	}
	if got := res.FailedProviders(); len(got) != 1 || got[0] != "broken" {
		t.Errorf("failed providers = %v, want [broken]", got)
	}
	if broken.Calls() != 2 {
		t.Errorf("strict check should retry once, got %d calls", broken.Calls())
	}
}

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry(nil, NewMemoryProvider("m"))
	if _, err := reg.Get("m"); err != nil {
		t.Errorf("Get(m): %v", err)
	}
	if _, err := reg.Get("nope"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}
