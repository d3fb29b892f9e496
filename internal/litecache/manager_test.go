package litecache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// sink keeps test allocations observable to the runtime accounting.
var sink []byte

// fakeClock steps time manually.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type countingEnhancer struct {
	calls int
	err   error
}

func (e *countingEnhancer) Enhance(ctx context.Context, snap *LiteSnapshot) error {
	e.calls++
	if e.err != nil {
		return e.err
	}
	if snap.Extras == nil {
		snap.Extras = map[string]any{}
	}
	snap.Extras["enhanced"] = true
	return nil
}

func TestGetSnapshotReturnsSameReferenceWithinBudget(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)}
	enhancer := &countingEnhancer{}
	mgr := NewManager(Options{MaxAge: time.Minute, Clock: clock.Now, Enhancer: enhancer})
	ctx := context.Background()

	first, err := mgr.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	clock.Advance(30 * time.Second)
	second, err := mgr.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}

	if first != second {
		t.Error("within MaxAge the exact same reference must be returned")
	}
	if enhancer.calls != 1 {
		t.Errorf("enhancer ran %d times, want 1 (no re-collection within budget)", enhancer.calls)
	}

	clock.Advance(31 * time.Second)
	third, err := mgr.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if third == second {
		t.Error("expired snapshot must be rebuilt")
	}
	if enhancer.calls != 2 {
		t.Errorf("enhancer ran %d times after expiry, want 2", enhancer.calls)
	}
	if !third.GeneratedAt.Equal(clock.now) {
		t.Errorf("generatedAt = %v, want clock time %v", third.GeneratedAt, clock.now)
	}
}

func TestRefreshIsolatesBaselineFromCallerMutation(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)}
	mgr := NewManager(Options{MaxAge: time.Minute, Clock: clock.Now})
	ctx := context.Background()

	first, err := mgr.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	originalPath := first.Pages[0].Path
	first.Pages[0].Path = "/mutated"
	first.Pages = append(first.Pages, PageStat{Path: "/injected"})

	clock.Advance(2 * time.Minute)
	second, err := mgr.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if second.Pages[0].Path != originalPath {
		t.Error("caller mutation corrupted the cached baseline")
	}
	if len(second.Pages) != 3 {
		t.Errorf("baseline grew to %d pages after caller append", len(second.Pages))
	}
}

func TestEnhancerUnavailableIsNotFatal(t *testing.T) {
	enhancer := &countingEnhancer{err: ErrUnavailable}
	mgr := NewManager(Options{Enhancer: enhancer})

	snap, err := mgr.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh should tolerate an absent enhancement: %v", err)
	}
	if snap == nil || len(snap.Pages) == 0 {
		t.Error("snapshot should still carry the baseline")
	}
}

func TestEnhancerFailureIsFatal(t *testing.T) {
	boom := errors.New("enhancement exploded")
	mgr := NewManager(Options{Enhancer: &countingEnhancer{err: boom}})

	if _, err := mgr.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Refresh = %v, want wrapped enhancement error", err)
	}
}

// gateEnhancer blocks inside the refresh until released, honoring the
// context it is handed.
type gateEnhancer struct {
	started chan struct{}
	release chan struct{}
}

func (e *gateEnhancer) Enhance(ctx context.Context, snap *LiteSnapshot) error {
	close(e.started)
	select {
	case <-e.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestAbandonedCallerDoesNotCancelCoalescedRefresh(t *testing.T) {
	enhancer := &gateEnhancer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	mgr := NewManager(Options{Enhancer: enhancer})

	ctx1, cancel1 := context.WithCancel(context.Background())
	errs := make(chan error, 2)

	go func() {
		_, err := mgr.Refresh(ctx1)
		errs <- err
	}()
	<-enhancer.started

	// Second caller joins the in-flight rebuild, then the first caller
	// abandons its request.
	go func() {
		_, err := mgr.Refresh(context.Background())
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel1()
	time.Sleep(20 * time.Millisecond)
	close(enhancer.release)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Errorf("caller %d: refresh failed after another caller abandoned: %v", i+1, err)
		}
	}
}

func TestRefreshRecordsResourceUsage(t *testing.T) {
	mgr := NewManager(Options{})
	ctx := context.Background()

	first, err := mgr.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if first.Resource.Goroutines <= 0 {
		t.Error("resource usage not collected")
	}

	// Second refresh can see the previous refresh's allocation state.
	sink = make([]byte, 1<<20)
	second, err := mgr.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.Resource.AllocDeltaBytes == 0 {
		t.Error("expected a non-zero allocation delta on the second refresh")
	}
}
