// Package litecache holds a single snapshot for a lightweight status
// consumer, refreshing it on a time budget. It is the small embodiment
// of the same live/static resilience pattern the snapshot orchestrator
// implements in full.
package litecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is the distinguishable "module absent" condition an
// Enhancer may report. The manager proceeds without the enhancement;
// any other error fails the refresh.
var ErrUnavailable = errors.New("enhancement unavailable")

// Enhancer is an optional capability merged into the snapshot during
// refresh. Inject a real implementation or leave it nil at construction.
type Enhancer interface {
	Enhance(ctx context.Context, snap *LiteSnapshot) error
}

// PageStat is one baseline page entry of the lightweight snapshot.
type PageStat struct {
	Path      string `json:"path"`
	AvgLoadMs int    `json:"avg_load_ms"`
}

// ResourceUsage is the live metric collected at refresh time.
type ResourceUsage struct {
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	AllocDeltaBytes uint64 `json:"alloc_delta_bytes"`
	Goroutines      int    `json:"goroutines"`
}

// LiteSnapshot is the payload served to the lightweight consumer.
type LiteSnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Pages       []PageStat     `json:"pages"`
	Resource    ResourceUsage  `json:"resource"`
	Extras      map[string]any `json:"extras,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s *LiteSnapshot) Clone() *LiteSnapshot {
	out := *s
	out.Pages = make([]PageStat, len(s.Pages))
	copy(out.Pages, s.Pages)
	if s.Extras != nil {
		out.Extras = make(map[string]any, len(s.Extras))
		for k, v := range s.Extras {
			out.Extras[k] = v
		}
	}
	return &out
}

// defaultBaseline is the static data every refresh starts from. Refresh
// deep-copies it, so callers mutating a served snapshot can never
// corrupt a later refresh.
var defaultBaseline = &LiteSnapshot{
	Pages: []PageStat{
		{Path: "/", AvgLoadMs: 950},
		{Path: "/chronik", AvgLoadMs: 1400},
		{Path: "/galerie", AvgLoadMs: 1700},
	},
}

// Manager caches one snapshot and refreshes it when it exceeds MaxAge.
type Manager struct {
	maxAge         time.Duration
	refreshTimeout time.Duration
	clock          func() time.Time
	baseline       *LiteSnapshot
	enhancer       Enhancer
	logger         *slog.Logger

	group singleflight.Group

	mu             sync.RWMutex
	snapshot       *LiteSnapshot
	computedAt     time.Time
	lastTotalAlloc uint64
}

// Options tunes the manager.
type Options struct {
	// MaxAge is the snapshot time budget; expired snapshots refresh on
	// the next GetSnapshot
	MaxAge time.Duration

	// RefreshTimeout bounds one rebuild, enhancement included
	RefreshTimeout time.Duration

	// Baseline overrides the built-in static data
	Baseline *LiteSnapshot

	// Enhancer is the optional enhancement capability; nil means the
	// deployment was configured without one
	Enhancer Enhancer

	// Clock is injectable for tests; defaults to time.Now
	Clock func() time.Time

	Logger *slog.Logger
}

// NewManager creates a manager. The default MaxAge is one minute.
func NewManager(opts Options) *Manager {
	if opts.MaxAge <= 0 {
		opts.MaxAge = time.Minute
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 5 * time.Second
	}
	if opts.Baseline == nil {
		opts.Baseline = defaultBaseline
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		maxAge:         opts.MaxAge,
		refreshTimeout: opts.RefreshTimeout,
		clock:          opts.Clock,
		baseline:       opts.Baseline.Clone(),
		enhancer:       opts.Enhancer,
		logger:         opts.Logger,
	}
}

// GetSnapshot returns the cached snapshot, refreshing first when none
// exists or the held one aged past MaxAge. Within the budget the same
// reference is returned; the source data was deep-copied at refresh
// time, so sharing the reference is safe for read-only consumers.
func (m *Manager) GetSnapshot(ctx context.Context) (*LiteSnapshot, error) {
	m.mu.RLock()
	snap := m.snapshot
	fresh := snap != nil && m.clock().Sub(m.computedAt) <= m.maxAge
	m.mu.RUnlock()

	if fresh {
		return snap, nil
	}
	return m.Refresh(ctx)
}

// Refresh rebuilds the snapshot: deep-copied static baseline, live
// resource metric, optional enhancement. Concurrent refreshes coalesce
// into one rebuild shared by all waiters. The rebuild runs on a detached
// context bounded by RefreshTimeout, so an abandoning caller cannot
// cancel it out from under other waiters.
func (m *Manager) Refresh(ctx context.Context) (*LiteSnapshot, error) {
	res := <-m.group.DoChan("refresh", func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
		defer cancel()
		return m.refresh(refreshCtx)
	})
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Val.(*LiteSnapshot), nil
}

func (m *Manager) refresh(ctx context.Context) (*LiteSnapshot, error) {
	snap := m.baseline.Clone()

	// The live metric may consult the previous refresh's state: the
	// allocation delta is measured against the last refresh.
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.mu.RLock()
	prevTotal := m.lastTotalAlloc
	m.mu.RUnlock()

	snap.Resource = ResourceUsage{
		HeapAllocBytes: stats.HeapAlloc,
		Goroutines:     runtime.NumGoroutine(),
	}
	if prevTotal > 0 && stats.TotalAlloc >= prevTotal {
		snap.Resource.AllocDeltaBytes = stats.TotalAlloc - prevTotal
	}

	if m.enhancer != nil {
		if err := m.enhancer.Enhance(ctx, snap); err != nil {
			if errors.Is(err, ErrUnavailable) {
				m.logger.Warn("enhancement module unavailable, continuing without it", "error", err)
			} else {
				m.logger.Error("enhancement failed", "error", err)
				return nil, fmt.Errorf("enhancing snapshot: %w", err)
			}
		}
	}

	snap.GeneratedAt = m.clock()

	m.mu.Lock()
	m.snapshot = snap
	m.computedAt = snap.GeneratedAt
	m.lastTotalAlloc = stats.TotalAlloc
	m.mu.Unlock()

	return snap, nil
}
