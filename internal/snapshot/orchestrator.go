// Package snapshot assembles full analytics snapshots with a three-tier
// fallback chain: live collection, last-known-good cache, static data.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mbeckert/sitepulse/internal/aggregator"
	"github.com/mbeckert/sitepulse/internal/insights"
	"github.com/mbeckert/sitepulse/internal/logstore"
	"github.com/mbeckert/sitepulse/internal/source"
	"github.com/mbeckert/sitepulse/pkg/models"
)

const (
	defaultCollectTimeout = 5 * time.Second
	defaultLogWindow      = 24 * time.Hour
	defaultLogLimit       = 20
)

// Options tunes the orchestrator.
type Options struct {
	// CollectTimeout bounds one live collection attempt
	CollectTimeout time.Duration

	// LogWindow and LogLimit shape the recent-issues slice of a snapshot
	LogWindow time.Duration
	LogLimit  int

	// Clock is injectable for tests; defaults to time.Now
	Clock func() time.Time

	Logger *slog.Logger
}

// Orchestrator owns the last-known-good cache entry and the static
// fallback. Concurrent collections coalesce into one in-flight attempt.
type Orchestrator struct {
	source  source.Source
	logs    *logstore.Store
	engine  *insights.Engine
	logger  *slog.Logger
	timeout time.Duration
	window  time.Duration
	limit   int
	clock   func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	lastGood *models.AnalyticsSnapshot
}

// New creates an orchestrator over the given collaborators.
func New(src source.Source, logs *logstore.Store, engine *insights.Engine, opts Options) *Orchestrator {
	if opts.CollectTimeout <= 0 {
		opts.CollectTimeout = defaultCollectTimeout
	}
	if opts.LogWindow <= 0 {
		opts.LogWindow = defaultLogWindow
	}
	if opts.LogLimit <= 0 {
		opts.LogLimit = defaultLogLimit
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		source:  src,
		logs:    logs,
		engine:  engine,
		logger:  opts.Logger,
		timeout: opts.CollectTimeout,
		window:  opts.LogWindow,
		limit:   opts.LogLimit,
		clock:   opts.Clock,
	}
}

// Collect returns a well-formed snapshot, never an error. Concurrent
// callers share a single collection attempt; each receives its own deep
// copy. The shared attempt runs on a detached context bounded by
// CollectTimeout, so an abandoning caller cannot cancel it out from
// under other waiters and the wait itself stays bounded.
func (o *Orchestrator) Collect(ctx context.Context) *models.AnalyticsSnapshot {
	res := <-o.group.DoChan("snapshot", func() (interface{}, error) {
		return o.collect(), nil
	})
	return res.Val.(*models.AnalyticsSnapshot).Clone()
}

// collect walks the fallback chain. attempts counts tiers actually tried.
func (o *Orchestrator) collect() *models.AnalyticsSnapshot {
	attempts := 1
	live, err := o.collectLive()
	if err == nil {
		live.Meta = models.SnapshotMeta{Source: models.SourceLive, Attempts: attempts}

		o.mu.Lock()
		o.lastGood = live.Clone()
		o.mu.Unlock()
		return live
	}

	reason := fmt.Sprintf("live collection failed: %v", err)
	o.logger.Warn("falling back from live snapshot", "error", err)

	attempts++
	o.mu.RLock()
	cached := o.lastGood
	o.mu.RUnlock()
	if cached != nil {
		snap := cached.Clone()
		stale := snap.GeneratedAt
		snap.Meta = models.SnapshotMeta{
			Source:          models.SourceCached,
			Attempts:        attempts,
			StaleSince:      &stale,
			FallbackReasons: []string{reason},
		}
		return snap
	}

	attempts++
	o.logger.Warn("no cached snapshot, serving static fallback")
	snap := FallbackSnapshot()
	snap.Meta = models.SnapshotMeta{
		Source:          models.SourceFallback,
		Attempts:        attempts,
		FallbackReasons: []string{reason, "no cached snapshot available"},
	}
	return snap
}

// collectLive fans out the collaborator calls, then runs aggregation and
// the rule engine. It runs on its own context so an abandoned caller
// cannot cancel a flight other waiters share.
func (o *Orchestrator) collectLive() (*models.AnalyticsSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	var (
		summary   models.HTTPSummary
		peakHours []models.PeakHour
		overrides []models.DeviceOverride
		samples   []models.MetricSample
		segments  []models.SegmentStat
		traffic   []models.TrafficSource
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary, err = o.source.HTTPSummary(ctx)
		return err
	})
	g.Go(func() (err error) {
		peakHours, err = o.source.PeakHours(ctx)
		return err
	})
	g.Go(func() (err error) {
		overrides, err = o.source.DeviceOverrides(ctx)
		return err
	})
	g.Go(func() (err error) {
		samples, err = o.source.PageSamples(ctx)
		return err
	})
	g.Go(func() (err error) {
		segments, err = o.source.SessionSegments(ctx)
		return err
	})
	g.Go(func() (err error) {
		traffic, err = o.source.TrafficSources(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := o.clock()

	agg := aggregator.Aggregate(samples)
	applyDeviceOverrides(agg.Devices, overrides)

	derived := o.engine.Derive(insights.Inputs{
		Pages:    agg.Pages,
		Devices:  agg.Devices,
		Segments: segments,
		Summary:  summary,
	}, FallbackInsights())

	recent := o.logs.ListCriticalSince(ctx, o.limit, now.Add(-o.window))

	return &models.AnalyticsSnapshot{
		Summary:     summary,
		Pages:       agg.Pages,
		Devices:     agg.Devices,
		Insights:    derived,
		Logs:        recent,
		PeakHours:   peakHours,
		Segments:    segments,
		Traffic:     traffic,
		GeneratedAt: now,
	}, nil
}

// applyDeviceOverrides replaces measured load averages with operator
// corrections where present.
func applyDeviceOverrides(devices []models.AggregatedDevice, overrides []models.DeviceOverride) {
	if len(overrides) == 0 {
		return
	}
	byDevice := make(map[string]int, len(overrides))
	for _, o := range overrides {
		byDevice[o.Device] = o.AvgLoadMs
	}
	for i := range devices {
		if avg, ok := byDevice[devices[i].Device]; ok {
			devices[i].AvgLoadMs = avg
		}
	}
}
