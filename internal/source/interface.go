// Package source defines the read contract for the upstream data
// collaborators the analytics pipeline consumes.
package source

import (
	"context"

	"github.com/mbeckert/sitepulse/pkg/models"
)

// Source is the interface the snapshot orchestrator reads live data
// through. Implementations must be safe for concurrent use; every call
// is expected to honor the caller's context deadline.
type Source interface {
	// HTTPSummary returns the request-volume summary.
	HTTPSummary(ctx context.Context) (models.HTTPSummary, error)

	// PeakHours returns the peak-usage buckets.
	PeakHours(ctx context.Context) ([]models.PeakHour, error)

	// DeviceOverrides returns operator-maintained device corrections.
	DeviceOverrides(ctx context.Context) ([]models.DeviceOverride, error)

	// PageSamples returns raw per-request load samples.
	PageSamples(ctx context.Context) ([]models.MetricSample, error)

	// SessionSegments returns session-segment retention rows.
	SessionSegments(ctx context.Context) ([]models.SegmentStat, error)

	// TrafficSources returns traffic-source rows.
	TrafficSources(ctx context.Context) ([]models.TrafficSource, error)

	// Close releases backend resources (e.g., DB connections).
	Close() error
}
