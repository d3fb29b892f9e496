package snapshot

import (
	"time"

	"github.com/mbeckert/sitepulse/pkg/models"
)

// fallbackGeneratedAt marks the baked-in snapshot as clearly historical.
var fallbackGeneratedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// FallbackInsights is the static recommendation list served when the
// rule engine has nothing to work with.
func FallbackInsights() []models.OptimizationInsight {
	return []models.OptimizationInsight{
		{
			ID:          "baseline-image-optimization",
			Area:        "performance",
			Title:       "Serve responsive images",
			Description: "Gallery and chronicle pages ship full-size images. Generate scaled variants and use srcset.",
			Impact:      models.ImpactHigh,
			Metric:      "static recommendation",
		},
		{
			ID:          "baseline-cache-headers",
			Area:        "performance",
			Title:       "Review cache headers on static assets",
			Description: "Long-lived immutable assets should carry far-future cache headers.",
			Impact:      models.ImpactMedium,
			Metric:      "static recommendation",
		},
		{
			ID:          "baseline-error-budget",
			Area:        "reliability",
			Title:       "Watch the recent error issues",
			Description: "Keep the deduplicated error list at zero open critical issues.",
			Impact:      models.ImpactMedium,
			Metric:      "static recommendation",
		},
	}
}

// FallbackSnapshot returns a fresh deep copy of the statically bundled
// snapshot served when neither live data nor a cached snapshot exists.
func FallbackSnapshot() *models.AnalyticsSnapshot {
	lcp := 1800
	return &models.AnalyticsSnapshot{
		Summary: models.HTTPSummary{
			TotalRequests:   12000,
			ErrorRequests:   120,
			SuccessRequests: 11880,
			ErrorRate:       0.01,
			CacheHitRate:    0.8,
			AvgDurationMs:   150,
			P95DurationMs:   520,
			AvgPayloadBytes: 16384,
			Areas: []models.AreaBreakdown{
				{Area: "public", Requests: 10200, AvgDurationMs: 110},
				{Area: "members", Requests: 1800, AvgDurationMs: 340},
			},
		},
		Pages: []models.AggregatedPage{
			{Path: "/", Scope: models.ScopePublic, AvgLoadMs: 950, LCPMs: &lcp, Weight: 50},
			{Path: "/chronik", Scope: models.ScopePublic, AvgLoadMs: 1400, Weight: 30},
			{Path: "/galerie", Scope: models.ScopePublic, AvgLoadMs: 1700, Weight: 20},
		},
		Devices: []models.AggregatedDevice{
			{Device: "mobile", Sessions: 55, AvgLoadMs: 1300, Share: 0.55},
			{Device: "desktop", Sessions: 45, AvgLoadMs: 900, Share: 0.45},
		},
		Insights: FallbackInsights(),
		Logs:     []*models.LogIssue{},
		PeakHours: []models.PeakHour{
			{Hour: 12, Requests: 900},
			{Hour: 19, Requests: 2200},
		},
		Segments: []models.SegmentStat{
			{Segment: "new visitors", Sessions: 600, RetentionRate: 0.2},
			{Segment: "regulars", Sessions: 400, RetentionRate: 0.7},
		},
		Traffic: []models.TrafficSource{
			{Source: "direct", Sessions: 500, Share: 0.5},
			{Source: "search", Sessions: 350, Share: 0.35},
			{Source: "social", Sessions: 150, Share: 0.15},
		},
		GeneratedAt: fallbackGeneratedAt,
	}
}
