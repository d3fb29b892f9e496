package models

import "time"

// SnapshotSource tells the caller which fallback tier produced a snapshot.
type SnapshotSource string

const (
	SourceLive     SnapshotSource = "live"
	SourceCached   SnapshotSource = "cached"
	SourceFallback SnapshotSource = "fallback"
)

// SnapshotMeta carries trust metadata for a served snapshot. Attempts
// equals the number of fallback tiers actually tried.
type SnapshotMeta struct {
	Source          SnapshotSource `json:"source"`
	Attempts        int            `json:"attempts"`
	StaleSince      *time.Time     `json:"stale_since,omitempty"`
	FallbackReasons []string       `json:"fallback_reasons,omitempty"`
}

// AreaBreakdown is the per-area slice of the request-volume summary.
type AreaBreakdown struct {
	Area          string  `json:"area"`
	Requests      int64   `json:"requests"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// HTTPSummary is the request-volume summary sourced from the storage
// collaborator.
type HTTPSummary struct {
	TotalRequests   int64           `json:"total_requests"`
	ErrorRequests   int64           `json:"error_requests"`
	SuccessRequests int64           `json:"success_requests"`
	ErrorRate       float64         `json:"error_rate"`
	CacheHitRate    float64         `json:"cache_hit_rate"`
	AvgDurationMs   float64         `json:"avg_duration_ms"`
	P95DurationMs   float64         `json:"p95_duration_ms"`
	AvgPayloadBytes int64           `json:"avg_payload_bytes"`
	Areas           []AreaBreakdown `json:"areas,omitempty"`
}

// Clone returns a deep copy of the summary.
func (s HTTPSummary) Clone() HTTPSummary {
	out := s
	out.Areas = make([]AreaBreakdown, len(s.Areas))
	copy(out.Areas, s.Areas)
	return out
}

// PeakHour is one bucket of the peak-usage histogram.
type PeakHour struct {
	Hour     int   `json:"hour"`
	Requests int64 `json:"requests"`
}

// DeviceOverride is an operator-maintained correction applied on top of
// aggregated device statistics.
type DeviceOverride struct {
	Device    string `json:"device"`
	AvgLoadMs int    `json:"avg_load_ms"`
}

// SegmentStat describes retention for one session segment.
type SegmentStat struct {
	Segment       string  `json:"segment"`
	Sessions      int64   `json:"sessions"`
	RetentionRate float64 `json:"retention_rate"`
}

// TrafficSource describes where sessions came from.
type TrafficSource struct {
	Source   string  `json:"source"`
	Sessions int64   `json:"sessions"`
	Share    float64 `json:"share"`
}

// AnalyticsSnapshot is the full dashboard payload. Once returned to a
// caller it is never mutated by the pipeline; internal state is deep-
// copied before handoff.
type AnalyticsSnapshot struct {
	Summary     HTTPSummary           `json:"summary"`
	Pages       []AggregatedPage      `json:"pages"`
	Devices     []AggregatedDevice    `json:"devices"`
	Insights    []OptimizationInsight `json:"insights"`
	Logs        []*LogIssue           `json:"logs"`
	PeakHours   []PeakHour            `json:"peak_hours,omitempty"`
	Segments    []SegmentStat         `json:"segments,omitempty"`
	Traffic     []TrafficSource       `json:"traffic,omitempty"`
	GeneratedAt time.Time             `json:"generated_at"`
	Meta        SnapshotMeta          `json:"meta"`
}

// Clone returns a deep copy of the snapshot, including nested issue
// records and metadata.
func (s *AnalyticsSnapshot) Clone() *AnalyticsSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Summary = s.Summary.Clone()

	out.Pages = make([]AggregatedPage, len(s.Pages))
	for i, p := range s.Pages {
		if p.LCPMs != nil {
			v := *p.LCPMs
			p.LCPMs = &v
		}
		out.Pages[i] = p
	}

	out.Devices = make([]AggregatedDevice, len(s.Devices))
	copy(out.Devices, s.Devices)

	out.Insights = CloneInsights(s.Insights)

	out.Logs = make([]*LogIssue, len(s.Logs))
	for i, issue := range s.Logs {
		out.Logs[i] = issue.Clone()
	}

	out.PeakHours = make([]PeakHour, len(s.PeakHours))
	copy(out.PeakHours, s.PeakHours)

	out.Segments = make([]SegmentStat, len(s.Segments))
	copy(out.Segments, s.Segments)

	out.Traffic = make([]TrafficSource, len(s.Traffic))
	copy(out.Traffic, s.Traffic)

	if s.Meta.StaleSince != nil {
		v := *s.Meta.StaleSince
		out.Meta.StaleSince = &v
	}
	out.Meta.FallbackReasons = make([]string, len(s.Meta.FallbackReasons))
	copy(out.Meta.FallbackReasons, s.Meta.FallbackReasons)

	return &out
}
