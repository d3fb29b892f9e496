// Package memory provides an in-memory data source with seed data, used
// for development and as the test double for the orchestrator.
package memory

import (
	"context"
	"sync"

	"github.com/mbeckert/sitepulse/pkg/models"
)

// Source serves fixed rows from memory. Every getter returns copies, and
// Fail lets tests flip the whole source into an error state.
type Source struct {
	mu        sync.RWMutex
	summary   models.HTTPSummary
	peakHours []models.PeakHour
	overrides []models.DeviceOverride
	samples   []models.MetricSample
	segments  []models.SegmentStat
	traffic   []models.TrafficSource
	err       error
}

// New creates an empty in-memory source.
func New() *Source {
	return &Source{}
}

// NewSeeded creates a source pre-filled with plausible demo rows.
func NewSeeded() *Source {
	load := func(v float64) *float64 { return &v }
	lcp := load

	return &Source{
		summary: models.HTTPSummary{
			TotalRequests:   14250,
			ErrorRequests:   187,
			SuccessRequests: 14063,
			ErrorRate:       0.013,
			CacheHitRate:    0.82,
			AvgDurationMs:   142,
			P95DurationMs:   480,
			AvgPayloadBytes: 18432,
			Areas: []models.AreaBreakdown{
				{Area: "public", Requests: 11830, AvgDurationMs: 96},
				{Area: "members", Requests: 2420, AvgDurationMs: 318},
			},
		},
		peakHours: []models.PeakHour{
			{Hour: 12, Requests: 1180},
			{Hour: 19, Requests: 2640},
			{Hour: 20, Requests: 2410},
		},
		overrides: []models.DeviceOverride{},
		samples: []models.MetricSample{
			{Path: "/", Scope: "public", LoadTimeMs: load(920), LCPMs: lcp(1400), Weight: 48, DeviceHint: "iPhone"},
			{Path: "/chronik", Scope: "public", LoadTimeMs: load(2450), LCPMs: lcp(2900), Weight: 31, DeviceHint: "Android mobile"},
			{Path: "/chronik?page=2", Scope: "public", LoadTimeMs: load(2510), Weight: 9, DeviceHint: "Windows NT"},
			{Path: "/galerie/", Scope: "public", LoadTimeMs: load(1870), LCPMs: lcp(2100), Weight: 22, DeviceHint: "Macintosh"},
			{Path: "/intern/noten", Scope: "members", LoadTimeMs: load(1640), Weight: 12, DeviceHint: "iPad"},
		},
		segments: []models.SegmentStat{
			{Segment: "new visitors", Sessions: 640, RetentionRate: 0.18},
			{Segment: "regulars", Sessions: 410, RetentionRate: 0.74},
		},
		traffic: []models.TrafficSource{
			{Source: "direct", Sessions: 520, Share: 0.49},
			{Source: "search", Sessions: 390, Share: 0.37},
			{Source: "social", Sessions: 140, Share: 0.14},
		},
	}
}

// SetError makes every subsequent call return err. Passing nil restores
// normal operation.
func (s *Source) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SetSamples replaces the raw sample rows.
func (s *Source) SetSamples(samples []models.MetricSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append([]models.MetricSample(nil), samples...)
}

// SetSummary replaces the request-volume summary.
func (s *Source) SetSummary(summary models.HTTPSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary.Clone()
}

// SetSegments replaces the session-segment rows.
func (s *Source) SetSegments(segments []models.SegmentStat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append([]models.SegmentStat(nil), segments...)
}

func (s *Source) HTTPSummary(ctx context.Context) (models.HTTPSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return models.HTTPSummary{}, s.err
	}
	return s.summary.Clone(), nil
}

func (s *Source) PeakHours(ctx context.Context) ([]models.PeakHour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.PeakHour(nil), s.peakHours...), nil
}

func (s *Source) DeviceOverrides(ctx context.Context) ([]models.DeviceOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.DeviceOverride(nil), s.overrides...), nil
}

func (s *Source) PageSamples(ctx context.Context) ([]models.MetricSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.MetricSample(nil), s.samples...), nil
}

func (s *Source) SessionSegments(ctx context.Context) ([]models.SegmentStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.SegmentStat(nil), s.segments...), nil
}

func (s *Source) TrafficSources(ctx context.Context) ([]models.TrafficSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.TrafficSource(nil), s.traffic...), nil
}

// Close is a no-op for the in-memory source.
func (s *Source) Close() error { return nil }
