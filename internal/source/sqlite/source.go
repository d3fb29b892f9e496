// Package sqlite provides a SQLite-backed data source.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/mbeckert/sitepulse/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Source reads analytics rows from a SQLite database maintained by the
// web backend.
type Source struct {
	db *sql.DB
}

// New opens the database, applies pragmas and ensures the read-side
// schema exists.
func New(ctx context.Context, dbPath string) (*Source, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	return &Source{db: db}, nil
}

// HTTPSummary returns the single summary row plus its per-area breakdown.
func (s *Source) HTTPSummary(ctx context.Context) (models.HTTPSummary, error) {
	var summary models.HTTPSummary
	row := s.db.QueryRowContext(ctx, `
		SELECT total_requests, error_requests, success_requests, error_rate,
		       cache_hit_rate, avg_duration_ms, p95_duration_ms, avg_payload_bytes
		FROM request_summary WHERE id = 1`)
	err := row.Scan(
		&summary.TotalRequests,
		&summary.ErrorRequests,
		&summary.SuccessRequests,
		&summary.ErrorRate,
		&summary.CacheHitRate,
		&summary.AvgDurationMs,
		&summary.P95DurationMs,
		&summary.AvgPayloadBytes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return summary, fmt.Errorf("request summary not populated yet")
	}
	if err != nil {
		return summary, fmt.Errorf("querying request summary: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT area, requests, avg_duration_ms FROM request_areas ORDER BY area`)
	if err != nil {
		return summary, fmt.Errorf("querying request areas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var area models.AreaBreakdown
		if err := rows.Scan(&area.Area, &area.Requests, &area.AvgDurationMs); err != nil {
			return summary, fmt.Errorf("scanning request area: %w", err)
		}
		summary.Areas = append(summary.Areas, area)
	}
	return summary, rows.Err()
}

// PeakHours returns the peak-usage buckets ordered by hour.
func (s *Source) PeakHours(ctx context.Context) ([]models.PeakHour, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hour, requests FROM peak_hours ORDER BY hour`)
	if err != nil {
		return nil, fmt.Errorf("querying peak hours: %w", err)
	}
	defer rows.Close()

	var hours []models.PeakHour
	for rows.Next() {
		var h models.PeakHour
		if err := rows.Scan(&h.Hour, &h.Requests); err != nil {
			return nil, fmt.Errorf("scanning peak hour: %w", err)
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

// DeviceOverrides returns operator-maintained device corrections.
func (s *Source) DeviceOverrides(ctx context.Context) ([]models.DeviceOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device, avg_load_ms FROM device_overrides ORDER BY device`)
	if err != nil {
		return nil, fmt.Errorf("querying device overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.DeviceOverride
	for rows.Next() {
		var o models.DeviceOverride
		if err := rows.Scan(&o.Device, &o.AvgLoadMs); err != nil {
			return nil, fmt.Errorf("scanning device override: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// PageSamples returns the raw load samples in insertion order.
func (s *Source) PageSamples(ctx context.Context) ([]models.MetricSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, scope, load_time_ms, lcp_ms, weight, device_hint
		FROM page_samples ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying page samples: %w", err)
	}
	defer rows.Close()

	var samples []models.MetricSample
	for rows.Next() {
		var sample models.MetricSample
		var loadTime, lcp sql.NullFloat64
		if err := rows.Scan(&sample.Path, &sample.Scope, &loadTime, &lcp, &sample.Weight, &sample.DeviceHint); err != nil {
			return nil, fmt.Errorf("scanning page sample: %w", err)
		}
		if loadTime.Valid {
			v := loadTime.Float64
			sample.LoadTimeMs = &v
		}
		if lcp.Valid {
			v := lcp.Float64
			sample.LCPMs = &v
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// SessionSegments returns the session-segment retention rows.
func (s *Source) SessionSegments(ctx context.Context) ([]models.SegmentStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT segment, sessions, retention_rate FROM session_segments ORDER BY segment`)
	if err != nil {
		return nil, fmt.Errorf("querying session segments: %w", err)
	}
	defer rows.Close()

	var segments []models.SegmentStat
	for rows.Next() {
		var seg models.SegmentStat
		if err := rows.Scan(&seg.Segment, &seg.Sessions, &seg.RetentionRate); err != nil {
			return nil, fmt.Errorf("scanning session segment: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// TrafficSources returns the traffic-source rows.
func (s *Source) TrafficSources(ctx context.Context) ([]models.TrafficSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, sessions, share FROM traffic_sources ORDER BY sessions DESC, source`)
	if err != nil {
		return nil, fmt.Errorf("querying traffic sources: %w", err)
	}
	defer rows.Close()

	var sources []models.TrafficSource
	for rows.Next() {
		var src models.TrafficSource
		if err := rows.Scan(&src.Source, &src.Sessions, &src.Share); err != nil {
			return nil, fmt.Errorf("scanning traffic source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// Close closes the underlying database.
func (s *Source) Close() error {
	return s.db.Close()
}
