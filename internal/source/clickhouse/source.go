// Package clickhouse provides a ClickHouse-backed data source for
// high-volume deployments.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/mbeckert/sitepulse/pkg/models"
)

const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	defaultDialTimeout  = 10 * time.Second
	defaultMaxRetries   = 3
	defaultRetryDelay   = 1 * time.Second
)

// Config holds ClickHouse connection parameters.
type Config struct {
	Addr         string
	Database     string
	Username     string
	Password     string
	MaxOpenConns int
	MaxIdleConns int
	DialTimeout  time.Duration
	MaxRetries   int
	TLS          *tls.Config
}

// DefaultConfig returns a connection config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:9000",
		Database:     "default",
		Username:     "default",
		Password:     "",
		MaxOpenConns: defaultMaxOpenConns,
		MaxIdleConns: defaultMaxIdleConns,
		DialTimeout:  defaultDialTimeout,
		MaxRetries:   defaultMaxRetries,
	}
}

// Source reads analytics rows from ClickHouse.
type Source struct {
	conn   driver.Conn
	logger *slog.Logger
}

// New connects to ClickHouse with retry and returns a source.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("connected to ClickHouse", "addr", cfg.Addr, "database", cfg.Database)
	return &Source{conn: conn, logger: logger}, nil
}

// connect establishes a connection with exponential-backoff retry.
func connect(ctx context.Context, cfg Config) (driver.Conn, error) {
	opts := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      cfg.DialTimeout,
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		TLS:              cfg.TLS,
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	var conn driver.Conn
	var err error
	retryDelay := defaultRetryDelay

	for attempt := 1; attempt <= retries; attempt++ {
		conn, err = clickhouse.Open(opts)
		if err == nil {
			if err = conn.Ping(ctx); err == nil {
				return conn, nil
			}
		}

		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
				retryDelay *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to ClickHouse after %d attempts: %w", retries, err)
}

// HTTPSummary aggregates the request log into the request-volume summary.
func (s *Source) HTTPSummary(ctx context.Context) (models.HTTPSummary, error) {
	var summary models.HTTPSummary

	row := s.conn.QueryRow(ctx, `
		SELECT
			toInt64(count())                          AS total,
			toInt64(countIf(status >= 500))           AS errors,
			toInt64(countIf(status < 500))            AS successes,
			countIf(status >= 500) / count()          AS error_rate,
			countIf(cache_hit) / count()              AS cache_hit_rate,
			avg(duration_ms)                          AS avg_duration,
			quantile(0.95)(duration_ms)               AS p95_duration,
			toInt64(avg(payload_bytes))               AS avg_payload
		FROM request_log`)

	var errorRate, cacheHitRate, avgDuration, p95Duration float64
	if err := row.Scan(
		&summary.TotalRequests,
		&summary.ErrorRequests,
		&summary.SuccessRequests,
		&errorRate,
		&cacheHitRate,
		&avgDuration,
		&p95Duration,
		&summary.AvgPayloadBytes,
	); err != nil {
		return summary, fmt.Errorf("querying request summary: %w", err)
	}
	summary.ErrorRate = errorRate
	summary.CacheHitRate = cacheHitRate
	summary.AvgDurationMs = avgDuration
	summary.P95DurationMs = p95Duration

	rows, err := s.conn.Query(ctx, `
		SELECT area, toInt64(count()) AS requests, avg(duration_ms) AS avg_duration
		FROM request_log
		GROUP BY area
		ORDER BY area`)
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

// PeakHours buckets the request log by hour of day.
func (s *Source) PeakHours(ctx context.Context) ([]models.PeakHour, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT toHour(ts) AS hour, count() AS requests
		FROM request_log
		GROUP BY hour
		ORDER BY hour`)
	if err != nil {
		return nil, fmt.Errorf("querying peak hours: %w", err)
	}
	defer rows.Close()

	var hours []models.PeakHour
	for rows.Next() {
		var hour uint8
		var requests uint64
		if err := rows.Scan(&hour, &requests); err != nil {
			return nil, fmt.Errorf("scanning peak hour: %w", err)
		}
		hours = append(hours, models.PeakHour{Hour: int(hour), Requests: int64(requests)})
	}
	return hours, rows.Err()
}

// DeviceOverrides reads operator-maintained corrections.
func (s *Source) DeviceOverrides(ctx context.Context) ([]models.DeviceOverride, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT device, avg_load_ms FROM device_overrides ORDER BY device`)
	if err != nil {
		return nil, fmt.Errorf("querying device overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.DeviceOverride
	for rows.Next() {
		var device string
		var avgLoad int32
		if err := rows.Scan(&device, &avgLoad); err != nil {
			return nil, fmt.Errorf("scanning device override: %w", err)
		}
		overrides = append(overrides, models.DeviceOverride{Device: device, AvgLoadMs: int(avgLoad)})
	}
	return overrides, rows.Err()
}

// PageSamples reads the raw load samples.
func (s *Source) PageSamples(ctx context.Context) ([]models.MetricSample, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT path, scope, load_time_ms, lcp_ms, weight, device_hint
		FROM page_samples
		ORDER BY recorded_at`)
	if err != nil {
		return nil, fmt.Errorf("querying page samples: %w", err)
	}
	defer rows.Close()

	var samples []models.MetricSample
	for rows.Next() {
		var sample models.MetricSample
		var loadTime, lcp *float64
		if err := rows.Scan(&sample.Path, &sample.Scope, &loadTime, &lcp, &sample.Weight, &sample.DeviceHint); err != nil {
			return nil, fmt.Errorf("scanning page sample: %w", err)
		}
		sample.LoadTimeMs = loadTime
		sample.LCPMs = lcp
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// SessionSegments reads session-segment retention rows.
func (s *Source) SessionSegments(ctx context.Context) ([]models.SegmentStat, error) {
	rows, err := s.conn.Query(ctx, `
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

// TrafficSources reads traffic-source rows.
func (s *Source) TrafficSources(ctx context.Context) ([]models.TrafficSource, error) {
	rows, err := s.conn.Query(ctx, `
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

// Close closes the ClickHouse connection.
func (s *Source) Close() error {
	return s.conn.Close()
}
