package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func setupTestSource(t *testing.T) *Source {
	t.Helper()

	src, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

func TestHTTPSummaryRoundTrip(t *testing.T) {
	src := setupTestSource(t)
	ctx := context.Background()

	if _, err := src.db.ExecContext(ctx, `
		INSERT INTO request_summary (id, total_requests, error_requests, success_requests,
			error_rate, cache_hit_rate, avg_duration_ms, p95_duration_ms, avg_payload_bytes)
		VALUES (1, 1000, 20, 980, 0.02, 0.8, 150, 600, 2048)`); err != nil {
		t.Fatalf("seeding summary: %v", err)
	}
	if _, err := src.db.ExecContext(ctx, `
		INSERT INTO request_areas (area, requests, avg_duration_ms)
		VALUES ('members', 200, 450), ('public', 800, 80)`); err != nil {
		t.Fatalf("seeding areas: %v", err)
	}

	summary, err := src.HTTPSummary(ctx)
	if err != nil {
		t.Fatalf("HTTPSummary: %v", err)
	}
	if summary.TotalRequests != 1000 || summary.ErrorRate != 0.02 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Areas) != 2 || summary.Areas[0].Area != "members" {
		t.Errorf("areas = %+v, want members first (alphabetical)", summary.Areas)
	}
}

func TestHTTPSummaryEmpty(t *testing.T) {
	src := setupTestSource(t)

	if _, err := src.HTTPSummary(context.Background()); err == nil {
		t.Error("expected error when summary row is absent")
	}
}

func TestPageSamplesNullHandling(t *testing.T) {
	src := setupTestSource(t)
	ctx := context.Background()

	if _, err := src.db.ExecContext(ctx, `
		INSERT INTO page_samples (path, scope, load_time_ms, lcp_ms, weight, device_hint)
		VALUES ('/chronik', 'public', 1500, NULL, 2, 'iPhone'),
		       ('/galerie', 'public', NULL, 900, 1, '')`); err != nil {
		t.Fatalf("seeding samples: %v", err)
	}

	samples, err := src.PageSamples(ctx)
	if err != nil {
		t.Fatalf("PageSamples: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[0].LoadTimeMs == nil || *samples[0].LoadTimeMs != 1500 {
		t.Errorf("first sample load time = %v", samples[0].LoadTimeMs)
	}
	if samples[0].LCPMs != nil {
		t.Error("NULL lcp_ms should map to nil")
	}
	if samples[1].LoadTimeMs != nil {
		t.Error("NULL load_time_ms should map to nil")
	}
}

func TestSegmentAndTrafficRows(t *testing.T) {
	src := setupTestSource(t)
	ctx := context.Background()

	if _, err := src.db.ExecContext(ctx, `
		INSERT INTO session_segments (segment, sessions, retention_rate)
		VALUES ('new visitors', 100, 0.15)`); err != nil {
		t.Fatalf("seeding segments: %v", err)
	}
	if _, err := src.db.ExecContext(ctx, `
		INSERT INTO traffic_sources (source, sessions, share)
		VALUES ('search', 60, 0.6), ('direct', 40, 0.4)`); err != nil {
		t.Fatalf("seeding traffic: %v", err)
	}

	segments, err := src.SessionSegments(ctx)
	if err != nil {
		t.Fatalf("SessionSegments: %v", err)
	}
	if len(segments) != 1 || segments[0].RetentionRate != 0.15 {
		t.Errorf("segments = %+v", segments)
	}

	traffic, err := src.TrafficSources(ctx)
	if err != nil {
		t.Fatalf("TrafficSources: %v", err)
	}
	if len(traffic) != 2 || traffic[0].Source != "search" {
		t.Errorf("traffic = %+v, want search first (by sessions)", traffic)
	}
}
