package logstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mbeckert/sitepulse/pkg/models"
)

func TestRecordDeduplicates(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := store.Record(ctx, &models.LogEvent{
		Severity:  "error",
		Service:   "gallery",
		Message:   "upload failed",
		Tags:      []string{"s3"},
		Timestamp: now,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	second, err := store.Record(ctx, &models.LogEvent{
		Severity:    "error",
		Service:     "gallery",
		Message:     "upload failed",
		Tags:        []string{"s3", "timeout"},
		Occurrences: 2,
		Timestamp:   now.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("store has %d issues, want 1", store.Len())
	}
	if second.Fingerprint != first.Fingerprint {
		t.Error("repeat event produced a different fingerprint")
	}
	if second.Occurrences != 3 {
		t.Errorf("occurrences = %d, want 3", second.Occurrences)
	}
	if len(second.Tags) != 2 {
		t.Errorf("tags = %v, want union", second.TagList())
	}
	if !second.FirstSeen.Equal(now) {
		t.Errorf("firstSeen = %v, want original timestamp", second.FirstSeen)
	}
}

func TestRecordConcurrentSameFingerprint(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Record(ctx, &models.LogEvent{
				Severity:  "error",
				Service:   "api",
				Message:   "db unreachable",
				Timestamp: now,
			})
			if err != nil {
				t.Errorf("Record: %v", err)
			}
		}()
	}
	wg.Wait()

	issue, err := store.Get(ctx, models.EventFingerprint("error", "api", "db unreachable"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if issue.Occurrences != workers {
		t.Errorf("occurrences = %d, want %d (no lost increments)", issue.Occurrences, workers)
	}
}

func TestListRecentOrderingAndWindow(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	record := func(msg string, occurrences int64, ts time.Time) {
		t.Helper()
		_, err := store.Record(ctx, &models.LogEvent{
			Severity:    "error",
			Service:     "api",
			Message:     msg,
			Occurrences: occurrences,
			Timestamp:   ts,
		})
		if err != nil {
			t.Fatalf("Record(%s): %v", msg, err)
		}
	}

	record("stale", 9, now.Add(-2*time.Hour))
	record("older", 1, now.Add(-10*time.Minute))
	record("tie-low", 1, now.Add(-time.Minute))
	record("tie-high", 5, now.Add(-time.Minute))
	record("newest", 1, now)

	issues := store.ListRecent(ctx, 10, time.Hour)
	got := []string{}
	for _, issue := range issues {
		got = append(got, issue.Message)
	}
	want := []string{"newest", "tie-high", "tie-low", "older"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}

	limited := store.ListRecent(ctx, 2, time.Hour)
	if len(limited) != 2 || limited[0].Message != "newest" {
		t.Errorf("limit not applied: %v", limited)
	}
}

func TestListCriticalSinceFiltersSeverity(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	record := func(severity, msg string, ts time.Time) {
		t.Helper()
		_, err := store.Record(ctx, &models.LogEvent{
			Severity:  severity,
			Service:   "api",
			Message:   msg,
			Timestamp: ts,
		})
		if err != nil {
			t.Fatalf("Record(%s): %v", msg, err)
		}
	}

	record("ERROR", "write failed", now)
	record("critical", "disk full", now.Add(-time.Minute))
	record("Fatal", "panic in handler", now.Add(-2*time.Minute))
	record("info", "request served", now)
	record("warn", "cache miss spike", now)
	record("error", "too old", now.Add(-2*time.Hour))

	issues := store.ListCriticalSince(ctx, 10, now.Add(-time.Hour))
	if len(issues) != 3 {
		t.Fatalf("got %d issues, want 3 error-class within window", len(issues))
	}
	want := []string{"write failed", "disk full", "panic in handler"}
	for i := range want {
		if issues[i].Message != want[i] {
			t.Fatalf("order = %v, want %v", issues, want)
		}
	}

	// Limit applies after filtering, not before.
	limited := store.ListCriticalSince(ctx, 2, now.Add(-time.Hour))
	if len(limited) != 2 || limited[0].Message != "write failed" || limited[1].Message != "disk full" {
		t.Errorf("limited = %v, want the two most recent critical issues", limited)
	}
}

func TestSetStatusUnrestrictedTransitions(t *testing.T) {
	store := New()
	ctx := context.Background()

	issue, err := store.Record(ctx, &models.LogEvent{
		Severity:  "error",
		Service:   "api",
		Message:   "boom",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	for _, status := range []models.IssueStatus{
		models.StatusResolved,
		models.StatusOpen, // reopening a resolved issue is allowed
		models.StatusMonitoring,
	} {
		if err := store.SetStatus(ctx, issue.Fingerprint, status); err != nil {
			t.Fatalf("SetStatus(%s): %v", status, err)
		}
		got, err := store.Get(ctx, issue.Fingerprint)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != status {
			t.Errorf("status = %q, want %q", got.Status, status)
		}
	}

	if err := store.SetStatus(ctx, "missing", models.StatusOpen); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(missing) = %v, want ErrNotFound", err)
	}
	if err := store.SetStatus(ctx, issue.Fingerprint, "bogus"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("SetStatus(bogus) = %v, want ErrInvalidStatus", err)
	}
}

func TestRecordReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	issue, err := store.Record(ctx, &models.LogEvent{
		Severity:  "error",
		Service:   "api",
		Message:   "boom",
		Tags:      []string{"a"},
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	issue.Tags["mutated"] = struct{}{}
	issue.Severity = "mutated"

	stored, err := store.Get(ctx, issue.Fingerprint)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := stored.Tags["mutated"]; ok {
		t.Error("caller mutation leaked into store")
	}
	if stored.Severity != "error" {
		t.Error("caller mutation of severity leaked into store")
	}
}
