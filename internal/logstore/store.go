// Package logstore folds repeated error/log events into counted,
// fingerprinted issues.
package logstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mbeckert/sitepulse/pkg/models"
)

var (
	// ErrNotFound is returned when a requested issue is not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidStatus is returned for an unknown issue status
	ErrInvalidStatus = errors.New("invalid status")
)

// entry pairs an issue with its own lock so events for distinct
// fingerprints merge fully in parallel.
type entry struct {
	mu    sync.Mutex
	issue *models.LogIssue
}

// Store is an in-memory issue store keyed by event fingerprint.
// Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	issues map[string]*entry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		issues: make(map[string]*entry),
	}
}

// Record folds one event into the store. The first occurrence of a
// fingerprint creates an issue; repeats merge into the existing record.
// Returns a copy of the issue after the merge.
func (s *Store) Record(ctx context.Context, ev *models.LogEvent) (*models.LogIssue, error) {
	if ev == nil {
		return nil, errors.New("event cannot be nil")
	}
	if ev.Message == "" {
		return nil, errors.New("event message cannot be empty")
	}
	if ev.Status != "" && !models.ValidStatus(ev.Status) {
		return nil, fmt.Errorf("status %q: %w", ev.Status, ErrInvalidStatus)
	}

	fingerprint := models.EventFingerprint(ev.Severity, ev.Service, ev.Message)

	s.mu.Lock()
	e, exists := s.issues[fingerprint]
	if !exists {
		e = &entry{}
		s.issues[fingerprint] = e
	}
	s.mu.Unlock()

	// Read-merge-write under the per-fingerprint lock. Two services
	// reporting the same fault concurrently serialize here; unrelated
	// fingerprints don't contend.
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.issue == nil {
		e.issue = models.NewLogIssue(ev)
	} else {
		e.issue.MergeEvent(ev)
	}
	return e.issue.Clone(), nil
}

// ListRecent returns up to limit issues whose lastSeen falls within the
// trailing window, ordered by lastSeen descending, ties broken by
// occurrences descending. Returned issues are copies.
func (s *Store) ListRecent(ctx context.Context, limit int, window time.Duration) []*models.LogIssue {
	cutoff := time.Now().Add(-window)
	return s.listSince(cutoff, limit)
}

// ListSince is ListRecent with an explicit cutoff, for callers that
// carry their own clock.
func (s *Store) ListSince(ctx context.Context, limit int, cutoff time.Time) []*models.LogIssue {
	return s.listSince(cutoff, limit)
}

// ListCriticalSince is ListSince restricted to error-class severities
// (error, critical, fatal). The limit applies after filtering.
func (s *Store) ListCriticalSince(ctx context.Context, limit int, cutoff time.Time) []*models.LogIssue {
	issues := s.listSince(cutoff, 0)
	critical := issues[:0]
	for _, issue := range issues {
		if isCriticalSeverity(issue.Severity) {
			critical = append(critical, issue)
		}
	}
	if limit > 0 && len(critical) > limit {
		critical = critical[:limit]
	}
	return critical
}

func isCriticalSeverity(severity string) bool {
	switch strings.ToLower(severity) {
	case "error", "critical", "fatal":
		return true
	}
	return false
}

func (s *Store) listSince(cutoff time.Time, limit int) []*models.LogIssue {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.issues))
	for _, e := range s.issues {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	issues := make([]*models.LogIssue, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.issue != nil && !e.issue.LastSeen.Before(cutoff) {
			issues = append(issues, e.issue.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(issues, func(i, j int) bool {
		if !issues[i].LastSeen.Equal(issues[j].LastSeen) {
			return issues[i].LastSeen.After(issues[j].LastSeen)
		}
		return issues[i].Occurrences > issues[j].Occurrences
	})

	if limit > 0 && len(issues) > limit {
		issues = issues[:limit]
	}
	return issues
}

// SetStatus moves an issue to the given status. Any state may move to
// any other, so operators can reopen a resolved issue.
func (s *Store) SetStatus(ctx context.Context, id string, status models.IssueStatus) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("status %q: %w", status, ErrInvalidStatus)
	}

	s.mu.RLock()
	e, exists := s.issues[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.issue == nil {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	e.issue.Status = status
	return nil
}

// Get retrieves one issue by fingerprint. The result is a copy.
func (s *Store) Get(ctx context.Context, id string) (*models.LogIssue, error) {
	s.mu.RLock()
	e, exists := s.issues[id]
	s.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.issue == nil {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	return e.issue.Clone(), nil
}

// Len reports the number of distinct issues.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issues)
}

// Clear removes all stored issues.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues = make(map[string]*entry)
	return nil
}
