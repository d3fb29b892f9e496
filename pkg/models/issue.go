package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// IssueStatus is the operator-facing lifecycle state of a log issue.
type IssueStatus string

const (
	StatusOpen       IssueStatus = "open"
	StatusMonitoring IssueStatus = "monitoring"
	StatusResolved   IssueStatus = "resolved"
)

// ValidStatus reports whether s is one of the known issue states.
func ValidStatus(s IssueStatus) bool {
	switch s {
	case StatusOpen, StatusMonitoring, StatusResolved:
		return true
	}
	return false
}

// LogEvent is one structured error/log observation reported by a service.
type LogEvent struct {
	Severity          string         `json:"severity"`
	Service           string         `json:"service"`
	Message           string         `json:"message"`
	Description       string         `json:"description,omitempty"`
	Tags              []string       `json:"tags,omitempty"`
	Status            IssueStatus    `json:"status,omitempty"`
	Occurrences       int64          `json:"occurrences,omitempty"`
	AffectedUsers     *int64         `json:"affected_users,omitempty"`
	RecommendedAction *string        `json:"recommended_action,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

// LogIssue is the deduplicated, counted form of repeated log events
// sharing one fingerprint.
type LogIssue struct {
	Fingerprint       string              `json:"fingerprint"`
	Severity          string              `json:"severity"`
	Service           string              `json:"service"`
	Message           string              `json:"message"`
	Description       string              `json:"description,omitempty"`
	Tags              map[string]struct{} `json:"-"`
	Status            IssueStatus         `json:"status"`
	Occurrences       int64               `json:"occurrences"`
	AffectedUsers     *int64              `json:"affected_users,omitempty"`
	RecommendedAction *string             `json:"recommended_action,omitempty"`
	Metadata          map[string]any      `json:"metadata,omitempty"`
	FirstSeen         time.Time           `json:"first_seen"`
	LastSeen          time.Time           `json:"last_seen"`
}

// EventFingerprint creates a stable key for grouping repeated
// occurrences of the same underlying issue. Severity and service are
// folded case-insensitively; the message contributes verbatim.
func EventFingerprint(severity, service, message string) string {
	var builder strings.Builder
	builder.WriteString(strings.ToLower(strings.TrimSpace(severity)))
	builder.WriteString("|")
	builder.WriteString(strings.ToLower(strings.TrimSpace(service)))
	builder.WriteString("|")
	builder.WriteString(strings.TrimSpace(message))

	hash := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(hash[:])
}

// NewLogIssue creates an issue from the first occurrence of a fingerprint.
func NewLogIssue(ev *LogEvent) *LogIssue {
	occ := ev.Occurrences
	if occ <= 0 {
		occ = 1
	}
	status := ev.Status
	if status == "" {
		status = StatusOpen
	}
	issue := &LogIssue{
		Fingerprint:       EventFingerprint(ev.Severity, ev.Service, ev.Message),
		Severity:          ev.Severity,
		Service:           ev.Service,
		Message:           ev.Message,
		Description:       ev.Description,
		Tags:              make(map[string]struct{}, len(ev.Tags)),
		Status:            status,
		Occurrences:       occ,
		AffectedUsers:     copyInt64(ev.AffectedUsers),
		RecommendedAction: copyString(ev.RecommendedAction),
		Metadata:          copyMetadata(ev.Metadata),
		FirstSeen:         ev.Timestamp,
		LastSeen:          ev.Timestamp,
	}
	for _, tag := range ev.Tags {
		issue.Tags[tag] = struct{}{}
	}
	return issue
}

// MergeEvent folds a repeat occurrence into the issue. Most recent
// observation wins for severity, description and status; occurrences
// accumulate; tags union; nullable fields are overwritten only when the
// event supplies a value; metadata is shallow-merged with incoming keys
// winning. LastSeen is clamped so it never moves backwards.
func (i *LogIssue) MergeEvent(ev *LogEvent) {
	i.Severity = ev.Severity
	if ev.Description != "" {
		i.Description = ev.Description
	}
	if ev.Status != "" {
		i.Status = ev.Status
	}

	occ := ev.Occurrences
	if occ <= 0 {
		occ = 1
	}
	i.Occurrences += occ

	for _, tag := range ev.Tags {
		if i.Tags == nil {
			i.Tags = make(map[string]struct{})
		}
		i.Tags[tag] = struct{}{}
	}

	if ev.AffectedUsers != nil {
		i.AffectedUsers = copyInt64(ev.AffectedUsers)
	}
	if ev.RecommendedAction != nil {
		i.RecommendedAction = copyString(ev.RecommendedAction)
	}

	if len(ev.Metadata) > 0 {
		if i.Metadata == nil {
			i.Metadata = make(map[string]any, len(ev.Metadata))
		}
		for k, v := range ev.Metadata {
			i.Metadata[k] = v
		}
	}

	if ev.Timestamp.After(i.LastSeen) {
		i.LastSeen = ev.Timestamp
	}
}

// TagList returns the issue's tags sorted for stable JSON output.
func (i *LogIssue) TagList() []string {
	tags := make([]string, 0, len(i.Tags))
	for tag := range i.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// MarshalJSON renders the tag set as a sorted array.
func (i *LogIssue) MarshalJSON() ([]byte, error) {
	type alias LogIssue
	return json.Marshal(struct {
		*alias
		Tags []string `json:"tags"`
	}{
		alias: (*alias)(i),
		Tags:  i.TagList(),
	})
}

// Clone returns a deep copy of the issue.
func (i *LogIssue) Clone() *LogIssue {
	out := *i
	out.Tags = make(map[string]struct{}, len(i.Tags))
	for tag := range i.Tags {
		out.Tags[tag] = struct{}{}
	}
	out.AffectedUsers = copyInt64(i.AffectedUsers)
	out.RecommendedAction = copyString(i.RecommendedAction)
	out.Metadata = copyMetadata(i.Metadata)
	return &out
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
