// Package models defines the shared data model for the analytics pipeline.
package models

import "strings"

// Scope distinguishes the public site from the member area.
type Scope string

const (
	ScopePublic  Scope = "public"
	ScopeMembers Scope = "members"
)

// ParseScope normalizes a free-text scope value. Unrecognized values
// return an empty scope so the sample still aggregates, just without a
// scope attached.
func ParseScope(raw string) Scope {
	switch {
	case strings.EqualFold(raw, string(ScopePublic)):
		return ScopePublic
	case strings.EqualFold(raw, string(ScopeMembers)):
		return ScopeMembers
	default:
		return ""
	}
}

// MetricSample is one raw load observation for a page, produced per
// query and never persisted as-is.
type MetricSample struct {
	Path       string   `json:"path"`
	Scope      string   `json:"scope,omitempty"`
	LoadTimeMs *float64 `json:"load_time_ms"`
	LCPMs      *float64 `json:"lcp_ms,omitempty"`
	Weight     float64  `json:"weight"`
	DeviceHint string   `json:"device_hint,omitempty"`
}

// AggregatedPage is the weight-merged statistic for one normalized path.
type AggregatedPage struct {
	Path      string  `json:"path"`
	Scope     Scope   `json:"scope,omitempty"`
	AvgLoadMs int     `json:"avg_load_ms"`
	LCPMs     *int    `json:"lcp_ms"`
	Weight    float64 `json:"weight"`
}

// AggregatedDevice is the weight-merged statistic for one device category.
type AggregatedDevice struct {
	Device    string  `json:"device"`
	Sessions  float64 `json:"sessions"`
	AvgLoadMs int     `json:"avg_load_ms"`
	Share     float64 `json:"share"`
}

// AggregateResult bundles page and device statistics derived from one
// batch of samples.
type AggregateResult struct {
	Pages   []AggregatedPage   `json:"pages"`
	Devices []AggregatedDevice `json:"devices"`
}

// Clone returns a deep copy of the result.
func (r AggregateResult) Clone() AggregateResult {
	out := AggregateResult{
		Pages:   make([]AggregatedPage, len(r.Pages)),
		Devices: make([]AggregatedDevice, len(r.Devices)),
	}
	for i, p := range r.Pages {
		if p.LCPMs != nil {
			v := *p.LCPMs
			p.LCPMs = &v
		}
		out.Pages[i] = p
	}
	copy(out.Devices, r.Devices)
	return out
}
