package aggregator

import (
	"math"
	"testing"

	"github.com/mbeckert/sitepulse/pkg/models"
)

func f(v float64) *float64 { return &v }

func TestAggregateEmpty(t *testing.T) {
	result := Aggregate(nil)
	if len(result.Pages) != 0 || len(result.Devices) != 0 {
		t.Errorf("Aggregate(nil) = %+v, want empty result", result)
	}
}

func TestAggregateMergesNormalizedPaths(t *testing.T) {
	samples := []models.MetricSample{
		{Path: "/chronik?utm=1", Scope: "Public", LoadTimeMs: f(1500), Weight: 1},
		{Path: "/chronik", Scope: "public", LoadTimeMs: f(1200), LCPMs: f(900), Weight: 2},
	}

	result := Aggregate(samples)
	if len(result.Pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(result.Pages))
	}

	page := result.Pages[0]
	if page.Path != "/chronik" {
		t.Errorf("path = %q, want /chronik", page.Path)
	}
	if page.Scope != models.ScopePublic {
		t.Errorf("scope = %q, want public", page.Scope)
	}
	if page.AvgLoadMs != 1300 {
		t.Errorf("avgLoadMs = %d, want 1300", page.AvgLoadMs)
	}
	if page.LCPMs == nil || *page.LCPMs != 900 {
		t.Errorf("lcpMs = %v, want 900", page.LCPMs)
	}
	if page.Weight != 3 {
		t.Errorf("weight = %v, want 3", page.Weight)
	}
}

func TestAggregateDiscardsMalformedSamples(t *testing.T) {
	samples := []models.MetricSample{
		{Path: "/a", LoadTimeMs: nil, Weight: 5, DeviceHint: "iPhone"},
		{Path: "/b", LoadTimeMs: f(100), Weight: 0, DeviceHint: "iPhone"},
		{Path: "/c", LoadTimeMs: f(100), Weight: -2, DeviceHint: "iPhone"},
	}

	result := Aggregate(samples)
	if len(result.Pages) != 0 {
		t.Errorf("malformed samples created pages: %+v", result.Pages)
	}
	if len(result.Devices) != 0 {
		t.Errorf("malformed samples created devices: %+v", result.Devices)
	}
}

func TestAggregateScopeFirstRecognizedWins(t *testing.T) {
	samples := []models.MetricSample{
		{Path: "/intern", Scope: "backstage", LoadTimeMs: f(100), Weight: 1},
		{Path: "/intern", Scope: "MEMBERS", LoadTimeMs: f(100), Weight: 1},
		{Path: "/intern", Scope: "public", LoadTimeMs: f(100), Weight: 1},
	}

	result := Aggregate(samples)
	if len(result.Pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(result.Pages))
	}
	if result.Pages[0].Scope != models.ScopeMembers {
		t.Errorf("scope = %q, want first recognized scope (members)", result.Pages[0].Scope)
	}
}

func TestAggregatePagesSortedByWeight(t *testing.T) {
	samples := []models.MetricSample{
		{Path: "/low", LoadTimeMs: f(100), Weight: 1},
		{Path: "/high", LoadTimeMs: f(100), Weight: 10},
		{Path: "/b-tie", LoadTimeMs: f(100), Weight: 5},
		{Path: "/a-tie", LoadTimeMs: f(100), Weight: 5},
	}

	result := Aggregate(samples)
	got := []string{}
	for _, p := range result.Pages {
		got = append(got, p.Path)
	}
	want := []string{"/high", "/a-tie", "/b-tie", "/low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("page order = %v, want %v", got, want)
		}
	}
}

func TestAggregateDeviceShareSumsToOne(t *testing.T) {
	samples := []models.MetricSample{
		{Path: "/", LoadTimeMs: f(1000), Weight: 3, DeviceHint: "Mozilla/5.0 (iPhone; CPU iPhone OS)"},
		{Path: "/", LoadTimeMs: f(800), Weight: 2, DeviceHint: "Android mobile"},
		{Path: "/", LoadTimeMs: f(600), Weight: 4, DeviceHint: "Macintosh Intel"},
		{Path: "/", LoadTimeMs: f(700), Weight: 1, DeviceHint: "iPad"},
		{Path: "/", LoadTimeMs: f(500), Weight: 2}, // no hint, page-only
	}

	result := Aggregate(samples)

	var shareSum float64
	bySessions := map[string]float64{}
	for _, d := range result.Devices {
		shareSum += d.Share
		bySessions[d.Device] = d.Sessions
	}
	if math.Abs(shareSum-1) > 1e-9 {
		t.Errorf("share sum = %v, want 1", shareSum)
	}
	if bySessions["mobile"] != 5 {
		t.Errorf("mobile sessions = %v, want 5", bySessions["mobile"])
	}
	if bySessions["desktop"] != 4 {
		t.Errorf("desktop sessions = %v, want 4", bySessions["desktop"])
	}
	if bySessions["tablet"] != 1 {
		t.Errorf("tablet sessions = %v, want 1", bySessions["tablet"])
	}

	// The hintless sample still contributes to the page aggregate.
	if len(result.Pages) != 1 || result.Pages[0].Weight != 12 {
		t.Errorf("pages = %+v, want one page with weight 12", result.Pages)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/chronik?utm=1", "/chronik"},
		{"/chronik#top", "/chronik"},
		{"/galerie/", "/galerie"},
		{"/", "/"},
		{"", "/"},
		{"/a/b/?x=1#y", "/a/b"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalDevice(t *testing.T) {
	tests := []struct {
		hint   string
		want   string
		usable bool
	}{
		{"iPhone 15", "mobile", true},
		{"android tablet", "tablet", true},
		{"Samsung Smart-TV", "tv", true},
		{"Windows NT 10.0", "desktop", true},
		{"  ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalDevice(tt.hint)
		if got != tt.want || ok != tt.usable {
			t.Errorf("CanonicalDevice(%q) = (%q, %v), want (%q, %v)", tt.hint, got, ok, tt.want, tt.usable)
		}
	}
}
