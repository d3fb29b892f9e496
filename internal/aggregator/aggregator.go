// Package aggregator normalizes and weight-merges raw load samples into
// per-path and per-device statistics. All functions are pure.
package aggregator

import (
	"math"
	"sort"
	"strings"

	"github.com/mbeckert/sitepulse/pkg/models"
)

// Device hint markers, matched case-insensitively. Tablet and tv are
// checked before mobile so "android tablet" lands in the tablet bucket.
var (
	tabletHints = []string{"ipad", "tablet"}
	tvHints     = []string{"smart-tv", "smarttv", "appletv", " tv"}
	mobileHints = []string{"iphone", "android", "mobile", "phone"}
)

type pageGroup struct {
	path      string
	scope     models.Scope
	scopeSet  bool
	weight    float64
	loadSum   float64
	lcpSum    float64
	lcpWeight float64
}

type deviceGroup struct {
	device  string
	weight  float64
	loadSum float64
}

// Aggregate folds raw samples into page and device statistics. Samples
// missing a load time or carrying non-positive weight contribute to no
// output group. Never returns an error; malformed input is excluded.
func Aggregate(samples []models.MetricSample) models.AggregateResult {
	pages := make(map[string]*pageGroup)
	pageOrder := []string{}
	devices := make(map[string]*deviceGroup)
	deviceOrder := []string{}

	for _, s := range samples {
		if s.LoadTimeMs == nil || s.Weight <= 0 {
			continue
		}
		path := NormalizePath(s.Path)

		pg, ok := pages[path]
		if !ok {
			pg = &pageGroup{path: path}
			pages[path] = pg
			pageOrder = append(pageOrder, path)
		}
		if !pg.scopeSet {
			if scope := models.ParseScope(s.Scope); scope != "" {
				pg.scope = scope
				pg.scopeSet = true
			}
		}
		pg.weight += s.Weight
		pg.loadSum += *s.LoadTimeMs * s.Weight
		if s.LCPMs != nil {
			pg.lcpSum += *s.LCPMs * s.Weight
			pg.lcpWeight += s.Weight
		}

		// Device grouping runs over the same filtered samples, but a
		// sample without a usable hint is excluded from it only.
		device, ok := CanonicalDevice(s.DeviceHint)
		if !ok {
			continue
		}
		dg, exists := devices[device]
		if !exists {
			dg = &deviceGroup{device: device}
			devices[device] = dg
			deviceOrder = append(deviceOrder, device)
		}
		dg.weight += s.Weight
		dg.loadSum += *s.LoadTimeMs * s.Weight
	}

	result := models.AggregateResult{
		Pages:   make([]models.AggregatedPage, 0, len(pages)),
		Devices: make([]models.AggregatedDevice, 0, len(devices)),
	}

	for _, path := range pageOrder {
		pg := pages[path]
		if pg.weight <= 0 {
			continue
		}
		page := models.AggregatedPage{
			Path:      pg.path,
			Scope:     pg.scope,
			AvgLoadMs: int(math.Round(pg.loadSum / pg.weight)),
			Weight:    pg.weight,
		}
		if pg.lcpWeight > 0 {
			lcp := int(math.Round(pg.lcpSum / pg.lcpWeight))
			page.LCPMs = &lcp
		}
		result.Pages = append(result.Pages, page)
	}

	// Highest-traffic pages first, path as tiebreaker for determinism.
	sort.Slice(result.Pages, func(i, j int) bool {
		if result.Pages[i].Weight != result.Pages[j].Weight {
			return result.Pages[i].Weight > result.Pages[j].Weight
		}
		return result.Pages[i].Path < result.Pages[j].Path
	})

	var totalSessions float64
	for _, dg := range devices {
		totalSessions += dg.weight
	}
	sort.Strings(deviceOrder)
	for _, device := range deviceOrder {
		dg := devices[device]
		if dg.weight <= 0 {
			continue
		}
		result.Devices = append(result.Devices, models.AggregatedDevice{
			Device:    dg.device,
			Sessions:  dg.weight,
			AvgLoadMs: int(math.Round(dg.loadSum / dg.weight)),
			Share:     dg.weight / totalSessions,
		})
	}

	return result
}

// NormalizePath strips the query string and fragment, then trims a
// trailing slash. Root stays "/".
func NormalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		path = "/"
	}
	return path
}

// CanonicalDevice maps a free-text device hint to a device category.
// The second return is false when the hint is unusable.
func CanonicalDevice(hint string) (string, bool) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return "", false
	}
	for _, marker := range tabletHints {
		if strings.Contains(hint, marker) {
			return "tablet", true
		}
	}
	for _, marker := range tvHints {
		if strings.Contains(hint, marker) {
			return "tv", true
		}
	}
	for _, marker := range mobileHints {
		if strings.Contains(hint, marker) {
			return "mobile", true
		}
	}
	return "desktop", true
}
