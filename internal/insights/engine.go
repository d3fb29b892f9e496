package insights

import (
	"fmt"
	"strings"

	"github.com/mbeckert/sitepulse/pkg/models"
)

// Inputs bundles everything the rule set evaluates.
type Inputs struct {
	Pages    []models.AggregatedPage
	Devices  []models.AggregatedDevice
	Segments []models.SegmentStat
	Summary  models.HTTPSummary

	// FallbackOnly skips rule evaluation and returns the fallback list.
	FallbackOnly bool
}

// rule pairs a predicate-driven factory with a name. Rules run in slice
// order so the produced list is stable across evaluations.
type rule struct {
	name string
	eval func(in Inputs, th Thresholds) []models.OptimizationInsight
}

// Engine evaluates a fixed, ordered rule set against aggregated metrics.
type Engine struct {
	thresholds Thresholds
	rules      []rule
}

// NewEngine creates an engine with the given thresholds.
func NewEngine(th Thresholds) *Engine {
	return &Engine{
		thresholds: th,
		rules: []rule{
			{name: "page-speed", eval: rulePageSpeed},
			{name: "lcp", eval: ruleLCP},
			{name: "member-speed", eval: ruleMemberSpeed},
			{name: "segment", eval: ruleSegments},
			{name: "device", eval: ruleDevices},
			{name: "api-error-rate", eval: ruleErrorRate},
			{name: "cache-hit-rate", eval: ruleCacheHitRate},
			{name: "member-api-latency", eval: ruleMemberLatency},
		},
	}
}

// Derive evaluates the rule set. When the caller asks for fallback only,
// or no rule fires, it returns a deep copy of the supplied fallback —
// never the fallback slice itself, and never an empty list while a
// fallback is available.
func (e *Engine) Derive(in Inputs, fallback []models.OptimizationInsight) []models.OptimizationInsight {
	if in.FallbackOnly {
		return models.CloneInsights(fallback)
	}

	var out []models.OptimizationInsight
	for _, r := range e.rules {
		out = append(out, r.eval(in, e.thresholds)...)
	}

	if len(out) == 0 && fallback != nil {
		return models.CloneInsights(fallback)
	}
	return out
}

func rulePageSpeed(in Inputs, th Thresholds) []models.OptimizationInsight {
	var out []models.OptimizationInsight
	for _, p := range in.Pages {
		if p.Scope != models.ScopePublic {
			continue
		}
		if p.Weight < th.MinPageWeight || p.AvgLoadMs <= th.SlowLoadMs {
			continue
		}
		out = append(out, models.OptimizationInsight{
			ID:          "page-speed-" + Slugify(p.Path),
			Area:        "performance",
			Title:       fmt.Sprintf("Speed up %s", p.Path),
			Description: fmt.Sprintf("%s is a high-traffic public page loading in %dms on average. Consider image optimization and caching.", p.Path, p.AvgLoadMs),
			Impact:      models.ImpactHigh,
			Metric:      fmt.Sprintf("%dms avg load", p.AvgLoadMs),
		})
	}
	return out
}

func ruleLCP(in Inputs, th Thresholds) []models.OptimizationInsight {
	var out []models.OptimizationInsight
	for _, p := range in.Pages {
		if p.LCPMs == nil || *p.LCPMs <= th.SlowLCPMs {
			continue
		}
		out = append(out, models.OptimizationInsight{
			ID:          "lcp-" + Slugify(p.Path),
			Area:        "performance",
			Title:       fmt.Sprintf("Improve largest contentful paint on %s", p.Path),
			Description: fmt.Sprintf("Largest contentful paint on %s takes %dms. Preload the hero media or reduce render-blocking resources.", p.Path, *p.LCPMs),
			Impact:      models.ImpactMedium,
			Metric:      fmt.Sprintf("%dms LCP", *p.LCPMs),
		})
	}
	return out
}

func ruleMemberSpeed(in Inputs, th Thresholds) []models.OptimizationInsight {
	var out []models.OptimizationInsight
	for _, p := range in.Pages {
		if p.Scope != models.ScopeMembers || p.AvgLoadMs <= th.SlowLoadMs {
			continue
		}
		out = append(out, models.OptimizationInsight{
			ID:          "member-speed-" + Slugify(p.Path),
			Area:        "members",
			Title:       fmt.Sprintf("Member page %s loads slowly", p.Path),
			Description: fmt.Sprintf("The member-area page %s averages %dms. Members hit it while logged in, so responses cannot come from the public cache.", p.Path, p.AvgLoadMs),
			Impact:      models.ImpactMedium,
			Metric:      fmt.Sprintf("%dms avg load", p.AvgLoadMs),
		})
	}
	return out
}

func ruleSegments(in Inputs, th Thresholds) []models.OptimizationInsight {
	var out []models.OptimizationInsight
	for _, seg := range in.Segments {
		if seg.RetentionRate >= th.LowRetention {
			continue
		}
		out = append(out, models.OptimizationInsight{
			ID:          "segment-" + Slugify(seg.Segment),
			Area:        "engagement",
			Title:       fmt.Sprintf("Low retention in segment %q", seg.Segment),
			Description: fmt.Sprintf("Only %.0f%% of the %q segment returns. Review the landing experience for this group.", seg.RetentionRate*100, seg.Segment),
			Impact:      models.ImpactMedium,
			Metric:      fmt.Sprintf("%.0f%% retention", seg.RetentionRate*100),
		})
	}
	return out
}

func ruleDevices(in Inputs, th Thresholds) []models.OptimizationInsight {
	var out []models.OptimizationInsight
	for _, d := range in.Devices {
		if d.Share < th.MajorDeviceShare || d.AvgLoadMs <= th.SlowLoadMs {
			continue
		}
		out = append(out, models.OptimizationInsight{
			ID:          "device-" + Slugify(d.Device),
			Area:        "performance",
			Title:       fmt.Sprintf("Slow experience on %s", d.Device),
			Description: fmt.Sprintf("%s accounts for %.0f%% of sessions but averages %dms page loads.", d.Device, d.Share*100, d.AvgLoadMs),
			Impact:      models.ImpactHigh,
			Metric:      fmt.Sprintf("%dms avg load at %.0f%% share", d.AvgLoadMs, d.Share*100),
		})
	}
	return out
}

func ruleErrorRate(in Inputs, th Thresholds) []models.OptimizationInsight {
	if in.Summary.ErrorRate <= th.HighErrorRate {
		return nil
	}
	return []models.OptimizationInsight{{
		ID:          "api-error-rate",
		Area:        "reliability",
		Title:       "Elevated API error rate",
		Description: fmt.Sprintf("%.1f%% of API requests fail. Check the recent error issues for the dominant fingerprint.", in.Summary.ErrorRate*100),
		Impact:      models.ImpactHigh,
		Metric:      fmt.Sprintf("%.1f%% errors", in.Summary.ErrorRate*100),
	}}
}

func ruleCacheHitRate(in Inputs, th Thresholds) []models.OptimizationInsight {
	if in.Summary.CacheHitRate >= th.LowCacheHitRate {
		return nil
	}
	return []models.OptimizationInsight{{
		ID:          "cache-hit-rate",
		Area:        "performance",
		Title:       "Depressed cache hit rate",
		Description: fmt.Sprintf("Only %.0f%% of requests are served from cache. Review cache keys and TTLs.", in.Summary.CacheHitRate*100),
		Impact:      models.ImpactMedium,
		Metric:      fmt.Sprintf("%.0f%% cache hits", in.Summary.CacheHitRate*100),
	}}
}

func ruleMemberLatency(in Inputs, th Thresholds) []models.OptimizationInsight {
	for _, area := range in.Summary.Areas {
		if area.Area != string(models.ScopeMembers) {
			continue
		}
		if area.AvgDurationMs <= th.SlowMemberAPIMs {
			return nil
		}
		return []models.OptimizationInsight{{
			ID:          "member-api-latency",
			Area:        "members",
			Title:       "Member API responses are slow",
			Description: fmt.Sprintf("Member-area API calls average %.0fms. Look at authorization middleware and per-member queries.", area.AvgDurationMs),
			Impact:      models.ImpactMedium,
			Metric:      fmt.Sprintf("%.0fms avg response", area.AvgDurationMs),
		}}
	}
	return nil
}

// Slugify turns a free-text subject (path, segment, device) into the
// stable ID suffix used by insight rules.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "root"
	}
	return slug
}
