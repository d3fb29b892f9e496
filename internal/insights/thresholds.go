// Package insights evaluates aggregated metrics against threshold rules
// to produce a prioritized, deterministic list of optimization insights.
package insights

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds are the tunable limits the rule set evaluates against.
// Values are heuristics, not contracts; operators can override them
// from a YAML file.
type Thresholds struct {
	// SlowLoadMs is the page load time above which a page counts as slow
	SlowLoadMs int `yaml:"slow_load_ms"`

	// SlowLCPMs is the largest-contentful-paint limit
	SlowLCPMs int `yaml:"slow_lcp_ms"`

	// MinPageWeight is the traffic weight below which a slow public
	// page is not worth an insight
	MinPageWeight float64 `yaml:"min_page_weight"`

	// LowRetention flags session segments that fail to come back
	LowRetention float64 `yaml:"low_retention"`

	// MajorDeviceShare is the traffic share above which a slow device
	// category matters
	MajorDeviceShare float64 `yaml:"major_device_share"`

	// HighErrorRate flags an elevated API error rate
	HighErrorRate float64 `yaml:"high_error_rate"`

	// LowCacheHitRate flags a depressed cache hit rate
	LowCacheHitRate float64 `yaml:"low_cache_hit_rate"`

	// SlowMemberAPIMs flags elevated member-area response times
	SlowMemberAPIMs float64 `yaml:"slow_member_api_ms"`
}

// DefaultThresholds returns the built-in limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SlowLoadMs:       2200,
		SlowLCPMs:        2200,
		MinPageWeight:    10,
		LowRetention:     0.25,
		MajorDeviceShare: 0.25,
		HighErrorRate:    0.05,
		LowCacheHitRate:  0.7,
		SlowMemberAPIMs:  500,
	}
}

// LoadThresholds reads threshold overrides from a YAML file. Fields not
// present in the file keep their defaults.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()

	data, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("reading thresholds file: %w", err)
	}
	if err := yaml.Unmarshal(data, &th); err != nil {
		return th, fmt.Errorf("parsing thresholds YAML: %w", err)
	}
	return th, nil
}
