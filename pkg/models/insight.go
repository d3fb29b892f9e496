package models

// InsightImpact ranks how much an optimization is expected to matter.
type InsightImpact string

const (
	ImpactHigh   InsightImpact = "high"
	ImpactMedium InsightImpact = "medium"
	ImpactLow    InsightImpact = "low"
)

// OptimizationInsight is one prioritized recommendation produced by the
// rule engine. IDs are deterministic functions of (rule, subject) so
// repeated evaluations over stable input produce identical lists.
type OptimizationInsight struct {
	ID          string        `json:"id"`
	Area        string        `json:"area"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Impact      InsightImpact `json:"impact"`
	Metric      string        `json:"metric"`
}

// CloneInsights returns a deep copy of an insight list. Callers may
// mutate the result without affecting the source.
func CloneInsights(in []OptimizationInsight) []OptimizationInsight {
	if in == nil {
		return nil
	}
	out := make([]OptimizationInsight, len(in))
	copy(out, in)
	return out
}
