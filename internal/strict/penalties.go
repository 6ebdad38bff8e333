package strict

import (
	"fmt"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/scoring"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// ThresholdRule is the rule id of a missed strict threshold.
const ThresholdRule = "STRICT-001"

var thresholdPriority = map[types.Priority]int{
	types.PriorityCritical: 90,
	types.PriorityHigh:     75,
	types.PriorityMedium:   55,
	types.PriorityLow:      35,
}

// Meets reports whether value satisfies the strict target under the
// metric's scoring direction. Discrete metrics read as ascending.
func Meets(direction scoring.Direction, value, target float64) bool {
	if direction == scoring.Descending {
		return value <= target+scoring.Epsilon
	}
	return value >= target-scoring.Epsilon
}

// Penalties evaluates the strict thresholds against a scored report, in
// declaration order. A metric that failed to measure counts as a miss.
// Penalties are recorded on the report; they do not change the score.
func (c *Config) Penalties(model *scoring.Model, r *health.HealthReport) ([]health.Penalty, []types.Issue) {
	var penalties []health.Penalty
	var issues []types.Issue
	for _, th := range c.Thresholds {
		metric, dim, ok := model.Metric(th.Metric)
		if !ok {
			continue
		}
		value, measured := 0.0, false
		if d, ok := r.Dimension(dim.ID); ok {
			if m, ok := d.Metric(th.Metric); ok && m.Error == "" {
				value, measured = m.Value, true
			}
		}
		if measured && Meets(metric.Direction, value, th.Strict) {
			continue
		}

		p := health.Penalty{
			Metric:   th.Metric,
			Value:    value,
			Strict:   th.Strict,
			Priority: th.Priority,
			Points:   scoring.Round1(c.PenaltyPerViolation * th.Multiplier()),
		}
		penalties = append(penalties, p)

		level := types.LevelWarning
		if th.Priority == types.PriorityCritical || th.Priority == types.PriorityHigh {
			level = types.LevelError
		}
		cmp := ">="
		if metric.Direction == scoring.Descending {
			cmp = "<="
		}
		msg := fmt.Sprintf("%s is %g, strict mode requires %s %g", th.Metric, value, cmp, th.Strict)
		if !measured {
			msg = fmt.Sprintf("%s could not be measured, strict mode requires %s %g", th.Metric, cmp, th.Strict)
		}
		issues = append(issues, types.Issue{
			Level:    level,
			Category: types.Category(dim.ID),
			Rule:     ThresholdRule,
			Message:  msg,
			Priority: thresholdPriority[th.Priority],
			Tags:     []string{"strict", th.Metric},
			Metadata: map[string]string{"penalty": fmt.Sprintf("%g", p.Points)},
		})
	}
	return penalties, issues
}
