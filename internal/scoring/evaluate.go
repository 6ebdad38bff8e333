package scoring

import "math"

// Status symbols shown next to every metric and dimension.
const (
	StatusGood = "✅"
	StatusWarn = "⚠️"
	StatusBad  = "❌"
)

// Score converts an observed value into points according to the metric's
// table. The result is clamped to [0, MaxPoints].
func (metric *Metric) Score(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	var score float64
	switch {
	case len(metric.Table) == 0:
		score = clamp(value, 0, 100) / 100 * metric.MaxPoints
	case metric.Direction == Descending:
		score = scoreDescending(metric.Table, value)
	case metric.Direction == Discrete:
		score = scoreDiscrete(metric.Table, value)
	default:
		score = scoreAscending(metric.Table, value)
	}
	return clamp(score, 0, metric.MaxPoints)
}

// scoreAscending awards the row with the largest key not above value.
func scoreAscending(table []Step, value float64) float64 {
	for i := len(table) - 1; i >= 0; i-- {
		if value >= table[i].Key {
			return table[i].Score
		}
	}
	return 0
}

// scoreDescending awards the row with the smallest key not below value.
func scoreDescending(table []Step, value float64) float64 {
	for _, step := range table {
		if value <= step.Key {
			return step.Score
		}
	}
	return 0
}

// scoreDiscrete picks the bucket equal to the rounded value, falling back
// to the nearest lower bucket.
func scoreDiscrete(table []Step, value float64) float64 {
	bucket := math.Round(value)
	for i := len(table) - 1; i >= 0; i-- {
		if table[i].Key <= bucket {
			return table[i].Score
		}
	}
	return 0
}

// Status maps earned points to a symbol: ✅ at 80% of max or more, ⚠️ at
// 50% or more, ❌ otherwise.
func Status(score, max float64) string {
	if max <= 0 {
		return StatusGood
	}
	ratio := score / max
	switch {
	case ratio >= 0.8-Epsilon:
		return StatusGood
	case ratio >= 0.5-Epsilon:
		return StatusWarn
	default:
		return StatusBad
	}
}

// Round1 rounds to one decimal place, the precision reports use.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
