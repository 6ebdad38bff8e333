// Package trend analyzes the health-check run history.
package trend

import (
	"math"
	"sort"
	"time"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/scoring"
)

// DefaultWindowDays is the history window when none is given.
const DefaultWindowDays = 30

const (
	// StableBand is the score change within which the trend is stable.
	StableBand = 2.0
	// RegressionDrop is the run-over-run drop that counts as a regression.
	RegressionDrop = 5.0
)

// Classification of the score trend.
type Classification string

const (
	Improving        Classification = "improving"
	Declining        Classification = "declining"
	Stable           Classification = "stable"
	InsufficientData Classification = "insufficient_data"
)

// Point is one run in the window.
type Point struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	Grade     string    `json:"grade,omitempty"`
}

// MetricTrend is the movement of one dimension percentage or metric value
// between the first and last run of the window.
type MetricTrend struct {
	Name      string  `json:"name"`
	First     float64 `json:"first"`
	Last      float64 `json:"last"`
	Delta     float64 `json:"delta"`
	Direction string  `json:"direction"`
}

// Analysis is the trend over one window.
type Analysis struct {
	WindowDays   int            `json:"window_days"`
	Runs         int            `json:"runs"`
	Points       []Point        `json:"points"`
	FirstScore   float64        `json:"first_score"`
	CurrentScore float64        `json:"current_score"`
	Change       float64        `json:"change"`
	Days         float64        `json:"days"`
	Velocity     float64        `json:"velocity_per_week"`
	Trend        Classification `json:"trend"`

	// Regression is set when the last run dropped more than
	// RegressionDrop points below the previous one.
	Regression      bool    `json:"regression"`
	RegressionDelta float64 `json:"regression_delta,omitempty"`

	// WeeksTo100 is the projection at the current velocity; nil when the
	// score is not rising.
	WeeksTo100 *float64 `json:"weeks_to_100,omitempty"`

	Metrics []MetricTrend `json:"metrics,omitempty"`
}

// Analyze computes the trend of the runs within days of now. Blocker-only
// runs are ignored since they carry no score.
func Analyze(runs []health.HealthReport, now time.Time, days int) *Analysis {
	if days <= 0 {
		days = DefaultWindowDays
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	var window []health.HealthReport
	for _, r := range runs {
		if r.BlockerOnly || r.Timestamp.Before(cutoff) {
			continue
		}
		window = append(window, r)
	}
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].Timestamp.Before(window[j].Timestamp)
	})

	a := &Analysis{WindowDays: days, Runs: len(window), Trend: InsufficientData}
	for _, r := range window {
		a.Points = append(a.Points, Point{RunID: r.RunID, Timestamp: r.Timestamp, Score: r.OverallScore, Grade: r.Grade})
	}
	if len(window) == 0 {
		return a
	}

	first, last := window[0], window[len(window)-1]
	a.FirstScore = first.OverallScore
	a.CurrentScore = last.OverallScore
	if len(window) < 2 {
		return a
	}

	a.Change = scoring.Round1(last.OverallScore - first.OverallScore)
	a.Days = round2(last.Timestamp.Sub(first.Timestamp).Hours() / 24)
	if a.Days > 0 {
		a.Velocity = round2(a.Change / (a.Days / 7))
	}
	a.Trend = Classify(a.Change)

	prev := window[len(window)-2]
	if drop := last.OverallScore - prev.OverallScore; drop < -RegressionDrop {
		a.Regression = true
		a.RegressionDelta = scoring.Round1(drop)
	}
	if a.Velocity > 0 && a.CurrentScore < 100 {
		weeks := round2((100 - a.CurrentScore) / a.Velocity)
		a.WeeksTo100 = &weeks
	}
	a.Metrics = metricTrends(&first, &last)
	return a
}

// Classify maps a score change to a trend.
func Classify(change float64) Classification {
	switch {
	case change > StableBand:
		return Improving
	case change < -StableBand:
		return Declining
	default:
		return Stable
	}
}

// metricTrends compares dimension percentages and metric values present in
// both runs, in the order of the last run.
func metricTrends(first, last *health.HealthReport) []MetricTrend {
	var out []MetricTrend
	for _, d := range last.Dimensions {
		fd, ok := first.Dimension(d.ID)
		if !ok {
			continue
		}
		out = append(out, newMetricTrend(d.ID+".percentage", fd.Percentage, d.Percentage))
		for _, m := range d.Metrics {
			fm, ok := fd.Metric(m.Name)
			if !ok || m.Error != "" || fm.Error != "" {
				continue
			}
			out = append(out, newMetricTrend(d.ID+"."+m.Name, fm.Value, m.Value))
		}
	}
	return out
}

func newMetricTrend(name string, first, last float64) MetricTrend {
	t := MetricTrend{Name: name, First: first, Last: last, Delta: round2(last - first), Direction: "flat"}
	switch {
	case t.Delta > scoring.Epsilon:
		t.Direction = "up"
	case t.Delta < -scoring.Epsilon:
		t.Direction = "down"
	}
	return t
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
