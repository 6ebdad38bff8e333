package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// NewMetricsRegistry exposes a report as gauges on a fresh registry.
func NewMetricsRegistry(r *health.HealthReport) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	total := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "repokit",
		Subsystem: "health",
		Name:      "total_score",
		Help:      "Total repository health score (0-100).",
	})
	dimensions := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repokit",
		Subsystem: "health",
		Name:      "dimension_percentage",
		Help:      "Percentage of the dimension's points earned.",
	}, []string{"dimension"})
	metrics := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repokit",
		Subsystem: "health",
		Name:      "metric_score",
		Help:      "Points earned by a metric.",
	}, []string{"dimension", "metric"})
	issues := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repokit",
		Subsystem: "health",
		Name:      "issues",
		Help:      "Issues found, by level.",
	}, []string{"level"})

	for _, c := range []prometheus.Collector{total, dimensions, metrics, issues} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	total.Set(r.OverallScore)
	for _, d := range r.Dimensions {
		dimensions.WithLabelValues(d.ID).Set(d.Percentage)
		for _, m := range d.Metrics {
			metrics.WithLabelValues(d.ID, m.Name).Set(m.Score)
		}
	}
	for _, l := range types.Levels {
		issues.WithLabelValues(string(l)).Set(float64(r.IssuesByLevel[l]))
	}
	return reg, nil
}

// WritePrometheusTextfile writes the report in the node-exporter textfile
// format.
func WritePrometheusTextfile(path string, r *health.HealthReport) error {
	reg, err := NewMetricsRegistry(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing textfile: %w", err)
	}
	return nil
}
