// Package scoring loads the health scoring model and turns probe values
// into points, grades and recommendations.
package scoring

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// Epsilon is the tolerance for weight and point sums.
const Epsilon = 1e-6

// Direction says how a metric's scoring table is read.
type Direction string

const (
	// Ascending: value >= threshold earns the points (higher is better).
	Ascending Direction = "ascending"
	// Descending: value <= threshold earns the points (lower is better).
	Descending Direction = "descending"
	// Discrete: the rounded value selects an integer bucket.
	Discrete Direction = "discrete"
)

// IsValid checks if the direction value is valid
func (d Direction) IsValid() bool {
	switch d {
	case Ascending, Descending, Discrete:
		return true
	}
	return false
}

// Step is one row of a scoring table.
type Step struct {
	Key   float64
	Score float64
}

// Metric is a scored metric within a dimension.
type Metric struct {
	ID          string
	Description string
	Unit        string
	MaxPoints   float64
	Direction   Direction
	// Table is sorted by ascending key. Empty means linear over 0-100.
	Table []Step
}

// Dimension groups metrics under a weight.
type Dimension struct {
	ID        string
	Name      string
	Weight    float64
	MaxPoints float64
	Metrics   []Metric
}

// Metric returns the metric with the given id.
func (d *Dimension) Metric(id string) (*Metric, bool) {
	for i := range d.Metrics {
		if d.Metrics[i].ID == id {
			return &d.Metrics[i], true
		}
	}
	return nil, false
}

// GradeBand is a half-open score interval [Min, Max). The band ending at
// 100 also contains 100.
type GradeBand struct {
	ID    string
	Min   float64
	Max   float64
	Label string
}

// Contains reports whether score falls into the band.
func (g GradeBand) Contains(score float64) bool {
	if score < g.Min {
		return false
	}
	if g.Max >= 100 {
		return score <= g.Max
	}
	return score < g.Max
}

// Model is a validated scoring model. Dimensions and metrics keep the
// order in which the file declares them.
type Model struct {
	Path            string
	Dimensions      []Dimension
	Grades          []GradeBand
	Recommendations []Recommendation
}

// Dimension returns the dimension with the given id.
func (m *Model) Dimension(id string) (*Dimension, bool) {
	for i := range m.Dimensions {
		if m.Dimensions[i].ID == id {
			return &m.Dimensions[i], true
		}
	}
	return nil, false
}

// Metric finds a metric by id in any dimension.
func (m *Model) Metric(id string) (*Metric, *Dimension, bool) {
	for i := range m.Dimensions {
		if metric, ok := m.Dimensions[i].Metric(id); ok {
			return metric, &m.Dimensions[i], true
		}
	}
	return nil, nil, false
}

// MaxPoints returns the total points available.
func (m *Model) MaxPoints() float64 {
	total := 0.0
	for _, d := range m.Dimensions {
		total += d.MaxPoints
	}
	return total
}

// Grade returns the first band containing score.
func (m *Model) Grade(score float64) (GradeBand, bool) {
	for _, g := range m.Grades {
		if g.Contains(score) {
			return g, true
		}
	}
	return GradeBand{}, false
}

// raw document shapes; dimensions and metrics are decoded from yaml.Node
// so declaration order survives.
type rawModel struct {
	Dimensions yaml.Node `yaml:"dimensions"`
	Scoring    struct {
		GradeLevels yaml.Node `yaml:"grade_levels"`
	} `yaml:"scoring"`
	Recommendations struct {
		Rules []rawRecommendation `yaml:"rules"`
	} `yaml:"recommendations"`
}

type rawDimension struct {
	Name      string    `yaml:"name"`
	Weight    float64   `yaml:"weight"`
	MaxPoints float64   `yaml:"max_points"`
	Metrics   yaml.Node `yaml:"metrics"`
}

type rawMetric struct {
	Description string    `yaml:"description"`
	Unit        string    `yaml:"unit"`
	MaxPoints   float64   `yaml:"max_points"`
	Direction   string    `yaml:"direction"`
	Scoring     yaml.Node `yaml:"scoring"`
}

type rawGrade struct {
	Range []float64 `yaml:"range"`
	Label string    `yaml:"label"`
}

type rawRecommendation struct {
	Condition string   `yaml:"condition"`
	Priority  string   `yaml:"priority"`
	Message   string   `yaml:"message"`
	Actions   []string `yaml:"actions"`
}

// Load reads and validates a scoring model. Every failure is a
// *types.ConfigError.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ConfigError{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse decodes and validates a scoring model. path is used in errors.
func Parse(path string, data []byte) (*Model, error) {
	var raw rawModel
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &types.ConfigError{Path: path, Err: err}
	}

	m := &Model{Path: path}

	dims, err := orderedMap(raw.Dimensions)
	if err != nil {
		return nil, &types.ConfigError{Path: path, Err: fmt.Errorf("dimensions: %w", err)}
	}
	for _, entry := range dims {
		var rd rawDimension
		if err := entry.value.Decode(&rd); err != nil {
			return nil, types.NewConfigError(path, "dimension %s: %v", entry.key, err)
		}
		dim := Dimension{
			ID:        entry.key,
			Name:      rd.Name,
			Weight:    rd.Weight,
			MaxPoints: rd.MaxPoints,
		}
		if dim.Name == "" {
			dim.Name = types.Humanize(dim.ID)
		}

		metrics, err := orderedMap(rd.Metrics)
		if err != nil {
			return nil, types.NewConfigError(path, "dimension %s metrics: %v", entry.key, err)
		}
		for _, me := range metrics {
			var rm rawMetric
			if err := me.value.Decode(&rm); err != nil {
				return nil, types.NewConfigError(path, "metric %s.%s: %v", entry.key, me.key, err)
			}
			metric, err := buildMetric(me.key, rm)
			if err != nil {
				return nil, types.NewConfigError(path, "metric %s.%s: %v", entry.key, me.key, err)
			}
			dim.Metrics = append(dim.Metrics, metric)
		}
		m.Dimensions = append(m.Dimensions, dim)
	}

	grades, err := orderedMap(raw.Scoring.GradeLevels)
	if err != nil {
		return nil, types.NewConfigError(path, "grade_levels: %v", err)
	}
	for _, entry := range grades {
		var rg rawGrade
		if err := entry.value.Decode(&rg); err != nil {
			return nil, types.NewConfigError(path, "grade %s: %v", entry.key, err)
		}
		if len(rg.Range) != 2 {
			return nil, types.NewConfigError(path, "grade %s: range must be [lo, hi]", entry.key)
		}
		label := rg.Label
		if label == "" {
			label = types.Humanize(entry.key)
		}
		m.Grades = append(m.Grades, GradeBand{ID: entry.key, Min: rg.Range[0], Max: rg.Range[1], Label: label})
	}

	for i, rr := range raw.Recommendations.Rules {
		rec, err := compileRecommendation(i, rr)
		if err != nil {
			return nil, types.NewConfigError(path, "recommendation %d: %v", i+1, err)
		}
		m.Recommendations = append(m.Recommendations, rec)
	}

	if err := m.Validate(); err != nil {
		return nil, &types.ConfigError{Path: path, Err: err}
	}
	return m, nil
}

func buildMetric(id string, rm rawMetric) (Metric, error) {
	metric := Metric{
		ID:          id,
		Description: rm.Description,
		Unit:        rm.Unit,
		MaxPoints:   rm.MaxPoints,
		Direction:   Direction(rm.Direction),
	}
	table, err := orderedMap(rm.Scoring)
	if err != nil {
		return metric, fmt.Errorf("scoring: %w", err)
	}
	if len(table) > 0 && rm.Direction == "" {
		return metric, fmt.Errorf("scoring table needs a direction (ascending, descending or discrete)")
	}
	if rm.Direction != "" && !metric.Direction.IsValid() {
		return metric, fmt.Errorf("unknown direction %q", rm.Direction)
	}
	for _, entry := range table {
		key, err := cast.ToFloat64E(entry.key)
		if err != nil {
			return metric, fmt.Errorf("scoring key %q is not numeric", entry.key)
		}
		score, err := cast.ToFloat64E(entry.value.Value)
		if err != nil {
			return metric, fmt.Errorf("scoring value for %q is not numeric", entry.key)
		}
		metric.Table = append(metric.Table, Step{Key: key, Score: score})
	}
	sort.Slice(metric.Table, func(i, j int) bool { return metric.Table[i].Key < metric.Table[j].Key })
	if metric.Direction == "" {
		metric.Direction = Ascending
	}
	return metric, nil
}

// Validate checks weights, point sums, tables and grade bands.
func (m *Model) Validate() error {
	if len(m.Dimensions) == 0 {
		return fmt.Errorf("no dimensions defined")
	}

	weights := 0.0
	points := 0.0
	for _, d := range m.Dimensions {
		if d.Weight < 0 {
			return fmt.Errorf("dimension %s: weight cannot be negative (got %v)", d.ID, d.Weight)
		}
		if d.MaxPoints < 0 {
			return fmt.Errorf("dimension %s: max_points cannot be negative (got %v)", d.ID, d.MaxPoints)
		}
		weights += d.Weight
		points += d.MaxPoints

		metricPoints := 0.0
		for _, metric := range d.Metrics {
			if err := metric.validate(); err != nil {
				return fmt.Errorf("metric %s.%s: %w", d.ID, metric.ID, err)
			}
			metricPoints += metric.MaxPoints
		}
		if math.Abs(metricPoints-d.MaxPoints) > Epsilon {
			return fmt.Errorf("dimension %s: metric max_points sum to %v, expected %v", d.ID, metricPoints, d.MaxPoints)
		}
	}
	if math.Abs(weights-1) > Epsilon {
		return fmt.Errorf("dimension weights sum to %v, expected 1", weights)
	}
	if math.Abs(points-100) > Epsilon {
		return fmt.Errorf("dimension max_points sum to %v, expected 100", points)
	}

	if err := validateGrades(m.Grades); err != nil {
		return err
	}

	for _, rec := range m.Recommendations {
		for _, c := range rec.Clauses {
			if err := m.checkTerm(c.Term); err != nil {
				return fmt.Errorf("recommendation %q: %w", rec.Condition, err)
			}
		}
	}
	return nil
}

func (metric Metric) validate() error {
	if metric.MaxPoints < 0 {
		return fmt.Errorf("max_points cannot be negative (got %v)", metric.MaxPoints)
	}
	if len(metric.Table) == 0 && metric.Direction != Ascending {
		return fmt.Errorf("%s metrics need a scoring table", metric.Direction)
	}
	for i, step := range metric.Table {
		if step.Score < 0 || step.Score > metric.MaxPoints+Epsilon {
			return fmt.Errorf("score %v for key %v outside [0, %v]", step.Score, step.Key, metric.MaxPoints)
		}
		if i == 0 {
			continue
		}
		prev := metric.Table[i-1]
		switch metric.Direction {
		case Ascending:
			if step.Score < prev.Score {
				return fmt.Errorf("ascending table is not monotonic at key %v", step.Key)
			}
		case Descending:
			if step.Score > prev.Score {
				return fmt.Errorf("descending table is not monotonic at key %v", step.Key)
			}
		}
	}
	return nil
}

func validateGrades(grades []GradeBand) error {
	if len(grades) == 0 {
		return fmt.Errorf("no grade levels defined")
	}
	sorted := append([]GradeBand(nil), grades...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	for _, g := range sorted {
		if g.Min >= g.Max {
			return fmt.Errorf("grade %s: empty range [%v, %v)", g.ID, g.Min, g.Max)
		}
	}
	if math.Abs(sorted[0].Min) > Epsilon {
		return fmt.Errorf("grade levels must start at 0 (lowest is %v)", sorted[0].Min)
	}
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		switch {
		case cur.Min < prev.Max-Epsilon:
			return fmt.Errorf("grade levels %s and %s overlap", prev.ID, cur.ID)
		case cur.Min > prev.Max+Epsilon:
			return fmt.Errorf("gap between grade levels %s and %s", prev.ID, cur.ID)
		}
	}
	if last := sorted[len(sorted)-1]; math.Abs(last.Max-100) > Epsilon {
		return fmt.Errorf("grade levels must end at 100 (highest is %v)", last.Max)
	}
	return nil
}

type mapEntry struct {
	key   string
	value *yaml.Node
}

// orderedMap returns the key/value pairs of a mapping node in document
// order. A zero node yields nothing.
func orderedMap(node yaml.Node) ([]mapEntry, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping (line %d)", node.Line)
	}
	entries := make([]mapEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		entries = append(entries, mapEntry{key: node.Content[i].Value, value: node.Content[i+1]})
	}
	return entries, nil
}
