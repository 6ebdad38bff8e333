package health

import (
	"context"
	"path/filepath"
	"time"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/gates"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/registry"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/scoring"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/triggers"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// Dimension is one of the five scoring dimensions.
type Dimension string

const (
	DimensionCodeQuality    Dimension = "code_quality"
	DimensionDocumentation  Dimension = "documentation"
	DimensionArchitecture   Dimension = "architecture"
	DimensionAIFriendliness Dimension = "ai_friendliness"
	DimensionOperations     Dimension = "operations"
)

// Category returns the issue category findings of this dimension use.
func (d Dimension) Category() types.Category {
	return types.Category(d)
}

// Probe measures one metric of the repository.
type Probe interface {
	// Name returns the metric id in the scoring model.
	Name() string

	// Dimension returns the dimension the metric belongs to.
	Dimension() Dimension

	// Philosophy returns the principle the metric protects.
	Philosophy() string

	// Cost returns an estimate of how expensive the probe is.
	Cost() CostEstimate

	// Check measures the metric. Errors are recorded on the metric by the
	// caller; they do not stop other probes.
	Check(ctx context.Context, rc *RepoContext) (*MetricResult, error)
}

// RepoContext is everything a probe may look at.
type RepoContext struct {
	Root     string
	Settings config.Settings
	Probes   ProbeConfig
	Runner   gates.CommandRunner

	// Registry is nil when the repository has no registry file.
	Registry    *registry.Registry
	RegistryErr error

	// Catalog is nil when the repository has no trigger catalog.
	Catalog    *triggers.Catalog
	CatalogErr error

	// Now returns the current time. Tests pin it.
	Now func() time.Time

	complexity *ComplexityReport
	secrets    *SecretScanResult
}

// NewRepoContext loads the shared inputs (probe thresholds, registry,
// trigger catalog) once. A missing registry or catalog is recorded, not
// returned, so the probes that need them can report the problem. Only an
// unusable probe config is an error.
func NewRepoContext(settings config.Settings, runner gates.CommandRunner) (*RepoContext, error) {
	probes, err := LoadProbeConfig(filepath.Join(settings.Root, filepath.FromSlash(ProbesConfigPath)))
	if err != nil {
		return nil, &types.ConfigError{Path: ProbesConfigPath, Err: err}
	}
	rc := &RepoContext{
		Root:     settings.Root,
		Settings: settings,
		Probes:   probes,
		Runner:   runner,
		Now:      time.Now,
	}
	if rc.Runner == nil {
		rc.Runner = gates.NewExecRunner(settings.Root)
	}
	rc.Registry, rc.RegistryErr = registry.Load(settings.Path(settings.Registry))
	rc.Catalog, rc.CatalogErr = triggers.Load(settings.Path(settings.TriggerCatalog))
	return rc, nil
}

// Path resolves a repo-relative path.
func (rc *RepoContext) Path(rel string) string {
	return filepath.Join(rc.Root, filepath.FromSlash(rel))
}

// MetricResult is the outcome of one probe.
type MetricResult struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit,omitempty"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`

	// Details holds metric-specific facts for the report.
	Details map[string]string `json:"details,omitempty"`

	// Issues found while measuring. Collected into the report's issue
	// list by the engine.
	Issues []types.Issue `json:"-"`
}

// SetDetail records a detail value, formatting it as a string.
func (m *MetricResult) SetDetail(key string, value interface{}) {
	if m.Details == nil {
		m.Details = make(map[string]string)
	}
	m.Details[key] = formatDetail(value)
}

// DimensionResult is the sum of a dimension's metrics.
type DimensionResult struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Weight      float64        `json:"weight"`
	MaxPoints   float64        `json:"max_points"`
	ActualScore float64        `json:"actual_score"`
	Percentage  float64        `json:"percentage"`
	Status      string         `json:"status"`
	Metrics     []MetricResult `json:"metrics"`
}

// Metric returns the metric result with the given name.
func (d *DimensionResult) Metric(name string) (*MetricResult, bool) {
	for i := range d.Metrics {
		if d.Metrics[i].Name == name {
			return &d.Metrics[i], true
		}
	}
	return nil, false
}

// Penalty is a strict threshold a metric did not meet.
type Penalty struct {
	Metric   string         `json:"metric"`
	Value    float64        `json:"value"`
	Strict   float64        `json:"strict"`
	Priority types.Priority `json:"priority"`
	Points   float64        `json:"points"`
}

// HealthReport is the result of one health-check run. The JSON report,
// the history entries and ReadJSON all use this shape.
type HealthReport struct {
	RunID       string    `json:"run_id"`
	Timestamp   time.Time `json:"timestamp"`
	Duration    float64   `json:"duration"`
	Environment string    `json:"environment,omitempty"`

	OverallScore float64 `json:"overall_score"`
	Grade        string  `json:"grade"`
	GradeLabel   string  `json:"grade_label,omitempty"`
	Passed       bool    `json:"passed"`
	Strict       bool    `json:"strict,omitempty"`
	BlockerOnly  bool    `json:"blocker_only,omitempty"`

	TotalIssues      int                    `json:"total_issues"`
	IssuesByLevel    map[types.Level]int    `json:"issues_by_level"`
	IssuesByCategory map[types.Category]int `json:"issues_by_category"`
	Issues           []types.Issue          `json:"issues"`

	Dimensions      []DimensionResult `json:"dimensions,omitempty"`
	Recommendations []scoring.Fired   `json:"recommendations,omitempty"`
	Penalties       []Penalty         `json:"penalties,omitempty"`
}

// Dimension returns the dimension result with the given id.
func (r *HealthReport) Dimension(id string) (*DimensionResult, bool) {
	for i := range r.Dimensions {
		if r.Dimensions[i].ID == id {
			return &r.Dimensions[i], true
		}
	}
	return nil, false
}

// SetIssues sorts the issues and refreshes the counts.
func (r *HealthReport) SetIssues(issues []types.Issue) {
	types.Sort(issues)
	if issues == nil {
		issues = []types.Issue{}
	}
	r.Issues = issues
	r.TotalIssues = len(issues)
	r.IssuesByLevel = types.CountByLevel(issues)
	r.IssuesByCategory = types.CountByCategory(issues)
}

// PenaltyPoints sums the strict penalty points.
func (r *HealthReport) PenaltyPoints() float64 {
	total := 0.0
	for _, p := range r.Penalties {
		total += p.Points
	}
	return scoring.Round1(total)
}

// Lookup resolves recommendation terms: total_score, <dim>.percentage and
// <dim>.<metric> (the metric's observed value).
func (r *HealthReport) Lookup(term string) (float64, bool) {
	if term == "total_score" {
		return r.OverallScore, true
	}
	for _, d := range r.Dimensions {
		prefix := d.ID + "."
		if len(term) <= len(prefix) || term[:len(prefix)] != prefix {
			continue
		}
		field := term[len(prefix):]
		if field == "percentage" {
			return d.Percentage, true
		}
		if m, ok := d.Metric(field); ok && m.Error == "" {
			return m.Value, true
		}
	}
	return 0, false
}

// CostEstimate predicts resource usage for a probe.
type CostEstimate struct {
	// Expected execution time
	EstimatedDuration time.Duration

	// Whether the probe walks the whole repository
	RequiresFullScan bool

	// Whether the probe runs an external command
	RunsCommand bool

	// Relative cost category
	Category CostCategory
}

// CostCategory classifies the relative expense of a probe.
type CostCategory string

const (
	CostCheap     CostCategory = "cheap"     // < 1 second, reads a few files
	CostModerate  CostCategory = "moderate"  // 1-10 seconds, walks the tree
	CostExpensive CostCategory = "expensive" // > 10 seconds or runs a command
)

// Distribution summarizes a set of values.
type Distribution struct {
	Mean   float64
	Median float64
	P95    float64
	Min    float64
	Max    float64
	Count  int
}
