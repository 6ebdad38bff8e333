package health

import (
	"fmt"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// Complexity analyzes the tree once per run; complexity and type
// annotation probes share the result.
func (rc *RepoContext) Complexity() (*ComplexityReport, error) {
	if rc.complexity != nil {
		return rc.complexity, nil
	}
	report, err := AnalyzeComplexity(rc.Root, rc.Probes.Excludes, rc.Probes.Complexity)
	if err != nil {
		return nil, err
	}
	rc.complexity = report
	return report, nil
}

// Secrets scans the tree once per run.
func (rc *RepoContext) Secrets() (*SecretScanResult, error) {
	if rc.secrets != nil {
		return rc.secrets, nil
	}
	result, err := ScanSecrets(rc.Root, rc.Probes.Excludes)
	if err != nil {
		return nil, err
	}
	rc.secrets = result
	return result, nil
}

func newResult(p Probe, value float64, unit string) *MetricResult {
	return &MetricResult{Name: p.Name(), Value: value, Unit: unit}
}

func newIssue(p Probe, rule string, level types.Level, priority int, format string, args ...interface{}) types.Issue {
	return types.Issue{
		Level:    level,
		Category: p.Dimension().Category(),
		Rule:     rule,
		Message:  fmt.Sprintf(format, args...),
		Priority: priority,
		Tags:     []string{p.Name()},
	}
}

// CheckItem is one pass/fail item of a counting probe.
type CheckItem struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	Suggestion string `json:"suggestion,omitempty"`
}

func countPassed(checks []CheckItem) int {
	n := 0
	for _, c := range checks {
		if c.Passed {
			n++
		}
	}
	return n
}

// recordChecks sets a detail per check and an issue per failed one.
func recordChecks(p Probe, result *MetricResult, rule string, priority int, checks []CheckItem) {
	for _, c := range checks {
		result.SetDetail(c.Name, c.Passed)
		if c.Passed {
			continue
		}
		issue := newIssue(p, rule, types.LevelWarning, priority, "Check failed: %s", c.Name)
		issue.Suggestion = c.Suggestion
		result.Issues = append(result.Issues, issue)
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
