package health

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/gates"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// SourceExtensions are the files lint findings are measured against.
var SourceExtensions = []string{".go", ".py", ".ts", ".tsx", ".js", ".jsx"}

// ErrCommandUnavailable is returned when a delegated make target does not exist.
var ErrCommandUnavailable = errors.New("command not available")

// runDelegated runs a probe command under the probe timeout. make commands
// whose target is missing from the Makefile are not attempted.
func runDelegated(ctx context.Context, rc *RepoContext, command string) (*gates.Result, error) {
	if target, ok := repo.MakeTargetOf(command); ok {
		targets, err := repo.MakeTargets(rc.Root)
		if err != nil {
			return nil, fmt.Errorf("reading Makefile: %w", err)
		}
		i := sort.SearchStrings(targets, target)
		if i >= len(targets) || targets[i] != target {
			return nil, fmt.Errorf("%w: make target %q is not defined", ErrCommandUnavailable, target)
		}
	}
	result := gates.RunWithTimeout(ctx, rc.Runner, command, rc.Settings.ProbeTimeout)
	if errors.Is(result.Error, gates.ErrTimeout) {
		return result, gates.ErrTimeout
	}
	if result.ExitCode < 0 && result.Error != nil {
		return result, result.Error
	}
	return result, nil
}

// LintProbe measures the share of source files without lint findings.
type LintProbe struct{}

// lintLocationRe matches "path/to/file.ext:line[:col]:" at line start.
var lintLocationRe = regexp.MustCompile(`^\s*([A-Za-z0-9_./\-]+\.[A-Za-z0-9]+):(\d+)(?::\d+)?:`)

// Name implements Probe.
func (p *LintProbe) Name() string { return "lint_pass_rate" }

// Dimension implements Probe.
func (p *LintProbe) Dimension() Dimension { return DimensionCodeQuality }

// Philosophy implements Probe.
func (p *LintProbe) Philosophy() string {
	return "Linters catch the mistakes reviewers are worst at spotting. A clean lint run is the cheapest quality signal."
}

// Cost implements Probe.
func (p *LintProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 20 * time.Second, RunsCommand: true, Category: CostExpensive}
}

// Check implements Probe.
func (p *LintProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	run, err := runDelegated(ctx, rc, rc.Settings.LintCommand)
	if err != nil {
		return nil, err
	}

	total := 0
	if err := WalkFiles(rc.Root, ".", SourceExtensions, rc.Probes.Excludes, func(string) error {
		total++
		return nil
	}); err != nil {
		return nil, err
	}

	result := newResult(p, 100, "%")
	result.SetDetail("command", rc.Settings.LintCommand)
	result.SetDetail("source_files", total)
	if run.Passed {
		return result, nil
	}

	flagged := lintFlaggedFiles(run.Output)
	result.SetDetail("files_with_findings", len(flagged))
	if len(flagged) == 0 || total == 0 {
		// The linter failed without naming files; nothing can be counted as clean.
		result.Value = 0
	} else {
		clean := total - len(flagged)
		if clean < 0 {
			clean = 0
		}
		result.Value = Percent(clean, total)
	}

	issue := newIssue(p, "CQ-001", types.LevelError, 70, "Lint failed: %d file(s) with findings", len(flagged))
	issue.FixCommand = rc.Settings.LintCommand
	issue.Suggestion = "Fix the reported findings or adjust the linter configuration"
	issue.EstimatedTime = "1-2 hours"
	if len(flagged) > 0 {
		issue.File = flagged[0]
		issue.Metadata = map[string]string{"files": strings.Join(flagged, ", ")}
	}
	result.Issues = append(result.Issues, issue)
	return result, nil
}

func lintFlaggedFiles(output string) []string {
	seen := make(map[string]bool)
	var files []string
	for _, line := range strings.Split(output, "\n") {
		m := lintLocationRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		file := strings.TrimPrefix(m[1], "./")
		if seen[file] {
			continue
		}
		seen[file] = true
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

// CoverageProbe reads the total test coverage from the coverage command.
type CoverageProbe struct{}

var (
	percentRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	goPkgCoverRe   = regexp.MustCompile(`coverage:\s+(\d+(?:\.\d+)?)% of statements`)
	coverageTotals = []string{"TOTAL", "total:"}
)

// Name implements Probe.
func (p *CoverageProbe) Name() string { return "test_coverage" }

// Dimension implements Probe.
func (p *CoverageProbe) Dimension() Dimension { return DimensionCodeQuality }

// Philosophy implements Probe.
func (p *CoverageProbe) Philosophy() string {
	return "Untested code is unverified code. Coverage shows where changes can land without a safety net."
}

// Cost implements Probe.
func (p *CoverageProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 30 * time.Second, RunsCommand: true, Category: CostExpensive}
}

// Check implements Probe.
func (p *CoverageProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	run, err := runDelegated(ctx, rc, rc.Settings.CoverageCommand)
	if err != nil {
		return nil, err
	}
	pct, ok := ParseCoverage(run.Output)
	if !ok {
		if !run.Passed {
			return nil, fmt.Errorf("%s failed with exit code %d", rc.Settings.CoverageCommand, run.ExitCode)
		}
		return nil, fmt.Errorf("no coverage percentage in %s output", rc.Settings.CoverageCommand)
	}
	result := newResult(p, pct, "%")
	result.SetDetail("command", rc.Settings.CoverageCommand)
	if !run.Passed {
		result.SetDetail("exit_code", run.ExitCode)
		issue := newIssue(p, "CQ-002", types.LevelError, 75, "Test suite failed while measuring coverage")
		issue.FixCommand = rc.Settings.CoverageCommand
		result.Issues = append(result.Issues, issue)
	}
	return result, nil
}

// ParseCoverage extracts total coverage from coverage tool output. A
// TOTAL (coverage.py) or total: (go tool cover) line wins; otherwise Go
// per-package percentages are averaged.
func ParseCoverage(output string) (float64, bool) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		for _, prefix := range coverageTotals {
			if !strings.HasPrefix(line, prefix) {
				continue
			}
			matches := percentRe.FindAllStringSubmatch(line, -1)
			if len(matches) == 0 {
				continue
			}
			if v, err := strconv.ParseFloat(matches[len(matches)-1][1], 64); err == nil {
				return v, true
			}
		}
	}

	var sum float64
	n := 0
	for _, m := range goPkgCoverRe.FindAllStringSubmatch(output, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ComplexityProbe measures mean cyclomatic complexity per function.
type ComplexityProbe struct{}

// Name implements Probe.
func (p *ComplexityProbe) Name() string { return "avg_complexity" }

// Dimension implements Probe.
func (p *ComplexityProbe) Dimension() Dimension { return DimensionCodeQuality }

// Philosophy implements Probe.
func (p *ComplexityProbe) Philosophy() string {
	return "Functions with many branches are hard to test and harder to change. Keep each one small enough to hold in your head."
}

// Cost implements Probe.
func (p *ComplexityProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 3 * time.Second, RequiresFullScan: true, Category: CostModerate}
}

// Check implements Probe.
func (p *ComplexityProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	report, err := rc.Complexity()
	if err != nil {
		return nil, err
	}
	result := newResult(p, Round2(report.Average), "complexity")
	result.SetDetail("functions", len(report.Functions))
	result.SetDetail("max", report.Max)
	result.SetDetail("p95", report.Distribution.P95)
	for _, class := range []string{ClassExcellent, ClassGood, ClassAcceptable, ClassWarning, ClassCritical} {
		result.SetDetail(class, report.ByClass[class])
	}
	if len(report.ParseErrors) > 0 {
		result.SetDetail("parse_errors", len(report.ParseErrors))
	}

	for _, fn := range report.Functions {
		if fn.Class != ClassCritical {
			continue
		}
		issue := newIssue(p, "CQ-003", types.LevelWarning, 55,
			"Function %s has cyclomatic complexity %d", fn.Function, fn.Complexity)
		issue.File = fn.FilePath
		issue.Line = fn.Line
		issue.Suggestion = fmt.Sprintf("Split %s into smaller functions (target ≤ %d)", fn.Function, rc.Probes.Complexity.Good)
		issue.EstimatedTime = "1 hour"
		result.Issues = append(result.Issues, issue)
	}
	return result, nil
}

// TypeAnnotationProbe measures the share of fully annotated functions.
type TypeAnnotationProbe struct{}

// Name implements Probe.
func (p *TypeAnnotationProbe) Name() string { return "type_annotation" }

// Dimension implements Probe.
func (p *TypeAnnotationProbe) Dimension() Dimension { return DimensionCodeQuality }

// Philosophy implements Probe.
func (p *TypeAnnotationProbe) Philosophy() string {
	return "Type annotations are documentation the toolchain checks for you."
}

// Cost implements Probe.
func (p *TypeAnnotationProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 3 * time.Second, RequiresFullScan: true, Category: CostModerate}
}

// Check implements Probe.
func (p *TypeAnnotationProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	report, err := rc.Complexity()
	if err != nil {
		return nil, err
	}
	result := newResult(p, Percent(report.Annotated, len(report.Functions)), "%")
	result.SetDetail("functions", len(report.Functions))
	result.SetDetail("annotated", report.Annotated)

	missing := make(map[string]int)
	for _, fn := range report.Functions {
		if !fn.Annotated {
			missing[fn.FilePath]++
		}
	}
	files := make([]string, 0, len(missing))
	for f := range missing {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		issue := newIssue(p, "CQ-004", types.LevelSuggestion, 25, "%d function(s) without a return annotation", missing[f])
		issue.File = f
		issue.EstimatedTime = "15 minutes"
		result.Issues = append(result.Issues, issue)
	}
	return result, nil
}
