// Package healthcheck runs the probes of a scoring model against a
// repository and produces the scored health report.
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/gates"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/report"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/scoring"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/strict"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// Exit codes shared by every command.
const (
	ExitPass   = 0
	ExitFail   = 1
	ExitConfig = 2
)

// Output formats.
const (
	FormatConsole  = "console"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatAll      = "all"
)

// MetricRule is the rule id of a metric that scored below half its points.
const MetricRule = "SCORE-001"

// ErrNoProbe is recorded on metrics the model declares but no probe measures.
var ErrNoProbe = errors.New("no probe registered")

// Options select the mode of one run.
type Options struct {
	Strict            bool
	BlockerFail       bool
	ContinueOnBlocker bool
	Detailed          bool
	Format            string

	// Output redirects the single artifact of the json and markdown
	// formats. Empty writes the usual artifact set.
	Output string

	// MetricsTextfile, when set, receives Prometheus gauges for the run.
	MetricsTextfile string
}

// Result is the outcome of Run.
type Result struct {
	Report    *health.HealthReport
	Blocked   bool
	ExitCode  int
	Artifacts report.Artifacts
}

// Engine scores a repository.
type Engine struct {
	Settings config.Settings
	Model    *scoring.Model
	Strict   *strict.Config
	Probes   *health.Registry
	Runner   gates.CommandRunner

	// Now and NewRunID are replaced in tests.
	Now      func() time.Time
	NewRunID func() string
}

// New loads the scoring model and the strict document named by settings.
// A missing scoring model falls back to the shipped one. Every load
// failure is a *types.ConfigError.
func New(settings config.Settings, runner gates.CommandRunner) (*Engine, error) {
	model, err := LoadModel(settings)
	if err != nil {
		return nil, err
	}
	strictCfg, err := strict.Load(settings.Path(settings.StrictModel))
	if err != nil {
		return nil, err
	}
	if err := strictCfg.ValidateAgainst(model); err != nil {
		return nil, err
	}
	return &Engine{
		Settings: settings,
		Model:    model,
		Strict:   strictCfg,
		Probes:   health.NewDefaultRegistry(),
		Runner:   runner,
		Now:      time.Now,
		NewRunID: func() string { return uuid.New().String() },
	}, nil
}

// LoadModel reads the scoring model named by settings, or the shipped model
// when the repository has none.
func LoadModel(settings config.Settings) (*scoring.Model, error) {
	path := settings.Path(settings.ScoringModel)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("no scoring model in repository, using built-in", "path", settings.ScoringModel)
		return scoring.Default(), nil
	}
	return scoring.Load(path)
}

// Run executes one health check. The returned error is a configuration or
// internal failure; threshold and blocker failures are reported through
// Result.ExitCode.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	start := e.Now()
	rc, err := health.NewRepoContext(e.Settings, e.Runner)
	if err != nil {
		return nil, err
	}
	rc.Now = e.Now

	r := &health.HealthReport{
		RunID:       e.NewRunID(),
		Timestamp:   start.UTC(),
		Environment: e.Settings.Environment,
		Strict:      opts.Strict,
	}

	var blockers []types.Issue
	if opts.Strict {
		blockers, err = strict.NewChecker(e.Strict, rc).Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("strict checks: %w", err)
		}
		if len(blockers) > 0 && opts.BlockerFail && !opts.ContinueOnBlocker {
			return e.finishBlocked(r, blockers, start, opts)
		}
	}

	var issues []types.Issue
	for i := range e.Model.Dimensions {
		dr, found, err := e.scoreDimension(ctx, rc, &e.Model.Dimensions[i])
		if err != nil {
			return nil, err
		}
		r.Dimensions = append(r.Dimensions, dr)
		issues = append(issues, found...)
	}

	total := 0.0
	for _, d := range r.Dimensions {
		total += d.ActualScore
	}
	r.OverallScore = scoring.Round1(total)
	if grade, ok := e.Model.Grade(r.OverallScore); ok {
		r.Grade = grade.ID
		r.GradeLabel = grade.Label
	}
	r.Recommendations = e.Model.Recommend(r)

	if opts.Strict {
		var strictIssues []types.Issue
		r.Penalties, strictIssues = e.Strict.Penalties(e.Model, r)
		issues = append(issues, strictIssues...)
		issues = append(issues, blockers...)
	}
	issues = dedupe(issues)
	if opts.Detailed {
		loadContext(e.Settings.Root, issues)
	}
	r.SetIssues(issues)
	r.Passed = r.OverallScore >= e.Settings.PassThreshold-scoring.Epsilon && len(types.Blockers(r.Issues)) == 0
	r.Duration = e.Now().Sub(start).Seconds()

	res := &Result{Report: r, ExitCode: ExitPass}
	if !r.Passed {
		res.ExitCode = ExitFail
	}
	if err := e.writeOutputs(res, opts); err != nil {
		return nil, err
	}
	if err := AppendHistory(e.Settings.Path(e.Settings.HistoryFile), r, e.Settings.HistoryLimit); err != nil {
		return nil, err
	}
	return res, nil
}

// finishBlocked writes the blocker-only report. Blocked runs are not
// scored and do not enter the history.
func (e *Engine) finishBlocked(r *health.HealthReport, blockers []types.Issue, start time.Time, opts Options) (*Result, error) {
	r.BlockerOnly = true
	r.SetIssues(blockers)
	r.Duration = e.Now().Sub(start).Seconds()
	slog.Debug("strict blockers found", "count", len(blockers))

	res := &Result{Report: r, Blocked: true, ExitCode: ExitFail}
	if err := e.writeOutputs(res, opts); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) scoreDimension(ctx context.Context, rc *health.RepoContext, dim *scoring.Dimension) (health.DimensionResult, []types.Issue, error) {
	dr := health.DimensionResult{
		ID:        dim.ID,
		Name:      dim.Name,
		Weight:    dim.Weight,
		MaxPoints: dim.MaxPoints,
	}
	var issues []types.Issue
	sum := 0.0
	for j := range dim.Metrics {
		metric := &dim.Metrics[j]
		mr := e.measure(ctx, rc, metric)
		if err := ctx.Err(); err != nil {
			// interrupted: no partial report
			return dr, nil, err
		}
		issues = append(issues, valid(mr.Issues)...)
		if issue, ok := metricIssue(dim, metric, mr); ok {
			issues = append(issues, issue)
		}
		sum += mr.Score
		dr.Metrics = append(dr.Metrics, *mr)
	}
	dr.ActualScore = scoring.Round1(sum)
	if dr.ActualScore > dr.MaxPoints {
		dr.ActualScore = dr.MaxPoints
	}
	if dr.MaxPoints > 0 {
		dr.Percentage = scoring.Round1(dr.ActualScore / dr.MaxPoints * 100)
	}
	dr.Status = scoring.Status(dr.ActualScore, dr.MaxPoints)
	return dr, issues, nil
}

// measure runs one probe under the probe timeout and scores its value.
// Probe failures are recorded on the result, never returned.
func (e *Engine) measure(ctx context.Context, rc *health.RepoContext, metric *scoring.Metric) *health.MetricResult {
	var mr *health.MetricResult
	probe, ok := e.Probes.Get(metric.ID)
	if !ok {
		mr = &health.MetricResult{Error: ErrNoProbe.Error()}
	} else {
		cost := probe.Cost()
		slog.Debug("running probe", "metric", metric.ID, "cost", cost.Category,
			"estimate", cost.EstimatedDuration, "runs_command", cost.RunsCommand)
		pctx, cancel := context.WithTimeout(ctx, e.Settings.ProbeTimeout)
		res, err := probe.Check(pctx, rc)
		timedOut := pctx.Err() == context.DeadlineExceeded
		cancel()
		switch {
		case err != nil:
			mr = &health.MetricResult{Error: probeError(err, timedOut)}
			slog.Warn("probe failed", "metric", metric.ID, "error", err)
		case res == nil:
			mr = &health.MetricResult{Error: "probe returned no result"}
		default:
			mr = res
		}
	}

	mr.Name = metric.ID
	mr.MaxScore = metric.MaxPoints
	if mr.Unit == "" {
		mr.Unit = metric.Unit
	}
	if mr.Error != "" {
		mr.Score = 0
		mr.Status = scoring.StatusBad
		mr.Issues = nil
		return mr
	}
	mr.Score = scoring.Round1(metric.Score(mr.Value))
	mr.Status = scoring.Status(mr.Score, mr.MaxScore)
	return mr
}

func probeError(err error, timedOut bool) string {
	if timedOut || errors.Is(err, gates.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return gates.ErrTimeout.Error()
	}
	return err.Error()
}

// metricIssue turns a ❌ metric into a finding so it shows up in the
// roadmap.
func metricIssue(dim *scoring.Dimension, metric *scoring.Metric, mr *health.MetricResult) (types.Issue, bool) {
	if mr.Status != scoring.StatusBad {
		return types.Issue{}, false
	}
	issue := types.Issue{
		Level:      types.LevelWarning,
		Category:   types.Category(dim.ID),
		Rule:       MetricRule,
		Priority:   50,
		Suggestion: metric.Description,
		Tags:       []string{"metric", metric.ID},
	}
	if mr.Error != "" {
		issue.Level = types.LevelError
		issue.Priority = 60
		issue.Message = fmt.Sprintf("%s could not be measured: %s", metric.ID, mr.Error)
		return issue, true
	}
	issue.Message = fmt.Sprintf("%s scored %g/%g (value %g%s)", metric.ID, mr.Score, mr.MaxScore, mr.Value, unitSuffix(mr.Unit))
	return issue, true
}

func unitSuffix(unit string) string {
	switch unit {
	case "":
		return ""
	case "%":
		return "%"
	}
	return " " + unit
}

// dedupe drops repeated findings; the strict secret scan and the security
// probe report the same leaks.
func dedupe(issues []types.Issue) []types.Issue {
	seen := make(map[string]bool, len(issues))
	out := issues[:0]
	for _, i := range issues {
		key := i.Rule + "|" + i.LocationString() + "|" + i.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, i)
	}
	return out
}

// valid drops probe findings that fail Issue.Validate.
func valid(issues []types.Issue) []types.Issue {
	out := make([]types.Issue, 0, len(issues))
	for _, i := range issues {
		if err := i.Validate(); err != nil {
			slog.Warn("dropping invalid issue", "rule", i.Rule, "error", err)
			continue
		}
		out = append(out, i)
	}
	return out
}

// contextLines is how many source lines surround an issue in detailed
// reports.
const contextLines = 3

// loadContext attaches surrounding source lines to located issues. Security
// findings are skipped so secrets stay masked.
func loadContext(root string, issues []types.Issue) {
	for n := range issues {
		i := &issues[n]
		if i.Category == types.CategorySecurity {
			continue
		}
		if err := i.LoadContext(root, contextLines, contextLines); err != nil {
			slog.Debug("no context for issue", "rule", i.Rule, "error", err)
		}
	}
}

func (e *Engine) writeOutputs(res *Result, opts Options) error {
	r := res.Report
	switch {
	case opts.Output != "" && opts.Format == FormatJSON:
		data, err := report.MarshalJSON(r)
		if err != nil {
			return err
		}
		if err := repo.WriteFileAtomic(opts.Output, data, 0644); err != nil {
			return err
		}
		res.Artifacts = report.Artifacts{JSON: opts.Output}
	case opts.Output != "" && opts.Format == FormatMarkdown:
		md := report.RenderMarkdown(r, report.MarkdownOptions{TopSuggestions: e.Settings.TopSuggestions, WithContext: opts.Detailed})
		if err := repo.WriteFileAtomic(opts.Output, []byte(md), 0644); err != nil {
			return err
		}
		res.Artifacts = report.Artifacts{Markdown: opts.Output}
	default:
		w := report.NewWriter(e.Settings.Path(e.Settings.ReportsDir), e.Settings.TopSuggestions)
		w.WithContext = opts.Detailed
		arts, err := w.WriteAll(r)
		if err != nil {
			return err
		}
		res.Artifacts = arts
	}

	if opts.MetricsTextfile != "" {
		if err := report.WritePrometheusTextfile(opts.MetricsTextfile, r); err != nil {
			return err
		}
	}
	return nil
}
