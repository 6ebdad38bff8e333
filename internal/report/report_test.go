package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/scoring"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

func sampleReport() *health.HealthReport {
	r := &health.HealthReport{
		RunID:        "run-1",
		Timestamp:    time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		Duration:     1.5,
		OverallScore: 72.5,
		Grade:        "C",
		GradeLabel:   "Fair",
		Passed:       true,
		Dimensions: []health.DimensionResult{{
			ID:          "code_quality",
			Name:        "Code Quality",
			Weight:      0.3,
			MaxPoints:   30,
			ActualScore: 20,
			Percentage:  66.7,
			Status:      scoring.StatusWarn,
			Metrics: []health.MetricResult{
				{Name: "lint_pass_rate", Value: 100, Unit: "%", Score: 10, MaxScore: 10, Status: scoring.StatusGood},
				{Name: "test_coverage", Score: 0, MaxScore: 10, Status: scoring.StatusBad, Error: "timeout"},
			},
		}},
		Recommendations: []scoring.Fired{{Priority: types.PriorityHigh, Message: "Raise coverage", Actions: []string{"make test_coverage"}}},
	}
	issues := []types.Issue{
		{Level: types.LevelBlocker, Category: types.CategorySecurity, Rule: "BLOCKER-001", Message: "Possible password committed", File: "config/prod.yaml", Line: 1, Priority: 100, EstimatedTime: "15 minutes"},
		{Level: types.LevelError, Category: types.CategoryCodeQuality, Rule: "CQ-002", Message: "Tests failed, with \"quotes\", commas", Priority: 75, FixCommand: "make test"},
		{Level: types.LevelWarning, Category: types.CategoryDocumentation, Rule: "DOC-001", Message: "Module docs missing", Priority: 50},
	}
	for n := 0; n < 4; n++ {
		issues = append(issues, types.Issue{
			Level: types.LevelSuggestion, Category: types.CategoryAIFriendliness,
			Rule: fmt.Sprintf("AI-00%d", n+1), Message: fmt.Sprintf("suggestion %d", n), Priority: 10 + n,
		})
	}
	r.SetIssues(issues)
	return r
}

func TestWriteAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()
	w := NewWriter(dir, 2)

	arts, err := w.WriteAll(r)
	require.NoError(t, err)
	for _, p := range arts.Paths() {
		assert.FileExists(t, p)
	}
	assert.True(t, strings.HasSuffix(arts.JSON, "health-report-20260301-123000.json"))

	got, err := ReadJSON(arts.JSON)
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.Equal(t, 7, got.TotalIssues)
	assert.Equal(t, 1, got.IssuesByLevel[types.LevelBlocker])
	assert.Equal(t, 4, got.IssuesByLevel[types.LevelSuggestion])

	md, err := os.ReadFile(arts.Markdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "- [health-report-20260301-123000.csv](health-report-20260301-123000.csv)")
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReport().Issues))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, []string{"Rule", "Level", "Category", "Message", "File", "Line",
		"Suggestion", "Fix Command", "Estimated Time", "Priority"}, rows[0])
	assert.Equal(t, []string{"BLOCKER-001", "blocker", "security", "Possible password committed",
		"config/prod.yaml", "1", "", "", "15 minutes", "100"}, rows[1])
	assert.Equal(t, "Tests failed, with \"quotes\", commas", rows[2][3])
	assert.Equal(t, "", rows[2][5])
}

func TestRenderMarkdownSections(t *testing.T) {
	md := RenderMarkdown(sampleReport(), MarkdownOptions{TopSuggestions: 2})

	sections := []string{
		"# Repository Health Report",
		"## Executive Summary",
		"## Blocker Issues (1)",
		"## Errors (1)",
		"## Warnings (1)",
		"## Suggestions (4)",
		"## Improvement Roadmap",
		"## Attachments",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(md, s)
		require.GreaterOrEqual(t, idx, 0, s)
		assert.Greater(t, idx, last, "%s out of order", s)
		last = idx
	}

	assert.Contains(t, md, "… 2 more")
	// highest-priority suggestions are kept
	assert.Contains(t, md, "### [AI-004] suggestion 3")
	assert.NotContains(t, md, "### [AI-001] suggestion 0")
	assert.Contains(t, md, "| | test_coverage | error: timeout | 0.0 / 10.0 | ❌ |")
	assert.Contains(t, md, "- **Grade:** C (Fair)")
	assert.Contains(t, md, "| blocker | 1 |")
	assert.Contains(t, md, "- [high] Raise coverage")
}

func TestRenderMarkdown_BlockerRuleWithErrorLevel(t *testing.T) {
	r := sampleReport()
	issues := append(r.Issues, types.Issue{
		Level: types.LevelError, Category: types.CategoryArchitecture, Rule: "BLOCKER-002",
		Message: "Circular dependency: a -> b -> a", Priority: 100,
	})
	r.SetIssues(issues)
	r.Penalties = []health.Penalty{
		{Metric: "test_coverage", Value: 72, Strict: 80, Priority: types.PriorityHigh, Points: 7.5},
		{Metric: "avg_complexity", Value: 12.5, Strict: 10, Priority: types.PriorityMedium, Points: 5},
	}

	md := RenderMarkdown(r, MarkdownOptions{})
	assert.Contains(t, md, "| blocker | 2 |")
	assert.Contains(t, md, "| error | 1 |")
	assert.Contains(t, md, "## Blocker Issues (2)")
	assert.Contains(t, md, "## Errors (1)")
	assert.Contains(t, md, "**Strict penalties (advisory, -12.5 points):**")
}

func TestBuildRoadmap(t *testing.T) {
	var issues []types.Issue
	for n := 0; n < 7; n++ {
		issues = append(issues, types.Issue{Level: types.LevelError, Rule: "E", Message: "e", Priority: 80 + n})
	}
	for n := 0; n < 12; n++ {
		issues = append(issues, types.Issue{Level: types.LevelWarning, Rule: "W", Message: "w", Priority: 40})
	}
	issues = append(issues,
		types.Issue{Level: types.LevelInfo, Rule: "I", Message: "i", Priority: 20},
		types.Issue{Level: types.LevelSuggestion, Rule: "BLOCKER-003", Message: "b", Priority: 10},
	)

	rm := BuildRoadmap(issues)
	assert.Len(t, rm.Immediate, 8)
	assert.Equal(t, 86, rm.Immediate[0].Priority)
	assert.Len(t, rm.ShortTerm, 12)
	assert.Len(t, rm.LongTerm, 1)

	r := &health.HealthReport{}
	r.SetIssues(issues)
	md := RenderMarkdown(r, MarkdownOptions{})
	assert.Contains(t, md, "**Immediate** (8)")
	assert.Contains(t, md, "- … 3 more")
	assert.Contains(t, md, "- … 2 more")
}

func TestWriteConsole(t *testing.T) {
	var buf bytes.Buffer
	WriteConsole(&buf, sampleReport(), true)
	out := buf.String()
	assert.Contains(t, out, "72.5 / 100")
	assert.Contains(t, out, "error: timeout")
	assert.Contains(t, out, "[BLOCKER-001] Possible password committed config/prod.yaml:1")
	assert.Contains(t, out, "Health check passed")
}

func TestWritePrometheusTextfile(t *testing.T) {
	path := t.TempDir() + "/metrics/repokit.prom"
	require.NoError(t, WritePrometheusTextfile(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "repokit_health_total_score 72.5")
	assert.Contains(t, out, `repokit_health_dimension_percentage{dimension="code_quality"} 66.7`)
	assert.Contains(t, out, `repokit_health_metric_score{dimension="code_quality",metric="lint_pass_rate"} 10`)
	assert.Contains(t, out, `repokit_health_issues{level="suggestion"} 4`)
}

func TestLatestJSON(t *testing.T) {
	dir := t.TempDir()
	_, err := LatestJSON(dir)
	require.ErrorIs(t, err, ErrNoReport)

	for _, name := range []string{
		"health-report-20260301-120000.json",
		"health-report-20260302-090000.json",
		"health-report-20260302-090000.md",
		"health-report-20260228-235959.json",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	got, err := LatestJSON(dir)
	require.NoError(t, err)
	assert.Equal(t, "health-report-20260302-090000.json", filepath.Base(got))
}
