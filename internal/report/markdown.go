package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// MarkdownOptions tunes RenderMarkdown.
type MarkdownOptions struct {
	// TopSuggestions bounds the suggestions section.
	TopSuggestions int

	// Attachments are listed in the last section, usually the sibling
	// JSON and CSV artifacts.
	Attachments []string

	// WithContext renders snippet blocks for issues that carry one.
	WithContext bool
}

// Roadmap sorts issues into fix-now, fix-soon and fix-eventually buckets.
type Roadmap struct {
	Immediate []types.Issue `json:"immediate"`
	ShortTerm []types.Issue `json:"short_term"`
	LongTerm  []types.Issue `json:"long_term"`
}

// BuildRoadmap buckets issues: blockers and high-priority issues are
// immediate, remaining errors and warnings short-term, info and
// suggestions long-term. Each bucket is ordered by descending priority.
func BuildRoadmap(issues []types.Issue) Roadmap {
	var rm Roadmap
	for _, i := range issues {
		switch {
		case i.IsBlocker() || i.IsHighPriority():
			rm.Immediate = append(rm.Immediate, i)
		case i.Level == types.LevelError || i.Level == types.LevelWarning:
			rm.ShortTerm = append(rm.ShortTerm, i)
		default:
			rm.LongTerm = append(rm.LongTerm, i)
		}
	}
	types.SortByPriority(rm.Immediate)
	types.SortByPriority(rm.ShortTerm)
	types.SortByPriority(rm.LongTerm)
	return rm
}

// GroupIssues partitions issues by category, each group sorted by
// descending priority. Groups come back in category order.
func GroupIssues(issues []types.Issue) []IssueGroup {
	byCat := make(map[types.Category][]types.Issue)
	for _, i := range issues {
		byCat[i.Category] = append(byCat[i.Category], i)
	}
	cats := make([]types.Category, 0, len(byCat))
	for c := range byCat {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(a, b int) bool {
		if cats[a].Rank() != cats[b].Rank() {
			return cats[a].Rank() < cats[b].Rank()
		}
		return cats[a] < cats[b]
	})
	groups := make([]IssueGroup, 0, len(cats))
	for _, c := range cats {
		group := byCat[c]
		types.SortByPriority(group)
		groups = append(groups, IssueGroup{Category: c, Issues: group})
	}
	return groups
}

// IssueGroup is the issues of one category.
type IssueGroup struct {
	Category types.Category
	Issues   []types.Issue
}

// RenderMarkdown renders the Markdown report: executive summary, blockers,
// errors, warnings, suggestions, roadmap and attachments, in that order.
func RenderMarkdown(r *health.HealthReport, opts MarkdownOptions) string {
	if opts.TopSuggestions <= 0 {
		opts.TopSuggestions = DefaultTopSuggestions
	}
	var sb strings.Builder

	title := "Repository Health Report"
	if r.BlockerOnly {
		title = "Repository Health Report (blockers only)"
	}
	sb.WriteString("# " + title + "\n\n")
	writeSummary(&sb, r)

	writeIssueSection(&sb, "Blocker Issues", types.FilterLevel(r.Issues, types.LevelBlocker), 0, opts.WithContext)
	writeIssueSection(&sb, "Errors", types.FilterLevel(r.Issues, types.LevelError), 0, opts.WithContext)
	writeIssueSection(&sb, "Warnings", types.FilterLevel(r.Issues, types.LevelWarning), 0, opts.WithContext)
	writeIssueSection(&sb, "Suggestions", types.FilterLevel(r.Issues, types.LevelInfo, types.LevelSuggestion),
		opts.TopSuggestions, opts.WithContext)

	writeRoadmap(&sb, BuildRoadmap(r.Issues))

	sb.WriteString("## Attachments\n\n")
	if len(opts.Attachments) == 0 {
		sb.WriteString("None.\n")
	}
	for _, a := range opts.Attachments {
		sb.WriteString(fmt.Sprintf("- [%s](%s)\n", a, a))
	}
	return sb.String()
}

func writeSummary(sb *strings.Builder, r *health.HealthReport) {
	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Run:** `%s`\n", r.RunID))
	sb.WriteString(fmt.Sprintf("- **Generated:** %s\n", r.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")))
	sb.WriteString(fmt.Sprintf("- **Duration:** %.1fs\n", r.Duration))
	if !r.BlockerOnly {
		grade := r.Grade
		if r.GradeLabel != "" {
			grade = fmt.Sprintf("%s (%s)", r.Grade, r.GradeLabel)
		}
		sb.WriteString(fmt.Sprintf("- **Total score:** %.1f / 100\n", r.OverallScore))
		sb.WriteString(fmt.Sprintf("- **Grade:** %s\n", grade))
	}
	result := "PASS"
	if !r.Passed {
		result = "FAIL"
	}
	sb.WriteString(fmt.Sprintf("- **Result:** %s\n", result))
	sb.WriteString(fmt.Sprintf("- **Total issues:** %d\n\n", r.TotalIssues))

	sb.WriteString("| Severity | Count |\n|----------|-------|\n")
	for _, l := range types.Levels {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", l, r.IssuesByLevel[l]))
	}
	sb.WriteString("\n| Category | Count |\n|----------|-------|\n")
	for _, c := range types.Categories {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", c.Title(), r.IssuesByCategory[c]))
	}
	sb.WriteString("\n")

	if len(r.Dimensions) > 0 {
		sb.WriteString("| Dimension | Metric | Value | Score | Status |\n|-----------|--------|-------|-------|--------|\n")
		for _, d := range r.Dimensions {
			sb.WriteString(fmt.Sprintf("| **%s** | | | %.1f / %.0f (%.1f%%) | %s |\n",
				d.Name, d.ActualScore, d.MaxPoints, d.Percentage, d.Status))
			for _, m := range d.Metrics {
				value := fmt.Sprintf("%g %s", m.Value, m.Unit)
				if m.Error != "" {
					value = "error: " + m.Error
				}
				sb.WriteString(fmt.Sprintf("| | %s | %s | %.1f / %.1f | %s |\n",
					m.Name, strings.TrimSpace(value), m.Score, m.MaxScore, m.Status))
			}
		}
		sb.WriteString("\n")
	}

	if len(r.Penalties) > 0 {
		sb.WriteString(fmt.Sprintf("**Strict penalties (advisory, -%.1f points):**\n\n", r.PenaltyPoints()))
		for _, p := range r.Penalties {
			sb.WriteString(fmt.Sprintf("- `%s` = %g misses strict threshold %g (%s, -%.1f)\n",
				p.Metric, p.Value, p.Strict, p.Priority, p.Points))
		}
		sb.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		sb.WriteString("**Recommendations:**\n\n")
		for _, rec := range r.Recommendations {
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", rec.Priority, rec.Message))
			for _, a := range rec.Actions {
				sb.WriteString("  - " + a + "\n")
			}
		}
		sb.WriteString("\n")
	}
}

// writeIssueSection renders issues grouped by category. limit 0 means all.
func writeIssueSection(sb *strings.Builder, title string, issues []types.Issue, limit int, withContext bool) {
	sb.WriteString(fmt.Sprintf("## %s (%d)\n\n", title, len(issues)))
	if len(issues) == 0 {
		sb.WriteString("None.\n\n")
		return
	}
	shown := 0
	for _, g := range GroupIssues(issues) {
		for _, i := range g.Issues {
			if limit > 0 && shown >= limit {
				break
			}
			sb.WriteString(i.ToMarkdown(withContext))
			shown++
		}
	}
	if rest := len(issues) - shown; rest > 0 {
		sb.WriteString(fmt.Sprintf("… %d more\n\n", rest))
	}
}

func writeRoadmap(sb *strings.Builder, rm Roadmap) {
	sb.WriteString("## Improvement Roadmap\n\n")
	buckets := []struct {
		title  string
		issues []types.Issue
		max    int
	}{
		{"Immediate", rm.Immediate, MaxImmediate},
		{"Short-term", rm.ShortTerm, MaxShortTerm},
		{"Long-term", rm.LongTerm, MaxLongTerm},
	}
	for _, b := range buckets {
		sb.WriteString(fmt.Sprintf("**%s** (%d)\n\n", b.title, len(b.issues)))
		if len(b.issues) == 0 {
			sb.WriteString("- nothing to do\n\n")
			continue
		}
		for n, i := range b.issues {
			if n >= b.max {
				sb.WriteString(fmt.Sprintf("- … %d more\n", len(b.issues)-b.max))
				break
			}
			line := fmt.Sprintf("- [%s] %s", i.Rule, i.Message)
			if i.EstimatedTime != "" {
				line += " (" + i.EstimatedTime + ")"
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}
}
