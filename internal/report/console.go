package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/scoring"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// consoleIssueLimit bounds the issues printed without --detailed.
const consoleIssueLimit = 10

// WriteConsole prints the colored run summary. detailed adds every metric
// row and every issue.
func WriteConsole(w io.Writer, r *health.HealthReport, detailed bool) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Fprintf(w, "\n%s Repository health\n\n", cyan("⚕"))

	if !r.BlockerOnly {
		fmt.Fprintf(w, "  Score: %s %.1f / 100  grade %s", RenderProgressBar(r.OverallScore, 30), r.OverallScore, r.Grade)
		if r.GradeLabel != "" {
			fmt.Fprintf(w, " (%s)", r.GradeLabel)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w)

		for _, d := range r.Dimensions {
			fmt.Fprintf(w, "  %s %-18s %5.1f / %-4.0f %5.1f%%\n", d.Status, d.Name, d.ActualScore, d.MaxPoints, d.Percentage)
			if !detailed {
				continue
			}
			for _, m := range d.Metrics {
				value := fmt.Sprintf("%g %s", m.Value, m.Unit)
				if m.Error != "" {
					value = red("error: " + m.Error)
				}
				fmt.Fprintf(w, "      %s %-26s %5.1f / %-4.1f %s\n", m.Status, m.Name, m.Score, m.MaxScore, strings.TrimSpace(value))
			}
		}
		fmt.Fprintln(w)
	}

	counts := make([]string, 0, len(types.Levels))
	for _, l := range types.Levels {
		counts = append(counts, fmt.Sprintf("%s=%d", l, r.IssuesByLevel[l]))
	}
	fmt.Fprintf(w, "  Issues: %d (%s)\n", r.TotalIssues, strings.Join(counts, " "))

	limit := consoleIssueLimit
	if detailed {
		limit = len(r.Issues)
	}
	for n, i := range r.Issues {
		if n >= limit {
			fmt.Fprintf(w, "    … %d more (use --detailed)\n", len(r.Issues)-limit)
			break
		}
		mark := yellow("!")
		if i.IsBlocker() || i.Level == types.LevelError {
			mark = red("✗")
		}
		loc := ""
		if l := i.LocationString(); l != "" {
			loc = " " + l
		}
		fmt.Fprintf(w, "    %s [%s] %s%s\n", mark, i.Rule, i.Message, loc)
	}

	if len(r.Penalties) > 0 {
		fmt.Fprintf(w, "\n  %s strict thresholds missed (advisory, -%.1f points):\n", yellow("⚠"), r.PenaltyPoints())
		for _, p := range r.Penalties {
			fmt.Fprintf(w, "    - %s = %g (strict %g, %s, -%.1f)\n", p.Metric, p.Value, p.Strict, p.Priority, p.Points)
		}
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintf(w, "\n  %s Recommendations:\n", cyan("→"))
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "    [%s] %s\n", rec.Priority, rec.Message)
		}
	}

	fmt.Fprintln(w)
	if r.Passed {
		fmt.Fprintf(w, "%s Health check passed\n", green("✓"))
	} else {
		fmt.Fprintf(w, "%s Health check failed\n", red("✗"))
	}
}

// RenderProgressBar renders a score in [0,100] as a colored bar.
func RenderProgressBar(score float64, width int) string {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	filled := int(score / 100.0 * float64(width))

	var barColor *color.Color
	switch scoring.Status(score, 100) {
	case scoring.StatusGood:
		barColor = color.New(color.FgGreen)
	case scoring.StatusWarn:
		barColor = color.New(color.FgYellow)
	default:
		barColor = color.New(color.FgRed, color.Bold)
	}

	var bar strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			bar.WriteString(barColor.Sprint("█"))
		} else {
			bar.WriteString(color.New(color.FgHiBlack).Sprint("░"))
		}
	}
	return fmt.Sprintf("[%s]", bar.String())
}
