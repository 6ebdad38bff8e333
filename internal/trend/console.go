package trend

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// WriteConsole prints the analysis with one bar per run.
func WriteConsole(w io.Writer, a *Analysis) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(w, "%s Health trend (last %d days, %d runs)\n\n", cyan("▶"), a.WindowDays, a.Runs)
	if a.Runs == 0 {
		fmt.Fprintln(w, "  No runs recorded. Run \"repokit health-check\" first.")
		return
	}

	for _, p := range a.Points {
		fmt.Fprintf(w, "  %-14s %s %5.1f\n", humanize.Time(p.Timestamp), scoreBar(p.Score, 20), p.Score)
	}
	fmt.Fprintln(w)

	status := a.Trend
	var label string
	switch status {
	case Improving:
		label = green(string(status))
	case Declining:
		label = red(string(status))
	case InsufficientData:
		label = yellow(string(status))
	default:
		label = string(status)
	}
	fmt.Fprintf(w, "Trend:    %s\n", label)
	fmt.Fprintf(w, "Current:  %.1f (first %.1f, change %+.1f)\n", a.CurrentScore, a.FirstScore, a.Change)
	fmt.Fprintf(w, "Velocity: %+.2f points/week\n", a.Velocity)
	if a.WeeksTo100 != nil {
		fmt.Fprintf(w, "Projection: 100 in ~%.0f weeks\n", math.Ceil(*a.WeeksTo100))
	}
	if a.Regression {
		fmt.Fprintf(w, "%s Regression: last run dropped %.1f points\n", red("✗"), -a.RegressionDelta)
	}

	var moved []MetricTrend
	for _, m := range a.Metrics {
		if m.Direction != "flat" {
			moved = append(moved, m)
		}
	}
	if len(moved) > 0 {
		fmt.Fprintln(w, "\nChanged metrics:")
		for _, m := range moved {
			arrow := green("↑")
			if m.Direction == "down" {
				arrow = red("↓")
			}
			fmt.Fprintf(w, "  %s %-40s %g → %g (%+g)\n", arrow, m.Name, m.First, m.Last, m.Delta)
		}
	}
}

func scoreBar(score float64, width int) string {
	filled := int(math.Round(score / 100 * float64(width)))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
