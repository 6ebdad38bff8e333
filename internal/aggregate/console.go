package aggregate

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// clusterPreview is how many issues of each cluster the console shows.
const clusterPreview = 3

// WriteConsole prints the summary.
func WriteConsole(w io.Writer, s *Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "%s %d issues in %d clusters\n\n", cyan("▶"), s.TotalIssues, len(s.Clusters))
	for _, c := range s.Clusters {
		fmt.Fprintf(w, "%s (%d, priority sum %d)\n", bold(c.Name), c.Count, c.TotalPriority)
		for k, i := range c.Issues {
			if k == clusterPreview {
				fmt.Fprintf(w, "  … %d more\n", len(c.Issues)-clusterPreview)
				break
			}
			fmt.Fprintf(w, "  - [%s] %s\n", i.Rule, i.Message)
		}
	}

	if len(s.RootCauses) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Root causes"))
		for _, rc := range s.RootCauses {
			fmt.Fprintf(w, "%s %s (%d issues, %s, %s)\n", yellow("!"), rc.Title, rc.SupportingIssues, rc.ExpectedImprovement, rc.EstimatedTime)
			for _, line := range strings.Split(rc.FixScript, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}

	if len(s.QuickWins) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Quick wins"))
		for _, i := range s.QuickWins {
			loc := i.LocationString()
			if loc != "" {
				loc = " " + loc
			}
			fmt.Fprintf(w, "%s [%s] %s%s (%s)\n", green("✓"), i.Rule, i.Message, loc, i.EstimatedTime)
		}
	}

	p := s.Potential
	fmt.Fprintf(w, "\nImprovement potential: %.1f (immediate %.1f, short term %.1f, long term %.1f)\n",
		p.Total, p.Immediate, p.ShortTerm, p.LongTerm)
}
