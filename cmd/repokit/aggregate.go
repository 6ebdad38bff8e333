package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/aggregate"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/report"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Cluster report issues into root causes and quick wins",
	Long: `Read a JSON health report (default: the newest in the reports directory)
and group its issues into clusters, root causes with fix scripts, quick wins
and an improvement estimate.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("report")
		asJSON, _ := cmd.Flags().GetBool("json")
		if err := runAggregate(settings, path, asJSON, os.Stdout); err != nil {
			fail(err)
		}
	},
}

func init() {
	aggregateCmd.Flags().String("report", "", "JSON health report (default: newest health-report-*.json)")
	aggregateCmd.Flags().Bool("json", false, "Output in JSON format")
	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(s config.Settings, path string, asJSON bool, out io.Writer) error {
	if path == "" {
		latest, err := report.LatestJSON(s.Path(s.ReportsDir))
		if err != nil {
			return err
		}
		path = latest
	} else {
		path = s.Path(path)
	}
	r, err := report.ReadJSON(path)
	if err != nil {
		return err
	}
	summary := aggregate.Aggregate(r.Issues)
	if asJSON {
		return writeJSON(out, summary)
	}
	aggregate.WriteConsole(out, summary)
	return nil
}
