package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/healthcheck"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/trend"
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Analyze the health score history",
	Long: `Summarize recent health-check runs: score change, weekly velocity,
regressions and per-metric movement. Exits 1 when the latest run regressed.`,
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("days")
		asJSON, _ := cmd.Flags().GetBool("json")

		code, err := runTrend(settings, days, asJSON, time.Now(), os.Stdout)
		if err != nil {
			fail(err)
		}
		os.Exit(code)
	},
}

func init() {
	trendCmd.Flags().Int("days", trend.DefaultWindowDays, "Window of history to analyze, in days")
	trendCmd.Flags().Bool("json", false, "Output in JSON format")
	rootCmd.AddCommand(trendCmd)
}

func runTrend(s config.Settings, days int, asJSON bool, now time.Time, out io.Writer) (int, error) {
	if days < 1 {
		return healthcheck.ExitConfig, fmt.Errorf("--days must be at least 1 (got %d)", days)
	}
	runs, err := healthcheck.LoadHistory(s.Path(s.HistoryFile))
	if err != nil {
		return healthcheck.ExitConfig, err
	}
	a := trend.Analyze(runs, now, days)

	if asJSON {
		if err := writeJSON(out, a); err != nil {
			return healthcheck.ExitConfig, err
		}
	} else {
		trend.WriteConsole(out, a)
	}

	if a.Regression {
		return healthcheck.ExitFail, nil
	}
	return healthcheck.ExitPass, nil
}
