package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/gates"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/healthcheck"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/report"
)

var healthCheckCmd = &cobra.Command{
	Use:   "health-check",
	Short: "Score repository health",
	Long: `Run every probe of the scoring model and report a 0-100 health score.

Examples:
  # Console summary
  repokit health-check

  # Every metric and every issue
  repokit health-check --detailed

  # Strict mode: blockers fail the run before scoring
  repokit health-check --strict --blocker-fail

  # JSON to a file
  repokit health-check --format json --output /tmp/health.json`,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		strictMode, _ := cmd.Flags().GetBool("strict")
		detailed, _ := cmd.Flags().GetBool("detailed")
		blockerFail, _ := cmd.Flags().GetBool("blocker-fail")
		cont, _ := cmd.Flags().GetBool("continue")
		textfile, _ := cmd.Flags().GetString("metrics-textfile")

		opts := healthcheck.Options{
			Strict:            strictMode,
			BlockerFail:       blockerFail,
			ContinueOnBlocker: cont,
			Detailed:          detailed,
			Format:            format,
			Output:            output,
			MetricsTextfile:   textfile,
		}
		code, err := runHealthCheck(context.Background(), settings, nil, opts, os.Stdout)
		if err != nil {
			fail(err)
		}
		os.Exit(code)
	},
}

func init() {
	healthCheckCmd.Flags().String("format", healthcheck.FormatConsole, "Output format: console, json, markdown or all")
	healthCheckCmd.Flags().String("output", "", "Write the json or markdown report to this file instead of the reports directory")
	healthCheckCmd.Flags().Bool("strict", false, "Run blocker checks and strict thresholds")
	healthCheckCmd.Flags().Bool("detailed", false, "Show every metric and every issue")
	healthCheckCmd.Flags().Bool("blocker-fail", false, "Stop with exit 1 when a blocker is found")
	healthCheckCmd.Flags().Bool("continue", false, "Keep scoring after blockers even with --blocker-fail")
	healthCheckCmd.Flags().String("metrics-textfile", "", "Write Prometheus gauges to this textfile")
	rootCmd.AddCommand(healthCheckCmd)
}

// runHealthCheck runs the engine and renders its result to out. runner nil
// means real subprocesses.
func runHealthCheck(ctx context.Context, s config.Settings, runner gates.CommandRunner, opts healthcheck.Options, out io.Writer) (int, error) {
	switch opts.Format {
	case healthcheck.FormatConsole, healthcheck.FormatJSON, healthcheck.FormatMarkdown, healthcheck.FormatAll:
	default:
		return healthcheck.ExitConfig, fmt.Errorf("unknown format %q (want console, json, markdown or all)", opts.Format)
	}

	engine, err := healthcheck.New(s, runner)
	if err != nil {
		return healthcheck.ExitConfig, err
	}
	res, err := engine.Run(ctx, opts)
	if err != nil {
		return healthcheck.ExitConfig, err
	}

	switch {
	case opts.Format == healthcheck.FormatJSON && opts.Output == "":
		if err := report.WriteJSON(out, res.Report); err != nil {
			return healthcheck.ExitConfig, err
		}
	case opts.Format == healthcheck.FormatMarkdown && opts.Output == "":
		fmt.Fprint(out, report.RenderMarkdown(res.Report, report.MarkdownOptions{TopSuggestions: s.TopSuggestions}))
	case opts.Output != "":
		fmt.Fprintf(out, "%s Report written to %s\n", cyan("→"), opts.Output)
	default:
		report.WriteConsole(out, res.Report, opts.Detailed)
		for _, p := range res.Artifacts.Paths() {
			fmt.Fprintf(out, "  %s %s\n", cyan("→"), p)
		}
	}
	if opts.MetricsTextfile != "" && opts.Format == healthcheck.FormatConsole {
		fmt.Fprintf(out, "  %s %s\n", cyan("→"), opts.MetricsTextfile)
	}
	return res.ExitCode, nil
}
