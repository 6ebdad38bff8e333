package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/gates"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/healthcheck"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/triggers"
)

var agentTriggerCmd = &cobra.Command{
	Use:   "agent-trigger",
	Short: "Route a file or prompt to its guardrail and documents",
	Long: `Match a file path or a prompt against the trigger catalog, decide the
guardrail action and list the documents to load.

Exit code is 1 when the action is block, including a declined warning. The
reason for a block is written to stderr.

Examples:
  repokit agent-trigger --file modules/billing/api.py
  repokit agent-trigger --prompt "add a database migration" --dry-run
  repokit agent-trigger --file db/migrations/003.sql --verbose`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		prompt, _ := cmd.Flags().GetString("prompt")
		catalogPath, _ := cmd.Flags().GetString("config")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		in := triggerInput{File: file, Prompt: prompt, Catalog: catalogPath, DryRun: dryRun, Verbose: verboseFlag}
		code, err := runAgentTrigger(context.Background(), settings, in, nil, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			fail(err)
		}
		os.Exit(code)
	},
}

func init() {
	agentTriggerCmd.Flags().String("file", "", "File path to route")
	agentTriggerCmd.Flags().String("prompt", "", "Prompt text to route")
	agentTriggerCmd.Flags().String("config", "", "Trigger catalog (default: doc/orchestration/agent-triggers.yaml)")
	agentTriggerCmd.Flags().Bool("dry-run", false, "Decide without running commands or prompting")
	rootCmd.AddCommand(agentTriggerCmd)
}

type triggerInput struct {
	File    string
	Prompt  string
	Catalog string
	DryRun  bool
	Verbose bool
}

// runAgentTrigger matches the input and decides. decider nil builds the
// terminal decider. The reason for a block goes to errOut.
func runAgentTrigger(ctx context.Context, s config.Settings, in triggerInput, decider *gates.Decider, out, errOut io.Writer) (int, error) {
	if (in.File == "") == (in.Prompt == "") {
		return healthcheck.ExitConfig, errors.New("exactly one of --file or --prompt is required")
	}
	path := in.Catalog
	if path == "" {
		path = s.TriggerCatalog
	}
	catalog, err := triggers.Load(s.Path(path))
	if err != nil {
		return healthcheck.ExitConfig, err
	}

	matcher := triggers.NewMatcher(s.Root, catalog)
	var matches []triggers.Match
	if in.File != "" {
		matches = matcher.MatchFile(in.File)
	} else {
		matches = matcher.MatchPrompt(in.Prompt)
	}

	if in.Verbose {
		fmt.Fprintf(out, "%s %d rule(s) matched\n", cyan("▶"), len(matches))
		for _, m := range matches {
			fmt.Fprintf(out, "  - %s [%s, %s] %s\n", m.Rule.ID, m.Rule.Priority, m.Rule.Enforcement, m.Reason)
		}
	}

	if decider == nil {
		decider = gates.NewDecider(s.Root, in.DryRun, s.MakeTimeout)
	}
	dec, err := decider.Decide(ctx, triggers.Rules(matches))
	if err != nil {
		return healthcheck.ExitConfig, err
	}
	writeDecision(out, dec, in.Verbose)
	if dec.Action == gates.ActionBlock {
		fmt.Fprintf(errOut, "blocked: %s\n", blockReason(dec))
	}
	return dec.ExitCode(), nil
}

func writeDecision(out io.Writer, dec *gates.Decision, verbose bool) {
	label := string(dec.Action)
	if dec.DryRun {
		label += " (dry run)"
	}
	switch dec.Action {
	case gates.ActionBlock:
		fmt.Fprintf(out, "%s %s", red("✗"), red(label))
	case gates.ActionWarn:
		fmt.Fprintf(out, "%s %s", yellow("⚠"), yellow(label))
	default:
		fmt.Fprintf(out, "%s %s", green("✓"), green(label))
	}
	if dec.Rule != "" {
		fmt.Fprintf(out, " [%s]", dec.Rule)
	}
	if dec.Message != "" {
		fmt.Fprintf(out, " %s", dec.Message)
	}
	fmt.Fprintln(out)

	if verbose || dec.DryRun {
		for _, note := range dec.Rationale {
			fmt.Fprintf(out, "  %s\n", note)
		}
	}
	if len(dec.Documents) > 0 {
		fmt.Fprintf(out, "\n%s Documents to load:\n", cyan("→"))
		for _, d := range dec.Documents {
			fmt.Fprintf(out, "  - %s\n", d.Path)
		}
	}
}

// blockReason is the last rationale note, which records what settled the
// block, or the rule message when there is none.
func blockReason(dec *gates.Decision) string {
	if n := len(dec.Rationale); n > 0 {
		return dec.Rationale[n-1]
	}
	if dec.Message != "" {
		return dec.Message
	}
	return dec.Rule
}
