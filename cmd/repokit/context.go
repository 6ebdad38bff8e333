package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/routing"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/usage"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Record and learn from context route usage",
	Long: `Track which context topics agents load and reorder on-demand routes by
usage.

Examples:
  repokit context log --topic modules --path doc/modules/MODULE_INSTANCES.md
  ROUTE_USAGE_LOGGING=1 repokit context maybe-log --topic ops
  repokit context routes --topic modules --scope backend
  repokit context report --limit 5
  repokit context optimize --agent AGENTS.md --write`,
}

var contextRoutesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the documents an agent should load for topics and scopes",
	Long: `Resolve an agent's context routes: always_read first, then the on_demand
topics and by_scope scopes asked for. Requested topics are recorded as usage
when usage logging is enabled.`,
	Run: func(cmd *cobra.Command, args []string) {
		agent, _ := cmd.Flags().GetString("agent")
		topics, _ := cmd.Flags().GetStringSlice("topic")
		scopes, _ := cmd.Flags().GetStringSlice("scope")
		asJSON, _ := cmd.Flags().GetBool("json")
		if err := runContextRoutes(settings, agent, topics, scopes, asJSON, os.Stdout); err != nil {
			fail(err)
		}
	},
}

var contextLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Append one usage record",
	Run: func(cmd *cobra.Command, args []string) {
		topic, _ := cmd.Flags().GetString("topic")
		path, _ := cmd.Flags().GetString("path")
		if err := usage.NewLog(settings.Path(settings.UsageFile)).Append(topic, path); err != nil {
			fail(err)
		}
	},
}

var contextMaybeLogCmd = &cobra.Command{
	Use:   "maybe-log",
	Short: "Append one usage record when usage logging is enabled",
	Run: func(cmd *cobra.Command, args []string) {
		topic, _ := cmd.Flags().GetString("topic")
		path, _ := cmd.Flags().GetString("path")
		if _, err := usage.NewLog(settings.Path(settings.UsageFile)).MaybeAppend(settings.UsageLoggingEnv, topic, path); err != nil {
			fail(err)
		}
	},
}

var contextReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the most used topics and paths",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		if err := runContextReport(settings, limit, asJSON, os.Stdout); err != nil {
			fail(err)
		}
	},
}

var contextOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Reorder an agent's on-demand topics by usage",
	Run: func(cmd *cobra.Command, args []string) {
		agent, _ := cmd.Flags().GetString("agent")
		write, _ := cmd.Flags().GetBool("write")
		asJSON, _ := cmd.Flags().GetBool("json")
		if err := runContextOptimize(settings, agent, write, asJSON, os.Stdout); err != nil {
			fail(err)
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{contextLogCmd, contextMaybeLogCmd} {
		c.Flags().String("topic", "", "Topic that was loaded")
		c.Flags().String("path", "", "Document path that was loaded")
		_ = c.MarkFlagRequired("topic")
	}
	contextReportCmd.Flags().Int("limit", usage.DefaultTopK, "Number of topics and paths to show")
	contextReportCmd.Flags().Bool("json", false, "Output in JSON format")
	contextRoutesCmd.Flags().String("agent", "", "Agent document to resolve (default: AGENTS.md)")
	contextRoutesCmd.Flags().StringSlice("topic", nil, "On-demand topic to load (repeatable)")
	contextRoutesCmd.Flags().StringSlice("scope", nil, "Scope to load (repeatable)")
	contextRoutesCmd.Flags().Bool("json", false, "Output in JSON format")
	contextOptimizeCmd.Flags().String("agent", "", "Agent document to optimize (default: AGENTS.md)")
	contextOptimizeCmd.Flags().Bool("write", false, "Rewrite the agent document")
	contextOptimizeCmd.Flags().Bool("json", false, "Output in JSON format")

	contextCmd.AddCommand(contextLogCmd, contextMaybeLogCmd, contextRoutesCmd, contextReportCmd, contextOptimizeCmd)
	rootCmd.AddCommand(contextCmd)
}

func runContextReport(s config.Settings, limit int, asJSON bool, out io.Writer) error {
	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1 (got %d)", limit)
	}
	t, err := usage.Load(s.Path(s.UsageFile))
	if err != nil {
		return err
	}
	rep := usage.BuildReport(t, limit)
	if asJSON {
		return writeJSON(out, rep)
	}

	fmt.Fprintf(out, "%s Context usage (%d records)\n", cyan("▶"), rep.Records)
	if rep.Skipped > 0 {
		fmt.Fprintf(out, "  %s %d malformed line(s) skipped\n", yellow("⚠"), rep.Skipped)
	}
	writeCounts(out, "Topics", rep.Topics)
	writeCounts(out, "Paths", rep.Paths)
	return nil
}

func writeCounts(out io.Writer, title string, counts []usage.Count) {
	fmt.Fprintf(out, "\n  %s:\n", title)
	if len(counts) == 0 {
		fmt.Fprintln(out, "    (none)")
		return
	}
	for _, c := range counts {
		fmt.Fprintf(out, "    %5d  %s\n", c.Count, c.Name)
	}
}

type routesPlan struct {
	Agent     string   `json:"agent"`
	Documents []string `json:"documents"`
	Missing   []string `json:"missing,omitempty"`
	Unknown   []string `json:"unknown,omitempty"`
}

func runContextRoutes(s config.Settings, agent string, topics, scopes []string, asJSON bool, out io.Writer) error {
	if agent == "" {
		agent = s.RootAgentDoc
	}
	doc, err := routing.ReadAgentDoc(s.Path(agent))
	if err != nil {
		return err
	}
	docs, unknown := routing.Resolve(s.Root, doc, topics, scopes)
	plan := routesPlan{Agent: agent, Documents: docs, Unknown: unknown}
	if plan.Documents == nil {
		plan.Documents = []string{}
	}
	for _, d := range docs {
		if !repo.IsGlob(d) && !repo.Exists(s.Root, d) {
			plan.Missing = append(plan.Missing, d)
		}
	}

	log := usage.NewLog(s.Path(s.UsageFile))
	known := doc.FrontMatter.ContextRoutes.Topics()
	for _, t := range topics {
		if !containsFold(known, t) {
			continue
		}
		if _, err := log.MaybeAppend(s.UsageLoggingEnv, t, ""); err != nil {
			return err
		}
	}

	if asJSON {
		return writeJSON(out, plan)
	}
	fmt.Fprintf(out, "%s Documents to load for %s:\n", cyan("→"), agent)
	if len(docs) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, d := range docs {
		fmt.Fprintf(out, "  - %s\n", d)
	}
	for _, d := range plan.Missing {
		fmt.Fprintf(out, "  %s %s does not exist\n", yellow("⚠"), d)
	}
	for _, u := range unknown {
		fmt.Fprintf(out, "  %s %s is not declared in %s\n", yellow("⚠"), u, agent)
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func runContextOptimize(s config.Settings, agent string, write, asJSON bool, out io.Writer) error {
	if agent == "" {
		agent = s.RootAgentDoc
	}
	doc, err := routing.ReadAgentDoc(s.Path(agent))
	if err != nil {
		return err
	}
	if len(doc.FrontMatter.ContextRoutes.Topics()) == 0 {
		return errors.New(agent + " declares no on_demand context routes")
	}
	t, err := usage.Load(s.Path(s.UsageFile))
	if err != nil {
		return err
	}
	plan, err := usage.Optimize(doc, t, write)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, plan)
	}

	if !plan.Changed {
		fmt.Fprintf(out, "%s %s on_demand order already matches usage\n", green("✓"), agent)
		return nil
	}
	fmt.Fprintf(out, "%s %s on_demand order\n", cyan("▶"), agent)
	fmt.Fprintf(out, "  before: %s\n", strings.Join(plan.Before, ", "))
	fmt.Fprintf(out, "  after:  %s\n", strings.Join(plan.After, ", "))
	if write {
		fmt.Fprintf(out, "%s %s updated\n", green("✓"), agent)
	} else {
		fmt.Fprintln(out, "  (use --write to apply)")
	}
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
