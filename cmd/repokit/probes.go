package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/healthcheck"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/registry"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/routing"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/triggers"
)

// MinFreshPercent is the share of documents doc-freshness requires to be
// inside the stale window.
const MinFreshPercent = 80.0

// probeCheck is one standalone check. It writes its console output to out,
// returns the value printed by --json and whether its thresholds pass.
type probeCheck func(rc *health.RepoContext, out io.Writer) (result interface{}, passed bool, err error)

var probeCommands = []struct {
	use   string
	short string
	check probeCheck
}{
	{"secret-scan", "Scan the tree for hardcoded credentials", checkSecrets},
	{"coupling-check", "Measure module fan-in and fan-out", checkCoupling},
	{"doc-freshness", "List documents outside the stale window", checkDocFreshness},
	{"module-health", "Check every module carries its required documents", checkModuleHealth},
	{"registry-check", "Validate the module registry", checkRegistry},
	{"dag-check", "Check the module dependency graph is acyclic", checkDAG},
	{"complexity-check", "Report cyclomatic complexity hot spots", checkComplexity},
	{"routes-check", "Validate agent context routes and trigger references", checkRoutes},
}

func init() {
	for _, pc := range probeCommands {
		check := pc.check
		cmd := &cobra.Command{
			Use:   pc.use,
			Short: pc.short,
			Run: func(cmd *cobra.Command, args []string) {
				asJSON, _ := cmd.Flags().GetBool("json")
				code, err := runProbeCheck(settings, check, asJSON, os.Stdout)
				if err != nil {
					fail(err)
				}
				os.Exit(code)
			},
		}
		cmd.Flags().Bool("json", false, "Output in JSON format")
		rootCmd.AddCommand(cmd)
	}
}

func runProbeCheck(s config.Settings, check probeCheck, asJSON bool, out io.Writer) (int, error) {
	rc, err := health.NewRepoContext(s, nil)
	if err != nil {
		return healthcheck.ExitConfig, err
	}
	console := out
	if asJSON {
		console = io.Discard
	}
	result, passed, err := check(rc, console)
	if err != nil {
		return healthcheck.ExitConfig, err
	}
	if asJSON {
		if err := writeJSON(out, struct {
			Passed bool        `json:"passed"`
			Result interface{} `json:"result"`
		}{passed, result}); err != nil {
			return healthcheck.ExitConfig, err
		}
	}
	if passed {
		return healthcheck.ExitPass, nil
	}
	return healthcheck.ExitFail, nil
}

func verdict(out io.Writer, passed bool, format string, args ...interface{}) {
	mark := green("✓")
	if !passed {
		mark = red("✗")
	}
	fmt.Fprintf(out, "%s %s\n", mark, fmt.Sprintf(format, args...))
}

func checkSecrets(rc *health.RepoContext, out io.Writer) (interface{}, bool, error) {
	res, err := rc.Secrets()
	if err != nil {
		return nil, false, err
	}
	for _, f := range res.Findings {
		fmt.Fprintf(out, "  %s %s:%d %s %s\n", red("✗"), f.File, f.Line, f.Kind, f.Snippet)
	}
	passed := len(res.Findings) == 0
	verdict(out, passed, "%d file(s) scanned, %d secret(s) found", res.FilesScanned, len(res.Findings))
	return res, passed, nil
}

func checkCoupling(rc *health.RepoContext, out io.Writer) (interface{}, bool, error) {
	g, err := health.BuildModuleGraph(rc.Root, rc.Registry, rc.Probes.Excludes)
	if err != nil {
		return nil, false, err
	}
	rep := health.AnalyzeCoupling(g, rc.Probes.Coupling)
	passed := len(rep.Cycles) == 0
	for _, m := range rep.Modules {
		mark := green("✓")
		switch m.Class {
		case health.CouplingHigh:
			mark = yellow("!")
		case health.CouplingVeryHigh:
			mark = red("✗")
			passed = false
		}
		fmt.Fprintf(out, "  %s %-24s fan-out %d fan-in %d (%s)\n", mark, m.Module, m.FanOut, m.FanIn, m.Class)
	}
	for _, c := range rep.Cycles {
		fmt.Fprintf(out, "  %s cycle: %s\n", red("✗"), registry.FormatCycle(c))
	}
	verdict(out, passed, "%d module(s), %d edge(s), average fan-out %.2f (%s)", len(rep.Modules), rep.Edges, rep.AverageFanOut, rep.Class)
	return rep, passed, nil
}

type freshnessResult struct {
	Window       string          `json:"window"`
	Documents    int             `json:"documents"`
	Stale        []health.DocAge `json:"stale"`
	FreshPercent float64         `json:"fresh_percent"`
}

func checkDocFreshness(rc *health.RepoContext, out io.Writer) (interface{}, bool, error) {
	window := rc.Probes.StaleWindow(rc.Settings.StaleDocDays)
	now := rc.Now()
	docs, err := health.ScanDocFreshness(rc.Root, rc.Probes.Excludes, window, now)
	if err != nil {
		return nil, false, err
	}
	res := freshnessResult{Window: window.String(), Documents: len(docs), Stale: []health.DocAge{}, FreshPercent: 100}
	for _, d := range docs {
		if d.Stale {
			res.Stale = append(res.Stale, d)
			fmt.Fprintf(out, "  %s %-48s changed %s\n", yellow("!"), d.Path, d.Age(now))
		}
	}
	if len(docs) > 0 {
		res.FreshPercent = float64(len(docs)-len(res.Stale)) / float64(len(docs)) * 100
	}
	passed := res.FreshPercent >= MinFreshPercent
	verdict(out, passed, "%d of %d document(s) changed within %d days (%.1f%%)",
		len(docs)-len(res.Stale), len(docs), int(window/(24*time.Hour)), res.FreshPercent)
	return res, passed, nil
}

func checkModuleHealth(rc *health.RepoContext, out io.Writer) (interface{}, bool, error) {
	statuses, err := health.CheckModuleDocs(rc.Root, rc.Settings.RequiredModuleDocs)
	if err != nil {
		return nil, false, err
	}
	complete := 0
	for _, st := range statuses {
		if st.Complete() {
			complete++
			fmt.Fprintf(out, "  %s %s\n", green("✓"), st.Module)
			continue
		}
		fmt.Fprintf(out, "  %s %s missing %v\n", red("✗"), st.Module, st.Missing)
	}
	passed := complete == len(statuses)
	verdict(out, passed, "%d of %d module(s) complete", complete, len(statuses))
	return statuses, passed, nil
}

func loadedRegistry(rc *health.RepoContext) (*registry.Registry, error) {
	if rc.RegistryErr != nil {
		if registry.IsNotExist(rc.RegistryErr) {
			return nil, fmt.Errorf("no module registry at %s", rc.Settings.Registry)
		}
		return nil, rc.RegistryErr
	}
	if rc.Registry == nil {
		return nil, errors.New("no module registry")
	}
	return rc.Registry, nil
}

func checkRegistry(rc *health.RepoContext, out io.Writer) (interface{}, bool, error) {
	reg, err := loadedRegistry(rc)
	if err != nil {
		return nil, false, err
	}
	rep := registry.Check(rc.Root, reg)
	for _, name := range registry.Checks {
		mark := green("✓")
		if !rep.Results[name] {
			mark = red("✗")
		}
		fmt.Fprintf(out, "  %s %s\n", mark, name)
	}
	for _, i := range rep.Issues {
		fmt.Fprintf(out, "    %s [%s] %s\n", cyan("→"), i.Rule, i.Message)
	}
	verdict(out, rep.OK(), "%d of %d registry check(s) passed (%.0f%%)", rep.Passed(), len(rep.Results), rep.Percentage())
	return rep, rep.OK(), nil
}

type dagResult struct {
	Modules int        `json:"modules"`
	Edges   int        `json:"edges"`
	Cycles  [][]string `json:"cycles"`
}

func checkDAG(rc *health.RepoContext, out io.Writer) (interface{}, bool, error) {
	reg, err := loadedRegistry(rc)
	if err != nil {
		return nil, false, err
	}
	g := reg.Graph()
	res := dagResult{Modules: len(g.Nodes()), Edges: g.EdgeCount(), Cycles: g.Cycles()}
	if res.Cycles == nil {
		res.Cycles = [][]string{}
	}
	for _, c := range res.Cycles {
		fmt.Fprintf(out, "  %s cycle: %s\n", red("✗"), registry.FormatCycle(c))
	}
	passed := len(res.Cycles) == 0
	verdict(out, passed, "%d module(s), %d edge(s), %d cycle(s)", res.Modules, res.Edges, len(res.Cycles))
	return res, passed, nil
}

// complexityHotSpots bounds the functions complexity-check lists.
const complexityHotSpots = 10

func checkComplexity(rc *health.RepoContext, out io.Writer) (interface{}, bool, error) {
	rep, err := rc.Complexity()
	if err != nil {
		return nil, false, err
	}
	for n, f := range rep.Functions {
		if n == complexityHotSpots || f.Class == health.ClassExcellent || f.Class == health.ClassGood {
			break
		}
		mark := yellow("!")
		if f.Class == health.ClassCritical {
			mark = red("✗")
		}
		fmt.Fprintf(out, "  %s %3d %s (%s:%d)\n", mark, f.Complexity, f.Function, f.FilePath, f.Line)
	}
	for _, p := range rep.ParseErrors {
		fmt.Fprintf(out, "  %s %s\n", yellow("⚠"), p)
	}
	passed := rep.ByClass[health.ClassCritical] == 0 && rep.Average <= float64(rc.Probes.Complexity.Acceptable)
	verdict(out, passed, "%d function(s), average %.2f, max %d, %d critical", len(rep.Functions), rep.Average, rep.Max, rep.ByClass[health.ClassCritical])
	return rep, passed, nil
}

type routesResult struct {
	Agents            int                 `json:"agents"`
	Problems          map[string][]string `json:"problems"`
	UnknownRules      []string            `json:"unknown_rules"`
	MissingMakeTarget []string            `json:"missing_make_targets,omitempty"`
}

// checkRoutes validates every agent document's routes and, when a trigger
// catalog exists, its rule references and skip-condition make targets.
// Missing make targets are reported but do not fail the check.
func checkRoutes(rc *health.RepoContext, out io.Writer) (interface{}, bool, error) {
	paths, err := routing.FindAgentDocs(rc.Root)
	if err != nil {
		return nil, false, err
	}
	res := routesResult{Agents: len(paths), Problems: map[string][]string{}, UnknownRules: []string{}}
	var docs []*routing.AgentDoc
	for _, p := range paths {
		doc, err := routing.ReadAgentDoc(filepath.Join(rc.Root, filepath.FromSlash(p)))
		if err != nil {
			res.Problems[p] = append(res.Problems[p], err.Error())
			fmt.Fprintf(out, "  %s %s: %v\n", red("✗"), p, err)
			continue
		}
		doc.Path = p
		docs = append(docs, doc)
		for _, prob := range routing.Validate(rc.Root, doc) {
			res.Problems[p] = append(res.Problems[p], prob.String())
			fmt.Fprintf(out, "  %s %s: %s\n", red("✗"), p, prob)
		}
	}

	catalog := rc.Catalog
	if rc.CatalogErr != nil && !errors.Is(rc.CatalogErr, os.ErrNotExist) {
		return nil, false, rc.CatalogErr
	}
	if catalog != nil {
		for _, e := range triggers.ValidateAgentRefs(catalog, docs) {
			res.UnknownRules = append(res.UnknownRules, e.Error())
			fmt.Fprintf(out, "  %s %v\n", red("✗"), e)
		}
		targets, err := repo.MakeTargets(rc.Root)
		if err != nil {
			return nil, false, err
		}
		res.MissingMakeTarget = catalog.MissingMakeTargets(targets)
		for _, cmd := range res.MissingMakeTarget {
			fmt.Fprintf(out, "  %s skip condition %q has no Makefile target\n", yellow("⚠"), cmd)
		}
	}

	problems := 0
	for _, list := range res.Problems {
		problems += len(list)
	}
	passed := problems == 0 && len(res.UnknownRules) == 0
	verdict(out, passed, "%d agent document(s), %d route problem(s), %d unknown rule reference(s)",
		res.Agents, problems, len(res.UnknownRules))
	return res, passed, nil
}
