package health

import (
	"bufio"
	"context"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/routing"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// DocExtensions are the files treated as documentation.
var DocExtensions = []string{".md"}

// ModuleDirs lists the module directories under modules/, sorted.
func ModuleDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, repo.ModulesDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		dirs = append(dirs, repo.ModulesDir+"/"+e.Name())
	}
	sort.Strings(dirs)
	return dirs, nil
}

// ModuleDocStatus is the doc set of one module.
type ModuleDocStatus struct {
	Module  string   `json:"module"`
	Missing []string `json:"missing,omitempty"`
}

// Complete reports whether every required document exists.
func (s ModuleDocStatus) Complete() bool { return len(s.Missing) == 0 }

// CheckModuleDocs reports the required documents each module lacks.
func CheckModuleDocs(root string, required []string) ([]ModuleDocStatus, error) {
	dirs, err := ModuleDirs(root)
	if err != nil {
		return nil, err
	}
	statuses := make([]ModuleDocStatus, 0, len(dirs))
	for _, dir := range dirs {
		st := ModuleDocStatus{Module: dir}
		for _, doc := range required {
			if !repo.Exists(root, dir+"/"+doc) {
				st.Missing = append(st.Missing, doc)
			}
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// ModuleDocCoverageProbe measures the share of modules with the full doc set.
type ModuleDocCoverageProbe struct{}

// Name implements Probe.
func (p *ModuleDocCoverageProbe) Name() string { return "module_doc_coverage" }

// Dimension implements Probe.
func (p *ModuleDocCoverageProbe) Dimension() Dimension { return DimensionDocumentation }

// Philosophy implements Probe.
func (p *ModuleDocCoverageProbe) Philosophy() string {
	return "Every module explains its contract, its tests and how to run it. A module without docs is a module only its author can change."
}

// Cost implements Probe.
func (p *ModuleDocCoverageProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 100 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *ModuleDocCoverageProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	statuses, err := CheckModuleDocs(rc.Root, rc.Settings.RequiredModuleDocs)
	if err != nil {
		return nil, err
	}
	result := newResult(p, 0, "%")
	complete := 0
	for _, st := range statuses {
		if st.Complete() {
			complete++
			continue
		}
		issue := newIssue(p, "DOC-001", types.LevelWarning, 60,
			"Module %s is missing %d required document(s)", path.Base(st.Module), len(st.Missing))
		issue.File = st.Module
		issue.Suggestion = "Add " + strings.Join(st.Missing, ", ")
		issue.EstimatedTime = "30 minutes"
		result.Issues = append(result.Issues, issue)
	}
	result.Value = Percent(complete, len(statuses))
	result.SetDetail("modules", len(statuses))
	result.SetDetail("complete", complete)
	return result, nil
}

// DocAge is the freshness of one document.
type DocAge struct {
	Path     string    `json:"path"`
	Modified time.Time `json:"modified"`
	Stale    bool      `json:"stale"`
}

// Age renders how long ago the document changed.
func (d DocAge) Age(now time.Time) string {
	return humanize.RelTime(d.Modified, now, "ago", "from now")
}

// ScanDocFreshness lists every Markdown document with its modification
// time, marking those not touched within window.
func ScanDocFreshness(root string, excludes []string, window time.Duration, now time.Time) ([]DocAge, error) {
	cutoff := now.Add(-window)
	var docs []DocAge
	err := WalkFiles(root, ".", DocExtensions, excludes, func(rel string) error {
		info, err := os.Stat(filepath.Join(root, rel))
		if err != nil {
			return nil
		}
		docs = append(docs, DocAge{Path: rel, Modified: info.ModTime(), Stale: info.ModTime().Before(cutoff)})
		return nil
	})
	return docs, err
}

// DocFreshnessProbe measures the share of documents changed within the
// stale window.
type DocFreshnessProbe struct{}

// Name implements Probe.
func (p *DocFreshnessProbe) Name() string { return "doc_freshness" }

// Dimension implements Probe.
func (p *DocFreshnessProbe) Dimension() Dimension { return DimensionDocumentation }

// Philosophy implements Probe.
func (p *DocFreshnessProbe) Philosophy() string {
	return "Documentation drifts from code unless someone touches it. Old docs are the ones most likely to be wrong."
}

// Cost implements Probe.
func (p *DocFreshnessProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 500 * time.Millisecond, RequiresFullScan: true, Category: CostCheap}
}

// Check implements Probe.
func (p *DocFreshnessProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	window := rc.Probes.StaleWindow(rc.Settings.StaleDocDays)
	now := rc.Now()
	docs, err := ScanDocFreshness(rc.Root, rc.Probes.Excludes, window, now)
	if err != nil {
		return nil, err
	}
	result := newResult(p, 0, "%")
	fresh := 0
	for _, d := range docs {
		if !d.Stale {
			fresh++
			continue
		}
		issue := newIssue(p, "DOC-002", types.LevelInfo, 30, "Document last updated %s", d.Age(now))
		issue.File = d.Path
		issue.Suggestion = "Review the document against the current code"
		issue.EstimatedTime = "15 minutes"
		result.Issues = append(result.Issues, issue)
	}
	result.Value = Percent(fresh, len(docs))
	result.SetDetail("documents", len(docs))
	result.SetDetail("stale", len(docs)-fresh)
	result.SetDetail("window_days", int(window.Hours()/24))
	return result, nil
}

var mdLinkRe = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)

// DocStyleProbe counts passed documentation style checks.
type DocStyleProbe struct{}

// Name implements Probe.
func (p *DocStyleProbe) Name() string { return "doc_style_checks" }

// Dimension implements Probe.
func (p *DocStyleProbe) Dimension() Dimension { return DimensionDocumentation }

// Philosophy implements Probe.
func (p *DocStyleProbe) Philosophy() string {
	return "Consistent documents are navigable documents, for people and for agents alike."
}

// Cost implements Probe.
func (p *DocStyleProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 500 * time.Millisecond, RequiresFullScan: true, Category: CostCheap}
}

// Check implements Probe.
func (p *DocStyleProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	checks, err := DocStyleChecks(rc.Root, rc.Settings.RootAgentDoc, rc.Probes.Excludes)
	if err != nil {
		return nil, err
	}
	result := newResult(p, float64(countPassed(checks)), "checks")
	recordChecks(p, result, "DOC-003", 40, checks)
	return result, nil
}

// DocStyleChecks runs the five documentation style checks.
func DocStyleChecks(root, agentDoc string, excludes []string) ([]CheckItem, error) {
	var docs []string
	if err := WalkFiles(root, repo.DocDir, DocExtensions, excludes, func(rel string) error {
		docs = append(docs, rel)
		return nil
	}); err != nil {
		return nil, err
	}

	_, agentErr := routing.ReadAgentDoc(filepath.Join(root, agentDoc))

	headed := true
	linksOK := true
	for _, rel := range docs {
		if !startsWithH1(filepath.Join(root, rel)) {
			headed = false
		}
		if len(brokenLinks(root, rel)) > 0 {
			linksOK = false
		}
	}
	if repo.Exists(root, "README.md") && len(brokenLinks(root, "README.md")) > 0 {
		linksOK = false
	}

	return []CheckItem{
		{Name: "readme_present", Passed: repo.Exists(root, "README.md"),
			Suggestion: "Add a README.md at the repository root"},
		{Name: "agent_front_matter", Passed: agentErr == nil,
			Suggestion: "Start " + agentDoc + " with a --- delimited YAML front matter block"},
		{Name: "doc_index", Passed: repo.Exists(root, "doc/INDEX.md") || repo.Exists(root, "doc/README.md"),
			Suggestion: "Add doc/INDEX.md listing the documentation"},
		{Name: "h1_titles", Passed: headed,
			Suggestion: "Start every document under doc/ with a single H1 title"},
		{Name: "relative_links", Passed: linksOK,
			Suggestion: "Fix relative links that point at missing files"},
	}, nil
}

// startsWithH1 reports whether the first content line after any front
// matter is an H1 heading.
func startsWithH1(file string) bool {
	data, err := os.ReadFile(file)
	if err != nil {
		return false
	}
	if _, body, err := routing.SplitFrontMatter(data); err == nil {
		data = body
	}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "<!--") {
			continue
		}
		return strings.HasPrefix(line, "# ")
	}
	return false
}

// brokenLinks returns the relative link targets in rel that do not exist.
func brokenLinks(root, rel string) []string {
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return nil
	}
	var broken []string
	for _, m := range mdLinkRe.FindAllStringSubmatch(string(data), -1) {
		target := m[1]
		if strings.Contains(target, "://") || strings.HasPrefix(target, "#") || strings.HasPrefix(target, "mailto:") {
			continue
		}
		if i := strings.IndexByte(target, '#'); i >= 0 {
			target = target[:i]
		}
		var resolved string
		if strings.HasPrefix(target, "/") {
			resolved = strings.TrimPrefix(target, "/")
		} else {
			resolved = path.Join(path.Dir(rel), target)
		}
		if !repo.Exists(root, resolved) {
			broken = append(broken, m[1])
		}
	}
	return broken
}

var scriptRefRe = regexp.MustCompile("(?:^|[\\s(`\"'/])(scripts/[A-Za-z0-9_.\\-/]*[A-Za-z0-9_])")

// ScriptRef is a scripts/ path mentioned in a document.
type ScriptRef struct {
	Script string `json:"script"`
	File   string `json:"file"`
	Line   int    `json:"line"`
	Exists bool   `json:"exists"`
}

// FindScriptRefs lists the first mention of every scripts/ path in the docs.
func FindScriptRefs(root string, excludes []string) ([]ScriptRef, error) {
	seen := make(map[string]bool)
	var refs []ScriptRef
	err := WalkFiles(root, ".", DocExtensions, excludes, func(rel string) error {
		f, err := os.Open(filepath.Join(root, rel))
		if err != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		line := 0
		for scanner.Scan() {
			line++
			for _, m := range scriptRefRe.FindAllStringSubmatch(scanner.Text(), -1) {
				script := m[1]
				if seen[script] {
					continue
				}
				seen[script] = true
				refs = append(refs, ScriptRef{Script: script, File: rel, Line: line, Exists: repo.Exists(root, script)})
			}
		}
		return nil
	})
	return refs, err
}

// DocScriptSyncProbe measures the share of documented scripts that exist.
type DocScriptSyncProbe struct{}

// Name implements Probe.
func (p *DocScriptSyncProbe) Name() string { return "doc_script_sync" }

// Dimension implements Probe.
func (p *DocScriptSyncProbe) Dimension() Dimension { return DimensionDocumentation }

// Philosophy implements Probe.
func (p *DocScriptSyncProbe) Philosophy() string {
	return "A documented command that does not exist is worse than no documentation."
}

// Cost implements Probe.
func (p *DocScriptSyncProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 500 * time.Millisecond, RequiresFullScan: true, Category: CostCheap}
}

// Check implements Probe.
func (p *DocScriptSyncProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	refs, err := FindScriptRefs(rc.Root, rc.Probes.Excludes)
	if err != nil {
		return nil, err
	}
	result := newResult(p, 0, "%")
	ok := 0
	for _, ref := range refs {
		if ref.Exists {
			ok++
			continue
		}
		issue := newIssue(p, "DOC-004", types.LevelWarning, 50, "Documented script %s does not exist", ref.Script)
		issue.File = ref.File
		issue.Line = ref.Line
		issue.Suggestion = "Update the document or restore the script"
		issue.EstimatedTime = "10 minutes"
		result.Issues = append(result.Issues, issue)
	}
	result.Value = Percent(ok, len(refs))
	result.SetDetail("references", len(refs))
	result.SetDetail("missing", len(refs)-ok)
	return result, nil
}
