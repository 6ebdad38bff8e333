package health

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/routing"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// rootAgentDoc reads the repository's root agent document.
func rootAgentDoc(rc *RepoContext) (*routing.AgentDoc, error) {
	return routing.ReadAgentDoc(rc.Path(rc.Settings.RootAgentDoc))
}

// AlwaysReadFiles expands the root agent document's always_read routes
// into the files they name, in declaration order.
func AlwaysReadFiles(root string, doc *routing.AgentDoc) []string {
	seen := make(map[string]bool)
	var files []string
	for _, entry := range doc.FrontMatter.ContextRoutes.AlwaysRead {
		p := routing.ResolvePath(root, doc.Path, entry)
		paths := []string{p}
		if repo.IsGlob(p) {
			paths, _ = repo.ExpandGlob(root, p)
		}
		for _, f := range paths {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files
}

// AgentDocLinesProbe measures the length of the root agent document.
type AgentDocLinesProbe struct{}

// Name implements Probe.
func (p *AgentDocLinesProbe) Name() string { return "agent_doc_lines" }

// Dimension implements Probe.
func (p *AgentDocLinesProbe) Dimension() Dimension { return DimensionAIFriendliness }

// Philosophy implements Probe.
func (p *AgentDocLinesProbe) Philosophy() string {
	return "Every agent reads the root document first. Each line of it is paid for on every task."
}

// Cost implements Probe.
func (p *AgentDocLinesProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 10 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *AgentDocLinesProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	lines, err := repo.CountLines(rc.Path(rc.Settings.RootAgentDoc))
	if err != nil {
		return nil, err
	}
	result := newResult(p, float64(lines), "lines")
	result.SetDetail("threshold", rc.Probes.AgentDocMaxLines)
	if lines > rc.Probes.AgentDocMaxLines {
		issue := newIssue(p, "AI-001", types.LevelWarning, 65,
			"%s has %d lines (budget %d)", rc.Settings.RootAgentDoc, lines, rc.Probes.AgentDocMaxLines)
		issue.File = rc.Settings.RootAgentDoc
		issue.Suggestion = "Move detail into on_demand documents and keep the root document an index"
		issue.EstimatedTime = "1 hour"
		result.Issues = append(result.Issues, issue)
	}
	return result, nil
}

// AlwaysReadLinesProbe measures the total length of always_read documents.
type AlwaysReadLinesProbe struct{}

// Name implements Probe.
func (p *AlwaysReadLinesProbe) Name() string { return "always_read_lines" }

// Dimension implements Probe.
func (p *AlwaysReadLinesProbe) Dimension() Dimension { return DimensionAIFriendliness }

// Philosophy implements Probe.
func (p *AlwaysReadLinesProbe) Philosophy() string {
	return "Always-read context is loaded before the agent knows what the task is. Keep it small."
}

// Cost implements Probe.
func (p *AlwaysReadLinesProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 20 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *AlwaysReadLinesProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	doc, err := rootAgentDoc(rc)
	if err != nil {
		return nil, err
	}
	total := 0
	var missing []string
	for _, f := range AlwaysReadFiles(rc.Root, doc) {
		n, err := repo.CountLines(rc.Path(f))
		if err != nil {
			missing = append(missing, f)
			continue
		}
		total += n
	}
	result := newResult(p, float64(total), "lines")
	result.SetDetail("threshold", rc.Probes.AlwaysReadMaxLines)
	if len(missing) > 0 {
		result.SetDetail("missing", missing)
	}
	if total > rc.Probes.AlwaysReadMaxLines {
		issue := newIssue(p, "AI-002", types.LevelWarning, 60,
			"always_read documents total %d lines (budget %d)", total, rc.Probes.AlwaysReadMaxLines)
		issue.File = rc.Settings.RootAgentDoc
		issue.Suggestion = "Move sections of always_read documents behind on_demand topics"
		result.Issues = append(result.Issues, issue)
	}
	return result, nil
}

// AlwaysReadFilesProbe counts the always_read documents.
type AlwaysReadFilesProbe struct{}

// Name implements Probe.
func (p *AlwaysReadFilesProbe) Name() string { return "always_read_files" }

// Dimension implements Probe.
func (p *AlwaysReadFilesProbe) Dimension() Dimension { return DimensionAIFriendliness }

// Philosophy implements Probe.
func (p *AlwaysReadFilesProbe) Philosophy() string {
	return "One always-read entry point is enough; everything else should be routed."
}

// Cost implements Probe.
func (p *AlwaysReadFilesProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 10 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *AlwaysReadFilesProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	doc, err := rootAgentDoc(rc)
	if err != nil {
		return nil, err
	}
	files := AlwaysReadFiles(rc.Root, doc)
	result := newResult(p, float64(len(files)), "files")
	result.SetDetail("threshold", rc.Probes.AlwaysReadMaxFiles)
	result.SetDetail("files", files)
	if len(files) > rc.Probes.AlwaysReadMaxFiles {
		issue := newIssue(p, "AI-003", types.LevelSuggestion, 40,
			"%d always_read documents (budget %d)", len(files), rc.Probes.AlwaysReadMaxFiles)
		issue.File = rc.Settings.RootAgentDoc
		issue.Suggestion = "Merge always_read documents into one index"
		result.Issues = append(result.Issues, issue)
	}
	return result, nil
}

// agentDocs parses every agent document. Unparseable documents are
// returned by path with their error.
func agentDocs(root string) ([]*routing.AgentDoc, map[string]error, error) {
	paths, err := routing.FindAgentDocs(root)
	if err != nil {
		return nil, nil, err
	}
	var docs []*routing.AgentDoc
	failed := make(map[string]error)
	for _, rel := range paths {
		doc, err := routing.ReadAgentDoc(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			failed[rel] = err
			continue
		}
		doc.Path = rel
		docs = append(docs, doc)
	}
	return docs, failed, nil
}

// DocRoleClarityProbe measures the share of agent documents declaring a role.
type DocRoleClarityProbe struct{}

// Name implements Probe.
func (p *DocRoleClarityProbe) Name() string { return "doc_role_clarity" }

// Dimension implements Probe.
func (p *DocRoleClarityProbe) Dimension() Dimension { return DimensionAIFriendliness }

// Philosophy implements Probe.
func (p *DocRoleClarityProbe) Philosophy() string {
	return "An agent that knows its role knows what not to touch."
}

// Cost implements Probe.
func (p *DocRoleClarityProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 300 * time.Millisecond, RequiresFullScan: true, Category: CostCheap}
}

// Check implements Probe.
func (p *DocRoleClarityProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	docs, failed, err := agentDocs(rc.Root)
	if err != nil {
		return nil, err
	}
	result := newResult(p, 0, "%")
	withRole := 0
	for _, doc := range docs {
		if doc.HasKey("role") {
			withRole++
			continue
		}
		issue := newIssue(p, "AI-004", types.LevelWarning, 45, "Agent document does not declare a role")
		issue.File = doc.Path
		issue.Suggestion = "Add role: to the front matter"
		result.Issues = append(result.Issues, issue)
	}
	for rel, ferr := range failed {
		issue := newIssue(p, "AI-004", types.LevelWarning, 45, "Agent document has no readable front matter: %v", ferr)
		issue.File = rel
		result.Issues = append(result.Issues, issue)
	}
	total := len(docs) + len(failed)
	result.Value = Percent(withRole, total)
	result.SetDetail("agent_docs", total)
	result.SetDetail("with_role", withRole)
	return result, nil
}

// ModuleDocCompletenessProbe measures the share of module agent documents
// declaring every required front-matter key.
type ModuleDocCompletenessProbe struct{}

// Name implements Probe.
func (p *ModuleDocCompletenessProbe) Name() string { return "module_doc_completeness" }

// Dimension implements Probe.
func (p *ModuleDocCompletenessProbe) Dimension() Dimension { return DimensionAIFriendliness }

// Philosophy implements Probe.
func (p *ModuleDocCompletenessProbe) Philosophy() string {
	return "Module agent documents are machine-read. Missing keys mean the tooling has to guess."
}

// Cost implements Probe.
func (p *ModuleDocCompletenessProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 300 * time.Millisecond, RequiresFullScan: true, Category: CostCheap}
}

// Check implements Probe.
func (p *ModuleDocCompletenessProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	docs, failed, err := agentDocs(rc.Root)
	if err != nil {
		return nil, err
	}
	prefix := repo.ModulesDir + "/"
	result := newResult(p, 0, "%")
	total, complete := 0, 0
	for _, doc := range docs {
		if !strings.HasPrefix(doc.Path, prefix) {
			continue
		}
		total++
		var missing []string
		for _, key := range rc.Probes.RequiredFrontMatter {
			if !doc.HasKey(key) {
				missing = append(missing, key)
			}
		}
		if len(missing) == 0 {
			complete++
			continue
		}
		issue := newIssue(p, "AI-005", types.LevelWarning, 50,
			"Module agent document is missing front matter keys: %s", strings.Join(missing, ", "))
		issue.File = doc.Path
		issue.EstimatedTime = "10 minutes"
		result.Issues = append(result.Issues, issue)
	}
	for rel := range failed {
		if strings.HasPrefix(rel, prefix) {
			total++
		}
	}
	result.Value = Percent(complete, total)
	result.SetDetail("module_agent_docs", total)
	result.SetDetail("complete", complete)
	return result, nil
}

// WorkflowCoverageProbe measures the share of trigger rules whose
// documents all exist.
type WorkflowCoverageProbe struct{}

// Name implements Probe.
func (p *WorkflowCoverageProbe) Name() string { return "workflow_coverage" }

// Dimension implements Probe.
func (p *WorkflowCoverageProbe) Dimension() Dimension { return DimensionAIFriendliness }

// Philosophy implements Probe.
func (p *WorkflowCoverageProbe) Philosophy() string {
	return "A trigger that points at a missing document sends the agent in with no map."
}

// Cost implements Probe.
func (p *WorkflowCoverageProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 50 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *WorkflowCoverageProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	if rc.Catalog == nil {
		if rc.CatalogErr != nil {
			return nil, rc.CatalogErr
		}
		return nil, fmt.Errorf("no trigger catalog at %s", rc.Settings.TriggerCatalog)
	}
	result := newResult(p, 0, "%")
	covered := 0
	for _, rule := range rc.Catalog.Rules {
		var missing []string
		for _, doc := range rule.LoadDocuments {
			if !repo.Exists(rc.Root, doc.Path) {
				missing = append(missing, doc.Path)
			}
		}
		if len(missing) == 0 {
			covered++
			continue
		}
		issue := newIssue(p, "AI-006", types.LevelWarning, 55,
			"Trigger rule %s loads missing document(s): %s", rule.ID, strings.Join(missing, ", "))
		issue.File = rc.Settings.TriggerCatalog
		issue.Suggestion = "Create the documents or fix the load_documents paths"
		result.Issues = append(result.Issues, issue)
	}
	result.Value = Percent(covered, len(rc.Catalog.Rules))
	result.SetDetail("rules", len(rc.Catalog.Rules))
	result.SetDetail("covered", covered)
	return result, nil
}

// ScriptAutomationProbe compares the automation surface against targets.
type ScriptAutomationProbe struct{}

// Name implements Probe.
func (p *ScriptAutomationProbe) Name() string { return "script_automation" }

// Dimension implements Probe.
func (p *ScriptAutomationProbe) Dimension() Dimension { return DimensionAIFriendliness }

// Philosophy implements Probe.
func (p *ScriptAutomationProbe) Philosophy() string {
	return "What is scripted can be run by an agent. What is tribal knowledge cannot."
}

// Cost implements Probe.
func (p *ScriptAutomationProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 50 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *ScriptAutomationProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	targets, err := repo.MakeTargets(rc.Root)
	if err != nil {
		return nil, err
	}
	scripts := 0
	if err := WalkFiles(rc.Root, repo.ScriptsDir, nil, rc.Probes.Excludes, func(rel string) error {
		if !strings.HasPrefix(filepath.Base(rel), ".") {
			scripts++
		}
		return nil
	}); err != nil {
		return nil, err
	}
	rules := 0
	if rc.Catalog != nil {
		rules = len(rc.Catalog.Rules)
	}

	at := rc.Probes.AutomationTargets
	ratio := (minFloat(1, float64(len(targets))/float64(at.MakeTargets)) +
		minFloat(1, float64(scripts)/float64(at.Scripts)) +
		minFloat(1, float64(rules)/float64(at.TriggerRules))) / 3

	result := newResult(p, math.Round(ratio*1000)/10, "%")
	result.SetDetail("make_targets", len(targets))
	result.SetDetail("scripts", scripts)
	result.SetDetail("trigger_rules", rules)
	return result, nil
}
