// Package aggregate groups the issues of a health report into clusters,
// root causes and quick wins.
package aggregate

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// QuickWinMinPriority and QuickWinMaxMinutes bound the quick-win list.
const (
	QuickWinMinPriority = 60
	QuickWinMaxMinutes  = 30
)

// Cluster ids in display order.
const (
	ClusterSecrets       = "secrets"
	ClusterTesting       = "testing"
	ClusterTooling       = "tooling"
	ClusterDocumentation = "documentation"
	ClusterArchitecture  = "architecture"
	ClusterOther         = "other"
)

// Cluster is a named group of related issues.
type Cluster struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Count         int           `json:"count"`
	TotalPriority int           `json:"total_priority"`
	Issues        []types.Issue `json:"issues"`
}

// RootCause is a common cause behind several issues and how to fix it in
// one batch.
type RootCause struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	SupportingIssues    int      `json:"supporting_issues"`
	FixScript           string   `json:"fix_script"`
	ExpectedImprovement string   `json:"expected_improvement"`
	EstimatedTime       string   `json:"estimated_time"`
	Rules               []string `json:"rules"`
}

// Potential sums priority/10 per roadmap bucket.
type Potential struct {
	Immediate float64 `json:"immediate"`
	ShortTerm float64 `json:"short_term"`
	LongTerm  float64 `json:"long_term"`
	Total     float64 `json:"total"`
}

// Summary is the aggregation of one issue list.
type Summary struct {
	TotalIssues int           `json:"total_issues"`
	Clusters    []Cluster     `json:"clusters"`
	RootCauses  []RootCause   `json:"root_causes"`
	QuickWins   []types.Issue `json:"quick_wins"`
	Potential   Potential     `json:"improvement_potential"`
}

type clusterRule struct {
	id         string
	name       string
	categories []types.Category
	keywords   []string
}

// clusterRules are tried in order; the first match takes the issue.
var clusterRules = []clusterRule{
	{ClusterSecrets, "Secrets", []types.Category{types.CategorySecurity},
		[]string{"secret", "password", "credential", "api key", "private key", "token", "blocker-001"}},
	{ClusterTesting, "Testing infrastructure", nil,
		[]string{"test", "coverage", "pytest", "fixture"}},
	{ClusterTooling, "Code quality tooling", []types.Category{types.CategoryCodeQuality},
		[]string{"lint", "complexity", "annotation", "format"}},
	{ClusterDocumentation, "Documentation gaps", []types.Category{types.CategoryDocumentation, types.CategoryAIFriendliness},
		[]string{"doc", "readme", "changelog", "runbook", "agents.md"}},
	{ClusterArchitecture, "Architecture", []types.Category{types.CategoryArchitecture},
		[]string{"cycle", "circular", "coupling", "dependency", "registry", "contract"}},
}

func issueText(i *types.Issue) string {
	return strings.ToLower(strings.Join([]string{i.Rule, i.Message, i.File, i.Suggestion, strings.Join(i.Tags, " ")}, " "))
}

func (c *clusterRule) matches(i *types.Issue, text string) bool {
	for _, kw := range c.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, cat := range c.categories {
		if i.Category == cat {
			return true
		}
	}
	return false
}

// ClusterOf returns the cluster id of an issue.
func ClusterOf(i *types.Issue) string {
	text := issueText(i)
	for k := range clusterRules {
		if clusterRules[k].matches(i, text) {
			return clusterRules[k].id
		}
	}
	return ClusterOther
}

// Clusters partitions issues. Empty clusters are omitted; issues within a
// cluster are ordered by priority.
func Clusters(issues []types.Issue) []Cluster {
	byID := make(map[string]*Cluster)
	order := make([]string, 0, len(clusterRules)+1)
	for _, r := range clusterRules {
		order = append(order, r.id)
		byID[r.id] = &Cluster{ID: r.id, Name: r.name}
	}
	order = append(order, ClusterOther)
	byID[ClusterOther] = &Cluster{ID: ClusterOther, Name: "Other"}

	for _, i := range issues {
		c := byID[ClusterOf(&i)]
		c.Issues = append(c.Issues, i)
		c.Count++
		c.TotalPriority += i.Priority
	}

	var out []Cluster
	for _, id := range order {
		c := byID[id]
		if c.Count == 0 {
			continue
		}
		types.SortByPriority(c.Issues)
		out = append(out, *c)
	}
	return out
}

var (
	minutesRe = regexp.MustCompile(`\d+`)
	longerRe  = regexp.MustCompile(`(?i)\b(hours?|hrs?|h|days?|weeks?)\b`)
	shortRe   = regexp.MustCompile(`(?i)\b(minutes?|mins?|m|seconds?|secs?|s)\b`)
)

// IsQuickFix reports whether an estimated time is at most
// QuickWinMaxMinutes, e.g. "5 minutes" or "15-30 min".
func IsQuickFix(estimate string) bool {
	e := strings.TrimSpace(estimate)
	if e == "" || longerRe.MatchString(e) || !shortRe.MatchString(e) {
		return false
	}
	nums := minutesRe.FindAllString(e, -1)
	if len(nums) == 0 {
		return false
	}
	for _, n := range nums {
		v, err := strconv.Atoi(n)
		if err != nil || v > QuickWinMaxMinutes {
			return false
		}
	}
	return true
}

// QuickWins returns the issues worth fixing first: high priority and
// short to fix.
func QuickWins(issues []types.Issue) []types.Issue {
	var out []types.Issue
	for _, i := range issues {
		if i.Priority >= QuickWinMinPriority && IsQuickFix(i.EstimatedTime) {
			out = append(out, i)
		}
	}
	types.SortByPriority(out)
	return out
}

// ImprovementPotential buckets priority/10 the way the roadmap buckets
// issues.
func ImprovementPotential(issues []types.Issue) Potential {
	var p Potential
	for _, i := range issues {
		points := float64(i.Priority) / 10
		switch {
		case i.IsBlocker() || i.IsHighPriority():
			p.Immediate += points
		case i.Level == types.LevelError || i.Level == types.LevelWarning:
			p.ShortTerm += points
		default:
			p.LongTerm += points
		}
	}
	p.Immediate = round1(p.Immediate)
	p.ShortTerm = round1(p.ShortTerm)
	p.LongTerm = round1(p.LongTerm)
	p.Total = round1(p.Immediate + p.ShortTerm + p.LongTerm)
	return p
}

// Aggregate runs every analysis over issues.
func Aggregate(issues []types.Issue) *Summary {
	return &Summary{
		TotalIssues: len(issues),
		Clusters:    Clusters(issues),
		RootCauses:  RootCauses(issues),
		QuickWins:   QuickWins(issues),
		Potential:   ImprovementPotential(issues),
	}
}

func sortedRules(issues []types.Issue) []string {
	seen := make(map[string]bool)
	var rules []string
	for _, i := range issues {
		if !seen[i.Rule] {
			seen[i.Rule] = true
			rules = append(rules, i.Rule)
		}
	}
	sort.Strings(rules)
	return rules
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
