package aggregate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

func issue(rule string, level types.Level, cat types.Category, priority int, msg, estimate string) types.Issue {
	return types.Issue{Rule: rule, Level: level, Category: cat, Priority: priority, Message: msg, EstimatedTime: estimate}
}

func sampleIssues() []types.Issue {
	return []types.Issue{
		issue("BLOCKER-001", types.LevelBlocker, types.CategorySecurity, 100, "Possible password committed in config/prod.yaml", "15 minutes"),
		issue("CQ-002", types.LevelError, types.CategoryCodeQuality, 70, "Coverage command failed", "1 hour"),
		issue("CQ-003", types.LevelWarning, types.CategoryCodeQuality, 50, "No tests for modules/a", "30 minutes"),
		issue("CQ-003", types.LevelWarning, types.CategoryCodeQuality, 50, "No tests for modules/b", "30 minutes"),
		issue("CQ-001", types.LevelWarning, types.CategoryCodeQuality, 55, "Lint findings in modules/a/x.py", "10 minutes"),
		issue("CQ-001", types.LevelWarning, types.CategoryCodeQuality, 65, "Lint command unavailable", "5 minutes"),
		issue("DOC-001", types.LevelWarning, types.CategoryDocumentation, 60, "Module orders is missing doc/RUNBOOK.md", "20 minutes"),
		issue("DOC-001", types.LevelWarning, types.CategoryDocumentation, 60, "Module users is missing doc/CONTRACT.md", "20 minutes"),
		issue("DOC-001", types.LevelWarning, types.CategoryDocumentation, 60, "Module users is missing doc/CHANGELOG.md", "20 minutes"),
		issue("ARCH-001", types.LevelError, types.CategoryArchitecture, 80, "Circular dependency: A → B → A", "2-4 hours"),
		issue("OPS-004", types.LevelInfo, types.CategoryOperations, 20, "No alert rules", ""),
	}
}

func TestClusters(t *testing.T) {
	clusters := Clusters(sampleIssues())

	var ids []string
	counts := map[string]int{}
	for _, c := range clusters {
		ids = append(ids, c.ID)
		counts[c.ID] = c.Count
	}
	assert.Equal(t, []string{ClusterSecrets, ClusterTesting, ClusterTooling, ClusterDocumentation, ClusterArchitecture, ClusterOther}, ids)
	assert.Equal(t, 1, counts[ClusterSecrets])
	assert.Equal(t, 3, counts[ClusterTesting])
	assert.Equal(t, 2, counts[ClusterTooling])
	assert.Equal(t, 3, counts[ClusterDocumentation])
	assert.Equal(t, 1, counts[ClusterArchitecture])
	assert.Equal(t, 1, counts[ClusterOther])

	total := 0
	for _, c := range clusters {
		total += c.Count
	}
	assert.Equal(t, len(sampleIssues()), total, "clusters partition the issues")
	assert.Equal(t, 70, clusters[1].Issues[0].Priority, "sorted by priority")
}

func TestClusters_Empty(t *testing.T) {
	assert.Empty(t, Clusters(nil))
}

func TestRootCauses(t *testing.T) {
	causes := RootCauses(sampleIssues())
	var ids []string
	for _, c := range causes {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"missing_test_tooling", "missing_module_doc_templates", "missing_linter_config", "hardcoded_secrets"}, ids)

	assert.Equal(t, 3, causes[0].SupportingIssues)
	assert.Equal(t, []string{"CQ-002", "CQ-003"}, causes[0].Rules)
	assert.NotEmpty(t, causes[0].FixScript)
	assert.NotEmpty(t, causes[0].ExpectedImprovement)
	assert.NotEmpty(t, causes[0].EstimatedTime)
}

func TestRootCauses_BelowMinimum(t *testing.T) {
	issues := []types.Issue{
		issue("CQ-003", types.LevelWarning, types.CategoryCodeQuality, 50, "No tests for modules/a", ""),
		issue("CQ-003", types.LevelWarning, types.CategoryCodeQuality, 50, "No tests for modules/b", ""),
	}
	assert.Empty(t, RootCauses(issues))
}

func TestIsQuickFix(t *testing.T) {
	tests := []struct {
		estimate string
		want     bool
	}{
		{"5 minutes", true},
		{"15-30 minutes", true},
		{"30 min", true},
		{"30-60 minutes", false},
		{"45 minutes", false},
		{"1 hour", false},
		{"2-4 hours", false},
		{"1 day", false},
		{"", false},
		{"soon", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsQuickFix(tt.estimate), tt.estimate)
	}
}

func TestQuickWins(t *testing.T) {
	wins := QuickWins(sampleIssues())
	var rules []string
	for _, w := range wins {
		rules = append(rules, w.Rule)
	}
	// CQ-001 at 55 is below the priority floor; CQ-002 takes an hour.
	assert.Equal(t, []string{"BLOCKER-001", "CQ-001", "DOC-001", "DOC-001", "DOC-001"}, rules)
}

func TestImprovementPotential(t *testing.T) {
	p := ImprovementPotential(sampleIssues())
	// immediate: 100 + 70 + 80; short: 50+50+55+65+60*3; long: 20
	assert.Equal(t, 25.0, p.Immediate)
	assert.Equal(t, 40.0, p.ShortTerm)
	assert.Equal(t, 2.0, p.LongTerm)
	assert.Equal(t, 67.0, p.Total)
}

func TestAggregateAndConsole(t *testing.T) {
	s := Aggregate(sampleIssues())
	require.Equal(t, 11, s.TotalIssues)

	var buf bytes.Buffer
	WriteConsole(&buf, s)
	out := buf.String()
	assert.Contains(t, out, "11 issues in 6 clusters")
	assert.Contains(t, out, "Root causes")
	assert.Contains(t, out, "Quick wins")
	assert.Contains(t, out, "Improvement potential: 67.0")
}
