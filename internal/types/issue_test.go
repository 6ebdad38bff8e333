package types

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validIssue() Issue {
	return Issue{
		Level:    LevelWarning,
		Category: CategoryDocumentation,
		Rule:     "DOC-002",
		Message:  "Stale document",
		Priority: 50,
	}
}

func TestIssueValidate(t *testing.T) {
	issue := validIssue()
	require.NoError(t, issue.Validate())

	tests := []struct {
		name   string
		mutate func(*Issue)
	}{
		{"bad level", func(i *Issue) { i.Level = "fatal" }},
		{"bad category", func(i *Issue) { i.Category = "style" }},
		{"empty rule", func(i *Issue) { i.Rule = " " }},
		{"empty message", func(i *Issue) { i.Message = "" }},
		{"priority too high", func(i *Issue) { i.Priority = 101 }},
		{"negative priority", func(i *Issue) { i.Priority = -1 }},
		{"negative line", func(i *Issue) { i.Line = -3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := validIssue()
			tt.mutate(&issue)
			assert.Error(t, issue.Validate())
		})
	}
}

func TestIssueIsBlocker(t *testing.T) {
	issue := validIssue()
	assert.False(t, issue.IsBlocker())

	issue.Level = LevelBlocker
	assert.True(t, issue.IsBlocker())

	issue.Level = LevelError
	issue.Rule = "BLOCKER-002"
	assert.True(t, issue.IsBlocker(), "BLOCKER- prefix makes any level a blocker")

	issue.Rule = "blocker-002"
	assert.False(t, issue.IsBlocker(), "prefix is case sensitive")
}

func TestIssueIsHighPriority(t *testing.T) {
	issue := validIssue()
	issue.Priority = 69
	assert.False(t, issue.IsHighPriority())
	issue.Priority = 70
	assert.True(t, issue.IsHighPriority())
}

func TestIssueLocationString(t *testing.T) {
	issue := validIssue()
	assert.Equal(t, "", issue.LocationString())

	issue.File = "doc/README.md"
	assert.Equal(t, "doc/README.md", issue.LocationString())

	issue.Line = 12
	assert.Equal(t, "doc/README.md:12", issue.LocationString())

	issue.Column = 4
	assert.Equal(t, "doc/README.md:12:4", issue.LocationString())
}

func TestIssueToMarkdown(t *testing.T) {
	issue := validIssue()
	issue.File = "config/prod.yaml"
	issue.Line = 1
	issue.Snippet = `db_password: "s3cretPassw0rd!"`
	issue.Suggestion = "Move the value into an environment variable"
	issue.FixCommand = "git rm --cached config/prod.yaml"

	md := issue.ToMarkdown(true)
	assert.True(t, strings.HasPrefix(md, "### [DOC-002] Stale document"))
	assert.Contains(t, md, "`config/prod.yaml:1`")
	assert.Contains(t, md, "s3cretPassw0rd!")
	assert.Contains(t, md, "**Suggestion:**")
	assert.Contains(t, md, "```bash\ngit rm --cached config/prod.yaml\n```")

	noCtx := issue.ToMarkdown(false)
	assert.NotContains(t, noCtx, "s3cretPassw0rd!")
}

func TestIssueLoadContext(t *testing.T) {
	dir := t.TempDir()
	content := "one\ntwo\nthree\nfour\nfive\nsix\nseven\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte(content), 0644))

	issue := validIssue()
	issue.File = "f.txt"
	issue.Line = 4
	require.NoError(t, issue.LoadContext(dir, 3, 3))

	assert.Equal(t, []string{"one", "two", "three"}, issue.ContextBefore)
	assert.Equal(t, "four", issue.Snippet)
	assert.Equal(t, []string{"five", "six", "seven"}, issue.ContextAfter)

	issue = validIssue()
	issue.File = "f.txt"
	issue.Line = 1
	require.NoError(t, issue.LoadContext(dir, 3, 1))
	assert.Empty(t, issue.ContextBefore)
	assert.Equal(t, []string{"two"}, issue.ContextAfter)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 80))

	long := strings.Repeat("a", 100)
	got := Truncate(long, 80)
	assert.Len(t, got, 80)
	assert.True(t, strings.HasSuffix(got, "..."))

	multi := strings.Repeat("é", 60) // 120 bytes
	got = Truncate(multi, 80)
	assert.LessOrEqual(t, len(got), 80)
	assert.True(t, utf8.ValidString(got))
}

func TestSortAndCounts(t *testing.T) {
	issues := []Issue{
		{Level: LevelWarning, Category: CategoryDocumentation, Rule: "DOC-1", Message: "m", Priority: 10},
		{Level: LevelBlocker, Category: CategorySecurity, Rule: "BLOCKER-001", Message: "m", Priority: 100},
		{Level: LevelWarning, Category: CategoryCodeQuality, Rule: "CQ-1", Message: "m", Priority: 20},
		{Level: LevelWarning, Category: CategoryCodeQuality, Rule: "CQ-2", Message: "m", Priority: 60},
		{Level: LevelSuggestion, Category: CategoryOperations, Rule: "OPS-1", Message: "m", Priority: 5},
	}
	Sort(issues)

	rules := make([]string, len(issues))
	for i, issue := range issues {
		rules[i] = issue.Rule
	}
	assert.Equal(t, []string{"BLOCKER-001", "CQ-2", "CQ-1", "DOC-1", "OPS-1"}, rules)

	byLevel := CountByLevel(issues)
	assert.Equal(t, 1, byLevel[LevelBlocker])
	assert.Equal(t, 3, byLevel[LevelWarning])
	assert.Equal(t, 0, byLevel[LevelError])
	total := 0
	for _, n := range byLevel {
		total += n
	}
	assert.Equal(t, len(issues), total)

	byCat := CountByCategory(issues)
	assert.Equal(t, 2, byCat[CategoryCodeQuality])
	assert.Len(t, Blockers(issues), 1)
	assert.Len(t, FilterLevel(issues, LevelWarning), 3)
	assert.Len(t, FilterLevel(issues, LevelWarning, LevelSuggestion), 4)
}

func TestSeverity(t *testing.T) {
	ruleBlocker := Issue{Level: LevelError, Category: CategoryArchitecture, Rule: "BLOCKER-002", Message: "cycle"}
	plain := Issue{Level: LevelError, Category: CategoryCodeQuality, Rule: "CQ-002", Message: "tests"}
	assert.Equal(t, LevelBlocker, ruleBlocker.Severity())
	assert.Equal(t, LevelError, plain.Severity())

	issues := []Issue{ruleBlocker, plain}
	byLevel := CountByLevel(issues)
	assert.Equal(t, 1, byLevel[LevelBlocker])
	assert.Equal(t, 1, byLevel[LevelError])
	assert.Equal(t, []Issue{ruleBlocker}, Blockers(issues))
	assert.Equal(t, []Issue{plain}, FilterLevel(issues, LevelError))
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Code Quality", CategoryCodeQuality.Title())
	assert.Equal(t, "AI Friendliness", CategoryAIFriendliness.Title())
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, 4, Priority("urgent").Rank())
	assert.False(t, Priority("urgent").IsValid())
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("model.yaml", "weights sum to %.2f", 0.9)
	assert.Equal(t, "configuration error in model.yaml: weights sum to 0.90", err.Error())

	var target *ConfigError
	wrapped := fmt.Errorf("loading: %w", err)
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "model.yaml", target.Path)
}
