package types

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// BlockerRulePrefix marks rule ids that are release blockers regardless of level.
const BlockerRulePrefix = "BLOCKER-"

// HighPriorityThreshold is the priority at or above which an issue is high priority.
const HighPriorityThreshold = 70

// Issue is a single finding with location, severity and fix hint.
type Issue struct {
	Level    Level    `json:"level"`
	Category Category `json:"category"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`

	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`

	ContextBefore []string `json:"context_before,omitempty"`
	ContextAfter  []string `json:"context_after,omitempty"`
	Snippet       string   `json:"snippet,omitempty"`

	Suggestion    string `json:"suggestion,omitempty"`
	FixCommand    string `json:"fix_command,omitempty"`
	Reference     string `json:"reference,omitempty"`
	EstimatedTime string `json:"estimated_time,omitempty"`
	Impact        string `json:"impact,omitempty"`

	Priority int               `json:"priority"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the issue has valid field values
func (i *Issue) Validate() error {
	if !i.Level.IsValid() {
		return fmt.Errorf("invalid level: %s", i.Level)
	}
	if !i.Category.IsValid() {
		return fmt.Errorf("invalid category: %s", i.Category)
	}
	if strings.TrimSpace(i.Rule) == "" {
		return fmt.Errorf("rule is required")
	}
	if strings.TrimSpace(i.Message) == "" {
		return fmt.Errorf("message is required")
	}
	if i.Priority < 0 || i.Priority > 100 {
		return fmt.Errorf("priority must be between 0 and 100 (got %d)", i.Priority)
	}
	if i.Line < 0 || i.Column < 0 {
		return fmt.Errorf("line and column cannot be negative")
	}
	return nil
}

// IsBlocker reports whether the issue is a release blocker.
func (i *Issue) IsBlocker() bool {
	return i.Level == LevelBlocker || strings.HasPrefix(i.Rule, BlockerRulePrefix)
}

// IsHighPriority reports whether the issue belongs in the immediate bucket.
func (i *Issue) IsHighPriority() bool {
	return i.Priority >= HighPriorityThreshold
}

// LocationString renders file:line:column, omitting missing parts.
func (i *Issue) LocationString() string {
	if i.File == "" {
		return ""
	}
	switch {
	case i.Line > 0 && i.Column > 0:
		return fmt.Sprintf("%s:%d:%d", i.File, i.Line, i.Column)
	case i.Line > 0:
		return fmt.Sprintf("%s:%d", i.File, i.Line)
	default:
		return i.File
	}
}

// ToMarkdown renders the issue as an H3 block.
func (i *Issue) ToMarkdown(withContext bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("### [%s] %s\n\n", i.Rule, i.Message))
	sb.WriteString(fmt.Sprintf("- **Level:** %s\n", i.Level))
	sb.WriteString(fmt.Sprintf("- **Category:** %s\n", i.Category))
	sb.WriteString(fmt.Sprintf("- **Priority:** %d\n", i.Priority))
	if loc := i.LocationString(); loc != "" {
		sb.WriteString(fmt.Sprintf("- **Location:** `%s`\n", loc))
	}
	if i.EstimatedTime != "" {
		sb.WriteString(fmt.Sprintf("- **Estimated time:** %s\n", i.EstimatedTime))
	}
	if i.Impact != "" {
		sb.WriteString(fmt.Sprintf("- **Impact:** %s\n", i.Impact))
	}
	if i.Reference != "" {
		sb.WriteString(fmt.Sprintf("- **Reference:** %s\n", i.Reference))
	}

	if withContext && (i.Snippet != "" || len(i.ContextBefore) > 0 || len(i.ContextAfter) > 0) {
		sb.WriteString("\n```\n")
		for _, line := range i.ContextBefore {
			sb.WriteString(line + "\n")
		}
		if i.Snippet != "" {
			sb.WriteString(i.Snippet + "\n")
		}
		for _, line := range i.ContextAfter {
			sb.WriteString(line + "\n")
		}
		sb.WriteString("```\n")
	}

	if i.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\n**Suggestion:** %s\n", i.Suggestion))
	}
	if i.FixCommand != "" {
		sb.WriteString(fmt.Sprintf("\n**Fix:**\n\n```bash\n%s\n```\n", i.FixCommand))
	}
	sb.WriteString("\n")

	return sb.String()
}

// Severity is the level the issue is reported under: a BLOCKER- rule
// counts as a blocker whatever its level.
func (i *Issue) Severity() Level {
	if i.IsBlocker() {
		return LevelBlocker
	}
	return i.Level
}

// LoadContext fills ContextBefore/ContextAfter (and Snippet, if empty) from
// the file on disk. root is used to resolve relative File paths.
func (i *Issue) LoadContext(root string, before, after int) error {
	if i.File == "" || i.Line <= 0 {
		return nil
	}
	path := i.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", i.File, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum > i.Line+after {
			break
		}
		if lineNum >= i.Line-before {
			lines = append(lines, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", i.File, err)
	}

	i.ContextBefore = nil
	i.ContextAfter = nil
	first := i.Line - before
	if first < 1 {
		first = 1
	}
	for idx, line := range lines {
		n := first + idx
		switch {
		case n < i.Line:
			i.ContextBefore = append(i.ContextBefore, line)
		case n == i.Line:
			if i.Snippet == "" {
				i.Snippet = Truncate(strings.TrimSpace(line), MaxSnippetLen)
			}
		default:
			i.ContextAfter = append(i.ContextAfter, line)
		}
	}
	return nil
}

// MaxSnippetLen bounds the snippet stored on an issue.
const MaxSnippetLen = 80

// Truncate shortens s to at most max bytes without splitting a rune,
// marking the cut with "...".
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	cut := max - 3
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// Sort orders issues by level, category, descending priority, then rule and
// location so that reports are reproducible.
func Sort(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		x, y := issues[a], issues[b]
		if x.Level.Rank() != y.Level.Rank() {
			return x.Level.Rank() < y.Level.Rank()
		}
		if x.Category.Rank() != y.Category.Rank() {
			return x.Category.Rank() < y.Category.Rank()
		}
		if x.Priority != y.Priority {
			return x.Priority > y.Priority
		}
		if x.Rule != y.Rule {
			return x.Rule < y.Rule
		}
		if x.File != y.File {
			return x.File < y.File
		}
		return x.Line < y.Line
	})
}

// SortByPriority orders issues by descending priority, keeping input order on ties.
func SortByPriority(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		return issues[a].Priority > issues[b].Priority
	})
}

// CountByLevel tallies issues per severity. Every level is present in the
// result.
func CountByLevel(issues []Issue) map[Level]int {
	counts := make(map[Level]int, len(Levels))
	for _, l := range Levels {
		counts[l] = 0
	}
	for _, issue := range issues {
		counts[issue.Severity()]++
	}
	return counts
}

// CountByCategory tallies issues per category. Every category is present in the result.
func CountByCategory(issues []Issue) map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}
	for _, issue := range issues {
		counts[issue.Category]++
	}
	return counts
}

// FilterLevel returns the issues whose severity is one of levels,
// preserving order.
func FilterLevel(issues []Issue, levels ...Level) []Issue {
	var out []Issue
	for _, issue := range issues {
		sev := issue.Severity()
		for _, l := range levels {
			if sev == l {
				out = append(out, issue)
				break
			}
		}
	}
	return out
}

// Blockers returns the release-blocking issues.
func Blockers(issues []Issue) []Issue {
	return FilterLevel(issues, LevelBlocker)
}
