package triggers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
)

// ContentScanLimit bounds how much of a file content patterns see.
const ContentScanLimit = 10 * 1024

// Match is a selected rule and what selected it.
type Match struct {
	Rule   *Rule
	Reason string
}

// Matcher evaluates a catalog against inputs from one repository.
type Matcher struct {
	Root    string
	Catalog *Catalog
}

// NewMatcher creates a matcher for the repository at root.
func NewMatcher(root string, catalog *Catalog) *Matcher {
	return &Matcher{Root: root, Catalog: catalog}
}

// Normalize converts an absolute or "./" path into a repo-relative one.
func (m *Matcher) Normalize(path string) string {
	return repo.Rel(m.Root, path)
}

// MatchFile returns the rules selected by a file path, in priority order.
// A rule matches when any path pattern matches, or when any content pattern
// matches the first ContentScanLimit bytes of a readable file.
func (m *Matcher) MatchFile(path string) []Match {
	rel := m.Normalize(path)

	var content []byte
	contentRead := false
	readContent := func() []byte {
		if !contentRead {
			contentRead = true
			content = readHead(filepath.Join(m.Root, filepath.FromSlash(rel)), ContentScanLimit)
		}
		return content
	}

	var matches []Match
	for _, rule := range m.Catalog.Rules {
		if reason := rule.matchPath(rel); reason != "" {
			matches = append(matches, Match{Rule: rule, Reason: reason})
			continue
		}
		if len(rule.content) == 0 {
			continue
		}
		if data := readContent(); data != nil {
			if reason := rule.matchContent(data); reason != "" {
				matches = append(matches, Match{Rule: rule, Reason: reason})
			}
		}
	}
	m.sort(matches)
	return matches
}

// MatchPrompt returns the rules selected by a prompt, in priority order.
func (m *Matcher) MatchPrompt(prompt string) []Match {
	lower := strings.ToLower(prompt)
	var matches []Match
	for _, rule := range m.Catalog.Rules {
		if reason := rule.matchPrompt(prompt, lower); reason != "" {
			matches = append(matches, Match{Rule: rule, Reason: reason})
		}
	}
	m.sort(matches)
	return matches
}

func (m *Matcher) sort(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return m.Catalog.less(matches[i].Rule, matches[j].Rule)
	})
}

func (r *Rule) matchPath(rel string) string {
	for _, g := range r.paths {
		if g.Match(rel) {
			return fmt.Sprintf("path %s", g.Pattern)
		}
	}
	return ""
}

func (r *Rule) matchContent(data []byte) string {
	for _, re := range r.content {
		if re.Match(data) {
			return fmt.Sprintf("content /%s/", strings.TrimPrefix(re.String(), "(?i)"))
		}
	}
	return ""
}

func (r *Rule) matchPrompt(prompt, lower string) string {
	for _, kw := range r.PromptTriggers.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return fmt.Sprintf("keyword %q", kw)
		}
	}
	for _, re := range r.intents {
		if re.MatchString(prompt) {
			return fmt.Sprintf("intent /%s/", strings.TrimPrefix(re.String(), "(?i)"))
		}
	}
	return ""
}

// readHead returns up to limit bytes of a file, or nil if it cannot be read.
func readHead(path string, limit int64) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil
	}
	return data
}

// Documents aggregates load_documents over rules in the given order,
// keeping the first occurrence of each path.
func Documents(rules []*Rule) []DocumentRef {
	seen := make(map[string]bool)
	var docs []DocumentRef
	for _, r := range rules {
		for _, d := range r.LoadDocuments {
			key := filepathClean(d.Path)
			if seen[key] {
				continue
			}
			seen[key] = true
			docs = append(docs, d)
		}
	}
	return docs
}

func filepathClean(p string) string {
	return filepath.ToSlash(filepath.Clean(strings.TrimPrefix(p, "./")))
}

// Rules extracts the rules of matches.
func Rules(matches []Match) []*Rule {
	rules := make([]*Rule, len(matches))
	for i, m := range matches {
		rules[i] = m.Rule
	}
	return rules
}
