package health

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// Secret kinds.
const (
	SecretAPIKey       = "api_key"
	SecretPassword     = "password"
	SecretToken        = "token"
	SecretPrivateKey   = "private_key"
	SecretAWSAccessKey = "aws_access_key"
	SecretDBConnection = "db_connection"
)

// SecretRule is the rule id every secret finding carries.
const SecretRule = "BLOCKER-001"

// maxSecretFileSize skips large files (lockfiles, bundles).
const maxSecretFileSize = 1 << 20

type secretPattern struct {
	kind  string
	re    *regexp.Regexp
	group int // capture group holding the secret value; 0 means whole match
}

// secretPatterns is compiled once; order decides which kind wins when
// several match the same line.
var secretPatterns = compileSecretPatterns()

func compileSecretPatterns() []secretPattern {
	specs := []struct {
		kind    string
		pattern string
		group   int
	}{
		{SecretPrivateKey, `-----BEGIN\s+(?:RSA\s+|EC\s+|DSA\s+|OPENSSH\s+|ENCRYPTED\s+)?PRIVATE\s+KEY-----`, 0},
		{SecretAWSAccessKey, `\b((?:AKIA|ASIA)[0-9A-Z]{16})\b`, 1},
		{SecretDBConnection, `(?i)\b(?:postgres(?:ql)?|mysql|mariadb|mongodb(?:\+srv)?|redis|amqp|mssql)://[^:\s/@]+:([^@\s]+)@[^\s"']+`, 1},
		{SecretAPIKey, `(?i)\b[\w-]*(?:api[_-]?key|apikey|access[_-]?key)\b["']?\s*[:=]\s*["']?([A-Za-z0-9_\-.]{16,})["']?`, 1},
		{SecretPassword, `(?i)\b[\w-]*(?:password|passwd|pwd)\b["']?\s*[:=]\s*["']?([^"'\s]{6,})["']?`, 1},
		{SecretToken, `(?i)\b[\w-]*(?:token|secret)\b["']?\s*[:=]\s*["']?([A-Za-z0-9_\-./+=]{12,})["']?`, 1},
	}

	var compiled []secretPattern
	for _, s := range specs {
		compiled = append(compiled, secretPattern{kind: s.kind, re: regexp.MustCompile(s.pattern), group: s.group})
	}
	return compiled
}

// placeholderPatterns exclude values that are obviously not real secrets.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)x{3,}`),
	regexp.MustCompile(`(?i)^your[_-]`),
	regexp.MustCompile(`\$\{[^}]*\}`),
	regexp.MustCompile(`\{\{[^}]*\}\}`),
	regexp.MustCompile(`^<[^>]*>$`),
	regexp.MustCompile(`(?i)example|sample|dummy|fake|mock|changeme|change_me|todo|placeholder|redacted|replace_?me`),
	regexp.MustCompile(`^0+$`),
	regexp.MustCompile(`^1+$`),
	regexp.MustCompile(`^\*+$`),
	regexp.MustCompile(`(?i)^(none|null|nil|true|false|password|secret|token|required|optional)$`),
	regexp.MustCompile(`(?i)os\.environ|getenv|process\.env|env\[|^\$[A-Za-z_]+$|^%\(?[A-Za-z_]+`),
	regexp.MustCompile(`^[A-Za-z_][\w.]*\((?:[^()]*\))?$`),
}

// IsPlaceholder reports whether a captured value is a placeholder.
func IsPlaceholder(value string) bool {
	for _, re := range placeholderPatterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// secretExcludes are paths whose content is allowed to look like secrets.
var secretExcludes = []string{
	"doc/",
	"docs/",
	"test/",
	"tests/",
	"testdata/",
	"example/",
	"examples/",
	"fixtures/",
	"_test.go",
	"_test.py",
	".env.example",
	".env.sample",
	".env.template",
}

// secretExtensions bound the scan to code, config and docs.
var secretExtensions = map[string]bool{
	".py": true, ".go": true, ".js": true, ".ts": true, ".java": true, ".rb": true,
	".php": true, ".sh": true, ".yaml": true, ".yml": true, ".json": true, ".toml": true,
	".ini": true, ".cfg": true, ".conf": true, ".properties": true, ".env": true,
	".md": true, ".txt": true, ".sql": true, ".tf": true,
}

func isSecretCandidate(rel string) bool {
	base := filepath.Base(rel)
	if base == ".env" || strings.HasPrefix(base, ".env.") {
		return true
	}
	return secretExtensions[strings.ToLower(filepath.Ext(rel))]
}

// SecretFinding is one credential-shaped value.
type SecretFinding struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Kind    string `json:"kind"`
	Snippet string `json:"snippet"`
	Pattern string `json:"pattern"`
}

// ToIssue converts the finding into a blocker issue.
func (f SecretFinding) ToIssue() types.Issue {
	issue := types.Issue{
		Level:         types.LevelBlocker,
		Category:      types.CategorySecurity,
		Rule:          SecretRule,
		Message:       fmt.Sprintf("Possible %s committed in %s", strings.ReplaceAll(f.Kind, "_", " "), f.File),
		File:          f.File,
		Line:          f.Line,
		Snippet:       f.Snippet,
		Suggestion:    "Move the value into an environment variable or secret store and rotate it",
		EstimatedTime: "15 minutes",
		Impact:        "Leaked credentials can be used by anyone with read access to the repository",
		Priority:      100,
		Tags:          []string{"secret", f.Kind},
		Metadata:      map[string]string{"kind": f.Kind, "pattern": f.Pattern},
	}
	if base := filepath.Base(f.File); base == ".env" || strings.HasPrefix(base, ".env.") {
		issue.FixCommand = fmt.Sprintf("git rm --cached %s && echo %s >> .gitignore", f.File, base)
	}
	return issue
}

// SecretScanResult is the outcome of ScanSecrets.
type SecretScanResult struct {
	FilesScanned int             `json:"files_scanned"`
	Findings     []SecretFinding `json:"findings"`
}

// Issues converts every finding.
func (r *SecretScanResult) Issues() []types.Issue {
	issues := make([]types.Issue, 0, len(r.Findings))
	for _, f := range r.Findings {
		issues = append(issues, f.ToIssue())
	}
	return issues
}

// ScanSecrets walks the repository for credential-shaped values.
func ScanSecrets(root string, excludes []string) (*SecretScanResult, error) {
	result := &SecretScanResult{Findings: []SecretFinding{}}
	allExcludes := append(append([]string(nil), excludes...), secretExcludes...)

	err := WalkFiles(root, ".", nil, allExcludes, func(rel string) error {
		if !isSecretCandidate(rel) {
			return nil
		}
		path := filepath.Join(root, filepath.FromSlash(rel))
		if info, err := os.Stat(path); err != nil || info.Size() > maxSecretFileSize {
			return nil
		}
		findings, err := scanSecretFile(path, rel)
		if err != nil {
			return nil // unreadable files are not findings
		}
		result.FilesScanned++
		result.Findings = append(result.Findings, findings...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning for secrets: %w", err)
	}
	return result, nil
}

func scanSecretFile(path, rel string) ([]SecretFinding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var findings []SecretFinding
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if finding, ok := matchSecretLine(line); ok {
			finding.File = rel
			finding.Line = lineNum
			findings = append(findings, finding)
		}
	}
	return findings, scanner.Err()
}

// matchSecretLine reports the first non-placeholder secret on a line.
func matchSecretLine(line string) (SecretFinding, bool) {
	for _, p := range secretPatterns {
		loc := p.re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		value := line[loc[0]:loc[1]]
		if p.group > 0 && len(loc) > 2*p.group+1 && loc[2*p.group] >= 0 {
			value = line[loc[2*p.group]:loc[2*p.group+1]]
		}
		if IsPlaceholder(value) {
			continue
		}
		return SecretFinding{
			Kind:    p.kind,
			Snippet: secretSnippet(line, loc[0]),
			Pattern: types.Truncate(p.re.String(), 60),
		}, true
	}
	return SecretFinding{}, false
}

// secretSnippet keeps the snippet within MaxSnippetLen while keeping the
// match start in view.
func secretSnippet(line string, start int) string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) <= types.MaxSnippetLen {
		return trimmed
	}
	from := start - 20
	if from < 0 {
		from = 0
	}
	for from > 0 && from < len(line) && line[from]&0xC0 == 0x80 {
		from--
	}
	return types.Truncate(strings.TrimSpace(line[from:]), types.MaxSnippetLen)
}
