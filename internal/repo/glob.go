package repo

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Glob is a compiled path pattern. "**" spans any number of path
// components, "*" and "?" stay within one component.
type Glob struct {
	Pattern string
	re      *regexp.Regexp
}

// CompileGlob translates a glob into an anchored regular expression.
func CompileGlob(pattern string) (*Glob, error) {
	p := strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	p = strings.TrimPrefix(p, "/")

	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '*':
			if i+1 < len(p) && p[i+1] == '*' {
				i++
				switch {
				case i+1 < len(p) && p[i+1] == '/':
					i++
					sb.WriteString("(?:.*/)?")
				default:
					sb.WriteString(".*")
				}
				continue
			}
			sb.WriteString("[^/]*")
		case '?':
			sb.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(p[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("invalid glob %q: unterminated [", pattern)
			}
			class := p[i+1 : i+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			sb.WriteString("[" + class + "]")
			i += end
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return &Glob{Pattern: pattern, re: re}, nil
}

// Match reports whether a slash-separated relative path matches.
func (g *Glob) Match(path string) bool {
	return g.re.MatchString(strings.TrimPrefix(filepath.ToSlash(path), "./"))
}

// IsGlob reports whether s contains glob metacharacters.
func IsGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// staticPrefix returns the directory part of a pattern before any
// metacharacter, so walks can start below the root.
func staticPrefix(pattern string) string {
	idx := strings.IndexAny(pattern, "*?[")
	if idx < 0 {
		return filepath.ToSlash(filepath.Dir(pattern))
	}
	prefix := pattern[:idx]
	if slash := strings.LastIndex(prefix, "/"); slash >= 0 {
		return prefix[:slash]
	}
	return "."
}

// ExpandGlob returns the files under root matching pattern, sorted and
// relative to root. Version-control and dependency directories are skipped.
func ExpandGlob(root, pattern string) ([]string, error) {
	g, err := CompileGlob(pattern)
	if err != nil {
		return nil, err
	}
	clean := strings.TrimPrefix(strings.TrimPrefix(filepath.ToSlash(pattern), "./"), "/")
	start := filepath.Join(root, filepath.FromSlash(staticPrefix(clean)))

	var matches []string
	walkErr := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "node_modules", "vendor", "__pycache__":
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if g.Match(filepath.ToSlash(rel)) {
			matches = append(matches, filepath.ToSlash(rel))
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	sort.Strings(matches)
	return matches, nil
}
