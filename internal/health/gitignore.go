package health

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SensitiveFilePatterns are files that should never be committed.
var SensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"credentials.json",
	"secrets.yaml",
	"secrets.yml",
	"id_rsa*",
	"id_dsa*",
	"id_ecdsa*",
	"id_ed25519*",
}

// safeEnvTemplates are committed on purpose.
var safeEnvTemplates = []string{".env.example", ".env.sample", ".env.template", ".env.dist"}

// ReadGitignore returns the non-comment entries of root/.gitignore. The
// second result is false when the file does not exist.
func ReadGitignore(root string) ([]string, bool) {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		entries = append(entries, strings.TrimPrefix(line, "/"))
	}
	return entries, true
}

// GitignoreCovers reports whether any entry ignores path.
func GitignoreCovers(entries []string, path string) bool {
	for _, entry := range entries {
		if matchIgnorePattern(path, entry) {
			return true
		}
	}
	return false
}

// matchIgnorePattern checks if a file path matches a gitignore-style pattern.
func matchIgnorePattern(path, pattern string) bool {
	// Handle directory patterns (ending with /)
	if strings.HasSuffix(pattern, "/") {
		dirPattern := strings.TrimSuffix(pattern, "/")
		return strings.HasPrefix(path, dirPattern+"/") || strings.Contains(path, "/"+dirPattern+"/")
	}

	// Handle wildcard patterns
	if strings.Contains(pattern, "*") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
		matched, err = filepath.Match(pattern, path)
		return err == nil && matched
	}

	// Exact match (filename or full path)
	return filepath.Base(path) == pattern || path == pattern
}

// IsSensitiveFile reports whether path looks like committed key material
// or an environment file.
func IsSensitiveFile(path string) bool {
	base := filepath.Base(path)
	for _, safe := range safeEnvTemplates {
		if base == safe {
			return false
		}
	}
	for _, pattern := range SensitiveFilePatterns {
		if matchIgnorePattern(path, pattern) {
			return true
		}
	}
	return false
}

// UnignoredSensitiveFiles lists sensitive files in the tree that
// .gitignore does not cover.
func UnignoredSensitiveFiles(root string, excludes []string) ([]string, error) {
	entries, _ := ReadGitignore(root)
	var out []string
	err := WalkFiles(root, ".", nil, excludes, func(rel string) error {
		if IsSensitiveFile(rel) && !GitignoreCovers(entries, rel) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning for sensitive files: %w", err)
	}
	return out, nil
}
