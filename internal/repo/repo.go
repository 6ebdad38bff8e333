// Package repo locates the repository root and provides the small set of
// filesystem helpers every analyzer shares.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Anchors are the entries whose presence marks a repository root, in order
// of preference.
var Anchors = []string{"AGENTS.md", ".git"}

// Well-known locations relative to the repository root.
const (
	ScoringModelPath   = "doc/process/HEALTH_CHECK_MODEL.yaml"
	StrictModelPath    = "doc/process/HEALTH_CHECK_STRICT.yaml"
	TriggerCatalogPath = "doc/orchestration/agent-triggers.yaml"
	RegistryPath       = "doc/orchestration/registry.yaml"
	ReportsDir         = "ai/maintenance_reports"
	HistoryFile        = "ai/maintenance_reports/health-history.json"
	UsageFile          = "tmp/context_cache/route_usage.jsonl"
	RootAgentDoc       = "AGENTS.md"
	ObservabilityDir   = "observability"
	ModulesDir         = "modules"
	ScriptsDir         = "scripts"
	MigrationsDir      = "db/migrations"
	ConfigDir          = "config"
	DocDir             = "doc"
)

// FindRoot walks up from startDir to the nearest ancestor containing one of
// the anchors. REPOKIT_ROOT, when set, wins over discovery.
func FindRoot(startDir string) (string, error) {
	if root := os.Getenv("REPOKIT_ROOT"); root != "" {
		return filepath.Abs(root)
	}

	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		for _, anchor := range Anchors {
			if _, err := os.Stat(filepath.Join(dir, anchor)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf(
		"no repository root found from %s\n"+
			"  Expected one of %s in the directory or a parent\n"+
			"  Or use --root to specify the repository explicitly",
		startDir, strings.Join(Anchors, ", "))
}

// Rel converts path to a slash-separated path relative to root. Paths
// outside root are returned cleaned but otherwise unchanged.
func Rel(root, path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(strings.TrimPrefix(path, "./")))
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}

// Exists reports whether path (relative to root, or absolute) exists.
func Exists(root, path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, filepath.FromSlash(path))
	}
	_, err := os.Stat(path)
	return err == nil
}

// CountLines returns the number of lines in a file. A trailing line without
// a newline still counts.
func CountLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	n := strings.Count(string(data), "\n")
	if data[len(data)-1] != '\n' {
		n++
	}
	return n, nil
}
