package health

import (
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// DefaultExcludes are skipped by every tree walk.
var DefaultExcludes = []string{
	".git/",
	"node_modules/",
	"vendor/",
	"tmp/",
	"__pycache__/",
	".venv/",
	"venv/",
	"dist/",
	"build/",
	"ai/maintenance_reports/",
}

// ShouldExcludePath checks if a path matches any exclude patterns.
// Patterns can be:
//   - Directory prefixes: "vendor/" matches "vendor/foo.go"
//   - File suffixes: "_test.go" matches "foo_test.go"
//   - Anywhere in path: ".git/" matches "src/.git/config"
func ShouldExcludePath(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		// Match at path component boundaries so "vendor/" does not match
		// "vendorized/bar".
		if strings.HasPrefix(relPath, pattern) ||
			strings.Contains(relPath, "/"+pattern) ||
			strings.HasSuffix(relPath, pattern) {
			return true
		}
	}
	return false
}

// WalkFiles calls fn for every regular file under root/dir whose extension
// is in exts (all files when exts is empty), skipping excluded paths. The
// path passed to fn is slash-separated and relative to root.
func WalkFiles(root, dir string, exts []string, excludes []string, fn func(rel string) error) error {
	start := filepath.Join(root, filepath.FromSlash(dir))
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == start {
				return err
			}
			return nil // unreadable entries are skipped
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && ShouldExcludePath(rel+"/", excludes) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ShouldExcludePath(rel, excludes) {
			return nil
		}
		if len(exts) > 0 && !hasExt(rel, exts) {
			return nil
		}
		return fn(rel)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Percent returns part/total as a percentage. An empty total is 100%:
// nothing to measure means nothing is missing.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(part) / float64(total) * 100
}

// Summarize builds a Distribution from values.
func Summarize(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	p95 := sorted[int(math.Ceil(0.95*float64(n)))-1]
	return Distribution{
		Mean:   sum / float64(n),
		Median: median,
		P95:    p95,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Count:  n,
	}
}

func formatDetail(value interface{}) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	case []string:
		return strings.Join(v, ", ")
	}
	return cast.ToString(value)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
