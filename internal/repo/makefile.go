package repo

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var makeTargetRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_.\-/]*)\s*:([^=]|$)`)

// MakeTargets returns the explicit targets declared in the repository
// Makefile, sorted. A missing Makefile yields no targets.
func MakeTargets(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, "Makefile"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "#") {
			continue
		}
		m := makeTargetRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		target := m[1]
		if strings.HasPrefix(target, ".") {
			continue // .PHONY and friends
		}
		seen[target] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(seen))
	for t := range seen {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets, nil
}

// MakeTargetOf extracts the target from a command such as "make db_lint".
// The second result is false when the command is not a make invocation.
func MakeTargetOf(command string) (string, bool) {
	fields := strings.Fields(command)
	if len(fields) < 2 || fields[0] != "make" {
		return "", false
	}
	for _, f := range fields[1:] {
		if !strings.HasPrefix(f, "-") && !strings.Contains(f, "=") {
			return f, true
		}
	}
	return "", false
}
