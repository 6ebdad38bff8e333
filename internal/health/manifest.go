package health

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"
)

// ManifestFiles are the dependency manifests the clarity check understands.
var ManifestFiles = []string{"go.mod", "requirements.txt", "package.json"}

// ManifestResult is the validity of one dependency manifest.
type ManifestResult struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Deps  int    `json:"dependencies"`
}

// requirementRe accepts a PEP 508 name with optional extras, specifier and marker.
var requirementRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]*(\[[A-Za-z0-9_,\s\-]+\])?\s*((==|>=|<=|~=|!=|>|<|===)\s*[^\s;,]+\s*(,\s*(==|>=|<=|~=|!=|>|<)\s*[^\s;,]+\s*)*)?(;.*)?$`)

// CheckManifests validates every manifest present at the repository root.
func CheckManifests(root string) []ManifestResult {
	var results []ManifestResult
	for _, name := range ManifestFiles {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			continue
		}
		var deps int
		switch name {
		case "go.mod":
			deps, err = checkGoMod(name, data)
		case "requirements.txt":
			deps, err = checkRequirements(data)
		case "package.json":
			deps, err = checkPackageJSON(data)
		}
		r := ManifestResult{Path: name, Valid: err == nil, Deps: deps}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results
}

func checkGoMod(name string, data []byte) (int, error) {
	f, err := modfile.Parse(name, data, nil)
	if err != nil {
		return 0, err
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return 0, fmt.Errorf("missing module directive")
	}
	return len(f.Require), nil
}

func checkRequirements(data []byte) (int, error) {
	deps := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue // comments and pip options such as -r or -e
		}
		if !requirementRe.MatchString(line) {
			return deps, fmt.Errorf("line %d: invalid requirement %q", lineNum, line)
		}
		deps++
	}
	return deps, scanner.Err()
}

func checkPackageJSON(data []byte) (int, error) {
	var pkg struct {
		Name            string            `json:"name"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return 0, err
	}
	return len(pkg.Dependencies) + len(pkg.DevDependencies), nil
}
