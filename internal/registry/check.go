package registry

import (
	"fmt"
	"strings"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// Check names, in the order they are evaluated.
const (
	CheckUniqueIDs  = "unique_ids"
	CheckStatus     = "known_status"
	CheckLevel      = "level_range"
	CheckVersion    = "semver"
	CheckReferences = "references"
	CheckPaths      = "paths_exist"
	CheckAcyclic    = "acyclic"
)

// Checks lists every consistency check.
var Checks = []string{
	CheckUniqueIDs,
	CheckStatus,
	CheckLevel,
	CheckVersion,
	CheckReferences,
	CheckPaths,
	CheckAcyclic,
}

// CheckReport is the outcome of Check.
type CheckReport struct {
	Results map[string]bool `json:"results"`
	Cycles  [][]string      `json:"cycles,omitempty"`
	Issues  []types.Issue   `json:"issues"`
}

// Passed returns the number of checks that passed.
func (r *CheckReport) Passed() int {
	n := 0
	for _, ok := range r.Results {
		if ok {
			n++
		}
	}
	return n
}

// Percentage returns the share of passed checks, 0-100.
func (r *CheckReport) Percentage() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return float64(r.Passed()) / float64(len(r.Results)) * 100
}

// OK reports whether every check passed.
func (r *CheckReport) OK() bool {
	return r.Passed() == len(r.Results)
}

// Check validates the registry against the repository at root.
func Check(root string, reg *Registry) *CheckReport {
	report := &CheckReport{Results: make(map[string]bool, len(Checks))}
	for _, c := range Checks {
		report.Results[c] = true
	}
	fail := func(check string, issue types.Issue) {
		report.Results[check] = false
		issue.Category = types.CategoryArchitecture
		if issue.File == "" {
			issue.File = repo.RegistryPath
		}
		report.Issues = append(report.Issues, issue)
	}

	seen := make(map[string]int)
	for _, e := range reg.Modules {
		seen[e.ID]++
	}

	for _, e := range reg.Modules {
		if strings.TrimSpace(e.ID) == "" {
			fail(CheckUniqueIDs, types.Issue{
				Level:    types.LevelError,
				Rule:     "ARCH-001",
				Message:  fmt.Sprintf("Registry entry at %q has no id", e.Path),
				Priority: 80,
			})
			continue
		}
		if seen[e.ID] > 1 {
			fail(CheckUniqueIDs, types.Issue{
				Level:      types.LevelError,
				Rule:       "ARCH-001",
				Message:    fmt.Sprintf("Duplicate module id %q (%d entries)", e.ID, seen[e.ID]),
				Suggestion: "Give every module instance a unique id",
				Priority:   80,
			})
			seen[e.ID] = 1 // report once
		}
		if !e.Status.IsValid() {
			fail(CheckStatus, types.Issue{
				Level:      types.LevelWarning,
				Rule:       "ARCH-002",
				Message:    fmt.Sprintf("Module %s has unknown status %q", e.ID, e.Status),
				Suggestion: "Use one of active, deprecated, wip, archived",
				Priority:   40,
			})
		}
		if e.Level < 1 || e.Level > 4 {
			fail(CheckLevel, types.Issue{
				Level:    types.LevelWarning,
				Rule:     "ARCH-003",
				Message:  fmt.Sprintf("Module %s has level %d, expected 1-4", e.ID, e.Level),
				Priority: 40,
			})
		}
		if e.Version != "" && !ValidVersion(e.Version) {
			fail(CheckVersion, types.Issue{
				Level:    types.LevelWarning,
				Rule:     "ARCH-004",
				Message:  fmt.Sprintf("Module %s has invalid version %q", e.ID, e.Version),
				Priority: 35,
			})
		}
		for _, ref := range append(append([]string(nil), e.Upstream...), e.Downstream...) {
			if seen[ref] == 0 {
				fail(CheckReferences, types.Issue{
					Level:      types.LevelError,
					Rule:       "ARCH-005",
					Message:    fmt.Sprintf("Module %s references unknown module %q", e.ID, ref),
					Suggestion: "Register the referenced module or remove the edge",
					Priority:   75,
				})
			}
		}
		if e.Path == "" || !repo.Exists(root, e.Path) {
			fail(CheckPaths, types.Issue{
				Level:    types.LevelWarning,
				Rule:     "ARCH-006",
				Message:  fmt.Sprintf("Module %s path %q does not exist", e.ID, e.Path),
				Priority: 50,
			})
		}
	}

	report.Cycles = reg.Graph().Cycles()
	for _, cycle := range report.Cycles {
		fail(CheckAcyclic, types.Issue{
			Level:      types.LevelError,
			Rule:       "ARCH-007",
			Message:    fmt.Sprintf("Circular dependency detected: %s", FormatCycle(cycle)),
			Suggestion: "Break the cycle by extracting the shared contract into its own module",
			Priority:   90,
			Tags:       []string{"circular-dependency"},
			Metadata:   map[string]string{"cycle": strings.Join(cycle, ",")},
		})
	}

	return report
}
