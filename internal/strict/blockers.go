package strict

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/gates"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/registry"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// Checker runs the blocker checks of a Config.
type Checker struct {
	Root   string
	Config *Config

	// Registry is nil when the repository has no registry; RegistryErr
	// says why.
	Registry    *registry.Registry
	RegistryErr error

	Runner   gates.CommandRunner
	Excludes []string
	Timeout  time.Duration
}

// NewChecker creates a checker over rc's repository.
func NewChecker(cfg *Config, rc *health.RepoContext) *Checker {
	return &Checker{
		Root:        rc.Root,
		Config:      cfg,
		Registry:    rc.Registry,
		RegistryErr: rc.RegistryErr,
		Runner:      rc.Runner,
		Excludes:    rc.Probes.Excludes,
		Timeout:     rc.Settings.ProbeTimeout,
	}
}

// Run executes every blocker check in declaration order and returns the
// findings. Every returned issue is a blocker.
func (c *Checker) Run(ctx context.Context) ([]types.Issue, error) {
	var issues []types.Issue
	for i := range c.Config.BlockerChecks {
		check := &c.Config.BlockerChecks[i]
		var found []types.Issue
		var err error
		switch check.Rule {
		case RuleSecrets:
			found, err = c.checkSecrets(check)
		case RuleCycles:
			found, err = c.checkCycles(check)
		case RuleCriticalDocs:
			found = c.checkCriticalDocs(check)
		case RuleLicense:
			found = c.checkLicense(check)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", check.Rule, err)
		}
		if check.CheckCommand != "" {
			if issue, failed := c.runCommand(ctx, check); failed {
				found = append(found, issue)
			}
		}
		issues = append(issues, found...)
	}
	return issues, nil
}

func blocker(check *BlockerCheck, category types.Category, format string, args ...interface{}) types.Issue {
	return types.Issue{
		Level:    types.LevelBlocker,
		Category: category,
		Rule:     check.Rule,
		Message:  fmt.Sprintf(format, args...),
		Priority: 100,
		Tags:     []string{"strict", check.Name},
	}
}

func (c *Checker) checkSecrets(check *BlockerCheck) ([]types.Issue, error) {
	excludes := append(append([]string(nil), c.Excludes...), check.Excludes...)
	result, err := health.ScanSecrets(c.Root, excludes)
	if err != nil {
		return nil, err
	}
	issues := result.Issues()
	for i := range issues {
		issues[i].Rule = check.Rule
	}
	if len(check.patterns) == 0 {
		return issues, nil
	}

	seen := make(map[string]bool, len(issues))
	for _, i := range issues {
		seen[i.LocationString()] = true
	}
	extra, err := scanPatterns(c.Root, excludes, check.patterns)
	if err != nil {
		return nil, err
	}
	for _, f := range extra {
		issue := f.ToIssue()
		issue.Rule = check.Rule
		if !seen[issue.LocationString()] {
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

// scanPatterns applies custom secret regexes to text files. Placeholder
// values are skipped the same way the built-in scan skips them.
func scanPatterns(root string, excludes []string, patterns []*regexp.Regexp) ([]health.SecretFinding, error) {
	var findings []health.SecretFinding
	err := health.WalkFiles(root, ".", nil, excludes, func(rel string) error {
		f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Text()
			for _, re := range patterns {
				m := re.FindString(text)
				if m == "" || health.IsPlaceholder(m) {
					continue
				}
				findings = append(findings, health.SecretFinding{
					File:    rel,
					Line:    line,
					Kind:    "custom",
					Snippet: types.Truncate(strings.TrimSpace(text), types.MaxSnippetLen),
					Pattern: types.Truncate(re.String(), 60),
				})
				break
			}
		}
		return nil
	})
	return findings, err
}

func (c *Checker) checkCycles(check *BlockerCheck) ([]types.Issue, error) {
	if c.Registry == nil && c.RegistryErr != nil && !registry.IsNotExist(c.RegistryErr) {
		issue := blocker(check, types.CategoryArchitecture, "Registry cannot be read: %v", c.RegistryErr)
		issue.Suggestion = "Fix the registry so dependency cycles can be ruled out"
		return []types.Issue{issue}, nil
	}
	g, err := health.BuildModuleGraph(c.Root, c.Registry, c.Excludes)
	if err != nil {
		return nil, err
	}
	var issues []types.Issue
	for _, cycle := range g.Cycles() {
		issue := blocker(check, types.CategoryArchitecture, "Circular dependency: %s", registry.FormatCycle(cycle))
		issue.Suggestion = "Break the cycle by extracting the shared part into a lower-level module"
		issue.EstimatedTime = "2-4 hours"
		issue.Metadata = map[string]string{"cycle": strings.Join(cycle, ",")}
		issues = append(issues, issue)
	}
	return issues, nil
}

func (c *Checker) checkCriticalDocs(check *BlockerCheck) []types.Issue {
	var issues []types.Issue
	for _, doc := range check.RequiredDocs {
		if _, err := os.Stat(filepath.Join(c.Root, filepath.FromSlash(doc))); err == nil {
			continue
		}
		issue := blocker(check, types.CategoryDocumentation, "Critical document missing: %s", doc)
		issue.File = doc
		issue.Suggestion = "Create " + doc
		issue.EstimatedTime = "30 minutes"
		issues = append(issues, issue)
	}
	return issues
}

func (c *Checker) checkLicense(check *BlockerCheck) []types.Issue {
	file, id := DetectLicense(c.Root)
	switch {
	case file == "":
		issue := blocker(check, types.CategoryOperations, "No LICENSE file")
		issue.Suggestion = "Add a LICENSE file with one of: " + strings.Join(check.AllowedLicenses, ", ")
		issue.EstimatedTime = "5 minutes"
		return []types.Issue{issue}
	case id == "":
		issue := blocker(check, types.CategoryOperations, "License in %s is not recognized", file)
		issue.File = file
		issue.Suggestion = "Use the canonical license text or add an SPDX-License-Identifier line"
		return []types.Issue{issue}
	case len(check.AllowedLicenses) > 0 && !containsFold(check.AllowedLicenses, id):
		issue := blocker(check, types.CategoryOperations, "License %s is not allowed", id)
		issue.File = file
		issue.Suggestion = "Allowed licenses: " + strings.Join(check.AllowedLicenses, ", ")
		return []types.Issue{issue}
	}
	return nil
}

func (c *Checker) runCommand(ctx context.Context, check *BlockerCheck) (types.Issue, bool) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = gates.DefaultMakeTimeout
	}
	result := gates.RunWithTimeout(ctx, c.Runner, check.CheckCommand, timeout)
	if result.Passed {
		return types.Issue{}, false
	}
	issue := blocker(check, types.CategoryArchitecture, "%s check failed: %s", check.Name, check.CheckCommand)
	if errors.Is(result.Error, gates.ErrTimeout) {
		issue.Message += " (timeout)"
	} else if result.ExitCode > 0 {
		issue.Message += fmt.Sprintf(" (exit %d)", result.ExitCode)
	}
	if out := strings.TrimSpace(result.Output); out != "" {
		issue.Snippet = types.Truncate(strings.SplitN(out, "\n", 2)[0], types.MaxSnippetLen)
	}
	issue.FixCommand = check.CheckCommand
	return issue, true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
