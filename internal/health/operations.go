package health

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// MigrationPair is an up-migration and its rollback.
type MigrationPair struct {
	Up      string `json:"up"`
	Down    string `json:"down"`
	HasDown bool   `json:"has_down"`
}

// FindMigrations pairs every *_up.sql under db/migrations with its *_down.sql.
func FindMigrations(root string, excludes []string) ([]MigrationPair, error) {
	var pairs []MigrationPair
	err := WalkFiles(root, repo.MigrationsDir, []string{".sql"}, excludes, func(rel string) error {
		if !strings.HasSuffix(rel, "_up.sql") {
			return nil
		}
		down := strings.TrimSuffix(rel, "_up.sql") + "_down.sql"
		pairs = append(pairs, MigrationPair{Up: rel, Down: down, HasDown: repo.Exists(root, down)})
		return nil
	})
	return pairs, err
}

// MigrationProbe measures the share of up-migrations with a rollback.
type MigrationProbe struct{}

// Name implements Probe.
func (p *MigrationProbe) Name() string { return "migration_completeness" }

// Dimension implements Probe.
func (p *MigrationProbe) Dimension() Dimension { return DimensionOperations }

// Philosophy implements Probe.
func (p *MigrationProbe) Philosophy() string {
	return "A migration without a rollback is a one-way door. Write the way back before you need it."
}

// Cost implements Probe.
func (p *MigrationProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 20 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *MigrationProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	pairs, err := FindMigrations(rc.Root, rc.Probes.Excludes)
	if err != nil {
		return nil, err
	}
	result := newResult(p, 0, "%")
	complete := 0
	for _, pair := range pairs {
		if pair.HasDown {
			complete++
			continue
		}
		issue := newIssue(p, "OPS-001", types.LevelError, 70, "Migration has no rollback")
		issue.File = pair.Up
		issue.Suggestion = "Add " + pair.Down
		issue.EstimatedTime = "30 minutes"
		result.Issues = append(result.Issues, issue)
	}
	result.Value = Percent(complete, len(pairs))
	result.SetDetail("migrations", len(pairs))
	result.SetDetail("with_rollback", complete)
	return result, nil
}

// ConfigChecks inspects config/: presence, parseability, one file per
// environment, a schema, and no secrets.
func ConfigChecks(rc *RepoContext) ([]CheckItem, error) {
	var files []string
	if err := WalkFiles(rc.Root, repo.ConfigDir, []string{".yaml", ".yml"}, rc.Probes.Excludes, func(rel string) error {
		files = append(files, rel)
		return nil
	}); err != nil {
		return nil, err
	}

	parseable := len(files) > 0
	hasSchema := false
	for _, rel := range files {
		base := filepath.Base(rel)
		if strings.Contains(base, "schema") {
			hasSchema = true
		}
		data, err := os.ReadFile(rc.Path(rel))
		if err != nil {
			parseable = false
			continue
		}
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			parseable = false
		}
	}

	envFiles := true
	for _, env := range []string{"dev", "test", "prod"} {
		if !repo.Exists(rc.Root, "config/"+env+".yaml") && !repo.Exists(rc.Root, "config/"+env+".yml") {
			envFiles = false
		}
	}

	secrets, err := rc.Secrets()
	if err != nil {
		return nil, err
	}
	noSecrets := true
	for _, f := range secrets.Findings {
		if strings.HasPrefix(f.File, repo.ConfigDir+"/") {
			noSecrets = false
		}
	}

	return []CheckItem{
		{Name: "config_present", Passed: len(files) > 0,
			Suggestion: "Keep runtime configuration under config/"},
		{Name: "config_parses", Passed: parseable,
			Suggestion: "Fix YAML syntax errors in config/"},
		{Name: "env_files", Passed: envFiles,
			Suggestion: "Provide config/dev.yaml, config/test.yaml and config/prod.yaml"},
		{Name: "config_schema", Passed: hasSchema,
			Suggestion: "Describe configuration keys in config/schema.yaml"},
		{Name: "no_inline_secrets", Passed: noSecrets,
			Suggestion: "Read credentials from the environment instead of config files"},
	}, nil
}

// ConfigComplianceProbe measures the share of configuration checks passed.
type ConfigComplianceProbe struct{}

// Name implements Probe.
func (p *ConfigComplianceProbe) Name() string { return "config_compliance" }

// Dimension implements Probe.
func (p *ConfigComplianceProbe) Dimension() Dimension { return DimensionOperations }

// Philosophy implements Probe.
func (p *ConfigComplianceProbe) Philosophy() string {
	return "Configuration is code that runs in production. It deserves structure and review."
}

// Cost implements Probe.
func (p *ConfigComplianceProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 100 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *ConfigComplianceProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	checks, err := ConfigChecks(rc)
	if err != nil {
		return nil, err
	}
	result := newResult(p, Percent(countPassed(checks), len(checks)), "%")
	recordChecks(p, result, "OPS-002", 45, checks)
	return result, nil
}

// ObservabilityChecks probes observability/ for the four signal kinds and
// a dashboard document.
func ObservabilityChecks(root string) []CheckItem {
	hasFiles := func(dir string) bool {
		found := false
		_ = WalkFiles(root, repo.ObservabilityDir+"/"+dir, nil, nil, func(string) error {
			found = true
			return filepath.SkipAll
		})
		return found
	}
	dashboards := false
	for _, dir := range []string{repo.ObservabilityDir, repo.DocDir} {
		_ = WalkFiles(root, dir, nil, DefaultExcludes, func(rel string) error {
			if strings.Contains(strings.ToLower(filepath.Base(rel)), "dashboard") {
				dashboards = true
				return filepath.SkipAll
			}
			return nil
		})
	}
	return []CheckItem{
		{Name: "logging", Passed: hasFiles("logging"), Suggestion: "Add logging configuration under observability/logging/"},
		{Name: "metrics", Passed: hasFiles("metrics"), Suggestion: "Add metric definitions under observability/metrics/"},
		{Name: "tracing", Passed: hasFiles("tracing"), Suggestion: "Add tracing configuration under observability/tracing/"},
		{Name: "alerts", Passed: hasFiles("alerts"), Suggestion: "Add alert rules under observability/alerts/"},
		{Name: "dashboards", Passed: dashboards, Suggestion: "Document dashboards in a *dashboard* file"},
	}
}

// ObservabilityProbe counts observability sub-checks passed.
type ObservabilityProbe struct{}

// Name implements Probe.
func (p *ObservabilityProbe) Name() string { return "observability_coverage" }

// Dimension implements Probe.
func (p *ObservabilityProbe) Dimension() Dimension { return DimensionOperations }

// Philosophy implements Probe.
func (p *ObservabilityProbe) Philosophy() string {
	return "You cannot operate what you cannot see."
}

// Cost implements Probe.
func (p *ObservabilityProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 20 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *ObservabilityProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	checks := ObservabilityChecks(rc.Root)
	result := newResult(p, float64(countPassed(checks)), "checks")
	recordChecks(p, result, "OPS-003", 35, checks)
	return result, nil
}

// SecurityChecks runs the four hygiene checks: no secrets, .env ignored,
// key files ignored, no unignored sensitive files.
func SecurityChecks(rc *RepoContext) ([]CheckItem, *SecretScanResult, error) {
	secrets, err := rc.Secrets()
	if err != nil {
		return nil, nil, err
	}
	entries, _ := ReadGitignore(rc.Root)
	keysIgnored := GitignoreCovers(entries, "server.pem") && GitignoreCovers(entries, "server.key")
	unignored, err := UnignoredSensitiveFiles(rc.Root, rc.Probes.Excludes)
	if err != nil {
		return nil, nil, err
	}

	return []CheckItem{
		{Name: "no_secrets", Passed: len(secrets.Findings) == 0,
			Suggestion: "Remove hardcoded credentials and rotate them"},
		{Name: "env_ignored", Passed: GitignoreCovers(entries, ".env"),
			Suggestion: "Add .env to .gitignore"},
		{Name: "keys_ignored", Passed: keysIgnored,
			Suggestion: "Add *.pem and *.key to .gitignore"},
		{Name: "sensitive_files_ignored", Passed: len(unignored) == 0,
			Suggestion: "Ignore or remove: " + strings.Join(unignored, ", ")},
	}, secrets, nil
}

// SecurityHygieneProbe counts security sub-checks passed. Secret findings
// are reported as blockers.
type SecurityHygieneProbe struct{}

// Name implements Probe.
func (p *SecurityHygieneProbe) Name() string { return "security_hygiene" }

// Dimension implements Probe.
func (p *SecurityHygieneProbe) Dimension() Dimension { return DimensionOperations }

// Philosophy implements Probe.
func (p *SecurityHygieneProbe) Philosophy() string {
	return "A leaked credential is an incident, not a code smell."
}

// Cost implements Probe.
func (p *SecurityHygieneProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 2 * time.Second, RequiresFullScan: true, Category: CostModerate}
}

// Check implements Probe.
func (p *SecurityHygieneProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	checks, secrets, err := SecurityChecks(rc)
	if err != nil {
		return nil, err
	}
	result := newResult(p, float64(countPassed(checks)), "checks")
	result.SetDetail("files_scanned", secrets.FilesScanned)
	result.SetDetail("secrets", len(secrets.Findings))
	result.Issues = append(result.Issues, secrets.Issues()...)

	// Secrets are already reported above; the remaining checks become SEC- issues.
	for _, c := range checks[1:] {
		result.SetDetail(c.Name, c.Passed)
		if c.Passed {
			continue
		}
		issue := newIssue(p, "SEC-001", types.LevelError, 75, "Security check failed: %s", c.Name)
		issue.Category = types.CategorySecurity
		issue.File = ".gitignore"
		issue.Suggestion = c.Suggestion
		issue.EstimatedTime = "5 minutes"
		result.Issues = append(result.Issues, issue)
	}
	result.SetDetail(checks[0].Name, checks[0].Passed)
	return result, nil
}
