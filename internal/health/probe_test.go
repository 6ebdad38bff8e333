package health

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/gates"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

type fakeRunner struct {
	results map[string]*gates.Result
	delay   time.Duration
	calls   []string
}

func (f *fakeRunner) Run(ctx context.Context, command string) *gates.Result {
	f.calls = append(f.calls, command)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return &gates.Result{Command: command, ExitCode: -1, Error: ctx.Err()}
		}
	}
	if r, ok := f.results[command]; ok {
		r.Command = command
		return r
	}
	return &gates.Result{Command: command, ExitCode: 0, Passed: true}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newTestContext(t *testing.T, root string, runner gates.CommandRunner) *RepoContext {
	t.Helper()
	rc, err := NewRepoContext(config.DefaultSettings(root), runner)
	require.NoError(t, err)
	rc.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return rc
}

func issueRules(issues []types.Issue) []string {
	var rules []string
	for _, i := range issues {
		rules = append(rules, i.Rule)
	}
	return rules
}

const rootAgentMD = `---
spec_version: "1.0"
agent_id: root
role: orchestrator
module_type: root
level: 1
context_routes:
  always_read:
    - /doc/INDEX.md
    - doc/guides/*.md
---
# Agents
`

func TestDefaultProbesCoverEveryDimension(t *testing.T) {
	reg := NewDefaultRegistry()
	assert.Len(t, reg.List(), 23)

	counts := map[Dimension]int{
		DimensionCodeQuality:    4,
		DimensionDocumentation:  4,
		DimensionArchitecture:   4,
		DimensionAIFriendliness: 7,
		DimensionOperations:     4,
	}
	for dim, want := range counts {
		assert.Len(t, reg.ByDimension(dim), want, dim)
	}

	for _, p := range DefaultProbes() {
		assert.NotEmpty(t, p.Philosophy(), p.Name())
		assert.NotEmpty(t, p.Cost().Category, p.Name())
	}

	err := reg.Register(&LintProbe{})
	assert.Error(t, err)
}

func TestLintProbe(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Makefile":            "lint:\n\truff check .\n",
		"modules/a/x.py":      "x = 1\n",
		"modules/a/y.py":      "y = 2\n",
		"modules/a/README.md": "# a\n",
	})

	t.Run("clean run", func(t *testing.T) {
		rc := newTestContext(t, root, &fakeRunner{})
		result, err := (&LintProbe{}).Check(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, 100.0, result.Value)
		assert.Empty(t, result.Issues)
	})

	t.Run("findings", func(t *testing.T) {
		runner := &fakeRunner{results: map[string]*gates.Result{
			"make lint": {ExitCode: 1, Output: "./modules/a/x.py:3:1: E501 line too long\nmodules/a/x.py:9:1: F401 unused\n"},
		}}
		rc := newTestContext(t, root, runner)
		result, err := (&LintProbe{}).Check(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, 50.0, result.Value)
		require.Len(t, result.Issues, 1)
		assert.Equal(t, "CQ-001", result.Issues[0].Rule)
		assert.Equal(t, "modules/a/x.py", result.Issues[0].File)
	})

	t.Run("missing target", func(t *testing.T) {
		rc := newTestContext(t, root, &fakeRunner{})
		rc.Settings.LintCommand = "make nope"
		_, err := (&LintProbe{}).Check(context.Background(), rc)
		assert.ErrorIs(t, err, ErrCommandUnavailable)
	})
}

func TestCoverageProbeTimeout(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"Makefile": "test_coverage:\n\tpytest --cov\n"})

	rc := newTestContext(t, root, &fakeRunner{delay: time.Second})
	rc.Settings.ProbeTimeout = 10 * time.Millisecond

	_, err := (&CoverageProbe{}).Check(context.Background(), rc)
	assert.ErrorIs(t, err, gates.ErrTimeout)
}

func TestParseCoverage(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   float64
		ok     bool
	}{
		{"coverage.py", "Name  Stmts  Miss  Cover\nfoo.py  10  2  80%\nTOTAL  100  13  87%\n", 87, true},
		{"go tool cover", "a.go:3: F 100.0%\ntotal:\t(statements)\t72.5%\n", 72.5, true},
		{"go test packages", "ok  a  0.1s  coverage: 80.0% of statements\nok  b  0.2s  coverage: 60.0% of statements\n", 70, true},
		{"nothing", "no tests ran", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCoverage(tt.output)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestAlwaysReadProbes(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"AGENTS.md":       rootAgentMD,
		"doc/INDEX.md":    "# Index\n\nline\n",
		"doc/guides/a.md": "# A\n",
		"doc/guides/b.md": "# B\n",
	})
	rc := newTestContext(t, root, &fakeRunner{})

	files, err := (&AlwaysReadFilesProbe{}).Check(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 3.0, files.Value)
	assert.Equal(t, []string{"AI-003"}, issueRules(files.Issues))
	assert.Equal(t, "doc/INDEX.md, doc/guides/a.md, doc/guides/b.md", files.Details["files"])

	lines, err := (&AlwaysReadLinesProbe{}).Check(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 5.0, lines.Value)
	assert.Empty(t, lines.Issues)

	docLines, err := (&AgentDocLinesProbe{}).Check(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, float64(strings.Count(rootAgentMD, "\n")), docLines.Value)
}

func TestMigrationProbe(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"db/migrations/001_users_up.sql":   "CREATE TABLE users();",
		"db/migrations/001_users_down.sql": "DROP TABLE users;",
		"db/migrations/002_orders_up.sql":  "CREATE TABLE orders();",
	})
	rc := newTestContext(t, root, &fakeRunner{})

	result, err := (&MigrationProbe{}).Check(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.Value)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "OPS-001", result.Issues[0].Rule)
	assert.Equal(t, "db/migrations/002_orders_up.sql", result.Issues[0].File)
	assert.Contains(t, result.Issues[0].Suggestion, "002_orders_down.sql")
}

func TestObservabilityProbe(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"observability/logging/logging.yaml": "level: info\n",
		"observability/metrics/metrics.yaml": "metrics: []\n",
		"observability/DASHBOARDS.md":        "# Dashboards\n",
	})
	rc := newTestContext(t, root, &fakeRunner{})

	result, err := (&ObservabilityProbe{}).Check(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 3.0, result.Value)
	assert.Equal(t, "true", result.Details["dashboards"])
	assert.Equal(t, "false", result.Details["tracing"])
	assert.Equal(t, []string{"OPS-003", "OPS-003"}, issueRules(result.Issues))
}

func TestConfigComplianceProbe(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"config/dev.yaml":    "debug: true\n",
		"config/test.yaml":   "debug: false\n",
		"config/prod.yaml":   "debug: false\n",
		"config/schema.yaml": "debug: {type: bool}\n",
	})
	rc := newTestContext(t, root, &fakeRunner{})

	result, err := (&ConfigComplianceProbe{}).Check(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Value)
	assert.Empty(t, result.Issues)

	writeFiles(t, root, map[string]string{"config/broken.yaml": "key: [unterminated\n"})
	result, err = (&ConfigComplianceProbe{}).Check(context.Background(), newTestContext(t, root, &fakeRunner{}))
	require.NoError(t, err)
	assert.Equal(t, 80.0, result.Value)
	assert.Equal(t, "false", result.Details["config_parses"])
}

func TestSecurityHygieneProbe(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".gitignore":       ".env\n",
		"config/prod.yaml": "db_password: \"s3cretPassw0rd!\"\n",
	})
	rc := newTestContext(t, root, &fakeRunner{})

	result, err := (&SecurityHygieneProbe{}).Check(context.Background(), rc)
	require.NoError(t, err)
	// no_secrets and keys_ignored fail
	assert.Equal(t, 2.0, result.Value)
	assert.Equal(t, []string{SecretRule, "SEC-001"}, issueRules(result.Issues))
	assert.True(t, result.Issues[0].IsBlocker())
	assert.Equal(t, "false", result.Details["no_secrets"])
	assert.Equal(t, "true", result.Details["env_ignored"])
}

func TestProbesWithoutRegistry(t *testing.T) {
	rc := newTestContext(t, t.TempDir(), &fakeRunner{})

	_, err := (&RegistryConsistencyProbe{}).Check(context.Background(), rc)
	assert.Error(t, err)
	_, err = (&AgentDocLinesProbe{}).Check(context.Background(), rc)
	assert.Error(t, err)
}
