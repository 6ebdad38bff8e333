package triggers

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/routing"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

const catalogYAML = `
triggers:
  docs-update:
    description: Documentation changes
    priority: low
    enforcement: suggest
    file_triggers:
      path_patterns: ["doc/**/*.md"]
    prompt_triggers:
      keywords: [documentation]
    load_documents:
      - path: doc/process/DOC_STYLE.md
        priority: low
  db-migration:
    description: Database migrations need a lint pass
    priority: critical
    enforcement: block
    file_triggers:
      path_patterns: ["db/migrations/*.sql"]
      content_patterns: ["CREATE\\s+TABLE"]
    prompt_triggers:
      keywords: [migration]
      intent_patterns: ["(add|create).*table"]
    load_documents:
      - path: db/README.md
        priority: high
        note: schema conventions
      - path: doc/process/DOC_STYLE.md
    block_config:
      message: Run make db_lint before touching migrations
      skip_conditions:
        make_commands_passed: ["make db_lint"]
  api-change:
    description: API contract changes
    priority: high
    enforcement: warn
    file_triggers:
      path_patterns: ["modules/*/api/**"]
    prompt_triggers:
      keywords: [endpoint]
    load_documents:
      - path: doc/CONTRACT.md
    warn_config:
      message: API changes need a contract update
  schema-docs:
    description: Schema notes
    priority: high
    enforcement: suggest
    prompt_triggers:
      intent_patterns: ["schema"]
    load_documents:
      - path: ./db/README.md
config:
  priority_order: [critical, high, medium, low]
`

func parseCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Parse("agent-triggers.yaml", []byte(catalogYAML))
	require.NoError(t, err)
	return c
}

func ids(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Rule.ID
	}
	return out
}

func TestParse(t *testing.T) {
	c := parseCatalog(t)
	require.Len(t, c.Rules, 4)
	assert.Equal(t, "docs-update", c.Rules[0].ID)
	assert.Equal(t, 1, c.Rules[1].Order())

	r, ok := c.Rule("db-migration")
	require.True(t, ok)
	assert.Equal(t, EnforcementBlock, r.Enforcement)
	assert.Equal(t, "Run make db_lint before touching migrations", r.Message())
	assert.Equal(t, []string{"make db_lint"}, r.BlockConfig.SkipConditions.MakeCommandsPassed)
	assert.False(t, r.BlockConfig.SkipConditions.IsZero())

	warn, _ := c.Rule("api-change")
	assert.True(t, warn.WarnConfig.NeedsConfirmation(), "confirmation defaults to on")

	suggest, _ := c.Rule("docs-update")
	assert.Equal(t, "Documentation changes", suggest.Message())
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing description", "triggers:\n  a: {priority: high, enforcement: warn}\n", "description is required"},
		{"missing priority", "triggers:\n  a: {description: d, enforcement: warn}\n", "priority is required"},
		{"unknown priority", "triggers:\n  a: {description: d, priority: urgent, enforcement: warn}\n", "not in priority_order"},
		{"missing enforcement", "triggers:\n  a: {description: d, priority: high}\n", "enforcement is required"},
		{"bad enforcement", "triggers:\n  a: {description: d, priority: high, enforcement: deny}\n", "unknown enforcement"},
		{"absolute document", "triggers:\n  a: {description: d, priority: high, enforcement: warn, load_documents: [{path: /etc/passwd}]}\n", "repo-relative"},
		{"escaping document", "triggers:\n  a: {description: d, priority: high, enforcement: warn, load_documents: [{path: ../x.md}]}\n", "escapes"},
		{"bad regex", "triggers:\n  a: {description: d, priority: high, enforcement: warn, file_triggers: {content_patterns: ['(']}}\n", "content pattern"},
		{"duplicate id", "triggers:\n  a: {description: d, priority: high, enforcement: warn}\n  a: {description: d, priority: high, enforcement: warn}\n", ""},
		{"bad priority order", "config: {priority_order: [urgent]}\n", "priority_order"},
		{"triggers not a mapping", "triggers: [a, b]\n", "mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("c.yaml", []byte(tt.yaml))
			require.Error(t, err)
			var cfgErr *types.ConfigError
			assert.True(t, errors.As(err, &cfgErr))
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestMatchFileByPath(t *testing.T) {
	root := t.TempDir()
	m := NewMatcher(root, parseCatalog(t))

	assert.Equal(t, []string{"db-migration"}, ids(m.MatchFile("db/migrations/001_create_users_up.sql")))
	assert.Equal(t, []string{"db-migration"}, ids(m.MatchFile(filepath.Join(root, "db", "migrations", "001_create_users_up.sql"))))
	assert.Equal(t, []string{"db-migration"}, ids(m.MatchFile("./db/migrations/002.sql")))
	assert.Equal(t, []string{"api-change"}, ids(m.MatchFile("modules/user/api/v1/handler.go")))
	assert.Equal(t, []string{"docs-update"}, ids(m.MatchFile("doc/guides/setup.md")))
	assert.Empty(t, m.MatchFile("README.md"))
}

func TestMatchFileByContent(t *testing.T) {
	root := t.TempDir()
	m := NewMatcher(root, parseCatalog(t))

	path := filepath.Join(root, "schema", "init.sql")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("-- users\ncreate   table users (id int);\n"), 0644))

	matches := m.MatchFile("schema/init.sql")
	assert.Equal(t, []string{"db-migration"}, ids(matches))
	assert.Contains(t, matches[0].Reason, "content")

	late := filepath.Join(root, "schema", "late.sql")
	content := strings.Repeat("-- padding\n", ContentScanLimit/11+10) + "CREATE TABLE t (id int);\n"
	require.NoError(t, os.WriteFile(late, []byte(content), 0644))
	assert.Empty(t, m.MatchFile("schema/late.sql"), "content past the scan limit is not seen")

	assert.Empty(t, m.MatchFile("schema/missing.sql"))
}

func TestMatchPromptOrdering(t *testing.T) {
	m := NewMatcher(t.TempDir(), parseCatalog(t))

	matches := m.MatchPrompt("Update the documentation for the new ENDPOINT and add a migration")
	assert.Equal(t, []string{"db-migration", "api-change", "docs-update"}, ids(matches))

	again := m.MatchPrompt("Update the documentation for the new ENDPOINT and add a migration")
	assert.Equal(t, ids(matches), ids(again), "ordering is stable")

	matches = m.MatchPrompt("please Create a users TABLE")
	assert.Equal(t, []string{"db-migration"}, ids(matches))
	assert.Contains(t, matches[0].Reason, "intent")

	assert.Empty(t, m.MatchPrompt("refactor the logger"))
}

func TestSortTiesByDeclaration(t *testing.T) {
	c := parseCatalog(t)
	api, _ := c.Rule("api-change")
	schema, _ := c.Rule("schema-docs")
	rules := []*Rule{schema, api}
	c.Sort(rules)
	assert.Equal(t, []*Rule{api, schema}, rules)
}

func TestDocuments(t *testing.T) {
	c := parseCatalog(t)
	m := NewMatcher(t.TempDir(), c)
	rules := Rules(m.MatchPrompt("migration schema documentation"))

	docs := Documents(rules)
	paths := make([]string, len(docs))
	for i, d := range docs {
		paths[i] = d.Path
	}
	assert.Equal(t, []string{"db/README.md", "doc/process/DOC_STYLE.md"}, paths)
	assert.Equal(t, "schema conventions", docs[0].Note)
}

func TestMissingMakeTargets(t *testing.T) {
	c := parseCatalog(t)
	assert.Equal(t, []string{"make db_lint"}, c.MakeCommands())
	assert.Equal(t, []string{"make db_lint"}, c.MissingMakeTargets([]string{"lint", "test"}))
	assert.Empty(t, c.MissingMakeTargets([]string{"db_lint"}))
}

func TestValidateAgentRefs(t *testing.T) {
	c := parseCatalog(t)
	good, err := routing.ParseAgentDoc("AGENTS.md", []byte("---\ntrigger_config:\n  rules: [db-migration]\n---\n"))
	require.NoError(t, err)
	bad, err := routing.ParseAgentDoc("modules/x/AGENTS.md", []byte("---\ntrigger_config:\n  rules: [db-migration, nope]\n---\n"))
	require.NoError(t, err)
	disabled, err := routing.ParseAgentDoc("modules/y/AGENTS.md", []byte("---\ntrigger_config:\n  enabled: false\n  rules: [nope]\n---\n"))
	require.NoError(t, err)

	errs := ValidateAgentRefs(c, []*routing.AgentDoc{good, bad, disabled})
	require.Len(t, errs, 1)
	assert.Equal(t, "nope", errs[0].Rule)
	assert.Contains(t, errs[0].Error(), "modules/x/AGENTS.md")
}
