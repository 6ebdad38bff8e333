package routing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentDoc = `---
# root agent
spec_version: "1.0"
agent_id: root
role: orchestrator
level: 1
context_routes:
  always_read:
    - /doc/INDEX.md
  on_demand:
    - topic: ops
      paths:
        - /doc/ops/*.md
    - topic: modules
      paths:
        - ./modules/README.md
  by_scope:
    - scope: db
      read:
        - db/README.md
trigger_config:
  enabled: true
  rules: [db-migration]
---
# Agents

Body text stays **exactly** as written.
`

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSplitFrontMatter(t *testing.T) {
	header, body, err := SplitFrontMatter([]byte("---\na: 1\n---\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(header))
	assert.Equal(t, "body\n", string(body))

	header, body, err = SplitFrontMatter([]byte("\xef\xbb\xbf---\r\na: 1\r\n---\r\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "a: 1\r\n", string(header))
	assert.Equal(t, "body", string(body))

	_, _, err = SplitFrontMatter([]byte("# no header\n"))
	assert.ErrorIs(t, err, ErrNoFrontMatter)

	_, _, err = SplitFrontMatter([]byte("---\na: 1\n"))
	assert.ErrorIs(t, err, ErrNoFrontMatter)
}

func TestParseAgentDoc(t *testing.T) {
	doc, err := ParseAgentDoc("AGENTS.md", []byte(agentDoc))
	require.NoError(t, err)

	fm := doc.FrontMatter
	assert.Equal(t, "root", fm.AgentID)
	assert.Equal(t, "orchestrator", fm.Role)
	assert.Equal(t, 1, fm.Level)
	assert.Equal(t, []string{"/doc/INDEX.md"}, fm.ContextRoutes.AlwaysRead)
	assert.Equal(t, []string{"ops", "modules"}, fm.ContextRoutes.Topics())
	require.NotNil(t, fm.TriggerConfig.Enabled)
	assert.True(t, *fm.TriggerConfig.Enabled)
	assert.Equal(t, []string{"db-migration"}, fm.TriggerConfig.Rules)

	assert.Equal(t, []string{"spec_version", "agent_id", "role", "level", "context_routes", "trigger_config"}, doc.Keys())
	assert.True(t, doc.HasKey("role"))
	assert.False(t, doc.HasKey("module_type"))
	assert.True(t, strings.HasPrefix(string(doc.Body), "# Agents"))
}

func TestResolvePath(t *testing.T) {
	root := "/repo"
	doc := "/repo/modules/user/AGENTS.md"
	assert.Equal(t, "doc/INDEX.md", ResolvePath(root, doc, "/doc/INDEX.md"))
	assert.Equal(t, "modules/user/doc/CONTRACT.md", ResolvePath(root, doc, "./doc/CONTRACT.md"))
	assert.Equal(t, "modules/README.md", ResolvePath(root, doc, "../README.md"))
	assert.Equal(t, "doc/INDEX.md", ResolvePath(root, doc, "doc/INDEX.md"))
}

func TestResolve(t *testing.T) {
	doc, err := ParseAgentDoc("/repo/AGENTS.md", []byte(agentDoc))
	require.NoError(t, err)

	docs, unknown := Resolve("/repo", doc, []string{"Modules", "ops", "missing"}, []string{"db"})
	assert.Equal(t, []string{"doc/INDEX.md", "doc/ops/*.md", "modules/README.md", "db/README.md"}, docs,
		"always_read first, then on_demand in declaration order, then by_scope")
	assert.Equal(t, []string{"topic:missing"}, unknown)

	docs, unknown = Resolve("/repo", doc, nil, nil)
	assert.Equal(t, []string{"doc/INDEX.md"}, docs)
	assert.Empty(t, unknown)
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "AGENTS.md", agentDoc)
	writeFile(t, root, "doc/INDEX.md", "# index\n")
	writeFile(t, root, "modules/README.md", "# modules\n")

	doc, err := ReadAgentDoc(path)
	require.NoError(t, err)

	problems := Validate(root, doc)
	require.Len(t, problems, 2)
	assert.Equal(t, "on_demand.ops", problems[0].Route)
	assert.Equal(t, "glob matches no files", problems[0].Reason)
	assert.Equal(t, "by_scope.db", problems[1].Route)
	assert.Equal(t, "file not found", problems[1].Reason)

	writeFile(t, root, "doc/ops/runbook.md", "# ops\n")
	writeFile(t, root, "db/README.md", "# db\n")
	assert.Empty(t, Validate(root, doc))
}

func TestReorderOnDemand(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "AGENTS.md", agentDoc)

	doc, err := ReadAgentDoc(path)
	require.NoError(t, err)
	require.NoError(t, doc.ReorderOnDemand([]string{"modules", "ops"}))
	require.NoError(t, doc.Write())

	reread, err := ReadAgentDoc(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"modules", "ops"}, reread.FrontMatter.ContextRoutes.Topics())
	assert.Equal(t, []string{"./modules/README.md"}, reread.FrontMatter.ContextRoutes.OnDemand[0].Paths)
	assert.Equal(t, doc.Keys(), reread.Keys(), "key order preserved")
	assert.Equal(t, string(doc.Body), string(reread.Body), "body preserved verbatim")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# root agent")

	assert.Error(t, doc.ReorderOnDemand([]string{"modules"}))
	assert.Error(t, doc.ReorderOnDemand([]string{"modules", "modules"}))
	assert.Error(t, doc.ReorderOnDemand([]string{"modules", "infra"}))
}

func TestReorderOnDemand_DuplicateTopic(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "modules/billing/AGENTS.md", `---
context_routes:
  on_demand:
    - topic: ops
      paths: [/doc/ops.md]
    - topic: ops
      paths: [/doc/ops2.md]
---
# billing
`)
	doc, err := ReadAgentDoc(path)
	require.NoError(t, err)

	err = doc.ReorderOnDemand([]string{"ops", "ops"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), `topic "ops" is declared more than once`)
}

func TestFindAgentDocs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "modules/user/AGENTS.md", "x")
	writeFile(t, root, "AGENTS.md", "x")
	writeFile(t, root, "modules/billing/AGENTS.md", "x")
	writeFile(t, root, "node_modules/pkg/AGENTS.md", "x")

	docs, err := FindAgentDocs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"AGENTS.md", "modules/billing/AGENTS.md", "modules/user/AGENTS.md"}, docs)
}
