package usage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/routing"
)

const agentDoc = `---
spec_version: "1.0"
agent_id: root
role: orchestrator
context_routes:
  always_read:
    - /doc/INDEX.md
  on_demand:
    - topic: ops
      paths: [/doc/ops/RUNBOOK.md]
    - topic: modules
      paths: [/doc/modules/README.md]
    - topic: Testing
      paths: [/doc/testing.md]
---
# Root agent

Body text stays verbatim.
`

func newTestLog(t *testing.T) *Log {
	t.Helper()
	l := NewLog(filepath.Join(t.TempDir(), "tmp", "context_cache", "route_usage.jsonl"))
	l.Now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return l
}

func TestAppendAndRead(t *testing.T) {
	l := newTestLog(t)
	require.NoError(t, l.Append("modules", "/doc/modules/README.md"))
	require.NoError(t, l.Append(" ops ", ""))

	data, err := os.ReadFile(l.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"ts":"2026-03-01T10:00:00Z","topic":"modules","path":"/doc/modules/README.md"}`, lines[0])

	records, skipped, err := Read(l.Path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, "ops", records[1].Topic)
	assert.Empty(t, records[1].Path)
}

func TestAppend_RequiresTopic(t *testing.T) {
	assert.Error(t, newTestLog(t).Append("  ", "x"))
}

func TestMaybeAppend(t *testing.T) {
	l := newTestLog(t)

	t.Setenv("ROUTE_USAGE_LOGGING", "")
	written, err := l.MaybeAppend("ROUTE_USAGE_LOGGING", "modules", "")
	require.NoError(t, err)
	assert.False(t, written)
	assert.NoFileExists(t, l.Path)

	t.Setenv("ROUTE_USAGE_LOGGING", "1")
	written, err = l.MaybeAppend("ROUTE_USAGE_LOGGING", "modules", "")
	require.NoError(t, err)
	assert.True(t, written)
	assert.FileExists(t, l.Path)
}

func TestRead_SkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.jsonl")
	content := `{"ts":"2026-03-01T10:00:00Z","topic":"ops"}

not json
{"ts":"2026-03-01T10:00:00Z","topic":""}
{"ts":"2026-03-01T10:00:00Z","topic":"modules","path":"a.md"}
{"ts":"2026-03-01T10:00:00Z","top`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, skipped, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 3, skipped)
}

func TestRead_CRLFLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route_usage.jsonl")
	data := "{\"ts\":\"2026-03-01T09:00:00Z\",\"topic\":\"ops\"}\r\n" +
		"{\"ts\":\"2026-03-01T09:01:00Z\",\"topic\":\"modules\"}\r\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	records, skipped, err := Read(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, "modules", records[1].Topic)

	log := NewLog(path)
	require.NoError(t, log.Append("ops", ""))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "}\n"))
	assert.False(t, strings.HasSuffix(string(raw), "\r\n"))
}

func TestRead_Missing(t *testing.T) {
	records, skipped, err := Read(filepath.Join(t.TempDir(), "none.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, skipped)
}

func TestTopK(t *testing.T) {
	counts := map[string]int{"b": 3, "a": 3, "c": 5, "d": 1}
	assert.Equal(t, []Count{{"c", 5}, {"a", 3}, {"b", 3}}, TopK(counts, 3))
	assert.Len(t, TopK(counts, 0), 4)
}

func TestBuildReport(t *testing.T) {
	tally := TallyRecords([]Record{
		{Topic: "ops", Path: "x.md"},
		{Topic: "ops", Path: "y.md"},
		{Topic: "modules", Path: "x.md"},
	})
	r := BuildReport(tally, DefaultTopK)
	assert.Equal(t, 3, r.Records)
	assert.Equal(t, []Count{{"ops", 2}, {"modules", 1}}, r.Topics)
	assert.Equal(t, []Count{{"x.md", 2}, {"y.md", 1}}, r.Paths)
}

func TestRankTopics(t *testing.T) {
	topics := []string{"zeta", "Beta", "alpha", "gamma", "delta"}
	counts := map[string]int{"alpha": 2, "Beta": 2, "gamma": 7}
	assert.Equal(t, []string{"gamma", "alpha", "Beta", "zeta", "delta"}, RankTopics(topics, counts))
}

func TestOptimize(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "AGENTS.md")
	require.NoError(t, os.WriteFile(path, []byte(agentDoc), 0644))

	l := NewLog(filepath.Join(root, "tmp", "context_cache", "route_usage.jsonl"))
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Append("modules", "/doc/modules/README.md"))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append("ops", "/doc/ops/RUNBOOK.md"))
	}
	tally, err := Load(l.Path)
	require.NoError(t, err)
	reportBefore := BuildReport(tally, DefaultTopK)

	doc, err := routing.ReadAgentDoc(path)
	require.NoError(t, err)

	// dry run leaves the file alone
	plan, err := Optimize(doc, tally, false)
	require.NoError(t, err)
	assert.True(t, plan.Changed)
	assert.Equal(t, []string{"ops", "modules", "Testing"}, plan.Before)
	assert.Equal(t, []string{"modules", "ops", "Testing"}, plan.After)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, agentDoc, string(data))

	plan, err = Optimize(doc, tally, true)
	require.NoError(t, err)
	assert.True(t, plan.Changed)

	doc, err = routing.ReadAgentDoc(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"modules", "ops", "Testing"}, doc.FrontMatter.ContextRoutes.Topics())
	assert.Equal(t, "# Root agent\n\nBody text stays verbatim.\n", string(doc.Body))
	assert.ElementsMatch(t, plan.Before, plan.After)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	plan, err = Optimize(doc, tally, true)
	require.NoError(t, err)
	assert.False(t, plan.Changed)
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(written), string(again), "second optimize is a no-op")

	tally, err = Load(l.Path)
	require.NoError(t, err)
	assert.Equal(t, reportBefore, BuildReport(tally, DefaultTopK))
}
