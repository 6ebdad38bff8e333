package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	t.Setenv("REPOKIT_ROOT", "")
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte("# agents\n"), 0644))
	nested := filepath.Join(root, "modules", "user", "api")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindRoot(nested)
	require.NoError(t, err)

	want, _ := filepath.EvalSymlinks(root)
	got, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, want, got)
}

func TestFindRoot_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REPOKIT_ROOT", dir)

	found, err := FindRoot("/")
	require.NoError(t, err)
	assert.Equal(t, dir, found)
}

func TestRel(t *testing.T) {
	assert.Equal(t, "doc/a.md", Rel("/repo", "/repo/doc/a.md"))
	assert.Equal(t, "doc/a.md", Rel("/repo", "./doc/a.md"))
	assert.Equal(t, "/elsewhere/a.md", Rel("/repo", "/elsewhere/a.md"))
}

func TestCountLines(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]int{
		"":            0,
		"a\n":         1,
		"a\nb":        2,
		"a\nb\nc\n\n": 4,
	}
	i := 0
	for content, want := range cases {
		path := filepath.Join(dir, "f"+string(rune('a'+i)))
		i++
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		got, err := CountLines(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, "content %q", content)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestMakeTargets(t *testing.T) {
	dir := t.TempDir()
	makefile := ".PHONY: test lint\n" +
		"VAR := value\n" +
		"test:\n\tgo test ./...\n" +
		"lint: deps\n\tgolangci-lint run\n" +
		"db_lint:\n\t./scripts/db_lint.sh\n" +
		"# comment: not a target\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Makefile"), []byte(makefile), 0644))

	targets, err := MakeTargets(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"db_lint", "lint", "test"}, targets)

	none, err := MakeTargets(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMakeTargetOf(t *testing.T) {
	target, ok := MakeTargetOf("make db_lint")
	assert.True(t, ok)
	assert.Equal(t, "db_lint", target)

	target, ok = MakeTargetOf("make -s V=1 test_coverage")
	assert.True(t, ok)
	assert.Equal(t, "test_coverage", target)

	_, ok = MakeTargetOf("./scripts/check.sh")
	assert.False(t, ok)
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"db/migrations/*.sql", "db/migrations/001_create_users_up.sql", true},
		{"db/migrations/*.sql", "db/migrations/old/001.sql", false},
		{"db/**/*.sql", "db/migrations/old/001.sql", true},
		{"db/**/*.sql", "db/001.sql", true},
		{"**/AGENTS.md", "AGENTS.md", true},
		{"**/AGENTS.md", "modules/user/AGENTS.md", true},
		{"modules/**", "modules/user/api/handler.go", true},
		{"./doc/?.md", "doc/a.md", true},
		{"doc/?.md", "doc/ab.md", false},
		{"config/[!t]*.yaml", "config/prod.yaml", true},
		{"config/[!t]*.yaml", "config/test.yaml", false},
		{"doc/a.md", "doc/a-md", false},
	}
	for _, tt := range tests {
		g, err := CompileGlob(tt.pattern)
		require.NoError(t, err, tt.pattern)
		assert.Equal(t, tt.want, g.Match(tt.path), "%s vs %s", tt.pattern, tt.path)
	}

	_, err := CompileGlob("doc/[abc.md")
	assert.Error(t, err)
}

func TestExpandGlob(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"doc/a.md", "doc/ops/b.md", "doc/c.txt", ".git/d.md"} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}

	matches, err := ExpandGlob(root, "doc/**/*.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc/a.md", "doc/ops/b.md"}, matches)

	matches, err = ExpandGlob(root, "**/*.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc/a.md", "doc/ops/b.md"}, matches)

	matches, err = ExpandGlob(root, "missing/*.md")
	require.NoError(t, err)
	assert.Empty(t, matches)

	assert.True(t, IsGlob("doc/*.md"))
	assert.False(t, IsGlob("doc/a.md"))
}
