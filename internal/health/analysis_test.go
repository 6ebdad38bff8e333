package health

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/registry"
)

const goSource = `package sample

func simple() int { return 1 }

func branchy(xs []int, ok bool) int {
	n := 0
	for _, x := range xs {
		if x > 0 && ok {
			n++
		}
	}
	switch n {
	case 1:
		return 1
	default:
		return n
	}
}

type T struct{}

func (t *T) Method() {
	f := func() {}
	f()
}
`

const pySource = `def plain(a: int) -> int:
    return a


def check(x, y):
    """Docstring with if and for words."""
    if x and y:
        return 1
    for i in x:
        pass  # while here is a comment
    return 0
`

func TestAnalyzeComplexity(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"pkg/sample.go":    goSource,
		"app/check.py":     pySource,
		"vendor/skip/x.go": goSource,
		"pkg/broken.go":    "package broken\nfunc {",
	})

	report, err := AnalyzeComplexity(root, DefaultExcludes, DefaultProbeConfig().Complexity)
	require.NoError(t, err)

	byName := make(map[string]FunctionComplexity)
	for _, fn := range report.Functions {
		byName[fn.Function] = fn
	}
	require.Len(t, byName, 5)

	assert.Equal(t, 1, byName["simple"].Complexity)
	// range + if + && + one non-default case
	assert.Equal(t, 5, byName["branchy"].Complexity)
	assert.Equal(t, 2, byName["T.Method"].Complexity)
	assert.Equal(t, 1, byName["plain"].Complexity)
	// if + and + for
	assert.Equal(t, 4, byName["check"].Complexity)

	assert.True(t, byName["plain"].Annotated)
	assert.False(t, byName["check"].Annotated)
	assert.Equal(t, 4, report.Annotated)

	assert.Equal(t, 5, report.Max)
	assert.InDelta(t, 13.0/5, report.Average, 0.001)
	assert.Equal(t, 5, report.ByClass[ClassExcellent])
	assert.Len(t, report.ParseErrors, 1)
	assert.Equal(t, "branchy", report.Functions[0].Function)
}

func TestComplexityClassify(t *testing.T) {
	th := DefaultProbeConfig().Complexity
	assert.Equal(t, ClassExcellent, th.Classify(10))
	assert.Equal(t, ClassGood, th.Classify(11))
	assert.Equal(t, ClassAcceptable, th.Classify(20))
	assert.Equal(t, ClassWarning, th.Classify(30))
	assert.Equal(t, ClassCritical, th.Classify(31))
}

func TestCoupling(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"modules/orders/service.py": "from modules.users import api\nimport modules.billing.client\n",
		"modules/users/api.py":      "import os\n",
		"modules/billing/client.go": "package billing\n\nimport \"example.com/app/modules/users/api\"\n",
	})
	reg, err := registry.Parse([]byte(`
modules:
  - id: orders
    path: modules/orders
    level: 2
    status: active
    upstream: [users]
  - id: users
    path: modules/users
    level: 1
    status: active
  - id: billing
    path: modules/billing
    level: 1
    status: active
`))
	require.NoError(t, err)

	g, err := BuildModuleGraph(root, reg, DefaultExcludes)
	require.NoError(t, err)
	report := AnalyzeCoupling(g, DefaultProbeConfig().Coupling)

	assert.Equal(t, 3, report.Edges)
	assert.Empty(t, report.Cycles)
	assert.InDelta(t, 1.0, report.AverageFanOut, 0.001)
	assert.Equal(t, CouplingLow, report.Class)

	byID := make(map[string]ModuleCoupling)
	for _, m := range report.Modules {
		byID[m.Module] = m
	}
	assert.Equal(t, 2, byID["orders"].FanOut)
	assert.Equal(t, 2, byID["users"].FanIn)
	assert.Equal(t, 2, byID["billing"].Total)

	th := DefaultProbeConfig().Coupling
	assert.Equal(t, CouplingMedium, th.Classify(6))
	assert.Equal(t, CouplingHigh, th.Classify(7))
	assert.Equal(t, CouplingVeryHigh, th.Classify(11))
}

func TestCheckManifests(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"go.mod":           "module example.com/app\n\ngo 1.22\n\nrequire github.com/spf13/cobra v1.8.0\n",
		"requirements.txt": "# deps\nrequests>=2.31,<3\npydantic[email]==2.5.0\nthis is not valid\n",
		"package.json":     `{"name": "web", "dependencies": {"react": "^18.0.0"}, "devDependencies": {"vite": "^5"}}`,
	})

	results := CheckManifests(root)
	require.Len(t, results, 3)

	assert.Equal(t, "go.mod", results[0].Path)
	assert.True(t, results[0].Valid)
	assert.Equal(t, 1, results[0].Deps)

	assert.Equal(t, "requirements.txt", results[1].Path)
	assert.False(t, results[1].Valid)
	assert.NotEmpty(t, results[1].Error)

	assert.True(t, results[2].Valid)
	assert.Equal(t, 2, results[2].Deps)

	writeFiles(t, root, map[string]string{"go.mod": "go 1.22\n"})
	assert.False(t, CheckManifests(root)[0].Valid)
}

func TestCheckModuleDocs(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"modules/users/README.md":     "# Users\n",
		"modules/users/AGENTS.md":     "---\nrole: users\n---\n",
		"modules/orders/README.md":    "# Orders\n",
		"modules/_template/README.md": "# Template\n",
	})

	statuses, err := CheckModuleDocs(root, []string{"README.md", "AGENTS.md"})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "modules/orders", statuses[0].Module)
	assert.Equal(t, []string{"AGENTS.md"}, statuses[0].Missing)
	assert.True(t, statuses[1].Complete())
}

func TestScanDocFreshness(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"doc/fresh.md": "# Fresh\n",
		"doc/old.md":   "# Old\n",
	})
	now := time.Now()
	old := now.Add(-200 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "doc", "old.md"), old, old))

	docs, err := ScanDocFreshness(root, DefaultExcludes, 90*24*time.Hour, now)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.False(t, docs[0].Stale)
	assert.True(t, docs[1].Stale)
	assert.Contains(t, docs[1].Age(now), "ago")
}

func TestDocStyleChecks(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"README.md":       "# Project\n\nSee [docs](doc/INDEX.md) and [gone](doc/missing.md).\n",
		"AGENTS.md":       rootAgentMD,
		"doc/INDEX.md":    "# Index\n\n[guide](guides/a.md) [site](https://example.com)\n",
		"doc/guides/a.md": "Intro without a title\n",
	})

	checks, err := DocStyleChecks(root, "AGENTS.md", DefaultExcludes)
	require.NoError(t, err)

	passed := make(map[string]bool)
	for _, c := range checks {
		passed[c.Name] = c.Passed
	}
	assert.Equal(t, map[string]bool{
		"readme_present":     true,
		"agent_front_matter": true,
		"doc_index":          true,
		"h1_titles":          false,
		"relative_links":     false,
	}, passed)
	assert.Equal(t, 3, countPassed(checks))
}

func TestFindScriptRefs(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"scripts/deploy.sh": "#!/bin/sh\n",
		"README.md":         "Run `scripts/deploy.sh` then scripts/rollback.sh.\nAgain: scripts/deploy.sh\n",
	})

	refs, err := FindScriptRefs(root, DefaultExcludes)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, ScriptRef{Script: "scripts/deploy.sh", File: "README.md", Line: 1, Exists: true}, refs[0])
	assert.Equal(t, "scripts/rollback.sh", refs[1].Script)
	assert.False(t, refs[1].Exists)
}

func TestSummarize(t *testing.T) {
	d := Summarize([]float64{4, 1, 3, 2})
	assert.Equal(t, 2.5, d.Mean)
	assert.Equal(t, 2.5, d.Median)
	assert.Equal(t, 4.0, d.P95)
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, Distribution{}, Summarize(nil))

	assert.Equal(t, 100.0, Percent(0, 0))
	assert.Equal(t, 25.0, Percent(1, 4))
	assert.Equal(t, 1.23, Round2(1.2345))
}
