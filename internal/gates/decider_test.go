package gates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/triggers"
)

type fakeRunner struct {
	exitCodes map[string]int
	delay     time.Duration
	calls     []string
}

func (f *fakeRunner) Run(ctx context.Context, command string) *Result {
	f.calls = append(f.calls, command)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return &Result{Command: command, ExitCode: -1, Error: ctx.Err()}
		}
	}
	code := f.exitCodes[command]
	return &Result{Command: command, ExitCode: code, Passed: code == 0}
}

type fakeConfirmer struct {
	answer  bool
	prompts []string
}

func (f *fakeConfirmer) Confirm(prompt string) (bool, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, nil
}

const guardCatalog = `
triggers:
  db-migration:
    description: Database migrations
    priority: critical
    enforcement: block
    file_triggers:
      path_patterns: ["db/migrations/*.sql"]
    load_documents:
      - path: db/README.md
    block_config:
      message: Run make db_lint first
      skip_conditions:
        make_commands_passed: ["make db_lint"]
  secrets:
    description: Secrets handling
    priority: critical
    enforcement: block
    file_triggers:
      path_patterns: ["config/*.env"]
    block_config:
      message: Secrets must not be edited directly
      require_confirmation: true
      skip_conditions:
        env_var: ALLOW_SECRET_EDIT
        or_env_var: CI_SECRETS_OK
        and_confirmation: true
  api-change:
    description: API contract changes
    priority: high
    enforcement: warn
    file_triggers:
      path_patterns: ["modules/*/api/**"]
    load_documents:
      - path: doc/CONTRACT.md
    warn_config:
      message: Update the contract
  quiet-warn:
    description: Generated code
    priority: medium
    enforcement: warn
    file_triggers:
      path_patterns: ["gen/**"]
    warn_config:
      require_confirmation: false
  docs:
    description: Documentation
    priority: low
    enforcement: suggest
    file_triggers:
      path_patterns: ["**/*.md", "db/**"]
    load_documents:
      - path: doc/process/DOC_STYLE.md
      - path: db/README.md
`

func matched(t *testing.T, path string) []*triggers.Rule {
	t.Helper()
	c, err := triggers.Parse("agent-triggers.yaml", []byte(guardCatalog))
	require.NoError(t, err)
	return triggers.Rules(triggers.NewMatcher("/repo", c).MatchFile(path))
}

func env(vars map[string]string) func(string) string {
	return func(name string) string { return vars[name] }
}

func TestDecideBlockSkippedByMakeCommand(t *testing.T) {
	rules := matched(t, "db/migrations/001_create_users_up.sql")
	require.Len(t, rules, 2)

	runner := &fakeRunner{exitCodes: map[string]int{"make db_lint": 0}}
	d := &Decider{Runner: runner, Getenv: env(nil)}
	dec, err := d.Decide(context.Background(), rules)
	require.NoError(t, err)

	assert.Equal(t, ActionAllow, dec.Action)
	assert.Equal(t, "db-migration", dec.Rule)
	assert.Equal(t, []string{"make db_lint"}, runner.calls)
	assert.Contains(t, strings.Join(dec.Rationale, "\n"), "all make commands passed")
	assert.Equal(t, 0, dec.ExitCode())
}

func TestDecideBlockWhenMakeCommandFails(t *testing.T) {
	rules := matched(t, "db/migrations/001_create_users_up.sql")

	runner := &fakeRunner{exitCodes: map[string]int{"make db_lint": 2}}
	d := &Decider{Runner: runner, Getenv: env(nil)}
	dec, err := d.Decide(context.Background(), rules)
	require.NoError(t, err)

	assert.Equal(t, ActionBlock, dec.Action)
	assert.Equal(t, "Run make db_lint first", dec.Message)
	assert.Equal(t, 1, dec.ExitCode())

	paths := []string{}
	for _, doc := range dec.Documents {
		paths = append(paths, doc.Path)
	}
	assert.Equal(t, []string{"db/README.md", "doc/process/DOC_STYLE.md"}, paths)
}

func TestDecideBlockMakeCommandTimeout(t *testing.T) {
	rules := matched(t, "db/migrations/001.sql")
	runner := &fakeRunner{delay: time.Second}
	d := &Decider{Runner: runner, Getenv: env(nil), MakeTimeout: 10 * time.Millisecond}

	dec, err := d.Decide(context.Background(), rules)
	require.NoError(t, err)
	assert.Equal(t, ActionBlock, dec.Action)
	require.Len(t, dec.Commands, 1)
	assert.ErrorIs(t, dec.Commands[0].Error, ErrTimeout)
}

func TestDecideBlockEnvSkipWithConfirmation(t *testing.T) {
	rules := matched(t, "config/prod.env")

	confirmer := &fakeConfirmer{answer: true}
	d := &Decider{Confirmer: confirmer, Getenv: env(map[string]string{"CI_SECRETS_OK": "1"})}
	dec, err := d.Decide(context.Background(), rules)
	require.NoError(t, err)
	assert.Equal(t, ActionAllow, dec.Action)
	assert.Len(t, confirmer.prompts, 1)

	declined := &fakeConfirmer{answer: false}
	d = &Decider{Confirmer: declined, Getenv: env(map[string]string{"ALLOW_SECRET_EDIT": "yes"})}
	dec, err = d.Decide(context.Background(), rules)
	require.NoError(t, err)
	assert.Equal(t, ActionBlock, dec.Action)
	assert.Len(t, declined.prompts, 2, "declined skip falls through to require_confirmation")
}

func TestDecideBlockRequireConfirmation(t *testing.T) {
	rules := matched(t, "config/prod.env")

	d := &Decider{Confirmer: &fakeConfirmer{answer: true}, Getenv: env(map[string]string{"ALLOW_SECRET_EDIT": "false"})}
	dec, err := d.Decide(context.Background(), rules)
	require.NoError(t, err)
	assert.Equal(t, ActionAllow, dec.Action)
	assert.Contains(t, dec.Rationale, "confirmed by user")
}

func TestDecideWarn(t *testing.T) {
	rules := matched(t, "modules/user/api/handler.go")

	d := &Decider{Confirmer: &fakeConfirmer{answer: true}}
	dec, err := d.Decide(context.Background(), rules)
	require.NoError(t, err)
	assert.Equal(t, ActionAllow, dec.Action)
	assert.Equal(t, "Update the contract", dec.Message)

	d = &Decider{Confirmer: &fakeConfirmer{answer: false}}
	dec, err = d.Decide(context.Background(), rules)
	require.NoError(t, err)
	assert.Equal(t, ActionBlock, dec.Action)

	dec, err = (&Decider{}).Decide(context.Background(), matched(t, "gen/client.go"))
	require.NoError(t, err)
	assert.Equal(t, ActionWarn, dec.Action, "warn without confirmation proceeds with a warning")
	assert.Equal(t, 0, dec.ExitCode())
}

func TestDecideSuggest(t *testing.T) {
	dec, err := (&Decider{}).Decide(context.Background(), matched(t, "doc/guide.md"))
	require.NoError(t, err)
	assert.Equal(t, ActionSuggest, dec.Action)
	assert.Equal(t, "docs", dec.Rule)
	require.Len(t, dec.Documents, 2)

	dec, err = (&Decider{}).Decide(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ActionAllow, dec.Action)
}

func TestDecideDryRun(t *testing.T) {
	runner := &fakeRunner{}
	confirmer := &fakeConfirmer{answer: true}
	d := &Decider{Runner: runner, Confirmer: confirmer, Getenv: env(nil), DryRun: true}

	dec, err := d.Decide(context.Background(), matched(t, "db/migrations/001.sql"))
	require.NoError(t, err)
	assert.Equal(t, ActionBlock, dec.Action)
	assert.True(t, dec.DryRun)
	assert.Empty(t, runner.calls)

	dec, err = d.Decide(context.Background(), matched(t, "modules/user/api/handler.go"))
	require.NoError(t, err)
	assert.Equal(t, ActionWarn, dec.Action)
	assert.Empty(t, confirmer.prompts)
}

func TestLineConfirmer(t *testing.T) {
	var out strings.Builder
	c := &LineConfirmer{In: strings.NewReader("YES\nno\n"), Out: &out}

	ok, err := c.Confirm("Proceed?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Proceed? [yes/no]")

	ok, err = c.Confirm("Again?")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Confirm("EOF?")
	require.NoError(t, err)
	assert.False(t, ok, "end of input declines")

	assert.False(t, IsYes("y"))
	assert.True(t, IsYes("  yes "))
}
