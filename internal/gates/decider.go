package gates

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/triggers"
)

// DefaultMakeTimeout bounds each skip-condition make command.
const DefaultMakeTimeout = 30 * time.Second

// Action is the guardrail outcome.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionSuggest Action = "suggest"
	ActionWarn    Action = "warn"
	ActionBlock   Action = "block"
)

// Decision is what the guardrail tells the caller to do next.
type Decision struct {
	Action    Action                 `json:"action"`
	Rule      string                 `json:"rule,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Rationale []string               `json:"rationale,omitempty"`
	Documents []triggers.DocumentRef `json:"documents,omitempty"`
	Commands  []*Result              `json:"-"`
	DryRun    bool                   `json:"dry_run,omitempty"`
}

// ExitCode is 1 for a block and 0 otherwise.
func (d *Decision) ExitCode() int {
	if d.Action == ActionBlock {
		return 1
	}
	return 0
}

func (d *Decision) note(format string, args ...interface{}) {
	d.Rationale = append(d.Rationale, fmt.Sprintf(format, args...))
}

// Decider turns matched rules into a Decision.
type Decider struct {
	Runner      CommandRunner
	Confirmer   Confirmer
	Getenv      func(string) string
	DryRun      bool
	MakeTimeout time.Duration
}

// NewDecider creates a decider that runs commands in root and prompts on
// the terminal.
func NewDecider(root string, dryRun bool, makeTimeout time.Duration) *Decider {
	return &Decider{
		Runner:      NewExecRunner(root),
		Confirmer:   NewTerminalConfirmer(),
		Getenv:      os.Getenv,
		DryRun:      dryRun,
		MakeTimeout: makeTimeout,
	}
}

// Decide walks rules, which must already be in priority order. The first
// block or warn rule decides; with none, the result is a suggestion
// carrying every rule's documents.
func (d *Decider) Decide(ctx context.Context, rules []*triggers.Rule) (*Decision, error) {
	docs := triggers.Documents(rules)
	for _, rule := range rules {
		var (
			dec *Decision
			err error
		)
		switch rule.Enforcement {
		case triggers.EnforcementBlock:
			dec, err = d.decideBlock(ctx, rule)
		case triggers.EnforcementWarn:
			dec, err = d.decideWarn(rule)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		dec.Documents = docs
		dec.DryRun = d.DryRun
		return dec, nil
	}

	dec := &Decision{Action: ActionSuggest, Documents: docs, DryRun: d.DryRun}
	if len(rules) == 0 {
		dec.Action = ActionAllow
		dec.note("no rule matched")
	} else {
		dec.Rule = rules[0].ID
		dec.Message = rules[0].Message()
	}
	return dec, nil
}

func (d *Decider) decideBlock(ctx context.Context, rule *triggers.Rule) (*Decision, error) {
	dec := &Decision{Action: ActionBlock, Rule: rule.ID, Message: rule.Message()}
	var bc triggers.BlockConfig
	if rule.BlockConfig != nil {
		bc = *rule.BlockConfig
	}
	sc := bc.SkipConditions

	skip := false
	if name := sc.EnvVar; name != "" && config.IsTruthy(d.getenv(name)) {
		skip = true
		dec.note("skip: %s is set", name)
	}
	if name := sc.OrEnvVar; !skip && name != "" && config.IsTruthy(d.getenv(name)) {
		skip = true
		dec.note("skip: %s is set", name)
	}
	if !skip && len(sc.MakeCommandsPassed) > 0 {
		if d.DryRun {
			dec.note("dry run: would run %v", sc.MakeCommandsPassed)
		} else {
			results, passed := RunAll(ctx, d.Runner, sc.MakeCommandsPassed, d.makeTimeout())
			dec.Commands = results
			for _, r := range results {
				dec.note("%s", FormatResult(r))
			}
			if passed {
				skip = true
				dec.note("skip: all make commands passed")
			}
		}
	}

	if skip && sc.AndConfirmation {
		ok, err := d.confirm(dec, fmt.Sprintf("[%s] skip conditions met. Proceed?", rule.ID))
		if err != nil {
			return nil, err
		}
		skip = ok
	}
	if skip {
		dec.Action = ActionAllow
		return dec, nil
	}

	if bc.RequireConfirmation {
		ok, err := d.confirm(dec, fmt.Sprintf("[%s] %s. Proceed anyway?", rule.ID, dec.Message))
		if err != nil {
			return nil, err
		}
		if ok {
			dec.Action = ActionAllow
		}
	}
	return dec, nil
}

func (d *Decider) decideWarn(rule *triggers.Rule) (*Decision, error) {
	dec := &Decision{Action: ActionWarn, Rule: rule.ID, Message: rule.Message()}
	if !rule.WarnConfig.NeedsConfirmation() {
		return dec, nil
	}

	prompt := fmt.Sprintf("[%s] %s. Proceed?", rule.ID, dec.Message)
	if rule.WarnConfig != nil && rule.WarnConfig.ConfirmationPrompt != "" {
		prompt = rule.WarnConfig.ConfirmationPrompt
	}
	if d.DryRun {
		dec.note("dry run: would ask %q", prompt)
		return dec, nil
	}
	ok, err := d.confirm(dec, prompt)
	if err != nil {
		return nil, err
	}
	if ok {
		dec.Action = ActionAllow
	} else {
		dec.Action = ActionBlock
	}
	return dec, nil
}

// confirm prompts unless this is a dry run, which never approves.
func (d *Decider) confirm(dec *Decision, prompt string) (bool, error) {
	if d.DryRun || d.Confirmer == nil {
		dec.note("confirmation required: %s", prompt)
		return false, nil
	}
	ok, err := d.Confirmer.Confirm(prompt)
	if err != nil {
		return false, err
	}
	if ok {
		dec.note("confirmed by user")
	} else {
		dec.note("declined by user")
	}
	return ok, nil
}

func (d *Decider) getenv(name string) string {
	if d.Getenv == nil {
		return os.Getenv(name)
	}
	return d.Getenv(name)
}

func (d *Decider) makeTimeout() time.Duration {
	if d.MakeTimeout <= 0 {
		return DefaultMakeTimeout
	}
	return d.MakeTimeout
}
