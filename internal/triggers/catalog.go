// Package triggers loads the agent trigger catalog and matches file paths
// and prompts against its rules.
package triggers

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// Enforcement is the action class of a rule.
type Enforcement string

const (
	EnforcementBlock   Enforcement = "block"
	EnforcementWarn    Enforcement = "warn"
	EnforcementSuggest Enforcement = "suggest"
)

// IsValid reports whether e is a known enforcement.
func (e Enforcement) IsValid() bool {
	switch e {
	case EnforcementBlock, EnforcementWarn, EnforcementSuggest:
		return true
	}
	return false
}

// FileTriggers select a rule from a file path or its content.
type FileTriggers struct {
	PathPatterns    []string `yaml:"path_patterns"`
	ContentPatterns []string `yaml:"content_patterns"`
}

// PromptTriggers select a rule from a natural-language prompt.
type PromptTriggers struct {
	Keywords       []string `yaml:"keywords"`
	IntentPatterns []string `yaml:"intent_patterns"`
}

// DocumentRef is a document a rule asks the agent to load.
type DocumentRef struct {
	Path     string         `yaml:"path" json:"path"`
	Priority types.Priority `yaml:"priority" json:"priority,omitempty"`
	Note     string         `yaml:"note" json:"note,omitempty"`
}

// Guardrail is an extra check command attached to a rule.
type Guardrail struct {
	Check       string      `yaml:"check"`
	Enforcement Enforcement `yaml:"enforcement"`
	Message     string      `yaml:"message"`
}

// SkipConditions turn a block into an allow.
type SkipConditions struct {
	MakeCommandsPassed []string `yaml:"make_commands_passed"`
	EnvVar             string   `yaml:"env_var"`
	OrEnvVar           string   `yaml:"or_env_var"`
	AndConfirmation    bool     `yaml:"and_confirmation"`
}

// IsZero reports whether no skip condition is configured.
func (s SkipConditions) IsZero() bool {
	return len(s.MakeCommandsPassed) == 0 && s.EnvVar == "" && s.OrEnvVar == ""
}

// BlockConfig configures block enforcement.
type BlockConfig struct {
	SkipConditions      SkipConditions `yaml:"skip_conditions"`
	RequireConfirmation bool           `yaml:"require_confirmation"`
	Message             string         `yaml:"message"`
}

// WarnConfig configures warn enforcement. Confirmation defaults to on.
type WarnConfig struct {
	Message             string `yaml:"message"`
	RequireConfirmation *bool  `yaml:"require_confirmation"`
	ConfirmationPrompt  string `yaml:"confirmation_prompt"`
}

// NeedsConfirmation reports whether the warning must be confirmed.
func (w *WarnConfig) NeedsConfirmation() bool {
	if w == nil || w.RequireConfirmation == nil {
		return true
	}
	return *w.RequireConfirmation
}

// Rule is one catalog entry.
type Rule struct {
	ID             string         `yaml:"-"`
	Description    string         `yaml:"description"`
	Priority       types.Priority `yaml:"priority"`
	Enforcement    Enforcement    `yaml:"enforcement"`
	FileTriggers   FileTriggers   `yaml:"file_triggers"`
	PromptTriggers PromptTriggers `yaml:"prompt_triggers"`
	LoadDocuments  []DocumentRef  `yaml:"load_documents"`
	Guardrails     []Guardrail    `yaml:"guardrail"`
	BlockConfig    *BlockConfig   `yaml:"block_config"`
	WarnConfig     *WarnConfig    `yaml:"warn_config"`

	order   int
	paths   []*repo.Glob
	content []*regexp.Regexp
	intents []*regexp.Regexp
}

// Order is the rule's position in the catalog.
func (r *Rule) Order() int { return r.order }

// Message returns the configured message for the rule's enforcement,
// falling back to the description.
func (r *Rule) Message() string {
	switch r.Enforcement {
	case EnforcementBlock:
		if r.BlockConfig != nil && r.BlockConfig.Message != "" {
			return r.BlockConfig.Message
		}
	case EnforcementWarn:
		if r.WarnConfig != nil && r.WarnConfig.Message != "" {
			return r.WarnConfig.Message
		}
	}
	return r.Description
}

// Catalog is the loaded trigger catalog. Patterns are compiled once at load.
type Catalog struct {
	Path          string
	Rules         []*Rule
	PriorityOrder []types.Priority

	byID map[string]*Rule
}

type rawCatalog struct {
	Triggers yaml.Node `yaml:"triggers"`
	Config   struct {
		PriorityOrder []types.Priority `yaml:"priority_order"`
	} `yaml:"config"`
}

// Load reads and validates a trigger catalog. A missing file yields a
// ConfigError that still satisfies errors.Is(err, fs.ErrNotExist).
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ConfigError{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse decodes and validates catalog bytes. path is used in errors.
func Parse(path string, data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &types.ConfigError{Path: path, Err: err}
	}

	c := &Catalog{Path: path, PriorityOrder: raw.Config.PriorityOrder, byID: make(map[string]*Rule)}
	if len(c.PriorityOrder) == 0 {
		c.PriorityOrder = types.DefaultPriorityOrder
	}
	for _, p := range c.PriorityOrder {
		if !p.IsValid() {
			return nil, types.NewConfigError(path, "config.priority_order: unknown priority %q", p)
		}
	}

	if raw.Triggers.Kind != 0 && raw.Triggers.Kind != yaml.MappingNode {
		return nil, types.NewConfigError(path, "triggers must be a mapping of rule id to rule (line %d)", raw.Triggers.Line)
	}
	for i := 0; i+1 < len(raw.Triggers.Content); i += 2 {
		id := raw.Triggers.Content[i].Value
		if _, dup := c.byID[id]; dup {
			return nil, types.NewConfigError(path, "duplicate rule id %q", id)
		}
		rule := &Rule{ID: id, order: len(c.Rules)}
		if err := raw.Triggers.Content[i+1].Decode(rule); err != nil {
			return nil, types.NewConfigError(path, "rule %s: %v", id, err)
		}
		if err := c.prepare(rule); err != nil {
			return nil, types.NewConfigError(path, "rule %s: %v", id, err)
		}
		c.Rules = append(c.Rules, rule)
		c.byID[id] = rule
	}
	return c, nil
}

func (c *Catalog) prepare(r *Rule) error {
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if r.Priority == "" {
		return fmt.Errorf("priority is required")
	}
	if c.rank(r.Priority) == len(c.PriorityOrder) {
		return fmt.Errorf("priority %q is not in priority_order", r.Priority)
	}
	if r.Enforcement == "" {
		return fmt.Errorf("enforcement is required")
	}
	if !r.Enforcement.IsValid() {
		return fmt.Errorf("unknown enforcement %q", r.Enforcement)
	}

	for _, doc := range r.LoadDocuments {
		if err := checkRepoRelative(doc.Path); err != nil {
			return fmt.Errorf("load_documents: %w", err)
		}
	}

	for _, p := range r.FileTriggers.PathPatterns {
		g, err := repo.CompileGlob(p)
		if err != nil {
			return err
		}
		r.paths = append(r.paths, g)
	}
	for _, p := range r.FileTriggers.ContentPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return fmt.Errorf("content pattern %q: %w", p, err)
		}
		r.content = append(r.content, re)
	}
	for _, p := range r.PromptTriggers.IntentPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return fmt.Errorf("intent pattern %q: %w", p, err)
		}
		r.intents = append(r.intents, re)
	}
	return nil
}

func checkRepoRelative(p string) error {
	switch {
	case strings.TrimSpace(p) == "":
		return fmt.Errorf("empty path")
	case strings.HasPrefix(p, "/") || path.IsAbs(p) || (len(p) > 1 && p[1] == ':'):
		return fmt.Errorf("%q must be repo-relative", p)
	case path.Clean(p) == ".." || strings.HasPrefix(path.Clean(p), "../"):
		return fmt.Errorf("%q escapes the repository", p)
	}
	return nil
}

// rank is the index of p in the catalog's priority order.
func (c *Catalog) rank(p types.Priority) int {
	for i, v := range c.PriorityOrder {
		if v == p {
			return i
		}
	}
	return len(c.PriorityOrder)
}

// Rule returns the rule with the given id.
func (c *Catalog) Rule(id string) (*Rule, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// Sort orders rules by priority_order, then declaration order.
func (c *Catalog) Sort(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return c.less(rules[i], rules[j])
	})
}

func (c *Catalog) less(a, b *Rule) bool {
	ra, rb := c.rank(a.Priority), c.rank(b.Priority)
	if ra != rb {
		return ra < rb
	}
	return a.order < b.order
}

// MakeCommands returns every make command referenced by skip conditions,
// in rule order, without duplicates.
func (c *Catalog) MakeCommands() []string {
	seen := make(map[string]bool)
	var cmds []string
	for _, r := range c.Rules {
		if r.BlockConfig == nil {
			continue
		}
		for _, cmd := range r.BlockConfig.SkipConditions.MakeCommandsPassed {
			if !seen[cmd] {
				seen[cmd] = true
				cmds = append(cmds, cmd)
			}
		}
	}
	return cmds
}

// MissingMakeTargets lists skip-condition make commands whose target is not
// in targets. Callers report these as warnings.
func (c *Catalog) MissingMakeTargets(targets []string) []string {
	have := make(map[string]bool, len(targets))
	for _, t := range targets {
		have[t] = true
	}
	var missing []string
	for _, cmd := range c.MakeCommands() {
		target, ok := repo.MakeTargetOf(cmd)
		if ok && !have[target] {
			missing = append(missing, cmd)
		}
	}
	return missing
}
