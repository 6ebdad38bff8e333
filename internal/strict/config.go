// Package strict implements strict mode: zero-tolerance blocker checks run
// before scoring, and tighter per-metric thresholds that record penalties.
package strict

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/scoring"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// Blocker rule ids.
const (
	RuleSecrets      = "BLOCKER-001"
	RuleCycles       = "BLOCKER-002"
	RuleCriticalDocs = "BLOCKER-003"
	RuleLicense      = "BLOCKER-004"
)

// DefaultStrictYAML is used when the repository has no strict document.
//
//go:embed default_strict.yaml
var DefaultStrictYAML []byte

// DefaultPenaltyPerViolation applies when enforcement.strict omits it.
const DefaultPenaltyPerViolation = 5.0

// Multipliers scale the penalty by threshold priority.
var Multipliers = map[types.Priority]float64{
	types.PriorityCritical: 2.0,
	types.PriorityHigh:     1.5,
	types.PriorityMedium:   1.0,
	types.PriorityLow:      0.5,
}

// BlockerCheck is one zero-tolerance check.
type BlockerCheck struct {
	Rule string `yaml:"rule"`
	Name string `yaml:"name"`

	// CheckCommand, when set, must exit 0 in addition to the built-in check.
	CheckCommand string `yaml:"check_command,omitempty"`

	// Patterns are extra secret regexes (BLOCKER-001).
	Patterns []string `yaml:"patterns,omitempty"`
	// Excludes are extra paths skipped by the secret scan.
	Excludes []string `yaml:"excludes,omitempty"`
	// RequiredDocs must exist (BLOCKER-003).
	RequiredDocs []string `yaml:"required_docs,omitempty"`
	// AllowedLicenses are SPDX ids (BLOCKER-004).
	AllowedLicenses []string `yaml:"allowed_licenses,omitempty"`

	patterns []*regexp.Regexp
}

// Threshold is a tighter target for one metric.
type Threshold struct {
	Metric   string         `yaml:"-"`
	Strict   float64        `yaml:"strict"`
	Priority types.Priority `yaml:"priority"`
}

// Multiplier returns the penalty multiplier for the threshold's priority.
func (t Threshold) Multiplier() float64 {
	return Multipliers[t.Priority]
}

// Config is the parsed strict document.
type Config struct {
	Path                string
	BlockerChecks       []BlockerCheck
	Thresholds          []Threshold
	PenaltyPerViolation float64
}

type rawConfig struct {
	BlockerChecks    []BlockerCheck `yaml:"blocker_checks"`
	StrictThresholds yaml.Node      `yaml:"strict_thresholds"`
	Enforcement      struct {
		Strict struct {
			PenaltyPerViolation *float64 `yaml:"penalty_per_violation"`
		} `yaml:"strict"`
	} `yaml:"enforcement"`
}

// Default returns the shipped strict configuration.
func Default() *Config {
	c, err := Parse("default_strict.yaml", DefaultStrictYAML)
	if err != nil {
		panic(fmt.Sprintf("shipped strict config is invalid: %v", err))
	}
	return c
}

// Load reads a strict document. A missing file yields Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, &types.ConfigError{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse decodes and validates a strict document.
func Parse(path string, data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &types.ConfigError{Path: path, Err: err}
	}

	cfg := &Config{Path: path, BlockerChecks: raw.BlockerChecks, PenaltyPerViolation: DefaultPenaltyPerViolation}
	if p := raw.Enforcement.Strict.PenaltyPerViolation; p != nil {
		if *p < 0 {
			return nil, types.NewConfigError(path, "penalty_per_violation must not be negative")
		}
		cfg.PenaltyPerViolation = *p
	}

	seen := make(map[string]bool)
	for i := range cfg.BlockerChecks {
		check := &cfg.BlockerChecks[i]
		if check.Rule == "" {
			return nil, types.NewConfigError(path, "blocker check %d has no rule", i+1)
		}
		if seen[check.Rule] {
			return nil, types.NewConfigError(path, "duplicate blocker check %s", check.Rule)
		}
		seen[check.Rule] = true
		for _, p := range check.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, types.NewConfigError(path, "%s: invalid pattern %q: %v", check.Rule, p, err)
			}
			check.patterns = append(check.patterns, re)
		}
	}

	if raw.StrictThresholds.Kind != 0 {
		if raw.StrictThresholds.Kind != yaml.MappingNode {
			return nil, types.NewConfigError(path, "strict_thresholds must be a mapping")
		}
		content := raw.StrictThresholds.Content
		for i := 0; i+1 < len(content); i += 2 {
			var th Threshold
			if err := content[i+1].Decode(&th); err != nil {
				return nil, types.NewConfigError(path, "strict_thresholds.%s: %v", content[i].Value, err)
			}
			th.Metric = content[i].Value
			if !th.Priority.IsValid() {
				return nil, types.NewConfigError(path, "strict_thresholds.%s: unknown priority %q", th.Metric, th.Priority)
			}
			cfg.Thresholds = append(cfg.Thresholds, th)
		}
	}
	return cfg, nil
}

// Check returns the blocker check with the given rule id.
func (c *Config) Check(rule string) (*BlockerCheck, bool) {
	for i := range c.BlockerChecks {
		if c.BlockerChecks[i].Rule == rule {
			return &c.BlockerChecks[i], true
		}
	}
	return nil, false
}

// ValidateAgainst checks that every strict threshold names a metric of model.
func (c *Config) ValidateAgainst(model *scoring.Model) error {
	for _, th := range c.Thresholds {
		if _, _, ok := model.Metric(th.Metric); !ok {
			return types.NewConfigError(c.Path, "strict_thresholds.%s: no such metric in the scoring model", th.Metric)
		}
	}
	return nil
}
