package health

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProbesConfigPath is the optional per-repository probe tuning file.
const ProbesConfigPath = "doc/process/HEALTH_CHECK_PROBES.yaml"

// ProbeConfig tunes probe thresholds. Everything has a default; the YAML
// file only needs the keys it overrides.
type ProbeConfig struct {
	// Excludes are path patterns skipped by every tree walk
	Excludes []string `yaml:"excludes"`

	// StaleAfter is the doc freshness window, e.g. "90d" or "12w".
	// Empty means the tool's stale_doc_days setting.
	StaleAfter string `yaml:"stale_after,omitempty"`

	Complexity ComplexityThresholds `yaml:"complexity"`
	Coupling   CouplingThresholds   `yaml:"coupling"`

	// AI-friendliness budgets
	AgentDocMaxLines   int `yaml:"agent_doc_max_lines"`
	AlwaysReadMaxLines int `yaml:"always_read_max_lines"`
	AlwaysReadMaxFiles int `yaml:"always_read_max_files"`

	// RequiredFrontMatter are the keys a module agent doc must declare
	RequiredFrontMatter []string `yaml:"required_front_matter"`

	// Automation targets for script_automation
	AutomationTargets AutomationTargets `yaml:"automation_targets"`
}

// ComplexityThresholds are the upper bounds of each complexity class.
type ComplexityThresholds struct {
	Excellent  int `yaml:"excellent"`
	Good       int `yaml:"good"`
	Acceptable int `yaml:"acceptable"`
	Warning    int `yaml:"warning"`
}

// CouplingThresholds are the upper bounds of each coupling class.
type CouplingThresholds struct {
	Low    int `yaml:"low"`
	Medium int `yaml:"medium"`
	High   int `yaml:"high"`
}

// AutomationTargets are the counts at which automation is considered complete.
type AutomationTargets struct {
	MakeTargets  int `yaml:"make_targets"`
	Scripts      int `yaml:"scripts"`
	TriggerRules int `yaml:"trigger_rules"`
}

// DefaultProbeConfig returns the built-in thresholds.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Excludes: append([]string(nil), DefaultExcludes...),
		Complexity: ComplexityThresholds{
			Excellent:  10,
			Good:       15,
			Acceptable: 20,
			Warning:    30,
		},
		Coupling: CouplingThresholds{
			Low:    3,
			Medium: 6,
			High:   10,
		},
		AgentDocMaxLines:    400,
		AlwaysReadMaxLines:  150,
		AlwaysReadMaxFiles:  1,
		RequiredFrontMatter: []string{"spec_version", "agent_id", "role", "module_type", "level"},
		AutomationTargets: AutomationTargets{
			MakeTargets:  10,
			Scripts:      20,
			TriggerRules: 10,
		},
	}
}

// LoadProbeConfig reads overrides from path on top of the defaults. A
// missing file yields the defaults.
func LoadProbeConfig(path string) (ProbeConfig, error) {
	cfg := DefaultProbeConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading probe config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing probe config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks if the thresholds are usable
func (c ProbeConfig) Validate() error {
	ct := c.Complexity
	if !(0 < ct.Excellent && ct.Excellent < ct.Good && ct.Good < ct.Acceptable && ct.Acceptable < ct.Warning) {
		return fmt.Errorf("complexity thresholds must be positive and increasing (got %d/%d/%d/%d)",
			ct.Excellent, ct.Good, ct.Acceptable, ct.Warning)
	}
	cp := c.Coupling
	if !(0 < cp.Low && cp.Low < cp.Medium && cp.Medium < cp.High) {
		return fmt.Errorf("coupling thresholds must be positive and increasing (got %d/%d/%d)",
			cp.Low, cp.Medium, cp.High)
	}
	if c.AgentDocMaxLines < 1 || c.AlwaysReadMaxLines < 1 || c.AlwaysReadMaxFiles < 1 {
		return fmt.Errorf("agent doc budgets must be at least 1")
	}
	at := c.AutomationTargets
	if at.MakeTargets < 1 || at.Scripts < 1 || at.TriggerRules < 1 {
		return fmt.Errorf("automation targets must be at least 1")
	}
	if c.StaleAfter != "" {
		if _, err := parseDuration(c.StaleAfter); err != nil {
			return fmt.Errorf("invalid stale_after %q: %w", c.StaleAfter, err)
		}
	}
	return nil
}

// StaleWindow returns the doc freshness window, falling back to days.
func (c ProbeConfig) StaleWindow(days int) time.Duration {
	if c.StaleAfter != "" {
		if d, err := parseDuration(c.StaleAfter); err == nil {
			return d
		}
	}
	return time.Duration(days) * 24 * time.Hour
}

// parseDuration extends time.ParseDuration to support days and weeks.
func parseDuration(s string) (time.Duration, error) {
	// Handle days (e.g., "7d")
	var days int
	if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
		return time.Duration(days) * 24 * time.Hour, nil
	}

	// Handle weeks (e.g., "2w")
	var weeks int
	if _, err := fmt.Sscanf(s, "%dw", &weeks); err == nil {
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	// Fall back to standard time.ParseDuration (handles h, m, s, ms, etc.)
	return time.ParseDuration(s)
}
