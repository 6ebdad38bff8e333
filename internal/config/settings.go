// Package config resolves repokit's tool settings from defaults, an optional
// .repokit.yaml at the repository root, and REPOKIT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
)

// EnvPrefix is prepended to every environment override (REPOKIT_PASS_THRESHOLD, ...).
const EnvPrefix = "REPOKIT"

// SettingsFile is the optional per-repository settings file.
const SettingsFile = ".repokit.yaml"

// Settings holds every tunable the commands read.
type Settings struct {
	// Root is the repository root all relative paths resolve against.
	Root string

	// Environment is APP_ENV (dev, test or prod). Recorded in reports only.
	Environment string

	ScoringModel   string
	StrictModel    string
	TriggerCatalog string
	Registry       string
	ReportsDir     string
	HistoryFile    string
	UsageFile      string
	RootAgentDoc   string

	// PassThreshold is the minimum total score for health-check to pass.
	// Default: 70, Range: 0-100
	PassThreshold float64

	// ProbeTimeout bounds every probe that shells out.
	// Default: 30s
	ProbeTimeout time.Duration

	// MakeTimeout bounds skip-condition make commands in the guardrail.
	// Default: 30s
	MakeTimeout time.Duration

	// StaleDocDays is the freshness window for documentation.
	// Default: 90, Range: 1-3650
	StaleDocDays int

	// HistoryLimit caps the rolling run history.
	// Default: 100, Range: 2-10000
	HistoryLimit int

	// TopSuggestions bounds the suggestions section of the Markdown report.
	// Default: 20
	TopSuggestions int

	// LintCommand and CoverageCommand are delegated probe commands.
	LintCommand     string
	CoverageCommand string

	// RequiredModuleDocs is the doc set every module instance must carry.
	RequiredModuleDocs []string

	// UsageLoggingEnv names the flag that enables "context maybe-log".
	UsageLoggingEnv string
}

// DefaultSettings returns the defaults used when nothing is configured.
func DefaultSettings(root string) Settings {
	return Settings{
		Root:            root,
		Environment:     "dev",
		ScoringModel:    repo.ScoringModelPath,
		StrictModel:     repo.StrictModelPath,
		TriggerCatalog:  repo.TriggerCatalogPath,
		Registry:        repo.RegistryPath,
		ReportsDir:      repo.ReportsDir,
		HistoryFile:     repo.HistoryFile,
		UsageFile:       repo.UsageFile,
		RootAgentDoc:    repo.RootAgentDoc,
		PassThreshold:   70,
		ProbeTimeout:    30 * time.Second,
		MakeTimeout:     30 * time.Second,
		StaleDocDays:    90,
		HistoryLimit:    100,
		TopSuggestions:  20,
		LintCommand:     "make lint",
		CoverageCommand: "make test_coverage",
		RequiredModuleDocs: []string{
			"README.md",
			"AGENTS.md",
			"doc/CONTRACT.md",
			"doc/TEST_PLAN.md",
			"doc/RUNBOOK.md",
			"doc/CHANGELOG.md",
		},
		UsageLoggingEnv: "ROUTE_USAGE_LOGGING",
	}
}

// Load resolves settings for the repository at root.
func Load(root string) (Settings, error) {
	defaults := DefaultSettings(root)

	v := viper.New()
	v.SetDefault("scoring_model", defaults.ScoringModel)
	v.SetDefault("strict_model", defaults.StrictModel)
	v.SetDefault("trigger_catalog", defaults.TriggerCatalog)
	v.SetDefault("registry", defaults.Registry)
	v.SetDefault("reports_dir", defaults.ReportsDir)
	v.SetDefault("history_file", defaults.HistoryFile)
	v.SetDefault("usage_file", defaults.UsageFile)
	v.SetDefault("root_agent_doc", defaults.RootAgentDoc)
	v.SetDefault("pass_threshold", defaults.PassThreshold)
	v.SetDefault("probe_timeout", defaults.ProbeTimeout)
	v.SetDefault("make_timeout", defaults.MakeTimeout)
	v.SetDefault("stale_doc_days", defaults.StaleDocDays)
	v.SetDefault("history_limit", defaults.HistoryLimit)
	v.SetDefault("top_suggestions", defaults.TopSuggestions)
	v.SetDefault("lint_command", defaults.LintCommand)
	v.SetDefault("coverage_command", defaults.CoverageCommand)
	v.SetDefault("required_module_docs", defaults.RequiredModuleDocs)
	v.SetDefault("usage_logging_env", defaults.UsageLoggingEnv)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	settingsPath := filepath.Join(root, SettingsFile)
	if _, err := os.Stat(settingsPath); err == nil {
		v.SetConfigFile(settingsPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return defaults, fmt.Errorf("reading %s: %w", SettingsFile, err)
		}
	}

	s := Settings{
		Root:               root,
		Environment:        defaults.Environment,
		ScoringModel:       v.GetString("scoring_model"),
		StrictModel:        v.GetString("strict_model"),
		TriggerCatalog:     v.GetString("trigger_catalog"),
		Registry:           v.GetString("registry"),
		ReportsDir:         v.GetString("reports_dir"),
		HistoryFile:        v.GetString("history_file"),
		UsageFile:          v.GetString("usage_file"),
		RootAgentDoc:       v.GetString("root_agent_doc"),
		PassThreshold:      v.GetFloat64("pass_threshold"),
		ProbeTimeout:       v.GetDuration("probe_timeout"),
		MakeTimeout:        v.GetDuration("make_timeout"),
		StaleDocDays:       v.GetInt("stale_doc_days"),
		HistoryLimit:       v.GetInt("history_limit"),
		TopSuggestions:     v.GetInt("top_suggestions"),
		LintCommand:        v.GetString("lint_command"),
		CoverageCommand:    v.GetString("coverage_command"),
		RequiredModuleDocs: v.GetStringSlice("required_module_docs"),
		UsageLoggingEnv:    v.GetString("usage_logging_env"),
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		s.Environment = env
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks if the settings have valid values
func (s Settings) Validate() error {
	if s.Root == "" {
		return fmt.Errorf("root is required")
	}
	if s.PassThreshold < 0 || s.PassThreshold > 100 {
		return fmt.Errorf("pass_threshold must be between 0 and 100 (got %v)", s.PassThreshold)
	}
	if s.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive (got %s)", s.ProbeTimeout)
	}
	if s.MakeTimeout <= 0 {
		return fmt.Errorf("make_timeout must be positive (got %s)", s.MakeTimeout)
	}
	if s.StaleDocDays < 1 || s.StaleDocDays > 3650 {
		return fmt.Errorf("stale_doc_days must be between 1 and 3650 (got %d)", s.StaleDocDays)
	}
	if s.HistoryLimit < 2 || s.HistoryLimit > 10000 {
		return fmt.Errorf("history_limit must be between 2 and 10000 (got %d)", s.HistoryLimit)
	}
	if s.TopSuggestions < 1 {
		return fmt.Errorf("top_suggestions must be at least 1 (got %d)", s.TopSuggestions)
	}
	switch s.Environment {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("APP_ENV must be dev, test or prod (got %q)", s.Environment)
	}
	return nil
}

// Path resolves a settings path against the repository root.
func (s Settings) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// String returns a human-readable representation of the settings
func (s Settings) String() string {
	return fmt.Sprintf(
		"Settings{Root: %s, Env: %s, PassThreshold: %.0f, ProbeTimeout: %s, "+
			"MakeTimeout: %s, StaleDocDays: %d, HistoryLimit: %d}",
		s.Root, s.Environment, s.PassThreshold, s.ProbeTimeout,
		s.MakeTimeout, s.StaleDocDays, s.HistoryLimit,
	)
}

// IsTruthy interprets flag-style values: 1, true, yes, on (any case).
func IsTruthy(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "yes", "y", "on":
		return true
	}
	b, err := cast.ToBoolE(v)
	return err == nil && b
}

// EnvTruthy reports whether the named environment variable is truthy.
func EnvTruthy(name string) bool {
	if name == "" {
		return false
	}
	return IsTruthy(os.Getenv(name))
}
