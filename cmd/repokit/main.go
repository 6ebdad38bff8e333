package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/config"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/healthcheck"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

var (
	rootFlag    string
	verboseFlag bool

	// settings is resolved once per invocation by PersistentPreRun
	settings config.Settings
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Repository root (default: nearest ancestor containing AGENTS.md or .git)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output and debug logging on stderr")
}

var rootCmd = &cobra.Command{
	Use:   "repokit",
	Short: "Repository health scoring and agent context routing",
	Long: `repokit scores repository health, enforces strict-mode blockers,
tracks score trends, routes agents to the documents a change needs, and
learns which context topics are used most.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verboseFlag || strings.EqualFold(os.Getenv("REPOKIT_LOG_LEVEL"), "debug"))

		s, err := resolveSettings(rootFlag)
		if err != nil {
			fail(err)
		}
		settings = s
		slog.Debug("settings resolved", "settings", settings.String())
	},
}

// Console colors shared by every command.
var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

func setupLogging(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// resolveSettings finds the repository root and loads its settings. Any
// failure is a configuration error.
func resolveSettings(root string) (config.Settings, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return config.Settings{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		if root, err = repo.FindRoot(cwd); err != nil {
			return config.Settings{}, err
		}
	}
	s, err := config.Load(root)
	if err != nil {
		var ce *types.ConfigError
		if errors.As(err, &ce) {
			return s, err
		}
		return s, &types.ConfigError{Path: config.SettingsFile, Err: err}
	}
	return s, nil
}

// exitCodeFor maps a command error to a process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return healthcheck.ExitPass
	}
	return healthcheck.ExitConfig
}

// fail reports err and exits with its code.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCodeFor(err))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(healthcheck.ExitConfig)
	}
}
