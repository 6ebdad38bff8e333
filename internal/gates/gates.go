// Package gates runs command gates and decides guardrail outcomes for
// matched trigger rules.
package gates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned in Result.Error when a gate command exceeds its
// deadline.
var ErrTimeout = errors.New("timeout")

// Result represents the outcome of one gate command
type Result struct {
	Command  string
	Passed   bool
	ExitCode int
	Output   string
	Duration time.Duration
	Error    error
}

// CommandRunner executes gate commands. Commands are split on whitespace
// and run directly, never through a shell.
type CommandRunner interface {
	Run(ctx context.Context, command string) *Result
}

// ExecRunner runs commands as subprocesses in WorkingDir.
type ExecRunner struct {
	WorkingDir string
}

// NewExecRunner creates a runner rooted at dir.
func NewExecRunner(dir string) *ExecRunner {
	if dir == "" {
		dir = "."
	}
	return &ExecRunner{WorkingDir: dir}
}

// Run implements CommandRunner.
func (r *ExecRunner) Run(ctx context.Context, command string) *Result {
	result := &Result{Command: command, ExitCode: -1}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	args := strings.Fields(command)
	if len(args) == 0 {
		result.Error = fmt.Errorf("empty command")
		return result
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.WorkingDir

	output, err := cmd.CombinedOutput()
	result.Output = string(output)

	if ctx.Err() == context.DeadlineExceeded {
		result.Error = ErrTimeout
		return result
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.Error = fmt.Errorf("%s failed with exit code %d", command, result.ExitCode)
			return result
		}
		result.Error = fmt.Errorf("%s: %w", command, err)
		return result
	}

	result.ExitCode = 0
	result.Passed = true
	return result
}

// RunWithTimeout runs one command under its own deadline.
func RunWithTimeout(ctx context.Context, runner CommandRunner, command string, timeout time.Duration) *Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	result := runner.Run(ctx, command)
	if !result.Passed && ctx.Err() == context.DeadlineExceeded {
		result.Error = ErrTimeout
	}
	return result
}

// RunAll executes commands in sequence, each bounded by timeout, and stops
// at the first failure. It returns the results so far and whether all
// commands passed.
func RunAll(ctx context.Context, runner CommandRunner, commands []string, timeout time.Duration) ([]*Result, bool) {
	var results []*Result
	for _, command := range commands {
		result := RunWithTimeout(ctx, runner, command, timeout)
		results = append(results, result)
		slog.Debug("gate command finished",
			"command", command,
			"passed", result.Passed,
			"exit_code", result.ExitCode,
			"duration", result.Duration)
		if !result.Passed {
			return results, false
		}
	}
	return results, true
}

// FormatResult renders a result for console or issue text.
func FormatResult(result *Result) string {
	var sb strings.Builder
	status := "PASSED"
	if !result.Passed {
		status = "FAILED"
	}
	sb.WriteString(fmt.Sprintf("%s: %s", result.Command, status))
	if result.Error != nil {
		sb.WriteString(fmt.Sprintf(" (%v)", result.Error))
	}
	if out := strings.TrimSpace(result.Output); out != "" && !result.Passed {
		if len(out) > 1000 {
			out = out[:1000] + "\n... (truncated)"
		}
		sb.WriteString("\n" + out)
	}
	return sb.String()
}
