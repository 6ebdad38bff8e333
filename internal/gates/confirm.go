package gates

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// Confirmer asks the user to approve an action. Only an explicit "yes"
// approves; anything else, including end of input, declines.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// IsYes reports whether an answer approves.
func IsYes(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

// NewTerminalConfirmer prompts on the terminal with line editing when stdin
// is a terminal, and reads a plain line from stdin otherwise.
func NewTerminalConfirmer() Confirmer {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return &ReadlineConfirmer{}
	}
	return &LineConfirmer{In: os.Stdin, Out: os.Stderr}
}

// ReadlineConfirmer prompts through readline.
type ReadlineConfirmer struct{}

// Confirm implements Confirmer.
func (c *ReadlineConfirmer) Confirm(prompt string) (bool, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt + " [yes/no]: ",
		InterruptPrompt: "^C",
		EOFPrompt:       "no",
	})
	if err != nil {
		return false, fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get user input: %w", err)
	}
	return IsYes(line), nil
}

// LineConfirmer reads one answer line from In, writing the prompt to Out.
type LineConfirmer struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// Confirm implements Confirmer.
func (c *LineConfirmer) Confirm(prompt string) (bool, error) {
	if c.reader == nil {
		c.reader = bufio.NewReader(c.In)
	}
	if c.Out != nil {
		fmt.Fprintf(c.Out, "%s [yes/no]: ", prompt)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to get user input: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		slog.Debug("no confirmation input available, declining")
	}
	return IsYes(line), nil
}
