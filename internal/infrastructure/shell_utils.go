package infrastructure

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Command describes one external tool invocation
type Command struct {
	Binary string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command as a shell-safe line for logs
func (c Command) String() string {
	return ShellEscapeCommand(c.Binary, c.Args...)
}

// CommandRunner executes external tools
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec. Arguments are passed directly to
// the process, no shell is involved.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and waits for it to exit
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", c.Binary, err)
	}
	return nil
}

// ShellEscape quotes a string for display in a shell command line.
// Used for logging only.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsFunc(s, isShellSpecialChar) {
		return s
	}

	// Single quotes protect everything except single quotes themselves,
	// which are closed, emitted in double quotes and reopened.
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// ShellEscapeCommand renders a binary and its arguments as one escaped line
func ShellEscapeCommand(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellEscape(binary))
	for _, arg := range args {
		parts = append(parts, ShellEscape(arg))
	}
	return strings.Join(parts, " ")
}

func isShellSpecialChar(c rune) bool {
	switch c {
	case ' ', '\t', '\'', '"', '$', '`', '\\', '!', '*', '?', '[', ']',
		'(', ')', '{', '}', '|', ';', '<', '>', '&', '~', '#', '%', '\n', '\r':
		return true
	default:
		return false
	}
}
