package util

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/replit/pyrite/internal/tui"
)

// ProgressMsg prints an arrow-prefixed progress line on the echo
// channel.
func ProgressMsg(msg string) {
	tui.Echo("--> %s", msg)
}

// QuoteCmd renders a command line for display. Arguments spanning
// several lines are elided.
func QuoteCmd(cmd []string) string {
	cleanedCmd := make([]string, len(cmd))
	copy(cleanedCmd, cmd)
	for i := range cmd {
		if strings.ContainsRune(cmd[i], '\n') {
			cleanedCmd[i] = "<secret sauce>"
		}
	}
	return shellquote.Join(cleanedCmd...)
}

// Command describes a subprocess invocation.
type Command struct {
	Path string
	Args []string
	// Env is appended to the current process environment.
	Env []string
	Dir string

	// Stdout and Stderr default to the process stderr, so that helper
	// chatter never mixes with machine-readable stdout.
	Stdout io.Writer
	Stderr io.Writer
}

// Argv returns the full argument vector including the program.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

func (c Command) String() string {
	return QuoteCmd(c.Argv())
}

// CommandError reports a subprocess that failed to start or exited
// non-zero.
type CommandError struct {
	Cmd    string
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Cmd, e.Err)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner runs subprocesses. The bootstrap code only ever talks to
// helpers through a Runner so that tests can stand in for them.
type Runner interface {
	// Run executes the command and waits for it.
	Run(ctx context.Context, cmd Command) error
	// Output executes the command and returns its stdout.
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) build(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdout = os.Stderr
	if cmd.Stdout != nil {
		c.Stdout = cmd.Stdout
	}
	c.Stderr = os.Stderr
	if cmd.Stderr != nil {
		c.Stderr = cmd.Stderr
	}
	return c
}

func (r ExecRunner) Run(ctx context.Context, cmd Command) error {
	if err := r.build(ctx, cmd).Run(); err != nil {
		return &CommandError{Cmd: cmd.String(), Err: err}
	}
	return nil
}

func (r ExecRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := r.build(ctx, cmd).Run(); err != nil {
		return stdout.Bytes(), &CommandError{
			Cmd:    cmd.String(),
			Err:    err,
			Stderr: strings.TrimSpace(stderr.String()),
		}
	}
	return stdout.Bytes(), nil
}
