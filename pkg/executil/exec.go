// Package executil provides shell execution utilities.
package executil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a command whose context carries no deadline.
const DefaultTimeout = 2 * time.Minute

// Output is the captured result of a finished command.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Combined returns stdout followed by stderr, trimmed.
func (o Output) Combined() string {
	return strings.TrimSpace(string(o.Stdout) + string(o.Stderr))
}

// ExitError reports a command that exited non-zero, failed to start, or
// was killed by its deadline. The captured output is part of the message.
type ExitError struct {
	Cmd      string
	Args     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
	Err      error
}

func (e *ExitError) Error() string {
	var b strings.Builder
	line := strings.TrimSpace(e.Cmd + " " + strings.Join(e.Args, " "))

	if e.TimedOut {
		fmt.Fprintf(&b, "command timed out: %s", line)
	} else {
		fmt.Fprintf(&b, "command failed: %s (exit code %d)", line, e.ExitCode)
	}

	out := strings.TrimSpace(string(e.Stderr))
	if out == "" {
		out = strings.TrimSpace(string(e.Stdout))
	}
	if out == "" && e.Err != nil {
		out = e.Err.Error()
	}
	if out != "" {
		fmt.Fprintf(&b, ": %s", out)
	}

	return b.String()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Is reports timed-out commands as context.DeadlineExceeded.
func (e *ExitError) Is(target error) bool {
	return e.TimedOut && target == context.DeadlineExceeded
}

// Executor runs shell commands.
type Executor interface {
	// Run executes a command and captures stdout and stderr separately.
	Run(ctx context.Context, cmd string, args ...string) (Output, error)
	// RunStream executes a command and streams stdout/stderr to the provided writers.
	RunStream(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) error
	// RunInteractive executes a command attached to the process's stdin, stdout and stderr.
	RunInteractive(ctx context.Context, cmd string, args ...string) error
}

// RealExecutor calls actual shell commands.
type RealExecutor struct {
	// Timeout applies to Run and RunStream when ctx has no deadline.
	// Zero means DefaultTimeout; negative disables the bound.
	Timeout time.Duration
}

func (e *RealExecutor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}

	timeout := e.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, timeout)
}

// Run executes a command and captures its output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) (Output, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd, args...)
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	out := Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode(c, err),
	}
	if err != nil {
		return out, &ExitError{
			Cmd:      cmd,
			Args:     args,
			ExitCode: out.ExitCode,
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:      err,
		}
	}

	return out, nil
}

// RunStream executes a command and streams stdout/stderr to the provided writers.
func (e *RealExecutor) RunStream(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	c := exec.CommandContext(ctx, cmd, args...)
	c.Stdout = stdout
	c.Stderr = stderr
	if err := c.Run(); err != nil {
		return &ExitError{
			Cmd:      cmd,
			Args:     args,
			ExitCode: exitCode(c, err),
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:      err,
		}
	}
	return nil
}

// RunInteractive executes a command attached to the terminal. No default
// timeout applies since a human may be typing.
func (e *RealExecutor) RunInteractive(ctx context.Context, cmd string, args ...string) error {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return &ExitError{
			Cmd:      cmd,
			Args:     args,
			ExitCode: exitCode(c, err),
			Err:      err,
		}
	}
	return nil
}

func exitCode(c *exec.Cmd, err error) int {
	if c.ProcessState != nil {
		return c.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
