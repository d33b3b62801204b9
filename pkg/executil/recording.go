package executil

import (
	"context"
	"io"
	"strings"
	"sync"
)

// RecordedCommand captures a command that was executed.
type RecordedCommand struct {
	Cmd  string
	Args []string
}

// String renders the command line, space separated.
func (r RecordedCommand) String() string {
	return strings.TrimSpace(r.Cmd + " " + strings.Join(r.Args, " "))
}

// HandlerFunc scripts the result of a single recorded command.
type HandlerFunc func(cmd string, args []string) (Output, error)

// RecordingExecutor captures commands for testing.
// Configure Outputs and Errors maps for static results, or Handler for
// results that depend on the arguments or the call count.
type RecordingExecutor struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	// Outputs maps command names to their stdout.
	// Key is the command name (e.g., "sudo").
	Outputs map[string][]byte

	// Errors maps command names to their error.
	Errors map[string]error

	// Handler, when set, takes precedence over Outputs and Errors.
	Handler HandlerFunc
}

// Run records the command and returns configured output/error.
func (e *RecordingExecutor) Run(ctx context.Context, cmd string, args ...string) (Output, error) {
	return e.record(cmd, args...)
}

func (e *RecordingExecutor) record(cmd string, args ...string) (Output, error) {
	e.mu.Lock()
	e.Commands = append(e.Commands, RecordedCommand{
		Cmd:  cmd,
		Args: append([]string(nil), args...),
	})
	handler := e.Handler
	e.mu.Unlock()

	if handler != nil {
		return handler(cmd, args)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var out Output
	var err error

	if e.Outputs != nil {
		out.Stdout = e.Outputs[cmd]
	}
	if e.Errors != nil {
		err = e.Errors[cmd]
	}
	if err != nil {
		out.ExitCode = 1
	}

	return out, err
}

// Recorded returns a snapshot of the recorded commands.
func (e *RecordingExecutor) Recorded() []RecordedCommand {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RecordedCommand(nil), e.Commands...)
}

// Reset clears recorded commands.
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Commands = nil
}

// RunStream records the command and writes configured output to writers.
func (e *RecordingExecutor) RunStream(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) error {
	out, err := e.record(cmd, args...)
	if stdout != nil && len(out.Stdout) > 0 {
		_, _ = stdout.Write(out.Stdout)
	}
	if stderr != nil && len(out.Stderr) > 0 {
		_, _ = stderr.Write(out.Stderr)
	}
	return err
}

// RunInteractive records the command and returns the configured error.
func (e *RecordingExecutor) RunInteractive(ctx context.Context, cmd string, args ...string) error {
	_, err := e.record(cmd, args...)
	return err
}
