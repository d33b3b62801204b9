package sandbox

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/hay-kot/alcl/internal/core/config"
	"github.com/hay-kot/alcl/internal/styles"
	"github.com/hay-kot/alcl/pkg/tmpl"
)

// StreamRunner runs a script as an account with its output streamed.
type StreamRunner interface {
	AsUserStream(ctx context.Context, stdout, stderr io.Writer, account, script string) error
}

// HookRunner executes session-specific setup hooks.
type HookRunner struct {
	log    zerolog.Logger
	runner StreamRunner
	stdout io.Writer
	stderr io.Writer
}

// NewHookRunner creates a new HookRunner.
func NewHookRunner(log zerolog.Logger, runner StreamRunner, stdout, stderr io.Writer) *HookRunner {
	return &HookRunner{
		log:    log,
		runner: runner,
		stdout: stdout,
		stderr: stderr,
	}
}

// RunHooks executes hooks whose pattern matches the session name. Commands
// are rendered with data and run as the session account.
func (h *HookRunner) RunHooks(ctx context.Context, hooks []config.Hook, data config.HookTemplateData) error {
	h.log.Debug().
		Str("session", data.Name).
		Int("hook_count", len(hooks)).
		Msg("evaluating hooks")

	hookNum := 0
	for _, hook := range hooks {
		matched, err := doublestar.Match(hook.Pattern, data.Name)
		if err != nil {
			return fmt.Errorf("match pattern %q: %w", hook.Pattern, err)
		}

		h.log.Debug().
			Str("pattern", hook.Pattern).
			Str("session", data.Name).
			Bool("matched", matched).
			Msg("hook pattern evaluated")

		if !matched {
			continue
		}

		hookNum++

		for i, raw := range hook.Commands {
			cmd, err := tmpl.Render(raw, data)
			if err != nil {
				return fmt.Errorf("render hook %q command %q: %w", hook.Pattern, raw, err)
			}

			h.printCommandHeader(data.Name, hookNum, i+1, len(hook.Commands), cmd)

			if err := h.runner.AsUserStream(ctx, h.stdout, h.stderr, data.Account, cmd); err != nil {
				return fmt.Errorf("run hook %q command %q: %w", hook.Pattern, cmd, err)
			}

			_, _ = fmt.Fprintln(h.stdout)
		}
	}

	return nil
}

// printCommandHeader prints a styled header for a hook command.
func (h *HookRunner) printCommandHeader(name string, hookNum, cmdNum, totalCmds int, cmd string) {
	divider := styles.DividerStyle.Render(strings.Repeat("─", 50))
	header := styles.CommandHeaderStyle.Render(fmt.Sprintf("%s hook %d", name, hookNum))
	cmdLabel := styles.DividerStyle.Render(fmt.Sprintf("[%d/%d]", cmdNum, totalCmds))
	command := styles.CommandStyle.Render(cmd)

	_, _ = fmt.Fprintln(h.stdout)
	_, _ = fmt.Fprintln(h.stdout, divider)
	_, _ = fmt.Fprintf(h.stdout, "%s %s %s\n", header, cmdLabel, command)
	_, _ = fmt.Fprintln(h.stdout, divider)
}
