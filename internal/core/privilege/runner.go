// Package privilege manages elevated command execution and per-session
// sudoers grants.
package privilege

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hay-kot/alcl/internal/core/session"
	"github.com/hay-kot/alcl/pkg/executil"
	"github.com/hay-kot/alcl/pkg/tmpl"
)

// Runner executes commands through sudo. Every call except Validate is
// non-interactive, so a missing credential fails fast instead of blocking
// on a password prompt inside a worker.
type Runner struct {
	log  zerolog.Logger
	exec executil.Executor
}

// NewRunner creates a Runner.
func NewRunner(log zerolog.Logger, exec executil.Executor) *Runner {
	return &Runner{
		log:  log.With().Str("component", "privilege").Logger(),
		exec: exec,
	}
}

// Validate refreshes the cached sudo credential. When interactive is true
// the user may be prompted for a password on the terminal.
func (r *Runner) Validate(ctx context.Context, interactive bool) error {
	var err error
	if interactive {
		err = r.exec.RunInteractive(ctx, "sudo", "-v")
	} else {
		_, err = r.exec.Run(ctx, "sudo", "-n", "-v")
	}
	if err != nil {
		r.log.Debug().Err(err).Bool("interactive", interactive).Msg("sudo validation refused")
		return fmt.Errorf("%w: %w", session.ErrAuthentication, err)
	}
	return nil
}

// Sudo runs cmd as root without prompting.
func (r *Runner) Sudo(ctx context.Context, cmd string, args ...string) (executil.Output, error) {
	r.log.Debug().Str("cmd", cmd).Strs("args", args).Msg("sudo")
	out, err := r.exec.Run(ctx, "sudo", append([]string{"-n", cmd}, args...)...)
	return out, classify(out.Stderr, err)
}

// AsUser runs script through a login shell of account.
func (r *Runner) AsUser(ctx context.Context, account, script string) (executil.Output, error) {
	r.log.Debug().Str("account", account).Str("script", script).Msg("run as user")
	out, err := r.exec.Run(ctx, "sudo", "-n", "su", "-", account, "-c", script)
	return out, classify(out.Stderr, err)
}

// AsUserStream is AsUser with output written to stdout and stderr as it is
// produced.
func (r *Runner) AsUserStream(ctx context.Context, stdout, stderr io.Writer, account, script string) error {
	r.log.Debug().Str("account", account).Str("script", script).Msg("run as user (streaming)")
	return r.exec.RunStream(ctx, stdout, stderr, "sudo", "-n", "su", "-", account, "-c", script)
}

// Shell attaches the terminal to a login shell of account. When argv is
// non-empty it is run instead of an interactive shell, each word quoted so
// the login shell sees the same arguments.
func (r *Runner) Shell(ctx context.Context, account string, argv []string) error {
	args := []string{"su", "-", account}
	if len(argv) > 0 {
		args = append(args, "-c", tmpl.ShellJoin(argv))
	}
	return r.exec.RunInteractive(ctx, "sudo", args...)
}

// classify marks failures caused by an expired sudo credential so callers
// can stop scheduling work that would fail the same way.
func classify(stderr []byte, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(string(stderr), "a password is required") {
		return fmt.Errorf("%w: %w", session.ErrAuthentication, err)
	}
	return err
}
