package privilege

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hay-kot/alcl/pkg/executil"
)

// Grants installs and removes per-account sudoers fragments.
//
// A fragment is written to a dotted staging name in the sudoers directory
// and renamed into place. sudo skips files whose names contain a dot, so a
// half-written fragment is never parsed.
type Grants struct {
	log      zerolog.Logger
	exec     executil.Executor
	runner   *Runner
	dir      string
	commands []string
}

// NewGrants creates a grant manager writing fragments to dir. commands is the
// command list granted to every session, usually "ALL".
func NewGrants(log zerolog.Logger, exec executil.Executor, runner *Runner, dir string, commands []string) *Grants {
	return &Grants{
		log:      log.With().Str("component", "grants").Logger(),
		exec:     exec,
		runner:   runner,
		dir:      dir,
		commands: commands,
	}
}

// Path returns the fragment path for account. Dots in the account name are
// replaced so sudo does not skip the file.
func (g *Grants) Path(account string) string {
	return path.Join(g.dir, fragmentName(account))
}

func fragmentName(account string) string {
	return strings.ReplaceAll(account, ".", "_")
}

// Fragment renders the sudoers content for account.
func (g *Grants) Fragment(sessionName, account string) string {
	return fmt.Sprintf("# managed by alcl for session %s\n%s ALL=(ALL) NOPASSWD:SETENV: %s\n",
		sessionName, account, strings.Join(g.commands, ", "))
}

// Grant installs the fragment for account. It is a no-op when an identical
// fragment is already present.
func (g *Grants) Grant(ctx context.Context, sessionName, account string) error {
	content := g.Fragment(sessionName, account)
	dst := g.Path(account)

	if out, err := g.runner.Sudo(ctx, "cat", dst); err == nil && string(out.Stdout) == content {
		g.log.Debug().Str("account", account).Msg("grant already installed")
		return nil
	}

	tmp, err := os.CreateTemp("", "alcl-sudoers-*")
	if err != nil {
		return fmt.Errorf("create temp fragment: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp fragment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp fragment: %w", err)
	}

	if _, err := g.exec.Run(ctx, "visudo", "-cf", tmpPath); err != nil {
		return fmt.Errorf("check fragment syntax: %w", err)
	}

	staged := path.Join(g.dir, "."+fragmentName(account)+".staged")
	if _, err := g.runner.Sudo(ctx, "install", "-m", "0440", "-o", "root", tmpPath, staged); err != nil {
		return fmt.Errorf("stage fragment: %w", err)
	}
	if _, err := g.runner.Sudo(ctx, "mv", "-f", staged, dst); err != nil {
		_, _ = g.runner.Sudo(ctx, "rm", "-f", staged)
		return fmt.Errorf("install fragment: %w", err)
	}

	g.log.Info().Str("account", account).Str("path", dst).Msg("granted privileges")
	return nil
}

// Revoke removes the fragment for account. Revoking a missing fragment
// succeeds.
func (g *Grants) Revoke(ctx context.Context, account string) error {
	if _, err := g.runner.Sudo(ctx, "rm", "-f", g.Path(account)); err != nil {
		return fmt.Errorf("remove fragment: %w", err)
	}
	g.log.Debug().Str("account", account).Msg("revoked privileges")
	return nil
}
