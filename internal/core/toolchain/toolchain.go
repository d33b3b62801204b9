// Package toolchain installs an isolated Homebrew into a session home and
// installs packages through it.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/alcl/internal/core/config"
	"github.com/hay-kot/alcl/internal/core/session"
	"github.com/hay-kot/alcl/pkg/executil"
	"github.com/hay-kot/alcl/pkg/retry"
	"github.com/hay-kot/alcl/pkg/tmpl"
)

// PythonPackage is linked so that python3 resolves inside its prefix.
const PythonPackage = "python@3.12"

// UserRunner runs a shell script through a login shell of an account.
type UserRunner interface {
	AsUser(ctx context.Context, account, script string) (executil.Output, error)
}

// Installer manages the per-session package manager.
type Installer struct {
	log    zerolog.Logger
	runner UserRunner
	cfg    config.ToolchainConfig

	installTimeout time.Duration
	clock          retry.Clock
}

// New creates an Installer. installTimeout bounds update and install
// commands, which routinely outlast the default command timeout.
func New(log zerolog.Logger, runner UserRunner, cfg config.ToolchainConfig, installTimeout time.Duration) *Installer {
	return &Installer{
		log:            log.With().Str("component", "toolchain").Logger(),
		runner:         runner,
		cfg:            cfg,
		installTimeout: installTimeout,
		clock:          retry.RealClock,
	}
}

// brew returns the brew binary path, relative to the account's $HOME.
func (i *Installer) brew() string {
	return `"$HOME/` + path.Join(i.cfg.Dir, "bin", "brew") + `"`
}

func (i *Installer) root() string {
	return `"$HOME/` + i.cfg.Dir + `"`
}

// cloneScript is safe to re-run: an existing installation is kept, while a
// partial clone left by a failed attempt is discarded first.
func (i *Installer) cloneScript() string {
	return fmt.Sprintf("if [ ! -x %s ]; then rm -rf %s && git clone --depth 1 %s %s; fi",
		i.brew(), i.root(), tmpl.ShellQuote(i.cfg.Repository), i.root())
}

func (i *Installer) profileScript(profile string) string {
	file := `"$HOME/` + profile + `"`
	line := fmt.Sprintf(`eval "$(%s shellenv)"`, i.brew())
	return fmt.Sprintf("touch %s && (grep -qF 'brew shellenv' %s || echo %s >> %s)",
		file, file, tmpl.ShellQuote(line), file)
}

// InstallPackageManager clones Homebrew into the account's home unless it is
// already installed, wires the shell profiles and refreshes the index.
func (i *Installer) InstallPackageManager(ctx context.Context, account string) error {
	log := i.log.With().Str("account", account).Logger()

	policy := retry.Policy{
		Attempts: i.cfg.CloneAttempts,
		Delay:    i.cfg.CloneDelay,
		Clock:    i.clock,
		OnRetry: func(attempt int, err error) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("delay", i.cfg.CloneDelay).Msg("clone failed, retrying")
		},
	}

	log.Debug().Str("repository", i.cfg.Repository).Msg("installing package manager")
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if _, err := i.runner.AsUser(ctx, account, i.cloneScript()); err != nil {
			if errors.Is(err, session.ErrAuthentication) {
				return retry.Permanent(err)
			}
			return fmt.Errorf("%w: %w", session.ErrTransient, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clone package manager: %w", err)
	}

	for _, profile := range i.cfg.Profiles {
		if _, err := i.runner.AsUser(ctx, account, i.profileScript(profile)); err != nil {
			return fmt.Errorf("wire %s: %w", profile, err)
		}
	}

	ctx, cancel := i.withInstallTimeout(ctx)
	defer cancel()

	if _, err := i.runner.AsUser(ctx, account, i.brew()+" update --quiet"); err != nil {
		return fmt.Errorf("update package manager: %w", err)
	}

	log.Info().Msg("package manager installed")
	return nil
}

// InstallPackages installs names in a single invocation. An empty set is a
// no-op.
func (i *Installer) InstallPackages(ctx context.Context, account string, names []string) error {
	if len(names) == 0 {
		return nil
	}

	ctx, cancel := i.withInstallTimeout(ctx)
	defer cancel()

	i.log.Debug().Str("account", account).Strs("packages", names).Msg("installing packages")
	if _, err := i.runner.AsUser(ctx, account, i.brew()+" install --quiet "+tmpl.ShellJoin(names)); err != nil {
		return fmt.Errorf("install %s: %w", strings.Join(names, ", "), err)
	}
	return nil
}

// Prefix returns the installation prefix of pkg.
func (i *Installer) Prefix(ctx context.Context, account, pkg string) (string, error) {
	out, err := i.runner.AsUser(ctx, account, i.brew()+" --prefix "+tmpl.ShellQuote(pkg))
	if err != nil {
		return "", fmt.Errorf("prefix of %s: %w", pkg, err)
	}
	return strings.TrimSpace(string(out.Stdout)), nil
}

// PostInstall applies fixups for installed packages. Homebrew's versioned
// python only ships python3.12, so python3 is linked beside it.
func (i *Installer) PostInstall(ctx context.Context, account string, names []string) error {
	if !slices.Contains(names, PythonPackage) {
		return nil
	}

	prefix, err := i.Prefix(ctx, account, PythonPackage)
	if err != nil {
		return err
	}

	bin := path.Join(prefix, "bin")
	script := fmt.Sprintf("ln -sf %s %s",
		tmpl.ShellQuote(path.Join(bin, "python3.12")),
		tmpl.ShellQuote(path.Join(bin, "python3")))
	if _, err := i.runner.AsUser(ctx, account, script); err != nil {
		return fmt.Errorf("link python3: %w", err)
	}
	return nil
}

func (i *Installer) withInstallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.installTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, i.installTimeout)
}
