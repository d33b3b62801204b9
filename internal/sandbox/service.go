// Package sandbox composes the identity, privilege and toolchain layers into
// the session lifecycle and runs it across batches of sessions.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/hay-kot/alcl/internal/core/config"
	"github.com/hay-kot/alcl/internal/core/identity"
	"github.com/hay-kot/alcl/internal/core/session"
	"github.com/hay-kot/alcl/internal/core/validate"
	"github.com/hay-kot/alcl/pkg/executil"
)

// UserRunner runs a script through a login shell of an account.
type UserRunner interface {
	AsUser(ctx context.Context, account, script string) (executil.Output, error)
}

// Privileged is the elevated command surface the lifecycle needs.
type Privileged interface {
	UserRunner
	StreamRunner
	Sudo(ctx context.Context, cmd string, args ...string) (executil.Output, error)
	Shell(ctx context.Context, account string, argv []string) error
}

// Granter installs and removes per-account privilege grants.
type Granter interface {
	Grant(ctx context.Context, sessionName, account string) error
	Revoke(ctx context.Context, account string) error
}

// Toolchain installs the isolated package manager and packages.
type Toolchain interface {
	InstallPackageManager(ctx context.Context, account string) error
	InstallPackages(ctx context.Context, account string, names []string) error
	PostInstall(ctx context.Context, account string, names []string) error
}

// Info describes a managed account found on the host.
type Info struct {
	Name       string `json:"name"`
	Account    string `json:"account"`
	Home       string `json:"home"`
	Resolvable bool   `json:"resolvable"`
}

// Service orchestrates session lifecycles.
type Service struct {
	config     *config.Config
	log        zerolog.Logger
	dir        identity.Directory
	priv       Privileged
	grants     Granter
	toolchain  Toolchain
	poller     *Poller
	hookRunner *HookRunner
	now        func() time.Time
}

// New creates a new Service.
func New(
	cfg *config.Config,
	log zerolog.Logger,
	dir identity.Directory,
	priv Privileged,
	grants Granter,
	toolchain Toolchain,
	stdout, stderr io.Writer,
) *Service {
	return &Service{
		config:     cfg,
		log:        log.With().Str("component", "sandbox").Logger(),
		dir:        dir,
		priv:       priv,
		grants:     grants,
		toolchain:  toolchain,
		poller:     NewPoller(log.With().Str("component", "poller").Logger(), dir, priv, cfg.Readiness.ProbeHost, cfg.Readiness.ProbeTools),
		hookRunner: NewHookRunner(log.With().Str("component", "hooks").Logger(), priv, stdout, stderr),
		now:        time.Now,
	}
}

// WithHookOutput returns a copy of s whose hooks write to stdout and stderr.
func (s *Service) WithHookOutput(stdout, stderr io.Writer) *Service {
	cp := *s
	cp.hookRunner = NewHookRunner(s.hookRunner.log, s.priv, stdout, stderr)
	return &cp
}

// Account validates name and derives its account name.
func (s *Service) Account(name string) (string, error) {
	account, err := validate.AccountFor(s.config.HostUser, name)
	if err != nil {
		return "", stepErr(name, session.StepValidateName, err)
	}
	return account, nil
}

// CreateSession creates the account for name and waits until it is ready.
// An existing resolvable account is not recreated, but its readiness and
// home permissions are still confirmed.
func (s *Service) CreateSession(ctx context.Context, name string) (string, error) {
	account, err := s.Account(name)
	if err != nil {
		return "", err
	}
	log := s.log.With().Str("session", name).Str("account", account).Logger()

	exists, err := s.dir.Exists(ctx, account)
	if err != nil {
		return "", stepErr(name, session.StepCreate, err)
	}

	switch {
	case exists && s.dir.Resolvable(ctx, account):
		log.Info().Msg("account exists, confirming readiness")
	case exists:
		log.Info().Msg("account exists but does not resolve yet")
	default:
		log.Info().Msg("creating account")
		if err := s.dir.Create(ctx, account); err != nil {
			return "", stepErr(name, session.StepCreate, err)
		}
	}

	err = s.poller.WaitUntilReady(ctx, account, s.config.Readiness.MaxAttempts, s.config.Readiness.Interval)
	if err != nil {
		return "", stepErr(name, session.StepReadiness, err)
	}

	// Only the home directory itself is fixed; recursing would touch
	// system-protected subpaths.
	home := s.dir.Home(account)
	if _, err := s.priv.Sudo(ctx, "chown", account+":"+s.dir.Group(account), home); err != nil {
		return "", stepErr(name, session.StepPermissions, err)
	}
	if _, err := s.priv.Sudo(ctx, "chmod", "700", home); err != nil {
		return "", stepErr(name, session.StepPermissions, err)
	}

	log.Info().Msg("account ready")
	return account, nil
}

// ProvisionSession grants privileges and installs the toolchain plus the
// default tools and extras.
func (s *Service) ProvisionSession(ctx context.Context, name string, extras []string) error {
	account, err := s.Account(name)
	if err != nil {
		return err
	}
	log := s.log.With().Str("session", name).Str("account", account).Logger()

	exists, err := s.dir.Exists(ctx, account)
	if err != nil {
		return stepErr(name, session.StepGrant, err)
	}
	if !exists {
		return stepErr(name, session.StepGrant, fmt.Errorf("account %s does not exist, create the session first", account))
	}

	if err := s.grants.Grant(ctx, name, account); err != nil {
		return stepErr(name, session.StepGrant, err)
	}

	if err := s.toolchain.InstallPackageManager(ctx, account); err != nil {
		return stepErr(name, session.StepToolchain, err)
	}

	tools := session.NewToolSet(append(append([]string{}, s.config.Tools...), extras...)...)
	log.Info().Strs("tools", tools.Names()).Msg("installing tools")
	if err := s.toolchain.InstallPackages(ctx, account, tools.Names()); err != nil {
		return stepErr(name, session.StepPackages, err)
	}
	if err := s.toolchain.PostInstall(ctx, account, tools.Names()); err != nil {
		return stepErr(name, session.StepPostInstall, err)
	}

	data := config.HookTemplateData{Name: name, Account: account, Home: s.dir.Home(account)}
	if err := s.hookRunner.RunHooks(ctx, s.config.Hooks, data); err != nil {
		return stepErr(name, session.StepHooks, err)
	}

	log.Info().Msg("session provisioned")
	return nil
}

// ValidateSession runs the configured checks as the session account. A
// report is returned even when checks fail.
func (s *Service) ValidateSession(ctx context.Context, name string) (session.ValidationReport, error) {
	account, err := s.Account(name)
	if err != nil {
		return session.ValidationReport{}, err
	}

	report := session.ValidationReport{Session: name, Account: account}
	for _, cmd := range s.config.Validation.Commands {
		out, err := s.priv.AsUser(ctx, account, cmd)
		check := session.Check{
			Command: cmd,
			Output:  out.Combined(),
		}
		if err != nil {
			if errors.Is(err, session.ErrAuthentication) {
				return report, stepErr(name, session.StepValidate, err)
			}
			check.Error = err.Error()
		}
		report.Checks = append(report.Checks, check)
	}

	if !report.Passed() {
		return report, &session.ValidationError{Report: report}
	}

	s.log.Info().Str("session", name).Int("checks", len(report.Checks)).Msg("session validated")
	return report, nil
}

// DestroySession revokes the grant and deletes the account. Destroying an
// absent session only removes a stale grant, if any.
func (s *Service) DestroySession(ctx context.Context, name string) error {
	account, err := s.Account(name)
	if err != nil {
		return err
	}
	log := s.log.With().Str("session", name).Str("account", account).Logger()

	exists, err := s.dir.Exists(ctx, account)
	if err != nil {
		return stepErr(name, session.StepDelete, err)
	}

	// The grant goes first so no rule ever names a deleted account.
	if err := s.grants.Revoke(ctx, account); err != nil {
		return stepErr(name, session.StepRevoke, err)
	}

	if !exists {
		log.Debug().Msg("account absent, nothing to delete")
		return nil
	}

	if err := s.dir.Delete(ctx, account); err != nil {
		return stepErr(name, session.StepDelete, err)
	}
	if err := s.dir.FlushCache(ctx); err != nil {
		log.Debug().Err(err).Msg("cache flush failed")
	}

	log.Info().Msg("session destroyed")
	return nil
}

// UpOptions configures Up.
type UpOptions struct {
	Tools        []string
	SkipValidate bool
}

// Up creates, provisions and validates name, tracking the lifecycle state.
// The session is returned even on failure, in the failed state.
func (s *Service) Up(ctx context.Context, name string, opts UpOptions) (*session.Session, error) {
	sess := session.New(s.config.HostUser, name, s.now())

	fail := func(err error) (*session.Session, error) {
		sess.Fail(err, s.now())
		return sess, err
	}

	if _, err := s.CreateSession(ctx, name); err != nil {
		return fail(err)
	}
	if err := s.advance(sess, session.StateCreated, session.StateReady); err != nil {
		return fail(err)
	}

	if err := s.ProvisionSession(ctx, name, opts.Tools); err != nil {
		return fail(err)
	}
	if err := s.advance(sess, session.StatePrivilegeGranted, session.StateProvisioned); err != nil {
		return fail(err)
	}

	if opts.SkipValidate {
		return sess, nil
	}

	if _, err := s.ValidateSession(ctx, name); err != nil {
		return fail(err)
	}
	if err := s.advance(sess, session.StateValidated); err != nil {
		return fail(err)
	}

	return sess, nil
}

// Down destroys name and reports the torn-down session.
func (s *Service) Down(ctx context.Context, name string) (*session.Session, error) {
	sess := session.New(s.config.HostUser, name, s.now())
	if err := s.DestroySession(ctx, name); err != nil {
		sess.Fail(err, s.now())
		return sess, err
	}
	_ = sess.Advance(session.StateTornDown, s.now())
	return sess, nil
}

func (s *Service) advance(sess *session.Session, states ...session.State) error {
	for _, st := range states {
		if err := sess.Advance(st, s.now()); err != nil {
			return err
		}
	}
	return nil
}

// List returns the managed accounts of the host user. State is re-read from
// the directory on every call.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	accounts, err := s.dir.List(ctx)
	if err != nil {
		return nil, err
	}

	var infos []Info
	for _, account := range accounts {
		name, ok := session.ParseAccountName(s.config.HostUser, account)
		if !ok {
			continue
		}
		infos = append(infos, Info{
			Name:       name,
			Account:    account,
			Home:       s.dir.Home(account),
			Resolvable: s.dir.Resolvable(ctx, account),
		})
	}
	return infos, nil
}

// Orphans returns managed accounts whose session name matches the glob
// pattern. An empty pattern matches every managed account.
func (s *Service) Orphans(ctx context.Context, pattern string) ([]Info, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob %q", pattern)
	}

	infos, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return infos, nil
	}

	var matched []Info
	for _, info := range infos {
		if ok, _ := doublestar.Match(pattern, info.Name); ok {
			matched = append(matched, info)
		}
	}
	return matched, nil
}

// Shell attaches the terminal to a login shell of the session account.
func (s *Service) Shell(ctx context.Context, name string, argv []string) error {
	account, err := s.Account(name)
	if err != nil {
		return err
	}

	exists, err := s.dir.Exists(ctx, account)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("session %s does not exist", name)
	}

	return s.priv.Shell(ctx, account, argv)
}

// stepErr wraps err with the failing step. Deadline failures are tagged as
// timeouts.
func stepErr(name string, step session.Step, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, session.ErrTimeout) {
		err = fmt.Errorf("%w: %w", session.ErrTimeout, err)
	}
	return &session.ProvisioningError{Session: name, Step: step, Err: err}
}
