package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/alcl/internal/core/identity"
	"github.com/hay-kot/alcl/internal/core/session"
	"github.com/hay-kot/alcl/pkg/retry"
	"github.com/hay-kot/alcl/pkg/tmpl"
)

var (
	errNotResolvable = errors.New("account is not resolvable")
	errNoNetwork     = errors.New("account has no network access")
)

// Poller waits for a freshly created account to become usable.
type Poller struct {
	log        zerolog.Logger
	dir        identity.Directory
	runner     UserRunner
	probeHost  string
	probeTools []string
	clock      retry.Clock
}

// NewPoller creates a Poller that proves network access by resolving
// probeHost with the first of probeTools that succeeds.
func NewPoller(log zerolog.Logger, dir identity.Directory, runner UserRunner, probeHost string, probeTools []string) *Poller {
	return &Poller{
		log:        log,
		dir:        dir,
		runner:     runner,
		probeHost:  probeHost,
		probeTools: probeTools,
		clock:      retry.RealClock,
	}
}

// WaitUntilReady polls until account is resolvable and can reach the
// network in the same cycle. An unresolvable account triggers a
// best-effort cache flush and daemon reload before the next poll. The
// interval separates polls, so maxAttempts polls sleep maxAttempts-1 times.
func (p *Poller) WaitUntilReady(ctx context.Context, account string, maxAttempts int, interval time.Duration) error {
	log := p.log.With().Str("account", account).Logger()

	var resolved, networkReady bool
	polls := 0

	policy := retry.Policy{
		Attempts: maxAttempts,
		Delay:    interval,
		Clock:    p.clock,
	}

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		polls++
		resolved, networkReady = false, false

		if !p.dir.Resolvable(ctx, account) {
			log.Debug().Int("poll", polls).Msg("account not resolvable, flushing directory cache")
			if err := p.dir.FlushCache(ctx); err != nil {
				log.Debug().Err(err).Msg("cache flush failed")
			}
			if err := p.dir.ReloadDaemon(ctx); err != nil {
				log.Debug().Err(err).Msg("daemon reload failed")
			}
			return errNotResolvable
		}
		resolved = true

		if _, err := p.runner.AsUser(ctx, account, p.probeScript()); err != nil {
			if errors.Is(err, session.ErrAuthentication) {
				return retry.Permanent(err)
			}
			log.Debug().Int("poll", polls).Err(err).Msg("network probe failed")
			return errNoNetwork
		}
		networkReady = true
		return nil
	})
	if err == nil {
		log.Debug().Int("polls", polls).Msg("account ready")
		return nil
	}
	if errors.Is(err, session.ErrAuthentication) {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("wait for %s: %w", account, err)
	}

	cause := err
	var attemptsErr *retry.AttemptsError
	if errors.As(err, &attemptsErr) {
		cause = attemptsErr.Err
	}

	return &session.ReadinessTimeoutError{
		Account:      account,
		Attempts:     polls,
		Resolved:     resolved,
		NetworkReady: networkReady,
		Err:          cause,
	}
}

// probeScript tries each resolution tool in turn and succeeds on the first
// that resolves the probe host.
func (p *Poller) probeScript() string {
	host := tmpl.ShellQuote(p.probeHost)
	parts := make([]string, 0, len(p.probeTools))
	for _, tool := range p.probeTools {
		cmd := tool + " " + host
		if tool == "ping" {
			cmd = "ping -c 1 " + host
		}
		parts = append(parts, fmt.Sprintf("%s >/dev/null 2>&1", cmd))
	}
	return strings.Join(parts, " || ")
}
