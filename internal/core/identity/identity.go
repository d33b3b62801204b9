// Package identity queries and mutates the host's user-account directory.
package identity

import (
	"context"
	"fmt"

	"github.com/hay-kot/alcl/internal/core/config"
	"github.com/hay-kot/alcl/pkg/executil"
)

// Directory is the host user-account directory.
//
// Exists reports the directory record only. A freshly created account can
// exist before the resolver knows about it, so callers that need a usable
// account must also check Resolvable.
type Directory interface {
	// List returns every account name in the directory.
	List(ctx context.Context) ([]string, error)
	// Exists reports whether the directory holds a record for account.
	Exists(ctx context.Context, account string) (bool, error)
	// Resolvable reports whether the system identity resolver knows account.
	Resolvable(ctx context.Context, account string) bool
	// Create adds account with an empty login password and a home directory.
	Create(ctx context.Context, account string) error
	// Delete removes account and its home directory.
	Delete(ctx context.Context, account string) error
	// FlushCache invalidates the host's directory cache.
	FlushCache(ctx context.Context) error
	// ReloadDaemon asks the identity-resolution daemon to reload.
	ReloadDaemon(ctx context.Context) error
	// Home returns the home directory of account.
	Home(account string) string
	// Group returns the primary group that should own account's home.
	Group(account string) string
}

// Sudoer runs a command non-interactively with elevated rights.
type Sudoer interface {
	Sudo(ctx context.Context, cmd string, args ...string) (executil.Output, error)
}

// New returns the Directory implementation for the configured platform.
func New(platform string, exec executil.Executor, sudo Sudoer) (Directory, error) {
	switch platform {
	case config.PlatformDarwin:
		return NewDarwin(exec, sudo), nil
	case config.PlatformLinux:
		return NewLinux(exec, sudo), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
}

// resolvable runs `id -u account`, which only succeeds once the resolver
// can map the name to a uid.
func resolvable(ctx context.Context, exec executil.Executor, account string) bool {
	_, err := exec.Run(ctx, "id", "-u", account)
	return err == nil
}
