package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/hay-kot/alcl/pkg/executil"
)

// Linux implements Directory with shadow-utils and NSS tooling.
type Linux struct {
	exec executil.Executor
	sudo Sudoer
}

// NewLinux creates a Linux directory client.
func NewLinux(exec executil.Executor, sudo Sudoer) *Linux {
	return &Linux{exec: exec, sudo: sudo}
}

func (l *Linux) List(ctx context.Context) ([]string, error) {
	out, err := l.exec.Run(ctx, "getent", "passwd")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	lines, err := parseLines(out.Stdout)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(lines))
	for _, line := range lines {
		name, _, _ := strings.Cut(line, ":")
		names = append(names, name)
	}
	return names, nil
}

func (l *Linux) Exists(ctx context.Context, account string) (bool, error) {
	if _, err := l.exec.Run(ctx, "getent", "passwd", account); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return true, nil
}

func (l *Linux) Resolvable(ctx context.Context, account string) bool {
	return resolvable(ctx, l.exec, account)
}

func (l *Linux) Create(ctx context.Context, account string) error {
	if _, err := l.sudo.Sudo(ctx, "useradd", "--create-home", "--user-group", "--shell", "/bin/bash", account); err != nil {
		return fmt.Errorf("add user %s: %w", account, err)
	}
	if _, err := l.sudo.Sudo(ctx, "passwd", "--delete", account); err != nil {
		return fmt.Errorf("clear password for %s: %w", account, err)
	}
	return nil
}

func (l *Linux) Delete(ctx context.Context, account string) error {
	if _, err := l.sudo.Sudo(ctx, "userdel", "--remove", account); err != nil {
		return fmt.Errorf("delete user %s: %w", account, err)
	}
	return nil
}

func (l *Linux) FlushCache(ctx context.Context) error {
	if _, err := l.sudo.Sudo(ctx, "nscd", "--invalidate=passwd"); err != nil {
		return fmt.Errorf("flush nscd passwd cache: %w", err)
	}
	return nil
}

func (l *Linux) ReloadDaemon(ctx context.Context) error {
	if _, err := l.sudo.Sudo(ctx, "sss_cache", "-E"); err != nil {
		return fmt.Errorf("reload sssd caches: %w", err)
	}
	return nil
}

func (l *Linux) Home(account string) string {
	return "/home/" + account
}

// Group is the user private group created by --user-group.
func (l *Linux) Group(account string) string {
	return account
}
