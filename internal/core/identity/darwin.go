package identity

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/hay-kot/alcl/pkg/executil"
)

// Darwin implements Directory with Open Directory tooling.
type Darwin struct {
	exec executil.Executor
	sudo Sudoer
}

// NewDarwin creates a Darwin directory client.
func NewDarwin(exec executil.Executor, sudo Sudoer) *Darwin {
	return &Darwin{exec: exec, sudo: sudo}
}

func (d *Darwin) List(ctx context.Context) ([]string, error) {
	out, err := d.exec.Run(ctx, "dscl", ".", "-list", "/Users")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return parseLines(out.Stdout)
}

func (d *Darwin) Exists(ctx context.Context, account string) (bool, error) {
	if _, err := d.exec.Run(ctx, "dscl", ".", "-read", "/Users/"+account); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return true, nil
}

func (d *Darwin) Resolvable(ctx context.Context, account string) bool {
	return resolvable(ctx, d.exec, account)
}

func (d *Darwin) Create(ctx context.Context, account string) error {
	if _, err := d.sudo.Sudo(ctx, "sysadminctl", "-addUser", account, "-password", ""); err != nil {
		return fmt.Errorf("add user %s: %w", account, err)
	}
	return nil
}

func (d *Darwin) Delete(ctx context.Context, account string) error {
	if _, err := d.sudo.Sudo(ctx, "sysadminctl", "-deleteUser", account); err != nil {
		return fmt.Errorf("delete user %s: %w", account, err)
	}
	return nil
}

func (d *Darwin) FlushCache(ctx context.Context) error {
	if _, err := d.sudo.Sudo(ctx, "dscacheutil", "-flushcache"); err != nil {
		return fmt.Errorf("flush directory cache: %w", err)
	}
	return nil
}

func (d *Darwin) ReloadDaemon(ctx context.Context) error {
	if _, err := d.sudo.Sudo(ctx, "killall", "-HUP", "opendirectoryd"); err != nil {
		return fmt.Errorf("reload opendirectoryd: %w", err)
	}
	return nil
}

func (d *Darwin) Home(account string) string {
	return "/Users/" + account
}

func (d *Darwin) Group(string) string {
	return "staff"
}

func parseLines(b []byte) ([]string, error) {
	var res []string
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			res = append(res, line)
		}
	}
	return res, scanner.Err()
}
