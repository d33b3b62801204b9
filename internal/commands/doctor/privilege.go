package doctor

import (
	"context"
	"errors"
	"os"

	"github.com/hay-kot/alcl/internal/core/session"
)

// Authenticator checks whether elevated commands can run.
type Authenticator interface {
	Validate(ctx context.Context, interactive bool) error
}

// PrivilegeCheck reports whether sudo is usable without a prompt and whether
// the sudoers fragment directory exists.
type PrivilegeCheck struct {
	auth       Authenticator
	sudoersDir string
}

// NewPrivilegeCheck creates a new privilege check.
func NewPrivilegeCheck(auth Authenticator, sudoersDir string) *PrivilegeCheck {
	return &PrivilegeCheck{auth: auth, sudoersDir: sudoersDir}
}

func (c *PrivilegeCheck) Name() string {
	return "Privileges"
}

func (c *PrivilegeCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	err := c.auth.Validate(ctx, false)
	switch {
	case err == nil:
		result.Items = append(result.Items, CheckItem{
			Label:  "sudo",
			Status: StatusPass,
			Detail: "credential cached",
		})
	case errors.Is(err, session.ErrAuthentication):
		result.Items = append(result.Items, CheckItem{
			Label:  "sudo",
			Status: StatusWarn,
			Detail: "password required; commands will prompt once per run",
		})
	default:
		result.Items = append(result.Items, CheckItem{
			Label:  "sudo",
			Status: StatusFail,
			Detail: err.Error(),
		})
	}

	info, err := os.Stat(c.sudoersDir)
	switch {
	case err != nil:
		result.Items = append(result.Items, CheckItem{
			Label:  c.sudoersDir,
			Status: StatusFail,
			Detail: err.Error(),
		})
	case !info.IsDir():
		result.Items = append(result.Items, CheckItem{
			Label:  c.sudoersDir,
			Status: StatusFail,
			Detail: "not a directory",
		})
	default:
		result.Items = append(result.Items, CheckItem{
			Label:  c.sudoersDir,
			Status: StatusPass,
		})
	}

	return result
}
