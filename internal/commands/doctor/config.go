package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/alcl/internal/core/config"
	"github.com/hay-kot/alcl/internal/core/session"
)

// shortNameRoom is the session name length below which a host user is
// reported as leaving little room.
const shortNameRoom = 8

// ConfigCheck reports on the config file, the account namespace of the host
// user and the host tools the platform client shells out to.
type ConfigCheck struct {
	config     *config.Config
	configPath string
	lookPath   func(string) (string, error)
}

// NewConfigCheck creates a new configuration check.
func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{
		config:     cfg,
		configPath: configPath,
		lookPath:   exec.LookPath,
	}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config loaded",
			Status: StatusFail,
			Detail: "configuration not loaded",
		})
		return result
	}

	result.Items = append(result.Items, c.fileItem())
	result.Items = append(result.Items, c.namespaceItem())
	result.Items = append(result.Items, c.toolItems()...)

	var fieldErrs criterio.FieldErrors
	if err := c.config.ValidateDeep(c.configPath); errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			// Missing tools are already itemized above.
			if fe.Field == "platform" {
				continue
			}
			result.Items = append(result.Items, CheckItem{
				Label:  fe.Field,
				Status: StatusFail,
				Detail: fe.Err.Error(),
			})
		}
	} else if err != nil {
		result.Items = append(result.Items, CheckItem{Label: "validation", Status: StatusFail, Detail: err.Error()})
	}

	if len(c.config.Hooks) > 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "Hooks",
			Status: StatusPass,
			Detail: fmt.Sprintf("%d configured", len(c.config.Hooks)),
		})
	}

	for _, w := range c.config.Warnings() {
		result.Items = append(result.Items, CheckItem{Label: "warning", Status: StatusWarn, Detail: w})
	}

	return result
}

func (c *ConfigCheck) fileItem() CheckItem {
	item := CheckItem{Label: "Config file", Status: StatusPass, Detail: c.configPath}
	if c.configPath == "" {
		item.Detail = "defaults"
		return item
	}
	if _, err := os.Stat(c.configPath); os.IsNotExist(err) {
		item.Detail = c.configPath + " (not found, using defaults)"
	}
	return item
}

// namespaceItem reports the account prefix of the host user and how long a
// session name may be under it.
func (c *ConfigCheck) namespaceItem() CheckItem {
	prefix := session.HostPrefix(c.config.HostUser)
	room := session.MaxAccountLength - len(prefix)
	item := CheckItem{
		Label:  "Account prefix",
		Status: StatusPass,
		Detail: fmt.Sprintf("%s (session names up to %d characters)", prefix, room),
	}

	switch {
	case c.config.HostUser == "":
		item.Status = StatusFail
		item.Detail = "host_user is empty"
	case room < 1:
		item.Status = StatusFail
		item.Detail = fmt.Sprintf("%s leaves no room for a session name; set a shorter host_user", prefix)
	case room < shortNameRoom:
		item.Status = StatusWarn
	}

	if strings.Contains(c.config.HostUser, ".") && item.Status == StatusPass {
		item.Detail += "; sudoers fragments use '_' in place of '.'"
	}

	return item
}

func (c *ConfigCheck) toolItems() []CheckItem {
	tools := c.config.RequiredTools()
	if len(tools) == 0 {
		return []CheckItem{{
			Label:  "Platform",
			Status: StatusFail,
			Detail: fmt.Sprintf("%q is not supported (use %s or %s)", c.config.Platform, config.PlatformDarwin, config.PlatformLinux),
		}}
	}

	items := make([]CheckItem, 0, len(tools))
	for _, tool := range tools {
		p, err := c.lookPath(tool)
		if err != nil {
			items = append(items, CheckItem{
				Label:  tool,
				Status: StatusFail,
				Detail: fmt.Sprintf("not found on PATH (required on %s)", c.config.Platform),
			})
			continue
		}
		items = append(items, CheckItem{Label: tool, Status: StatusPass, Detail: p})
	}
	return items
}
