package config

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"

	"github.com/hay-kot/alcl/pkg/tmpl"
)

// HookTemplateData defines available fields for hook command templates.
type HookTemplateData struct {
	Name    string
	Account string
	Home    string
}

// platformTools are the executables each platform's directory client needs.
var platformTools = map[string][]string{
	PlatformDarwin: {"sudo", "dscl", "id", "sysadminctl", "dscacheutil", "visudo"},
	PlatformLinux:  {"sudo", "getent", "id", "useradd", "userdel", "visudo"},
}

// RequiredTools returns the host executables the configured platform uses.
func (c *Config) RequiredTools() []string {
	return platformTools[c.Platform]
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), this checks the config file, host executables, hook
// glob patterns and hook templates. Problems are returned as
// criterio.FieldErrors.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			errs = errs.Append("config", fmt.Errorf("%s is a directory, not a file", configPath))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("config", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
		errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
	}

	for _, tool := range c.RequiredTools() {
		if _, err := exec.LookPath(tool); err != nil {
			errs = errs.Append("platform", fmt.Errorf("%s requires %q on PATH", c.Platform, tool))
		}
	}

	for i, hook := range c.Hooks {
		field := fmt.Sprintf("hooks[%d]", i)
		if !doublestar.ValidatePattern(hook.Pattern) {
			errs = errs.Append(field+".pattern", fmt.Errorf("invalid glob %q", hook.Pattern))
		}
		for j, cmd := range hook.Commands {
			if err := validateTemplate(cmd, HookTemplateData{}); err != nil {
				errs = errs.Append(fmt.Sprintf("%s.commands[%d]", field, j), fmt.Errorf("template error: %w", err))
			}
		}
	}

	for i, cmd := range c.Validation.Commands {
		if cmd == "" {
			errs = errs.Append(fmt.Sprintf("validate.commands[%d]", i), fmt.Errorf("command is empty"))
		}
	}

	return errs.ToError()
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []string {
	var warnings []string

	if len(c.Validation.Commands) == 0 {
		warnings = append(warnings, "validate.commands is empty; every session will pass validation")
	}
	if c.Concurrency > 4 {
		warnings = append(warnings, fmt.Sprintf("concurrency %d may trigger overlapping system permission prompts", c.Concurrency))
	}
	for i, hook := range c.Hooks {
		if len(hook.Commands) == 0 {
			warnings = append(warnings, fmt.Sprintf("hooks[%d] has no commands", i))
		}
	}
	for _, cmd := range c.Privilege.Commands {
		if cmd == "ALL" {
			warnings = append(warnings, "privilege.commands grants ALL; sessions can run any command as root")
			break
		}
	}

	return warnings
}

// validateTemplate checks if a template string is valid.
func validateTemplate(tmplStr string, data any) error {
	t, err := tmpl.Parse(tmplStr)
	if err != nil {
		return err
	}

	// Dry-run execute to catch missing key errors
	return t.Execute(io.Discard, data)
}
