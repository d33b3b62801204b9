// Package config handles configuration loading and validation for alcl.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported host platforms.
const (
	PlatformDarwin = "darwin"
	PlatformLinux  = "linux"
)

// Config holds the application configuration.
type Config struct {
	HostUser    string          `yaml:"host_user"`
	Platform    string          `yaml:"platform"`
	Concurrency int             `yaml:"concurrency"`
	FailFast    bool            `yaml:"fail_fast"`
	Tools       []string        `yaml:"tools"`
	Commands    CommandsConfig  `yaml:"commands"`
	Readiness   ReadinessConfig `yaml:"readiness"`
	Toolchain   ToolchainConfig `yaml:"toolchain"`
	Privilege   PrivilegeConfig `yaml:"privilege"`
	Validation  ValidateConfig  `yaml:"validate"`
	Hooks       []Hook          `yaml:"hooks"`
	DataDir     string          `yaml:"-"` // set by caller, not from config file
}

// CommandsConfig bounds external command execution.
type CommandsConfig struct {
	// Timeout applies to every external command without a longer bound.
	Timeout time.Duration `yaml:"timeout"`
	// InstallTimeout bounds package manager update and install commands.
	InstallTimeout time.Duration `yaml:"install_timeout"`
}

// ReadinessConfig controls polling a new account until it is usable.
type ReadinessConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
	// ProbeHost is resolved as the session account to prove network access.
	ProbeHost string `yaml:"probe_host"`
	// ProbeTools are tried in order; any one succeeding is enough.
	ProbeTools []string `yaml:"probe_tools"`
}

// ToolchainConfig describes the isolated package manager.
type ToolchainConfig struct {
	Repository    string        `yaml:"repository"`
	Dir           string        `yaml:"dir"` // relative to the session home
	CloneAttempts int           `yaml:"clone_attempts"`
	CloneDelay    time.Duration `yaml:"clone_delay"`
	Profiles      []string      `yaml:"profiles"`
}

// PrivilegeConfig describes the sudoers fragments granted to sessions.
type PrivilegeConfig struct {
	SudoersDir string        `yaml:"sudoers_dir"`
	Commands   []string      `yaml:"commands"`
	Keepalive  time.Duration `yaml:"keepalive"`
}

// ValidateConfig lists the commands that certify a session usable.
type ValidateConfig struct {
	Commands []string `yaml:"commands"`
}

// Hook defines commands run inside matching sessions after provisioning.
type Hook struct {
	// Pattern is a glob matched against the session name.
	Pattern string `yaml:"pattern"`
	// Commands are templates run as the session account.
	Commands []string `yaml:"commands"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Platform:    runtime.GOOS,
		Concurrency: 2,
		Tools:       []string{},
		Commands: CommandsConfig{
			Timeout:        2 * time.Minute,
			InstallTimeout: 30 * time.Minute,
		},
		Readiness: ReadinessConfig{
			MaxAttempts: 15,
			Interval:    2 * time.Second,
			ProbeHost:   "github.com",
			ProbeTools:  []string{"host", "nslookup", "ping"},
		},
		Toolchain: ToolchainConfig{
			Repository:    "https://github.com/Homebrew/brew",
			Dir:           "homebrew",
			CloneAttempts: 3,
			CloneDelay:    5 * time.Second,
			Profiles:      []string{".zprofile", ".bash_profile"},
		},
		Privilege: PrivilegeConfig{
			SudoersDir: "/etc/sudoers.d",
			Commands:   []string{"ALL"},
			Keepalive:  45 * time.Second,
		},
		Validation: ValidateConfig{
			Commands: []string{
				"git --version",
				"bun --version",
				"python3 --version",
			},
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() error {
	defaults := DefaultConfig()

	if c.HostUser == "" {
		u, err := user.Current()
		if err != nil {
			return fmt.Errorf("determine host user: %w", err)
		}
		c.HostUser = u.Username
	}
	if c.Platform == "" {
		c.Platform = defaults.Platform
	}
	if c.Commands.Timeout == 0 {
		c.Commands.Timeout = defaults.Commands.Timeout
	}
	if c.Commands.InstallTimeout == 0 {
		c.Commands.InstallTimeout = defaults.Commands.InstallTimeout
	}
	if c.Readiness.ProbeHost == "" {
		c.Readiness.ProbeHost = defaults.Readiness.ProbeHost
	}
	if len(c.Readiness.ProbeTools) == 0 {
		c.Readiness.ProbeTools = defaults.Readiness.ProbeTools
	}
	if c.Toolchain.Dir == "" {
		c.Toolchain.Dir = defaults.Toolchain.Dir
	}
	if len(c.Toolchain.Profiles) == 0 {
		c.Toolchain.Profiles = defaults.Toolchain.Profiles
	}
	if c.Privilege.SudoersDir == "" {
		c.Privilege.SudoersDir = defaults.Privilege.SudoersDir
	}
	if len(c.Privilege.Commands) == 0 {
		c.Privilege.Commands = defaults.Privilege.Commands
	}
	if c.Privilege.Keepalive == 0 {
		c.Privilege.Keepalive = defaults.Privilege.Keepalive
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.HostUser == "" {
		return fmt.Errorf("host_user cannot be empty")
	}

	switch c.Platform {
	case PlatformDarwin, PlatformLinux:
	default:
		return fmt.Errorf("platform %q is not supported (use %s or %s)", c.Platform, PlatformDarwin, PlatformLinux)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	if c.Readiness.MaxAttempts < 1 {
		return fmt.Errorf("readiness.max_attempts must be at least 1")
	}

	if c.Readiness.Interval < 0 {
		return fmt.Errorf("readiness.interval cannot be negative")
	}

	if c.Toolchain.Repository == "" {
		return fmt.Errorf("toolchain.repository cannot be empty")
	}

	if filepath.IsAbs(c.Toolchain.Dir) {
		return fmt.Errorf("toolchain.dir must be relative to the session home")
	}

	if c.Toolchain.CloneAttempts < 1 {
		return fmt.Errorf("toolchain.clone_attempts must be at least 1")
	}

	if !filepath.IsAbs(c.Privilege.SudoersDir) {
		return fmt.Errorf("privilege.sudoers_dir must be an absolute path")
	}

	if c.Privilege.Keepalive <= 0 {
		return fmt.Errorf("privilege.keepalive must be positive")
	}

	return nil
}

// LogsDir returns the path where batch log files are written.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// RunsFile returns the path to the batch run history JSON file.
func (c *Config) RunsFile() string {
	return filepath.Join(c.DataDir, "runs.json")
}
