package commands

import (
	"os"
	"path/filepath"

	"github.com/hay-kot/alcl/internal/core/config"
	"github.com/hay-kot/alcl/internal/core/privilege"
	"github.com/hay-kot/alcl/internal/core/runs"
	"github.com/hay-kot/alcl/internal/sandbox"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// Service orchestrates session lifecycles
	Service *sandbox.Service

	// Privilege validates and refreshes the sudo credential
	Privilege *privilege.Runner

	// Runs stores the outcome of every multi-session command
	Runs runs.Store
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "alcl", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "alcl")
}
