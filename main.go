package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/alcl/internal/commands"
	"github.com/hay-kot/alcl/internal/core/config"
	"github.com/hay-kot/alcl/internal/core/identity"
	"github.com/hay-kot/alcl/internal/core/privilege"
	"github.com/hay-kot/alcl/internal/core/toolchain"
	"github.com/hay-kot/alcl/internal/printer"
	"github.com/hay-kot/alcl/internal/sandbox"
	"github.com/hay-kot/alcl/internal/store/jsonfile"
	"github.com/hay-kot/alcl/pkg/executil"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	if err := setupLogger("info", ""); err != nil {
		panic(err)
	}

	var (
		p     = printer.New(os.Stderr)
		ctx   = printer.NewContext(context.Background(), p)
		flags = &commands.Flags{}
	)

	app := &cli.Command{
		Name:      "alcl",
		Usage:     "Manage disposable OS-account sandboxes",
		UsageText: "alcl [global options] command [command options]",
		Description: `alcl creates throwaway user accounts on this machine, each with its own home
directory, passwordless sudo and an isolated Homebrew with a standard toolset.

Run 'alcl create NAME' to set up a session, 'alcl shell NAME' to work in it
and 'alcl rm NAME' to throw it away. Accounts are named alcl_<you>_<NAME>.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("ALCL_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Sources:     cli.EnvVars("ALCL_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("ALCL_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("ALCL_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := setupLogger(flags.LogLevel, flags.LogFile); err != nil {
				return ctx, err
			}

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			var (
				exec   = &executil.RealExecutor{Timeout: cfg.Commands.Timeout}
				runner = privilege.NewRunner(log.Logger, exec)
				grants = privilege.NewGrants(log.Logger, exec, runner, cfg.Privilege.SudoersDir, cfg.Privilege.Commands)
				tools  = toolchain.New(log.Logger, runner, cfg.Toolchain, cfg.Commands.InstallTimeout)
			)

			dir, err := identity.New(cfg.Platform, exec, runner)
			if err != nil {
				return ctx, err
			}

			flags.Privilege = runner
			flags.Runs = jsonfile.NewRunStore(cfg.RunsFile(), jsonfile.DefaultMaxRuns)
			flags.Service = sandbox.New(cfg, log.Logger, dir, runner, grants, tools, os.Stdout, os.Stderr)

			return log.Logger.WithContext(ctx), nil
		},
	}

	app = commands.NewCreateCmd(flags).Register(app)
	app = commands.NewProvisionCmd(flags).Register(app)
	app = commands.NewValidateCmd(flags).Register(app)
	app = commands.NewRmCmd(flags).Register(app)
	app = commands.NewLsCmd(flags).Register(app)
	app = commands.NewShellCmd(flags).Register(app)
	app = commands.NewPruneCmd(flags).Register(app)
	app = commands.NewBatchCmd(flags).Register(app)
	app = commands.NewHistoryCmd(flags).Register(app)
	app = commands.NewDoctorCmd(flags).Register(app)
	app = commands.NewConfigCmd(flags).Register(app)

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Println()
		printer.Ctx(ctx).FatalError(err)
		exitCode = 1
	}

	os.Exit(exitCode)
}

func setupLogger(level string, logFile string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		// Create log directory if it doesn't exist
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		// Write to both console and file
		output = io.MultiWriter(
			zerolog.ConsoleWriter{Out: os.Stderr},
			file,
		)
	}

	log.Logger = log.Output(output).Level(parsedLevel)

	return nil
}
