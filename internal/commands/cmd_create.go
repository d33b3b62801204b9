package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/alcl/internal/sandbox"
)

type CreateCmd struct {
	flags *Flags

	// Command-specific flags
	tools        []string
	concurrency  int
	failFast     bool
	skipValidate bool
}

// NewCreateCmd creates a new create command
func NewCreateCmd(flags *Flags) *CreateCmd {
	return &CreateCmd{flags: flags}
}

// Register adds the create command to the application
func (cmd *CreateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "create",
		Aliases:   []string{"up"},
		Usage:     "Create, provision and validate sessions",
		UsageText: "alcl create [options] NAME...",
		Description: `Creates one OS account per NAME, waits until it resolves and reaches the
network, grants it sudo through a sudoers fragment, installs an isolated
Homebrew with the default tools, runs matching hooks and validates the result.

Re-running create for an existing session is safe: missing steps are
completed and the rest are confirmed.

Several names are processed in parallel (see --concurrency). Every session is
reported and the run is recorded in 'alcl history'.`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "tools",
				Aliases:     []string{"t"},
				Usage:       "extra Homebrew packages to install (comma separated)",
				Destination: &cmd.tools,
			},
			&cli.IntFlag{
				Name:        "concurrency",
				Aliases:     []string{"j"},
				Usage:       "sessions to set up in parallel (defaults to config)",
				Destination: &cmd.concurrency,
			},
			&cli.BoolFlag{
				Name:        "fail-fast",
				Usage:       "stop starting new sessions after the first failure",
				Destination: &cmd.failFast,
			},
			&cli.BoolFlag{
				Name:        "skip-validate",
				Usage:       "skip the post-provision validation commands",
				Destination: &cmd.skipValidate,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *CreateCmd) run(ctx context.Context, c *cli.Command) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		return fmt.Errorf("at least one session name is required")
	}

	opts := sandbox.UpOptions{Tools: cmd.tools, SkipValidate: cmd.skipValidate}
	step := func(ctx context.Context, name string) error {
		_, err := cmd.flags.Service.Up(ctx, name, opts)
		return err
	}

	result, run, err := cmd.flags.runSessions(ctx, "", "create", names, cmd.flags.batchOptions(cmd.concurrency, cmd.failFast), step)
	if err != nil {
		return err
	}

	return finish(ctx, "ready", result, run)
}
