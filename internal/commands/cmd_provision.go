package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type ProvisionCmd struct {
	flags *Flags

	tools       []string
	concurrency int
	failFast    bool
}

// NewProvisionCmd creates a new provision command
func NewProvisionCmd(flags *Flags) *ProvisionCmd {
	return &ProvisionCmd{flags: flags}
}

// Register adds the provision command to the application
func (cmd *ProvisionCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "provision",
		Usage:     "Re-run provisioning for existing sessions",
		UsageText: "alcl provision [options] NAME...",
		Description: `Grants sudo, installs or updates the isolated Homebrew, installs tools and
runs hooks for sessions that already exist. Use it to add tools to a running
session or to finish a session whose provisioning failed.`,
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
				Usage:       "sessions to provision in parallel (defaults to config)",
				Destination: &cmd.concurrency,
			},
			&cli.BoolFlag{
				Name:        "fail-fast",
				Usage:       "stop starting new sessions after the first failure",
				Destination: &cmd.failFast,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ProvisionCmd) run(ctx context.Context, c *cli.Command) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		return fmt.Errorf("at least one session name is required")
	}

	step := func(ctx context.Context, name string) error {
		return cmd.flags.Service.ProvisionSession(ctx, name, cmd.tools)
	}

	result, run, err := cmd.flags.runSessions(ctx, "", "provision", names, cmd.flags.batchOptions(cmd.concurrency, cmd.failFast), step)
	if err != nil {
		return err
	}

	return finish(ctx, "provisioned", result, run)
}
