package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/alcl/internal/printer"
)

type RmCmd struct {
	flags *Flags

	yes         bool
	concurrency int
}

// NewRmCmd creates a new rm command
func NewRmCmd(flags *Flags) *RmCmd {
	return &RmCmd{flags: flags}
}

// Register adds the rm command to the application
func (cmd *RmCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "rm",
		Aliases:   []string{"delete", "remove", "down"},
		Usage:     "Destroy sessions",
		UsageText: "alcl rm [--yes] NAME...",
		Description: `Revokes the sudoers fragment of each session, then deletes the account and
its home directory. Sessions that no longer exist are skipped.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "do not ask for confirmation",
				Destination: &cmd.yes,
			},
			&cli.IntFlag{
				Name:        "concurrency",
				Aliases:     []string{"j"},
				Usage:       "sessions to destroy in parallel (defaults to config)",
				Destination: &cmd.concurrency,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RmCmd) run(ctx context.Context, c *cli.Command) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		return fmt.Errorf("at least one session name is required")
	}

	ok, err := confirm(fmt.Sprintf("Delete %s and everything in its home directory?", strings.Join(names, ", ")), cmd.yes)
	if err != nil {
		return err
	}
	if !ok {
		printer.Ctx(ctx).Infof("Aborted")
		return nil
	}

	result, run, err := cmd.flags.runSessions(ctx, "", "destroy", names, cmd.flags.batchOptions(cmd.concurrency, false), cmd.flags.Service.DestroySession)
	if err != nil {
		return err
	}

	return finish(ctx, "destroyed", result, run)
}
