package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/alcl/internal/printer"
)

type PruneCmd struct {
	flags *Flags

	match       string
	yes         bool
	concurrency int
}

// NewPruneCmd creates a new prune command
func NewPruneCmd(flags *Flags) *PruneCmd {
	return &PruneCmd{flags: flags}
}

// Register adds the prune command to the application
func (cmd *PruneCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "prune",
		Usage:     "Destroy leftover sessions",
		UsageText: "alcl prune [--match GLOB] [--yes]",
		Description: `Finds every account managed for the current user and destroys it.

Use --match to limit pruning to session names matching a glob, for example
--match 'e2e-*' after an interrupted test run. Accounts that never finished
resolving are included.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "match",
				Aliases:     []string{"m"},
				Usage:       "only prune sessions whose name matches this glob",
				Destination: &cmd.match,
			},
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

func (cmd *PruneCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	orphans, err := cmd.flags.Service.Orphans(ctx, cmd.match)
	if err != nil {
		return fmt.Errorf("find sessions: %w", err)
	}

	if len(orphans) == 0 {
		p.Infof("No sessions to prune")
		return nil
	}

	names := make([]string, 0, len(orphans))
	for _, o := range orphans {
		names = append(names, o.Name)
		p.Infof("%s (%s)", o.Name, o.Account)
	}

	ok, err := confirm(fmt.Sprintf("Destroy %d session(s)?", len(names)), cmd.yes)
	if err != nil {
		return err
	}
	if !ok {
		p.Infof("Aborted")
		return nil
	}

	result, run, err := cmd.flags.runSessions(ctx, "", "prune", names, cmd.flags.batchOptions(cmd.concurrency, false), cmd.flags.Service.DestroySession)
	if err != nil {
		return err
	}

	if err := finish(ctx, "destroyed", result, run); err != nil {
		return err
	}

	p.Successf("Pruned %d session(s)", len(names))
	return nil
}
