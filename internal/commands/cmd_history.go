package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/alcl/internal/core/runs"
	"github.com/hay-kot/alcl/internal/printer"
)

type HistoryCmd struct {
	flags *Flags

	// Command-specific flags
	clear bool
}

// NewHistoryCmd creates a new history command
func NewHistoryCmd(flags *Flags) *HistoryCmd {
	return &HistoryCmd{flags: flags}
}

// Register adds the history command to the application
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "history",
		Usage:     "View or manage run history",
		UsageText: "alcl history [options] [RUN_ID]",
		Description: `Lists recent create, provision, validate and destroy runs with their
outcome counts. Pass a run ID to show the per-session results of that run.
Use --clear to remove all history entries.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "clear",
				Aliases:     []string{"c"},
				Usage:       "clear all run history",
				Destination: &cmd.clear,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *HistoryCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if cmd.clear {
		return cmd.runClear(ctx, p)
	}

	if id := c.Args().First(); id != "" {
		return cmd.runShow(ctx, id)
	}

	return cmd.runList(ctx, c)
}

func (cmd *HistoryCmd) runList(ctx context.Context, c *cli.Command) error {
	entries, err := cmd.flags.Runs.List(ctx)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	if len(entries) == 0 {
		printer.Ctx(ctx).Infof("No run history")
		return nil
	}

	out := c.Root().Writer
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tOPERATION\tSESSIONS\tSTATUS\tDURATION\tTIME")

	for _, r := range entries {
		status := printer.StatusOK()
		if r.Failed() {
			status = printer.StatusFailed(fmt.Sprintf("%d failed", r.Count(runs.StatusFailed)))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID,
			r.Operation,
			len(r.Outcomes),
			status,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.StartedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return w.Flush()
}

func (cmd *HistoryCmd) runShow(ctx context.Context, id string) error {
	r, err := cmd.flags.Runs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get run %s: %w", id, err)
	}

	p := printer.Ctx(ctx)
	p.Section(fmt.Sprintf("%s %s (concurrency %d)", r.ID, r.Operation, r.Concurrency))
	p.Outcomes(r.Outcomes)
	return nil
}

func (cmd *HistoryCmd) runClear(ctx context.Context, p *printer.Printer) error {
	if err := cmd.flags.Runs.Clear(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	p.Successf("Run history cleared")
	return nil
}
