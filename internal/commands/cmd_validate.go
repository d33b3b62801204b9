package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/alcl/internal/core/session"
	"github.com/hay-kot/alcl/internal/printer"
)

type ValidateCmd struct {
	flags *Flags
}

// NewValidateCmd creates a new validate command
func NewValidateCmd(flags *Flags) *ValidateCmd {
	return &ValidateCmd{flags: flags}
}

// Register adds the validate command to the application
func (cmd *ValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "validate",
		Usage:     "Run validation commands inside sessions",
		UsageText: "alcl validate NAME...",
		Description: `Runs each command from validate.commands through a login shell of the
session account and prints a pass/fail report per session.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *ValidateCmd) run(ctx context.Context, c *cli.Command) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		return fmt.Errorf("at least one session name is required")
	}

	var (
		mu      sync.Mutex
		reports = make(map[string]session.ValidationReport, len(names))
	)

	step := func(ctx context.Context, name string) error {
		report, err := cmd.flags.Service.ValidateSession(ctx, name)
		if len(report.Checks) > 0 {
			mu.Lock()
			reports[name] = report
			mu.Unlock()
		}
		return err
	}

	result, run, err := cmd.flags.runSessions(ctx, "", "validate", names, cmd.flags.batchOptions(0, false), step)
	if err != nil {
		return err
	}

	p := printer.Ctx(ctx)
	for _, name := range result.Names {
		if report, ok := reports[name]; ok {
			p.Report(report)
			p.Printf("")
		}
	}

	return finish(ctx, "passed validation", result, run)
}
