package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/alcl/internal/printer"
	"github.com/hay-kot/alcl/internal/sandbox"
)

type LsCmd struct {
	flags *Flags

	format string
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags) *LsCmd {
	return &LsCmd{flags: flags}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "ls",
		Usage:       "List sessions",
		UsageText:   "alcl ls [--format json]",
		Description: "Displays a table of the accounts managed for the current user with their home and resolution status.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	infos, err := cmd.flags.Service.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	slices.SortFunc(infos, func(a, b sandbox.Info) int {
		return strings.Compare(a.Name, b.Name)
	})

	out := c.Root().Writer

	if cmd.format == "json" {
		if infos == nil {
			infos = []sandbox.Info{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	if len(infos) == 0 {
		p.Infof("No sessions found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tACCOUNT\tHOME\tRESOLVES")

	unresolved := 0
	for _, info := range infos {
		status := printer.StatusOK()
		if !info.Resolvable {
			unresolved++
			status = printer.StatusWarn("no")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Name, info.Account, info.Home, status)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if unresolved > 0 {
		_, _ = fmt.Fprintln(out)
		p.Warnf("%d session(s) do not resolve; run 'alcl create' to finish them or 'alcl prune' to remove them", unresolved)
	}

	return nil
}
