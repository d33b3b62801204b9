package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type ShellCmd struct {
	flags *Flags
}

// NewShellCmd creates a new shell command
func NewShellCmd(flags *Flags) *ShellCmd {
	return &ShellCmd{flags: flags}
}

// Register adds the shell command to the application
func (cmd *ShellCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "shell",
		Usage:     "Open a login shell inside a session",
		UsageText: "alcl shell NAME [-- COMMAND...]",
		Description: `Starts an interactive login shell as the session account. When a command
follows '--' it is run through the login shell instead. Arguments are passed
as given; wrap pipelines in sh -c:

  alcl shell dev -- sh -c 'brew list | wc -l'`,
		Action: cmd.run,
	})

	return app
}

func (cmd *ShellCmd) run(ctx context.Context, c *cli.Command) error {
	args := c.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("session name is required")
	}

	if err := cmd.flags.Privilege.Validate(ctx, stdinIsTerminal()); err != nil {
		return err
	}

	argv := args[1:]
	if len(argv) > 0 && argv[0] == "--" {
		argv = argv[1:]
	}

	return cmd.flags.Service.Shell(ctx, args[0], argv)
}
