package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/hay-kot/alcl/internal/core/runs"
	"github.com/hay-kot/alcl/internal/core/session"
	"github.com/hay-kot/alcl/internal/printer"
	"github.com/hay-kot/alcl/internal/sandbox"
	"github.com/hay-kot/alcl/internal/styles"
	"github.com/hay-kot/alcl/pkg/randid"
)

// runSessions validates the sudo credential once, keeps it fresh while step
// runs across names and records the run in history.
func (f *Flags) runSessions(
	ctx context.Context,
	id, operation string,
	names []string,
	opts sandbox.BatchOptions,
	step sandbox.Step,
) (*sandbox.BatchResult, runs.Run, error) {
	if id == "" {
		id = randid.Run(time.Now())
	}

	if err := f.Privilege.Validate(ctx, stdinIsTerminal()); err != nil {
		return nil, runs.Run{}, err
	}

	hb := f.Privilege.StartHeartbeat(ctx, f.Config.Privilege.Keepalive)
	defer hb.Stop()

	started := time.Now()
	result := sandbox.RunBatch(ctx, names, opts, step)
	run := result.Record(id, operation, opts, started, time.Now(), f.accountOf)

	if err := f.Runs.Save(ctx, run); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("run", id).Msg("failed to record run")
	}

	return result, run, nil
}

func (f *Flags) accountOf(name string) string {
	account, err := f.Service.Account(name)
	if err != nil {
		return ""
	}
	return account
}

// batchOptions resolves command line overrides against the configured defaults.
func (f *Flags) batchOptions(concurrency int, failFast bool) sandbox.BatchOptions {
	opts := sandbox.BatchOptions{
		Concurrency: f.Config.Concurrency,
		FailFast:    f.Config.FailFast || failFast,
	}
	if concurrency > 0 {
		opts.Concurrency = concurrency
	}
	return opts
}

// finish prints the outcome of a run and converts it into the command error.
// A single session surfaces its own error so the captured command output is
// shown in full.
func finish(ctx context.Context, verb string, result *sandbox.BatchResult, run runs.Run) error {
	p := printer.Ctx(ctx)
	err := result.Err()

	if len(result.Names) == 1 {
		if err == nil {
			p.Successf("%s %s", result.Names[0], verb)
		}
		return err
	}

	p.Outcomes(run.Outcomes)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrAuthentication):
		return err
	default:
		return fmt.Errorf("%d of %d sessions failed (run %s)", run.Count(runs.StatusFailed), len(run.Outcomes), run.ID)
	}
}

// confirm asks before a destructive action. Without a terminal the caller
// must pass --yes.
func confirm(title string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}

	if !stdinIsTerminal() {
		return false, errors.New("stdin is not a terminal; pass --yes to confirm")
	}

	ok := false
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).WithTheme(styles.FormTheme()).Run()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
