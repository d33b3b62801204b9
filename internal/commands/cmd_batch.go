package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/alcl/internal/core/runs"
	"github.com/hay-kot/alcl/internal/core/validate"
	"github.com/hay-kot/alcl/internal/sandbox"
	"github.com/hay-kot/alcl/pkg/randid"
)

// Batch operations.
const (
	OperationCreate    = "create"
	OperationProvision = "provision"
	OperationDestroy   = "destroy"
)

var batchOperations = []string{OperationCreate, OperationProvision, OperationDestroy}

// BatchInput is the JSON input schema for batch session operations.
type BatchInput struct {
	Operation    string         `json:"operation"`
	Concurrency  int            `json:"concurrency,omitempty"`
	FailFast     bool           `json:"fail_fast,omitempty"`
	SkipValidate bool           `json:"skip_validate,omitempty"`
	Sessions     []BatchSession `json:"sessions"`
}

// Validate checks the batch input for errors using criterio.
func (b BatchInput) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if b.Operation != "" && !slices.Contains(batchOperations, b.Operation) {
		errs = errs.Append("operation", fmt.Errorf("unknown operation %q (use one of %v)", b.Operation, batchOperations))
	}

	if b.Concurrency < 0 {
		errs = errs.Append("concurrency", fmt.Errorf("must not be negative"))
	}

	if len(b.Sessions) == 0 {
		errs = errs.Append("sessions", fmt.Errorf("array is empty"))
		return errs.ToError()
	}

	seenNames := make(map[string]bool)

	for i, sess := range b.Sessions {
		field := fmt.Sprintf("sessions[%d]", i)

		if err := validate.SessionName(sess.Name); err != nil {
			errs = errs.Append(field+".name", err)
			continue
		}

		if seenNames[sess.Name] {
			errs = errs.Append(field+".name", fmt.Errorf("duplicate name %q", sess.Name))
			continue
		}
		seenNames[sess.Name] = true

		for j, tool := range sess.Tools {
			if tool == "" {
				errs = errs.Append(fmt.Sprintf("%s.tools[%d]", field, j), fmt.Errorf("tool name is empty"))
			}
		}
	}

	return errs.ToError()
}

// operation returns the requested operation, defaulting to create.
func (b BatchInput) operation() string {
	if b.Operation == "" {
		return OperationCreate
	}
	return b.Operation
}

// BatchSession defines a single session in a batch.
type BatchSession struct {
	Name  string   `json:"name"`
	Tools []string `json:"tools,omitempty"`
}

// BatchOutput is the JSON output schema.
type BatchOutput struct {
	BatchID   string         `json:"batch_id"`
	Operation string         `json:"operation"`
	LogFile   string         `json:"log_file"`
	Results   []runs.Outcome `json:"results"`
}

// BatchErrorOutput is the JSON output for fatal errors.
type BatchErrorOutput struct {
	Error string `json:"error"`
}

type BatchCmd struct {
	flags *Flags
	file  string
}

func NewBatchCmd(flags *Flags) *BatchCmd {
	return &BatchCmd{flags: flags}
}

func (cmd *BatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "batch",
		Usage: "Create or destroy many sessions from JSON input",
		UsageText: `alcl batch [options]

Read from stdin:
  echo '{"sessions":[{"name":"e2e-1"},{"name":"e2e-2"}]}' | alcl batch

Read from file:
  alcl batch -f sessions.json`,
		Description: `Runs one operation across many sessions with bounded concurrency.

Every session is attempted and reported independently. With fail_fast set,
sessions that have not started when the first failure is observed are marked
as skipped; sessions already running are allowed to finish. An authentication
failure always stops new sessions from starting.

Input JSON schema:
  {
    "operation": "create",
    "concurrency": 2,
    "fail_fast": false,
    "skip_validate": false,
    "sessions": [
      { "name": "session-name", "tools": ["jq"] }
    ]
  }

Fields:
  operation     - Optional. create (default), provision or destroy.
  concurrency   - Optional. Sessions processed in parallel (defaults to config).
  fail_fast     - Optional. Stop starting sessions after the first failure.
  skip_validate - Optional. Skip validation after create.
  name          - Required. Session name.
  tools         - Optional. Extra Homebrew packages for create and provision.

Output is JSON with a batch ID, log file path, and results for each session.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "path to JSON file (reads from stdin if not provided)",
				Destination: &cmd.file,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *BatchCmd) run(ctx context.Context, c *cli.Command) error {
	batchID := randid.Run(time.Now())

	logger, logFile, err := cmd.setupLogger(batchID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch %s: failed to setup logger: %v\n", batchID, err)
		return cmd.writeError(fmt.Errorf("setup logger: %w", err))
	}
	defer func() {
		if err := logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close log file: %v\n", err)
		}
	}()

	logger.Info().Str("batch_id", batchID).Msg("starting batch processing")

	input, err := cmd.readInput()
	if err != nil {
		logger.Error().Err(err).Msg("failed to read input")
		return cmd.writeError(fmt.Errorf("read input: %w", err))
	}

	if err := input.Validate(); err != nil {
		logger.Error().Err(err).Msg("input validation failed")
		return cmd.writeError(fmt.Errorf("invalid input: %w", err))
	}

	names := make([]string, 0, len(input.Sessions))
	tools := make(map[string][]string, len(input.Sessions))
	for _, sess := range input.Sessions {
		names = append(names, sess.Name)
		tools[sess.Name] = sess.Tools
	}

	operation := input.operation()
	step := cmd.step(operation, tools, input.SkipValidate)
	opts := cmd.flags.batchOptions(input.Concurrency, input.FailFast)

	logger.Info().
		Str("operation", operation).
		Int("sessions", len(names)).
		Int("concurrency", opts.Concurrency).
		Bool("fail_fast", opts.FailFast).
		Msg("processing sessions")

	_, run, err := cmd.flags.runSessions(logger.WithContext(ctx), batchID, operation, names, opts, step)
	if err != nil {
		logger.Error().Err(err).Msg("batch aborted")
		return cmd.writeError(err)
	}

	logger.Info().
		Int("total", len(run.Outcomes)).
		Int("succeeded", run.Count(runs.StatusSucceeded)).
		Int("failed", run.Count(runs.StatusFailed)).
		Int("skipped", run.Count(runs.StatusSkipped)).
		Msg("batch processing complete")

	output := BatchOutput{
		BatchID:   batchID,
		Operation: operation,
		LogFile:   logFile.Name(),
		Results:   run.Outcomes,
	}

	return cmd.writeOutput(output)
}

// step builds the per-session operation. Hook output goes to stderr so
// stdout carries only the JSON document.
func (cmd *BatchCmd) step(operation string, tools map[string][]string, skipValidate bool) sandbox.Step {
	svc := cmd.flags.Service.WithHookOutput(os.Stderr, os.Stderr)

	switch operation {
	case OperationDestroy:
		return svc.DestroySession
	case OperationProvision:
		return func(ctx context.Context, name string) error {
			return svc.ProvisionSession(ctx, name, tools[name])
		}
	default:
		return func(ctx context.Context, name string) error {
			_, err := svc.Up(ctx, name, sandbox.UpOptions{Tools: tools[name], SkipValidate: skipValidate})
			return err
		}
	}
}

func (cmd *BatchCmd) setupLogger(batchID string) (zerolog.Logger, *os.File, error) {
	logsDir := cmd.flags.Config.LogsDir()
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("create logs dir: %w", err)
	}

	logPath := filepath.Join(logsDir, fmt.Sprintf("batch-%s.log", batchID))
	file, err := os.Create(logPath)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("create log file: %w", err)
	}

	logger := zerolog.New(file).With().Timestamp().Str("batch_id", batchID).Logger()
	return logger, file, nil
}

func (cmd *BatchCmd) readInput() (BatchInput, error) {
	var reader io.Reader

	if cmd.file != "" {
		f, err := os.Open(cmd.file)
		if err != nil {
			return BatchInput{}, fmt.Errorf("open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = f
	} else {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return BatchInput{}, fmt.Errorf("no input provided (stdin is a terminal); use -f flag or pipe JSON input")
		}
		reader = os.Stdin
	}

	return decodeInput(reader)
}

func decodeInput(r io.Reader) (BatchInput, error) {
	var input BatchInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return BatchInput{}, fmt.Errorf("decode JSON: %w", err)
	}
	return input, nil
}

func (cmd *BatchCmd) writeOutput(output BatchOutput) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to write JSON output: %v\n", err)
		fmt.Fprintf(os.Stderr, "batch_id: %s\n", output.BatchID)
		fmt.Fprintf(os.Stderr, "log_file: %s\n", output.LogFile)
		return err
	}

	for _, o := range output.Results {
		if o.Status == runs.StatusFailed {
			return cli.Exit("", 1)
		}
	}
	return nil
}

func (cmd *BatchCmd) writeError(err error) error {
	output := BatchErrorOutput{Error: err.Error()}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(output); encErr != nil {
		fmt.Fprintf(os.Stderr, "error: %s (failed to write JSON: %v)\n", err, encErr)
	}
	return err
}
