package executil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealExecutor_Run_CapturesStreams(t *testing.T) {
	e := &RealExecutor{}

	out, err := e.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)

	assert.Equal(t, "out\n", string(out.Stdout))
	assert.Equal(t, "err\n", string(out.Stderr))
	assert.Equal(t, 0, out.ExitCode)
}

func TestRealExecutor_Run_NonZeroExit(t *testing.T) {
	e := &RealExecutor{}

	out, err := e.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, 3, out.ExitCode)
	assert.False(t, exitErr.TimedOut)
	assert.Contains(t, err.Error(), "exit code 3")
	assert.Contains(t, err.Error(), "boom")
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestRealExecutor_Run_Timeout(t *testing.T) {
	e := &RealExecutor{Timeout: 50 * time.Millisecond}

	_, err := e.Run(context.Background(), "sleep", "5")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.True(t, exitErr.TimedOut)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out")
}

func TestRealExecutor_Run_CallerDeadlineWins(t *testing.T) {
	e := &RealExecutor{Timeout: time.Nanosecond}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := e.Run(ctx, "sh", "-c", "echo ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Combined())
}

func TestRealExecutor_Run_MissingBinary(t *testing.T) {
	e := &RealExecutor{}

	_, err := e.Run(context.Background(), "definitely-not-a-real-binary-alcl")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, -1, exitErr.ExitCode)
}

func TestRecordingExecutor_Handler(t *testing.T) {
	calls := 0
	e := &RecordingExecutor{
		Handler: func(cmd string, args []string) (Output, error) {
			calls++
			if calls == 1 {
				return Output{ExitCode: 1}, errors.New("first")
			}
			return Output{Stdout: []byte("second")}, nil
		},
	}

	_, err := e.Run(context.Background(), "id", "-u", "x")
	require.Error(t, err)

	out, err := e.Run(context.Background(), "id", "-u", "x")
	require.NoError(t, err)
	assert.Equal(t, "second", string(out.Stdout))

	recorded := e.Recorded()
	require.Len(t, recorded, 2)
	assert.Equal(t, "id -u x", recorded[0].String())
}
