package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/alcl/internal/core/runs"
	"github.com/hay-kot/alcl/internal/core/session"
)

func TestRunBatch_ConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32

	step := func(ctx context.Context, name string) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	result := RunBatch(context.Background(), []string{"a", "b", "c", "d"}, BatchOptions{Concurrency: 2}, step)

	require.NoError(t, result.Err())
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, result.Outcomes, 4)
	for _, name := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, runs.StatusSucceeded, result.Outcomes[name].Status)
	}
}

func TestRunBatch_IsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	step := func(ctx context.Context, name string) error {
		if name == "b" {
			return boom
		}
		return nil
	}

	result := RunBatch(context.Background(), []string{"a", "b", "c", "d"}, BatchOptions{Concurrency: 2}, step)

	assert.ErrorIs(t, result.Err(), boom)
	assert.Equal(t, runs.StatusFailed, result.Outcomes["b"].Status)
	for _, name := range []string{"a", "c", "d"} {
		assert.Equal(t, runs.StatusSucceeded, result.Outcomes[name].Status, name)
	}

	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Session)
}

func TestRunBatch_FailFastSkipsPending(t *testing.T) {
	var started []string
	var mu sync.Mutex
	step := func(ctx context.Context, name string) error {
		mu.Lock()
		started = append(started, name)
		mu.Unlock()
		if name == "b" {
			return errors.New("boom")
		}
		return nil
	}

	result := RunBatch(context.Background(), []string{"a", "b", "c", "d"}, BatchOptions{Concurrency: 1, FailFast: true}, step)

	assert.Equal(t, []string{"a", "b"}, started)
	assert.Equal(t, runs.StatusSucceeded, result.Outcomes["a"].Status)
	assert.Equal(t, runs.StatusFailed, result.Outcomes["b"].Status)
	assert.Equal(t, runs.StatusSkipped, result.Outcomes["c"].Status)
	assert.Equal(t, runs.StatusSkipped, result.Outcomes["d"].Status)
}

func TestRunBatch_FailFastLetsInFlightFinish(t *testing.T) {
	release := make(chan struct{})
	badCalled := make(chan struct{})
	go func() {
		<-badCalled
		// give the failing worker time to record its failure
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	step := func(ctx context.Context, name string) error {
		switch name {
		case "slow":
			<-release
			return nil
		case "bad":
			close(badCalled)
			return errors.New("boom")
		}
		return nil
	}

	result := RunBatch(context.Background(), []string{"slow", "bad", "later"}, BatchOptions{Concurrency: 2, FailFast: true}, step)

	assert.Equal(t, runs.StatusSucceeded, result.Outcomes["slow"].Status)
	assert.Equal(t, runs.StatusFailed, result.Outcomes["bad"].Status)
	assert.Equal(t, runs.StatusSkipped, result.Outcomes["later"].Status)
}

func TestRunBatch_AuthenticationStopsAdmission(t *testing.T) {
	calls := 0
	step := func(ctx context.Context, name string) error {
		calls++
		return fmt.Errorf("%w: sudo: a password is required", session.ErrAuthentication)
	}

	result := RunBatch(context.Background(), []string{"a", "b", "c"}, BatchOptions{Concurrency: 1}, step)

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, result.Err(), session.ErrAuthentication)
	assert.Equal(t, runs.StatusSkipped, result.Outcomes["c"].Status)
}

func TestRunBatch_DeduplicatesNames(t *testing.T) {
	var calls atomic.Int32
	step := func(ctx context.Context, name string) error {
		calls.Add(1)
		return nil
	}

	result := RunBatch(context.Background(), []string{"a", "b", "a", "b", "c"}, BatchOptions{Concurrency: 3}, step)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []string{"a", "b", "c"}, result.Names)
}

func TestRunBatch_CancelledContextSkipsAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := RunBatch(ctx, []string{"a", "b"}, BatchOptions{}, func(context.Context, string) error {
		t.Error("step must not run")
		return nil
	})

	assert.Equal(t, runs.StatusSkipped, result.Outcomes["a"].Status)
	assert.Equal(t, runs.StatusSkipped, result.Outcomes["b"].Status)
	assert.NoError(t, result.Err())
}

func TestRunBatch_Empty(t *testing.T) {
	result := RunBatch(context.Background(), nil, BatchOptions{Concurrency: 2}, func(context.Context, string) error {
		return nil
	})
	assert.Empty(t, result.Outcomes)
	assert.NoError(t, result.Err())
}

func TestBatchResult_Record(t *testing.T) {
	result := RunBatch(context.Background(), []string{"a", "b"}, BatchOptions{Concurrency: 2}, func(_ context.Context, name string) error {
		if name == "b" {
			return errors.New("boom")
		}
		return nil
	})

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	run := result.Record("r1", "create", BatchOptions{Concurrency: 2}, start, start.Add(time.Minute), func(name string) string {
		return session.AccountName("me", name)
	})

	assert.Equal(t, "r1", run.ID)
	require.Len(t, run.Outcomes, 2)
	assert.Equal(t, "alcl_me_a", run.Outcomes[0].Account)
	assert.Equal(t, "boom", run.Outcomes[1].Error)
	assert.True(t, run.Failed())
}

func TestRunBatch_ServiceLifecycle(t *testing.T) {
	h := newHarness()

	names := []string{"w-1", "w-2", "w-3", "w-4"}
	result := RunBatch(context.Background(), names, BatchOptions{Concurrency: 2}, func(ctx context.Context, name string) error {
		_, err := h.svc.Up(ctx, name, UpOptions{})
		return err
	})
	require.NoError(t, result.Err())

	infos, err := h.svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 4)

	result = RunBatch(context.Background(), names, BatchOptions{Concurrency: 2}, h.svc.DestroySession)
	require.NoError(t, result.Err())

	infos, err = h.svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}
