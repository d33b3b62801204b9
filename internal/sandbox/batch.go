package sandbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hay-kot/alcl/internal/core/runs"
	"github.com/hay-kot/alcl/internal/core/session"
)

// DefaultConcurrency bounds in-flight lifecycles when none is given.
const DefaultConcurrency = 2

// Step runs one session's lifecycle within a batch.
type Step func(ctx context.Context, name string) error

// BatchOptions configures RunBatch.
type BatchOptions struct {
	// Concurrency is the maximum number of sessions in flight.
	Concurrency int
	// FailFast stops admitting new sessions after the first failure.
	// Sessions already running are allowed to finish.
	FailFast bool
}

// Outcome is the result of one session in a batch.
type Outcome struct {
	Session  string
	Status   runs.Status
	Err      error
	Duration time.Duration
}

// BatchResult maps each session to its outcome.
type BatchResult struct {
	// Names lists the sessions in submission order.
	Names    []string
	Outcomes map[string]Outcome

	first error
}

// Err returns the first failure observed, or nil when every session
// succeeded. Skipped sessions are not failures on their own.
func (r *BatchResult) Err() error {
	return r.first
}

// Failed returns the failed outcomes in submission order.
func (r *BatchResult) Failed() []Outcome {
	var failed []Outcome
	for _, name := range r.Names {
		if o := r.Outcomes[name]; o.Status == runs.StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Record converts the result into a history entry.
func (r *BatchResult) Record(id, operation string, opts BatchOptions, started, finished time.Time, accountOf func(string) string) runs.Run {
	run := runs.Run{
		ID:          id,
		Operation:   operation,
		Concurrency: opts.Concurrency,
		FailFast:    opts.FailFast,
		StartedAt:   started,
		FinishedAt:  finished,
	}
	for _, name := range r.Names {
		o := r.Outcomes[name]
		entry := runs.Outcome{
			Session:  name,
			Status:   o.Status,
			Duration: o.Duration,
		}
		if accountOf != nil {
			entry.Account = accountOf(name)
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		run.Outcomes = append(run.Outcomes, entry)
	}
	return run
}

// RunBatch runs step for every name with at most opts.Concurrency steps in
// flight. Names are de-duplicated in order. A failing session never stops
// the others unless opts.FailFast is set; an authentication failure always
// stops admission since every later session would fail the same way.
// Cancelling ctx also stops admission. Sessions that were never started
// are reported as skipped.
func RunBatch(ctx context.Context, names []string, opts BatchOptions, step Step) *BatchResult {
	log := zerolog.Ctx(ctx)

	workers := opts.Concurrency
	if workers < 1 {
		workers = DefaultConcurrency
	}

	result := &BatchResult{Outcomes: make(map[string]Outcome, len(names))}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		result.Names = append(result.Names, name)
	}

	var (
		mu      sync.Mutex
		stopped atomic.Bool
		g       errgroup.Group
	)
	g.SetLimit(workers)

	record := func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		result.Outcomes[o.Session] = o
		if o.Status == runs.StatusFailed && result.first == nil {
			result.first = o.Err
		}
	}

	// Go blocks until a slot is free, so the stop flag is read at admission
	// time rather than at submission time.
	for _, name := range result.Names {
		g.Go(func() error {
			if stopped.Load() || ctx.Err() != nil {
				record(Outcome{Session: name, Status: runs.StatusSkipped})
				return nil
			}

			log.Debug().Str("session", name).Msg("batch step started")
			start := time.Now()
			err := step(ctx, name)
			elapsed := time.Since(start)

			if err != nil {
				if opts.FailFast || errors.Is(err, session.ErrAuthentication) {
					stopped.Store(true)
				}
				log.Error().Err(err).Str("session", name).Dur("duration", elapsed).Msg("batch step failed")
				record(Outcome{Session: name, Status: runs.StatusFailed, Err: err, Duration: elapsed})
				return nil
			}

			log.Debug().Str("session", name).Dur("duration", elapsed).Msg("batch step finished")
			record(Outcome{Session: name, Status: runs.StatusSucceeded, Duration: elapsed})
			return nil
		})
	}

	_ = g.Wait()
	return result
}
