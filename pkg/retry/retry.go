// Package retry re-runs failing operations with a fixed delay between attempts.
//
// Operations passed to Do or Value must be safe to re-invoke: nothing is
// rolled back between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Clock abstracts waiting so tests can observe delays without sleeping.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock waits on the wall clock.
var RealClock Clock = realClock{}

// Policy configures a retry loop.
type Policy struct {
	// Attempts is the total number of invocations, including the first.
	// Values below 1 are treated as 1.
	Attempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// Clock defaults to RealClock.
	Clock Clock
	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// AttemptsError is returned once all attempts are exhausted. It wraps the
// last failure.
type AttemptsError struct {
	Attempts int
	Err      error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *AttemptsError) Unwrap() error { return e.Err }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// immediately without annotation.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a Permanent error, the context is
// cancelled, or the policy's attempts are exhausted.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)
	clock := p.Clock
	if clock == nil {
		clock = RealClock
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("retry interrupted after %d attempt(s): %w", attempt-1, errors.Join(ctx.Err(), lastErr))
			case <-clock.After(p.Delay):
			}
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}

		lastErr = err
		if attempt < attempts && p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}

	return zero, &AttemptsError{Attempts: attempts, Err: lastErr}
}
