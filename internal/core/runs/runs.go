// Package runs defines batch run history domain types and interfaces.
package runs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run is not found.
var ErrNotFound = errors.New("run not found")

// Status is the outcome of one session within a batch.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped marks a session that was never started because a
	// fail-fast batch had already observed a failure.
	StatusSkipped Status = "skipped"
)

// Outcome records what happened to one session in a run.
type Outcome struct {
	Session  string        `json:"session"`
	Account  string        `json:"account,omitempty"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Run is a recorded batch execution.
type Run struct {
	ID          string    `json:"id"`
	Operation   string    `json:"operation"`
	Concurrency int       `json:"concurrency"`
	FailFast    bool      `json:"fail_fast"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Outcomes    []Outcome `json:"outcomes"`
}

// Count returns how many outcomes have status s.
func (r *Run) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Failed returns true if any session did not succeed.
func (r *Run) Failed() bool {
	return r.Count(StatusSucceeded) != len(r.Outcomes)
}

// Store defines persistence operations for run history.
type Store interface {
	// List returns all runs, newest first.
	List(ctx context.Context) ([]Run, error)
	// Get returns a run by ID. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (Run, error)
	// Save adds a run, pruning the oldest runs past the configured maximum.
	Save(ctx context.Context, run Run) error
	// Clear removes all runs.
	Clear(ctx context.Context) error
}
