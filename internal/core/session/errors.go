package session

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for session operations.
var (
	// ErrAuthentication means privilege validation was refused. It aborts
	// the whole run and is never retried.
	ErrAuthentication = errors.New("privilege authentication failed")
	// ErrTimeout means a readiness or command deadline was exceeded.
	ErrTimeout = errors.New("timed out")
	// ErrTransient marks a network or install failure worth retrying.
	ErrTransient = errors.New("transient external failure")
	// ErrValidation means a provisioned session failed its checks.
	ErrValidation = errors.New("validation failed")
)

// Step names a lifecycle step for error reporting.
type Step string

const (
	StepCreate       Step = "create"
	StepReadiness    Step = "readiness"
	StepPermissions  Step = "permissions"
	StepGrant        Step = "grant"
	StepToolchain    Step = "toolchain"
	StepPackages     Step = "packages"
	StepPostInstall  Step = "post-install"
	StepHooks        Step = "hooks"
	StepValidate     Step = "validate"
	StepRevoke       Step = "revoke"
	StepDelete       Step = "delete"
	StepResolveHost  Step = "resolve-host"
	StepValidateName Step = "validate-name"
)

// ProvisioningError reports the failing step of a session lifecycle.
type ProvisioningError struct {
	Session string
	Step    Step
	Err     error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.Session, e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// ReadinessTimeoutError reports an account that never became ready.
type ReadinessTimeoutError struct {
	Account      string
	Attempts     int
	Resolved     bool
	NetworkReady bool
	Err          error
}

func (e *ReadinessTimeoutError) Error() string {
	msg := fmt.Sprintf("account %s not ready after %d attempt(s) (resolved: %t, network: %t)",
		e.Account, e.Attempts, e.Resolved, e.NetworkReady)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReadinessTimeoutError) Unwrap() error { return e.Err }

func (e *ReadinessTimeoutError) Is(target error) bool { return target == ErrTimeout }

// Check is the outcome of one validation command.
type Check struct {
	Command string `json:"command"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Passed reports whether the command exited cleanly.
func (c Check) Passed() bool {
	return c.Error == ""
}

// ValidationReport collects the checks run against a session.
type ValidationReport struct {
	Session string  `json:"session"`
	Account string  `json:"account"`
	Checks  []Check `json:"checks"`
}

// Passed reports whether every check passed. An empty report passes.
func (r ValidationReport) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed() {
			return false
		}
	}
	return true
}

// Failed returns the checks that did not pass.
func (r ValidationReport) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if !c.Passed() {
			failed = append(failed, c)
		}
	}
	return failed
}

// ValidationError is returned when a ValidationReport did not pass.
type ValidationError struct {
	Report ValidationReport
}

func (e *ValidationError) Error() string {
	failed := e.Report.Failed()
	parts := make([]string, len(failed))
	for i, c := range failed {
		parts[i] = fmt.Sprintf("%q: %s", c.Command, c.Error)
	}
	return fmt.Sprintf("session %s: %d check(s) failed: %s", e.Report.Session, len(failed), strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
