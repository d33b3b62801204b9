// Package session defines session domain types and interfaces.
package session

import (
	"fmt"
	"strings"
	"time"
)

// AccountPrefix starts every account name managed by alcl. Other tooling
// relies on it to discover sessions, so it must not change.
const AccountPrefix = "alcl_"

// MaxAccountLength is the username length limit of the host directory.
const MaxAccountLength = 32

// AccountName derives the OS account backing a session. It is pure: the
// same host user and session name always produce the same account.
func AccountName(hostUser, name string) string {
	return AccountPrefix + hostUser + "_" + name
}

// HostPrefix is the account prefix shared by every session of hostUser.
func HostPrefix(hostUser string) string {
	return AccountPrefix + hostUser + "_"
}

// ParseAccountName returns the session name encoded in account, or false
// if account was not derived for hostUser.
func ParseAccountName(hostUser, account string) (string, bool) {
	name, ok := strings.CutPrefix(account, HostPrefix(hostUser))
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// State is a step of the session lifecycle. It is held in memory for the
// duration of a run only; the account itself is the durable record.
type State string

const (
	StateAbsent           State = "absent"
	StateCreated          State = "created"
	StateReady            State = "ready"
	StatePrivilegeGranted State = "privilege_granted"
	StateProvisioned      State = "provisioned"
	StateValidated        State = "validated"
	StateTornDown         State = "torn_down"
	StateFailed           State = "failed"
)

// forward lists the only legal successor of each non-terminal state.
var forward = map[State]State{
	StateAbsent:           StateCreated,
	StateCreated:          StateReady,
	StateReady:            StatePrivilegeGranted,
	StatePrivilegeGranted: StateProvisioned,
	StateProvisioned:      StateValidated,
}

// CanTransition reports whether from -> to is a legal lifecycle move.
// Any state may fail or be torn down. An account that already exists may
// skip straight from absent to ready.
func CanTransition(from, to State) bool {
	switch to {
	case StateFailed, StateTornDown:
		return true
	}
	if from == StateFailed || from == StateTornDown {
		return false
	}
	if from == to {
		return true
	}
	if from == StateAbsent && to == StateReady {
		return true
	}
	return forward[from] == to
}

// Session tracks one lifecycle run.
type Session struct {
	Name      string    `json:"name"`
	Account   string    `json:"account"`
	State     State     `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a session in the absent state.
func New(hostUser, name string, now time.Time) *Session {
	return &Session{
		Name:      name,
		Account:   AccountName(hostUser, name),
		State:     StateAbsent,
		UpdatedAt: now,
	}
}

// Advance moves the session to the next state.
func (s *Session) Advance(to State, now time.Time) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("session %s: illegal transition %s -> %s", s.Name, s.State, to)
	}
	s.State = to
	s.UpdatedAt = now
	if to != StateFailed {
		s.Reason = ""
	}
	return nil
}

// Fail marks the session failed with the reason from err.
func (s *Session) Fail(err error, now time.Time) {
	s.State = StateFailed
	s.UpdatedAt = now
	if err != nil {
		s.Reason = err.Error()
	}
}

// Usable reports whether the session completed validation.
func (s *Session) Usable() bool {
	return s.State == StateValidated
}
