package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAccountName(t *testing.T) {
	assert.Equal(t, "alcl_alice_x", AccountName("alice", "x"))
	assert.Equal(t, "alcl_alice_dev-1", AccountName("alice", "dev-1"))
}

func TestAccountName_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		host := rapid.StringMatching(`[a-z][a-z0-9]{0,8}`).Draw(rt, "host")
		name := rapid.StringMatching(`[a-z0-9][a-z0-9-]{0,10}`).Draw(rt, "name")

		account := AccountName(host, name)
		if account != AccountName(host, name) {
			rt.Fatalf("derivation is not deterministic")
		}
		if account != "alcl_"+host+"_"+name {
			rt.Fatalf("unexpected account %q", account)
		}

		parsed, ok := ParseAccountName(host, account)
		if !ok || parsed != name {
			rt.Fatalf("ParseAccountName(%q) = %q, %v; want %q", account, parsed, ok, name)
		}
	})
}

func TestParseAccountName(t *testing.T) {
	tests := []struct {
		account string
		want    string
		wantOK  bool
	}{
		{"alcl_alice_dev", "dev", true},
		{"alcl_alice_e2e-test-1", "e2e-test-1", true},
		{"alcl_bob_dev", "", false},
		{"alcl_alice_", "", false},
		{"alice", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			got, ok := ParseAccountName("alice", tt.account)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateAbsent, StateCreated, true},
		{StateCreated, StateReady, true},
		{StateAbsent, StateReady, true},
		{StateReady, StatePrivilegeGranted, true},
		{StatePrivilegeGranted, StateProvisioned, true},
		{StateProvisioned, StateValidated, true},
		{StateValidated, StateTornDown, true},
		{StateReady, StateFailed, true},
		{StateReady, StateReady, true},
		{StateCreated, StateProvisioned, false},
		{StateAbsent, StateValidated, false},
		{StateFailed, StateReady, false},
		{StateTornDown, StateCreated, false},
		{StateFailed, StateTornDown, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSession_AdvanceAndFail(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	s := New("alice", "dev", now)

	assert.Equal(t, "alcl_alice_dev", s.Account)
	assert.Equal(t, StateAbsent, s.State)

	require.NoError(t, s.Advance(StateCreated, now))
	require.Error(t, s.Advance(StateValidated, now))
	assert.Equal(t, StateCreated, s.State)

	later := now.Add(time.Minute)
	s.Fail(errors.New("boom"), later)
	assert.Equal(t, StateFailed, s.State)
	assert.Equal(t, "boom", s.Reason)
	assert.Equal(t, later, s.UpdatedAt)
	assert.False(t, s.Usable())

	require.NoError(t, s.Advance(StateTornDown, later))
	assert.Empty(t, s.Reason)
}

func TestNewToolSet(t *testing.T) {
	ts := NewToolSet("jq", "git", " ", "jq", "node")

	assert.Equal(t, append(slices.Clone(DefaultTools), "jq", "node"), ts.Names())
	assert.True(t, ts.Contains("python@3.12"))
	assert.False(t, ts.Contains("ruby"))
}

func TestToolSet_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		extras := rapid.SliceOf(rapid.SampledFrom([]string{"git", "jq", "node", "go", "", "uv", "ripgrep"})).Draw(rt, "extras")
		names := NewToolSet(extras...).Names()

		if !slices.Equal(names[:len(DefaultTools)], DefaultTools) {
			rt.Fatalf("defaults not first: %v", names)
		}

		seen := map[string]bool{}
		for _, n := range names {
			if n == "" || seen[n] {
				rt.Fatalf("blank or duplicate %q in %v", n, names)
			}
			seen[n] = true
		}
		for _, e := range extras {
			if e != "" && !seen[e] {
				rt.Fatalf("extra %q missing from %v", e, names)
			}
		}
	})
}

func TestParseTools(t *testing.T) {
	assert.Nil(t, ParseTools(""))
	assert.Equal(t, []string{"jq", "node"}, ParseTools(" jq, ,node "))
}

func TestErrorTaxonomy(t *testing.T) {
	timeout := &ReadinessTimeoutError{Account: "alcl_a_b", Attempts: 15}
	wrapped := &ProvisioningError{Session: "b", Step: StepReadiness, Err: timeout}

	assert.ErrorIs(t, wrapped, ErrTimeout)
	assert.Contains(t, wrapped.Error(), "readiness")
	assert.Contains(t, wrapped.Error(), "15 attempt")

	var pe *ProvisioningError
	require.ErrorAs(t, error(wrapped), &pe)
	assert.Equal(t, StepReadiness, pe.Step)

	report := ValidationReport{
		Session: "b",
		Checks: []Check{
			{Command: "git --version", Output: "git version 2.44.0"},
			{Command: "bun --version", Error: "command not found"},
		},
	}
	assert.False(t, report.Passed())
	verr := &ValidationError{Report: report}
	assert.ErrorIs(t, verr, ErrValidation)
	assert.True(t, strings.Contains(verr.Error(), "bun --version"))
	assert.Len(t, report.Failed(), 1)
}
