package privilege

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/alcl/internal/core/session"
	"github.com/hay-kot/alcl/internal/core/validate"
	"github.com/hay-kot/alcl/pkg/executil"
)

func commandLines(rec *executil.RecordingExecutor) []string {
	var lines []string
	for _, c := range rec.Recorded() {
		lines = append(lines, c.String())
	}
	return lines
}

func TestRunner_Validate(t *testing.T) {
	rec := &executil.RecordingExecutor{}
	r := NewRunner(zerolog.Nop(), rec)

	require.NoError(t, r.Validate(context.Background(), false))
	require.NoError(t, r.Validate(context.Background(), true))
	assert.Equal(t, []string{"sudo -n -v", "sudo -v"}, commandLines(rec))
}

func TestRunner_ValidateRefused(t *testing.T) {
	rec := &executil.RecordingExecutor{Errors: map[string]error{"sudo": errors.New("a password is required")}}
	r := NewRunner(zerolog.Nop(), rec)

	err := r.Validate(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrAuthentication)
}

func TestRunner_SudoAndAsUser(t *testing.T) {
	rec := &executil.RecordingExecutor{}
	r := NewRunner(zerolog.Nop(), rec)
	ctx := context.Background()

	_, err := r.Sudo(ctx, "chmod", "700", "/Users/alcl_me_dev")
	require.NoError(t, err)
	_, err = r.AsUser(ctx, "alcl_me_dev", "git --version")
	require.NoError(t, err)
	require.NoError(t, r.Shell(ctx, "alcl_me_dev", []string{"ls", "-la"}))
	require.NoError(t, r.Shell(ctx, "alcl_me_dev", nil))

	assert.Equal(t, []string{
		"sudo -n chmod 700 /Users/alcl_me_dev",
		"sudo -n su - alcl_me_dev -c git --version",
		"sudo su - alcl_me_dev -c 'ls' '-la'",
		"sudo su - alcl_me_dev",
	}, commandLines(rec))
}

func TestRunner_ShellQuotesArguments(t *testing.T) {
	rec := &executil.RecordingExecutor{}
	r := NewRunner(zerolog.Nop(), rec)

	require.NoError(t, r.Shell(context.Background(), "alcl_me_dev", []string{"echo", "a  b; id", "it's"}))

	recorded := rec.Recorded()
	require.Len(t, recorded, 1)
	args := recorded[0].Args
	require.Equal(t, "-c", args[len(args)-2])
	assert.Equal(t, `'echo' 'a  b; id' 'it'\''s'`, args[len(args)-1])
}

func TestRunner_SudoExpiredCredential(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Handler: func(cmd string, args []string) (executil.Output, error) {
			return executil.Output{ExitCode: 1, Stderr: []byte("sudo: a password is required\n")}, errors.New("exit status 1")
		},
	}
	r := NewRunner(zerolog.Nop(), rec)

	_, err := r.Sudo(context.Background(), "true")
	assert.ErrorIs(t, err, session.ErrAuthentication)

	_, err = r.AsUser(context.Background(), "alcl_me_dev", "true")
	assert.ErrorIs(t, err, session.ErrAuthentication)
}

func TestRunner_AsUserStream(t *testing.T) {
	rec := &executil.RecordingExecutor{Outputs: map[string][]byte{"sudo": []byte("hello\n")}}
	r := NewRunner(zerolog.Nop(), rec)

	var buf strings.Builder
	require.NoError(t, r.AsUserStream(context.Background(), &buf, io.Discard, "alcl_me_dev", "echo hello"))
	assert.Equal(t, "hello\n", buf.String())
	assert.Equal(t, []string{"sudo -n su - alcl_me_dev -c echo hello"}, commandLines(rec))
}

func TestGrants_Fragment(t *testing.T) {
	g := NewGrants(zerolog.Nop(), &executil.RecordingExecutor{}, nil, "/etc/sudoers.d", []string{"ALL"})

	assert.Equal(t, "/etc/sudoers.d/alcl_me_dev", g.Path("alcl_me_dev"))
	assert.Equal(t,
		"# managed by alcl for session dev\nalcl_me_dev ALL=(ALL) NOPASSWD:SETENV: ALL\n",
		g.Fragment("dev", "alcl_me_dev"))
}

func TestGrants_DottedHostUser(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Handler: func(cmd string, args []string) (executil.Output, error) {
			if cmd == "sudo" && args[1] == "cat" {
				return executil.Output{ExitCode: 1}, errors.New("no such file")
			}
			return executil.Output{}, nil
		},
	}
	r := NewRunner(zerolog.Nop(), rec)
	g := NewGrants(zerolog.Nop(), rec, r, "/etc/sudoers.d", []string{"ALL"})

	account, err := validate.AccountFor("john.doe", "dev")
	require.NoError(t, err)

	assert.Equal(t, "/etc/sudoers.d/alcl_john_doe_dev", g.Path(account))
	assert.NotContains(t, path.Base(g.Path(account)), ".")
	assert.Contains(t, g.Fragment("dev", account), "alcl_john.doe_dev ALL=(ALL)", "the rule names the real account")

	require.NoError(t, g.Grant(context.Background(), "dev", account))
	lines := commandLines(rec)
	require.Len(t, lines, 4)
	assert.Equal(t, "sudo -n mv -f /etc/sudoers.d/.alcl_john_doe_dev.staged /etc/sudoers.d/alcl_john_doe_dev", lines[3])

	rec.Reset()
	require.NoError(t, g.Revoke(context.Background(), account))
	assert.Equal(t, []string{"sudo -n rm -f /etc/sudoers.d/alcl_john_doe_dev"}, commandLines(rec))
}

func TestGrants_GrantStagesThenRenames(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Handler: func(cmd string, args []string) (executil.Output, error) {
			if cmd == "sudo" && args[1] == "cat" {
				return executil.Output{ExitCode: 1}, errors.New("no such file")
			}
			return executil.Output{}, nil
		},
	}
	r := NewRunner(zerolog.Nop(), rec)
	g := NewGrants(zerolog.Nop(), rec, r, "/etc/sudoers.d", []string{"ALL"})

	require.NoError(t, g.Grant(context.Background(), "dev", "alcl_me_dev"))

	lines := commandLines(rec)
	require.Len(t, lines, 4)
	assert.Equal(t, "sudo -n cat /etc/sudoers.d/alcl_me_dev", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "visudo -cf "))
	assert.True(t, strings.HasPrefix(lines[2], "sudo -n install -m 0440 -o root "))
	assert.True(t, strings.HasSuffix(lines[2], " /etc/sudoers.d/.alcl_me_dev.staged"))
	assert.Equal(t, "sudo -n mv -f /etc/sudoers.d/.alcl_me_dev.staged /etc/sudoers.d/alcl_me_dev", lines[3])
}

func TestGrants_GrantIdempotent(t *testing.T) {
	var g *Grants
	rec := &executil.RecordingExecutor{
		Handler: func(cmd string, args []string) (executil.Output, error) {
			return executil.Output{Stdout: []byte(g.Fragment("dev", "alcl_me_dev"))}, nil
		},
	}
	r := NewRunner(zerolog.Nop(), rec)
	g = NewGrants(zerolog.Nop(), rec, r, "/etc/sudoers.d", []string{"ALL"})

	require.NoError(t, g.Grant(context.Background(), "dev", "alcl_me_dev"))
	assert.Len(t, rec.Recorded(), 1, "only the existing fragment is read")
}

func TestGrants_GrantRejectsBadSyntax(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Handler: func(cmd string, args []string) (executil.Output, error) {
			switch cmd {
			case "visudo":
				return executil.Output{ExitCode: 1}, errors.New("syntax error")
			case "sudo":
				return executil.Output{ExitCode: 1}, errors.New("no such file")
			}
			return executil.Output{}, nil
		},
	}
	r := NewRunner(zerolog.Nop(), rec)
	g := NewGrants(zerolog.Nop(), rec, r, "/etc/sudoers.d", []string{"ALL"})

	err := g.Grant(context.Background(), "dev", "alcl_me_dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check fragment syntax")

	for _, line := range commandLines(rec) {
		assert.NotContains(t, line, "install", "nothing is installed after a failed check")
	}
}

func TestGrants_Revoke(t *testing.T) {
	rec := &executil.RecordingExecutor{}
	r := NewRunner(zerolog.Nop(), rec)
	g := NewGrants(zerolog.Nop(), rec, r, "/etc/sudoers.d", []string{"ALL"})

	require.NoError(t, g.Revoke(context.Background(), "alcl_me_dev"))
	assert.Equal(t, []string{"sudo -n rm -f /etc/sudoers.d/alcl_me_dev"}, commandLines(rec))
}

func TestHeartbeat_RefreshesUntilStopped(t *testing.T) {
	var calls atomic.Int32
	rec := &executil.RecordingExecutor{
		Handler: func(cmd string, args []string) (executil.Output, error) {
			calls.Add(1)
			return executil.Output{}, nil
		},
	}
	r := NewRunner(zerolog.Nop(), rec)

	hb := r.StartHeartbeat(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)

	hb.Stop()
	hb.Stop()

	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load(), "no refresh after Stop")
}
