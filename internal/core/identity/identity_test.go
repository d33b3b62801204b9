package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/alcl/internal/core/config"
	"github.com/hay-kot/alcl/pkg/executil"
)

// sudoRecorder prefixes commands with sudo -n on a RecordingExecutor.
type sudoRecorder struct {
	exec *executil.RecordingExecutor
}

func (s sudoRecorder) Sudo(ctx context.Context, cmd string, args ...string) (executil.Output, error) {
	return s.exec.Run(ctx, "sudo", append([]string{"-n", cmd}, args...)...)
}

func TestNew(t *testing.T) {
	rec := &executil.RecordingExecutor{}

	d, err := New(config.PlatformDarwin, rec, sudoRecorder{rec})
	require.NoError(t, err)
	assert.IsType(t, &Darwin{}, d)

	l, err := New(config.PlatformLinux, rec, sudoRecorder{rec})
	require.NoError(t, err)
	assert.IsType(t, &Linux{}, l)

	_, err = New("plan9", rec, sudoRecorder{rec})
	assert.Error(t, err)
}

func TestDarwin_Commands(t *testing.T) {
	rec := &executil.RecordingExecutor{}
	d := NewDarwin(rec, sudoRecorder{rec})
	ctx := context.Background()

	require.NoError(t, d.Create(ctx, "alcl_me_dev"))
	require.NoError(t, d.FlushCache(ctx))
	require.NoError(t, d.ReloadDaemon(ctx))
	require.NoError(t, d.Delete(ctx, "alcl_me_dev"))
	assert.True(t, d.Resolvable(ctx, "alcl_me_dev"))

	// the empty password is a trailing empty argument, trimmed by String
	want := []string{
		"sudo -n sysadminctl -addUser alcl_me_dev -password",
		"sudo -n dscacheutil -flushcache",
		"sudo -n killall -HUP opendirectoryd",
		"sudo -n sysadminctl -deleteUser alcl_me_dev",
		"id -u alcl_me_dev",
	}
	var got []string
	for _, c := range rec.Recorded() {
		got = append(got, c.String())
	}
	assert.Equal(t, want, got)

	assert.Equal(t, "/Users/alcl_me_dev", d.Home("alcl_me_dev"))
	assert.Equal(t, "staff", d.Group("alcl_me_dev"))
}

func TestDarwin_ExistsAndList(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Handler: func(cmd string, args []string) (executil.Output, error) {
			if cmd == "dscl" && args[1] == "-list" {
				return executil.Output{Stdout: []byte("_www\nalice\nalcl_alice_dev\n\n")}, nil
			}
			if cmd == "dscl" && args[2] == "/Users/alcl_alice_dev" {
				return executil.Output{}, nil
			}
			return executil.Output{ExitCode: 56}, errors.New("eDSRecordNotFound")
		},
	}
	d := NewDarwin(rec, sudoRecorder{rec})
	ctx := context.Background()

	users, err := d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"_www", "alice", "alcl_alice_dev"}, users)

	ok, err := d.Exists(ctx, "alcl_alice_dev")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Exists(ctx, "alcl_alice_gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLinux_Commands(t *testing.T) {
	rec := &executil.RecordingExecutor{
		Handler: func(cmd string, args []string) (executil.Output, error) {
			if cmd == "getent" && len(args) == 1 {
				return executil.Output{Stdout: []byte("root:x:0:0:root:/root:/bin/bash\nalcl_bob_x:x:1001:1001::/home/alcl_bob_x:/bin/bash\n")}, nil
			}
			if cmd == "id" {
				return executil.Output{ExitCode: 1}, errors.New("no such user")
			}
			return executil.Output{}, nil
		},
	}
	l := NewLinux(rec, sudoRecorder{rec})
	ctx := context.Background()

	users, err := l.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "alcl_bob_x"}, users)

	require.NoError(t, l.Create(ctx, "alcl_bob_x"))
	assert.False(t, l.Resolvable(ctx, "alcl_bob_x"))

	recorded := rec.Recorded()
	assert.Equal(t, "sudo -n useradd --create-home --user-group --shell /bin/bash alcl_bob_x", recorded[1].String())
	assert.Equal(t, "sudo -n passwd --delete alcl_bob_x", recorded[2].String())

	assert.Equal(t, "/home/alcl_bob_x", l.Home("alcl_bob_x"))
	assert.Equal(t, "alcl_bob_x", l.Group("alcl_bob_x"))
}

func TestCreate_PropagatesErrors(t *testing.T) {
	rec := &executil.RecordingExecutor{Errors: map[string]error{"sudo": errors.New("a password is required")}}
	d := NewDarwin(rec, sudoRecorder{rec})

	err := d.Create(context.Background(), "alcl_me_dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add user alcl_me_dev")
}
