package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/alcl/internal/core/config"
	"github.com/hay-kot/alcl/pkg/executil"
)

// events is an ordered, shared log of side effects across fakes.
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, fmt.Sprintf(format, args...))
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

func (e *events) count(prefix string) int {
	n := 0
	for _, ev := range e.all() {
		if strings.HasPrefix(ev, prefix) {
			n++
		}
	}
	return n
}

type fakeAccount struct {
	resolveAfter int
	checks       int
}

// fakeDir is an in-memory identity.Directory. New accounts become
// resolvable after resolveDelay checks.
type fakeDir struct {
	mu           sync.Mutex
	ev           *events
	accounts     map[string]*fakeAccount
	extra        []string
	resolveDelay int
	flushErr     error
	createErr    error
}

func newFakeDir(ev *events) *fakeDir {
	return &fakeDir{ev: ev, accounts: map[string]*fakeAccount{}}
}

func (d *fakeDir) List(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := append([]string(nil), d.extra...)
	for name := range d.accounts {
		names = append(names, name)
	}
	return names, nil
}

func (d *fakeDir) Exists(_ context.Context, account string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.accounts[account]
	return ok, nil
}

func (d *fakeDir) Resolvable(_ context.Context, account string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ev.add("resolve %s", account)
	a, ok := d.accounts[account]
	if !ok {
		return false
	}
	a.checks++
	return a.checks > a.resolveAfter
}

func (d *fakeDir) Create(_ context.Context, account string) error {
	if d.createErr != nil {
		return d.createErr
	}
	d.mu.Lock()
	d.accounts[account] = &fakeAccount{resolveAfter: d.resolveDelay}
	d.mu.Unlock()
	d.ev.add("create %s", account)
	return nil
}

func (d *fakeDir) Delete(_ context.Context, account string) error {
	d.mu.Lock()
	delete(d.accounts, account)
	d.mu.Unlock()
	d.ev.add("delete %s", account)
	return nil
}

func (d *fakeDir) FlushCache(context.Context) error {
	d.ev.add("flush")
	return d.flushErr
}

func (d *fakeDir) ReloadDaemon(context.Context) error {
	d.ev.add("reload")
	return errors.New("killall: no matching processes")
}

func (d *fakeDir) Home(account string) string { return "/Users/" + account }

func (d *fakeDir) Group(string) string { return "staff" }

// fakePriv records elevated commands. respond scripts AsUser results.
type fakePriv struct {
	ev      *events
	respond func(account, script string) (executil.Output, error)
}

func (p *fakePriv) AsUser(_ context.Context, account, script string) (executil.Output, error) {
	p.ev.add("as %s: %s", account, script)
	if p.respond != nil {
		return p.respond(account, script)
	}
	return executil.Output{Stdout: []byte("ok\n")}, nil
}

func (p *fakePriv) AsUserStream(_ context.Context, stdout, _ io.Writer, account, script string) error {
	p.ev.add("stream %s: %s", account, script)
	_, _ = io.WriteString(stdout, "streamed\n")
	return nil
}

func (p *fakePriv) Sudo(_ context.Context, cmd string, args ...string) (executil.Output, error) {
	p.ev.add("sudo %s %s", cmd, strings.Join(args, " "))
	return executil.Output{}, nil
}

func (p *fakePriv) Shell(_ context.Context, account string, argv []string) error {
	p.ev.add("shell %s %s", account, strings.Join(argv, " "))
	return nil
}

type fakeGrants struct {
	ev       *events
	grantErr error
}

func (g *fakeGrants) Grant(_ context.Context, name, account string) error {
	g.ev.add("grant %s", account)
	return g.grantErr
}

func (g *fakeGrants) Revoke(_ context.Context, account string) error {
	g.ev.add("revoke %s", account)
	return nil
}

type fakeToolchain struct {
	ev         *events
	installErr error
}

func (f *fakeToolchain) InstallPackageManager(_ context.Context, account string) error {
	f.ev.add("brew %s", account)
	return nil
}

func (f *fakeToolchain) InstallPackages(_ context.Context, account string, names []string) error {
	f.ev.add("install %s %s", account, strings.Join(names, ","))
	return f.installErr
}

func (f *fakeToolchain) PostInstall(_ context.Context, account string, names []string) error {
	f.ev.add("post-install %s", account)
	return nil
}

// instantClock fires immediately and records requested delays.
type instantClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (c *instantClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.delays)
}

type harness struct {
	ev     *events
	cfg    *config.Config
	dir    *fakeDir
	priv   *fakePriv
	grants *fakeGrants
	tools  *fakeToolchain
	clock  *instantClock
	out    *strings.Builder
	svc    *Service
}

func newHarness() *harness {
	ev := &events{}
	cfg := config.DefaultConfig()
	cfg.HostUser = "me"
	cfg.DataDir = "/tmp/alcl-test"
	cfg.Readiness.MaxAttempts = 5
	cfg.Readiness.Interval = 2 * time.Second

	h := &harness{
		ev:     ev,
		cfg:    &cfg,
		dir:    newFakeDir(ev),
		priv:   &fakePriv{ev: ev},
		grants: &fakeGrants{ev: ev},
		tools:  &fakeToolchain{ev: ev},
		clock:  &instantClock{},
		out:    &strings.Builder{},
	}
	h.svc = New(h.cfg, zerolog.Nop(), h.dir, h.priv, h.grants, h.tools, h.out, io.Discard)
	h.svc.poller.clock = h.clock
	return h
}
