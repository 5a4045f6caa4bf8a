package pool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/smazurov/rworker/internal/channel"
	"github.com/smazurov/rworker/internal/events"
	"github.com/smazurov/rworker/internal/process"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSignaler exits its handle on SIGTERM or SIGKILL.
type fakeSignaler struct {
	mu      sync.Mutex
	handle  *process.Handle
	signals []os.Signal
	err     error
}

func (f *fakeSignaler) Signal(sig os.Signal) error {
	f.mu.Lock()
	f.signals = append(f.signals, sig)
	h, err := f.handle, f.err
	f.mu.Unlock()
	if err == nil && h != nil && (sig == syscall.SIGTERM || sig == syscall.SIGKILL) {
		go h.NotifyExit(errors.New("signal: terminated"))
	}
	return err
}

func (f *fakeSignaler) Release() error { return nil }

func (f *fakeSignaler) sent() []os.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]os.Signal(nil), f.signals...)
}

type fakeLauncher struct {
	mu         sync.Mutex
	specs      []process.Spec
	signalers  map[string]*fakeSignaler
	err        error
	failAfter  int
	launchHook func(process.Spec)
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{signalers: make(map[string]*fakeSignaler), failAfter: -1}
}

func (f *fakeLauncher) Launch(_ context.Context, spec process.Spec) (*process.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && (f.failAfter < 0 || len(f.specs) >= f.failAfter) {
		return nil, f.err
	}
	f.specs = append(f.specs, spec)
	sig := &fakeSignaler{}
	h := process.NewHandle(spec.ID, 2000+len(f.specs), sig, testLogger())
	sig.handle = h
	f.signalers[spec.ID] = sig
	if f.launchHook != nil {
		f.launchHook(spec)
	}
	return h, nil
}

func (f *fakeLauncher) launched() []process.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]process.Spec(nil), f.specs...)
}

func (f *fakeLauncher) signaler(id string) *fakeSignaler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signalers[id]
}

type fakeTransport struct {
	mu       sync.Mutex
	channels []*fakeChannel
	err      error
	bindErr  error
}

func (t *fakeTransport) Name() string { return "fake" }

func (t *fakeTransport) Create(id string) (channel.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	ch := &fakeChannel{id: id, done: make(chan struct{}), bindErr: t.bindErr}
	t.channels = append(t.channels, ch)
	return ch, nil
}

func (t *fakeTransport) created() []*fakeChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*fakeChannel(nil), t.channels...)
}

type fakeChannel struct {
	id string

	mu      sync.Mutex
	bound   channel.Process
	bindErr error
	closed  bool
	done    chan struct{}
	calls   []string
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) Attachment() channel.Attachment {
	return channel.Attachment{Env: []string{channel.EnvTransport + "=fake"}}
}

func (c *fakeChannel) Bind(p channel.Process) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bindErr != nil {
		return c.bindErr
	}
	c.bound = p
	return nil
}

func (c *fakeChannel) Bound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound != nil
}

func (c *fakeChannel) Call(_ context.Context, method string, _ any, result any) error {
	c.mu.Lock()
	c.calls = append(c.calls, method)
	c.mu.Unlock()
	if result != nil {
		return json.Unmarshal([]byte(`"ok"`), result)
	}
	return nil
}

func (c *fakeChannel) Notify(_ context.Context, method string, _ any) error {
	c.mu.Lock()
	c.calls = append(c.calls, method)
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) Handle(string, channel.Handler) {}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeChannel) Done() <-chan struct{} { return c.done }

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// recordingBus collects published events.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ev events.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *recordingBus) all() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}

func (b *recordingBus) assignments() []events.ProcessAssignedEvent {
	var out []events.ProcessAssignedEvent
	for _, ev := range b.all() {
		if a, ok := ev.(events.ProcessAssignedEvent); ok {
			out = append(out, a)
		}
	}
	return out
}

func testHost() process.Host {
	return process.Host{
		Executable: "/usr/local/bin/rworker",
		ExecArgv:   []string{"--inspect=9229", "--trace"},
		Cwd:        "/srv/app",
		Env:        []string{"PATH=/usr/bin"},
	}
}

type harness struct {
	launcher  *fakeLauncher
	transport *fakeTransport
	cluster   *process.Cluster
	bus       *recordingBus
	factory   *Factory
	manager   *Manager
}

func newHarness(t *testing.T, host process.Host) *harness {
	t.Helper()
	h := &harness{
		launcher:  newFakeLauncher(),
		transport: &fakeTransport{},
		bus:       &recordingBus{},
	}
	h.cluster = process.NewCluster(h.launcher, host.IsClusterWorker, testLogger())
	h.factory = NewFactory(&FactoryOptions{
		Host:      host,
		Direct:    process.NewDirectFork(h.launcher, testLogger()),
		Cluster:   process.NewClusterFork(h.cluster, testLogger()),
		Transport: h.transport,
		Now:       func() time.Time { return time.UnixMilli(1700000000000) },
		Logger:    testLogger(),
	})
	h.manager = NewManager(&ManagerOptions{
		Factory: h.factory,
		Events:  h.bus,
		Logger:  testLogger(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.manager.Shutdown(ctx)
	})
	return h
}
