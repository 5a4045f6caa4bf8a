package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingLogger) record(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, fmt.Sprintf("%s %s", level, msg))
}

func (r *recordingLogger) Debug(msg string, _ ...any) { r.record("DEBUG", msg) }
func (r *recordingLogger) Info(msg string, _ ...any)  { r.record("INFO", msg) }
func (r *recordingLogger) Warn(msg string, _ ...any)  { r.record("WARN", msg) }
func (r *recordingLogger) Error(msg string, _ ...any) { r.record("ERROR", msg) }

func (r *recordingLogger) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type fakeSignaler struct {
	mu       sync.Mutex
	signals  []os.Signal
	released bool
	err      error
}

func (f *fakeSignaler) Signal(sig os.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
	return f.err
}

func (f *fakeSignaler) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	return nil
}

func (f *fakeSignaler) sent() []os.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]os.Signal(nil), f.signals...)
}

type fakeLauncher struct {
	mu      sync.Mutex
	specs   []Spec
	handles []*Handle
	err     error
}

func (f *fakeLauncher) Launch(_ context.Context, spec Spec) (*Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.specs = append(f.specs, spec)
	h := NewHandle(spec.ID, 1000+len(f.specs), &fakeSignaler{}, testLogger())
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeLauncher) lastSpec() Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.specs[len(f.specs)-1]
}
