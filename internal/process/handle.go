package process

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/smazurov/rworker/internal/logging"
)

// DefaultMaxListeners is the exit listener ceiling a new Handle starts with.
const DefaultMaxListeners = 10

// Signaler is the part of *os.Process a Handle needs.
type Signaler interface {
	Signal(sig os.Signal) error
	Release() error
}

// Handle is the parent's view of one spawned worker process.
type Handle struct {
	id        string
	pid       int
	startedAt time.Time
	proc      Signaler
	logger    logging.Logger

	referenced atomic.Bool
	done       chan struct{}
	exitOnce   sync.Once
	exitErr    error

	mu           sync.Mutex
	listeners    map[int]func(error)
	nextListener int
	maxListeners int
	warned       bool
}

// NewHandle wraps a started process. The launcher that started it must call
// NotifyExit exactly when the process has been reaped.
func NewHandle(id string, pid int, proc Signaler, logger logging.Logger) *Handle {
	h := &Handle{
		id:           id,
		pid:          pid,
		startedAt:    time.Now(),
		proc:         proc,
		logger:       logger,
		done:         make(chan struct{}),
		listeners:    make(map[int]func(error)),
		maxListeners: DefaultMaxListeners,
	}
	h.referenced.Store(true)
	return h
}

// ID returns the record id the process was spawned for.
func (h *Handle) ID() string { return h.id }

// Pid returns the OS process id.
func (h *Handle) Pid() int { return h.pid }

// StartedAt returns when the handle was created.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Done is closed when the process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Exited reports whether the process has exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitErr returns the wait error once the process has exited.
func (h *Handle) ExitErr() error {
	<-h.done
	return h.exitErr
}

// Wait blocks until the process exits or the timeout elapses.
// It reports whether the process exited.
func (h *Handle) Wait(timeout time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Signal sends sig to the process. Signalling an exited process is a no-op.
func (h *Handle) Signal(sig os.Signal) error {
	if h.Exited() {
		return nil
	}
	if err := h.proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Kill asks the process to terminate with SIGTERM.
func (h *Handle) Kill() error {
	return h.Signal(syscall.SIGTERM)
}

// Unref marks the process as one the parent does not wait for on shutdown.
func (h *Handle) Unref() {
	h.referenced.Store(false)
}

// Referenced reports whether shutdown should wait for this process.
func (h *Handle) Referenced() bool {
	return h.referenced.Load()
}

// SetMaxListeners changes the exit listener ceiling. Registering past it
// logs a warning once; the listener is still added.
func (h *Handle) SetMaxListeners(n int) {
	h.mu.Lock()
	h.maxListeners = n
	h.warned = false
	h.mu.Unlock()
}

// MaxListeners returns the current exit listener ceiling.
func (h *Handle) MaxListeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxListeners
}

// OnExit registers fn to run when the process exits and returns a function
// that removes it. fn receives the wait error, nil on a clean exit. If the
// process already exited fn runs immediately.
func (h *Handle) OnExit(fn func(err error)) func() {
	h.mu.Lock()
	if h.Exited() {
		h.mu.Unlock()
		fn(h.exitErr)
		return func() {}
	}

	idx := h.nextListener
	h.nextListener++
	h.listeners[idx] = fn
	if h.maxListeners > 0 && len(h.listeners) > h.maxListeners && !h.warned {
		h.warned = true
		h.logger.Warn("Exit listener ceiling exceeded", "id", h.id, "listeners", len(h.listeners), "max", h.maxListeners)
	}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, idx)
		h.mu.Unlock()
	}
}

// NotifyExit records the exit of the process and runs exit listeners.
// Calls after the first are ignored.
func (h *Handle) NotifyExit(err error) {
	h.exitOnce.Do(func() {
		h.mu.Lock()
		h.exitErr = err
		close(h.done)
		listeners := make([]func(error), 0, len(h.listeners))
		for i := 0; i < h.nextListener; i++ {
			if fn, ok := h.listeners[i]; ok {
				listeners = append(listeners, fn)
			}
		}
		h.listeners = make(map[int]func(error))
		h.mu.Unlock()

		if releaseErr := h.proc.Release(); releaseErr != nil {
			h.logger.Debug("Failed to release process", "id", h.id, "error", releaseErr)
		}

		for _, fn := range listeners {
			fn(err)
		}
	})
}

// Info returns a snapshot of the handle.
func (h *Handle) Info() Info {
	info := Info{
		ID:         h.id,
		PID:        h.pid,
		State:      StateRunning,
		StartedAt:  h.startedAt,
		Referenced: h.Referenced(),
	}
	if h.Exited() {
		info.State = StateExited
		info.ExitCode = exitCodeFromError(h.exitErr)
		info.LastError = h.exitErr
	}
	return info
}
