package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/rworker/internal/events"
	"github.com/smazurov/rworker/internal/logging"
	"github.com/smazurov/rworker/internal/metrics"
	"github.com/smazurov/rworker/internal/process"
)

// ErrManagerClosed is returned once Shutdown has started.
var ErrManagerClosed = errors.New("pool manager is shut down")

// Assignment modes, used in events and metrics.
const (
	ModePooled     = "pooled"
	ModeSpawned    = "spawned"
	ModeShared     = "shared"
	ModeRoundRobin = "round_robin"
)

// EventPublisher receives pool lifecycle events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Factory spawns new records (required).
	Factory *Factory

	// Events receives lifecycle events (optional).
	Events EventPublisher

	// Logger for manager operations. If nil, uses slog.Default().
	Logger logging.Logger
}

// Stats summarizes pool occupancy.
type Stats struct {
	Prepared  int
	Processes int
	Clients   int
}

// Manager owns the registry and the prepared pool and assigns processes to
// clients. Registry and pool changes happen under one mutex; spawning does
// not hold it.
type Manager struct {
	factory *Factory
	events  EventPublisher
	logger  logging.Logger

	mu       sync.Mutex
	registry *Registry
	prepared PreparedPool
	closed   bool

	// sharedMu serializes non-dedicated assignments that may create a
	// record, so concurrent first requests end up on one process.
	sharedMu sync.Mutex
}

// NewManager creates a manager.
func NewManager(opts *ManagerOptions) *Manager {
	if opts == nil || opts.Factory == nil {
		panic("ManagerOptions with Factory is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		factory:  opts.Factory,
		events:   opts.Events,
		logger:   logger,
		registry: NewRegistry(),
	}
}

// Prepare spawns count workers into the prepared pool. It stops at the
// first failed spawn and returns its error; workers spawned before it stay
// in the pool.
func (m *Manager) Prepare(ctx context.Context, count int, opts process.ForkOptions) error {
	_, err := m.prepare(ctx, count, opts)
	return err
}

func (m *Manager) prepare(ctx context.Context, count int, opts process.ForkOptions) (int, error) {
	for i := range count {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		rec, err := m.factory.Create(ctx, opts)
		if err != nil {
			m.logger.Warn("Prepare stopped", "spawned", i, "requested", count, "error", err)
			return i, err
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			m.discard(rec)
			return i, ErrManagerClosed
		}
		m.prepared.Add(rec)
		size := m.prepared.Size()
		m.updateGaugesLocked()
		m.mu.Unlock()

		m.watchExit(rec)
		m.publishSpawned(rec)
		m.publish(events.ProcessPreparedEvent{
			ProcessID: rec.ID,
			Prepared:  size,
			Timestamp: timestamp(),
		})
	}

	if count > 0 {
		m.logger.Info("Prepared workers", "count", count, "pool", m.PreparedCount())
	}
	return count, nil
}

// EnsurePrepared tops the prepared pool up to target and returns how many
// workers it spawned.
func (m *Manager) EnsurePrepared(ctx context.Context, target int, opts process.ForkOptions) (int, error) {
	missing := target - m.PreparedCount()
	if missing <= 0 {
		return 0, nil
	}

	return m.prepare(ctx, missing, opts)
}

// PreparedCount returns the number of prepared, unassigned workers.
func (m *Manager) PreparedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prepared.Size()
}

// DestroyPrepared unrefs and terminates every prepared worker and empties
// the pool. Termination errors are logged and do not stop the sweep.
func (m *Manager) DestroyPrepared() int {
	m.mu.Lock()
	records := m.prepared.Drain()
	m.updateGaugesLocked()
	m.mu.Unlock()

	for _, rec := range records {
		rec.setPrepared(false)
		rec.Handle.Unref()
		m.discard(rec)
	}

	if len(records) > 0 {
		m.logger.Info("Destroyed prepared workers", "count", len(records))
	}
	m.publish(events.PreparedDestroyedEvent{Count: len(records), Timestamp: timestamp()})
	return len(records)
}

// Assign binds client to a process and returns its record. A share target
// joins the matching assignment. Otherwise a non-dedicated client joins the
// first shareable assignment, and a new record is used when there is none
// or the client asked for its own process. New non-dedicated records come
// from the prepared pool unless the client sets a working directory.
func (m *Manager) Assign(ctx context.Context, client *Client) (*Record, error) {
	if client == nil {
		return nil, m.fail(ErrMissingClient)
	}
	opts := client.Options

	if opts.ShareProcess == nil && !opts.OwnProcess {
		m.sharedMu.Lock()
		defer m.sharedMu.Unlock()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}

	if _, rec, ok := m.registry.Lookup(client.ID); ok {
		m.mu.Unlock()
		return rec, nil
	}

	if opts.ShareProcess != nil {
		rec, ok := m.registry.Find(*opts.ShareProcess)
		if !ok {
			m.mu.Unlock()
			return nil, m.fail(shareTargetNotFound(*opts.ShareProcess))
		}
		m.bindLocked(rec, client, false)
		m.mu.Unlock()
		return m.assigned(rec, client, ModeShared), nil
	}

	if !opts.OwnProcess && m.registry.Len() > 0 {
		if rec, ok := m.registry.FirstShared(); ok {
			m.bindLocked(rec, client, false)
			m.mu.Unlock()
			return m.assigned(rec, client, ModeRoundRobin), nil
		}
	}

	if !opts.OwnProcess && !opts.ForkOptions.HasCwd() {
		if rec, ok := m.prepared.Take(); ok {
			m.bindLocked(rec, client, false)
			m.mu.Unlock()
			return m.assigned(rec, client, ModePooled), nil
		}
	}
	m.mu.Unlock()

	rec, err := m.factory.Create(ctx, opts.ForkOptions)
	if err != nil {
		return nil, m.fail(err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.discard(rec)
		return nil, ErrManagerClosed
	}
	// The same client may have been assigned while this one was spawning.
	if _, existing, ok := m.registry.Lookup(client.ID); ok {
		m.mu.Unlock()
		m.discard(rec)
		return existing, nil
	}
	m.bindLocked(rec, client, opts.OwnProcess)
	m.mu.Unlock()

	m.watchExit(rec)
	m.publishSpawned(rec)
	return m.assigned(rec, client, ModeSpawned), nil
}

// bindLocked moves rec out of the pool (if it was there) and keys it by
// client in one step. m.mu must be held.
func (m *Manager) bindLocked(rec *Record, client *Client, dedicated bool) {
	rec.assign(client, dedicated)
	m.registry.Register(rec, client)
	client.attach(rec)
	m.updateGaugesLocked()
}

func (m *Manager) assigned(rec *Record, client *Client, mode string) *Record {
	metrics.IncAssignment(mode)
	m.logger.Debug("Client assigned", "client", client.ID, "process", rec.ID, "mode", mode)
	m.publish(events.ProcessAssignedEvent{
		ProcessID: rec.ID,
		ClientID:  string(client.ID),
		Mode:      mode,
		Dedicated: rec.Dedicated(),
		Timestamp: timestamp(),
	})
	return rec
}

func (m *Manager) fail(err error) error {
	code := ErrorCode(err)
	if code == "" {
		code = "SPAWN_FAILED"
	}
	metrics.IncAssignmentError(code)
	return err
}

// Destroy terminates an assigned or prepared worker and removes every
// registry key that references it.
func (m *Manager) Destroy(processID string) error {
	m.mu.Lock()
	rec, clients, ok := m.registry.Remove(processID)
	if !ok {
		rec, ok = m.prepared.Remove(processID)
	}
	if !ok {
		m.mu.Unlock()
		return &Error{Code: CodeProcessNotFound, Message: fmt.Sprintf("process %q not found", processID)}
	}
	m.updateGaugesLocked()
	m.mu.Unlock()

	rec.release()
	ids := make([]string, len(clients))
	for i, c := range clients {
		c.detach()
		ids[i] = string(c.ID)
	}
	m.discard(rec)

	m.logger.Info("Worker destroyed", "process", processID, "clients", len(clients))
	m.publish(events.ProcessDestroyedEvent{ProcessID: processID, Clients: ids, Timestamp: timestamp()})
	return nil
}

// Shutdown refuses new work, destroys all workers and waits until the
// referenced ones have exited or ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	prepared := m.prepared.Drain()
	var assigned []*Record
	for _, rec := range m.registry.Records() {
		if removed, clients, ok := m.registry.Remove(rec.ID); ok {
			for _, c := range clients {
				c.detach()
			}
			assigned = append(assigned, removed)
		}
	}
	m.updateGaugesLocked()
	m.mu.Unlock()

	for _, rec := range prepared {
		rec.Handle.Unref()
		m.discard(rec)
	}
	for _, rec := range assigned {
		rec.release()
		m.discard(rec)
	}

	m.logger.Info("Pool shutting down", "prepared", len(prepared), "assigned", len(assigned))

	for _, rec := range assigned {
		if !rec.Handle.Referenced() {
			continue
		}
		select {
		case <-rec.Handle.Done():
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", rec.ID, ctx.Err())
		}
	}
	return nil
}

// Lookup returns a registered client and its record.
func (m *Manager) Lookup(id ClientID) (*Client, *Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, rec, ok := m.registry.Lookup(id)
	if !ok {
		return nil, nil, &Error{Code: CodeClientNotFound, Message: fmt.Sprintf("client %q not found", id)}
	}
	return c, rec, nil
}

// Record returns an assigned or prepared record by process id.
func (m *Manager) Record(processID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.registry.Get(processID); ok {
		return rec, nil
	}
	for _, rec := range m.prepared.Records() {
		if rec.ID == processID {
			return rec, nil
		}
	}
	return nil, &Error{Code: CodeProcessNotFound, Message: fmt.Sprintf("process %q not found", processID)}
}

// Records returns prepared records followed by assigned ones.
func (m *Manager) Records() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(m.prepared.Records(), m.registry.Records()...)
}

// Stats returns current pool occupancy.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Prepared:  m.prepared.Size(),
		Processes: m.registry.Len(),
		Clients:   m.registry.ClientCount(),
	}
}

func (m *Manager) updateGaugesLocked() {
	metrics.SetPoolSize(m.prepared.Size(), m.registry.Len(), m.registry.ClientCount())
}

// watchExit reports worker exits. A prepared worker that dies leaves the
// pool; assigned records stay registered.
func (m *Manager) watchExit(rec *Record) {
	rec.Handle.OnExit(func(err error) {
		metrics.IncExited()
		m.logger.Info("Worker exited", "process", rec.ID, "pid", rec.Handle.Pid(), "error", err)

		m.mu.Lock()
		if rec.Prepared() {
			if _, ok := m.prepared.Remove(rec.ID); ok {
				rec.setPrepared(false)
				m.updateGaugesLocked()
			}
		}
		m.mu.Unlock()

		ev := events.ProcessExitedEvent{ProcessID: rec.ID, PID: rec.Handle.Pid(), Timestamp: timestamp()}
		if err != nil {
			ev.Error = err.Error()
		}
		m.publish(ev)
	})
}

// discard kills the worker and closes its channel.
func (m *Manager) discard(rec *Record) {
	if err := rec.Handle.Kill(); err != nil {
		m.logger.Warn("Failed to terminate worker", "process", rec.ID, "error", err)
	}
	if err := rec.Channel.Close(); err != nil {
		m.logger.Debug("Failed to close channel", "process", rec.ID, "error", err)
	}
}

func (m *Manager) publishSpawned(rec *Record) {
	m.publish(events.ProcessSpawnedEvent{
		ProcessID: rec.ID,
		PID:       rec.Handle.Pid(),
		Strategy:  string(rec.Strategy),
		Timestamp: timestamp(),
	})
}

func (m *Manager) publish(ev events.Event) {
	if m.events != nil {
		m.events.Publish(ev)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
