package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/smazurov/rworker/internal/channel"
	"github.com/smazurov/rworker/internal/logging"
	"github.com/smazurov/rworker/internal/metrics"
	"github.com/smazurov/rworker/internal/process"
)

// ProcessListeners is the exit listener ceiling set on every new worker.
const ProcessListeners = 1000

// IDPrefix starts every process id.
const IDPrefix = "rworker"

// FactoryOptions configures a Factory.
type FactoryOptions struct {
	// Host supplies fork defaults (required).
	Host process.Host

	// Direct and Cluster are the spawn strategies (required).
	Direct  process.Spawner
	Cluster process.Spawner

	// Transport creates the channel for each worker (required).
	Transport channel.Transport

	// Now is the id clock. If nil, uses time.Now.
	Now func() time.Time

	// Logger for factory operations. If nil, uses slog.Default().
	Logger logging.Logger
}

// Factory spawns one worker and binds a channel to it.
type Factory struct {
	host      process.Host
	direct    process.Spawner
	cluster   process.Spawner
	transport channel.Transport
	now       func() time.Time
	logger    logging.Logger
	seq       atomic.Uint64
}

// NewFactory creates a factory.
func NewFactory(opts *FactoryOptions) *Factory {
	if opts == nil || opts.Direct == nil || opts.Cluster == nil || opts.Transport == nil {
		panic("FactoryOptions with Direct, Cluster and Transport is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Factory{
		host:      opts.Host,
		direct:    opts.Direct,
		cluster:   opts.Cluster,
		transport: opts.Transport,
		now:       now,
		logger:    logger,
	}
}

// nextID returns "<prefix>:process:<n>:<unix millis>".
func (f *Factory) nextID() string {
	return fmt.Sprintf("%s:process:%d:%d", IDPrefix, f.seq.Add(1), f.now().UnixMilli())
}

// Create spawns a worker for opts and returns its record with the channel
// bound. Spawn failures from the OS are returned as is; a cluster fork from
// a cluster worker fails with ErrInvalidTopology.
func (f *Factory) Create(ctx context.Context, opts process.ForkOptions) (*Record, error) {
	resolved := opts.Resolve(f.host)
	id := f.nextID()

	ch, err := f.transport.Create(id)
	if err != nil {
		return nil, fmt.Errorf("create %s channel: %w", f.transport.Name(), err)
	}

	// Channel files must land on the first inherited descriptors.
	att := ch.Attachment()
	resolved.Env = append(resolved.Env, att.Env...)
	resolved.ExtraFiles = slices.Concat(att.ExtraFiles, resolved.ExtraFiles)

	spawner := f.direct
	if resolved.Cluster() {
		spawner = f.cluster
	}
	strategy := spawner.Strategy()

	handle, err := spawner.Spawn(ctx, id, resolved)
	if err != nil {
		ch.Close()
		metrics.IncSpawnFailure(string(strategy))
		if errors.Is(err, process.ErrInvalidTopology) {
			return nil, invalidTopology(err)
		}
		f.logger.Warn("Failed to spawn worker", "id", id, "strategy", strategy, "error", err)
		return nil, err
	}

	handle.SetMaxListeners(ProcessListeners)

	ch.Handle(channel.MethodReady, func(context.Context, json.RawMessage) (any, error) {
		f.logger.Debug("Worker ready", "id", id, "pid", handle.Pid())
		return nil, nil
	})

	if err := ch.Bind(handle); err != nil {
		ch.Close()
		_ = handle.Kill()
		metrics.IncSpawnFailure(string(strategy))
		return nil, fmt.Errorf("bind channel %s: %w", id, err)
	}

	metrics.IncSpawned(string(strategy))
	f.logger.Debug("Worker spawned", "id", id, "pid", handle.Pid(), "strategy", strategy, "cwd", resolved.Cwd)

	return &Record{
		ID:        id,
		Handle:    handle,
		Channel:   ch,
		Strategy:  strategy,
		CreatedAt: f.now(),
	}, nil
}
