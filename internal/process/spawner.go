package process

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/smazurov/rworker/internal/logging"
)

// ErrInvalidTopology is returned when a cluster worker asks for a cluster fork.
var ErrInvalidTopology = errors.New("cluster workers can not also be cluster leaders")

// Strategy names a spawn strategy.
type Strategy string

// Spawn strategies.
const (
	StrategyDirect  Strategy = "direct"
	StrategyCluster Strategy = "cluster"
)

// Spawner starts one worker process for a record id.
// opts must already be resolved against the host.
type Spawner interface {
	Strategy() Strategy
	Spawn(ctx context.Context, id string, opts ForkOptions) (*Handle, error)
}

// DirectFork execs the worker executable as a plain child process:
// <exec> <execArgv...> --rwProcess <id> <args...>
type DirectFork struct {
	launcher Launcher
	logger   logging.Logger
}

// NewDirectFork creates the direct-fork strategy.
func NewDirectFork(launcher Launcher, logger logging.Logger) *DirectFork {
	return &DirectFork{launcher: launcher, logger: logger}
}

// Strategy implements Spawner.
func (d *DirectFork) Strategy() Strategy { return StrategyDirect }

// Spawn implements Spawner. The cluster worker marker is not passed on, a
// direct child is never a cluster worker.
func (d *DirectFork) Spawn(ctx context.Context, id string, opts ForkOptions) (*Handle, error) {
	args := slices.Concat(opts.ExecArgv, []string{WorkerFlag, id}, opts.Args)
	d.logger.Debug("Direct fork", "id", id, "path", opts.ExecPath, "cwd", opts.Cwd)
	return d.launcher.Launch(ctx, Spec{
		ID:         id,
		Path:       opts.ExecPath,
		Args:       args,
		Dir:        opts.Cwd,
		Env:        withoutEnv(opts.Env, ClusterWorkerEnv),
		ExtraFiles: opts.ExtraFiles,
		Silent:     opts.Silent,
		UID:        opts.UID,
		GID:        opts.GID,
	})
}

// ClusterFork forks the worker through the leader's Cluster:
// <exec> <execArgv...> --rwProcess <id> <cwd>
type ClusterFork struct {
	cluster *Cluster
	logger  logging.Logger

	// forkMu keeps Setup and Fork of one spawn together.
	forkMu sync.Mutex
}

// NewClusterFork creates the cluster-fork strategy.
func NewClusterFork(cluster *Cluster, logger logging.Logger) *ClusterFork {
	return &ClusterFork{cluster: cluster, logger: logger}
}

// Strategy implements Spawner.
func (c *ClusterFork) Strategy() Strategy { return StrategyCluster }

// Spawn implements Spawner. It fails with ErrInvalidTopology when the
// current process is a cluster worker.
func (c *ClusterFork) Spawn(ctx context.Context, id string, opts ForkOptions) (*Handle, error) {
	if c.cluster.IsWorker() {
		return nil, ErrInvalidTopology
	}

	c.forkMu.Lock()
	defer c.forkMu.Unlock()

	// The trailing cwd keeps workers that chdir themselves working.
	c.cluster.Setup(ClusterSettings{
		Exec:     opts.ExecPath,
		ExecArgv: opts.ExecArgv,
		Args:     []string{WorkerFlag, id, opts.Cwd},
		Cwd:      opts.Cwd,
		Silent:   opts.Silent,
		UID:      opts.UID,
		GID:      opts.GID,
	})

	worker, err := c.cluster.Fork(ctx, id, opts.Env, opts.ExtraFiles)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Cluster fork", "id", id, "worker_id", worker.ID, "pid", worker.Process.Pid())
	return worker.Process, nil
}
