package process

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/smazurov/rworker/internal/logging"
)

// ClusterSettings is the fork template of a Cluster.
type ClusterSettings struct {
	Exec     string
	ExecArgv []string
	Args     []string
	Cwd      string
	Silent   bool
	UID      *uint32
	GID      *uint32
}

// ClusterWorker is one process forked by a Cluster.
type ClusterWorker struct {
	ID      int
	Process *Handle
}

// Cluster is the leader side of a set of numbered worker processes. Each
// worker finds its number in ClusterWorkerEnv.
type Cluster struct {
	launcher Launcher
	isWorker bool
	logger   logging.Logger

	mu       sync.Mutex
	settings ClusterSettings
	nextID   int
	workers  map[int]*ClusterWorker
}

// NewCluster creates a cluster. isWorker marks the current process as a
// worker of another cluster, which forbids forking.
func NewCluster(launcher Launcher, isWorker bool, logger logging.Logger) *Cluster {
	return &Cluster{
		launcher: launcher,
		isWorker: isWorker,
		logger:   logger,
		workers:  make(map[int]*ClusterWorker),
	}
}

// IsWorker reports whether the current process is a cluster worker.
func (c *Cluster) IsWorker() bool {
	return c.isWorker
}

// Setup replaces the fork template used by subsequent Fork calls.
func (c *Cluster) Setup(settings ClusterSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings
}

// Settings returns the current fork template.
func (c *Cluster) Settings() ClusterSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Fork starts a worker from the current settings with env plus the worker
// marker. id labels the resulting handle.
func (c *Cluster) Fork(ctx context.Context, id string, env []string, files []*os.File) (*ClusterWorker, error) {
	if c.isWorker {
		return nil, ErrInvalidTopology
	}

	c.mu.Lock()
	settings := c.settings
	c.nextID++
	workerID := c.nextID
	c.mu.Unlock()

	if settings.Exec == "" {
		return nil, fmt.Errorf("cluster settings have no executable")
	}

	workerEnv := append(slices.Clone(env), ClusterWorkerEnv+"="+strconv.Itoa(workerID))
	handle, err := c.launcher.Launch(ctx, Spec{
		ID:         id,
		Path:       settings.Exec,
		Args:       slices.Concat(settings.ExecArgv, settings.Args),
		Dir:        settings.Cwd,
		Env:        workerEnv,
		ExtraFiles: files,
		Silent:     settings.Silent,
		UID:        settings.UID,
		GID:        settings.GID,
	})
	if err != nil {
		return nil, err
	}

	worker := &ClusterWorker{ID: workerID, Process: handle}
	c.mu.Lock()
	c.workers[workerID] = worker
	c.mu.Unlock()

	handle.OnExit(func(err error) {
		c.mu.Lock()
		delete(c.workers, workerID)
		c.mu.Unlock()
		c.logger.Debug("Cluster worker exited", "worker_id", workerID, "id", id, "error", err)
	})

	return worker, nil
}

// Workers returns the live workers ordered by id.
func (c *Cluster) Workers() []*ClusterWorker {
	c.mu.Lock()
	defer c.mu.Unlock()
	workers := make([]*ClusterWorker, 0, len(c.workers))
	for _, w := range c.workers {
		workers = append(workers, w)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })
	return workers
}
