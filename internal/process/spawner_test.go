package process

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectForkCommandLine(t *testing.T) {
	launcher := &fakeLauncher{}
	spawner := NewDirectFork(launcher, testLogger())
	opts := ForkOptions{UseCluster: Bool(false), Args: []string{"extra"}}.Resolve(testHost())

	h, err := spawner.Spawn(context.Background(), "rworker:process:1:1", opts)
	require.NoError(t, err)
	assert.Equal(t, "rworker:process:1:1", h.ID())
	assert.Equal(t, StrategyDirect, spawner.Strategy())

	spec := launcher.lastSpec()
	assert.Equal(t, "/usr/bin/rworker", spec.Path)
	assert.Equal(t, []string{"--log-level=debug", WorkerFlag, "rworker:process:1:1", "extra"}, spec.Args)
	assert.Equal(t, "/srv", spec.Dir)
	assert.Equal(t, []string{"A=1"}, spec.Env)
}

func TestDirectForkDropsClusterWorkerMarker(t *testing.T) {
	launcher := &fakeLauncher{}
	host := testHost()
	host.IsClusterWorker = true
	host.Env = []string{"A=1", ClusterWorkerEnv + "=3"}
	opts := ForkOptions{Args: []string{"job"}}.Resolve(host)
	require.False(t, opts.Cluster())

	_, err := NewDirectFork(launcher, testLogger()).Spawn(context.Background(), "rworker:process:1:1", opts)
	require.NoError(t, err)

	spec := launcher.lastSpec()
	assert.Equal(t, []string{"A=1"}, spec.Env)
	assert.Contains(t, opts.Env, ClusterWorkerEnv+"=3", "resolved options are left alone")
}

func TestDirectForkPropagatesLaunchError(t *testing.T) {
	launchErr := errors.New("fork: resource temporarily unavailable")
	spawner := NewDirectFork(&fakeLauncher{err: launchErr}, testLogger())

	_, err := spawner.Spawn(context.Background(), "id", ForkOptions{}.Resolve(testHost()))
	assert.Same(t, launchErr, err)
}

func TestClusterForkCommandLine(t *testing.T) {
	launcher := &fakeLauncher{}
	cluster := NewCluster(launcher, false, testLogger())
	spawner := NewClusterFork(cluster, testLogger())
	opts := ForkOptions{Cwd: "/work"}.Resolve(testHost())

	h, err := spawner.Spawn(context.Background(), "rworker:process:2:1", opts)
	require.NoError(t, err)
	assert.Equal(t, StrategyCluster, spawner.Strategy())

	spec := launcher.lastSpec()
	assert.Equal(t, []string{"--log-level=debug", WorkerFlag, "rworker:process:2:1", "/work"}, spec.Args)
	assert.Equal(t, "/work", spec.Dir)
	assert.Contains(t, spec.Env, ClusterWorkerEnv+"=1")
	assert.Contains(t, spec.Env, "A=1")

	workers := cluster.Workers()
	require.Len(t, workers, 1)
	assert.Same(t, h, workers[0].Process)
	assert.Equal(t, "/work", cluster.Settings().Cwd)
}

func TestClusterForkFromWorkerIsInvalidTopology(t *testing.T) {
	launcher := &fakeLauncher{}
	spawner := NewClusterFork(NewCluster(launcher, true, testLogger()), testLogger())

	_, err := spawner.Spawn(context.Background(), "id", ForkOptions{UseCluster: Bool(true)}.Resolve(testHost()))
	assert.ErrorIs(t, err, ErrInvalidTopology)
	assert.Empty(t, launcher.specs, "nothing may be launched")
}

func TestClusterDropsExitedWorkers(t *testing.T) {
	launcher := &fakeLauncher{}
	cluster := NewCluster(launcher, false, testLogger())
	cluster.Setup(ClusterSettings{Exec: "/usr/bin/rworker"})

	first, err := cluster.Fork(context.Background(), "a", nil, nil)
	require.NoError(t, err)
	second, err := cluster.Fork(context.Background(), "b", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)

	first.Process.NotifyExit(nil)

	workers := cluster.Workers()
	require.Len(t, workers, 1)
	assert.Equal(t, 2, workers[0].ID)
}

func TestClusterForkWithoutSettings(t *testing.T) {
	cluster := NewCluster(&fakeLauncher{}, false, testLogger())
	_, err := cluster.Fork(context.Background(), "a", nil, nil)
	assert.Error(t, err)
}
