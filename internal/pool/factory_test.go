package pool

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/rworker/internal/channel"
	"github.com/smazurov/rworker/internal/process"
)

func TestFactoryDirectFork(t *testing.T) {
	h := newHarness(t, testHost())

	rec, err := h.factory.Create(context.Background(), process.ForkOptions{UseCluster: process.Bool(false)})
	require.NoError(t, err)

	assert.Equal(t, "rworker:process:1:1700000000000", rec.ID)
	assert.Equal(t, process.StrategyDirect, rec.Strategy)
	assert.False(t, rec.Prepared())
	assert.False(t, rec.Dedicated())
	assert.Nil(t, rec.Owner())

	spec := h.launcher.launched()[0]
	assert.Equal(t, "/usr/local/bin/rworker", spec.Path)
	assert.Equal(t, []string{"--trace", process.WorkerFlag, rec.ID}, spec.Args)
	assert.Equal(t, "/srv/app", spec.Dir)
	assert.Contains(t, spec.Env, "PATH=/usr/bin")
	assert.Contains(t, spec.Env, channel.EnvTransport+"=fake")

	assert.Equal(t, ProcessListeners, rec.Handle.MaxListeners())
	ch := h.transport.created()[0]
	assert.Equal(t, rec.ID, ch.ID())
	assert.True(t, ch.Bound())
	assert.Same(t, rec.Channel, channel.Channel(ch))
}

func TestFactoryClusterForkByDefault(t *testing.T) {
	h := newHarness(t, testHost())

	rec, err := h.factory.Create(context.Background(), process.ForkOptions{Cwd: "/work"})
	require.NoError(t, err)

	assert.Equal(t, process.StrategyCluster, rec.Strategy)
	spec := h.launcher.launched()[0]
	assert.Equal(t, []string{"--trace", process.WorkerFlag, rec.ID, "/work"}, spec.Args)
	assert.Equal(t, "/work", spec.Dir)
	assert.Contains(t, spec.Env, process.ClusterWorkerEnv+"=1")
	require.Len(t, h.cluster.Workers(), 1)
	assert.Same(t, rec.Handle, h.cluster.Workers()[0].Process)
}

func TestFactoryKeepsExplicitExecArgv(t *testing.T) {
	h := newHarness(t, testHost())

	_, err := h.factory.Create(context.Background(), process.ForkOptions{
		UseCluster: process.Bool(false),
		ExecArgv:   []string{"--inspect-brk"},
		Args:       []string{"extra"},
	})
	require.NoError(t, err)

	spec := h.launcher.launched()[0]
	assert.Equal(t, []string{"--inspect-brk", process.WorkerFlag, "rworker:process:1:1700000000000", "extra"}, spec.Args)
}

func TestFactoryClusterWorkerDefaultsToDirect(t *testing.T) {
	host := testHost()
	host.IsClusterWorker = true
	h := newHarness(t, host)

	rec, err := h.factory.Create(context.Background(), process.ForkOptions{})
	require.NoError(t, err)
	assert.Equal(t, process.StrategyDirect, rec.Strategy)
}

func TestFactoryInvalidTopology(t *testing.T) {
	host := testHost()
	host.IsClusterWorker = true
	h := newHarness(t, host)

	rec, err := h.factory.Create(context.Background(), process.ForkOptions{UseCluster: process.Bool(true)})
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrInvalidTopology)
	assert.ErrorIs(t, err, process.ErrInvalidTopology)
	assert.Equal(t, CodeInvalidTopology, ErrorCode(err))

	assert.Empty(t, h.launcher.launched())
	require.Len(t, h.transport.created(), 1)
	assert.True(t, h.transport.created()[0].isClosed())
}

func TestFactoryPassesSpawnErrorsThrough(t *testing.T) {
	h := newHarness(t, testHost())
	launchErr := &os.PathError{Op: "fork/exec", Path: "/usr/local/bin/rworker", Err: fs.ErrNotExist}
	h.launcher.err = launchErr

	_, err := h.factory.Create(context.Background(), process.ForkOptions{UseCluster: process.Bool(false)})
	assert.Same(t, launchErr, err)
	assert.Empty(t, ErrorCode(err))
	assert.True(t, h.transport.created()[0].isClosed())
}

func TestFactoryChannelErrors(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		h := newHarness(t, testHost())
		h.transport.err = errors.New("no pipes left")

		_, err := h.factory.Create(context.Background(), process.ForkOptions{})
		require.ErrorContains(t, err, "no pipes left")
		assert.Empty(t, h.launcher.launched())
	})

	t.Run("bind", func(t *testing.T) {
		h := newHarness(t, testHost())
		h.transport.bindErr = channel.ErrClosed

		_, err := h.factory.Create(context.Background(), process.ForkOptions{UseCluster: process.Bool(false)})
		require.ErrorIs(t, err, channel.ErrClosed)

		spec := h.launcher.launched()[0]
		assert.NotEmpty(t, h.launcher.signaler(spec.ID).sent(), "worker should be terminated")
		assert.True(t, h.transport.created()[0].isClosed())
	})
}

func TestFactoryIDsAreUnique(t *testing.T) {
	h := newHarness(t, testHost())
	seen := map[string]bool{}
	for range 5 {
		rec, err := h.factory.Create(context.Background(), process.ForkOptions{UseCluster: process.Bool(false)})
		require.NoError(t, err)
		assert.False(t, seen[rec.ID], "duplicate id %s", rec.ID)
		seen[rec.ID] = true
	}
	assert.Contains(t, seen, "rworker:process:5:1700000000000")
}
