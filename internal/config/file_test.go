package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileValid(t *testing.T) {
	path := writeTempConfig(t, `
[server]
port = ":8090"

[auth]
username = "admin"
password = "secret"

[pool]
prepared = 3
use_cluster = "false"
cwd = "/srv/app"
shutdown_timeout = "30s"

[channel]
transport = "nats"

[nats]
port = 4333

[logging]
level = "debug"
format = "json"
pool = "warn"
`)

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":8090", f.Server.Port)
	assert.Equal(t, 3, f.Pool.Prepared)
	assert.Equal(t, 30*time.Second, f.Pool.Timeout())
	assert.Equal(t, "nats", f.Channel.Transport)
	assert.Equal(t, 4333, f.NATS.Port)

	opts := f.Pool.ForkOptions()
	assert.Equal(t, "/srv/app", opts.Cwd)
	require.NotNil(t, opts.UseCluster)
	assert.False(t, *opts.UseCluster)
}

func TestLoadFileReportsEveryProblem(t *testing.T) {
	path := writeTempConfig(t, `
[auth]
username = "admin"

[pool]
prepared = -1
use_cluster = "sometimes"
shutdown_timeout = "soon"

[channel]
transport = "carrier-pigeon"

[nats]
port = 70000

[logging]
level = "loud"
format = "xml"
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	for _, want := range []string{
		"pool.prepared",
		"pool.use_cluster",
		"pool.shutdown_timeout",
		"channel.transport",
		"nats.port",
		"auth:",
		"logging.level",
		"logging.format",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("does-not-exist.toml")
	assert.Error(t, err)
}

func TestLoadPoolConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, "[server]\nport = \":8090\"\n")

	cfg, err := LoadPoolConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Prepared)
	assert.Equal(t, DefaultUseCluster, cfg.UseCluster)
	assert.Equal(t, DefaultShutdownTimeout, cfg.Timeout())
	assert.Nil(t, cfg.ForkOptions().UseCluster)
}

func TestParseUseCluster(t *testing.T) {
	assert.Nil(t, ParseUseCluster("auto"))
	assert.Nil(t, ParseUseCluster(""))
	require.NotNil(t, ParseUseCluster("true"))
	assert.True(t, *ParseUseCluster("true"))
	assert.False(t, *ParseUseCluster("false"))
}
