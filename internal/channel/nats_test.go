package channel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runNATS(t *testing.T) string {
	t.Helper()
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	srv := natstest.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv.ClientURL()
}

func TestNATSChannelRoundTrip(t *testing.T) {
	url := runNATS(t)

	transport, err := NewNATSTransport(url, testLogger())
	require.NoError(t, err)
	defer transport.Close()
	assert.Equal(t, "nats", transport.Name())

	parent, err := transport.Create("rworker:process:7:1")
	require.NoError(t, err)
	defer parent.Close()

	att := parent.Attachment()
	assert.Contains(t, att.Env, EnvTransport+"=nats")
	assert.Contains(t, att.Env, EnvNATSURL+"="+url)
	assert.Empty(t, att.ExtraFiles)

	worker, err := OpenNATS(parent.ID(), url, testLogger())
	require.NoError(t, err)
	defer worker.Close()
	worker.Handle("echo", echoHandler)
	parent.Handle("echo", echoHandler)

	require.NoError(t, parent.Bind(newFakeProcess()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var down echoParams
	require.NoError(t, parent.Call(ctx, "echo", echoParams{Text: "down"}, &down))
	assert.Equal(t, "down", down.Text)

	var up echoParams
	require.NoError(t, worker.Call(ctx, "echo", echoParams{Text: "up"}, &up))
	assert.Equal(t, "up", up.Text)
}

func TestNATSChannelsAreIsolated(t *testing.T) {
	url := runNATS(t)

	transport, err := NewNATSTransport(url, testLogger())
	require.NoError(t, err)
	defer transport.Close()

	a, err := transport.Create("a")
	require.NoError(t, err)
	defer a.Close()
	b, err := transport.Create("b")
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, a.Bind(newFakeProcess()))
	require.NoError(t, b.Bind(newFakeProcess()))

	workerA, err := OpenNATS("a", url, testLogger())
	require.NoError(t, err)
	defer workerA.Close()
	workerA.Handle("whoami", func(context.Context, json.RawMessage) (any, error) { return "a", nil })

	workerB, err := OpenNATS("b", url, testLogger())
	require.NoError(t, err)
	defer workerB.Close()
	workerB.Handle("whoami", func(context.Context, json.RawMessage) (any, error) { return "b", nil })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var name string
	require.NoError(t, b.Call(ctx, "whoami", nil, &name))
	assert.Equal(t, "b", name)
	require.NoError(t, a.Call(ctx, "whoami", nil, &name))
	assert.Equal(t, "a", name)
}

func TestEmbeddedServer(t *testing.T) {
	srv := NewServer(ServerOptions{Port: -1, Logger: testLogger()})
	require.NoError(t, srv.Start())
	defer srv.Stop()

	assert.True(t, srv.IsRunning())

	transport, err := NewNATSTransport(srv.ClientURL(), testLogger())
	require.NoError(t, err)
	defer transport.Close()

	assert.Eventually(t, func() bool { return srv.NumClients() == 1 }, 2*time.Second, 10*time.Millisecond)
}
