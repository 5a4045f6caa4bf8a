package systemd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierStates(t *testing.T) {
	var states []string
	n := &Notifier{notify: func(_ bool, state string) (bool, error) {
		states = append(states, state)
		return true, nil
	}}

	_, err := n.Ready()
	require.NoError(t, err)
	_, err = n.Status("%d prepared", 3)
	require.NoError(t, err)
	_, err = n.Stopping()
	require.NoError(t, err)

	assert.Equal(t, []string{"READY=1", "STATUS=3 prepared", "STOPPING=1"}, states)
}

func TestNotifierError(t *testing.T) {
	n := &Notifier{notify: func(bool, string) (bool, error) {
		return false, errors.New("socket gone")
	}}

	sent, err := n.Ready()
	assert.False(t, sent)
	assert.ErrorContains(t, err, "socket gone")
}

func TestNotifierOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	sent, err := NewNotifier().Ready()
	require.NoError(t, err)
	assert.False(t, sent)
}
