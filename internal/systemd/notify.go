package systemd

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier reports service state to the systemd supervisor. Outside a
// notify-type unit every call is a no-op.
type Notifier struct {
	notify func(unsetEnvironment bool, state string) (bool, error)
}

// NewNotifier creates a notifier using sd_notify.
func NewNotifier() *Notifier {
	return &Notifier{notify: daemon.SdNotify}
}

// Ready signals that startup has finished.
func (n *Notifier) Ready() (bool, error) {
	return n.send(daemon.SdNotifyReady)
}

// Stopping signals that shutdown has begun.
func (n *Notifier) Stopping() (bool, error) {
	return n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl.
func (n *Notifier) Status(format string, args ...any) (bool, error) {
	return n.send("STATUS=" + fmt.Sprintf(format, args...))
}

func (n *Notifier) send(state string) (bool, error) {
	sent, err := n.notify(false, state)
	if err != nil {
		return false, fmt.Errorf("sd_notify %q: %w", state, err)
	}
	return sent, nil
}
