// Package systemd reports service state to the systemd supervisor over
// NOTIFY_SOCKET. Outside a Type=notify unit every call is a no-op.
package systemd

import (
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify state updates.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier returns a notifier logging failures to logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready reports that the listener is bound and streams can be served.
func (n *Notifier) Ready(addr string) {
	n.send(daemon.SdNotifyReady, statusLine(addr))
}

// Stopping reports that the server is draining sessions.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status updates the free-form status line shown by systemctl.
func (n *Notifier) Status(msg string) {
	n.send("STATUS=" + msg)
}

func (n *Notifier) send(states ...string) {
	for _, state := range states {
		sent, err := daemon.SdNotify(false, state)
		if err != nil {
			n.logger.Warn("systemd notify failed", "state", state, "error", err)
			return
		}
		if !sent {
			return
		}
		n.logger.Debug("systemd notified", "state", state)
	}
}

// statusLine is the STATUS= payload for a listening address.
func statusLine(addr string) string {
	return fmt.Sprintf("STATUS=serving MJPEG on %s", addr)
}
