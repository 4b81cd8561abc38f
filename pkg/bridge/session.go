package bridge

import (
	"time"

	"github.com/keytap/keytap/pkg/ipc/command"
)

// monitorSession mirrors the agent side key monitoring state. The
// active flag flips optimistically on call and resets on any agent
// exit. Callers synchronize access.
type monitorSession struct {
	active bool
	opts   command.MonitorOptions
	since  time.Time
}

func (ref *monitorSession) start(opts command.MonitorOptions, now time.Time) {
	ref.active = true
	ref.opts = opts
	ref.since = now
}

func (ref *monitorSession) reset() {
	*ref = monitorSession{}
}
