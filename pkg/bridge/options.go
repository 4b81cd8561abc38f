package bridge

import (
	"time"
)

// Default supervisor tunables
const (
	DefaultPingTimeout     = 5 * time.Second
	DefaultStopGracePeriod = 3 * time.Second
	DefaultPendingTTL      = 10 * time.Second
	DefaultQueueSize       = 128
)

// Options contains the agent supervisor parameters
type Options struct {
	// AgentCmd is the agent command line (executable path and extra args).
	// When empty the agent is looked up next to the current executable
	// and then on PATH.
	AgentCmd []string

	// PingTimeout bounds the readiness probe on Start
	PingTimeout time.Duration

	// StopGracePeriod bounds the wait for a graceful agent exit on Stop
	StopGracePeriod time.Duration

	// PendingTTL bounds how long unacknowledged hotkey commands are tracked
	PendingTTL time.Duration

	// QueueSize is the per subscriber event queue capacity
	QueueSize int

	// Spawner launches the agent subprocess (exec based by default)
	Spawner Spawner
}

func (opts Options) withDefaults() Options {
	if len(opts.AgentCmd) == 0 {
		opts.AgentCmd = DefaultAgentCommand()
	}

	if opts.PingTimeout <= 0 {
		opts.PingTimeout = DefaultPingTimeout
	}

	if opts.StopGracePeriod <= 0 {
		opts.StopGracePeriod = DefaultStopGracePeriod
	}

	if opts.PendingTTL <= 0 {
		opts.PendingTTL = DefaultPendingTTL
	}

	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	if opts.Spawner == nil {
		opts.Spawner = &execSpawner{}
	}

	return opts
}
