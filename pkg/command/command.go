package command

// Command type constants
const (
	Run     Type = "run"
	Probe   Type = "probe"
	Version Type = "version"
)

// Type is the command type name
type Type string

// Command state constants
const (
	StateUnknown   = "unknown"
	StateError     = "error"
	StateStarted   = "started"
	StateCompleted = "completed"
	StateExited    = "exited"
	StateDone      = "done"
)

// State is the command state type
type State string
