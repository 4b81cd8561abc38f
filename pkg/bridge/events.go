package bridge

// Kind is a supervisor notification kind
type Kind string

// Supported notification kinds
const (
	KindReady  Kind = "ready"
	KindHotkey Kind = "hotkey"
	KindKey    Kind = "keyEvent"
	KindError  Kind = "error"
	KindExit   Kind = "exit"
	KindStderr Kind = "stderr"
)

// Event represents the supervisor notification interface
type Event interface {
	EventKind() Kind
}

// Handler consumes supervisor notifications. Handlers run on a
// dedicated goroutine per subscription and long running work should
// still be handed off to keep the subscription queue draining.
type Handler func(Event)

// ReadyEvent reports a completed agent readiness handshake
type ReadyEvent struct {
	Pid int
}

// EventKind returns the notification kind for the ready event
func (ReadyEvent) EventKind() Kind {
	return KindReady
}

// HotkeyEvent reports a registered key combination press
type HotkeyEvent struct {
	ID        string
	Keys      []string
	Modifiers []string
	Timestamp float64
}

// EventKind returns the notification kind for the hotkey event
func (HotkeyEvent) EventKind() Kind {
	return KindHotkey
}

// KeyEvent reports a single key transition seen while monitoring
type KeyEvent struct {
	Down      bool
	KeyCode   int
	Key       string
	Modifiers []string
	Timestamp float64
}

// EventKind returns the notification kind for the key event
func (KeyEvent) EventKind() Kind {
	return KindKey
}

// ErrorEvent reports an agent side failure. RegistrationID is set when
// the failure was correlated to a specific hotkey registration.
type ErrorEvent struct {
	Err            error
	RegistrationID string
}

// EventKind returns the notification kind for the error event
func (ErrorEvent) EventKind() Kind {
	return KindError
}

// ExitEvent reports an agent exit observed while the bridge was ready
type ExitEvent struct {
	Code      int
	Requested bool
}

// EventKind returns the notification kind for the exit event
func (ExitEvent) EventKind() Kind {
	return KindExit
}

// StderrEvent carries one diagnostic line from the agent's stderr
type StderrEvent struct {
	Line string
}

// EventKind returns the notification kind for the stderr event
func (StderrEvent) EventKind() Kind {
	return KindStderr
}
