// Package tap abstracts the OS level input tap behind the keytap
// agent. Backends produce one event stream carrying raw key events and
// hotkey triggers; the agent serve loop translates it to the wire
// protocol.
package tap

import (
	"errors"
	"os"

	"github.com/keytap/keytap/pkg/consts"
)

// Backend names accepted by the agent's -tap flag
const (
	BackendSim  = "sim"
	BackendHook = "hook"
)

// Capability override values for consts.EnvCapability
const (
	CapabilityGranted = "granted"
	CapabilityDenied  = "denied"
)

// Tap backend errors
var (
	ErrNotPermitted    = errors.New("input tap capability not granted")
	ErrDuplicateHotkey = errors.New("hotkey id already registered")
	ErrUnknownHotkey   = errors.New("unknown hotkey id")
	ErrClosed          = errors.New("tap source closed")
)

// EventType discriminates tap stream events
type EventType string

// Tap stream event types
const (
	KeyDownEvent EventType = "keydown"
	KeyUpEvent   EventType = "keyup"
	TriggerEvent EventType = "trigger"
)

// Event is one tap backend occurrence. Trigger events carry the
// hotkey registration id, key events carry the key details.
type Event struct {
	Type      EventType
	HotkeyID  string
	KeyCode   int
	Key       string
	Modifiers []string
	Timestamp float64
}

// MonitorSpec describes the raw key streaming state. Enabled with
// neither AllKeys nor Keys set streams nothing.
type MonitorSpec struct {
	Enabled bool
	AllKeys bool
	Keys    []string
}

// Source is the tap backend contract. Open acquires the OS capability
// and starts the event stream, Close releases it and closes the
// stream. Registrations and the monitoring state may change while the
// stream is live.
type Source interface {
	Open() error
	Close() error
	RegisterHotkey(id string, keys []string, modifiers []string) error
	UnregisterHotkey(id string) error
	SetMonitoring(spec MonitorSpec) error
	Events() <-chan Event
}

// capabilityFromEnv reports the consts.EnvCapability override when one
// is set. Tests and demos use it to reproduce permission failures
// without touching OS settings.
func capabilityFromEnv() (granted bool, overridden bool) {
	switch os.Getenv(consts.EnvCapability) {
	case CapabilityGranted:
		return true, true
	case CapabilityDenied:
		return false, true
	}

	return false, false
}
