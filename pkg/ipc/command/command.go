package command

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message errors
var (
	ErrUnknownMessage = errors.New("unknown command type")
	ErrMissingField   = errors.New("missing required command field")
)

// MessageName is a command ID type (the "type" field on the wire)
type MessageName string

// Supported commands
const (
	PingName             MessageName = "ping"
	RegisterHotkeyName   MessageName = "register-hotkey"
	UnregisterHotkeyName MessageName = "unregister-hotkey"
	StartMonitoringName  MessageName = "start-monitoring"
	StopMonitoringName   MessageName = "stop-monitoring"
)

// Message represents the command message interface
type Message interface {
	GetName() MessageName
}

// Ping is a liveness probe command (the agent answers with a pong event)
type Ping struct{}

// GetName returns the command message ID for the ping command
func (m *Ping) GetName() MessageName {
	return PingName
}

// RegisterHotkey contains the register hotkey command fields
type RegisterHotkey struct {
	ID        string   `json:"id"`
	Keys      []string `json:"keys"`
	Modifiers []string `json:"modifiers"`
}

// GetName returns the command message ID for the register hotkey command
func (m *RegisterHotkey) GetName() MessageName {
	return RegisterHotkeyName
}

// UnregisterHotkey contains the unregister hotkey command fields
type UnregisterHotkey struct {
	ID string `json:"id"`
}

// GetName returns the command message ID for the unregister hotkey command
func (m *UnregisterHotkey) GetName() MessageName {
	return UnregisterHotkeyName
}

// MonitorOptions contains the key monitoring options
type MonitorOptions struct {
	AllKeys bool     `json:"allKeys,omitempty"`
	Keys    []string `json:"keys,omitempty"`
}

// StartMonitoring contains the start monitoring command fields
type StartMonitoring struct {
	Options MonitorOptions `json:"options"`
}

// GetName returns the command message ID for the start monitoring command
func (m *StartMonitoring) GetName() MessageName {
	return StartMonitoringName
}

// StopMonitoring contains the stop monitoring command fields
type StopMonitoring struct{}

// GetName returns the command message ID for the stop monitoring command
func (m *StopMonitoring) GetName() MessageName {
	return StopMonitoringName
}

// Encode encodes the message instance to a flat JSON object with the
// command type in the "type" field
func Encode(m Message) ([]byte, error) {
	switch m.(type) {
	case *Ping, *RegisterHotkey, *UnregisterHotkey, *StartMonitoring, *StopMonitoring:
	default:
		return nil, ErrUnknownMessage
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	head := fmt.Sprintf(`{"type":%q`, m.GetName())
	if len(payload) > 2 {
		return append([]byte(head+","), payload[1:]...), nil
	}

	return []byte(head + "}"), nil
}

// Decode decodes JSON data into a command message instance
func Decode(data []byte) (Message, error) {
	var probe struct {
		Type MessageName `json:"type"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case PingName:
		return &Ping{}, nil
	case RegisterHotkeyName:
		var cmd RegisterHotkey
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, err
		}

		if cmd.ID == "" {
			return nil, fmt.Errorf("%w: register-hotkey.id", ErrMissingField)
		}

		if len(cmd.Keys) == 0 {
			return nil, fmt.Errorf("%w: register-hotkey.keys", ErrMissingField)
		}

		return &cmd, nil
	case UnregisterHotkeyName:
		var cmd UnregisterHotkey
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, err
		}

		if cmd.ID == "" {
			return nil, fmt.Errorf("%w: unregister-hotkey.id", ErrMissingField)
		}

		return &cmd, nil
	case StartMonitoringName:
		var cmd StartMonitoring
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, err
		}

		return &cmd, nil
	case StopMonitoringName:
		return &StopMonitoring{}, nil
	default:
		return nil, ErrUnknownMessage
	}
}
