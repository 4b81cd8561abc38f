package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event errors
var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrMissingField = errors.New("missing required event field")
)

// Name is an event ID type (the "type" field on the wire)
type Name string

// Supported events
const (
	PongName            Name = "pong"
	SuccessName         Name = "success"
	ErrorName           Name = "error"
	HotkeyTriggeredName Name = "hotkey-triggered"
	KeyDownName         Name = "keydown"
	KeyUpName           Name = "keyup"
)

// Message represents the event message interface
type Message interface {
	GetName() Name
}

// Pong answers a ping command
type Pong struct{}

// GetName returns the event message ID for the pong event
func (m *Pong) GetName() Name {
	return PongName
}

// CorrelationData identifies the hotkey registration an ack or an
// error refers to
type CorrelationData struct {
	ID string `json:"id"`
}

// Success acknowledges a register or unregister hotkey command
type Success struct {
	Data CorrelationData `json:"data"`
}

// GetName returns the event message ID for the success event
func (m *Success) GetName() Name {
	return SuccessName
}

// Error reports an agent side failure. Data is present only when the
// failure maps to a specific hotkey registration.
type Error struct {
	Message string           `json:"message"`
	Data    *CorrelationData `json:"data,omitempty"`
}

// GetName returns the event message ID for the error event
func (m *Error) GetName() Name {
	return ErrorName
}

// HotkeyTriggered reports a registered key combination press
type HotkeyTriggered struct {
	ID        string  `json:"id"`
	Timestamp float64 `json:"timestamp"`
}

// GetName returns the event message ID for the hotkey triggered event
func (m *HotkeyTriggered) GetName() Name {
	return HotkeyTriggeredName
}

// KeyInfo contains the fields shared by the keyboard events
type KeyInfo struct {
	KeyCode   int      `json:"keyCode"`
	Key       string   `json:"key,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
	Timestamp float64  `json:"timestamp"`
}

// KeyDown reports a key press while monitoring is active
type KeyDown struct {
	KeyInfo
}

// GetName returns the event message ID for the keydown event
func (m *KeyDown) GetName() Name {
	return KeyDownName
}

// KeyUp reports a key release while monitoring is active
type KeyUp struct {
	KeyInfo
}

// GetName returns the event message ID for the keyup event
func (m *KeyUp) GetName() Name {
	return KeyUpName
}

// Encode encodes the message instance to a flat JSON object with the
// event type in the "type" field
func Encode(m Message) ([]byte, error) {
	switch m.(type) {
	case *Pong, *Success, *Error, *HotkeyTriggered, *KeyDown, *KeyUp:
	default:
		return nil, ErrUnknownEvent
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

// Decode decodes JSON data into an event message instance
func Decode(data []byte) (Message, error) {
	var probe struct {
		Type Name `json:"type"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case PongName:
		return &Pong{}, nil
	case SuccessName:
		var evt Success
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, err
		}

		if evt.Data.ID == "" {
			return nil, fmt.Errorf("%w: success.data.id", ErrMissingField)
		}

		return &evt, nil
	case ErrorName:
		var evt Error
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, err
		}

		if evt.Message == "" {
			return nil, fmt.Errorf("%w: error.message", ErrMissingField)
		}

		if evt.Data != nil && evt.Data.ID == "" {
			evt.Data = nil
		}

		return &evt, nil
	case HotkeyTriggeredName:
		var evt HotkeyTriggered
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, err
		}

		if evt.ID == "" {
			return nil, fmt.Errorf("%w: hotkey-triggered.id", ErrMissingField)
		}

		return &evt, nil
	case KeyDownName, KeyUpName:
		var fields struct {
			KeyCode   *int     `json:"keyCode"`
			Timestamp *float64 `json:"timestamp"`
		}

		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}

		if fields.KeyCode == nil {
			return nil, fmt.Errorf("%w: %s.keyCode", ErrMissingField, probe.Type)
		}

		if fields.Timestamp == nil {
			return nil, fmt.Errorf("%w: %s.timestamp", ErrMissingField, probe.Type)
		}

		var info KeyInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, err
		}

		if probe.Type == KeyDownName {
			return &KeyDown{KeyInfo: info}, nil
		}

		return &KeyUp{KeyInfo: info}, nil
	default:
		return nil, ErrUnknownEvent
	}
}
