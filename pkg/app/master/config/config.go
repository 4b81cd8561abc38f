package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/keytap/keytap/pkg/combo"
)

// HotkeyBinding declares one hotkey combination to register with the agent
type HotkeyBinding struct {
	Keys      []string `json:"keys"`
	Modifiers []string `json:"modifiers,omitempty"`
	Label     string   `json:"label,omitempty"`
}

// String renders the binding the way it reads in CLI specs ("control+shift+k")
func (ref *HotkeyBinding) String() string {
	parts := append([]string(nil), ref.Modifiers...)
	parts = append(parts, ref.Keys...)
	return strings.Join(parts, "+")
}

// MonitorOptions declares the key monitoring session settings
type MonitorOptions struct {
	Enabled bool     `json:"enabled"`
	AllKeys bool     `json:"allKeys"`
	Keys    []string `json:"keys,omitempty"`
}

// Bindings is the root document of a bindings file
type Bindings struct {
	Hotkeys []HotkeyBinding `json:"hotkeys"`
	Monitor MonitorOptions  `json:"monitor"`
}

// ParseHotkeySpec builds a binding from a combination spec like "ctrl+shift+k"
func ParseHotkeySpec(spec string) (HotkeyBinding, error) {
	keys, modifiers, err := combo.ParseSpec(spec)
	if err != nil {
		return HotkeyBinding{}, fmt.Errorf("hotkey spec %q: %w", spec, err)
	}

	return HotkeyBinding{
		Keys:      keys,
		Modifiers: modifiers,
	}, nil
}

// LoadBindings reads, parses and normalizes a YAML bindings file
func LoadBindings(fileName string) (*Bindings, error) {
	rdata, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("read bindings file: %w", err)
	}

	return ParseBindings(rdata)
}

// ParseBindings parses raw YAML bindings data and normalizes every
// declared hotkey (canonical modifier names, lowercased keys)
func ParseBindings(rdata []byte) (*Bindings, error) {
	var out Bindings
	if err := yaml.Unmarshal(rdata, &out); err != nil {
		return nil, fmt.Errorf("parse bindings file: %w", err)
	}

	for i := range out.Hotkeys {
		binding := &out.Hotkeys[i]

		keys, err := combo.NormalizeKeys(binding.Keys)
		if err != nil {
			return nil, fmt.Errorf("bindings hotkey %d: %w", i, err)
		}

		modifiers, err := combo.NormalizeModifiers(binding.Modifiers)
		if err != nil {
			return nil, fmt.Errorf("bindings hotkey %d: %w", i, err)
		}

		binding.Keys = keys
		binding.Modifiers = modifiers
	}

	for i, key := range out.Monitor.Keys {
		out.Monitor.Keys[i] = combo.NormalizeKey(key)
	}

	return &out, nil
}
