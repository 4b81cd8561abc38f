// Package combo normalizes hotkey key and modifier names. The wire
// protocol, the agent tap backends and the CLI flag parsers all agree
// on the canonical names produced here.
package combo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Canonical modifier names
const (
	ModCommand = "command"
	ModControl = "control"
	ModOption  = "option"
	ModShift   = "shift"
)

var (
	ErrNoKey           = errors.New("hotkey needs at least one key")
	ErrUnknownModifier = errors.New("unknown modifier")
)

var modifierAliases = map[string]string{
	"command": ModCommand,
	"cmd":     ModCommand,
	"meta":    ModCommand,
	"super":   ModCommand,
	"win":     ModCommand,
	"control": ModControl,
	"ctrl":    ModControl,
	"option":  ModOption,
	"opt":     ModOption,
	"alt":     ModOption,
	"shift":   ModShift,
}

// NormalizeModifier maps a modifier name or alias to its canonical name
func NormalizeModifier(name string) (string, bool) {
	canonical, found := modifierAliases[strings.ToLower(strings.TrimSpace(name))]
	return canonical, found
}

// NormalizeModifiers maps every modifier to its canonical name and
// returns the deduplicated set in canonical order
func NormalizeModifiers(names []string) ([]string, error) {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(names))

	for _, name := range names {
		canonical, found := NormalizeModifier(name)
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrUnknownModifier, name)
		}

		if _, dup := seen[canonical]; dup {
			continue
		}

		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}

	sort.Strings(out)
	return out, nil
}

// NormalizeKey lowercases and trims a key symbol
func NormalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeKeys normalizes every key symbol, dropping empty entries
func NormalizeKeys(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		key := NormalizeKey(name)
		if key == "" {
			continue
		}

		out = append(out, key)
	}

	if len(out) == 0 {
		return nil, ErrNoKey
	}

	return out, nil
}

// ParseSpec splits a combination spec like "ctrl+shift+k" into
// normalized keys and modifiers. Tokens that name a modifier become
// modifiers, everything else is a key.
func ParseSpec(spec string) (keys []string, modifiers []string, err error) {
	var rawKeys, rawMods []string

	for _, token := range strings.Split(spec, "+") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if canonical, found := NormalizeModifier(token); found {
			rawMods = append(rawMods, canonical)
			continue
		}

		rawKeys = append(rawKeys, token)
	}

	if len(rawKeys) == 0 {
		return nil, nil, fmt.Errorf("%w: %q", ErrNoKey, spec)
	}

	keys, err = NormalizeKeys(rawKeys)
	if err != nil {
		return nil, nil, err
	}

	modifiers, err = NormalizeModifiers(rawMods)
	if err != nil {
		return nil, nil, err
	}

	return keys, modifiers, nil
}
