package tap

import (
	"fmt"

	"github.com/keytap/keytap/pkg/combo"
)

type comboSpec struct {
	id        string
	keys      []string
	modifiers []string
}

// comboSet tracks hotkey registrations in insertion order and matches
// key presses against them. Callers synchronize access.
type comboSet struct {
	specs []comboSpec
	byID  map[string]int
}

func newComboSet() *comboSet {
	return &comboSet{byID: map[string]int{}}
}

func (ref *comboSet) add(id string, keys []string, modifiers []string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrUnknownHotkey)
	}

	if _, found := ref.byID[id]; found {
		return fmt.Errorf("%w: %s", ErrDuplicateHotkey, id)
	}

	normKeys, err := combo.NormalizeKeys(keys)
	if err != nil {
		return err
	}

	normMods, err := combo.NormalizeModifiers(modifiers)
	if err != nil {
		return err
	}

	ref.byID[id] = len(ref.specs)
	ref.specs = append(ref.specs, comboSpec{
		id:        id,
		keys:      normKeys,
		modifiers: normMods,
	})

	return nil
}

func (ref *comboSet) remove(id string) error {
	idx, found := ref.byID[id]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownHotkey, id)
	}

	delete(ref.byID, id)
	ref.specs = append(ref.specs[:idx], ref.specs[idx+1:]...)
	for i := idx; i < len(ref.specs); i++ {
		ref.byID[ref.specs[i].id] = i
	}

	return nil
}

// ids returns the registration ids in insertion order
func (ref *comboSet) ids() []string {
	out := make([]string, 0, len(ref.specs))
	for _, spec := range ref.specs {
		out = append(out, spec.id)
	}

	return out
}

func (ref *comboSet) size() int {
	return len(ref.specs)
}

// match returns the ids of every combination completed by pressing key
// while the given keys and modifiers are held, in insertion order
func (ref *comboSet) match(key string, heldKeys map[string]struct{}, heldMods map[string]struct{}) []string {
	var hits []string

	for _, spec := range ref.specs {
		if !specMatches(spec, key, heldKeys, heldMods) {
			continue
		}

		hits = append(hits, spec.id)
	}

	return hits
}

func specMatches(spec comboSpec, key string, heldKeys map[string]struct{}, heldMods map[string]struct{}) bool {
	keyInSpec := false
	for _, k := range spec.keys {
		if k == key {
			keyInSpec = true
			continue
		}

		if _, held := heldKeys[k]; !held {
			return false
		}
	}

	if !keyInSpec {
		return false
	}

	for _, m := range spec.modifiers {
		if _, held := heldMods[m]; !held {
			return false
		}
	}

	return true
}
