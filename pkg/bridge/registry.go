package bridge

import (
	"sort"
	"time"
)

// RegState is a hotkey registration reconciliation state
type RegState string

// Registration reconciliation states. A rejected registration leaves
// the registry instead of lingering in a terminal state.
const (
	RegStatePending   RegState = "pending"
	RegStateConfirmed RegState = "confirmed"
)

// Registration is a caller visible view of one hotkey registration
type Registration struct {
	ID        string
	Keys      []string
	Modifiers []string
	State     RegState
	CreatedAt time.Time
}

type opKind int

const (
	opRegister opKind = iota
	opUnregister
)

func (k opKind) String() string {
	if k == opRegister {
		return "register"
	}

	return "unregister"
}

type pendingOp struct {
	kind  opKind
	since time.Time
}

type registration struct {
	id        string
	keys      []string
	modifiers []string
	createdAt time.Time
	confirmed bool
}

// hotkeyRegistry tracks the local hotkey registrations and the
// commands still waiting for an agent reply. The local view is
// authoritative for the caller and updated ahead of the agent's
// asynchronous acks. Callers synchronize access.
type hotkeyRegistry struct {
	entries map[string]*registration
	ops     map[string]pendingOp
}

func newHotkeyRegistry() *hotkeyRegistry {
	return &hotkeyRegistry{
		entries: map[string]*registration{},
		ops:     map[string]pendingOp{},
	}
}

func (ref *hotkeyRegistry) add(id string, keys []string, modifiers []string, now time.Time) {
	ref.entries[id] = &registration{
		id:        id,
		keys:      keys,
		modifiers: modifiers,
		createdAt: now,
	}

	ref.ops[id] = pendingOp{kind: opRegister, since: now}
}

func (ref *hotkeyRegistry) has(id string) bool {
	_, found := ref.entries[id]
	return found
}

func (ref *hotkeyRegistry) confirm(id string) {
	if entry, found := ref.entries[id]; found {
		entry.confirmed = true
	}
}

func (ref *hotkeyRegistry) remove(id string) {
	delete(ref.entries, id)
}

func (ref *hotkeyRegistry) trackUnregister(id string, now time.Time) {
	ref.ops[id] = pendingOp{kind: opUnregister, since: now}
}

func (ref *hotkeyRegistry) dropOp(id string) {
	delete(ref.ops, id)
}

func (ref *hotkeyRegistry) takeOp(id string) (pendingOp, bool) {
	op, found := ref.ops[id]
	if found {
		delete(ref.ops, id)
	}

	return op, found
}

func (ref *hotkeyRegistry) view(id string) (Registration, bool) {
	entry, found := ref.entries[id]
	if !found {
		return Registration{}, false
	}

	return ref.export(entry), true
}

func (ref *hotkeyRegistry) list() []Registration {
	out := make([]Registration, 0, len(ref.entries))
	for _, entry := range ref.entries {
		out = append(out, ref.export(entry))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}

		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

func (ref *hotkeyRegistry) count() int {
	return len(ref.entries)
}

func (ref *hotkeyRegistry) clear() int {
	count := len(ref.entries)
	ref.entries = map[string]*registration{}
	ref.ops = map[string]pendingOp{}
	return count
}

// sweep drops pending ops older than ttl. A register op that never got
// a reply leaves its optimistic registration in place as confirmed.
func (ref *hotkeyRegistry) sweep(now time.Time, ttl time.Duration) []string {
	var evicted []string
	for id, op := range ref.ops {
		if now.Sub(op.since) < ttl {
			continue
		}

		delete(ref.ops, id)
		if op.kind == opRegister {
			ref.confirm(id)
		}

		evicted = append(evicted, id)
	}

	return evicted
}

func (ref *hotkeyRegistry) export(entry *registration) Registration {
	state := RegStateConfirmed
	if !entry.confirmed {
		state = RegStatePending
	}

	return Registration{
		ID:        entry.id,
		Keys:      append([]string(nil), entry.keys...),
		Modifiers: append([]string(nil), entry.modifiers...),
		State:     state,
		CreatedAt: entry.createdAt,
	}
}
