package tap

import (
	"sort"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
	log "github.com/sirupsen/logrus"

	"github.com/keytap/keytap/pkg/acounter"
	"github.com/keytap/keytap/pkg/combo"
)

const hookEventBuffer = 1024

// Hook is the real tap backend on top of the gohook global input
// hook. gohook cannot unregister a combination once registered, so
// matching is done here against a held key set instead of through
// hook.Register, which also lets registrations change while the hook
// is live.
type Hook struct {
	logger *log.Entry
	events chan Event
	done   chan struct{}
	drops  acounter.Type

	mu         sync.Mutex
	open       bool
	closed     bool
	combos     *comboSet
	monitoring MonitorSpec
	keyFilter  map[string]struct{}
	heldKeys   map[string]struct{}
	heldMods   map[string]struct{}
}

var _ Source = (*Hook)(nil)

// NewHook creates a gohook backed tap
func NewHook() *Hook {
	return &Hook{
		logger:   log.WithField("component", "agent.tap.hook"),
		events:   make(chan Event, hookEventBuffer),
		done:     make(chan struct{}),
		combos:   newComboSet(),
		heldKeys: map[string]struct{}{},
		heldMods: map[string]struct{}{},
	}
}

// Open starts the global hook. gohook exposes no capability probe of
// its own, so only the env override can deny here; a real missing OS
// grant surfaces as a hook that never produces events, which the
// supervisor's readiness probe and the caller's own observation catch.
func (ref *Hook) Open() error {
	if granted, overridden := capabilityFromEnv(); overridden && !granted {
		return ErrNotPermitted
	}

	ref.mu.Lock()
	defer ref.mu.Unlock()

	if ref.closed {
		return ErrClosed
	}

	if ref.open {
		return nil
	}

	ref.open = true
	raw := hook.Start()

	go func() {
		<-ref.done
		hook.End()
	}()
	go ref.loop(raw)

	ref.logger.Debug("global hook started")
	return nil
}

func (ref *Hook) Close() error {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	if ref.closed {
		return nil
	}

	ref.closed = true
	close(ref.done)

	if !ref.open {
		//the loop never ran, nothing else will close the stream
		close(ref.events)
	}

	return nil
}

func (ref *Hook) RegisterHotkey(id string, keys []string, modifiers []string) error {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	if ref.closed {
		return ErrClosed
	}

	return ref.combos.add(id, keys, modifiers)
}

func (ref *Hook) UnregisterHotkey(id string) error {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	if ref.closed {
		return ErrClosed
	}

	return ref.combos.remove(id)
}

func (ref *Hook) SetMonitoring(spec MonitorSpec) error {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	if ref.closed {
		return ErrClosed
	}

	filter := map[string]struct{}{}
	for _, key := range spec.Keys {
		filter[key] = struct{}{}
	}

	ref.monitoring = spec
	ref.keyFilter = filter
	return nil
}

func (ref *Hook) Events() <-chan Event {
	return ref.events
}

// Dropped returns the number of events dropped on a full stream buffer
func (ref *Hook) Dropped() uint64 {
	return ref.drops.Value()
}

func (ref *Hook) loop(raw chan hook.Event) {
	defer close(ref.events)

	for ev := range raw {
		switch ev.Kind {
		case hook.KeyDown:
			ref.handleKey(ev, true, false)
		case hook.KeyHold:
			//key repeat: streamed as another keydown, no re-trigger
			ref.handleKey(ev, true, true)
		case hook.KeyUp:
			ref.handleKey(ev, false, false)
		}
	}
}

func (ref *Hook) handleKey(ev hook.Event, down bool, repeat bool) {
	name := keyName(ev)
	if name == "" {
		return
	}

	ts := unixSeconds(ev.When)
	if ev.When.IsZero() {
		ts = unixSeconds(time.Now())
	}

	canonicalMod, isMod := combo.NormalizeModifier(name)

	ref.mu.Lock()
	if down {
		if isMod {
			ref.heldMods[canonicalMod] = struct{}{}
		}
		ref.heldKeys[name] = struct{}{}
	}

	var hits []string
	if down && !repeat {
		hits = ref.combos.match(name, ref.heldKeys, ref.heldMods)
	}

	if !down {
		if isMod {
			delete(ref.heldMods, canonicalMod)
		}
		delete(ref.heldKeys, name)
	}

	spec := ref.monitoring
	_, inFilter := ref.keyFilter[name]
	mods := heldSnapshot(ref.heldMods)
	ref.mu.Unlock()

	for _, id := range hits {
		ref.emit(Event{Type: TriggerEvent, HotkeyID: id, Timestamp: ts})
	}

	if spec.Enabled && (spec.AllKeys || inFilter) {
		evtType := KeyUpEvent
		if down {
			evtType = KeyDownEvent
		}

		ref.emit(Event{
			Type:      evtType,
			KeyCode:   int(ev.Rawcode),
			Key:       name,
			Modifiers: mods,
			Timestamp: ts,
		})
	}
}

func (ref *Hook) emit(evt Event) {
	select {
	case ref.events <- evt:
	default:
		ref.drops.Inc()
		ref.logger.WithField("type", evt.Type).Debug("stream buffer full, dropping event")
	}
}

func keyName(ev hook.Event) string {
	name := hook.RawcodetoKeychar(ev.Rawcode)
	if name == "" && ev.Keychar != 0 {
		name = string(ev.Keychar)
	}

	return combo.NormalizeKey(name)
}

func heldSnapshot(held map[string]struct{}) []string {
	if len(held) == 0 {
		return nil
	}

	out := make([]string, 0, len(held))
	for name := range held {
		out = append(out, name)
	}

	sort.Strings(out)
	return out
}
