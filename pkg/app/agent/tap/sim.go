package tap

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/keytap/keytap/pkg/acounter"
)

// Sim stream defaults
const (
	DefaultSimRate = 250 * time.Millisecond
	minSimRate     = time.Millisecond

	simEventBuffer  = 256
	simTriggerTicks = 4
)

// simKeys is the small fixed table the synthetic stream draws from.
// The codes are the ANSI virtual key codes for the same letters.
var simKeys = []struct {
	code int
	name string
}{
	{0, "a"}, {1, "s"}, {2, "d"}, {3, "f"}, {4, "h"},
	{5, "g"}, {6, "z"}, {7, "x"}, {8, "c"}, {9, "v"},
}

// SimConfig tunes the synthetic tap stream
type SimConfig struct {
	// Seed feeds the pseudo random key picker, same seed same stream
	Seed int64

	// Rate is the tick interval of the stream
	Rate time.Duration
}

// Sim is the synthetic tap backend. While monitoring is active it
// emits a seeded pseudo random keydown/keyup stream, and it fires
// registered hotkeys round robin on a fixed tick cadence. The only
// capability gate is the env override, so it runs anywhere.
type Sim struct {
	logger *log.Entry
	cfg    SimConfig
	events chan Event
	done   chan struct{}
	drops  acounter.Type

	mu         sync.Mutex
	open       bool
	closed     bool
	combos     *comboSet
	monitoring MonitorSpec
	keyFilter  map[string]struct{}
}

var _ Source = (*Sim)(nil)

// NewSim creates a synthetic tap backend
func NewSim(cfg SimConfig) *Sim {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultSimRate
	}

	if cfg.Rate < minSimRate {
		cfg.Rate = minSimRate
	}

	return &Sim{
		logger: log.WithField("component", "agent.tap.sim"),
		cfg:    cfg,
		events: make(chan Event, simEventBuffer),
		done:   make(chan struct{}),
		combos: newComboSet(),
	}
}

func (ref *Sim) Open() error {
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
	go ref.loop()

	ref.logger.WithFields(log.Fields{
		"seed": ref.cfg.Seed,
		"rate": ref.cfg.Rate,
	}).Debug("sim tap open")

	return nil
}

func (ref *Sim) Close() error {
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

func (ref *Sim) RegisterHotkey(id string, keys []string, modifiers []string) error {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	if ref.closed {
		return ErrClosed
	}

	return ref.combos.add(id, keys, modifiers)
}

func (ref *Sim) UnregisterHotkey(id string) error {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	if ref.closed {
		return ErrClosed
	}

	return ref.combos.remove(id)
}

func (ref *Sim) SetMonitoring(spec MonitorSpec) error {
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

func (ref *Sim) Events() <-chan Event {
	return ref.events
}

// Dropped returns the number of events dropped on a full stream buffer
func (ref *Sim) Dropped() uint64 {
	return ref.drops.Value()
}

func (ref *Sim) loop() {
	defer close(ref.events)

	rng := rand.New(rand.NewSource(ref.cfg.Seed))
	ticker := time.NewTicker(ref.cfg.Rate)
	defer ticker.Stop()

	var tick uint64
	for {
		select {
		case <-ref.done:
			return
		case <-ticker.C:
			tick++

			//the draw happens every tick so the key sequence only
			//depends on the seed and the tick index
			pick := simKeys[rng.Intn(len(simKeys))]
			now := unixSeconds(time.Now())

			ref.mu.Lock()
			spec := ref.monitoring
			_, inFilter := ref.keyFilter[pick.name]
			ids := ref.combos.ids()
			ref.mu.Unlock()

			if spec.Enabled && (spec.AllKeys || inFilter) {
				ref.emit(Event{Type: KeyDownEvent, KeyCode: pick.code, Key: pick.name, Timestamp: now})
				ref.emit(Event{Type: KeyUpEvent, KeyCode: pick.code, Key: pick.name, Timestamp: now})
			}

			if tick%simTriggerTicks == 0 && len(ids) > 0 {
				next := ids[(tick/simTriggerTicks)%uint64(len(ids))]
				ref.emit(Event{Type: TriggerEvent, HotkeyID: next, Timestamp: now})
			}
		}
	}
}

func (ref *Sim) emit(evt Event) {
	select {
	case ref.events <- evt:
	default:
		ref.drops.Inc()
		ref.logger.WithField("type", evt.Type).Debug("stream buffer full, dropping event")
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
