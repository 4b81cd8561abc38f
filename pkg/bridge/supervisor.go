package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/keytap/keytap/pkg/acounter"
	"github.com/keytap/keytap/pkg/ipc/channel"
	"github.com/keytap/keytap/pkg/ipc/command"
	"github.com/keytap/keytap/pkg/ipc/event"
)

// Supervisor errors
var (
	ErrNotReady             = errors.New("bridge not ready")
	ErrAlreadyStarted       = errors.New("bridge already started")
	ErrCapability           = errors.New("agent not operational (missing OS permission grant is the most likely cause)")
	ErrHotkeyNotFound       = errors.New("unknown hotkey id")
	ErrRegistrationRejected = errors.New("hotkey registration rejected by agent")
	ErrAgentError           = errors.New("agent error")
	ErrBadEvent             = errors.New("bad agent event")
)

// State is a supervisor lifecycle state
type State string

// Supervisor lifecycle states
const (
	StateNotStarted State = "not-started"
	StateStarting   State = "starting"
	StateReady      State = "ready"
	StateCrashed    State = "crashed"
	StateExited     State = "exited"
)

// Supervisor owns exactly one agent subprocess at a time and exposes
// the hotkey and key monitoring operations on top of it. One process
// should run one Supervisor since concurrent agents would compete for
// the same OS capability. A crash is reported, never auto restarted,
// the caller decides when to call Start again.
type Supervisor struct {
	opts   Options
	logger *log.Entry
	router *router

	//lcMu serializes Start and Stop
	lcMu sync.Mutex

	mu         sync.Mutex
	state      State
	generation int
	proc       Process
	writer     *channel.LineWriter
	registry   *hotkeyRegistry
	session    monitorSession
	pongs      []chan struct{}
	exitc      chan struct{}
	done       chan struct{}
	stopping   bool
	lastExit   *ExitStatus

	decodeErrs acounter.Type
}

// New creates an agent supervisor
func New(opts Options) *Supervisor {
	opts = opts.withDefaults()

	return &Supervisor{
		opts:     opts,
		logger:   log.WithField("component", "bridge.supervisor"),
		router:   newRouter(opts.QueueSize),
		state:    StateNotStarted,
		registry: newHotkeyRegistry(),
	}
}

// Start launches the agent subprocess and blocks until the readiness
// handshake completes. The handshake is a ping command answered by a
// pong event within the configured timeout. An agent that exits before
// answering or never answers is reported as a capability problem since
// a missing OS permission grant is the dominant cause.
func (ref *Supervisor) Start(ctx context.Context) error {
	logger := ref.logger.WithField("op", "Start")

	ref.lcMu.Lock()
	defer ref.lcMu.Unlock()

	ref.mu.Lock()
	if ref.state == StateStarting || ref.state == StateReady {
		ref.mu.Unlock()
		return ErrAlreadyStarted
	}

	prev := ref.state
	ref.state = StateStarting
	ref.stopping = false
	ref.lastExit = nil
	ref.generation++
	gen := ref.generation
	cmdline := ref.opts.AgentCmd
	ref.mu.Unlock()

	logger.WithField("agent", cmdline).Debug("spawning agent")

	proc, err := ref.opts.Spawner.Spawn(ctx, cmdline)
	if err != nil {
		ref.mu.Lock()
		ref.state = prev
		ref.mu.Unlock()
		return fmt.Errorf("spawn agent: %w", err)
	}

	pong := make(chan struct{})
	exitc := make(chan struct{})
	done := make(chan struct{})
	readerDone := make(chan struct{})
	stderrDone := make(chan struct{})

	ref.mu.Lock()
	ref.proc = proc
	ref.writer = channel.NewLineWriter(proc.Stdin())
	ref.pongs = []chan struct{}{pong}
	ref.exitc = exitc
	ref.done = done
	writer := ref.writer
	ref.mu.Unlock()

	go ref.readLoop(gen, proc.Stdout(), readerDone)
	go ref.stderrLoop(gen, proc.Stderr(), stderrDone)
	go ref.waitLoop(gen, proc, readerDone, stderrDone, exitc, done)

	raw, err := command.Encode(&command.Ping{})
	if err == nil {
		err = writer.WriteLine(raw)
	}

	if err != nil {
		//the exit path below reconciles the failure
		logger.WithError(err).Debug("readiness probe write failed")
	}

	timer := time.NewTimer(ref.opts.PingTimeout)
	defer timer.Stop()

	select {
	case <-pong:
		ref.mu.Lock()
		starting := ref.generation == gen && ref.state == StateStarting
		if starting {
			ref.state = StateReady
		}
		ref.mu.Unlock()

		if !starting {
			//the agent answered but went away before the transition
			code := -1
			if st := ref.LastExit(); st != nil {
				code = st.Code
			}

			return fmt.Errorf("%w: agent exited during readiness handshake (code=%d)", ErrCapability, code)
		}

		pid := proc.Pid()
		logger.WithField("pid", pid).Debug("agent ready")

		go ref.janitor(gen, exitc)
		ref.router.publish(ReadyEvent{Pid: pid})
		return nil
	case <-exitc:
		code := -1
		if st := ref.LastExit(); st != nil {
			code = st.Code
		}

		return fmt.Errorf("%w: agent exited during readiness handshake (code=%d)", ErrCapability, code)
	case <-timer.C:
		ref.abortStart(gen, proc)
		return fmt.Errorf("%w: readiness probe timed out after %s", ErrCapability, ref.opts.PingTimeout)
	case <-ctx.Done():
		ref.abortStart(gen, proc)
		return ctx.Err()
	}
}

func (ref *Supervisor) abortStart(gen int, proc Process) {
	ref.mu.Lock()
	if ref.generation == gen && ref.state == StateStarting {
		ref.state = StateCrashed
	}
	ref.mu.Unlock()

	if err := proc.Kill(); err != nil {
		ref.logger.WithField("op", "abortStart").WithError(err).Debug("kill agent")
	}
}

// Stop requests agent termination and waits for teardown to finish.
// Closing stdin asks the agent to exit on its own, a term signal and a
// bounded grace period back that up before a hard kill. Stopping a
// bridge that is not running is a no-op.
func (ref *Supervisor) Stop() error {
	logger := ref.logger.WithField("op", "Stop")

	ref.lcMu.Lock()
	defer ref.lcMu.Unlock()

	ref.mu.Lock()
	switch ref.state {
	case StateStarting, StateReady:
	default:
		ref.mu.Unlock()
		return nil
	}

	ref.stopping = true
	proc := ref.proc
	done := ref.done
	ref.mu.Unlock()

	if err := proc.Stdin().Close(); err != nil {
		logger.WithError(err).Debug("close agent stdin")
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		logger.WithError(err).Debug("term agent")
	}

	timer := time.NewTimer(ref.opts.StopGracePeriod)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		logger.Debug("grace period expired, killing agent")
		if err := proc.Kill(); err != nil {
			logger.WithError(err).Debug("kill agent")
		}

		<-done
	}

	return nil
}

// State returns the current lifecycle state
func (ref *Supervisor) State() State {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	return ref.state
}

// LastExit returns the status of the most recent agent exit if any
func (ref *Supervisor) LastExit() *ExitStatus {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	if ref.lastExit == nil {
		return nil
	}

	st := *ref.lastExit
	return &st
}

// Subscribe registers an observer for one notification kind and
// returns the subscription handle
func (ref *Supervisor) Subscribe(kind Kind, handler Handler) string {
	return ref.router.subscribe(kind, handler)
}

// Unsubscribe removes a subscription created with Subscribe
func (ref *Supervisor) Unsubscribe(handle string) bool {
	return ref.router.unsubscribe(handle)
}

// DroppedNotifications returns the number of notifications dropped on
// full subscriber queues
func (ref *Supervisor) DroppedNotifications() uint64 {
	return ref.router.dropped()
}

// DecodeErrors returns the number of agent output lines that failed to
// decode
func (ref *Supervisor) DecodeErrors() uint64 {
	return ref.decodeErrs.Value()
}

// Hotkeys returns the local registration view in creation order
func (ref *Supervisor) Hotkeys() []Registration {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	return ref.registry.list()
}

// Monitoring reports whether key monitoring is active and the options
// it was last started with
func (ref *Supervisor) Monitoring() (bool, command.MonitorOptions) {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	return ref.session.active, ref.session.opts
}

// RegisterHotkey generates a registration id, inserts it into the
// local registry and sends the registration to the agent. The id is
// usable immediately, the agent ack is reconciled asynchronously and a
// late rejection removes the entry and raises an error notification.
func (ref *Supervisor) RegisterHotkey(keys []string, modifiers []string) (string, error) {
	logger := ref.logger.WithField("op", "RegisterHotkey")

	if len(keys) == 0 {
		return "", errors.New("at least one key is required")
	}

	uid, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	id := uid.String()
	keys = append([]string(nil), keys...)
	if modifiers == nil {
		modifiers = []string{}
	} else {
		modifiers = append([]string(nil), modifiers...)
	}

	ref.mu.Lock()
	if ref.state != StateReady {
		ref.mu.Unlock()
		return "", ErrNotReady
	}

	ref.registry.add(id, keys, modifiers, time.Now())
	writer := ref.writer
	ref.mu.Unlock()

	raw, err := command.Encode(&command.RegisterHotkey{
		ID:        id,
		Keys:      keys,
		Modifiers: modifiers,
	})
	if err == nil {
		err = writer.WriteLine(raw)
	}

	if err != nil {
		ref.mu.Lock()
		ref.registry.remove(id)
		ref.registry.dropOp(id)
		ref.mu.Unlock()
		return "", fmt.Errorf("send register-hotkey: %w", err)
	}

	logger.WithFields(log.Fields{
		"id":        id,
		"keys":      keys,
		"modifiers": modifiers,
	}).Debug("hotkey registered")

	return id, nil
}

// UnregisterHotkey removes the registration locally and informs the
// agent. The local registry is authoritative, an agent reply claiming
// the id is unknown is logged and not raised.
func (ref *Supervisor) UnregisterHotkey(id string) error {
	logger := ref.logger.WithField("op", "UnregisterHotkey")

	ref.mu.Lock()
	if ref.state != StateReady {
		ref.mu.Unlock()
		return ErrNotReady
	}

	if !ref.registry.has(id) {
		ref.mu.Unlock()
		return ErrHotkeyNotFound
	}

	ref.registry.remove(id)
	ref.registry.trackUnregister(id, time.Now())
	writer := ref.writer
	ref.mu.Unlock()

	raw, err := command.Encode(&command.UnregisterHotkey{ID: id})
	if err == nil {
		err = writer.WriteLine(raw)
	}

	if err != nil {
		return fmt.Errorf("send unregister-hotkey: %w", err)
	}

	logger.WithField("id", id).Debug("hotkey unregistered")
	return nil
}

// StartMonitoring activates key monitoring. Calling it while already
// active re-sends the command and the agent applies the new options.
func (ref *Supervisor) StartMonitoring(opts command.MonitorOptions) error {
	logger := ref.logger.WithField("op", "StartMonitoring")

	ref.mu.Lock()
	if ref.state != StateReady {
		ref.mu.Unlock()
		return ErrNotReady
	}

	prev := ref.session
	ref.session.start(opts, time.Now())
	writer := ref.writer
	ref.mu.Unlock()

	raw, err := command.Encode(&command.StartMonitoring{Options: opts})
	if err == nil {
		err = writer.WriteLine(raw)
	}

	if err != nil {
		ref.mu.Lock()
		ref.session = prev
		ref.mu.Unlock()
		return fmt.Errorf("send start-monitoring: %w", err)
	}

	logger.WithFields(log.Fields{
		"allKeys": opts.AllKeys,
		"keys":    opts.Keys,
	}).Debug("monitoring started")

	return nil
}

// StopMonitoring deactivates key monitoring. It is a local no-op when
// monitoring is not active, nothing is sent to the agent.
func (ref *Supervisor) StopMonitoring() error {
	logger := ref.logger.WithField("op", "StopMonitoring")

	ref.mu.Lock()
	if ref.state != StateReady {
		ref.mu.Unlock()
		return ErrNotReady
	}

	if !ref.session.active {
		ref.mu.Unlock()
		return nil
	}

	ref.session.reset()
	writer := ref.writer
	ref.mu.Unlock()

	raw, err := command.Encode(&command.StopMonitoring{})
	if err == nil {
		err = writer.WriteLine(raw)
	}

	if err != nil {
		return fmt.Errorf("send stop-monitoring: %w", err)
	}

	logger.Debug("monitoring stopped")
	return nil
}

// Ping sends a liveness probe and waits for the matching pong
func (ref *Supervisor) Ping(ctx context.Context) error {
	ref.mu.Lock()
	if ref.state != StateReady {
		ref.mu.Unlock()
		return ErrNotReady
	}

	pong := make(chan struct{})
	ref.pongs = append(ref.pongs, pong)
	writer := ref.writer
	exitc := ref.exitc
	ref.mu.Unlock()

	raw, err := command.Encode(&command.Ping{})
	if err == nil {
		err = writer.WriteLine(raw)
	}

	if err != nil {
		ref.removePongWaiter(pong)
		return fmt.Errorf("send ping: %w", err)
	}

	select {
	case <-pong:
		return nil
	case <-exitc:
		return fmt.Errorf("%w: agent exited", ErrNotReady)
	case <-ctx.Done():
		ref.removePongWaiter(pong)
		return ctx.Err()
	}
}

func (ref *Supervisor) removePongWaiter(pong chan struct{}) {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	for i, cur := range ref.pongs {
		if cur == pong {
			ref.pongs = append(ref.pongs[:i], ref.pongs[i+1:]...)
			return
		}
	}
}

func (ref *Supervisor) staleGen(gen int) bool {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	return ref.generation != gen
}

func (ref *Supervisor) readLoop(gen int, out io.Reader, done chan struct{}) {
	defer close(done)

	logger := ref.logger.WithField("op", "readLoop")

	asm := channel.NewLineAssembler(func(line []byte) {
		ref.handleEventLine(gen, line)
	})

	if _, err := io.Copy(asm, out); err != nil {
		logger.WithError(err).Debug("agent stdout closed with error")
	}

	if n := asm.Buffered(); n > 0 {
		logger.WithField("bytes", n).Debug("discarding unterminated trailing output")
	}
}

func (ref *Supervisor) stderrLoop(gen int, errOut io.Reader, done chan struct{}) {
	defer close(done)

	logger := ref.logger.WithField("op", "stderrLoop")

	asm := channel.NewLineAssembler(func(line []byte) {
		if ref.staleGen(gen) {
			return
		}

		logger.WithField("line", string(line)).Debug("agent stderr")
		ref.router.publish(StderrEvent{Line: string(line)})
	})

	if _, err := io.Copy(asm, errOut); err != nil {
		logger.WithError(err).Debug("agent stderr closed with error")
	}
}

func (ref *Supervisor) waitLoop(gen int, proc Process, readerDone, stderrDone, exitc, done chan struct{}) {
	logger := ref.logger.WithField("op", "waitLoop")

	//both output pipes must be drained before reaping the process
	<-readerDone
	<-stderrDone

	st := proc.Wait()

	ref.mu.Lock()
	if ref.generation != gen {
		//a newer agent took over after an aborted start, the shared
		//state belongs to it now
		ref.mu.Unlock()
		close(exitc)
		close(done)
		logger.WithField("code", st.Code).Debug("stale agent reaped")
		return
	}

	wasReady := ref.state == StateReady
	requested := ref.stopping
	ref.lastExit = &st

	//reconcile the mirrored state before anyone observes the exit
	cleared := ref.registry.clear()
	ref.session.reset()
	ref.pongs = nil

	if requested || wasReady {
		ref.state = StateExited
	} else {
		ref.state = StateCrashed
	}
	ref.mu.Unlock()

	close(exitc)

	logger.WithFields(log.Fields{
		"code":      st.Code,
		"requested": requested,
		"hotkeys":   cleared,
	}).Debug("agent exited")

	if wasReady {
		ref.router.publish(ExitEvent{Code: st.Code, Requested: requested})
	}

	close(done)
}

func (ref *Supervisor) janitor(gen int, exitc chan struct{}) {
	logger := ref.logger.WithField("op", "janitor")

	interval := ref.opts.PendingTTL / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}

	if interval > time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-exitc:
			return
		case <-ticker.C:
			ref.mu.Lock()
			var evicted []string
			if ref.generation == gen {
				evicted = ref.registry.sweep(time.Now(), ref.opts.PendingTTL)
			}
			ref.mu.Unlock()

			for _, id := range evicted {
				logger.WithField("id", id).Debug("pending ack expired")
			}
		}
	}
}

func (ref *Supervisor) handleEventLine(gen int, line []byte) {
	if ref.staleGen(gen) {
		return
	}

	logger := ref.logger.WithField("op", "handleEventLine")

	msg, err := event.Decode(line)
	if err != nil {
		ref.decodeErrs.Inc()
		logger.WithError(err).WithField("line", clipLine(line)).Warn("bad agent event")

		//unknown event kinds are dropped with the diagnostic only,
		//anything else malformed goes to the error subscribers
		if !errors.Is(err, event.ErrUnknownEvent) {
			ref.router.publish(ErrorEvent{Err: fmt.Errorf("%w: %v", ErrBadEvent, err)})
		}

		return
	}

	switch evt := msg.(type) {
	case *event.Pong:
		ref.resolvePong(gen)
	case *event.Success:
		ref.applySuccess(gen, evt)
	case *event.Error:
		ref.applyError(gen, evt)
	case *event.HotkeyTriggered:
		ref.applyTrigger(gen, evt)
	case *event.KeyDown:
		ref.router.publish(KeyEvent{
			Down:      true,
			KeyCode:   evt.KeyCode,
			Key:       evt.Key,
			Modifiers: evt.Modifiers,
			Timestamp: evt.Timestamp,
		})
	case *event.KeyUp:
		ref.router.publish(KeyEvent{
			KeyCode:   evt.KeyCode,
			Key:       evt.Key,
			Modifiers: evt.Modifiers,
			Timestamp: evt.Timestamp,
		})
	}
}

func (ref *Supervisor) resolvePong(gen int) {
	ref.mu.Lock()
	if ref.generation != gen || len(ref.pongs) == 0 {
		ref.mu.Unlock()
		ref.logger.WithField("op", "resolvePong").Debug("unsolicited pong")
		return
	}

	waiter := ref.pongs[0]
	ref.pongs = ref.pongs[1:]
	ref.mu.Unlock()

	close(waiter)
}

func (ref *Supervisor) applySuccess(gen int, evt *event.Success) {
	logger := ref.logger.WithFields(log.Fields{
		"op": "applySuccess",
		"id": evt.Data.ID,
	})

	ref.mu.Lock()
	if ref.generation != gen {
		ref.mu.Unlock()
		return
	}

	op, found := ref.registry.takeOp(evt.Data.ID)
	if found && op.kind == opRegister {
		ref.registry.confirm(evt.Data.ID)
	}
	ref.mu.Unlock()

	if !found {
		logger.Debug("unsolicited success ack")
		return
	}

	logger.WithField("kind", op.kind.String()).Debug("agent ack")
}

func (ref *Supervisor) applyError(gen int, evt *event.Error) {
	logger := ref.logger.WithField("op", "applyError")

	var note *ErrorEvent

	ref.mu.Lock()
	if ref.generation != gen {
		ref.mu.Unlock()
		return
	}

	if evt.Data != nil {
		id := evt.Data.ID
		op, hadOp := ref.registry.takeOp(id)

		switch {
		case ref.registry.has(id):
			//rejection of an optimistically accepted registration
			ref.registry.remove(id)
			note = &ErrorEvent{
				Err:            fmt.Errorf("%w: %s", ErrRegistrationRejected, evt.Message),
				RegistrationID: id,
			}
		case hadOp && op.kind == opUnregister:
			//the entry is already gone locally, nothing to raise
			logger.WithFields(log.Fields{
				"id":      id,
				"message": evt.Message,
			}).Debug("agent rejected unregister")
		default:
			note = &ErrorEvent{
				Err:            fmt.Errorf("%w: %s", ErrAgentError, evt.Message),
				RegistrationID: id,
			}
		}
	} else {
		note = &ErrorEvent{Err: fmt.Errorf("%w: %s", ErrAgentError, evt.Message)}
	}
	ref.mu.Unlock()

	if note != nil {
		logger.WithError(note.Err).WithField("id", note.RegistrationID).Warn("agent reported error")
		ref.router.publish(*note)
	}
}

func (ref *Supervisor) applyTrigger(gen int, evt *event.HotkeyTriggered) {
	ref.mu.Lock()
	if ref.generation != gen {
		ref.mu.Unlock()
		return
	}

	reg, found := ref.registry.view(evt.ID)
	ref.mu.Unlock()

	if !found {
		//the local registry is authoritative, triggers for ids
		//removed locally are dropped
		ref.logger.WithFields(log.Fields{
			"op": "applyTrigger",
			"id": evt.ID,
		}).Debug("trigger for unknown hotkey id")
		return
	}

	ref.router.publish(HotkeyEvent{
		ID:        evt.ID,
		Keys:      reg.Keys,
		Modifiers: reg.Modifiers,
		Timestamp: evt.Timestamp,
	})
}

func clipLine(line []byte) string {
	const max = 256
	if len(line) > max {
		return string(line[:max]) + "..."
	}

	return string(line)
}
