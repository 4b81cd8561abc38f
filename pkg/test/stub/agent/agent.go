package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/keytap/keytap/pkg/bridge"
	"github.com/keytap/keytap/pkg/ipc/channel"
	"github.com/keytap/keytap/pkg/ipc/command"
	"github.com/keytap/keytap/pkg/ipc/event"
)

// Spawner emulates keytap agent processes over in memory pipes. Every
// Spawn call produces a fresh Session scripted through the exported
// knobs, so supervisor restarts can be exercised without real
// subprocesses.
type Spawner struct {
	// AnswerPing makes sessions answer ping commands with pong
	AnswerPing bool

	// AckHotkeys makes sessions ack register and unregister commands
	// with success events
	AckHotkeys bool

	// TermExits makes sessions exit cleanly on a term signal
	TermExits bool

	// IgnoreStdinClose keeps sessions alive after their stdin closes
	IgnoreStdinClose bool

	// SpawnErr fails the next Spawn call when set
	SpawnErr error

	// OnSession runs on its own goroutine for every new session
	OnSession func(s *Session)

	mu       sync.Mutex
	sessions []*Session
}

var _ bridge.Spawner = (*Spawner)(nil)

// NewSpawner creates a spawner for well behaved agent sessions
func NewSpawner() *Spawner {
	return &Spawner{
		AnswerPing: true,
		AckHotkeys: true,
		TermExits:  true,
	}
}

func (ref *Spawner) Spawn(ctx context.Context, cmdline []string) (bridge.Process, error) {
	if ref.SpawnErr != nil {
		return nil, ref.SpawnErr
	}

	ref.mu.Lock()
	s := newSession(len(ref.sessions), ref, cmdline)
	ref.sessions = append(ref.sessions, s)
	ref.mu.Unlock()

	go s.serve()

	if ref.OnSession != nil {
		go ref.OnSession(s)
	}

	return s, nil
}

// Session returns the n-th spawned session or nil
func (ref *Spawner) Session(n int) *Session {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	if n < 0 || n >= len(ref.sessions) {
		return nil
	}

	return ref.sessions[n]
}

// Count returns the number of sessions spawned so far
func (ref *Spawner) Count() int {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	return len(ref.sessions)
}

// Session is one spawned fake agent instance. It implements
// bridge.Process for the supervisor side and exposes the agent side
// for scripting.
type Session struct {
	answerPing       bool
	ackHotkeys       bool
	termExits        bool
	ignoreStdinClose bool
	cmdline          []string
	pid              int

	cmdR *io.PipeReader
	cmdW *io.PipeWriter
	outR *io.PipeReader
	outW *io.PipeWriter
	errR *io.PipeReader
	errW *io.PipeWriter

	out  *channel.LineWriter
	errs *channel.LineWriter
	cmds chan command.Message

	exitOnce sync.Once
	exited   chan struct{}
	code     int

	mu      sync.Mutex
	signals []os.Signal
	killed  bool
}

var _ bridge.Process = (*Session)(nil)

func newSession(n int, cfg *Spawner, cmdline []string) *Session {
	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()

	return &Session{
		answerPing:       cfg.AnswerPing,
		ackHotkeys:       cfg.AckHotkeys,
		termExits:        cfg.TermExits,
		ignoreStdinClose: cfg.IgnoreStdinClose,
		cmdline:          append([]string(nil), cmdline...),
		pid:              4200 + n,
		cmdR:             cmdR,
		cmdW:             cmdW,
		outR:             outR,
		outW:             outW,
		errR:             errR,
		errW:             errW,
		out:              channel.NewLineWriter(outW),
		errs:             channel.NewLineWriter(errW),
		cmds:             make(chan command.Message, 64),
		exited:           make(chan struct{}),
	}
}

func (ref *Session) serve() {
	asm := channel.NewLineAssembler(func(line []byte) {
		msg, err := command.Decode(line)
		if err != nil {
			_ = ref.SendEvent(&event.Error{Message: fmt.Sprintf("bad command: %v", err)})
			return
		}

		ref.autoRespond(msg)

		select {
		case ref.cmds <- msg:
		default:
		}
	})

	//the loop ends when the supervisor closes the agent's stdin
	//or the session exits
	_, _ = io.Copy(asm, ref.cmdR)

	if !ref.ignoreStdinClose {
		ref.Exit(0)
	}
}

func (ref *Session) autoRespond(msg command.Message) {
	switch m := msg.(type) {
	case *command.Ping:
		if ref.answerPing {
			_ = ref.SendEvent(&event.Pong{})
		}
	case *command.RegisterHotkey:
		if ref.ackHotkeys {
			_ = ref.SendEvent(&event.Success{Data: event.CorrelationData{ID: m.ID}})
		}
	case *command.UnregisterHotkey:
		if ref.ackHotkeys {
			_ = ref.SendEvent(&event.Success{Data: event.CorrelationData{ID: m.ID}})
		}
	}
}

// Commands exposes the decoded commands this session received
func (ref *Session) Commands() <-chan command.Message {
	return ref.cmds
}

// Cmdline returns the command line the session was spawned with
func (ref *Session) Cmdline() []string {
	return ref.cmdline
}

// SendEvent writes one encoded event line to the session's stdout
func (ref *Session) SendEvent(msg event.Message) error {
	raw, err := event.Encode(msg)
	if err != nil {
		return err
	}

	return ref.out.WriteLine(raw)
}

// SendRaw writes an arbitrary line to the session's stdout
func (ref *Session) SendRaw(line string) error {
	return ref.out.WriteLine([]byte(line))
}

// SendStderr writes one diagnostic line to the session's stderr
func (ref *Session) SendStderr(line string) error {
	return ref.errs.WriteLine([]byte(line))
}

// Exit terminates the session with the given exit code
func (ref *Session) Exit(code int) {
	ref.exitOnce.Do(func() {
		ref.code = code
		ref.outW.Close()
		ref.errW.Close()
		ref.cmdR.Close()
		close(ref.exited)
	})
}

// Exited reports whether the session has terminated
func (ref *Session) Exited() bool {
	select {
	case <-ref.exited:
		return true
	default:
		return false
	}
}

// Killed reports whether the supervisor hard killed the session
func (ref *Session) Killed() bool {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	return ref.killed
}

// Signals returns the signals the supervisor sent so far
func (ref *Session) Signals() []os.Signal {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	return append([]os.Signal(nil), ref.signals...)
}

func (ref *Session) Pid() int {
	return ref.pid
}

func (ref *Session) Stdin() io.WriteCloser {
	return ref.cmdW
}

func (ref *Session) Stdout() io.Reader {
	return ref.outR
}

func (ref *Session) Stderr() io.Reader {
	return ref.errR
}

func (ref *Session) Wait() bridge.ExitStatus {
	<-ref.exited

	st := bridge.ExitStatus{Code: ref.code}
	if ref.code != 0 {
		st.Err = fmt.Errorf("exit status %d", ref.code)
	}

	return st
}

func (ref *Session) Signal(sig os.Signal) error {
	ref.mu.Lock()
	ref.signals = append(ref.signals, sig)
	term := ref.termExits
	ref.mu.Unlock()

	if term && sig == syscall.SIGTERM {
		ref.Exit(0)
	}

	return nil
}

func (ref *Session) Kill() error {
	ref.mu.Lock()
	ref.killed = true
	ref.mu.Unlock()

	ref.Exit(137)
	return nil
}
