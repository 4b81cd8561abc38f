package agent_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keytap/keytap/pkg/app/agent"
	"github.com/keytap/keytap/pkg/app/agent/tap"
	"github.com/keytap/keytap/pkg/ipc/channel"
	"github.com/keytap/keytap/pkg/ipc/command"
	"github.com/keytap/keytap/pkg/ipc/event"
)

const eventWait = 3 * time.Second

// serverHarness runs a Server over in-memory pipes with a sim tap
// source and decodes everything the agent writes back
type serverHarness struct {
	t      *testing.T
	src    *tap.Sim
	cmds   *channel.LineWriter
	cmdW   *io.PipeWriter
	events chan event.Message
	cancel context.CancelFunc

	runErr  chan error
	runOnce sync.Once
	runRes  error
}

func startServer(t *testing.T, cfg tap.SimConfig) *serverHarness {
	t.Helper()

	src := tap.NewSim(cfg)
	require.NoError(t, src.Open())

	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	h := &serverHarness{
		t:      t,
		src:    src,
		cmds:   channel.NewLineWriter(cmdW),
		cmdW:   cmdW,
		events: make(chan event.Message, 4096),
		cancel: cancel,
		runErr: make(chan error, 1),
	}

	srv := agent.NewServer(src, cmdR, outW)
	go func() {
		h.runErr <- srv.Run(ctx)
	}()

	go func() {
		defer close(h.events)

		asm := channel.NewLineAssembler(func(line []byte) {
			msg, err := event.Decode(line)
			if err != nil {
				t.Errorf("bad event line %q: %v", line, err)
				return
			}

			h.events <- msg
		})

		_, _ = io.Copy(asm, outR)
	}()

	t.Cleanup(func() {
		cancel()
		_ = cmdW.Close()
		_ = h.waitRun()
		_ = outW.Close()
	})

	return h
}

// waitRun blocks until Run returns and caches the result
func (h *serverHarness) waitRun() error {
	h.runOnce.Do(func() {
		select {
		case h.runRes = <-h.runErr:
		case <-time.After(eventWait):
			h.t.Fatal("server did not stop in time")
		}
	})

	return h.runRes
}

func (h *serverHarness) send(msg command.Message) {
	h.t.Helper()

	raw, err := command.Encode(msg)
	require.NoError(h.t, err)
	require.NoError(h.t, h.cmds.WriteLine(raw))
}

func (h *serverHarness) sendRaw(line string) {
	h.t.Helper()
	require.NoError(h.t, h.cmds.WriteLine([]byte(line)))
}

func (h *serverHarness) next() event.Message {
	h.t.Helper()

	select {
	case msg, ok := <-h.events:
		if !ok {
			h.t.Fatal("agent output closed")
		}

		return msg
	case <-time.After(eventWait):
		h.t.Fatal("timed out waiting for an agent event")
	}

	return nil
}

func (h *serverHarness) expectQuiet(d time.Duration) {
	h.t.Helper()

	select {
	case msg, ok := <-h.events:
		if ok {
			h.t.Fatalf("unexpected %s event", msg.GetName())
		}
	case <-time.After(d):
	}
}

func TestServerPingPong(t *testing.T) {
	h := startServer(t, tap.SimConfig{Seed: 1})

	h.send(&command.Ping{})
	require.IsType(t, &event.Pong{}, h.next())

	//closing the command input is the shutdown request
	require.NoError(t, h.cmdW.Close())
	require.NoError(t, h.waitRun())

	//the tap source is released on the way out
	require.ErrorIs(t, h.src.RegisterHotkey("hk-x", []string{"k"}, nil), tap.ErrClosed)
}

func TestServerHotkeyAcks(t *testing.T) {
	h := startServer(t, tap.SimConfig{Seed: 1})

	h.send(&command.RegisterHotkey{
		ID:        "hk-1",
		Keys:      []string{"k"},
		Modifiers: []string{"cmd", "shift"},
	})

	msg := h.next()
	ack, ok := msg.(*event.Success)
	require.True(t, ok, "want success, got %s", msg.GetName())
	assert.Equal(t, "hk-1", ack.Data.ID)

	h.send(&command.RegisterHotkey{ID: "hk-1", Keys: []string{"k"}})
	msg = h.next()
	fail, ok := msg.(*event.Error)
	require.True(t, ok, "want error, got %s", msg.GetName())
	require.NotNil(t, fail.Data)
	assert.Equal(t, "hk-1", fail.Data.ID)
	assert.Contains(t, fail.Message, "already registered")

	h.send(&command.RegisterHotkey{
		ID:        "hk-2",
		Keys:      []string{"k"},
		Modifiers: []string{"hyper"},
	})

	msg = h.next()
	fail, ok = msg.(*event.Error)
	require.True(t, ok, "want error, got %s", msg.GetName())
	require.NotNil(t, fail.Data)
	assert.Equal(t, "hk-2", fail.Data.ID)
	assert.Contains(t, fail.Message, "unknown modifier")

	h.send(&command.UnregisterHotkey{ID: "hk-1"})
	msg = h.next()
	ack, ok = msg.(*event.Success)
	require.True(t, ok, "want success, got %s", msg.GetName())
	assert.Equal(t, "hk-1", ack.Data.ID)

	h.send(&command.UnregisterHotkey{ID: "hk-1"})
	msg = h.next()
	fail, ok = msg.(*event.Error)
	require.True(t, ok, "want error, got %s", msg.GetName())
	require.NotNil(t, fail.Data)
	assert.Equal(t, "hk-1", fail.Data.ID)
	assert.Contains(t, fail.Message, "unknown hotkey id")
}

func TestServerMonitoringStream(t *testing.T) {
	h := startServer(t, tap.SimConfig{Seed: 42, Rate: 2 * time.Millisecond})

	h.send(&command.StartMonitoring{
		Options: command.MonitorOptions{AllKeys: true},
	})

	var last float64
	var downs, ups int
	for i := 0; i < 10; i++ {
		msg := h.next()
		switch evt := msg.(type) {
		case *event.KeyDown:
			downs++
			assert.NotEmpty(t, evt.Key)
			assert.GreaterOrEqual(t, evt.Timestamp, last)
			last = evt.Timestamp
		case *event.KeyUp:
			ups++
			assert.GreaterOrEqual(t, evt.Timestamp, last)
			last = evt.Timestamp
		default:
			t.Fatalf("unexpected %s event in the key stream", msg.GetName())
		}
	}

	assert.NotZero(t, downs)
	assert.NotZero(t, ups)

	h.send(&command.StopMonitoring{})
	h.send(&command.Ping{})

	//key events emitted before the stop may still be in flight,
	//the pong marks the point where the stop took effect
	deadline := time.After(eventWait)
	for {
		var msg event.Message
		select {
		case evt, ok := <-h.events:
			if !ok {
				t.Fatal("agent output closed before the pong")
			}

			msg = evt
		case <-deadline:
			t.Fatal("no pong after stop-monitoring")
		}

		if _, ok := msg.(*event.Pong); ok {
			break
		}
	}

	settle := time.After(300 * time.Millisecond)
drain:
	for {
		select {
		case <-h.events:
		case <-settle:
			break drain
		}
	}

	h.expectQuiet(250 * time.Millisecond)
}

func TestServerMonitoringKeyFilter(t *testing.T) {
	h := startServer(t, tap.SimConfig{Seed: 7, Rate: time.Millisecond})

	h.send(&command.StartMonitoring{
		Options: command.MonitorOptions{Keys: []string{"a"}},
	})

	for i := 0; i < 4; i++ {
		msg := h.next()
		switch evt := msg.(type) {
		case *event.KeyDown:
			assert.Equal(t, "a", evt.Key)
			assert.Equal(t, 0, evt.KeyCode)
		case *event.KeyUp:
			assert.Equal(t, "a", evt.Key)
			assert.Equal(t, 0, evt.KeyCode)
		default:
			t.Fatalf("unexpected %s event in the key stream", msg.GetName())
		}
	}
}

func TestServerBadCommandLines(t *testing.T) {
	h := startServer(t, tap.SimConfig{Seed: 1})

	h.sendRaw("not-json")
	msg := h.next()
	fail, ok := msg.(*event.Error)
	require.True(t, ok, "want error, got %s", msg.GetName())
	assert.Nil(t, fail.Data)
	assert.Contains(t, fail.Message, "bad command")

	h.sendRaw(`{"type":"mystery"}`)
	msg = h.next()
	fail, ok = msg.(*event.Error)
	require.True(t, ok, "want error, got %s", msg.GetName())
	assert.Contains(t, fail.Message, "bad command")

	//the session survives garbage input
	h.send(&command.Ping{})
	require.IsType(t, &event.Pong{}, h.next())
}

func TestServerContextCanceled(t *testing.T) {
	h := startServer(t, tap.SimConfig{Seed: 1})

	h.send(&command.Ping{})
	require.IsType(t, &event.Pong{}, h.next())

	h.cancel()
	require.ErrorIs(t, h.waitRun(), context.Canceled)
}
