package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keytap/keytap/pkg/bridge"
	"github.com/keytap/keytap/pkg/ipc/command"
	"github.com/keytap/keytap/pkg/ipc/event"
	agentstub "github.com/keytap/keytap/pkg/test/stub/agent"
	"github.com/keytap/keytap/pkg/testutil"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func newSupervisor(spawner *agentstub.Spawner, tweak func(*bridge.Options)) *bridge.Supervisor {
	opts := bridge.Options{
		AgentCmd:    []string{"keytap-agent-stub"},
		PingTimeout: 2 * time.Second,
		Spawner:     spawner,
	}

	if tweak != nil {
		tweak(&opts)
	}

	return bridge.New(opts)
}

func startOrFail(t *testing.T, sup *bridge.Supervisor) {
	t.Helper()

	require.NoError(t, sup.Start(context.Background()))
	require.Equal(t, bridge.StateReady, sup.State())
}

func TestStartReadyStopRestart(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, nil)

	var mu sync.Mutex
	var readyPids []int
	sup.Subscribe(bridge.KindReady, func(evt bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		readyPids = append(readyPids, evt.(bridge.ReadyEvent).Pid)
	})

	startOrFail(t, sup)

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(readyPids) == 1 && readyPids[0] == s.Pid()
	}, waitFor, tick)

	assert.ErrorIs(t, sup.Start(context.Background()), bridge.ErrAlreadyStarted)

	require.NoError(t, sup.Stop())
	assert.Equal(t, bridge.StateExited, sup.State())
	assert.True(t, s.Exited())

	//restart is explicit and spawns a fresh agent
	startOrFail(t, sup)
	assert.Equal(t, 2, spawner.Count())
	require.NoError(t, sup.Stop())
}

func TestStartCapabilityDenied(t *testing.T) {
	spawner := agentstub.NewSpawner()
	spawner.AnswerPing = false
	spawner.OnSession = func(s *agentstub.Session) {
		//deny the capability: report and exit without answering the probe
		<-s.Commands()
		_ = s.SendEvent(&event.Error{Message: "keyboard event tap permission denied"})
		s.Exit(2)
	}

	sup := newSupervisor(spawner, nil)

	err := sup.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, bridge.ErrCapability)
	assert.Contains(t, err.Error(), "code=2")
	assert.Equal(t, bridge.StateCrashed, sup.State())

	st := sup.LastExit()
	require.NotNil(t, st)
	assert.Equal(t, 2, st.Code)
}

func TestStartSlowAgentReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spawner := agentstub.NewSpawner()
	spawner.AnswerPing = false
	spawner.OnSession = func(s *agentstub.Session) {
		<-s.Commands()
		//pong arrives late, but still inside the probe window
		testutil.Delayed(ctx, 150*time.Millisecond, func() {
			_ = s.SendEvent(&event.Pong{})
		})
	}

	sup := newSupervisor(spawner, nil)

	startOrFail(t, sup)
	require.NoError(t, sup.Stop())
}

func TestStartProbeTimeout(t *testing.T) {
	spawner := agentstub.NewSpawner()
	spawner.AnswerPing = false

	sup := newSupervisor(spawner, func(opts *bridge.Options) {
		opts.PingTimeout = 100 * time.Millisecond
	})

	err := sup.Start(context.Background())
	assert.ErrorIs(t, err, bridge.ErrCapability)
	assert.Equal(t, bridge.StateCrashed, sup.State())

	s := spawner.Session(0)
	require.NotNil(t, s)
	require.Eventually(t, s.Exited, waitFor, tick)
	assert.True(t, s.Killed())
}

func TestStartContextCanceled(t *testing.T) {
	spawner := agentstub.NewSpawner()
	spawner.AnswerPing = false

	sup := newSupervisor(spawner, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sup.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, bridge.StateCrashed, sup.State())
}

func TestStartSpawnFailure(t *testing.T) {
	spawner := agentstub.NewSpawner()
	spawner.SpawnErr = errors.New("executable file not found")

	sup := newSupervisor(spawner, nil)

	err := sup.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawn agent")
	assert.Equal(t, bridge.StateNotStarted, sup.State())
}

func TestNotReadyOperations(t *testing.T) {
	sup := newSupervisor(agentstub.NewSpawner(), nil)

	_, err := sup.RegisterHotkey([]string{"k"}, nil)
	assert.ErrorIs(t, err, bridge.ErrNotReady)
	assert.ErrorIs(t, sup.UnregisterHotkey("some-id"), bridge.ErrNotReady)
	assert.ErrorIs(t, sup.StartMonitoring(command.MonitorOptions{AllKeys: true}), bridge.ErrNotReady)
	assert.ErrorIs(t, sup.StopMonitoring(), bridge.ErrNotReady)
	assert.ErrorIs(t, sup.Ping(context.Background()), bridge.ErrNotReady)

	assert.Empty(t, sup.Hotkeys())
	assert.Nil(t, sup.LastExit())
	assert.Equal(t, bridge.StateNotStarted, sup.State())

	//stopping a bridge that never ran is a no-op
	require.NoError(t, sup.Stop())
}

func TestRegisterHotkeyConfirmed(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	id, err := sup.RegisterHotkey([]string{"k"}, []string{"command", "shift"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	//usable immediately, ahead of the agent ack
	regs := sup.Hotkeys()
	require.Len(t, regs, 1)
	assert.Equal(t, id, regs[0].ID)

	msg := testutil.WaitCommandOrFail(t, s, command.RegisterHotkeyName)
	sent := msg.(*command.RegisterHotkey)
	assert.Equal(t, id, sent.ID)
	assert.Equal(t, []string{"k"}, sent.Keys)
	assert.Equal(t, []string{"command", "shift"}, sent.Modifiers)

	require.Eventually(t, func() bool {
		regs := sup.Hotkeys()
		return len(regs) == 1 && regs[0].State == bridge.RegStateConfirmed
	}, waitFor, tick)
}

func TestRegisterHotkeyOptimisticPending(t *testing.T) {
	spawner := agentstub.NewSpawner()
	spawner.AckHotkeys = false

	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	var mu sync.Mutex
	var hits []bridge.HotkeyEvent
	sup.Subscribe(bridge.KindHotkey, func(evt bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		hits = append(hits, evt.(bridge.HotkeyEvent))
	})

	id, err := sup.RegisterHotkey([]string{"j"}, []string{"option"})
	require.NoError(t, err)

	regs := sup.Hotkeys()
	require.Len(t, regs, 1)
	assert.Equal(t, bridge.RegStatePending, regs[0].State)

	//triggers are deliverable while the ack is still outstanding
	testutil.WaitCommandOrFail(t, s, command.RegisterHotkeyName)
	require.NoError(t, s.SendEvent(&event.HotkeyTriggered{ID: id, Timestamp: 11.5}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(hits) == 1
	}, waitFor, tick)

	mu.Lock()
	hit := hits[0]
	mu.Unlock()
	assert.Equal(t, id, hit.ID)
	assert.Equal(t, []string{"j"}, hit.Keys)
	assert.Equal(t, []string{"option"}, hit.Modifiers)
	assert.Equal(t, 11.5, hit.Timestamp)
}

func TestRegisterHotkeyRejected(t *testing.T) {
	spawner := agentstub.NewSpawner()
	spawner.AckHotkeys = false

	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	var mu sync.Mutex
	var errEvents []bridge.ErrorEvent
	sup.Subscribe(bridge.KindError, func(evt bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		errEvents = append(errEvents, evt.(bridge.ErrorEvent))
	})

	id, err := sup.RegisterHotkey([]string{"q"}, nil)
	require.NoError(t, err)

	testutil.WaitCommandOrFail(t, s, command.RegisterHotkeyName)
	require.NoError(t, s.SendEvent(&event.Error{
		Message: "combination already taken",
		Data:    &event.CorrelationData{ID: id},
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errEvents) == 1
	}, waitFor, tick)

	mu.Lock()
	rejected := errEvents[0]
	mu.Unlock()
	assert.Equal(t, id, rejected.RegistrationID)
	assert.ErrorIs(t, rejected.Err, bridge.ErrRegistrationRejected)
	assert.Empty(t, sup.Hotkeys())
}

func TestUnregisterHotkey(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	id, err := sup.RegisterHotkey([]string{"h"}, nil)
	require.NoError(t, err)
	testutil.WaitCommandOrFail(t, s, command.RegisterHotkeyName)

	require.NoError(t, sup.UnregisterHotkey(id))
	assert.Empty(t, sup.Hotkeys())

	msg := testutil.WaitCommandOrFail(t, s, command.UnregisterHotkeyName)
	assert.Equal(t, id, msg.(*command.UnregisterHotkey).ID)

	assert.ErrorIs(t, sup.UnregisterHotkey(id), bridge.ErrHotkeyNotFound)
	assert.ErrorIs(t, sup.UnregisterHotkey("no-such-id"), bridge.ErrHotkeyNotFound)
}

func TestUnregisterUnknownReplyNotRaised(t *testing.T) {
	spawner := agentstub.NewSpawner()
	spawner.AckHotkeys = false

	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	var errCount int32
	sup.Subscribe(bridge.KindError, func(bridge.Event) {
		atomic.AddInt32(&errCount, 1)
	})

	id, err := sup.RegisterHotkey([]string{"g"}, nil)
	require.NoError(t, err)
	testutil.WaitCommandOrFail(t, s, command.RegisterHotkeyName)

	require.NoError(t, sup.UnregisterHotkey(id))
	testutil.WaitCommandOrFail(t, s, command.UnregisterHotkeyName)

	//the local registry is authoritative, this reply is logged only
	require.NoError(t, s.SendEvent(&event.Error{
		Message: "unknown hotkey id",
		Data:    &event.CorrelationData{ID: id},
	}))

	assert.Never(t, func() bool {
		return atomic.LoadInt32(&errCount) > 0
	}, 300*time.Millisecond, 20*time.Millisecond)
}

func TestMonitoringLifecycle(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	var mu sync.Mutex
	var keys []bridge.KeyEvent
	sup.Subscribe(bridge.KindKey, func(evt bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, evt.(bridge.KeyEvent))
	})

	require.NoError(t, sup.StartMonitoring(command.MonitorOptions{AllKeys: true}))
	active, opts := sup.Monitoring()
	assert.True(t, active)
	assert.True(t, opts.AllKeys)

	msg := testutil.WaitCommandOrFail(t, s, command.StartMonitoringName)
	assert.True(t, msg.(*command.StartMonitoring).Options.AllKeys)

	require.NoError(t, s.SendEvent(&event.KeyDown{
		KeyInfo: event.KeyInfo{KeyCode: 4, Key: "h", Timestamp: 10.25},
	}))
	require.NoError(t, s.SendEvent(&event.KeyUp{
		KeyInfo: event.KeyInfo{KeyCode: 4, Key: "h", Timestamp: 10.5},
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(keys) == 2
	}, waitFor, tick)

	mu.Lock()
	first, second := keys[0], keys[1]
	mu.Unlock()
	assert.True(t, first.Down)
	assert.False(t, second.Down)
	assert.Equal(t, 4, first.KeyCode)
	assert.Equal(t, "h", first.Key)
	assert.LessOrEqual(t, first.Timestamp, second.Timestamp)

	//start while active re-sends with the new options
	require.NoError(t, sup.StartMonitoring(command.MonitorOptions{Keys: []string{"a"}}))
	msg = testutil.WaitCommandOrFail(t, s, command.StartMonitoringName)
	resent := msg.(*command.StartMonitoring)
	assert.False(t, resent.Options.AllKeys)
	assert.Equal(t, []string{"a"}, resent.Options.Keys)

	require.NoError(t, sup.StopMonitoring())
	active, _ = sup.Monitoring()
	assert.False(t, active)
	testutil.WaitCommandOrFail(t, s, command.StopMonitoringName)

	//stop while inactive stays local
	require.NoError(t, sup.StopMonitoring())
	testutil.ExpectNoCommand(t, s, 200*time.Millisecond)
}

func TestKeyEventBurstOrdered(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, func(opts *bridge.Options) {
		opts.QueueSize = 2048
	})
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	var mu sync.Mutex
	var codes []int
	sup.Subscribe(bridge.KindKey, func(evt bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		codes = append(codes, evt.(bridge.KeyEvent).KeyCode)
	})

	require.NoError(t, sup.StartMonitoring(command.MonitorOptions{AllKeys: true}))
	testutil.WaitCommandOrFail(t, s, command.StartMonitoringName)

	//one write, many lines: the assembler must split them back out and
	//the router must keep the arrival order
	var chunk strings.Builder
	for i := 0; i < 1000; i++ {
		if i > 0 {
			chunk.WriteByte('\n')
		}
		fmt.Fprintf(&chunk, `{"type":"keydown","keyCode":%d,"timestamp":%d.5}`, i, i)
	}
	require.NoError(t, s.SendRaw(chunk.String()))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(codes) == 1000
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	for i, code := range codes {
		require.Equal(t, i, code)
	}

	assert.Zero(t, sup.DroppedNotifications())
	assert.Zero(t, sup.DecodeErrors())
}

func TestHotkeyTriggerUnknownIDDropped(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	var mu sync.Mutex
	var hits []bridge.HotkeyEvent
	sup.Subscribe(bridge.KindHotkey, func(evt bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		hits = append(hits, evt.(bridge.HotkeyEvent))
	})

	id, err := sup.RegisterHotkey([]string{"t"}, nil)
	require.NoError(t, err)
	testutil.WaitCommandOrFail(t, s, command.RegisterHotkeyName)

	require.NoError(t, s.SendEvent(&event.HotkeyTriggered{ID: "ghost", Timestamp: 1}))
	require.NoError(t, s.SendEvent(&event.HotkeyTriggered{ID: id, Timestamp: 2.5}))
	require.NoError(t, s.SendEvent(&event.HotkeyTriggered{ID: id, Timestamp: 2.5}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(hits) == 2
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	for _, hit := range hits {
		assert.Equal(t, id, hit.ID)
	}
}

func TestBadEventLines(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	var mu sync.Mutex
	var errEvents []bridge.ErrorEvent
	var hits int
	sup.Subscribe(bridge.KindError, func(evt bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		errEvents = append(errEvents, evt.(bridge.ErrorEvent))
	})
	sup.Subscribe(bridge.KindHotkey, func(bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		hits++
	})

	id, err := sup.RegisterHotkey([]string{"y"}, nil)
	require.NoError(t, err)
	testutil.WaitCommandOrFail(t, s, command.RegisterHotkeyName)

	//a malformed line is reported and skipped, an unknown event kind
	//is dropped silently, the stream keeps flowing either way
	require.NoError(t, s.SendRaw("not-json"))
	require.NoError(t, s.SendRaw(`{"type":"mystery"}`))
	require.NoError(t, s.SendEvent(&event.HotkeyTriggered{ID: id, Timestamp: 5}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return hits == 1 && len(errEvents) == 1
	}, waitFor, tick)

	mu.Lock()
	bad := errEvents[0]
	mu.Unlock()
	assert.ErrorIs(t, bad.Err, bridge.ErrBadEvent)
	assert.Equal(t, uint64(2), sup.DecodeErrors())
}

func TestCrashReconciliation(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	_, err := sup.RegisterHotkey([]string{"r"}, nil)
	require.NoError(t, err)
	require.NoError(t, sup.StartMonitoring(command.MonitorOptions{AllKeys: true}))

	type snapshot struct {
		hotkeys   int
		monActive bool
		state     bridge.State
		code      int
		requested bool
	}

	var mu sync.Mutex
	var snaps []snapshot
	sup.Subscribe(bridge.KindExit, func(evt bridge.Event) {
		e := evt.(bridge.ExitEvent)
		active, _ := sup.Monitoring()

		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, snapshot{
			hotkeys:   len(sup.Hotkeys()),
			monActive: active,
			state:     sup.State(),
			code:      e.Code,
			requested: e.Requested,
		})
	})

	s.Exit(1)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snaps) == 1
	}, waitFor, tick)

	//registry and session were reconciled before the notification
	mu.Lock()
	sn := snaps[0]
	mu.Unlock()
	assert.Equal(t, 0, sn.hotkeys)
	assert.False(t, sn.monActive)
	assert.Equal(t, bridge.StateExited, sn.state)
	assert.Equal(t, 1, sn.code)
	assert.False(t, sn.requested)

	_, err = sup.RegisterHotkey([]string{"r"}, nil)
	assert.ErrorIs(t, err, bridge.ErrNotReady)

	//no automatic restart, a new Start brings up a fresh agent
	startOrFail(t, sup)
	assert.Equal(t, 2, spawner.Count())
	assert.Empty(t, sup.Hotkeys())
	require.NoError(t, sup.Stop())
}

func TestStopEscalatesToKill(t *testing.T) {
	spawner := agentstub.NewSpawner()
	spawner.TermExits = false
	spawner.IgnoreStdinClose = true

	sup := newSupervisor(spawner, func(opts *bridge.Options) {
		opts.StopGracePeriod = 100 * time.Millisecond
	})
	startOrFail(t, sup)

	var mu sync.Mutex
	var exits []bridge.ExitEvent
	sup.Subscribe(bridge.KindExit, func(evt bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		exits = append(exits, evt.(bridge.ExitEvent))
	})

	s := testutil.WaitSessionOrFail(t, spawner, 0)

	require.NoError(t, sup.Stop())
	assert.True(t, s.Killed())
	assert.Equal(t, bridge.StateExited, sup.State())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(exits) == 1 && exits[0].Requested
	}, waitFor, tick)
}

func TestPendingAckEviction(t *testing.T) {
	spawner := agentstub.NewSpawner()
	spawner.AckHotkeys = false

	sup := newSupervisor(spawner, func(opts *bridge.Options) {
		opts.PendingTTL = 50 * time.Millisecond
	})
	startOrFail(t, sup)
	defer sup.Stop()

	var errCount int32
	sup.Subscribe(bridge.KindError, func(bridge.Event) {
		atomic.AddInt32(&errCount, 1)
	})

	_, err := sup.RegisterHotkey([]string{"e"}, nil)
	require.NoError(t, err)

	regs := sup.Hotkeys()
	require.Len(t, regs, 1)
	assert.Equal(t, bridge.RegStatePending, regs[0].State)

	//an ack that never arrives leaves the optimistic entry in place
	require.Eventually(t, func() bool {
		regs := sup.Hotkeys()
		return len(regs) == 1 && regs[0].State == bridge.RegStateConfirmed
	}, waitFor, tick)

	assert.Zero(t, atomic.LoadInt32(&errCount))
}

func TestSlowSubscriberDoesNotStallReadLoop(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, func(opts *bridge.Options) {
		opts.QueueSize = 1
	})
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)
	testutil.WaitCommandOrFail(t, s, command.PingName)

	block := make(chan struct{})
	sup.Subscribe(bridge.KindKey, func(bridge.Event) {
		<-block
	})
	defer close(block)

	require.NoError(t, sup.StartMonitoring(command.MonitorOptions{AllKeys: true}))

	for i := 0; i < 20; i++ {
		require.NoError(t, s.SendEvent(&event.KeyDown{
			KeyInfo: event.KeyInfo{KeyCode: i, Timestamp: float64(i)},
		}))
	}

	//the read loop must stay live while the subscriber is stuck
	require.NoError(t, sup.Ping(context.Background()))
	assert.Greater(t, sup.DroppedNotifications(), uint64(0))
}

func TestStderrSurfaced(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)

	var mu sync.Mutex
	var lines []string
	sup.Subscribe(bridge.KindStderr, func(evt bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, evt.(bridge.StderrEvent).Line)
	})

	require.NoError(t, s.SendStderr("tap backend initialized"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lines) == 1 && lines[0] == "tap backend initialized"
	}, waitFor, tick)
}

func TestUncorrelatedAgentError(t *testing.T) {
	spawner := agentstub.NewSpawner()
	sup := newSupervisor(spawner, nil)
	startOrFail(t, sup)
	defer sup.Stop()

	s := testutil.WaitSessionOrFail(t, spawner, 0)

	var mu sync.Mutex
	var errEvents []bridge.ErrorEvent
	sup.Subscribe(bridge.KindError, func(evt bridge.Event) {
		mu.Lock()
		defer mu.Unlock()
		errEvents = append(errEvents, evt.(bridge.ErrorEvent))
	})

	require.NoError(t, s.SendEvent(&event.Error{Message: "event tap disabled by system"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errEvents) == 1
	}, waitFor, tick)

	mu.Lock()
	got := errEvents[0]
	mu.Unlock()
	assert.ErrorIs(t, got.Err, bridge.ErrAgentError)
	assert.Empty(t, got.RegistrationID)
	assert.Contains(t, got.Err.Error(), "event tap disabled by system")
}
