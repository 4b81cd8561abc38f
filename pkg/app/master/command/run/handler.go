package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"

	"github.com/keytap/keytap/pkg/app"
	"github.com/keytap/keytap/pkg/app/master/command"
	"github.com/keytap/keytap/pkg/app/master/config"
	"github.com/keytap/keytap/pkg/app/master/signals"
	"github.com/keytap/keytap/pkg/bridge"
	cmd "github.com/keytap/keytap/pkg/command"
	"github.com/keytap/keytap/pkg/evlog"
	ipc "github.com/keytap/keytap/pkg/ipc/command"
	"github.com/keytap/keytap/pkg/report"
	"github.com/keytap/keytap/pkg/system"
	"github.com/keytap/keytap/pkg/util/fsutil"
	v "github.com/keytap/keytap/pkg/version"
)

const appName = command.AppName

// Run command exit codes
const (
	ecbOther = iota + 1
	ecbAgent
)

type ovars = app.OutVars

var sessionEventOrder = []string{
	report.SEKindReady,
	report.SEKindTrigger,
	report.SEKindKeyDown,
	report.SEKindKeyUp,
	report.SEKindError,
	report.SEKindExit,
}

// OnCommand implements the 'run' command
func OnCommand(
	xc *app.ExecutionContext,
	gparams *command.GenericParams,
	cparams *CommandParams) {
	logger := log.WithFields(log.Fields{"app": appName, "cmd": Name})

	cmdReport := report.NewRunCommand(gparams.ReportLocation)
	cmdReport.State = cmd.StateStarted

	cmdReportOnExit := func() {
		cmdReport.State = cmd.StateError
		if cmdReport.Save() {
			xc.Out.Info("report",
				ovars{
					"file": cmdReport.ReportLocation(),
				})
		}
	}

	xc.AddCleanupHandler(cmdReportOnExit)

	xc.Out.State(cmd.StateStarted)
	xc.Out.Info("params",
		ovars{
			"agent.cmd": strings.Join(cparams.AgentCmd, " "),
			"hotkeys":   len(cparams.Hotkeys),
			"monitor":   cparams.Monitor,
		})

	sysinfo := system.GetSystemInfo()
	cmdReport.System = report.SystemMetadata{
		Type:    sysinfo.Sysname,
		Release: sysinfo.Release,
		OS:      sysinfo.Distro.DisplayName,
	}

	cmdReport.Agent.Cmd = cparams.AgentCmd
	cmdReport.Monitoring = cparams.Monitor
	cmdReport.EventLogLocation = cparams.EvlogLocation

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var journal evlog.Publisher
	if cparams.EvlogLocation != "" {
		journal = evlog.NewPublisher(ctx, true, cparams.EvlogLocation)
		xc.AddCleanupHandler(journal.Stop)
	}

	session := newSessionTally()
	agentExit := make(chan bridge.ExitEvent, 1)

	sup := bridge.New(bridge.Options{
		AgentCmd:        cparams.AgentCmd,
		PingTimeout:     cparams.PongTimeout,
		StopGracePeriod: cparams.StopGrace,
	})

	sup.Subscribe(bridge.KindReady, func(evt bridge.Event) {
		ready, ok := evt.(bridge.ReadyEvent)
		if !ok {
			return
		}

		session.count(report.SEKindReady)
		session.setPid(ready.Pid)
		xc.Out.Info("agent.ready",
			ovars{
				"pid": ready.Pid,
			})

		if journal != nil {
			journal.Publish(&report.SessionEvent{
				Kind: report.SEKindReady,
				Pid:  ready.Pid,
			})
		}
	})

	sup.Subscribe(bridge.KindHotkey, func(evt bridge.Event) {
		hk, ok := evt.(bridge.HotkeyEvent)
		if !ok {
			return
		}

		session.count(report.SEKindTrigger)
		session.countTrigger(hk.ID)

		display := config.HotkeyBinding{Keys: hk.Keys, Modifiers: hk.Modifiers}
		xc.Out.Info("hotkey",
			ovars{
				"id":    hk.ID,
				"combo": display.String(),
				"time":  hk.Timestamp,
			})

		if journal != nil {
			journal.Publish(&report.SessionEvent{
				Kind:      report.SEKindTrigger,
				HotkeyID:  hk.ID,
				EventTime: hk.Timestamp,
			})
		}
	})

	sup.Subscribe(bridge.KindKey, func(evt bridge.Event) {
		ke, ok := evt.(bridge.KeyEvent)
		if !ok {
			return
		}

		kind := report.SEKindKeyDown
		state := "down"
		if !ke.Down {
			kind = report.SEKindKeyUp
			state = "up"
		}

		session.count(kind)

		info := ovars{
			"state": state,
			"code":  ke.KeyCode,
			"time":  ke.Timestamp,
		}

		if ke.Key != "" {
			info["key"] = ke.Key
		}

		if len(ke.Modifiers) > 0 {
			info["mods"] = strings.Join(ke.Modifiers, "+")
		}

		xc.Out.Info("key", info)

		if journal != nil {
			journal.Publish(&report.SessionEvent{
				Kind:      kind,
				EventTime: ke.Timestamp,
				Key: &report.SessionKeyData{
					Code:      ke.KeyCode,
					Name:      ke.Key,
					Modifiers: ke.Modifiers,
				},
			})
		}
	})

	sup.Subscribe(bridge.KindError, func(evt bridge.Event) {
		ee, ok := evt.(bridge.ErrorEvent)
		if !ok {
			return
		}

		session.count(report.SEKindError)

		msg := ee.Err.Error()
		if ee.RegistrationID != "" {
			msg = fmt.Sprintf("%s (hotkey.id=%s)", msg, ee.RegistrationID)
		}

		xc.Out.Error("agent.event", msg)

		if journal != nil {
			journal.Publish(&report.SessionEvent{
				Kind:     report.SEKindError,
				HotkeyID: ee.RegistrationID,
				Message:  ee.Err.Error(),
			})
		}
	})

	sup.Subscribe(bridge.KindExit, func(evt bridge.Event) {
		xe, ok := evt.(bridge.ExitEvent)
		if !ok {
			return
		}

		session.count(report.SEKindExit)
		session.setExit(xe)

		if journal != nil {
			journal.Publish(&report.SessionEvent{
				Kind: report.SEKindExit,
				Exit: &report.SessionExitData{
					Code:      xe.Code,
					Requested: xe.Requested,
				},
			})
		}

		select {
		case agentExit <- xe:
		default:
		}
	})

	sup.Subscribe(bridge.KindStderr, func(evt bridge.Event) {
		se, ok := evt.(bridge.StderrEvent)
		if !ok {
			return
		}

		logger.Debugf("agent stderr: %s", se.Line)
	})

	startTime := time.Now()
	xc.Out.State("agent.starting")

	if err := sup.Start(ctx); err != nil {
		cmdReport.Error = err.Error()
		if errors.Is(err, bridge.ErrCapability) {
			xc.Out.Info("agent.capability",
				ovars{
					"status":  "denied",
					"message": "grant the agent binary the OS input monitoring permission and retry",
				})
		}

		xc.Out.Error("agent.start", err.Error())

		exitCode := command.ECTRun | ecbAgent
		xc.Out.State(cmd.StateExited,
			ovars{
				"exit.code": exitCode,
				"version":   v.Current(),
				"location":  fsutil.ExeDir(),
			})
		xc.Exit(exitCode)
	}

	for _, binding := range cparams.Hotkeys {
		id, err := sup.RegisterHotkey(binding.Keys, binding.Modifiers)
		if err != nil {
			cmdReport.Error = err.Error()
			xc.Out.Error("hotkey.register", err.Error())

			exitCode := command.ECTRun | ecbAgent
			xc.Out.State(cmd.StateExited,
				ovars{
					"exit.code": exitCode,
					"version":   v.Current(),
					"location":  fsutil.ExeDir(),
				})
			xc.Exit(exitCode)
		}

		info := ovars{
			"id":    id,
			"combo": binding.String(),
		}

		if binding.Label != "" {
			info["label"] = binding.Label
		}

		xc.Out.Info("hotkey.registered", info)
	}

	if cparams.Monitor {
		opts := ipc.MonitorOptions{
			AllKeys: cparams.AllKeys,
			Keys:    cparams.MonitorKeys,
		}

		if err := sup.StartMonitoring(opts); err != nil {
			cmdReport.Error = err.Error()
			xc.Out.Error("monitor.start", err.Error())

			exitCode := command.ECTRun | ecbAgent
			xc.Out.State(cmd.StateExited,
				ovars{
					"exit.code": exitCode,
					"version":   v.Current(),
					"location":  fsutil.ExeDir(),
				})
			xc.Exit(exitCode)
		}

		info := ovars{
			"all.keys": opts.AllKeys,
		}

		if len(opts.Keys) > 0 {
			info["keys"] = strings.Join(opts.Keys, ",")
		}

		xc.Out.Info("monitor.started", info)
	}

	xc.Out.State("running")
	if cparams.Duration > 0 {
		xc.Out.Info("session",
			ovars{
				"duration": cparams.Duration.String(),
			})
	} else {
		xc.Out.Info("session",
			ovars{
				"note": "press ctrl-c to stop",
			})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var timerChan <-chan time.Time
	if cparams.Duration > 0 {
		timer := time.NewTimer(cparams.Duration)
		defer timer.Stop()
		timerChan = timer.C
	}

	var crashed bool
	var doneReason string
	select {
	case sig := <-sigChan:
		doneReason = fmt.Sprintf("signal: %v", sig)
	case <-timerChan:
		doneReason = "duration reached"
	case <-signals.AppContinueChan:
		doneReason = "continue signal"
	case xe := <-agentExit:
		doneReason = fmt.Sprintf("agent exited: code=%d", xe.Code)
		crashed = !xe.Requested
	}

	xc.Out.Info("session.stopping",
		ovars{
			"reason": doneReason,
		})

	hotkeys := sup.Hotkeys()

	if err := sup.Stop(); err != nil {
		logger.WithError(err).Debug("bridge.stop")
	}

	endTime := time.Now()
	snap := session.snapshot()

	cmdReport.StartTime = startTime.UTC().Format(time.RFC3339)
	cmdReport.EndTime = endTime.UTC().Format(time.RFC3339)
	cmdReport.Duration = endTime.Sub(startTime).Round(time.Millisecond).String()
	cmdReport.Agent.Pid = snap.agentPid
	cmdReport.Agent.Starts = 1
	cmdReport.Agent.ExitRequested = !crashed
	if lastExit := sup.LastExit(); lastExit != nil {
		cmdReport.Agent.ExitCode = lastExit.Code
	} else if snap.lastExit != nil {
		cmdReport.Agent.ExitCode = snap.lastExit.Code
	}

	for _, reg := range hotkeys {
		cmdReport.Hotkeys = append(cmdReport.Hotkeys, report.HotkeyMetadata{
			ID:        reg.ID,
			Keys:      reg.Keys,
			Modifiers: reg.Modifiers,
			State:     string(reg.State),
			Triggers:  snap.triggers[reg.ID],
		})
	}

	cmdReport.EventCounts = snap.counts
	cmdReport.DecodeErrors = sup.DecodeErrors()
	cmdReport.DroppedNotifications = sup.DroppedNotifications()

	if crashed {
		cmdReport.Error = "agent exited unexpectedly"
		xc.Out.Error("agent.exit", "agent exited unexpectedly")

		exitCode := command.ECTRun | ecbAgent
		xc.Out.State(cmd.StateExited,
			ovars{
				"exit.code": exitCode,
				"version":   v.Current(),
				"location":  fsutil.ExeDir(),
			})
		xc.Exit(exitCode)
	}

	xc.Out.State(cmd.StateCompleted)
	cmdReport.State = cmd.StateCompleted

	if journal != nil {
		journal.Stop()
	}

	var eventTotal uint64
	for _, n := range snap.counts {
		eventTotal += n
	}

	uptime := strings.TrimSpace(humanize.RelTime(startTime, endTime, "", ""))
	xc.Out.Info("summary",
		ovars{
			"uptime":          uptime,
			"events.total":    eventTotal,
			"hotkey.triggers": snap.counts[report.SEKindTrigger],
			"decode.errors":   cmdReport.DecodeErrors,
			"dropped":         cmdReport.DroppedNotifications,
		})

	for _, reg := range hotkeys {
		display := config.HotkeyBinding{Keys: reg.Keys, Modifiers: reg.Modifiers}
		xc.Out.Info("hotkey.summary",
			ovars{
				"id":       reg.ID,
				"combo":    display.String(),
				"state":    string(reg.State),
				"triggers": snap.triggers[reg.ID],
			})
	}

	if !xc.Out.Quiet && xc.Out.OutputFormat == app.OutputFormatText {
		printSessionSummary(snap.counts, eventTotal)
	}

	xc.Out.State(cmd.StateDone)

	cmdReport.State = cmd.StateDone
	if cmdReport.Save() {
		xc.Out.Info("report",
			ovars{
				"file": cmdReport.ReportLocation(),
			})
	}
}

func printSessionSummary(counts map[string]uint64, total uint64) {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Event", "Count"})

	for _, kind := range sessionEventOrder {
		tw.AppendRow(table.Row{kind, humanize.Comma(int64(counts[kind]))})
	}

	tw.AppendFooter(table.Row{"total", humanize.Comma(int64(total))})
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.DrawBorder = false
	fmt.Printf("%s\n", tw.Render())
}

// sessionTally collects the session counters updated by the
// subscription callbacks. Callbacks run on their own goroutines.
type sessionTally struct {
	mu       sync.Mutex
	counts   map[string]uint64
	triggers map[string]uint64
	agentPid int
	lastExit *bridge.ExitEvent
}

type sessionSnapshot struct {
	counts   map[string]uint64
	triggers map[string]uint64
	agentPid int
	lastExit *bridge.ExitEvent
}

func newSessionTally() *sessionTally {
	return &sessionTally{
		counts:   map[string]uint64{},
		triggers: map[string]uint64{},
	}
}

func (ref *sessionTally) count(kind string) {
	ref.mu.Lock()
	ref.counts[kind]++
	ref.mu.Unlock()
}

func (ref *sessionTally) countTrigger(id string) {
	ref.mu.Lock()
	ref.triggers[id]++
	ref.mu.Unlock()
}

func (ref *sessionTally) setPid(pid int) {
	ref.mu.Lock()
	ref.agentPid = pid
	ref.mu.Unlock()
}

func (ref *sessionTally) setExit(evt bridge.ExitEvent) {
	ref.mu.Lock()
	ref.lastExit = &evt
	ref.mu.Unlock()
}

func (ref *sessionTally) snapshot() sessionSnapshot {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	snap := sessionSnapshot{
		counts:   make(map[string]uint64, len(ref.counts)),
		triggers: make(map[string]uint64, len(ref.triggers)),
		agentPid: ref.agentPid,
		lastExit: ref.lastExit,
	}

	for k, n := range ref.counts {
		snap.counts[k] = n
	}

	for k, n := range ref.triggers {
		snap.triggers[k] = n
	}

	return snap
}
