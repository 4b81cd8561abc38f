package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"

	"github.com/keytap/keytap/pkg/app"
	"github.com/keytap/keytap/pkg/app/master/command"
	"github.com/keytap/keytap/pkg/bridge"
	cmd "github.com/keytap/keytap/pkg/command"
	"github.com/keytap/keytap/pkg/report"
	"github.com/keytap/keytap/pkg/system"
	"github.com/keytap/keytap/pkg/util/jsonutil"
	"github.com/keytap/keytap/pkg/version"
)

const appName = command.AppName

// Probe command exit codes. A denied capability uses the agent's own
// capability exit code so scripts see the same value either way.
const (
	ecpFailed = 1
	ecpDenied = 2
)

type ovars = app.OutVars

// OnCommand implements the 'probe' command
func OnCommand(
	xc *app.ExecutionContext,
	gparams *command.GenericParams,
	cparams *CommandParams) {
	logger := log.WithFields(log.Fields{"app": appName, "cmd": Name})

	cmdReport := report.NewProbeCommand(gparams.ReportLocation)
	cmdReport.State = cmd.StateStarted
	cmdReport.AgentCmd = cparams.AgentCmd

	xc.Out.State(cmd.StateStarted)
	xc.Out.Info("params",
		ovars{
			"agent.cmd": strings.Join(cparams.AgentCmd, " "),
		})

	sysinfo := system.GetSystemInfo()
	cmdReport.System = report.SystemMetadata{
		Type:    sysinfo.Sysname,
		Release: sysinfo.Release,
		OS:      sysinfo.Distro.DisplayName,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := bridge.New(bridge.Options{
		AgentCmd:        cparams.AgentCmd,
		PingTimeout:     cparams.PongTimeout,
		StopGracePeriod: cparams.StopGrace,
	})

	readyPid := make(chan int, 1)
	sup.Subscribe(bridge.KindReady, func(evt bridge.Event) {
		if ready, ok := evt.(bridge.ReadyEvent); ok {
			select {
			case readyPid <- ready.Pid:
			default:
			}
		}
	})

	sup.Subscribe(bridge.KindStderr, func(evt bridge.Event) {
		if se, ok := evt.(bridge.StderrEvent); ok {
			logger.Debugf("agent stderr: %s", se.Line)
		}
	})

	cmdReport.ProbeTime = time.Now().UTC().Format(time.RFC3339)

	err := sup.Start(ctx)
	switch {
	case err == nil:
		cmdReport.Capability = true

		//the ready notification is delivered asynchronously
		select {
		case pid := <-readyPid:
			cmdReport.Pid = pid
		case <-time.After(time.Second):
		}

		if err := sup.Stop(); err != nil {
			logger.WithError(err).Debug("bridge.stop")
		}

		if lastExit := sup.LastExit(); lastExit != nil {
			cmdReport.ExitCode = lastExit.Code
		}

		cmdReport.AgentBuild = fetchAgentBuild(ctx, logger, cparams.AgentCmd)

		xc.Out.Info("probe.result",
			ovars{
				"capability": "ok",
				"agent.pid":  cmdReport.Pid,
			})

		if cmdReport.AgentBuild != nil {
			xc.Out.Info("agent.build",
				ovars{
					"version": cmdReport.AgentBuild.Version,
					"runtime": cmdReport.AgentBuild.GoVersion,
				})
		}

		xc.Out.State(cmd.StateCompleted)
		cmdReport.State = cmd.StateCompleted

		if xc.Out.Quiet {
			if xc.Out.OutputFormat == app.OutputFormatJSON {
				fmt.Printf("%s", jsonutil.ToPretty(cmdReport))
			} else {
				fmt.Println("ok")
			}
		} else if xc.Out.OutputFormat == app.OutputFormatText {
			printProbeSummary(cmdReport)
		}

		xc.Out.State(cmd.StateDone)
		cmdReport.State = cmd.StateDone
		if cmdReport.Save() {
			xc.Out.Info("report",
				ovars{
					"file": cmdReport.ReportLocation(),
				})
		}

	case errors.Is(err, bridge.ErrCapability):
		cmdReport.Capability = false
		if lastExit := sup.LastExit(); lastExit != nil {
			cmdReport.ExitCode = lastExit.Code
		}

		cmdReport.AgentBuild = fetchAgentBuild(ctx, logger, cparams.AgentCmd)

		xc.Out.Info("probe.result",
			ovars{
				"capability": "denied",
				"message":    "grant the agent binary the OS input monitoring permission and retry",
			})

		if xc.Out.Quiet {
			if xc.Out.OutputFormat == app.OutputFormatJSON {
				fmt.Printf("%s", jsonutil.ToPretty(cmdReport))
			} else {
				fmt.Println("denied")
			}
		} else if xc.Out.OutputFormat == app.OutputFormatText {
			printProbeSummary(cmdReport)
		}

		cmdReport.State = cmd.StateDone
		if cmdReport.Save() {
			xc.Out.Info("report",
				ovars{
					"file": cmdReport.ReportLocation(),
				})
		}

		xc.Out.State(cmd.StateExited,
			ovars{
				"exit.code": ecpDenied,
			})
		xc.Exit(ecpDenied)

	default:
		cmdReport.Error = err.Error()
		xc.Out.Error("agent.start", err.Error())

		cmdReport.State = cmd.StateError
		if cmdReport.Save() {
			xc.Out.Info("report",
				ovars{
					"file": cmdReport.ReportLocation(),
				})
		}

		xc.Out.State(cmd.StateExited,
			ovars{
				"exit.code": ecpFailed,
			})
		xc.Exit(ecpFailed)
	}
}

// fetchAgentBuild asks the agent binary for its build info using its
// appbom flag. Agents that do not implement the flag only lose the
// build details in the probe output.
func fetchAgentBuild(ctx context.Context, logger *log.Entry, cmdline []string) *version.BOM {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	args := append(append([]string(nil), cmdline[1:]...), "-appbom")
	out, err := exec.CommandContext(ctx, cmdline[0], args...).Output()
	if err != nil {
		logger.WithError(err).Debug("agent appbom query failed")
		return nil
	}

	var bom version.BOM
	if err := json.Unmarshal(out, &bom); err != nil {
		logger.WithError(err).Debug("agent appbom output not parsable")
		return nil
	}

	return &bom
}

func printProbeSummary(cmdReport *report.ProbeCommand) {
	capability := "denied"
	if cmdReport.Capability {
		capability = "ok"
	}

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Probe", "Result"})
	tw.AppendRow(table.Row{"capability", capability})
	tw.AppendRow(table.Row{"agent", strings.Join(cmdReport.AgentCmd, " ")})

	if cmdReport.Pid != 0 {
		tw.AppendRow(table.Row{"agent pid", cmdReport.Pid})
	}

	tw.AppendRow(table.Row{"exit code", cmdReport.ExitCode})

	if build := cmdReport.AgentBuild; build != nil {
		tw.AppendRow(table.Row{"agent version", build.Version})
		tw.AppendRow(table.Row{"agent runtime", build.GoVersion})
		if build.Entrypoint != "" {
			tw.AppendRow(table.Row{"agent entrypoint", build.Entrypoint})
		}
	}

	tw.SetStyle(table.StyleLight)
	tw.Style().Options.DrawBorder = false
	fmt.Printf("%s\n", tw.Render())
}
