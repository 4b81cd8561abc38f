package run

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/keytap/keytap/pkg/app"
	"github.com/keytap/keytap/pkg/app/master/command"
	"github.com/keytap/keytap/pkg/app/master/config"
	"github.com/keytap/keytap/pkg/combo"
)

const (
	Name  = "run"
	Usage = "Runs a hotkey session using the keytap agent"
	Alias = "r"
)

type CommandParams struct {
	/// the command used to launch the agent subprocess
	AgentCmd []string
	/// how long to wait for the agent readiness handshake
	PongTimeout time.Duration
	/// how long to wait for a clean agent shutdown before killing it
	StopGrace time.Duration
	/// hotkey bindings to register after the handshake
	Hotkeys []config.HotkeyBinding
	/// enable key event monitoring
	Monitor bool
	/// monitor all keys instead of a selected subset
	AllKeys bool
	/// key names to monitor
	MonitorKeys []string
	/// session event journal location ("" means disabled)
	EvlogLocation string
	/// how long to run (0 means until interrupted)
	Duration time.Duration
}

var CLI = &cli.Command{
	Name:    Name,
	Aliases: []string{Alias},
	Usage:   Usage,
	Flags: []cli.Flag{
		cflag(FlagHotkey),
		cflag(FlagBindings),
		cflag(FlagMonitor),
		cflag(FlagAllKeys),
		cflag(FlagKeys),
		cflag(FlagEvlog),
		cflag(FlagDuration),
		command.Cflag(command.FlagAgentCmd),
		command.Cflag(command.FlagPongTimeout),
		command.Cflag(command.FlagStopGrace),
	},
	Action: func(ctx *cli.Context) error {
		gcvalues := command.GlobalFlagValues(ctx)
		xc := app.NewExecutionContext(
			Name,
			gcvalues.QuietCLIMode,
			gcvalues.OutputFormat)

		agentCmd, err := command.GetAgentCommand(ctx)
		if err != nil {
			xc.Out.Error("param.agent.cmd", err.Error())
			xc.Out.State("exited",
				ovars{
					"exit.code": -1,
				})
			xc.Exit(-1)
		}

		cparams := &CommandParams{
			AgentCmd:      agentCmd,
			PongTimeout:   command.GetPongTimeout(ctx),
			StopGrace:     command.GetStopGrace(ctx),
			Monitor:       ctx.Bool(FlagMonitor),
			AllKeys:       ctx.Bool(FlagAllKeys),
			EvlogLocation: ctx.String(FlagEvlog),
			Duration:      time.Duration(ctx.Int(FlagDuration)) * time.Second,
		}

		for _, spec := range ctx.StringSlice(FlagHotkey) {
			binding, err := config.ParseHotkeySpec(spec)
			if err != nil {
				xc.Out.Error("param.hotkey", err.Error())
				xc.Out.State("exited",
					ovars{
						"exit.code": -1,
					})
				xc.Exit(-1)
			}

			cparams.Hotkeys = append(cparams.Hotkeys, binding)
		}

		if fileName := ctx.String(FlagBindings); fileName != "" {
			bindings, err := config.LoadBindings(fileName)
			if err != nil {
				xc.Out.Error("param.bindings", err.Error())
				xc.Out.State("exited",
					ovars{
						"exit.code": -1,
					})
				xc.Exit(-1)
			}

			cparams.Hotkeys = append(cparams.Hotkeys, bindings.Hotkeys...)
			if bindings.Monitor.Enabled {
				cparams.Monitor = true
				if bindings.Monitor.AllKeys {
					cparams.AllKeys = true
				}

				cparams.MonitorKeys = append(cparams.MonitorKeys, bindings.Monitor.Keys...)
			}
		}

		for _, name := range ctx.StringSlice(FlagKeys) {
			if key := combo.NormalizeKey(name); key != "" {
				cparams.MonitorKeys = append(cparams.MonitorKeys, key)
			}
		}

		//selecting keys or all keys implies monitoring
		if cparams.AllKeys || len(cparams.MonitorKeys) > 0 {
			cparams.Monitor = true
		}

		//bare --monitor with no key selection means all keys
		if cparams.Monitor && !cparams.AllKeys && len(cparams.MonitorKeys) == 0 {
			cparams.AllKeys = true
		}

		if len(cparams.Hotkeys) == 0 && !cparams.Monitor {
			xc.Out.Error("param", "nothing to do - no hotkeys and no monitoring")
			cli.ShowCommandHelp(ctx, Name)
			xc.Out.State("exited",
				ovars{
					"exit.code": -1,
				})
			xc.Exit(-1)
		}

		OnCommand(
			xc,
			gcvalues,
			cparams)

		return nil
	},
}
