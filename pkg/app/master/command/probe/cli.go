package probe

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/keytap/keytap/pkg/app"
	"github.com/keytap/keytap/pkg/app/master/command"
)

//Agent capability probing

const (
	Name  = "probe"
	Usage = "Checks that the keytap agent can run and has the OS permissions it needs"
	Alias = "prb"
)

type CommandParams struct {
	/// the command used to launch the agent subprocess
	AgentCmd []string
	/// how long to wait for the agent readiness handshake
	PongTimeout time.Duration
	/// how long to wait for a clean agent shutdown before killing it
	StopGrace time.Duration
}

var CLI = &cli.Command{
	Name:    Name,
	Aliases: []string{Alias},
	Usage:   Usage,
	Flags: []cli.Flag{
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
			AgentCmd:    agentCmd,
			PongTimeout: command.GetPongTimeout(ctx),
			StopGrace:   command.GetStopGrace(ctx),
		}

		OnCommand(
			xc,
			gcvalues,
			cparams)

		return nil
	},
}
