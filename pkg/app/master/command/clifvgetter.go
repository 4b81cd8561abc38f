package command

//Flag value getters

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/urfave/cli/v2"

	"github.com/keytap/keytap/pkg/consts"
)

var ErrEmptyAgentCmd = errors.New("agent command is empty")

func GlobalFlagValues(ctx *cli.Context) *GenericParams {
	values := GenericParams{
		NoColor:        ctx.Bool(FlagNoColor),
		Debug:          ctx.Bool(FlagDebug),
		Verbose:        ctx.Bool(FlagVerbose),
		QuietCLIMode:   ctx.Bool(FlagQuietCLIMode),
		LogLevel:       ctx.String(FlagLogLevel),
		LogFormat:      ctx.String(FlagLogFormat),
		OutputFormat:   ctx.String(FlagOutputFormat),
		Log:            ctx.String(FlagLog),
		ReportLocation: ctx.String(FlagCommandReport),
	}

	if values.ReportLocation == "off" {
		values.ReportLocation = ""
	}

	return &values
}

// GetAgentCommand shlex-splits the agent command flag into the agent
// executable and its arguments
func GetAgentCommand(ctx *cli.Context) ([]string, error) {
	return ParseAgentCommand(ctx.String(FlagAgentCmd))
}

func ParseAgentCommand(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = consts.AgentAppName
	}

	args, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("agent command %q: %w", raw, err)
	}

	if len(args) == 0 {
		return nil, ErrEmptyAgentCmd
	}

	return args, nil
}

// GetPongTimeout reads the startup ping reply timeout flag
func GetPongTimeout(ctx *cli.Context) time.Duration {
	return time.Duration(ctx.Int(FlagPongTimeout)) * time.Second
}

// GetStopGrace reads the agent stop grace period flag
func GetStopGrace(ctx *cli.Context) time.Duration {
	return time.Duration(ctx.Int(FlagStopGrace)) * time.Second
}
