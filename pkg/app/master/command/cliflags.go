package command

import (
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/keytap/keytap/pkg/consts"
)

/////////////////////////////////////////////////////////
//Flags
/////////////////////////////////////////////////////////

// Global flag names
const (
	FlagCommandReport = "report"
	FlagDebug         = "debug"
	FlagVerbose       = "verbose"
	FlagQuietCLIMode  = "quiet"
	FlagLogLevel      = "log-level"
	FlagLog           = "log"
	FlagLogFormat     = "log-format"
	FlagNoColor       = "no-color"
	FlagOutputFormat  = "output-format"
)

const (
	OutputFormatJSON = "json"
	OutputFormatText = "text"
)

// Global flag usage info
const (
	FlagCommandReportUsage = "command report location (disabled by default; set it to a file path to enable it)"
	FlagDebugUsage         = "enable debug logs"
	FlagVerboseUsage       = "enable info logs"
	FlagQuietCLIModeUsage  = "Quiet CLI execution mode"
	FlagLogLevelUsage      = "set the logging level ('trace', 'debug', 'info', 'warn' (default), 'error', 'fatal', 'panic')"
	FlagLogUsage           = "log file to store logs"
	FlagLogFormatUsage     = "set the format used by logs ('text' (default), or 'json')"
	FlagOutputFormatUsage  = "set the output format to use ('text' (default), or 'json')"
	FlagNoColorUsage       = "disable color output"
)

// Shared command flag names
const (
	FlagAgentCmd    = "agent-cmd"
	FlagPongTimeout = "pong-timeout"
	FlagStopGrace   = "stop-grace"
)

// Shared command flag usage info
const (
	FlagAgentCmdUsage    = "Agent command to spawn (executable, optionally with arguments)"
	FlagPongTimeoutUsage = "Number of seconds to wait for the agent to answer the startup ping"
	FlagStopGraceUsage   = "Number of seconds to wait after SIGTERM before the agent gets killed"
)

func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagCommandReport,
			Value:   "off",
			Usage:   FlagCommandReportUsage,
			EnvVars: []string{"KEYTAP_REPORT"},
		},
		&cli.BoolFlag{
			Name:    FlagDebug,
			Usage:   FlagDebugUsage,
			EnvVars: []string{"KEYTAP_DEBUG"},
		},
		&cli.BoolFlag{
			Name:    FlagVerbose,
			Usage:   FlagVerboseUsage,
			EnvVars: []string{"KEYTAP_VERBOSE"},
		},
		&cli.BoolFlag{
			Name:    FlagQuietCLIMode,
			Usage:   FlagQuietCLIModeUsage,
			EnvVars: []string{"KEYTAP_QUIET"},
		},
		&cli.StringFlag{
			Name:    FlagLogLevel,
			Value:   "warn",
			Usage:   FlagLogLevelUsage,
			EnvVars: []string{"KEYTAP_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    FlagLog,
			Usage:   FlagLogUsage,
			EnvVars: []string{"KEYTAP_LOG"},
		},
		&cli.StringFlag{
			Name:    FlagLogFormat,
			Value:   "text",
			Usage:   FlagLogFormatUsage,
			EnvVars: []string{"KEYTAP_LOG_FORMAT"},
		},
		&cli.StringFlag{
			Name:    FlagOutputFormat,
			Value:   OutputFormatText,
			Usage:   FlagOutputFormatUsage,
			EnvVars: []string{"KEYTAP_OUTPUT_FORMAT"},
		},
		&cli.BoolFlag{
			Name:    FlagNoColor,
			Usage:   FlagNoColorUsage,
			EnvVars: []string{"KEYTAP_NO_COLOR"},
		},
	}
}

var CommonFlags = map[string]cli.Flag{
	FlagAgentCmd: &cli.StringFlag{
		Name:    FlagAgentCmd,
		Value:   consts.AgentAppName,
		Usage:   FlagAgentCmdUsage,
		EnvVars: []string{"KEYTAP_AGENT_CMD"},
	},
	FlagPongTimeout: &cli.IntFlag{
		Name:    FlagPongTimeout,
		Value:   5,
		Usage:   FlagPongTimeoutUsage,
		EnvVars: []string{"KEYTAP_PONG_TIMEOUT"},
	},
	FlagStopGrace: &cli.IntFlag{
		Name:    FlagStopGrace,
		Value:   3,
		Usage:   FlagStopGraceUsage,
		EnvVars: []string{"KEYTAP_STOP_GRACE"},
	},
}

func Cflag(name string) cli.Flag {
	cf, ok := CommonFlags[name]
	if !ok {
		log.Fatalf("command.Cflag: unknown flag='%s'", name)
	}

	return cf
}
