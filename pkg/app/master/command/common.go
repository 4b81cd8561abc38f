package command

import (
	"github.com/c-bata/go-prompt"
	"github.com/urfave/cli/v2"
)

/////////////////////////////////////////////////////////

type GenericParams struct {
	NoColor        bool
	Debug          bool
	Verbose        bool
	QuietCLIMode   bool
	LogLevel       string
	LogFormat      string
	OutputFormat   string
	Log            string
	ReportLocation string
}

// Exit Code Types
const (
	ECTCommon = 0x01000000
	ECTRun    = 0x02000000
	ECTProbe  = 0x03000000
)

// Common exit codes
const (
	ECCOther = iota + 1
	ECCBadParams
	ECCAgentError
)

const (
	AppName = "keytap"
)

///////////////////////////////////////

var cliCommands []*cli.Command

func AddCLICommand(
	name string,
	cmd *cli.Command,
	cmdSuggestion prompt.Suggest,
	flagSuggestions *FlagSuggestions) {
	cliCommands = append(cliCommands, cmd)
	if flagSuggestions != nil {
		CommandFlagSuggestions[name] = flagSuggestions
	}

	if cmdSuggestion.Text != "" {
		CommandSuggestions = append(CommandSuggestions, cmdSuggestion)
	}
}

func GetCommands() []*cli.Command {
	return cliCommands
}
