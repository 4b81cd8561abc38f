package probe

import (
	"github.com/c-bata/go-prompt"

	"github.com/keytap/keytap/pkg/app/master/command"
)

var CommandSuggestion = prompt.Suggest{
	Text:        Name,
	Description: Usage,
}

var CommandFlagSuggestions = &command.FlagSuggestions{
	Names: []prompt.Suggest{
		{Text: command.FullFlagName(command.FlagAgentCmd), Description: command.FlagAgentCmdUsage},
		{Text: command.FullFlagName(command.FlagPongTimeout), Description: command.FlagPongTimeoutUsage},
		{Text: command.FullFlagName(command.FlagStopGrace), Description: command.FlagStopGraceUsage},
	},
	Values: map[string]command.CompleteValue{},
}
