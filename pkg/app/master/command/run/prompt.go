package run

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
		{Text: command.FullFlagName(FlagHotkey), Description: FlagHotkeyUsage},
		{Text: command.FullFlagName(FlagBindings), Description: FlagBindingsUsage},
		{Text: command.FullFlagName(FlagMonitor), Description: FlagMonitorUsage},
		{Text: command.FullFlagName(FlagAllKeys), Description: FlagAllKeysUsage},
		{Text: command.FullFlagName(FlagKeys), Description: FlagKeysUsage},
		{Text: command.FullFlagName(FlagEvlog), Description: FlagEvlogUsage},
		{Text: command.FullFlagName(FlagDuration), Description: FlagDurationUsage},
		{Text: command.FullFlagName(command.FlagAgentCmd), Description: command.FlagAgentCmdUsage},
		{Text: command.FullFlagName(command.FlagPongTimeout), Description: command.FlagPongTimeoutUsage},
		{Text: command.FullFlagName(command.FlagStopGrace), Description: command.FlagStopGraceUsage},
	},
	Values: map[string]command.CompleteValue{
		command.FullFlagName(FlagBindings): command.CompleteFile,
		command.FullFlagName(FlagMonitor):  command.CompleteBool,
		command.FullFlagName(FlagAllKeys):  command.CompleteBool,
		command.FullFlagName(FlagEvlog):    command.CompleteFile,
	},
}
