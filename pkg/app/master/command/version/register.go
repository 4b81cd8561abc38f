package version

import (
	"github.com/keytap/keytap/pkg/app/master/command"
)

func RegisterCommand() {
	command.AddCLICommand(
		Name,
		CLI,
		CommandSuggestion,
		nil)
}
