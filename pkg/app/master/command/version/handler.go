package version

import (
	"fmt"

	"github.com/keytap/keytap/pkg/app"
	"github.com/keytap/keytap/pkg/util/jsonutil"
	v "github.com/keytap/keytap/pkg/version"
)

type ovars = app.OutVars

// OnCommand implements the 'version' command
func OnCommand(xc *app.ExecutionContext) {
	info := v.CurrentInfo()

	if xc.Out.Quiet {
		if xc.Out.OutputFormat == app.OutputFormatJSON {
			fmt.Printf("%s", jsonutil.ToPretty(info))
			return
		}

		fmt.Println(v.Current())
		return
	}

	xc.Out.Info("version",
		ovars{
			"value": v.Current(),
		})

	buildInfo := ovars{
		"go.version": info.GoVersion,
		"os":         info.OS,
		"arch":       info.Arch,
	}

	if info.Module != "" {
		buildInfo["module"] = info.Module
	}

	if info.VCSRev != "" {
		buildInfo["vcs.rev"] = info.VCSRev
	}

	if info.VCSTime != "" {
		buildInfo["vcs.time"] = info.VCSTime
	}

	xc.Out.Info("build", buildInfo)
}
