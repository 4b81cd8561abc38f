package version

import (
	"fmt"
	"path"
	"runtime"
	"runtime/debug"

	"github.com/keytap/keytap/pkg/consts"
)

var (
	appVersionTag  = "latest"
	appVersionRev  = "latest"
	appVersionTime = "latest"
	currentVersion = "v"
)

func init() {
	currentVersion = fmt.Sprintf("%v|%v|%v|%v|%v", runtime.GOOS, consts.AppName, appVersionTag, appVersionRev, appVersionTime)
}

// Current returns the current version information
func Current() string {
	return currentVersion
}

// Info captures the version and build details for one of the keytap binaries.
type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Module    string `json:"module,omitempty"`
	VCSRev    string `json:"vcs_revision,omitempty"`
	VCSTime   string `json:"vcs_time,omitempty"`
}

// CurrentInfo returns the version info enriched with module build metadata
// when the binary was built with module support.
func CurrentInfo() Info {
	info := Info{
		Version:   currentVersion,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	info.Module = bi.Main.Path
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.VCSRev = setting.Value
		case "vcs.time":
			info.VCSTime = setting.Value
		}
	}

	return info
}

// PackageInfo describes one module dependency baked into the binary
type PackageInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Hash       string `json:"hash,omitempty"` // 'h1' algo is sha256: https://go.dev/ref/mod#go-sum-files
	Path       string `json:"path"`
	ReplacedBy string `json:"replaced_by,omitempty"`
}

// BOM is the application bill of materials extracted from the build
// metadata embedded in the running binary.
type BOM struct {
	Info
	Entrypoint string         `json:"entrypoint"`
	Includes   []*PackageInfo `json:"includes,omitempty"`
}

// CurrentBOM returns the bill of materials for the running binary or
// nil when the binary carries no embedded build information.
func CurrentBOM() *BOM {
	raw, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	bom := &BOM{
		Info: CurrentInfo(),
	}

	if raw.Main.Path != "" {
		bom.Entrypoint = fmt.Sprintf("%s/main", raw.Main.Path)
	}

	for _, dep := range raw.Deps {
		pkg := &PackageInfo{
			Name:    path.Base(dep.Path),
			Path:    dep.Path,
			Version: dep.Version,
			Hash:    dep.Sum,
		}

		if dep.Replace != nil {
			pkg.ReplacedBy = dep.Replace.Path
		}

		bom.Includes = append(bom.Includes, pkg)
	}

	return bom
}
