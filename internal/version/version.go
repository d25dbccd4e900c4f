// Package version reports build metadata for the shadow binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set through -ldflags by release builds.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the version line printed by `shadow version`. Values left at
// their defaults are filled from the module build info when it is available,
// which covers `go install` builds.
func String() string {
	info, _ := debug.ReadBuildInfo()
	v, commit, date := resolve(info)
	return fmt.Sprintf("shadow %s (commit=%s, date=%s, go=%s)", v, commit, date, runtime.Version())
}

func resolve(info *debug.BuildInfo) (string, string, string) {
	v, commit, date := Version, Commit, Date
	if info == nil {
		return v, commit, date
	}
	if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if commit == "none" && setting.Value != "" {
				commit = setting.Value
				if len(commit) > 12 {
					commit = commit[:12]
				}
			}
		case "vcs.time":
			if date == "unknown" && setting.Value != "" {
				date = setting.Value
			}
		}
	}
	return v, commit, date
}
