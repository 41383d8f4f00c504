// Package misc keeps build identity shared by the whole program.
package misc

import (
	"runtime/debug"
)

// Set at link time: -ldflags "-X exgen/misc.version=... -X exgen/misc.githash=...".
var (
	version = "dev"
	githash = ""
)

const appName = "exgen"

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns commit hash the binary was built from. When not set at
// link time it falls back to VCS information recorded by the go tool.
func GetGitHash() string {
	if len(githash) > 0 {
		return githash
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
