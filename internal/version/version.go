// Package version reports the ipacheck build.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via ldflags. When left empty, the VCS stamp embedded by
// the Go toolchain is used.
var (
	Commit    = ""
	BuildTime = ""
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// String returns "ipacheck <commit> (built <time>)", marking builds from a modified tree.
func String() string {
	commit, built, dirty := Commit, BuildTime, false
	if info, ok := readBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if built == "" {
					built = s.Value
				}
			case "vcs.modified":
				dirty = s.Value == "true"
			}
		}
	}

	if commit == "" {
		commit = "unknown"
	} else if len(commit) > 7 {
		commit = commit[:7]
	}
	if dirty {
		commit += "-dirty"
	}
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("ipacheck %s (built %s)", commit, built)
}
