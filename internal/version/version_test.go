package version

import (
	"runtime/debug"
	"testing"
)

func TestString(t *testing.T) {
	stamped := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "fedcba9876543210"},
			{Key: "vcs.time", Value: "2026-01-18T09:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		}}, true
	}
	none := func() (*debug.BuildInfo, bool) { return nil, false }

	tests := []struct {
		name      string
		commit    string
		buildTime string
		info      func() (*debug.BuildInfo, bool)
		want      string
	}{
		{name: "ldflags win", commit: "0123456789abcdef", buildTime: "2026-01-19T10:00:00Z", info: stamped,
			want: "ipacheck 0123456-dirty (built 2026-01-19T10:00:00Z)"},
		{name: "vcs stamp", info: stamped, want: "ipacheck fedcba9-dirty (built 2026-01-18T09:00:00Z)"},
		{name: "nothing known", info: none, want: "ipacheck unknown (built unknown)"},
		{name: "short commit kept", commit: "abc", info: none, want: "ipacheck abc (built unknown)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Commit, BuildTime, readBuildInfo = tt.commit, tt.buildTime, tt.info
			t.Cleanup(func() {
				Commit, BuildTime, readBuildInfo = "", "", debug.ReadBuildInfo
			})

			if got := String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
