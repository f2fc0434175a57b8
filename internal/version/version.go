package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0-dev"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// shortCommitLen is how much of the VCS revision is shown.
const shortCommitLen = 12

//nolint:gochecknoglobals // Build info is read once.
var buildStamp = sync.OnceValues(func() (string, string) {
	return fromBuildInfo(debug.ReadBuildInfo)
})

// fromBuildInfo fills Commit and BuildTime from the embedded VCS stamp when
// ldflags left them at their defaults.
func fromBuildInfo(read func() (*debug.BuildInfo, bool)) (commit, builtAt string) {
	commit, builtAt = Commit, BuildTime

	info, ok := read()
	if !ok {
		return commit, builtAt
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "none" && s.Value != "" {
				commit = s.Value[:min(len(s.Value), shortCommitLen)]
			}
		case "vcs.time":
			if builtAt == "unknown" && s.Value != "" {
				builtAt = s.Value
			}
		}
	}

	return commit, builtAt
}

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	commit, builtAt := buildStamp()

	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, commit, builtAt)
}
