package fetchkit

import (
	"fmt"
	"runtime"
)

// Build metadata, overridable at build time:
//
//	go build -ldflags "-X github.com/studyhall-labs/fetchkit.version=v1.2.3 \
//	    -X github.com/studyhall-labs/fetchkit.commit=abc1234"
var (
	version = "v0.3.0"
	commit  = "unknown"
	date    = "unknown"
)

// VersionInfo describes the build of the library in use.
type VersionInfo struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
}

// BuildInfo returns the library's build metadata.
func BuildInfo() VersionInfo {
	return VersionInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
	}
}

// String renders the build metadata on one line for logs.
func (v VersionInfo) String() string {
	return fmt.Sprintf("fetchkit %s (commit %s, built %s, %s)", v.Version, v.Commit, v.Date, v.GoVersion)
}
