// Package version exposes the rrfusion build identity.
package version

import (
	"fmt"
	"runtime"
)

// Version and Commit are overridden at build time:
// -X github.com/jl1nie/rrfusion/pkg/version.Version=$(VERSION)
// -X github.com/jl1nie/rrfusion/pkg/version.Commit=$(COMMIT)
var (
	Version = "dev"
	Commit  = "unknown"
)

// BuildInfo is the structured form used for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// String returns the one-line human-readable version.
func String() string {
	return fmt.Sprintf("rrfusion %s (commit %s, %s)", Version, Commit, runtime.Version())
}

// Short returns just the version string.
func Short() string {
	return Version
}

// GetInfo returns the structured build identity.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
	}
}
