package profiling

import (
	"github.com/btraceio/btrace-sub009/internal/profiling/api"
	"github.com/btraceio/btrace-sub009/internal/report"
)

// Version information for the block profiler.
const (
	// Version is the current version of the profiler runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the profiler.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Schema is the version of the report envelopes this runtime produces.
	Schema string

	// Enabled indicates whether recording is active.
	Enabled bool

	// Session is the ID of the current session, empty before Init.
	Session string
}

// GetInfo returns information about the profiler runtime.
//
// Example:
//
//	info := profiling.GetInfo()
//	fmt.Printf("btrace profiler %s (schema %s)\n", info.Version, info.Schema)
func GetInfo() Info {
	return Info{
		Version: Version,
		Schema:  report.SchemaVersion,
		Enabled: api.Enabled(),
		Session: api.Session(),
	}
}
