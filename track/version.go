package track

import (
	"github.com/kolkov/asynctrack/internal/track/api"
	"github.com/kolkov/asynctrack/internal/track/hsa"
)

// Version information for the async tracker.
const (
	// Version is the current version of the tracker.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// MinRuntimeVersion is the oldest accelerator runtime the tracker accepts.
const MinRuntimeVersion = hsa.MinVersion

// Info provides information about the tracker build.
type Info struct {
	// Version is the tracker version string.
	Version string

	// MinRuntime is the oldest supported runtime version.
	MinRuntime string

	// Ordering reports whether the configured tracker delivers in
	// admission order. False when no tracker exists.
	Ordering bool
}

// GetInfo returns information about the tracker.
//
// Example:
//
//	info := track.GetInfo()
//	fmt.Printf("asynctrack %s (runtime >= %s)\n", info.Version, info.MinRuntime)
func GetInfo() Info {
	info := Info{
		Version:    Version,
		MinRuntime: MinRuntimeVersion,
	}
	if t := api.Current(); t != nil {
		info.Ordering = t.Ordering()
	}
	return info
}
