package hsa

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// MinVersion is the oldest runtime version the tracker supports.
// Async copy profiling time queries were added in v1.1.0.
const MinVersion = "v1.1.0"

// ErrUnsupportedRuntime is returned by CheckVersion for runtimes that are
// too old or report a malformed version.
var ErrUnsupportedRuntime = errors.New("unsupported runtime version")

// CheckVersion verifies that rt reports a valid version at or above MinVersion.
func CheckVersion(rt Runtime) error {
	return Supported(rt.Version())
}

// Supported reports whether runtime version v is valid and at or above
// MinVersion. Versions without the leading "v" are accepted ("1.2.0").
func Supported(v string) error {
	c := CanonicalVersion(v)
	if !semver.IsValid(c) {
		return fmt.Errorf("%w: malformed version %q", ErrUnsupportedRuntime, v)
	}
	if semver.Compare(c, MinVersion) < 0 {
		return fmt.Errorf("%w: %s is older than %s", ErrUnsupportedRuntime, c, MinVersion)
	}
	return nil
}

// CanonicalVersion normalizes a runtime version string to "vMAJOR.MINOR.PATCH" form.
func CanonicalVersion(v string) string {
	if v != "" && v[0] != 'v' {
		v = "v" + v
	}
	if c := semver.Canonical(v); c != "" {
		return c
	}
	return v
}
