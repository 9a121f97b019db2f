// Package version exposes build metadata set with -ldflags.
package version

import "fmt"

// Set at build time, e.g. -ldflags "-X ascendfit/internal/version.Version=v1.2.0"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line description of the build
func Info() string {
	return fmt.Sprintf("ascendfit %s (commit %s, built %s)", Version, Commit, Date)
}
