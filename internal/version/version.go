// Package version carries build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	// Version is the current release of jetsub
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for -version output and run records.
func String() string {
	return fmt.Sprintf("jetsub %s (%s, built %s)", Version, GitSHA, BuildTime)
}
