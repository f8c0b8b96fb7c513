// Package version carries the build identity the server logs at startup.
// The values are stamped via -ldflags in release builds.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
