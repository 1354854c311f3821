// Package version carries build metadata, overridden at link time via
// -ldflags "-X".
package version

var (
	// Version is the linkcheck release version.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)
