// Package buildinfo holds the build-time metadata injected with -ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

const unknown = "unknown"

// GetVersion returns the version, or "unknown" when none was injected.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return unknown
	}
	return c.Version
}

// GetBuildDate returns the build date, or "unknown" when none was injected.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return unknown
	}
	return c.BuildDate
}

// Release is the release name reported to Sentry.
func (c *Context) Release() string {
	return "audioroute@" + c.GetVersion()
}

// String returns the version line printed by --version.
func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s, %s, %s/%s)",
		c.GetVersion(), c.GetBuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
