// Package buildinfo holds build-time metadata injected through -ldflags.
package buildinfo

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X github.com/morse-fitness/morse-worker/internal/buildinfo.Version=v1.2.0"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// Current returns the metadata of the running binary.
func Current() Context {
	return Context{Version: Version, BuildDate: BuildDate}
}

// Release is the Sentry release name.
func (c Context) Release() string {
	return "morse-worker@" + c.Version
}

func (c Context) String() string {
	return fmt.Sprintf("morse-worker %s (built %s)", c.Version, c.BuildDate)
}
