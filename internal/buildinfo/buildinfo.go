// Package buildinfo holds build-time metadata injected with -ldflags.
package buildinfo

import "fmt"

// Set with -ldflags "-X github.com/whispersubs/whispersubs/internal/buildinfo.Version=v1.2.3"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// UserAgent is sent with outgoing HTTP requests
func UserAgent() string {
	return fmt.Sprintf("whispersubs/%s", Version)
}

// String describes the build for --version output
func String() string {
	return fmt.Sprintf("%s (built %s)", Version, BuildDate)
}
