// Package version exposes the build version of the gateway.
package version

// Version information set by build flags.
// Set using -ldflags "-X github.com/Chumb3x/sonar/pkg/version.version=v1.2.3"
var version string = "unknown"

// String returns the build version.
func String() string {
	return version
}
