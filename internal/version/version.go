// Package version exposes the build-time version string.
package version

// version is overridden at build time via -ldflags.
var version = "v0.0.0"

// Value returns the current version.
func Value() string {
	return version
}
