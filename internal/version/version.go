// Package version holds the build version string.
package version

// Version is the umbpress release version. Overridden at build time with
// -ldflags "-X github.com/umbraco-forge/umbpress/internal/version.Version=...".
var Version = "0.1.0-dev"
