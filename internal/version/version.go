// Package version carries the calyx binary's build identifier, reported
// in heartbeats and on --version.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev"
