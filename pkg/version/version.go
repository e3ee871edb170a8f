// Package version exposes the build identity stamped into release binaries.
package version

// Version is the semantic version of the running binary, injected at build
// time with -ldflags.
var Version = "dev"

// GitCommit is the commit the binary was built from, also injected with
// -ldflags when the build has one.
var GitCommit = "unknown"
