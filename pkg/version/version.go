// Package version exposes the symbolic version of the running code.
package version

// Version is set at build time via:
//
//	-ldflags "-X github.com/dfslab/dfsbench/pkg/version.Version=<tag>"
var Version = "v0.0.0-dev"
