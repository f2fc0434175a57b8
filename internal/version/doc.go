// Package version exposes build metadata of breakfast-alarm and
// breakfast-alarmd.
//
// Version, Commit and BuildTime are injected with -ldflags -X. Builds without
// them (go install, go run) fall back to the VCS stamp of the Go build info.
package version
