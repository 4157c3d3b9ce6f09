// Package version holds build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/platformbuilds/mirador-insights/internal/version.Version=v0.3.0"
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = ""
)
