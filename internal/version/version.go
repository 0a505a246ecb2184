package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/orchestrator/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/orchestrator/internal/version.Commit=abc123
//	  -X github.com/soyeahso/orchestrator/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("orchestrator %s (commit: %s, built: %s, %s/%s, %s)",
		Version, Short(), Date, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// Short returns the abbreviated commit hash.
func Short() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
