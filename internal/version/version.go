// Package version carries build metadata stamped in by the linker:
//
//	go build -ldflags "-X github.com/soyeahso/agendabot/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/agendabot/internal/version.Commit=abc123
//	  -X github.com/soyeahso/agendabot/internal/version.Date=2026-01-01"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns the one-line version banner.
func Info() string {
	return fmt.Sprintf("agendabot %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
