// Navigator - console file navigator with pluggable filesystems
package main

import (
	"os"

	"github.com/dualpane/navigator/internal/cli"
	"github.com/dualpane/navigator/internal/version"
)

// Version information - injected via LDFLAGS for release builds
var (
	Version   = "v1.0.0"
	BuildTime = "2026-08-24"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
