package main

import (
	"github.com/tickerlens/tickerlens/internal/cmd"
	"github.com/tickerlens/tickerlens/internal/server/handlers"
)

// Version information set via ldflags during build
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		// open circuits exit as service unavailable
		cmd.ExitWithCodeStderr(cmd.ExitCodeFor(err), "Command execution failed", err)
	}
}
