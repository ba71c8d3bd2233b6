// Package main provides the agentd CLI.
package main

import (
	"github.com/joho/godotenv"

	"github.com/dotcommander/agentd/internal/cmd"
	"github.com/dotcommander/agentd/internal/config"
)

// Build vars.
var (
	//nolint: gochecknoglobals
	Version = ""
	//nolint: gochecknoglobals
	CommitSHA = ""
)

func main() {
	// A local .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, cfgErr := config.Resolve()
	cmd.Execute(cmd.BuildInfo{Version: Version, CommitSHA: CommitSHA}, cfg, cfgErr)
}
