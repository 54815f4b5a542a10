// Package main provides the entry point for the filermap CLI tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/toriidata/filermap/cmd/filermap/cmd"
	"github.com/toriidata/filermap/pkg/logging"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, cmd.BuildInfo{Version: version, Commit: commit, Date: date}); err != nil {
		logging.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
