// ryu-backup — online backup and restore tooling for ryu databases.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/predictable-labs/ryu/cmd"
	"github.com/predictable-labs/ryu/internal/config"
	"github.com/predictable-labs/ryu/internal/logger"
)

// Build information (set by ldflags)
var (
	version   = "0.4.2"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	// First interrupt requests cooperative cancellation; a second one kills
	// the process.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		cancel() // restore default signal handling for the second interrupt
	}()

	cfg := config.New()
	cfg.Version = version
	cfg.BuildTime = buildTime
	cfg.GitCommit = gitCommit

	logLevel := cfg.LogLevel
	if cfg.Debug && logLevel != "debug" {
		logLevel = "debug"
	}
	log := logger.New(logLevel, cfg.LogFormat)

	if err := cmd.Execute(ctx, cfg, log); err != nil {
		log.Error("ryu-backup failed", "error", err)
		os.Exit(1)
	}
}
