package main

import (
	"os"

	"github.com/magnifycash/backend/internal/config"
	"github.com/magnifycash/backend/internal/observability"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLoggerWithWriter(cfg.LogLevel, os.Stderr)

	if err := newRootCmd(cfg, logger, os.Stdout).Execute(); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}
