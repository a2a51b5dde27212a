package main

import (
	"log"
	"os"

	"jobstream/internal/modes"
	"jobstream/pkg/config"
	"jobstream/pkg/logger"
)

func main() {
	cfg, path, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	initializeLogging(cfg)

	mainLogger := logger.WithField("component", "main")
	mainLogger.Debug("configuration loaded", "path", path)

	if err := modes.RunServer(cfg); err != nil {
		mainLogger.Error("jobstreamd failed", "error", err)
		os.Exit(1)
	}
}

func initializeLogging(cfg *config.Config) {
	if level, err := logger.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	} else {
		log.Printf("Invalid log level '%s', using INFO", cfg.Logging.Level)
		logger.SetLevel(logger.INFO)
	}
	logger.SetGlobalMode("server")
}
