package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-relay/src/alpaca"
	"market-relay/src/config"
	"market-relay/src/logger"
	"market-relay/src/server"
	"market-relay/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.LogLevel, config.Name)

	// Audit store
	db, err := storage.NewDatabase(config.MConfig, appLogger)
	if err != nil {
		appLogger.Error("Failed to init db: %v", err)
		os.Exit(1)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Error("Failed to migrate db: %v", err)
		db.Close()
		os.Exit(1)
	}
	defer db.Close()

	// Vendor adapters: the only holders of the brokerage credentials.
	restClient := alpaca.NewClient(&config.Alpaca, &config.Network, logger.NewLogger(config.LogLevel, "AlpacaREST"))
	streamDialer := alpaca.NewStreamDialer(&config.Alpaca, &config.Network, logger.NewLogger(config.LogLevel, "AlpacaStream"))

	// Relay server
	srv := server.NewRelayServer(config.MConfig, appLogger, restClient, streamDialer, db)

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// Periodic audit retention sweep
	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	appLogger.Info("Relay running. Press Ctrl+C to stop.")

	for {
		select {
		case <-cleanupTicker.C:
			if err := db.CleanupOldData(); err != nil {
				appLogger.Warning("Audit cleanup failed: %v", err)
			}

		case <-quit:
			appLogger.Info("Shutting down...")
			return
		}
	}
}
