package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AmoghxAnubis/Agora/internal/docstore"
	"github.com/AmoghxAnubis/Agora/internal/server"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires configuration, storage, the hub and the HTTP server, then blocks
// until SIGINT/SIGTERM or a server failure.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := server.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Document store
	db, err := docstore.Open(config.BadgerFilepath)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	store := docstore.NewStore(db, log)

	// 3. Hub & routes
	hub := server.NewHub(config, log)
	server.StartHub(hub)
	httpServer := server.CreateServer(config.Port, server.SetupRoutes(hub, store))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.StartServer(httpServer, log)
	}()

	// 4. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		if err != nil {
			_ = hub.Shutdown(config.ShutdownTimeout)
			return fmt.Errorf("http server error: %w", err)
		}
	}

	// 5. Final cleanup
	shutdownErr := server.ShutdownServer(httpServer, config.ShutdownTimeout, log)
	if err := hub.Shutdown(config.ShutdownTimeout); err != nil {
		log.Warn("Hub shutdown incomplete", "error", err)
	}
	log.Info("Program stopped cleanly")
	return shutdownErr
}
