package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/shakram02/go-sql-browser/data/mysql"
	_ "github.com/shakram02/go-sql-browser/data/postgres"
	_ "github.com/shakram02/go-sql-browser/data/sqlite"
)

func main() {
	// Create context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("received shutdown signal")
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError(os.Stderr, "%v", err)
		os.Exit(1)
	}
}
