package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stocksync/internal/config"
	"stocksync/internal/database"
	"stocksync/internal/logger"
	"stocksync/internal/server"
	"stocksync/internal/service"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: stocksync [command]

Commands:
  run                  Check the feed source and reconcile new files (default)
  serve                Start the webhook/health HTTP server
  test-connections     Probe catalog, source and SMTP connectivity
  process-file <path>  Reconcile a single local feed file`)
}

func main() {
	// Best effort; configuration may come entirely from the environment.
	godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if err := cfg.Validate(); err != nil {
		log.Error("Configuration invalid", zap.Error(err))
		os.Exit(1)
	}

	db, err := database.Open(cfg.State.DatabasePath)
	if err != nil {
		log.Error("Failed to open state database", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db, log); err != nil {
		log.Error("Failed to run migrations", zap.Error(err))
		os.Exit(1)
	}

	svc := service.NewSyncService(cfg, database.NewStore(db), log)

	switch command {
	case "run":
		runOnce(svc, log)
	case "serve":
		serve(cfg, svc, log)
	case "test-connections":
		testConnections(svc, log)
	case "process-file":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		processFile(svc, os.Args[2], log)
	default:
		usage()
		os.Exit(1)
	}
}

// runOnce executes a single scheduler-driven run. Partial failures finish
// with exit 0 because they are already reported by email; only an error
// that prevented the run entirely exits non-zero, after a best-effort
// error notification.
func runOnce(svc *service.SyncService, log *zap.Logger) {
	if err := svc.Run(context.Background()); err != nil {
		log.Error("Sync run failed", zap.Error(err))
		if sendErr := svc.SendErrorNotification("Sync run failed", err.Error()); sendErr != nil {
			log.Error("Failed to send error notification", zap.Error(sendErr))
		}
		os.Exit(1)
	}
}

func processFile(svc *service.SyncService, path string, log *zap.Logger) {
	if err := svc.ProcessFile(context.Background(), path); err != nil {
		log.Error("File processing failed",
			zap.String("path", path),
			zap.Error(err),
		)
		os.Exit(1)
	}
}

func testConnections(svc *service.SyncService, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := false
	for _, status := range svc.TestConnections(ctx) {
		if status.Err != nil {
			failed = true
			fmt.Printf("%-10s FAILED: %v\n", status.Name, status.Err)
			continue
		}
		fmt.Printf("%-10s OK\n", status.Name)
	}
	if failed {
		os.Exit(1)
	}
}

func serve(cfg *config.Config, svc *service.SyncService, log *zap.Logger) {
	srv := server.NewServer(cfg, svc, log)

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err := srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}

func gracefulShutdown(srv *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := srv.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}
