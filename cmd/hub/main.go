package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presence-hub/hub"
	"presence-hub/hub/workers"
	"presence-hub/internal"
	"presence-hub/observability"
	"presence-hub/services"
	"presence-hub/storage"
	"presence-hub/transport/ws"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// main is a thin wrapper: run() does the work, main maps its outcome
	// to an OS exit code after every defer has executed.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hub terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := config.Logger()

	ctx := context.Background()

	// 2. Durable stores (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Hub assembly, leaves first: repositories, then services, then the
	// registry/broadcaster pair, then the orchestrator on top.
	monitor := observability.NewMonitor()
	sessionRepo := storage.NewSessionRepository(db, logger)
	activityRepo := storage.NewActivityRepository(db, logger, config.LimitActivities)
	statsRepo := storage.NewStatsRepository(db)
	activityIndex := storage.NewActivityIndex(blugeWriter, logger)

	registry := hub.NewRegistry()
	broadcaster := hub.NewBroadcaster(logger, registry, monitor, config.DeliveryTimeout)
	sessionService := services.NewSessionService(logger, sessionRepo)
	activityService := services.NewActivityService(
		logger, activityRepo, statsRepo, activityIndex, broadcaster, monitor)
	orchestrator := hub.NewOrchestrator(logger, registry, broadcaster, sessionService, activityService)

	// 4. Supervision: heartbeat telemetry and the session consistency sweep.
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	supervisor.Add(
		workers.NewHeartbeatWorker(logger, monitor, config.HeartbeatInterval, func() int {
			return len(registry.Snapshot())
		}),
		workers.NewSweepWorker(logger, registry, sessionService, config.SweepInterval, config.SweepGrace),
	)

	// 5. Context & signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go supervisor.Run(ctx)

	// 6. HTTP server: the websocket endpoint plus the operator read API.
	secret := []byte(config.JWTSecret)
	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewServer(logger, orchestrator, secret, config.ConnectionBufferSize))
	ws.NewAdminAPI(logger, secret, orchestrator, sessionService, activityIndex, monitor).Mount(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting presence hub", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Block until a signal or a server failure.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Graceful shutdown: stop accepting, then stop the workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	supervisor.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}
