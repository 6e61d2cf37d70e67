// main.go - Application entry point
//
// PURPOSE:
//   Initializes and starts the payment plan engine server.
//   Handles configuration, dependency injection, and graceful shutdown.
//
// STARTUP SEQUENCE:
//   1. Load configuration (.env, environment, flags)
//   2. Configure logging
//   3. Initialize SQLite store (runs migrations)
//   4. Wire metrics, plan service and API handler
//   5. Start the overdue sweep
//   6. Start server with graceful shutdown
//
// COMMAND-LINE FLAGS (override environment):
//   -port    HTTP server port (PORT, default: 8080)
//   -db      SQLite database path (DB_PATH, default: payplan.db)
//            Use ":memory:" for in-memory database
//   -log     Log level (LOG_LEVEL, default: info)
//   -sweep   Overdue sweep cron spec (OVERDUE_SWEEP_SPEC, default: @hourly)
//
// GRACEFUL SHUTDOWN:
//   On SIGINT/SIGTERM:
//   1. Stop the overdue sweep
//   2. Stop accepting new connections
//   3. Wait for active requests to complete (30s timeout)
//   4. Close database connection
//
// EXAMPLES:
//   ./server -db="./data/payplan.db"
//   ./server -db=":memory:" -log=debug
//   OVERDUE_SWEEP_SPEC="*/5 * * * *" ./server
//
// SEE ALSO:
//   - config/config.go: Environment variables
//   - api/server.go: Router configuration
//   - store/sqlite/sqlite.go: Database implementation
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/payplan-engine/api"
	"github.com/warp/payplan-engine/config"
	"github.com/warp/payplan-engine/logging"
	"github.com/warp/payplan-engine/metrics"
	"github.com/warp/payplan-engine/plan"
	"github.com/warp/payplan-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.SweepSpec, "sweep", cfg.SweepSpec, "Overdue sweep cron spec")
	flag.Parse()

	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)

	svc := plan.NewService(store, logger, recorder)
	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	sweeper := api.NewOverdueSweeper(svc, logger)
	sweeper.Enabled = cfg.SweepEnabled
	sweeper.Spec = cfg.SweepSpec
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start overdue sweep: %w", err)
	}
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
