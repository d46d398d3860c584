// Command web serves the scraper API and, when enabled, schedules
// accumulative runs on the configured cron spec.
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

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/internal/exporter"
	"github.com/minleu94/technical-analysis-sub001/internal/infrastructure"
	"github.com/minleu94/technical-analysis-sub001/internal/operations"
	"github.com/minleu94/technical-analysis-sub001/internal/registry"
	"github.com/minleu94/technical-analysis-sub001/internal/schedule"
	transporthttp "github.com/minleu94/technical-analysis-sub001/internal/transport/http"
)

const version = "1.2.0"

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Warning: failed to load config, using defaults: %v\n", err)
		cfg = config.Default()
	}

	paths := cfg.GetPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("create data directories: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	orch := operations.New(cfg, paths, logger)
	service := operations.NewService(orch, logger)

	router := transporthttp.NewRouter(transporthttp.RouterDeps{
		Operations: transporthttp.NewOperationsHandler(service, logger),
		Branches:   transporthttp.NewBranchesHandler(registry.New(paths, logger), logger),
		Reports:    transporthttp.NewReportsHandler(exporter.NewFlowExporter(paths, logger), logger),
		Health:     transporthttp.NewHealthHandler(version),
		Logger:     logger,
	})

	var scheduler *schedule.Scheduler
	if cfg.Schedule.Enabled {
		scheduler = schedule.New(cfg.Schedule, service, logger)
		if err := scheduler.Start(); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", server.Addr),
			slog.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
