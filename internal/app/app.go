package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fourbyte/selectortrace/internal/config"
	"github.com/fourbyte/selectortrace/internal/harvester"
	"github.com/fourbyte/selectortrace/internal/httpserver"
	"github.com/fourbyte/selectortrace/internal/platform"
	"github.com/fourbyte/selectortrace/internal/queryapi"
	"github.com/fourbyte/selectortrace/internal/store"
	"github.com/fourbyte/selectortrace/internal/telemetry"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, applies migrations, and starts the mode the config
// selects: "harvest" runs the long-lived crawlers/scrapers, "query" serves
// the read-only HTTP API, "migrate" applies migrations and exits.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting selectortrace", "mode", cfg.Mode)

	if cfg.Mode == "migrate" {
		if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("migrations applied")
		return nil
	}

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "harvest":
		if err := cfg.RequireHarvestCredentials(); err != nil {
			return err
		}
		return harvester.Run(ctx, cfg, logger, store.New(db))
	case "query":
		return runQuery(ctx, cfg, logger, db, metricsReg)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runQuery(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, metricsReg *prometheus.Registry) error {
	srv := httpserver.NewServer(cfg, logger, db, metricsReg)

	handler := &queryapi.Handler{Store: store.New(db), Logger: logger}
	srv.APIRouter.Mount("/", queryapi.Routes(handler))

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("query server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down query server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
