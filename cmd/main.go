// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-portal/internal/auth"
	"github.com/Shivanand-hulikatti/event-portal/internal/config"
	"github.com/Shivanand-hulikatti/event-portal/internal/database"
	"github.com/Shivanand-hulikatti/event-portal/internal/handler"
	"github.com/Shivanand-hulikatti/event-portal/internal/logging"
	"github.com/Shivanand-hulikatti/event-portal/internal/metrics"
	"github.com/Shivanand-hulikatti/event-portal/internal/repository"
	"github.com/Shivanand-hulikatti/event-portal/internal/repository/postgres"
	"github.com/Shivanand-hulikatti/event-portal/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/event-portal/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Level())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Open storage ───────────────────────────────────────────────────
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// ── 2. Wire up layers ────────────────────────────────────────────────
	m := metrics.New()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	router := handler.NewRouter(handler.Deps{
		Events:        service.NewEventService(store, logger, m),
		Registrations: service.NewRegistrationService(store, logger, m),
		Tokens:        tokens,
		Store:         store,
		Metrics:       m,
		Logger:        logger,
		AllowedOrigin: cfg.CORSAllowedOrigin,
	})

	// ── 3. Serve until a shutdown signal ─────────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr, "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// openStore connects to the configured backend and applies pending migrations.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateSQLite(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("connected to sqlite", "path", cfg.SQLitePath)
		return sqlite.New(db), nil
	default:
		pool, err := database.NewPool(ctx, cfg.Postgres.DSN(), logger)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("connected to postgres")
		return postgres.New(pool), nil
	}
}
