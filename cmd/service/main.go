// cmd/service/main.go
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

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github-commit-relay/internal/api"
	"github-commit-relay/internal/config"
	"github-commit-relay/internal/github"
	"github-commit-relay/internal/notifier"
	"github-commit-relay/internal/store"
	"github-commit-relay/internal/syncer"
	"github-commit-relay/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	db := store.New(dbpool)

	bot, err := telegram.NewBot(cfg.TelegramToken, logger)
	if err != nil {
		return err
	}

	superAdmins := cfg.SuperAdminList()
	notify := notifier.New(db, bot, superAdmins, logger)
	appSyncer := syncer.NewSyncer(db,
		func(token string) syncer.HostClient { return github.NewClient(token, logger) },
		notify, logger, cfg.SyncInterval)

	sessions := telegram.NewSessionStore(cfg.SessionTTL)
	dispatcher := telegram.NewDispatcher(db,
		func(token string) telegram.HostClient { return github.NewClient(token, logger) },
		bot, sessions, superAdmins, bot.Username(), logger)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(db, logger),
	}

	// 6. Run the syncer, the update dispatcher and the HTTP API until a
	// shutdown signal arrives.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appSyncer.Start(gctx)
		return nil
	})
	g.Go(func() error {
		dispatcher.Run(gctx, bot.Updates(gctx))
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP API listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received. Exiting.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
