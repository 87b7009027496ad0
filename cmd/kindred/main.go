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

	"github.com/kindred-app/kindred/internal/api"
	"github.com/kindred-app/kindred/internal/config"
	"github.com/kindred-app/kindred/internal/events"
	"github.com/kindred-app/kindred/internal/recommend"
	"github.com/kindred-app/kindred/internal/roster"
	"github.com/kindred-app/kindred/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database")

	// The event bus is optional: without it, weight-cache invalidation falls
	// back to the TTL and no events are published.
	var eventsClient events.Client
	if cfg.Events.URL != "" {
		ec, err := events.NewNATSClient(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("event bus unavailable, running without events", "error", err)
		} else {
			eventsClient = ec
			defer ec.Close()
			logger.Info("connected to event bus")
		}
	}

	rosterClient := roster.NewHTTPClient(cfg.Roster.URL, cfg.Roster.Token)

	engine := recommend.New(db, eventsClient, cfg, logger)
	engine.SetupSubscriptions()
	logger.Info("recommendation engine ready",
		"default_limit", cfg.Recommend.DefaultLimit,
		"peer_timeout", cfg.PeerTimeout(),
		"weight_cache_ttl", cfg.WeightCacheTTL(),
	)

	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(db, engine, rosterClient, cfg.Server.AdminToken, logger),
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		serveErr <- apiServer.ListenAndServe()
	}()
	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		serveErr <- metricsServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
	return nil
}
