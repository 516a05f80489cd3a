// Package main is the entry point for the city weather API server.
//
// It loads configuration, opens the database pool, wires the cache, the
// upstream clients, the preference resolver, and the HTTP handlers onto the
// core chassis, and serves until a shutdown signal arrives.
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

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cityweather/internal/api/handlers"
	"cityweather/internal/cache"
	"cityweather/internal/config"
	"cityweather/internal/core"
	"cityweather/internal/db"
	"cityweather/internal/prefs"
	"cityweather/internal/scheduler"
	"cityweather/internal/upstream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("cityweather API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"caching_enabled", cfg.Weather.CacheEnabled,
	)

	ctx := context.Background()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	// Repositories.
	cityRepo := db.NewCityRepository(pool)
	prefRepo := db.NewPreferenceRepository(pool)
	markerRepo := db.NewMarkerRepository(pool)
	cacheRepo, err := db.NewCacheRepository(pool)
	if err != nil {
		return fmt.Errorf("creating cache repository: %w", err)
	}

	// Upstream clients.
	weatherClient := upstream.NewClient(upstream.ClientConfig{
		Endpoint: cfg.Weather.APIEndpoint,
		APIKey:   cfg.Weather.APIKey,
		Timeout:  cfg.Weather.FetchTimeout,
		Logger:   logger,
	})
	geocoder := upstream.NewGeocoder(cfg.Weather.GeocodeEndpoint, cfg.Weather.GeocodeTimeout, nil)

	// Domain services.
	weatherCache := cache.NewWeatherCache(cache.Config{
		Store:          cacheRepo,
		Markers:        markerRepo,
		Fetcher:        weatherClient,
		CachingEnabled: cfg.Weather.CacheEnabled,
		Logger:         logger,
	})
	refreshDriver := scheduler.NewRefreshDriver(cityRepo, weatherCache, logger)

	codec := prefs.NewCookieCodec(cfg.Preference)
	resolver := prefs.NewResolver(prefRepo, cityRepo, codec, logger)

	// HTTP chassis and handlers.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Visitors = resolver
	srv.HealthProbes = append(srv.HealthProbes, dbProbe{pool: pool})

	weatherHandler := handlers.NewWeatherHandler(weatherCache, cityRepo, resolver, srv.Validator, logger)
	adminHandler := handlers.NewAdminHandler(cityRepo, weatherCache, refreshDriver, geocoder, srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { weatherHandler.RegisterRoutes(r) },
		func(r chi.Router) { adminHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newPool opens a pgx pool with the configured tuning parameters.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// dbProbe reports database reachability for the health endpoint.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p dbProbe) Name() string { return "database" }

func (p dbProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// runHTTPServer starts the server with graceful shutdown on SIGINT/SIGTERM.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
