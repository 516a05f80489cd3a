// Package main implements the refresher: one refresh pass per invocation
// over the full city catalogue, then exit. Scheduling cadence belongs to
// whatever invokes it (cron, a systemd timer, a container scheduler); the
// process holds no timers of its own, so a wedged upstream can never leave
// a stuck daemon behind.
//
// Usage:
//
//	go run ./cmd/refresher
//	go run ./cmd/refresher --timeout=5m
//
// The exit code is 0 when the pass ran and the marker was stamped, even if
// individual cities failed; per-city outcomes go to the structured log. A
// non-zero exit means the pass itself could not run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cityweather/internal/cache"
	"cityweather/internal/config"
	"cityweather/internal/db"
	"cityweather/internal/scheduler"
	"cityweather/internal/upstream"
)

// defaultPassTimeout bounds one full pass. Generous relative to the per-call
// fetch timeout so a large catalogue still completes.
const defaultPassTimeout = 10 * time.Minute

func main() {
	timeoutFlag := flag.Duration("timeout", defaultPassTimeout, "overall deadline for the refresh pass")
	flag.Parse()

	if err := run(*timeoutFlag); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(timeout time.Duration) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("refresher starting", "environment", cfg.Environment, "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// A termination signal cancels the pass; in-flight fetches stop at the
	// next context check and the marker is not stamped.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	cacheRepo, err := db.NewCacheRepository(pool)
	if err != nil {
		return fmt.Errorf("creating cache repository: %w", err)
	}

	weatherClient := upstream.NewClient(upstream.ClientConfig{
		Endpoint: cfg.Weather.APIEndpoint,
		APIKey:   cfg.Weather.APIKey,
		Timeout:  cfg.Weather.FetchTimeout,
		Logger:   logger,
	})

	weatherCache := cache.NewWeatherCache(cache.Config{
		Store:          cacheRepo,
		Markers:        db.NewMarkerRepository(pool),
		Fetcher:        weatherClient,
		CachingEnabled: cfg.Weather.CacheEnabled,
		Logger:         logger,
	})

	driver := scheduler.NewRefreshDriver(db.NewCityRepository(pool), weatherCache, logger)

	report, err := driver.Run(ctx)
	if err != nil {
		return fmt.Errorf("refresh pass: %w", err)
	}

	logger.Info("refresh pass finished",
		"cities", len(report.Results),
		"failed", report.Failed(),
		"duration", report.CompletedAt.Sub(report.StartedAt),
	)
	return nil
}
