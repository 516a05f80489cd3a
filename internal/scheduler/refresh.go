// Package scheduler implements the scheduled refresh driver. The driver
// performs one refresh pass per invocation: it walks the city catalogue,
// fetches fresh weather for each city, and stamps the global refresh marker.
// Invocation cadence is owned by the external scheduler (cron, systemd
// timer, or an admin endpoint); the driver never sleeps or loops.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"cityweather/internal/types"
)

// DefaultRefreshConcurrency bounds how many cities are fetched in parallel
// during a pass. The upstream provider rate-limits aggressively above this.
const DefaultRefreshConcurrency = 4

// CityLister enumerates the cities to refresh.
type CityLister interface {
	List(ctx context.Context) ([]*types.City, error)
}

// SnapshotRefresher fetches and stores fresh weather, and records the
// global refresh marker.
type SnapshotRefresher interface {
	FetchAndCache(ctx context.Context, cityID string, lat, lon float64) (*types.Snapshot, error)
	RecordGlobalRefresh(ctx context.Context) error
}

// RefreshDriver runs refresh passes over the city catalogue.
type RefreshDriver struct {
	cities      CityLister
	cache       SnapshotRefresher
	logger      *slog.Logger
	concurrency int

	now func() time.Time // injectable for tests
}

// NewRefreshDriver creates a RefreshDriver with the default concurrency.
func NewRefreshDriver(cities CityLister, cache SnapshotRefresher, logger *slog.Logger) *RefreshDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshDriver{
		cities:      cities,
		cache:       cache,
		logger:      logger,
		concurrency: DefaultRefreshConcurrency,
		now:         time.Now,
	}
}

// Run executes one refresh pass and returns its report.
//
// Each city is fetched independently: one city's failure never interrupts
// the others, and every failure is recorded in the report rather than
// aborting the pass. After the pass the global refresh marker is stamped
// unconditionally, even when every single fetch failed; the marker records
// that a pass ran, not that it succeeded.
//
// Listing the catalogue is the one prerequisite of a pass: if it fails, no
// pass ran and the marker is left untouched.
func (d *RefreshDriver) Run(ctx context.Context) (*types.RefreshReport, error) {
	startedAt := d.now().UTC()

	cities, err := d.cities.List(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "refresh pass aborted, city listing failed", "error", err)
		return nil, err
	}

	d.logger.InfoContext(ctx, "refresh pass started", "cities", len(cities))

	results := make([]types.RefreshResult, len(cities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, city := range cities {
		g.Go(func() error {
			_, fetchErr := d.cache.FetchAndCache(gctx, city.ID, city.Latitude, city.Longitude)
			if fetchErr != nil {
				d.logger.WarnContext(gctx, "city refresh failed",
					"city_id", city.ID, "error", fetchErr)
				results[i] = types.RefreshResult{CityID: city.ID, Error: fetchErr.Error()}
				return nil // isolate failures; the pass continues
			}
			results[i] = types.RefreshResult{CityID: city.ID, OK: true}
			return nil
		})
	}

	// Goroutines never return errors, so Wait only synchronizes.
	_ = g.Wait()

	report := &types.RefreshReport{
		StartedAt:   startedAt,
		CompletedAt: d.now().UTC(),
		Results:     results,
	}

	if markErr := d.cache.RecordGlobalRefresh(ctx); markErr != nil {
		d.logger.ErrorContext(ctx, "failed to record global refresh marker", "error", markErr)
		return report, markErr
	}

	d.logger.InfoContext(ctx, "refresh pass completed",
		"cities", len(cities), "failed", report.Failed(),
		"duration", report.CompletedAt.Sub(report.StartedAt))

	return report, nil
}
