// Package cache implements the weather snapshot cache. It sits between the
// delivery layer and the upstream provider: reads are served from the store
// while an entry is within its lifetime, refreshed from upstream otherwise,
// and a failed refresh never evicts the stale entry that is already stored.
package cache

import (
	"context"
	"log/slog"
	"time"

	"cityweather/internal/types"
)

// Lifetime is how long a stored snapshot remains valid. Entries older than
// this are refreshed on the next read; they are never served as fresh.
const Lifetime = 3 * time.Hour

// SnapshotStore persists weather snapshots keyed by city identifier.
type SnapshotStore interface {
	Get(ctx context.Context, cityID string) (*types.CacheEntry, error)
	Meta(ctx context.Context, cityID string) (createdAt, expiresAt time.Time, found bool, err error)
	Put(ctx context.Context, cityID string, snap *types.Snapshot, createdAt, expiresAt time.Time) error
	Delete(ctx context.Context, cityID string) error
	DeleteAll(ctx context.Context) error
}

// MarkerStore records the global refresh marker.
type MarkerStore interface {
	LastGlobalRefresh(ctx context.Context) (time.Time, bool, error)
	RecordGlobalRefresh(ctx context.Context, at time.Time) error
}

// ConditionsFetcher retrieves a fresh snapshot from the upstream provider.
type ConditionsFetcher interface {
	FetchConditions(ctx context.Context, lat, lon float64) (*types.Snapshot, error)
}

// Config carries the dependencies for NewWeatherCache.
type Config struct {
	Store   SnapshotStore
	Markers MarkerStore
	Fetcher ConditionsFetcher

	// CachingEnabled controls whether reads consult the store. Fetched
	// snapshots are written through regardless, so a later re-enable starts
	// from a warm store.
	CachingEnabled bool

	Logger *slog.Logger
}

// WeatherCache coordinates the store, the marker table, and the upstream
// fetcher.
//
// Concurrent refreshes of the same city are not serialized: when two
// requests find an expired entry at the same time, both fetch and the last
// write wins. Both writes carry snapshots fetched within the same lifetime
// window, so the stored entry is always one of the freshest observed.
type WeatherCache struct {
	store   SnapshotStore
	markers MarkerStore
	fetcher ConditionsFetcher
	enabled bool
	logger  *slog.Logger

	now func() time.Time // injectable for tests
}

// NewWeatherCache creates a WeatherCache from the given configuration.
func NewWeatherCache(cfg Config) *WeatherCache {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherCache{
		store:   cfg.Store,
		markers: cfg.Markers,
		fetcher: cfg.Fetcher,
		enabled: cfg.CachingEnabled,
		logger:  logger,
		now:     time.Now,
	}
}

// GetWeather returns the weather snapshot for the city, serving from the
// store when a valid entry exists and refreshing from upstream otherwise.
//
// forceFresh bypasses the store read (a fetch always happens), as does
// disabled caching; neither bypasses the write-through of a successful
// fetch. When the upstream fetch fails, the error is returned and any
// stored entry, valid or stale, is left untouched.
func (c *WeatherCache) GetWeather(ctx context.Context, cityID string, lat, lon float64, forceFresh bool) (*types.Snapshot, error) {
	if c.enabled && !forceFresh {
		entry, err := c.store.Get(ctx, cityID)
		if err != nil {
			// A store read failure degrades to a live fetch rather than
			// failing the request.
			c.logger.WarnContext(ctx, "cache read failed, fetching live",
				"city_id", cityID, "error", err)
		} else if entry != nil && entry.ValidAt(c.now()) {
			c.logger.DebugContext(ctx, "cache hit", "city_id", cityID,
				"expires_at", entry.ExpiresAt)
			return entry.Snapshot, nil
		}
	}

	return c.FetchAndCache(ctx, cityID, lat, lon)
}

// FetchAndCache fetches a fresh snapshot from upstream and writes it
// through to the store. On fetch failure it returns the upstream error
// without touching the store; the previously cached entry, if any, survives
// for stale reads. A store write failure is logged but does not fail the
// call, since the caller already holds a fresh snapshot.
func (c *WeatherCache) FetchAndCache(ctx context.Context, cityID string, lat, lon float64) (*types.Snapshot, error) {
	snap, err := c.fetcher.FetchConditions(ctx, lat, lon)
	if err != nil {
		c.logger.WarnContext(ctx, "upstream fetch failed",
			"city_id", cityID, "error", err)
		return nil, err
	}

	now := c.now()
	if putErr := c.store.Put(ctx, cityID, snap, now, now.Add(Lifetime)); putErr != nil {
		c.logger.ErrorContext(ctx, "cache write failed",
			"city_id", cityID, "error", putErr)
	}

	return snap, nil
}

// ClearCity removes the stored entry for the city. Clearing an absent entry
// is not an error.
func (c *WeatherCache) ClearCity(ctx context.Context, cityID string) error {
	return c.store.Delete(ctx, cityID)
}

// ClearAll removes every stored entry.
func (c *WeatherCache) ClearAll(ctx context.Context) error {
	return c.store.DeleteAll(ctx)
}

// Metadata returns the introspection view of the stored entry for the city,
// or nil when no entry exists. Validity and age are computed at call time,
// so two calls straddling the expiry boundary may disagree.
func (c *WeatherCache) Metadata(ctx context.Context, cityID string) (*types.CacheEntryMeta, error) {
	createdAt, expiresAt, found, err := c.store.Meta(ctx, cityID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	now := c.now()
	return &types.CacheEntryMeta{
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		Valid:      now.Before(expiresAt),
		AgeSeconds: int64(now.Sub(createdAt).Seconds()),
	}, nil
}

// LastGlobalRefresh returns the time of the most recent global refresh pass
// and whether one has ever been recorded.
func (c *WeatherCache) LastGlobalRefresh(ctx context.Context) (time.Time, bool, error) {
	return c.markers.LastGlobalRefresh(ctx)
}

// RecordGlobalRefresh stamps the global refresh marker with the current
// time.
func (c *WeatherCache) RecordGlobalRefresh(ctx context.Context) error {
	return c.markers.RecordGlobalRefresh(ctx, c.now())
}
