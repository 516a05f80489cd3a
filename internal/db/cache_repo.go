package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/zstd"

	"cityweather/internal/types"
)

// CacheRepository persists weather snapshots per city identifier. Payloads
// are zstd-compressed snapshot JSON:
//
//	CREATE TABLE weather_cache (
//	    city_id    TEXT PRIMARY KEY,
//	    payload    BYTEA NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL
//	);
//
// The read boundary collapses "row absent" and "row present but
// undecodable" into a single absent outcome, so downstream cache logic
// never branches on partial presence.
type CacheRepository struct {
	db  DBTX
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCacheRepository creates a CacheRepository backed by the given database
// connection (pool or transaction).
func NewCacheRepository(db DBTX) (*CacheRepository, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "initializing zstd encoder", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "initializing zstd decoder", err)
	}
	return &CacheRepository{db: db, enc: enc, dec: dec}, nil
}

// Get returns the stored entry for the city, or nil when absent. A row whose
// payload cannot be decompressed or unmarshalled is reported as absent, not
// as an error; the next successful fetch overwrites it.
func (r *CacheRepository) Get(ctx context.Context, cityID string) (*types.CacheEntry, error) {
	var (
		payload   []byte
		createdAt time.Time
		expiresAt time.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT payload, created_at, expires_at FROM weather_cache WHERE city_id = $1`,
		cityID,
	).Scan(&payload, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read cache entry", err)
	}

	raw, err := r.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, nil
	}

	var snap types.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, nil
	}

	return &types.CacheEntry{
		Snapshot:  &snap,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Meta returns only the validity window of the stored entry, without
// decompressing the payload. The boolean reports presence.
func (r *CacheRepository) Meta(ctx context.Context, cityID string) (createdAt, expiresAt time.Time, found bool, err error) {
	scanErr := r.db.QueryRow(ctx,
		`SELECT created_at, expires_at FROM weather_cache WHERE city_id = $1`,
		cityID,
	).Scan(&createdAt, &expiresAt)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return time.Time{}, time.Time{}, false, nil
		}
		return time.Time{}, time.Time{}, false,
			types.NewAppError(types.ErrCodeInternalDB, "failed to read cache metadata", scanErr)
	}
	return createdAt, expiresAt, true, nil
}

// Put stores a snapshot for the city, overwriting any prior entry.
func (r *CacheRepository) Put(ctx context.Context, cityID string, snap *types.Snapshot, createdAt, expiresAt time.Time) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal snapshot", err)
	}
	payload := r.enc.EncodeAll(raw, nil)

	_, err = r.db.Exec(ctx,
		`INSERT INTO weather_cache (city_id, payload, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (city_id) DO UPDATE
		   SET payload = EXCLUDED.payload,
		       created_at = EXCLUDED.created_at,
		       expires_at = EXCLUDED.expires_at`,
		cityID, payload, createdAt, expiresAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to write cache entry", err)
	}
	return nil
}

// Delete removes the entry for the city. Deleting an absent entry is not an
// error.
func (r *CacheRepository) Delete(ctx context.Context, cityID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM weather_cache WHERE city_id = $1`, cityID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete cache entry", err)
	}
	return nil
}

// DeleteAll removes every stored entry regardless of identifier.
func (r *CacheRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM weather_cache`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to clear cache", err)
	}
	return nil
}
