package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"cityweather/internal/types"
)

// markerLastRefresh is the marker name under which the global refresh
// timestamp is stored.
const markerLastRefresh = "last_global_refresh"

// MarkerRepository persists single-scalar system timestamps, deliberately
// separate from any configuration blob so that recording a marker never
// races a read-modify-write of unrelated settings:
//
//	CREATE TABLE system_markers (
//	    name        TEXT PRIMARY KEY,
//	    recorded_at TIMESTAMPTZ NOT NULL
//	);
type MarkerRepository struct {
	db DBTX
}

// NewMarkerRepository creates a new MarkerRepository backed by the given
// database connection (pool or transaction).
func NewMarkerRepository(db DBTX) *MarkerRepository {
	return &MarkerRepository{db: db}
}

// LastGlobalRefresh returns the timestamp of the last completed refresh
// pass. The boolean is false until the first pass has been recorded.
func (r *MarkerRepository) LastGlobalRefresh(ctx context.Context) (time.Time, bool, error) {
	var at time.Time
	err := r.db.QueryRow(ctx,
		`SELECT recorded_at FROM system_markers WHERE name = $1`,
		markerLastRefresh,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false,
			types.NewAppError(types.ErrCodeInternalDB, "failed to read refresh marker", err)
	}
	return at, true, nil
}

// RecordGlobalRefresh sets the last-refresh marker to the given time,
// overwriting any previous value.
func (r *MarkerRepository) RecordGlobalRefresh(ctx context.Context, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO system_markers (name, recorded_at)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET recorded_at = EXCLUDED.recorded_at`,
		markerLastRefresh, at)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record refresh marker", err)
	}
	return nil
}
