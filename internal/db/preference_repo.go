package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"cityweather/internal/types"
)

// PreferenceRepository is the durable realm of the preference store: it maps
// authenticated visitor identities to their chosen city. Semantics are
// last-write-wins with no history and no expiry:
//
//	CREATE TABLE city_preferences (
//	    user_id    TEXT PRIMARY KEY,
//	    city_id    TEXT NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//
// city_id deliberately carries no foreign key: a preference referencing a
// since-removed city is treated as absent by the resolver, not as an error,
// so city removal never has to fan out into preference rows.
type PreferenceRepository struct {
	db DBTX
}

// NewPreferenceRepository creates a new PreferenceRepository backed by the
// given database connection (pool or transaction).
func NewPreferenceRepository(db DBTX) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get returns the stored city id for the user. The boolean is false when the
// user has never saved a preference.
func (r *PreferenceRepository) Get(ctx context.Context, userID string) (string, bool, error) {
	var cityID string
	err := r.db.QueryRow(ctx,
		`SELECT city_id FROM city_preferences WHERE user_id = $1`,
		userID,
	).Scan(&cityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to read preference", err)
	}
	return cityID, true, nil
}

// Set stores the user's chosen city, overwriting any previous choice.
func (r *PreferenceRepository) Set(ctx context.Context, userID, cityID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO city_preferences (user_id, city_id, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE
		   SET city_id = EXCLUDED.city_id, updated_at = EXCLUDED.updated_at`,
		userID, cityID, time.Now().UTC())
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save preference", err)
	}
	return nil
}
