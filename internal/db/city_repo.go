package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cityweather/internal/types"
)

// maxSlugAttempts bounds the collision-suffix search when generating a city
// identifier. Hitting it would require that many cities with the same base
// slug; treated as an internal error rather than looping forever.
const maxSlugAttempts = 1000

// CityRepository provides data access for the cities table. The table keeps
// insertion order in a position column so that listing order is stable and
// the first-inserted city serves as the default:
//
//	CREATE TABLE cities (
//	    id         TEXT PRIMARY KEY,
//	    name       TEXT NOT NULL,
//	    latitude   DOUBLE PRECISION NOT NULL,
//	    longitude  DOUBLE PRECISION NOT NULL,
//	    position   BIGINT GENERATED ALWAYS AS IDENTITY,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
type CityRepository struct {
	db DBTX
}

// NewCityRepository creates a new CityRepository backed by the given database
// connection (pool or transaction).
func NewCityRepository(db DBTX) *CityRepository {
	return &CityRepository{db: db}
}

const cityColumns = `id, name, latitude, longitude, created_at, updated_at`

// scanCity scans a single city row. The columns must match cityColumns.
func scanCity(row pgx.Row) (*types.City, error) {
	var c types.City
	err := row.Scan(&c.ID, &c.Name, &c.Latitude, &c.Longitude, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all cities in insertion order.
func (r *CityRepository) List(ctx context.Context) ([]*types.City, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+cityColumns+` FROM cities ORDER BY position ASC`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list cities", err)
	}
	defer rows.Close()

	var cities []*types.City
	for rows.Next() {
		c, scanErr := scanCity(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan city row", scanErr)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating city rows", err)
	}

	return cities, nil
}

// Get returns the city with the given identifier, or nil when absent.
func (r *CityRepository) Get(ctx context.Context, id string) (*types.City, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+cityColumns+` FROM cities WHERE id = $1`, id)

	c, err := scanCity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve city", err)
	}
	return c, nil
}

// Default returns the first city in insertion order, or nil when the store
// is empty.
func (r *CityRepository) Default(ctx context.Context) (*types.City, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+cityColumns+` FROM cities ORDER BY position ASC LIMIT 1`)

	c, err := scanCity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve default city", err)
	}
	return c, nil
}

// Add inserts a new city, deriving its identifier from the display name.
// On slug collision a numeric suffix is appended, starting at 1. The insert
// uses ON CONFLICT DO NOTHING so concurrent adds with the same base slug
// simply advance to the next suffix instead of failing.
func (r *CityRepository) Add(ctx context.Context, name string, lat, lon float64) (*types.City, error) {
	base := types.Slugify(name)
	if base == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingName,
			"city name must contain at least one alphanumeric character",
			nil,
		)
	}

	now := time.Now().UTC()

	candidate := base
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		tag, err := r.db.Exec(ctx,
			`INSERT INTO cities (id, name, latitude, longitude, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $5)
			 ON CONFLICT (id) DO NOTHING`,
			candidate, name, lat, lon, now)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create city", err)
		}
		if tag.RowsAffected() == 1 {
			return &types.City{
				ID:        candidate,
				Name:      name,
				Latitude:  lat,
				Longitude: lon,
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}

	return nil, types.NewAppError(
		types.ErrCodeInternalUnexpected,
		fmt.Sprintf("could not find a free identifier for %q after %d attempts", base, maxSlugAttempts),
		nil,
	)
}

// Update replaces the name and coordinates of an existing city. The
// identifier is immutable once assigned. Returns false when no city with the
// given id exists.
func (r *CityRepository) Update(ctx context.Context, id, name string, lat, lon float64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE cities
		 SET name = $2, latitude = $3, longitude = $4, updated_at = $5
		 WHERE id = $1`,
		id, name, lat, lon, time.Now().UTC())
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to update city", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Remove deletes the city with the given identifier. Returns false when no
// such city exists. Cache invalidation for the removed identifier is the
// caller's responsibility (remove-then-clear).
func (r *CityRepository) Remove(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM cities WHERE id = $1`, id)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to delete city", err)
	}
	return tag.RowsAffected() > 0, nil
}
