// Package types defines the shared domain model for the cityweather service:
// cities, weather snapshots, cache metadata, visitor identity, and the
// application error taxonomy. It has no dependencies on other internal
// packages so that every layer can import it freely.
package types

import "time"

// ForecastDays is the length of the daily series carried by every Snapshot.
const ForecastDays = 7

// City is one entry in the administratively managed city list. The ID is a
// slug derived from the display name at creation time and is immutable;
// name and coordinates are mutable via update.
type City struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentConditions is the "right now" portion of a weather snapshot.
// Fields the provider omitted are nil rather than zero, so that a missing
// reading is distinguishable from a genuine 0 value.
type CurrentConditions struct {
	Time          time.Time `json:"time"`
	TemperatureC  *float64  `json:"temperature_c"`
	HumidityPct   *float64  `json:"humidity_pct"`
	PrecipProbPct *float64  `json:"precipitation_probability_pct"`
	WindSpeedKmh  *float64  `json:"wind_speed_kmh"`
	WeatherCode   int       `json:"weather_code"`
}

// DailyForecast is one day in the 7-day series.
type DailyForecast struct {
	Date        time.Time `json:"date"`
	TempMaxC    *float64  `json:"temp_max_c"`
	TempMinC    *float64  `json:"temp_min_c"`
	WeatherCode int       `json:"weather_code"`
}

// Snapshot is the normalized result of one upstream fetch for one city:
// current conditions plus a 7-day daily series. Icon identifiers and
// human-readable descriptions are derived from WeatherCode at read time and
// are intentionally NOT part of the stored snapshot, so the mapping policy
// can change without invalidating cached data.
type Snapshot struct {
	FetchedAt time.Time         `json:"fetched_at"`
	Current   CurrentConditions `json:"current"`
	Daily     []DailyForecast   `json:"daily"`
}

// CacheEntry is a stored weather snapshot together with its validity window.
// The invariant ExpiresAt == CreatedAt + cache lifetime holds at write time.
type CacheEntry struct {
	Snapshot  *Snapshot
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ValidAt reports whether the entry is still within its validity window.
func (e CacheEntry) ValidAt(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// CacheEntryMeta is the read-only introspection view of a stored cache entry.
type CacheEntryMeta struct {
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Valid      bool      `json:"valid"`
	AgeSeconds int64     `json:"age_seconds"`
}

// RefreshResult records the outcome of one city's fetch during a refresh pass.
type RefreshResult struct {
	CityID string `json:"city_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// RefreshReport summarizes a full refresh pass over the city list.
type RefreshReport struct {
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Results     []RefreshResult `json:"results"`
}

// Failed returns the number of cities whose fetch failed during the pass.
func (r RefreshReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK {
			n++
		}
	}
	return n
}
