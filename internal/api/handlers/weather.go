// Package handlers contains the HTTP handler implementations for the city
// weather API. Each handler declares local interfaces for its collaborators
// and is wired with concrete implementations by the application entry point.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cityweather/internal/core"
	"cityweather/internal/types"
	"cityweather/internal/upstream"
)

// --- Service Interfaces ---

// WeatherProvider serves weather snapshots through the cache policy.
// Mirrors the concrete cache.WeatherCache methods used by this handler.
type WeatherProvider interface {
	GetWeather(ctx context.Context, cityID string, lat, lon float64, forceFresh bool) (*types.Snapshot, error)
}

// CityReader provides city lookups for the read path.
type CityReader interface {
	Get(ctx context.Context, id string) (*types.City, error)
	Default(ctx context.Context) (*types.City, error)
}

// PreferenceService resolves and saves the visitor's city preference.
type PreferenceService interface {
	Resolve(ctx context.Context, req *http.Request) (*types.City, error)
	Save(ctx context.Context, w http.ResponseWriter, req *http.Request, cityID string) error
}

// --- Request/Response Models ---

// SavePreferenceRequest is the request body for PUT /v1/preference.
type SavePreferenceRequest struct {
	CityID string `json:"city_id" validate:"required"`
}

// CurrentView is the wire form of current conditions, with the icon and
// description derived from the condition code at read time.
type CurrentView struct {
	Time          time.Time `json:"time"`
	TemperatureC  *float64  `json:"temperature_c"`
	HumidityPct   *float64  `json:"humidity_pct"`
	PrecipProbPct *float64  `json:"precipitation_probability_pct"`
	WindSpeedKmh  *float64  `json:"wind_speed_kmh"`
	WeatherCode   int       `json:"weather_code"`
	Icon          string    `json:"icon"`
	Description   string    `json:"description"`
}

// DailyView is the wire form of one daily forecast entry.
type DailyView struct {
	Date        string   `json:"date"`
	TempMaxC    *float64 `json:"temperature_max_c"`
	TempMinC    *float64 `json:"temperature_min_c"`
	WeatherCode int      `json:"weather_code"`
	Icon        string   `json:"icon"`
	Description string   `json:"description"`
}

// WeatherResponse is the response body for the weather read endpoints.
type WeatherResponse struct {
	City      *types.City `json:"city"`
	FetchedAt time.Time   `json:"fetched_at"`
	Current   CurrentView `json:"current"`
	Daily     []DailyView `json:"daily"`
}

// --- Handler ---

// WeatherHandler serves weather reads and preference writes.
type WeatherHandler struct {
	weather   WeatherProvider
	cities    CityReader
	prefs     PreferenceService
	validator *core.Validator
	logger    *slog.Logger
}

// NewWeatherHandler creates a WeatherHandler with the provided dependencies.
func NewWeatherHandler(
	weather WeatherProvider,
	cities CityReader,
	prefs PreferenceService,
	v *core.Validator,
	l *slog.Logger,
) *WeatherHandler {
	if l == nil {
		l = slog.Default()
	}
	return &WeatherHandler{
		weather:   weather,
		cities:    cities,
		prefs:     prefs,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the weather routes on the provided chi.Router.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Get("/weather", h.GetPreferred)
	r.Get("/weather/{cityID}", h.GetByCity)
	r.Put("/preference", h.SavePreference)
}

// GetPreferred handles GET /v1/weather. It resolves the visitor's preferred
// city, falling back to the default city (first in insertion order) when no
// usable preference exists, and serves that city's weather.
func (h *WeatherHandler) GetPreferred(w http.ResponseWriter, r *http.Request) {
	city, err := h.prefs.Resolve(r.Context(), r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if city == nil {
		city, err = h.cities.Default(r.Context())
		if err != nil {
			core.Error(w, r, err)
			return
		}
	}

	if city == nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundCity,
			"no cities configured",
			nil,
		))
		return
	}

	h.serveWeather(w, r, city)
}

// GetByCity handles GET /v1/weather/{cityID}.
func (h *WeatherHandler) GetByCity(w http.ResponseWriter, r *http.Request) {
	cityID := chi.URLParam(r, "cityID")

	city, err := h.cities.Get(r.Context(), cityID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if city == nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundCity,
			"unknown city: "+cityID,
			nil,
		))
		return
	}

	h.serveWeather(w, r, city)
}

// serveWeather fetches the snapshot for the city and writes the response.
// The fresh query parameter bypasses the cache read for this request.
func (h *WeatherHandler) serveWeather(w http.ResponseWriter, r *http.Request, city *types.City) {
	forceFresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh"))

	snap, err := h.weather.GetWeather(r.Context(), city.ID, city.Latitude, city.Longitude, forceFresh)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: buildWeatherResponse(city, snap)})
}

// SavePreference handles PUT /v1/preference. The preference lands in the
// realm matching the visitor: a durable row for authenticated visitors, a
// signed long-lived cookie for anonymous ones.
func (h *WeatherHandler) SavePreference(w http.ResponseWriter, r *http.Request) {
	var req SavePreferenceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	city, err := h.cities.Get(r.Context(), req.CityID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if city == nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundCity,
			"unknown city: "+req.CityID,
			nil,
		))
		return
	}

	if err := h.prefs.Save(r.Context(), w, r, city.ID); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
		"saved":   true,
		"city_id": city.ID,
	}})
}

// buildWeatherResponse derives the wire view from a stored snapshot. Icon
// and description come from the condition code here, not from the store, so
// the mapping can change without invalidating cached snapshots.
func buildWeatherResponse(city *types.City, snap *types.Snapshot) WeatherResponse {
	resp := WeatherResponse{
		City:      city,
		FetchedAt: snap.FetchedAt,
		Current: CurrentView{
			Time:          snap.Current.Time,
			TemperatureC:  snap.Current.TemperatureC,
			HumidityPct:   snap.Current.HumidityPct,
			PrecipProbPct: snap.Current.PrecipProbPct,
			WindSpeedKmh:  snap.Current.WindSpeedKmh,
			WeatherCode:   snap.Current.WeatherCode,
			Icon:          string(upstream.ConditionIcon(snap.Current.WeatherCode)),
			Description:   upstream.ConditionDescription(snap.Current.WeatherCode),
		},
		Daily: make([]DailyView, 0, len(snap.Daily)),
	}

	for _, day := range snap.Daily {
		resp.Daily = append(resp.Daily, DailyView{
			Date:        day.Date.Format("2006-01-02"),
			TempMaxC:    day.TempMaxC,
			TempMinC:    day.TempMinC,
			WeatherCode: day.WeatherCode,
			Icon:        string(upstream.ConditionIcon(day.WeatherCode)),
			Description: upstream.ConditionDescription(day.WeatherCode),
		})
	}

	return resp
}
