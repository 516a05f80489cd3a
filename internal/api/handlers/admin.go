package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cityweather/internal/core"
	"cityweather/internal/types"
	"cityweather/internal/upstream"
)

// --- Service Interfaces ---

// CityAdminStore is the full catalogue contract used by the admin handler.
// Mirrors the concrete db.CityRepository methods.
type CityAdminStore interface {
	List(ctx context.Context) ([]*types.City, error)
	Get(ctx context.Context, id string) (*types.City, error)
	Add(ctx context.Context, name string, lat, lon float64) (*types.City, error)
	Update(ctx context.Context, id, name string, lat, lon float64) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// CacheAdmin exposes the cache maintenance and introspection operations.
type CacheAdmin interface {
	ClearCity(ctx context.Context, cityID string) error
	ClearAll(ctx context.Context) error
	Metadata(ctx context.Context, cityID string) (*types.CacheEntryMeta, error)
	LastGlobalRefresh(ctx context.Context) (time.Time, bool, error)
}

// RefreshRunner executes one refresh pass over the catalogue. The manual
// trigger and the scheduled invocation share this exact routine.
type RefreshRunner interface {
	Run(ctx context.Context) (*types.RefreshReport, error)
}

// CitySearcher looks up coordinate candidates for a city name.
type CitySearcher interface {
	Search(ctx context.Context, name string) ([]upstream.GeocodeMatch, error)
}

// --- Request/Response Models ---

// CityRequest is the request body for city create and update.
type CityRequest struct {
	Name      string  `json:"name" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// CityListResponse carries the full catalogue in insertion order. Mutating
// endpoints return it so the admin UI can redraw the list from one response.
type CityListResponse struct {
	Cities []*types.City `json:"cities"`
}

// CacheStatusResponse is the introspection view for one city.
type CacheStatusResponse struct {
	CityID string                `json:"city_id"`
	Entry  *types.CacheEntryMeta `json:"entry"` // nil when no entry is stored
}

// RefreshStatusResponse surfaces the global refresh marker.
type RefreshStatusResponse struct {
	LastGlobalRefresh *time.Time `json:"last_global_refresh"` // nil before first pass
}

// --- Handler ---

// AdminHandler covers catalogue management, cache maintenance, manual
// refresh, and geocoding search.
type AdminHandler struct {
	cities    CityAdminStore
	cache     CacheAdmin
	refresher RefreshRunner
	geocoder  CitySearcher
	validator *core.Validator
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler with the provided dependencies.
func NewAdminHandler(
	cities CityAdminStore,
	cache CacheAdmin,
	refresher RefreshRunner,
	geocoder CitySearcher,
	v *core.Validator,
	l *slog.Logger,
) *AdminHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AdminHandler{
		cities:    cities,
		cache:     cache,
		refresher: refresher,
		geocoder:  geocoder,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the admin routes on the provided chi.Router.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Route("/cities", func(r chi.Router) {
			r.Get("/", h.ListCities)
			r.Post("/", h.AddCity)
			r.Put("/{cityID}", h.UpdateCity)
			r.Delete("/{cityID}", h.RemoveCity)
		})

		r.Post("/refresh", h.TriggerRefresh)
		r.Get("/refresh/status", h.RefreshStatus)

		r.Get("/cache/{cityID}", h.CacheStatus)
		r.Delete("/cache", h.ClearCache)

		r.Get("/geocode", h.Geocode)
	})
}

// ListCities handles GET /v1/admin/cities.
func (h *AdminHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.cities.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: CityListResponse{Cities: cities}})
}

// AddCity handles POST /v1/admin/cities. The city id is generated from the
// name; the updated catalogue is returned.
func (h *AdminHandler) AddCity(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCityRequest(w, r)
	if !ok {
		return
	}

	city, err := h.cities.Add(r.Context(), req.Name, req.Latitude, req.Longitude)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "city added", "city_id", city.ID, "name", city.Name)
	h.respondWithList(w, r, http.StatusCreated)
}

// UpdateCity handles PUT /v1/admin/cities/{cityID}. The id is immutable;
// name and coordinates are replaced.
func (h *AdminHandler) UpdateCity(w http.ResponseWriter, r *http.Request) {
	cityID := chi.URLParam(r, "cityID")

	req, ok := h.decodeCityRequest(w, r)
	if !ok {
		return
	}

	updated, err := h.cities.Update(r.Context(), cityID, req.Name, req.Latitude, req.Longitude)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !updated {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundCity,
			"unknown city: "+cityID,
			nil,
		))
		return
	}

	h.respondWithList(w, r, http.StatusOK)
}

// RemoveCity handles DELETE /v1/admin/cities/{cityID}. Removal and cache
// invalidation form one logical unit: the entity row goes first, then the
// cached snapshot. A failed cache clear is logged but does not undo the
// removal; the dangling entry is unreachable through city lookups.
func (h *AdminHandler) RemoveCity(w http.ResponseWriter, r *http.Request) {
	cityID := chi.URLParam(r, "cityID")

	removed, err := h.cities.Remove(r.Context(), cityID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !removed {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundCity,
			"unknown city: "+cityID,
			nil,
		))
		return
	}

	if err := h.cache.ClearCity(r.Context(), cityID); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to clear cache for removed city",
			"city_id", cityID, "error", err)
	}

	h.respondWithList(w, r, http.StatusOK)
}

// TriggerRefresh handles POST /v1/admin/refresh: a synchronous refresh pass
// over every city, identical to the scheduled invocation. The report is
// returned even when stamping the marker failed afterwards.
func (h *AdminHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	report, err := h.refresher.Run(r.Context())
	if err != nil && report == nil {
		core.Error(w, r, err)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "refresh pass completed with marker error", "error", err)
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// RefreshStatus handles GET /v1/admin/refresh/status.
func (h *AdminHandler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	at, found, err := h.cache.LastGlobalRefresh(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := RefreshStatusResponse{}
	if found {
		resp.LastGlobalRefresh = &at
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// CacheStatus handles GET /v1/admin/cache/{cityID}. The city must exist in
// the catalogue; a stale cache entry for a removed city is not
// administratively reachable.
func (h *AdminHandler) CacheStatus(w http.ResponseWriter, r *http.Request) {
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

	meta, err := h.cache.Metadata(r.Context(), cityID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: CacheStatusResponse{
		CityID: cityID,
		Entry:  meta,
	}})
}

// ClearCache handles DELETE /v1/admin/cache: bulk invalidation of every
// stored snapshot.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.ClearAll(r.Context()); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]bool{"cleared": true}})
}

// Geocode handles GET /v1/admin/geocode?name=... and returns coordinate
// candidates for the admin form.
func (h *AdminHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingName,
			"name query parameter is required",
			nil,
		))
		return
	}

	matches, err := h.geocoder.Search(r.Context(), name)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{"matches": matches}})
}

// decodeCityRequest decodes and validates the shared city payload. It
// writes the error response itself and reports success via ok.
func (h *AdminHandler) decodeCityRequest(w http.ResponseWriter, r *http.Request) (CityRequest, bool) {
	var req CityRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return req, false
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return req, false
	}
	return req, true
}

// respondWithList writes the current catalogue after a mutation.
func (h *AdminHandler) respondWithList(w http.ResponseWriter, r *http.Request, status int) {
	cities, err := h.cities.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, status, core.APIResponse{Data: CityListResponse{Cities: cities}})
}
