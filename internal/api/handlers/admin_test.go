package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityweather/internal/core"
	"cityweather/internal/types"
	"cityweather/internal/upstream"
)

// --- Function-field fakes ---

type fakeCityAdminStore struct {
	listFn   func(ctx context.Context) ([]*types.City, error)
	getFn    func(ctx context.Context, id string) (*types.City, error)
	addFn    func(ctx context.Context, name string, lat, lon float64) (*types.City, error)
	updateFn func(ctx context.Context, id, name string, lat, lon float64) (bool, error)
	removeFn func(ctx context.Context, id string) (bool, error)
}

func (f *fakeCityAdminStore) List(ctx context.Context) ([]*types.City, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx)
}

func (f *fakeCityAdminStore) Get(ctx context.Context, id string) (*types.City, error) {
	return f.getFn(ctx, id)
}

func (f *fakeCityAdminStore) Add(ctx context.Context, name string, lat, lon float64) (*types.City, error) {
	return f.addFn(ctx, name, lat, lon)
}

func (f *fakeCityAdminStore) Update(ctx context.Context, id, name string, lat, lon float64) (bool, error) {
	return f.updateFn(ctx, id, name, lat, lon)
}

func (f *fakeCityAdminStore) Remove(ctx context.Context, id string) (bool, error) {
	return f.removeFn(ctx, id)
}

type fakeCacheAdmin struct {
	clearedCities []string
	clearedAll    bool
	metaFn        func(ctx context.Context, cityID string) (*types.CacheEntryMeta, error)
	markerFn      func(ctx context.Context) (time.Time, bool, error)
}

func (f *fakeCacheAdmin) ClearCity(ctx context.Context, cityID string) error {
	f.clearedCities = append(f.clearedCities, cityID)
	return nil
}

func (f *fakeCacheAdmin) ClearAll(ctx context.Context) error {
	f.clearedAll = true
	return nil
}

func (f *fakeCacheAdmin) Metadata(ctx context.Context, cityID string) (*types.CacheEntryMeta, error) {
	if f.metaFn == nil {
		return nil, nil
	}
	return f.metaFn(ctx, cityID)
}

func (f *fakeCacheAdmin) LastGlobalRefresh(ctx context.Context) (time.Time, bool, error) {
	if f.markerFn == nil {
		return time.Time{}, false, nil
	}
	return f.markerFn(ctx)
}

type fakeRefreshRunner struct {
	runFn func(ctx context.Context) (*types.RefreshReport, error)
}

func (f *fakeRefreshRunner) Run(ctx context.Context) (*types.RefreshReport, error) {
	return f.runFn(ctx)
}

type fakeCitySearcher struct {
	searchFn func(ctx context.Context, name string) ([]upstream.GeocodeMatch, error)
}

func (f *fakeCitySearcher) Search(ctx context.Context, name string) ([]upstream.GeocodeMatch, error) {
	return f.searchFn(ctx, name)
}

func newAdminServer(cities *fakeCityAdminStore, cache *fakeCacheAdmin, refresher *fakeRefreshRunner, geocoder *fakeCitySearcher) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cache == nil {
		cache = &fakeCacheAdmin{}
	}
	h := NewAdminHandler(cities, cache, refresher, geocoder, core.NewValidator(logger), logger)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

// --- Tests ---

func TestListCities_PreservesOrder(t *testing.T) {
	cities := &fakeCityAdminStore{
		listFn: func(ctx context.Context) ([]*types.City, error) {
			return []*types.City{madrid, oslo}, nil
		},
	}
	srv := newAdminServer(cities, nil, nil, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/cities", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp CityListResponse
	decodeData(t, w, &resp)
	require.Len(t, resp.Cities, 2)
	assert.Equal(t, "madrid", resp.Cities[0].ID)
	assert.Equal(t, "oslo", resp.Cities[1].ID)
}

func TestAddCity(t *testing.T) {
	t.Run("success returns updated list", func(t *testing.T) {
		var gotName string
		cities := &fakeCityAdminStore{
			addFn: func(ctx context.Context, name string, lat, lon float64) (*types.City, error) {
				gotName = name
				return &types.City{ID: "new-york", Name: name, Latitude: lat, Longitude: lon}, nil
			},
			listFn: func(ctx context.Context) ([]*types.City, error) {
				return []*types.City{madrid, {ID: "new-york", Name: "New York"}}, nil
			},
		}
		srv := newAdminServer(cities, nil, nil, nil)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/admin/cities",
			strings.NewReader(`{"name":"New York","latitude":40.7128,"longitude":-74.006}`)))

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "New York", gotName)

		var resp CityListResponse
		decodeData(t, w, &resp)
		assert.Len(t, resp.Cities, 2)
	})

	t.Run("invalid latitude", func(t *testing.T) {
		srv := newAdminServer(&fakeCityAdminStore{}, nil, nil, nil)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/admin/cities",
			strings.NewReader(`{"name":"Nowhere","latitude":91,"longitude":0}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_invalid_latitude", errorCode(t, w))
	})

	t.Run("missing name", func(t *testing.T) {
		srv := newAdminServer(&fakeCityAdminStore{}, nil, nil, nil)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/admin/cities",
			strings.NewReader(`{"name":"","latitude":0,"longitude":0}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_missing_name", errorCode(t, w))
	})
}

func TestUpdateCity_NotFound(t *testing.T) {
	cities := &fakeCityAdminStore{
		updateFn: func(ctx context.Context, id, name string, lat, lon float64) (bool, error) {
			return false, nil
		},
	}
	srv := newAdminServer(cities, nil, nil, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/v1/admin/cities/atlantis",
		strings.NewReader(`{"name":"Atlantis","latitude":0,"longitude":0}`)))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveCity(t *testing.T) {
	t.Run("removes then clears cache", func(t *testing.T) {
		cities := &fakeCityAdminStore{
			removeFn: func(ctx context.Context, id string) (bool, error) {
				return true, nil
			},
			listFn: func(ctx context.Context) ([]*types.City, error) {
				return []*types.City{oslo}, nil
			},
		}
		cache := &fakeCacheAdmin{}
		srv := newAdminServer(cities, cache, nil, nil)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/admin/cities/madrid", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"madrid"}, cache.clearedCities)
	})

	t.Run("unknown city leaves cache alone", func(t *testing.T) {
		cities := &fakeCityAdminStore{
			removeFn: func(ctx context.Context, id string) (bool, error) {
				return false, nil
			},
		}
		cache := &fakeCacheAdmin{}
		srv := newAdminServer(cities, cache, nil, nil)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/admin/cities/atlantis", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, cache.clearedCities)
	})
}

func TestTriggerRefresh_ReturnsReport(t *testing.T) {
	started := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	refresher := &fakeRefreshRunner{
		runFn: func(ctx context.Context) (*types.RefreshReport, error) {
			return &types.RefreshReport{
				StartedAt:   started,
				CompletedAt: started.Add(2 * time.Second),
				Results: []types.RefreshResult{
					{CityID: "madrid", OK: true},
					{CityID: "oslo", Error: "provider unreachable"},
				},
			}, nil
		},
	}
	srv := newAdminServer(&fakeCityAdminStore{}, nil, refresher, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/admin/refresh", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var report types.RefreshReport
	decodeData(t, w, &report)
	require.Len(t, report.Results, 2)
	assert.Equal(t, 1, report.Failed())
}

func TestRefreshStatus(t *testing.T) {
	t.Run("before first pass", func(t *testing.T) {
		srv := newAdminServer(&fakeCityAdminStore{}, &fakeCacheAdmin{}, nil, nil)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/refresh/status", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp RefreshStatusResponse
		decodeData(t, w, &resp)
		assert.Nil(t, resp.LastGlobalRefresh)
	})

	t.Run("after a pass", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
		cache := &fakeCacheAdmin{
			markerFn: func(ctx context.Context) (time.Time, bool, error) {
				return at, true, nil
			},
		}
		srv := newAdminServer(&fakeCityAdminStore{}, cache, nil, nil)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/refresh/status", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp RefreshStatusResponse
		decodeData(t, w, &resp)
		require.NotNil(t, resp.LastGlobalRefresh)
		assert.True(t, at.Equal(*resp.LastGlobalRefresh))
	})
}

func TestCacheStatus(t *testing.T) {
	t.Run("entry present", func(t *testing.T) {
		created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
		cities := &fakeCityAdminStore{getFn: cityLookup(madrid)}
		cache := &fakeCacheAdmin{
			metaFn: func(ctx context.Context, cityID string) (*types.CacheEntryMeta, error) {
				return &types.CacheEntryMeta{
					CreatedAt:  created,
					ExpiresAt:  created.Add(3 * time.Hour),
					Valid:      true,
					AgeSeconds: 600,
				}, nil
			},
		}
		srv := newAdminServer(cities, cache, nil, nil)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/cache/madrid", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp CacheStatusResponse
		decodeData(t, w, &resp)
		require.NotNil(t, resp.Entry)
		assert.True(t, resp.Entry.Valid)
		assert.Equal(t, int64(600), resp.Entry.AgeSeconds)
	})

	t.Run("no entry", func(t *testing.T) {
		cities := &fakeCityAdminStore{getFn: cityLookup(madrid)}
		srv := newAdminServer(cities, &fakeCacheAdmin{}, nil, nil)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/cache/madrid", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp CacheStatusResponse
		decodeData(t, w, &resp)
		assert.Nil(t, resp.Entry)
	})

	t.Run("removed city is unreachable", func(t *testing.T) {
		cities := &fakeCityAdminStore{getFn: cityLookup()}
		srv := newAdminServer(cities, &fakeCacheAdmin{}, nil, nil)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/cache/atlantis", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestClearCache(t *testing.T) {
	cache := &fakeCacheAdmin{}
	srv := newAdminServer(&fakeCityAdminStore{}, cache, nil, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/admin/cache", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, cache.clearedAll)
}

func TestGeocode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		geocoder := &fakeCitySearcher{
			searchFn: func(ctx context.Context, name string) ([]upstream.GeocodeMatch, error) {
				assert.Equal(t, "Madrid", name)
				return []upstream.GeocodeMatch{
					{Name: "Madrid", Country: "Spain", Latitude: 40.4168, Longitude: -3.7038},
				}, nil
			},
		}
		srv := newAdminServer(&fakeCityAdminStore{}, nil, nil, geocoder)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/geocode?name=Madrid", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Matches []upstream.GeocodeMatch `json:"matches"`
		}
		decodeData(t, w, &resp)
		require.Len(t, resp.Matches, 1)
		assert.Equal(t, "Spain", resp.Matches[0].Country)
	})

	t.Run("missing name", func(t *testing.T) {
		srv := newAdminServer(&fakeCityAdminStore{}, nil, nil, &fakeCitySearcher{})

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/geocode", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
