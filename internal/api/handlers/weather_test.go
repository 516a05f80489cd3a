package handlers

import (
	"context"
	"encoding/json"
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
)

// --- Function-field fakes ---

type fakeWeatherProvider struct {
	getFn func(ctx context.Context, cityID string, lat, lon float64, forceFresh bool) (*types.Snapshot, error)
}

func (f *fakeWeatherProvider) GetWeather(ctx context.Context, cityID string, lat, lon float64, forceFresh bool) (*types.Snapshot, error) {
	return f.getFn(ctx, cityID, lat, lon, forceFresh)
}

type fakeCityReader struct {
	getFn     func(ctx context.Context, id string) (*types.City, error)
	defaultFn func(ctx context.Context) (*types.City, error)
}

func (f *fakeCityReader) Get(ctx context.Context, id string) (*types.City, error) {
	return f.getFn(ctx, id)
}

func (f *fakeCityReader) Default(ctx context.Context) (*types.City, error) {
	if f.defaultFn == nil {
		return nil, nil
	}
	return f.defaultFn(ctx)
}

type fakePrefService struct {
	resolveFn func(ctx context.Context, req *http.Request) (*types.City, error)
	saveFn    func(ctx context.Context, w http.ResponseWriter, req *http.Request, cityID string) error
}

func (f *fakePrefService) Resolve(ctx context.Context, req *http.Request) (*types.City, error) {
	if f.resolveFn == nil {
		return nil, nil
	}
	return f.resolveFn(ctx, req)
}

func (f *fakePrefService) Save(ctx context.Context, w http.ResponseWriter, req *http.Request, cityID string) error {
	if f.saveFn == nil {
		return nil
	}
	return f.saveFn(ctx, w, req, cityID)
}

// --- Fixtures ---

var (
	madrid = &types.City{ID: "madrid", Name: "Madrid", Latitude: 40.4168, Longitude: -3.7038}
	oslo   = &types.City{ID: "oslo", Name: "Oslo", Latitude: 59.9139, Longitude: 10.7522}
)

func fullSnapshot() *types.Snapshot {
	temp := 15.2
	humidity := 65.0
	precip := 10.0
	wind := 12.5
	fetchedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	daily := make([]types.DailyForecast, 7)
	for i := range daily {
		maxT := 20.0 + float64(i)
		minT := 10.0 + float64(i)
		daily[i] = types.DailyForecast{
			Date:        fetchedAt.AddDate(0, 0, i),
			TempMaxC:    &maxT,
			TempMinC:    &minT,
			WeatherCode: 61,
		}
	}

	return &types.Snapshot{
		FetchedAt: fetchedAt,
		Current: types.CurrentConditions{
			Time:          fetchedAt,
			TemperatureC:  &temp,
			HumidityPct:   &humidity,
			PrecipProbPct: &precip,
			WindSpeedKmh:  &wind,
			WeatherCode:   3,
		},
		Daily: daily,
	}
}

func cityLookup(cities ...*types.City) func(ctx context.Context, id string) (*types.City, error) {
	return func(ctx context.Context, id string) (*types.City, error) {
		for _, c := range cities {
			if c.ID == id {
				return c, nil
			}
		}
		return nil, nil
	}
}

func newWeatherServer(weather *fakeWeatherProvider, cities *fakeCityReader, prefs *fakePrefService) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewWeatherHandler(weather, cities, prefs, core.NewValidator(logger), logger)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

// --- Tests ---

func TestGetByCity_Success(t *testing.T) {
	weather := &fakeWeatherProvider{
		getFn: func(ctx context.Context, cityID string, lat, lon float64, forceFresh bool) (*types.Snapshot, error) {
			assert.Equal(t, "madrid", cityID)
			assert.Equal(t, madrid.Latitude, lat)
			assert.Equal(t, madrid.Longitude, lon)
			assert.False(t, forceFresh)
			return fullSnapshot(), nil
		},
	}
	srv := newWeatherServer(weather, &fakeCityReader{getFn: cityLookup(madrid)}, &fakePrefService{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/weather/madrid", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp WeatherResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "madrid", resp.City.ID)
	require.NotNil(t, resp.Current.TemperatureC)
	assert.Equal(t, 15.2, *resp.Current.TemperatureC)
	assert.Equal(t, "overcast", resp.Current.Icon)
	assert.Equal(t, "Overcast", resp.Current.Description)
	require.Len(t, resp.Daily, 7)
	assert.Equal(t, "rain", resp.Daily[0].Icon)
	assert.Equal(t, "2025-06-01", resp.Daily[0].Date)
}

func TestGetByCity_UnknownCity(t *testing.T) {
	srv := newWeatherServer(&fakeWeatherProvider{}, &fakeCityReader{getFn: cityLookup()}, &fakePrefService{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/weather/atlantis", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found_city", errorCode(t, w))
}

func TestGetByCity_UpstreamFailure(t *testing.T) {
	weather := &fakeWeatherProvider{
		getFn: func(ctx context.Context, cityID string, lat, lon float64, forceFresh bool) (*types.Snapshot, error) {
			return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "provider unreachable", nil)
		},
	}
	srv := newWeatherServer(weather, &fakeCityReader{getFn: cityLookup(madrid)}, &fakePrefService{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/weather/madrid", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "upstream_weather_unavailable", errorCode(t, w))
}

func TestGetByCity_FreshParamForwarded(t *testing.T) {
	var gotFresh bool
	weather := &fakeWeatherProvider{
		getFn: func(ctx context.Context, cityID string, lat, lon float64, forceFresh bool) (*types.Snapshot, error) {
			gotFresh = forceFresh
			return fullSnapshot(), nil
		},
	}
	srv := newWeatherServer(weather, &fakeCityReader{getFn: cityLookup(madrid)}, &fakePrefService{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/weather/madrid?fresh=true", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotFresh)
}

func TestGetPreferred_UsesResolvedPreference(t *testing.T) {
	var fetchedCity string
	weather := &fakeWeatherProvider{
		getFn: func(ctx context.Context, cityID string, lat, lon float64, forceFresh bool) (*types.Snapshot, error) {
			fetchedCity = cityID
			return fullSnapshot(), nil
		},
	}
	prefs := &fakePrefService{
		resolveFn: func(ctx context.Context, req *http.Request) (*types.City, error) {
			return oslo, nil
		},
	}
	srv := newWeatherServer(weather, &fakeCityReader{getFn: cityLookup(madrid, oslo)}, prefs)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/weather", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "oslo", fetchedCity)
}

func TestGetPreferred_FallsBackToDefault(t *testing.T) {
	var fetchedCity string
	weather := &fakeWeatherProvider{
		getFn: func(ctx context.Context, cityID string, lat, lon float64, forceFresh bool) (*types.Snapshot, error) {
			fetchedCity = cityID
			return fullSnapshot(), nil
		},
	}
	cities := &fakeCityReader{
		getFn: cityLookup(madrid),
		defaultFn: func(ctx context.Context) (*types.City, error) {
			return madrid, nil
		},
	}
	srv := newWeatherServer(weather, cities, &fakePrefService{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/weather", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "madrid", fetchedCity)
}

func TestGetPreferred_EmptyCatalogue(t *testing.T) {
	srv := newWeatherServer(&fakeWeatherProvider{}, &fakeCityReader{getFn: cityLookup()}, &fakePrefService{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/weather", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found_city", errorCode(t, w))
}

func TestSavePreference(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var savedCity string
		prefs := &fakePrefService{
			saveFn: func(ctx context.Context, w http.ResponseWriter, req *http.Request, cityID string) error {
				savedCity = cityID
				return nil
			},
		}
		srv := newWeatherServer(&fakeWeatherProvider{}, &fakeCityReader{getFn: cityLookup(madrid)}, prefs)

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/v1/preference",
			strings.NewReader(`{"city_id":"madrid"}`)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "madrid", savedCity)
	})

	t.Run("unknown city", func(t *testing.T) {
		srv := newWeatherServer(&fakeWeatherProvider{}, &fakeCityReader{getFn: cityLookup()}, &fakePrefService{})

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/v1/preference",
			strings.NewReader(`{"city_id":"atlantis"}`)))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing city_id", func(t *testing.T) {
		srv := newWeatherServer(&fakeWeatherProvider{}, &fakeCityReader{getFn: cityLookup(madrid)}, &fakePrefService{})

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/v1/preference",
			strings.NewReader(`{"city_id":""}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_missing_required_field", errorCode(t, w))
	})
}
