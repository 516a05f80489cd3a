package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"cityweather/internal/types"
)

// Fixed field selectors for the forecast request. The response carries only
// the fields the Snapshot consumes; everything else is ignored.
const (
	currentFields = "temperature_2m,relative_humidity_2m,precipitation_probability,wind_speed_10m,weather_code"
	dailyFields   = "temperature_2m_max,temperature_2m_min,weather_code"
)

// userAgent identifies this service to the provider.
const userAgent = "cityweather/1.0"

// Client fetches weather conditions from the Open-Meteo forecast API and
// normalizes them into types.Snapshot. It never panics on provider failures;
// every failure surfaces as a fetch error so the cache layer can fall back to
// stale data.
type Client struct {
	base     *BaseClient
	endpoint string
	apiKey   string // accepted for forward compatibility; unused by the provider
	logger   *slog.Logger
	now      func() time.Time // injectable clock for tests
}

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	// Endpoint is the forecast API URL. Required.
	Endpoint string
	// APIKey is stored and sent when non-empty. The canonical provider does
	// not require one today.
	APIKey string
	// Timeout bounds each forecast call end to end, including retries inside
	// the HTTP client transport.
	Timeout time.Duration
	// HTTPClient overrides the underlying client. When nil, a client with
	// Timeout is constructed.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a forecast client with circuit breaking and retries.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:     NewBaseClient(httpClient, "open-meteo-forecast", DefaultRetryPolicy(), userAgent),
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// forecastResponse mirrors the subset of the provider response the Snapshot
// consumes. Pointer fields distinguish "absent" from zero.
type forecastResponse struct {
	Current struct {
		Time                     string   `json:"time"`
		Temperature              *float64 `json:"temperature_2m"`
		RelativeHumidity         *float64 `json:"relative_humidity_2m"`
		PrecipitationProbability *float64 `json:"precipitation_probability"`
		WindSpeed                *float64 `json:"wind_speed_10m"`
		WeatherCode              *int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Time        []string   `json:"time"`
		TempMax     []*float64 `json:"temperature_2m_max"`
		TempMin     []*float64 `json:"temperature_2m_min"`
		WeatherCode []*int     `json:"weather_code"`
	} `json:"daily"`
}

// FetchConditions issues one forecast request for the coordinate pair and
// returns the normalized snapshot. Timezone resolution is delegated to the
// provider ("auto"). On transport failure or a malformed body it returns a
// typed fetch error; it never returns a partially populated snapshot.
func (c *Client) FetchConditions(ctx context.Context, lat, lon float64) (*types.Snapshot, error) {
	values := url.Values{}
	values.Set("latitude", strconv64(lat))
	values.Set("longitude", strconv64(lon))
	values.Set("current", currentFields)
	values.Set("daily", dailyFields)
	values.Set("timezone", "auto")
	values.Set("forecast_days", fmt.Sprintf("%d", types.ForecastDays))
	if c.apiKey != "" {
		values.Set("apikey", c.apiKey)
	}

	reqURL := c.endpoint + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewFetchError("building forecast request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewFetchError(
			fmt.Sprintf("forecast API returned status %d", resp.StatusCode),
			nil,
		)
	}

	var payload forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewFetchError("decoding forecast response", err)
	}

	return c.normalize(ctx, payload), nil
}

// normalize converts the provider payload into the internal snapshot shape.
// Absent fields stay nil; an absent weather code maps to -1, which the icon
// and description mappings resolve to the unknown bucket.
func (c *Client) normalize(ctx context.Context, payload forecastResponse) *types.Snapshot {
	snap := &types.Snapshot{
		FetchedAt: c.now(),
	}

	snap.Current = types.CurrentConditions{
		Time:          parseProviderTime(payload.Current.Time, c.now()),
		TemperatureC:  payload.Current.Temperature,
		HumidityPct:   payload.Current.RelativeHumidity,
		PrecipProbPct: payload.Current.PrecipitationProbability,
		WindSpeedKmh:  payload.Current.WindSpeed,
		WeatherCode:   codeOrUnknown(payload.Current.WeatherCode),
	}

	days := len(payload.Daily.Time)
	if days > types.ForecastDays {
		days = types.ForecastDays
	}
	if days < types.ForecastDays {
		c.logger.WarnContext(ctx, "provider returned short daily series",
			"expected_days", types.ForecastDays,
			"got_days", days,
		)
	}

	snap.Daily = make([]types.DailyForecast, 0, days)
	for i := 0; i < days; i++ {
		day := types.DailyForecast{
			Date:        parseProviderDate(payload.Daily.Time[i]),
			WeatherCode: -1,
		}
		if i < len(payload.Daily.TempMax) {
			day.TempMaxC = payload.Daily.TempMax[i]
		}
		if i < len(payload.Daily.TempMin) {
			day.TempMinC = payload.Daily.TempMin[i]
		}
		if i < len(payload.Daily.WeatherCode) {
			day.WeatherCode = codeOrUnknown(payload.Daily.WeatherCode[i])
		}
		snap.Daily = append(snap.Daily, day)
	}

	return snap
}

// codeOrUnknown maps an absent weather code to -1 so derived icon and
// description lookups land on the unknown bucket instead of "clear sky" (0).
func codeOrUnknown(code *int) int {
	if code == nil {
		return -1
	}
	return *code
}

// parseProviderTime parses the provider's local-time stamp. Open-Meteo emits
// "2006-01-02T15:04" without a zone; when parsing fails the fetch moment is
// used instead of failing the whole snapshot.
func parseProviderTime(s string, fallback time.Time) time.Time {
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

// parseProviderDate parses a daily-series date ("2006-01-02"). A zero time
// marks an unparseable date.
func parseProviderDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// strconv64 formats a coordinate with enough precision for the provider.
func strconv64(f float64) string {
	return fmt.Sprintf("%.4f", f)
}
