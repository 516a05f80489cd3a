package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cityweather/internal/types"
)

// GeocodeMatch is one candidate returned by a place-name search. It carries
// just enough for the admin form to populate a city's coordinates.
type GeocodeMatch struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// geocodeMaxResults bounds a single search response.
const geocodeMaxResults = 10

// Geocoder resolves place names to coordinates via the Open-Meteo geocoding
// API. It is a collaborator of the admin city form, not of the weather path,
// and uses a shorter timeout than the forecast client: an admin typing a city
// name should get feedback quickly or not at all.
type Geocoder struct {
	base     *BaseClient
	endpoint string
}

// NewGeocoder creates a geocoding client. When httpClient is nil, a client
// with the given timeout is constructed (5s recommended).
func NewGeocoder(endpoint string, timeout time.Duration, httpClient *http.Client) *Geocoder {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Geocoder{
		base:     NewBaseClient(httpClient, "open-meteo-geocoding", DefaultRetryPolicy(), userAgent),
		endpoint: endpoint,
	}
}

// Search returns up to ten coordinate candidates for a place name.
func (g *Geocoder) Search(ctx context.Context, name string) ([]GeocodeMatch, error) {
	values := url.Values{}
	values.Set("name", name)
	values.Set("count", fmt.Sprintf("%d", geocodeMaxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGeocode, "building geocoding request", err)
	}

	resp, err := g.base.Do(req)
	if err != nil {
		return nil, asGeocodeError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamGeocode,
			fmt.Sprintf("geocoding API returned status %d", resp.StatusCode),
			nil,
		)
	}

	var payload struct {
		Results []GeocodeMatch `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGeocode, "decoding geocoding response", err)
	}

	return payload.Results, nil
}

// asGeocodeError rewrites the BaseClient's generic upstream code to the
// geocoding-specific one, preserving the error chain.
func asGeocodeError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamWeather {
		return types.NewAppError(types.ErrCodeUpstreamGeocode, appErr.Message, appErr.Err)
	}
	return err
}
