package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv populates the minimum environment for a successful load.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://cw:cw@localhost:5432/cityweather")
	t.Setenv("PREFERENCE_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.Weather.APIEndpoint)
	assert.True(t, cfg.Weather.CacheEnabled)
	assert.Equal(t, 10*time.Second, cfg.Weather.FetchTimeout)
	assert.Equal(t, 5*time.Second, cfg.Weather.GeocodeTimeout)
	assert.Equal(t, 365*24*time.Hour, cfg.Preference.CookieTTL)
	assert.Equal(t, "cw_city", cfg.Preference.CookieName)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("WEATHER_CACHE_ENABLED", "false")
	t.Setenv("WEATHER_API_ENDPOINT", "https://weather.internal/v1/forecast")
	t.Setenv("WEATHER_API_KEY", "reserved-for-future-use")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.False(t, cfg.Weather.CacheEnabled)
	assert.Equal(t, "https://weather.internal/v1/forecast", cfg.Weather.APIEndpoint)
	assert.Equal(t, "reserved-for-future-use", cfg.Weather.APIKey)
}

func TestLoadConfig_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PREFERENCE_SIGNING_KEY", "0123456789abcdef0123456789abcdef")

	_, err := LoadConfig()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_ShortSigningKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://cw:cw@localhost:5432/cityweather")
	t.Setenv("PREFERENCE_SIGNING_KEY", "too-short")

	_, err := LoadConfig()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_InvalidEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "sandbox")

	_, err := LoadConfig()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrValidation, cfgErr.Type)
}
