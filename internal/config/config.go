// Package config defines the global configuration structure for the
// cityweather service. Configuration is loaded once at process initialization
// and is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import "time"

// Config is the top-level configuration struct for the cityweather service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"cityweather"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server     ServerConfig
	Database   DatabaseConfig
	Weather    WeatherConfig
	Preference PreferenceConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WeatherConfig holds upstream weather provider settings.
//
// APIKey is accepted and stored for forward compatibility: the current
// provider does not require one, but the field is plumbed through so that
// switching to a keyed plan needs no code change.
type WeatherConfig struct {
	APIEndpoint     string        `envconfig:"WEATHER_API_ENDPOINT" default:"https://api.open-meteo.com/v1/forecast" validate:"required,url"`
	GeocodeEndpoint string        `envconfig:"GEOCODE_API_ENDPOINT" default:"https://geocoding-api.open-meteo.com/v1/search" validate:"required,url"`
	APIKey          string        `envconfig:"WEATHER_API_KEY"`
	CacheEnabled    bool          `envconfig:"WEATHER_CACHE_ENABLED" default:"true"`
	FetchTimeout    time.Duration `envconfig:"WEATHER_FETCH_TIMEOUT" default:"10s"`
	GeocodeTimeout  time.Duration `envconfig:"GEOCODE_TIMEOUT" default:"5s"`
}

// PreferenceConfig holds visitor preference storage settings.
type PreferenceConfig struct {
	// CookieName is the name of the anonymous preference cookie.
	CookieName string `envconfig:"PREFERENCE_COOKIE_NAME" default:"cw_city"`
	// CookieTTL is the lifetime of the anonymous preference cookie.
	CookieTTL time.Duration `envconfig:"PREFERENCE_COOKIE_TTL" default:"8760h"` // 1 year
	// SigningKey protects the anonymous cookie against tampering.
	SigningKey string `envconfig:"PREFERENCE_SIGNING_KEY" validate:"required,min=32"`
	// CookieSecure controls the Secure attribute on the preference cookie.
	CookieSecure bool `envconfig:"PREFERENCE_COOKIE_SECURE" default:"true"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
