// Package config defines the configuration structure for the Skyline weather
// analytics service. Configuration is loaded once at process start and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct tag defaults (Lowest)
//
// Any invalid value causes LoadConfig to fail before the service starts.
package config

import (
	"time"

	"skyline/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used for the provider API key.
type SecretString = types.SecretString

// PlaceholderAPIKey is the default key shipped with the service. The provider
// rejects it, so an unconfigured deployment fails authentication loudly instead
// of silently using someone else's quota.
const PlaceholderAPIKey = "your_api_key_here"

// Config is the top-level configuration struct. Sub-components receive only the
// config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"skyline"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	Server        ServerConfig
	Weather       WeatherConfig
	Chart         ChartConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server and inbound traffic settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s" validate:"gt=0"`
	RateLimitRPS   float64       `envconfig:"RATE_LIMIT_RPS" default:"5" validate:"gte=0"`
	RateLimitBurst int           `envconfig:"RATE_LIMIT_BURST" default:"10" validate:"gte=1"`
	// TrustedProxyHops is the number of reverse proxies in front of the server
	// that append to X-Forwarded-For. Zero keys clients on the peer address.
	TrustedProxyHops int `envconfig:"TRUSTED_PROXY_HOPS" default:"0" validate:"gte=0,lte=10"`
}

// WeatherConfig holds the weather provider credentials and request shaping.
type WeatherConfig struct {
	APIKey           SecretString  `envconfig:"OPENWEATHERMAP_API_KEY" default:"your_api_key_here" validate:"required"`
	BaseURL          string        `envconfig:"OPENWEATHERMAP_BASE_URL" default:"https://api.openweathermap.org/data/2.5" validate:"required,url"`
	Timeout          time.Duration `envconfig:"WEATHER_HTTP_TIMEOUT" default:"10s" validate:"gt=0"`
	ValidateTimeout  time.Duration `envconfig:"WEATHER_VALIDATE_TIMEOUT" default:"5s" validate:"gt=0"`
	ValidateLocation string        `envconfig:"WEATHER_VALIDATE_LOCATION" default:"London" validate:"required"`
	ForecastDays     int           `envconfig:"FORECAST_DAYS" default:"5" validate:"min=1,max=5"`
	UserAgent        string        `envconfig:"WEATHER_USER_AGENT" default:"Skyline/1.0"`
	// Timezone is an IANA name or "Local". Forecast timestamps are rendered and
	// bucketed into dates in this zone.
	Timezone string `envconfig:"DISPLAY_TIMEZONE" default:"Local" validate:"required"`
}

// ChartConfig holds the immutable chart style applied by the renderer.
type ChartConfig struct {
	WidthInches  float64 `envconfig:"CHART_WIDTH_IN" default:"12" validate:"gt=0,lte=40"`
	HeightInches float64 `envconfig:"CHART_HEIGHT_IN" default:"6" validate:"gt=0,lte=40"`
	Format       string  `envconfig:"CHART_FORMAT" default:"png" validate:"oneof=png svg"`
}

// SecurityConfig holds CORS settings for the dashboard API.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings. CloudWatch metrics are only
// published when MetricsEnabled is true.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Skyline"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-east-1"`
	// HealthCheckKey adds a provider key probe to /health. Each probe spends
	// one provider call.
	HealthCheckKey bool `envconfig:"HEALTH_CHECK_KEY" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Location resolves the configured display timezone.
func (c WeatherConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// UsesPlaceholderKey reports whether the API key was left at its default.
func (c WeatherConfig) UsesPlaceholderKey() bool {
	return c.APIKey.Unmask() == PlaceholderAPIKey
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrTimezone indicates DISPLAY_TIMEZONE does not name a known zone.
	ErrTimezone ConfigErrorType = "TIMEZONE_INVALID"
)
