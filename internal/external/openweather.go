package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"skyline/internal/types"
)

const (
	// DefaultBaseURL is the provider's v2.5 data API root.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// DefaultForecastDays is used when FetchForecast is called with days <= 0.
	DefaultForecastDays = 5

	// SlotsPerDay is the number of 3-hour forecast entries per day.
	SlotsPerDay = 8

	defaultTimeout          = 10 * time.Second
	defaultValidateTimeout  = 5 * time.Second
	defaultValidateLocation = "London"

	// maxPayloadBytes caps how much of a provider response is read.
	maxPayloadBytes = 4 << 20

	endpointCurrent  = "weather"
	endpointForecast = "forecast"
)

// FailureRecorder receives upstream failure outcomes for telemetry.
// Implementations should return quickly; they run on the request path.
type FailureRecorder interface {
	RecordUpstreamFailure(ctx context.Context, endpoint string, code types.ErrorCode)
}

// WeatherClientConfig carries the settings the weather client needs.
type WeatherClientConfig struct {
	BaseURL          string
	APIKey           types.SecretString
	Timeout          time.Duration
	ValidateTimeout  time.Duration
	ValidateLocation string
	UserAgent        string
}

// WeatherClientOption is a functional option for configuring a WeatherClient.
type WeatherClientOption func(*WeatherClient)

// WithHTTPClient overrides the underlying *http.Client. Intended for tests.
func WithHTTPClient(c *http.Client) WeatherClientOption {
	return func(wc *WeatherClient) {
		wc.httpClient = c
	}
}

// WithFailureRecorder reports every failed call to r.
func WithFailureRecorder(r FailureRecorder) WeatherClientOption {
	return func(wc *WeatherClient) {
		wc.recorder = r
	}
}

// WeatherClient issues read-only queries for current conditions and forecasts.
// It is stateless apart from its configuration and safe for concurrent use.
type WeatherClient struct {
	base             *BaseClient
	httpClient       *http.Client
	baseURL          string
	apiKey           types.SecretString
	validateTimeout  time.Duration
	validateLocation string
	recorder         FailureRecorder
	logger           *slog.Logger
}

// NewWeatherClient creates a WeatherClient. Zero-valued config fields fall back
// to the provider defaults (10s timeout, 5s validation probe against London).
func NewWeatherClient(cfg WeatherClientConfig, logger *slog.Logger, opts ...WeatherClientOption) *WeatherClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ValidateTimeout <= 0 {
		cfg.ValidateTimeout = defaultValidateTimeout
	}
	if cfg.ValidateLocation == "" {
		cfg.ValidateLocation = defaultValidateLocation
	}

	wc := &WeatherClient{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:           cfg.APIKey,
		validateTimeout:  cfg.ValidateTimeout,
		validateLocation: cfg.ValidateLocation,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(wc)
	}
	wc.base = NewBaseClient(wc.httpClient, cfg.Timeout, cfg.UserAgent)
	return wc
}

// FetchCurrent retrieves current conditions for location.
func (c *WeatherClient) FetchCurrent(ctx context.Context, location string) (*types.CurrentPayload, error) {
	var payload types.CurrentPayload
	if err := c.get(ctx, endpointCurrent, location, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchForecast retrieves days*8 three-hour forecast entries for location.
// days <= 0 requests the default five days.
func (c *WeatherClient) FetchForecast(ctx context.Context, location string, days int) (*types.ForecastPayload, error) {
	if days <= 0 {
		days = DefaultForecastDays
	}
	extra := url.Values{}
	extra.Set("cnt", strconv.Itoa(days*SlotsPerDay))

	var payload types.ForecastPayload
	if err := c.get(ctx, endpointForecast, location, extra, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchHistorical is unsupported: historical data requires a different
// provider plan. It never performs a network call.
func (c *WeatherClient) FetchHistorical(_ context.Context, location string, start, end time.Time) (*types.ForecastPayload, error) {
	return nil, types.NewAppErrorWithDetails(
		types.ErrCodeNotSupportedHistorical,
		"historical weather data requires a premium API plan",
		nil,
		map[string]any{
			"location": location,
			"start":    start.Format(time.RFC3339),
			"end":      end.Format(time.RFC3339),
		},
	)
}

// ValidateKey probes the provider with a fixed location and reports whether
// the configured API key authenticates. Every failure, including network
// errors, reports false.
func (c *WeatherClient) ValidateKey(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.validateTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, endpointCurrent, c.validateLocation, nil)
	if err != nil {
		return false
	}
	resp, err := c.base.Do(req)
	if err != nil {
		c.logger.Debug("api key probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))

	return resp.StatusCode == http.StatusOK
}

// get performs one GET against endpoint and decodes a 200 body into dst.
func (c *WeatherClient) get(ctx context.Context, endpoint, location string, extra url.Values, dst any) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return types.NewAppError(
			types.ErrCodeValidationInvalidLocation,
			"location must not be empty",
			nil,
		)
	}

	err := c.doGet(ctx, endpoint, location, extra, dst)
	if err != nil {
		code := types.CodeOf(err)
		c.logger.Warn("weather request failed",
			"endpoint", endpoint,
			"location", location,
			"code", string(code),
		)
		if c.recorder != nil {
			c.recorder.RecordUpstreamFailure(ctx, endpoint, code)
		}
	}
	return err
}

func (c *WeatherClient) doGet(ctx context.Context, endpoint, location string, extra url.Values, dst any) error {
	req, err := c.newRequest(ctx, endpoint, location, extra)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if appErr := mapStatus(resp.StatusCode, location); appErr != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		return appErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return mapTransportError(err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"unexpected error: malformed provider payload",
			err,
		)
	}
	return nil
}

func (c *WeatherClient) newRequest(ctx context.Context, endpoint, location string, extra url.Values) (*http.Request, error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey.Unmask())
	q.Set("units", "metric")
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+q.Encode(), nil)
}

// mapStatus translates a non-2xx provider status into the error taxonomy.
func mapStatus(status int, location string) *types.AppError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return types.NewAppError(
			types.ErrCodeUpstreamUnauthorized,
			"invalid API key; check the OpenWeatherMap API key",
			nil,
		)
	case status == http.StatusNotFound:
		return types.NewAppErrorWithDetails(
			types.ErrCodeNotFoundLocation,
			fmt.Sprintf("location '%s' not found; check the location name", location),
			nil,
			map[string]any{"location": location},
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamError,
			fmt.Sprintf("API request failed with status code: %d", status),
			nil,
			map[string]any{"status_code": status},
		)
	}
}
