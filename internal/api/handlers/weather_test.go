package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyline/internal/charts"
	"skyline/internal/core"
	"skyline/internal/forecasts"
	"skyline/internal/types"
)

// --- Fakes ---

type fakeSource struct {
	current     *types.CurrentPayload
	currentErr  error
	forecast    *types.ForecastPayload
	forecastErr error

	gotDays     int
	gotLocation string
}

func (f *fakeSource) FetchCurrent(_ context.Context, location string) (*types.CurrentPayload, error) {
	f.gotLocation = location
	return f.current, f.currentErr
}

func (f *fakeSource) FetchForecast(_ context.Context, location string, days int) (*types.ForecastPayload, error) {
	f.gotLocation = location
	f.gotDays = days
	return f.forecast, f.forecastErr
}

func (f *fakeSource) FetchHistorical(_ context.Context, location string, start, end time.Time) (*types.ForecastPayload, error) {
	return nil, types.NewAppErrorWithDetails(types.ErrCodeNotSupportedHistorical,
		"historical data requires a paid subscription", nil,
		map[string]any{"location": location})
}

// countingProcessor wraps the real processor and counts every call.
type countingProcessor struct {
	*forecasts.Processor
	calls atomic.Int32
}

func (c *countingProcessor) NormalizeCurrent(p *types.CurrentPayload) *types.CurrentObservation {
	c.calls.Add(1)
	return c.Processor.NormalizeCurrent(p)
}

func (c *countingProcessor) NormalizeForecast(p *types.ForecastPayload) *forecasts.Table {
	c.calls.Add(1)
	return c.Processor.NormalizeForecast(p)
}

// --- Helpers ---

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func currentPayload(t *testing.T) *types.CurrentPayload {
	t.Helper()
	body := fmt.Sprintf(`{
		"name": "Paris", "dt": %d,
		"sys": {"country": "FR", "sunrise": %d, "sunset": %d},
		"main": {"temp": 12.5, "feels_like": 11.0, "humidity": 70, "pressure": 1012},
		"wind": {"speed": 3.2, "deg": 200},
		"clouds": {"all": 40},
		"visibility": 10000,
		"weather": [{"main": "Clouds", "description": "scattered clouds"}]
	}`, start.Unix(), start.Add(6*time.Hour).Unix(), start.Add(18*time.Hour).Unix())
	var p types.CurrentPayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return &p
}

// forecastPayload builds n 3-hourly slots starting at midnight UTC with
// temperatures rising by one degree per slot.
func forecastPayload(t *testing.T, n int) *types.ForecastPayload {
	t.Helper()
	entries := make([]string, n)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{
			"dt": %d,
			"main": {"temp": %d, "feels_like": %d, "temp_min": %d, "temp_max": %d, "humidity": %d, "pressure": 1010},
			"wind": {"speed": %d, "deg": %d},
			"clouds": {"all": 20},
			"weather": [{"main": "Clear", "description": "clear sky"}]
		}`, start.Add(time.Duration(i)*3*time.Hour).Unix(), 10+i, 9+i, 9+i, 11+i, 80-2*i, i%4, i*45)
	}
	var p types.ForecastPayload
	require.NoError(t, json.Unmarshal([]byte(`{"list":[`+strings.Join(entries, ",")+`]}`), &p))
	return &p
}

type fixture struct {
	source    *fakeSource
	processor *countingProcessor
	router    http.Handler
}

func newFixture(t *testing.T, source *fakeSource) *fixture {
	t.Helper()
	logger := discardLogger()
	proc := &countingProcessor{Processor: forecasts.NewProcessor(time.UTC, logger)}
	style, err := charts.NewStyle(6, 3, "png")
	require.NoError(t, err)

	h := NewWeatherHandler(source, proc, charts.NewRenderer(style, logger), 5, core.NewValidator(logger), logger)
	h.now = func() time.Time { return start.Add(10 * time.Hour) }

	r := chi.NewRouter()
	r.Route("/v1/weather", h.RegisterRoutes)
	return &fixture{source: source, processor: proc, router: r}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) *types.ResponseMeta {
	t.Helper()
	var resp struct {
		Data json.RawMessage     `json:"data"`
		Meta *types.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, dst))
	return resp.Meta
}

// --- Current ---

func TestHandleCurrent_Success(t *testing.T) {
	f := newFixture(t, &fakeSource{current: currentPayload(t)})

	rec := f.get(t, "/v1/weather/current?location=%20Paris%20")
	require.Equal(t, http.StatusOK, rec.Code)

	var obs types.CurrentObservation
	decodeData(t, rec, &obs)
	assert.Equal(t, "Paris", obs.Location)
	assert.Equal(t, "FR", obs.Country)
	assert.Equal(t, 10.0, obs.VisibilityKm)
	assert.Equal(t, "Paris", f.source.gotLocation, "location is trimmed")
}

func TestHandleCurrent_MissingLocation(t *testing.T) {
	f := newFixture(t, &fakeSource{})

	rec := f.get(t, "/v1/weather/current")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidLocation), decodeError(t, rec).Code)
	assert.Zero(t, f.processor.calls.Load())
}

func TestHandleCurrent_NotFoundNeverReachesProcessor(t *testing.T) {
	notFound := types.NewAppErrorWithDetails(types.ErrCodeNotFoundLocation,
		"location 'Atlantis' not found; check the location name", nil,
		map[string]any{"location": "Atlantis"})
	f := newFixture(t, &fakeSource{currentErr: notFound, forecastErr: notFound})

	for _, path := range []string{"current", "forecast", "dashboard"} {
		rec := f.get(t, "/v1/weather/"+path+"?location=Atlantis")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		detail := decodeError(t, rec)
		assert.Equal(t, string(types.ErrCodeNotFoundLocation), detail.Code)
		assert.Equal(t, "Atlantis", detail.Details["location"])
	}
	assert.Zero(t, f.processor.calls.Load(), "processor must not run after a provider failure")
}

func TestHandleCurrent_UnreadablePayload(t *testing.T) {
	f := newFixture(t, &fakeSource{current: &types.CurrentPayload{}})

	rec := f.get(t, "/v1/weather/current?location=Paris")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(types.ErrCodeEmptyResult), decodeError(t, rec).Code)
}

func TestHandleCurrent_UpstreamErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrCodeUpstreamUnauthorized, http.StatusBadGateway},
		{types.ErrCodeUpstreamTimeout, http.StatusGatewayTimeout},
		{types.ErrCodeUpstreamConnectionFailure, http.StatusBadGateway},
		{types.ErrCodeUpstreamError, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			f := newFixture(t, &fakeSource{currentErr: types.NewAppError(tt.code, "upstream failed", nil)})
			rec := f.get(t, "/v1/weather/current?location=Paris")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.code), decodeError(t, rec).Code)
		})
	}
}

// --- Forecast ---

func TestHandleForecast_Rows(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 4)})

	rec := f.get(t, "/v1/weather/forecast?location=Paris&days=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.source.gotDays)

	var rows []map[string]any
	decodeData(t, rec, &rows)
	require.Len(t, rows, 4)
	assert.Equal(t, "2024-03-01 00:00:00", rows[0]["datetime"])
	assert.Equal(t, 10.0, rows[0]["temperature"])
	assert.NotContains(t, rows[0], "comfort_index")
}

func TestHandleForecast_DefaultDays(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 2)})
	f.get(t, "/v1/weather/forecast?location=Paris")
	assert.Equal(t, 5, f.source.gotDays)
}

func TestHandleForecast_ComfortAndTimeFilter(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 8)})

	rec := f.get(t, "/v1/weather/forecast?location=Paris&comfort=true"+
		"&start=2024-03-01T06:00:00Z&end=2024-03-01%2012:00:00")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]any
	decodeData(t, rec, &rows)
	require.Len(t, rows, 3, "06:00, 09:00 and 12:00 are inclusive bounds")
	assert.Equal(t, "2024-03-01 06:00:00", rows[0]["datetime"])
	assert.Contains(t, rows[0], "comfort_index")
}

func TestHandleForecast_EmptyFilterResult(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 2)})

	rec := f.get(t, "/v1/weather/forecast?location=Paris&start=2030-01-01T00:00:00Z")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(types.ErrCodeEmptyResult), decodeError(t, rec).Code)
}

func TestHandleForecast_InvalidQuery(t *testing.T) {
	tests := []struct {
		query string
		code  types.ErrorCode
	}{
		{"location=Paris&days=abc", types.ErrCodeValidationInvalidDays},
		{"location=Paris&days=6", types.ErrCodeValidationInvalidDays},
		{"location=Paris&start=yesterday", types.ErrCodeValidationTimeRange},
		{"location=Paris&start=2024-03-02T00:00:00Z&end=2024-03-01T00:00:00Z", types.ErrCodeValidationTimeRange},
		{"location=Paris&comfort=maybe", types.ErrCodeValidationInvalidFormat},
		{"location=Paris&format=gif", types.ErrCodeValidationInvalidFormat},
		{"location=" + strings.Repeat("x", 101), types.ErrCodeValidationInvalidLocation},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 2)})
			rec := f.get(t, "/v1/weather/forecast?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.code), decodeError(t, rec).Code)
		})
	}
}

func TestHandleForecast_DaysMessageAllowsDefault(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 2)})
	rec := f.get(t, "/v1/weather/forecast?location=Paris&days=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "days must be an integer from 0 to 5 (0 = configured default)", decodeError(t, rec).Message)

	rec = f.get(t, "/v1/weather/forecast?location=Paris&days=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidDays), decodeError(t, rec).Code)
}

func TestHandleForecast_ZeroDaysUsesConfiguredDefault(t *testing.T) {
	source := &fakeSource{forecast: forecastPayload(t, 2)}
	logger := discardLogger()
	style, err := charts.NewStyle(6, 3, "png")
	require.NoError(t, err)
	h := NewWeatherHandler(source, forecasts.NewProcessor(time.UTC, logger), charts.NewRenderer(style, logger), 3, core.NewValidator(logger), logger)
	h.now = func() time.Time { return start.Add(10 * time.Hour) }
	r := chi.NewRouter()
	r.Route("/v1/weather", h.RegisterRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/weather/forecast?location=Paris&days=0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, source.gotDays)
}

func TestHandleForecast_MalformedEntryYieldsEmptyResult(t *testing.T) {
	payload := forecastPayload(t, 3)
	payload.List[1].Main.Humidity = nil
	f := newFixture(t, &fakeSource{forecast: payload})

	rec := f.get(t, "/v1/weather/forecast?location=Paris")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// --- Analytics ---

func TestHandleDaily(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 10)})

	rec := f.get(t, "/v1/weather/daily?location=Paris")
	require.Equal(t, http.StatusOK, rec.Code)

	var daily []forecasts.DailyAggregate
	decodeData(t, rec, &daily)
	require.Len(t, daily, 2)
	assert.Equal(t, "2024-03-01", daily[0].Date)
	assert.Equal(t, 10.0, daily[0].TemperatureMin)
	assert.Equal(t, 17.0, daily[0].TemperatureMax)
}

func TestHandlePatterns(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 6)})

	rec := f.get(t, "/v1/weather/patterns?location=Paris")
	require.Equal(t, http.StatusOK, rec.Code)

	var patterns forecasts.PatternSummary
	decodeData(t, rec, &patterns)
	assert.Equal(t, forecasts.TrendIncreasing, patterns.TemperatureTrend)
	assert.Equal(t, forecasts.TrendDecreasing, patterns.HumidityTrend)
	assert.Equal(t, forecasts.TrendStable, patterns.PressureTrend)
	assert.Equal(t, "Clear", patterns.DominantCondition)
	assert.Equal(t, 6, patterns.Samples)
}

func TestHandleSummary(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 5)})

	rec := f.get(t, "/v1/weather/summary?location=Paris")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary map[string]map[string]any
	decodeData(t, rec, &summary)
	require.Contains(t, summary, "temperature")
	assert.Equal(t, 5.0, summary["temperature"]["count"])
	assert.Equal(t, 12.0, summary["temperature"]["50%"])
	assert.NotContains(t, summary, "weather_main")
	assert.NotContains(t, summary, "is_daytime")
}

// --- Exports ---

func TestHandleExportCSV(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 2)})

	rec := f.get(t, "/v1/weather/export.csv?location=New%20York")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="weather_forecast_New York_20240301.csv"`, rec.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "datetime,temperature,feels_like"))
}

func TestHandleExportJSON_WithComfort(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 2)})

	rec := f.get(t, "/v1/weather/export.json?location=Paris&comfort=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=weather_forecast_Paris_20240301.json`, rec.Header().Get("Content-Disposition"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "comfort_index")
	assert.Contains(t, rec.Body.String(), "\n  {", "two-space indentation")
}

// --- Charts ---

func TestHandleChart_AliasAndFormat(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 10)})

	rec := f.get(t, "/v1/weather/charts/line?location=Paris")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = f.get(t, "/v1/weather/charts/correlation_heatmap?location=Paris&format=svg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "correlation_heatmap.svg")
}

func TestHandleChart_UnknownChart(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 2)})

	rec := f.get(t, "/v1/weather/charts/pie?location=Paris")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationInvalidChart), detail.Code)
	assert.Len(t, detail.Details["available"], len(charts.AllCharts))
}

func TestHandleChartBundle(t *testing.T) {
	f := newFixture(t, &fakeSource{forecast: forecastPayload(t, 10)})

	rec := f.get(t, "/v1/weather/charts.zip?location=Paris")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "weather_charts_Paris_20240301.zip")

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, len(charts.AllCharts))
	assert.Equal(t, "temperature_line.png", zr.File[0].Name)
}

// --- Historical ---

func TestHandleHistorical_NotSupported(t *testing.T) {
	f := newFixture(t, &fakeSource{})

	rec := f.get(t, "/v1/weather/historical?location=Paris&start=2024-01-01T00:00:00Z&end=2024-01-02T00:00:00Z")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotSupportedHistorical), decodeError(t, rec).Code)
}

// --- Dashboard ---

func TestHandleDashboard_Full(t *testing.T) {
	f := newFixture(t, &fakeSource{current: currentPayload(t), forecast: forecastPayload(t, 10)})

	rec := f.get(t, "/v1/weather/dashboard?location=Paris")
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Location string                     `json:"location"`
		Current  types.CurrentObservation   `json:"current"`
		Patterns forecasts.PatternSummary   `json:"patterns"`
		Daily    []forecasts.DailyAggregate `json:"daily"`
		Forecast []map[string]any           `json:"forecast"`
	}
	meta := decodeData(t, rec, &view)
	assert.Nil(t, meta)
	assert.Equal(t, "Paris", view.Current.Location)
	assert.Len(t, view.Daily, 2)
	assert.Len(t, view.Forecast, 10)
	assert.Equal(t, forecasts.TrendIncreasing, view.Patterns.TemperatureTrend)
}

func TestHandleDashboard_ForecastFailureIsWarning(t *testing.T) {
	f := newFixture(t, &fakeSource{
		current:     currentPayload(t),
		forecastErr: types.NewAppError(types.ErrCodeUpstreamTimeout, "request timed out", nil),
	})

	rec := f.get(t, "/v1/weather/dashboard?location=Paris")
	require.Equal(t, http.StatusOK, rec.Code)

	var view map[string]any
	meta := decodeData(t, rec, &view)
	require.NotNil(t, meta)
	assert.Equal(t, []string{"forecast unavailable: request timed out"}, meta.Warnings)
	assert.NotNil(t, view["current"])
	assert.NotContains(t, view, "forecast")
}

func TestHandleDashboard_CurrentFailureFailsRequest(t *testing.T) {
	f := newFixture(t, &fakeSource{
		currentErr: types.NewAppError(types.ErrCodeUpstreamUnauthorized, "invalid API key", nil),
		forecast:   forecastPayload(t, 2),
	})

	rec := f.get(t, "/v1/weather/dashboard?location=Paris")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, string(types.ErrCodeUpstreamUnauthorized), decodeError(t, rec).Code)
}
