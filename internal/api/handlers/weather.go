// Package handlers contains the HTTP handler implementations for the Skyline
// dashboard API.
//
// This file implements the weather handler. It covers:
//   - Current conditions (GET /v1/weather/current)
//   - Forecast rows with optional time filter and comfort index (GET /v1/weather/forecast)
//   - Daily aggregates, patterns and column statistics
//   - CSV and JSON downloads
//   - Chart images and the zipped chart bundle
//   - Historical data (always 501)
//   - The combined dashboard view (GET /v1/weather/dashboard)
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"skyline/internal/charts"
	"skyline/internal/core"
	"skyline/internal/forecasts"
	"skyline/internal/types"
)

// WeatherSource is the provider contract the handler needs. Satisfied by
// *external.WeatherClient.
type WeatherSource interface {
	FetchCurrent(ctx context.Context, location string) (*types.CurrentPayload, error)
	FetchForecast(ctx context.Context, location string, days int) (*types.ForecastPayload, error)
	FetchHistorical(ctx context.Context, location string, start, end time.Time) (*types.ForecastPayload, error)
}

// ForecastProcessor is the processing contract the handler needs. Satisfied
// by *forecasts.Processor.
type ForecastProcessor interface {
	Location() *time.Location
	NormalizeCurrent(payload *types.CurrentPayload) *types.CurrentObservation
	NormalizeForecast(payload *types.ForecastPayload) *forecasts.Table
	FilterByTimeRange(t *forecasts.Table, start, end time.Time) *forecasts.Table
	ComfortIndex(t *forecasts.Table) *forecasts.Table
	DailyAggregates(t *forecasts.Table) []forecasts.DailyAggregate
	DetectPatterns(t *forecasts.Table) forecasts.PatternSummary
	Summary(t *forecasts.Table) map[string]forecasts.ColumnStats
	ExportCSV(t *forecasts.Table) string
	ExportJSON(t *forecasts.Table) string
}

// forecastQuery holds the validated query parameters shared by the forecast
// endpoints.
type forecastQuery struct {
	Location string `query:"location" validate:"notblank,max=100"`
	Days     int    `query:"days" validate:"gte=0,lte=5"`
	Format   string `query:"format" validate:"omitempty,oneof=png svg"`
	Comfort  bool   `query:"comfort"`
	Start    time.Time
	End      time.Time
}

// WeatherHandler maps HTTP requests onto the fetch, process and render
// pipeline.
type WeatherHandler struct {
	source      WeatherSource
	processor   ForecastProcessor
	renderer    *charts.Renderer
	defaultDays int
	validator   *core.Validator
	logger      *slog.Logger
	now         func() time.Time
}

// NewWeatherHandler creates a new WeatherHandler with the provided
// dependencies. defaultDays applies when a request omits days.
func NewWeatherHandler(
	source WeatherSource,
	processor ForecastProcessor,
	renderer *charts.Renderer,
	defaultDays int,
	val *core.Validator,
	logger *slog.Logger,
) *WeatherHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherHandler{
		source:      source,
		processor:   processor,
		renderer:    renderer,
		defaultDays: defaultDays,
		validator:   val,
		logger:      logger,
		now:         time.Now,
	}
}

// RegisterRoutes mounts the weather endpoints onto the mux.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Get("/current", h.HandleCurrent)
	r.Get("/forecast", h.HandleForecast)
	r.Get("/daily", h.HandleDaily)
	r.Get("/patterns", h.HandlePatterns)
	r.Get("/summary", h.HandleSummary)
	r.Get("/export.csv", h.HandleExportCSV)
	r.Get("/export.json", h.HandleExportJSON)
	r.Get("/charts.zip", h.HandleChartBundle)
	r.Get("/charts/{chart}", h.HandleChart)
	r.Get("/historical", h.HandleHistorical)
	r.Get("/dashboard", h.HandleDashboard)
}

// HandleCurrent handles GET /v1/weather/current.
func (h *WeatherHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	current, err := h.current(r.Context(), q.Location)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, current)
}

// HandleForecast handles GET /v1/weather/forecast. Rows come back in provider
// order with the same keys as the JSON export.
func (h *WeatherHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	table, _, err := h.loadForecast(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, json.RawMessage(h.processor.ExportJSON(table)))
}

// HandleDaily handles GET /v1/weather/daily.
func (h *WeatherHandler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	table, _, err := h.loadForecast(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, h.processor.DailyAggregates(table))
}

// HandlePatterns handles GET /v1/weather/patterns.
func (h *WeatherHandler) HandlePatterns(w http.ResponseWriter, r *http.Request) {
	table, _, err := h.loadForecast(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, h.processor.DetectPatterns(table))
}

// HandleSummary handles GET /v1/weather/summary.
func (h *WeatherHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	table, _, err := h.loadForecast(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, h.processor.Summary(table))
}

// HandleExportCSV handles GET /v1/weather/export.csv.
func (h *WeatherHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	table, q, err := h.loadForecast(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	name := forecasts.ExportFileName(q.Location, h.today(), forecasts.FormatCSV)
	core.Attachment(w, "text/csv; charset=utf-8", name, []byte(h.processor.ExportCSV(table)))
}

// HandleExportJSON handles GET /v1/weather/export.json.
func (h *WeatherHandler) HandleExportJSON(w http.ResponseWriter, r *http.Request) {
	table, q, err := h.loadForecast(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	name := forecasts.ExportFileName(q.Location, h.today(), forecasts.FormatJSON)
	core.Attachment(w, "application/json", name, []byte(h.processor.ExportJSON(table)))
}

// HandleChart handles GET /v1/weather/charts/{chart}. The chart may be named
// by its full name or a short alias such as "line" or "heatmap".
func (h *WeatherHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	chart, ok := charts.ParseChart(chi.URLParam(r, "chart"))
	if !ok {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidChart,
			"unknown chart '"+chi.URLParam(r, "chart")+"'",
			nil,
			map[string]any{"available": availableCharts()},
		))
		return
	}

	table, q, err := h.loadForecast(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	artifact, err := h.rendererFor(q.Format).Render(chart, table)
	if err != nil {
		core.Error(w, r, h.renderError(chart, err))
		return
	}
	core.Attachment(w, artifact.Format.ContentType(), artifact.FileName(), artifact.Data)
}

// HandleChartBundle handles GET /v1/weather/charts.zip. Charts whose columns
// are missing are left out of the archive.
func (h *WeatherHandler) HandleChartBundle(w http.ResponseWriter, r *http.Request) {
	table, q, err := h.loadForecast(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	artifacts, err := h.rendererFor(q.Format).RenderAll(r.Context(), table)
	if err != nil {
		core.Error(w, r, h.renderError("", err))
		return
	}

	var buf bytes.Buffer
	today := h.today()
	if err := charts.WriteBundle(&buf, artifacts, today); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalRender, "failed to build chart bundle", err))
		return
	}
	core.Attachment(w, "application/zip", charts.BundleFileName(q.Location, today), buf.Bytes())
}

// HandleHistorical handles GET /v1/weather/historical. The provider tier does
// not offer history, so this always answers 501 once the query is valid.
func (h *WeatherHandler) HandleHistorical(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if _, err := h.source.FetchHistorical(r.Context(), q.Location, q.Start, q.End); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "historical source returned data unexpectedly", nil))
}

// dashboardView is the combined payload behind the dashboard page.
type dashboardView struct {
	Location string                     `json:"location"`
	Current  *types.CurrentObservation  `json:"current"`
	Patterns *forecasts.PatternSummary  `json:"patterns,omitempty"`
	Daily    []forecasts.DailyAggregate `json:"daily,omitempty"`
	Forecast json.RawMessage            `json:"forecast,omitempty"`
}

// HandleDashboard handles GET /v1/weather/dashboard. It fetches current
// conditions first and fails the request if they are unavailable. The
// forecast is fetched next; a forecast failure is reported in meta.warnings
// and the current conditions are still returned.
func (h *WeatherHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	current, err := h.current(r.Context(), q.Location)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	view := dashboardView{Location: q.Location, Current: current}

	table, err := h.forecastTable(r.Context(), q)
	if err != nil {
		h.logger.Warn("dashboard forecast unavailable",
			slog.String("location", q.Location),
			slog.String("code", string(types.CodeOf(err))),
		)
		core.Data(w, r, view, forecastWarning(err))
		return
	}

	patterns := h.processor.DetectPatterns(table)
	view.Patterns = &patterns
	view.Daily = h.processor.DailyAggregates(table)
	view.Forecast = json.RawMessage(h.processor.ExportJSON(table))
	core.Data(w, r, view)
}

func forecastWarning(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return "forecast unavailable: " + appErr.Message
	}
	return "forecast unavailable"
}

// current fetches and normalizes the current observation.
func (h *WeatherHandler) current(ctx context.Context, location string) (*types.CurrentObservation, error) {
	payload, err := h.source.FetchCurrent(ctx, location)
	if err != nil {
		return nil, err
	}
	obs := h.processor.NormalizeCurrent(payload)
	if obs == nil {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeEmptyResult,
			"current conditions could not be read from the provider response",
			nil,
			map[string]any{"location": location},
		)
	}
	return obs, nil
}

// loadForecast parses the request and runs the forecast pipeline.
func (h *WeatherHandler) loadForecast(r *http.Request) (*forecasts.Table, forecastQuery, error) {
	q, err := h.parseQuery(r)
	if err != nil {
		return nil, q, err
	}
	table, err := h.forecastTable(r.Context(), q)
	return table, q, err
}

// forecastTable fetches, normalizes, filters and optionally scores the
// forecast. An empty result is an error.
func (h *WeatherHandler) forecastTable(ctx context.Context, q forecastQuery) (*forecasts.Table, error) {
	payload, err := h.source.FetchForecast(ctx, q.Location, q.Days)
	if err != nil {
		return nil, err
	}

	table := h.processor.NormalizeForecast(payload)
	if !q.Start.IsZero() || !q.End.IsZero() {
		table = h.processor.FilterByTimeRange(table, q.Start, q.End)
	}
	if table.Empty() {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeEmptyResult,
			"no forecast data available for the requested location and time range",
			nil,
			map[string]any{"location": q.Location},
		)
	}
	if q.Comfort {
		table = h.processor.ComfortIndex(table)
	}
	return table, nil
}

// parseQuery reads and validates the shared query parameters.
func (h *WeatherHandler) parseQuery(r *http.Request) (forecastQuery, error) {
	values := r.URL.Query()
	q := forecastQuery{
		Location: strings.TrimSpace(values.Get("location")),
		Days:     h.defaultDays,
		Format:   strings.ToLower(values.Get("format")),
	}

	if s := values.Get("days"); s != "" {
		days, err := strconv.Atoi(s)
		if err != nil {
			return q, types.NewAppError(types.ErrCodeValidationInvalidDays, "days must be an integer from 0 to 5 (0 = configured default)", err)
		}
		if days != 0 {
			q.Days = days
		}
	}

	if s := values.Get("comfort"); s != "" {
		comfort, err := strconv.ParseBool(s)
		if err != nil {
			return q, types.NewAppError(types.ErrCodeValidationInvalidFormat, "comfort must be true or false", err)
		}
		q.Comfort = comfort
	}

	var err error
	if q.Start, err = h.parseTime(values.Get("start")); err != nil {
		return q, types.NewAppError(types.ErrCodeValidationTimeRange, "start must be RFC3339 or 'YYYY-MM-DD HH:MM:SS'", err)
	}
	if q.End, err = h.parseTime(values.Get("end")); err != nil {
		return q, types.NewAppError(types.ErrCodeValidationTimeRange, "end must be RFC3339 or 'YYYY-MM-DD HH:MM:SS'", err)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return q, types.NewAppError(types.ErrCodeValidationTimeRange, "end must not be before start", nil)
	}

	if err := h.validator.ValidateStruct(q); err != nil {
		return q, err
	}
	return q, nil
}

// parseTime accepts RFC3339 or the display layout in the processor's
// location. An empty string is the zero time.
func (h *WeatherHandler) parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(types.TimestampLayout, s, h.processor.Location())
}

// rendererFor returns a renderer for the requested format, or the configured
// one when the request does not name a format.
func (h *WeatherHandler) rendererFor(format string) *charts.Renderer {
	if format == "" || charts.Format(format) == h.renderer.Style().Format() {
		return h.renderer
	}
	return charts.NewRenderer(h.renderer.Style().WithFormat(charts.Format(format)), h.logger)
}

func (h *WeatherHandler) renderError(chart charts.Chart, err error) error {
	switch {
	case errors.Is(err, charts.ErrMissingColumn), errors.Is(err, charts.ErrNoData):
		return types.NewAppErrorWithDetails(
			types.ErrCodeEmptyResult,
			"the forecast cannot feed this chart",
			err,
			map[string]any{"chart": string(chart), "reason": err.Error()},
		)
	default:
		h.logger.Error("chart rendering failed",
			slog.String("chart", string(chart)),
			slog.String("error", err.Error()),
		)
		if chart == "" {
			return types.NewAppError(types.ErrCodeInternalRender, "failed to render charts", err)
		}
		return types.NewAppError(types.ErrCodeInternalRender, fmt.Sprintf("failed to render chart %s", chart), err)
	}
}

func (h *WeatherHandler) today() time.Time {
	return h.now().In(h.processor.Location())
}

func availableCharts() []string {
	names := make([]string, len(charts.AllCharts))
	for i, c := range charts.AllCharts {
		names[i] = string(c)
	}
	return names
}
