package charts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyline/internal/forecasts"
	"skyline/internal/types"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type sample struct {
	temp, hum, pres, wind, deg float64
}

// tableFrom builds a table of 3-hourly slots starting at midnight UTC.
func tableFrom(t *testing.T, samples ...sample) *forecasts.Table {
	t.Helper()
	payload := &types.ForecastPayload{}
	for i, s := range samples {
		payload.List = append(payload.List, types.ForecastEntry{
			Dt: ptr(start.Add(time.Duration(i) * 3 * time.Hour).Unix()),
			Main: &types.MainBlock{
				Temp:      ptr(s.temp),
				FeelsLike: ptr(s.temp - 1),
				TempMin:   ptr(s.temp - 1),
				TempMax:   ptr(s.temp + 1),
				Humidity:  ptr(s.hum),
				Pressure:  ptr(s.pres),
			},
			Wind:    &types.WindBlock{Speed: ptr(s.wind), Deg: ptr(s.deg)},
			Weather: []types.ConditionBlock{{Main: ptr("Clear"), Description: ptr("clear sky")}},
		})
	}
	p := forecasts.NewProcessor(time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	table := p.NormalizeForecast(payload)
	require.Equal(t, len(samples), table.Len())
	return table
}

func tenSlots(t *testing.T) *forecasts.Table {
	samples := make([]sample, 10)
	for i := range samples {
		samples[i] = sample{
			temp: 10 + float64(i),
			hum:  80 - 2*float64(i),
			pres: 1000 + float64(i%3),
			wind: float64(i % 4),
			deg:  float64(i * 45),
		}
	}
	return tableFrom(t, samples...)
}

func TestParseChart(t *testing.T) {
	tests := []struct {
		in   string
		want Chart
		ok   bool
	}{
		{"line", ChartTemperatureLine, true},
		{"BAR", ChartDailyRange, true},
		{" scatter ", ChartTempHumidityScatter, true},
		{"heatmap", ChartCorrelation, true},
		{"wind_rose", ChartWindRose, true},
		{"hourly_heatmap", ChartHourlyHeatmap, true},
		{"pie", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseChart(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDailyRanges(t *testing.T) {
	ranges, err := DailyRanges(tenSlots(t))
	require.NoError(t, err)
	require.Len(t, ranges, 2)

	assert.Equal(t, "03/01", ranges[0].Label)
	assert.Equal(t, 10.0, ranges[0].Min)
	assert.Equal(t, 17.0, ranges[0].Max)
	assert.Equal(t, 13.5, ranges[0].Mean)
	assert.Equal(t, "03/02", ranges[1].Label)
	assert.Equal(t, 18.0, ranges[1].Min)
	assert.Equal(t, 19.0, ranges[1].Max)
}

func TestTempHumidity_TrendLine(t *testing.T) {
	points, trend, err := TempHumidity(tenSlots(t))
	require.NoError(t, err)
	assert.Len(t, points, 10)
	require.NotNil(t, trend)
	assert.InDelta(t, -2.0, trend.Slope, 1e-9)
	assert.InDelta(t, 60.0, trend.At(20), 1e-9)
}

func TestTempHumidity_ConstantTemperatureHasNoTrend(t *testing.T) {
	_, trend, err := TempHumidity(tableFrom(t, sample{temp: 5, hum: 40}, sample{temp: 5, hum: 60}))
	require.NoError(t, err)
	assert.Nil(t, trend)
}

func TestCorrelationMatrix(t *testing.T) {
	m, err := CorrelationMatrix(tenSlots(t))
	require.NoError(t, err)
	require.Equal(t, CorrelationColumns, m.Labels)

	assert.InDelta(t, 1.0, m.Values[0][0], 1e-9)
	assert.InDelta(t, 1.0, m.Values[0][1], 1e-9, "feels_like tracks temperature")
	assert.InDelta(t, -1.0, m.Values[0][2], 1e-9, "humidity falls as temperature rises")
	assert.InDelta(t, m.Values[2][0], m.Values[0][2], 1e-12)
}

func TestWindRose_Projection(t *testing.T) {
	points, err := WindRose(tableFrom(t,
		sample{wind: 2, deg: 0},
		sample{wind: 3, deg: 90},
		sample{wind: 4, deg: 180},
	))
	require.NoError(t, err)

	assert.InDelta(t, 0, points[0].X, 1e-9)
	assert.InDelta(t, 2, points[0].Y, 1e-9)
	assert.InDelta(t, 3, points[1].X, 1e-9)
	assert.InDelta(t, 0, points[1].Y, 1e-9)
	assert.InDelta(t, -4, points[2].Y, 1e-9)
}

func TestWindRose_RequiresWindDirection(t *testing.T) {
	table := tenSlots(t).Without(forecasts.ColWindDirection)

	_, err := WindRose(table)
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = NewRenderer(DefaultStyle(), nil).Render(ChartWindRose, table)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestHourlyPivot(t *testing.T) {
	pivot, err := HourlyPivot(tenSlots(t))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3, 6, 9, 12, 15, 18, 21}, pivot.Hours)
	assert.Equal(t, []string{"03/01", "03/02"}, pivot.Days)
	assert.Equal(t, 10.0, pivot.Values[0][0])
	assert.Equal(t, 18.0, pivot.Values[0][1])
	assert.True(t, math.IsNaN(pivot.Values[2][1]), "no 06:00 slot on the second day")
}

func TestSummaryPanels(t *testing.T) {
	panels, err := SummaryPanels(tenSlots(t))
	require.NoError(t, err)
	assert.Equal(t, "Temperature Trend", panels[0].Title)
	assert.Equal(t, "Wind Speed (m/s)", panels[3].YLabel)
	assert.Len(t, panels[2].Series.Values, 10)
}

func TestShaping_EmptyTable(t *testing.T) {
	_, err := DailyRanges(forecasts.EmptyTable())
	assert.ErrorIs(t, err, ErrNoData)
	_, err = CorrelationMatrix(nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNewStyle(t *testing.T) {
	s, err := NewStyle(8, 4, "svg")
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, s.Format())
	assert.Equal(t, "image/svg+xml", s.Format().ContentType())

	_, err = NewStyle(0, 4, "png")
	assert.Error(t, err)
	_, err = NewStyle(8, 4, "gif")
	assert.Error(t, err)

	png := s.WithFormat(FormatPNG)
	assert.Equal(t, FormatPNG, png.Format())
	assert.Equal(t, FormatSVG, s.Format(), "WithFormat returns a copy")
}

func TestRender_PNGAndSVG(t *testing.T) {
	table := tenSlots(t)

	pngStyle, err := NewStyle(6, 3, "png")
	require.NoError(t, err)
	a, err := NewRenderer(pngStyle, nil).Render(ChartTemperatureLine, table)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(a.Data, []byte("\x89PNG")))
	assert.Equal(t, "temperature_line.png", a.FileName())

	svgStyle := pngStyle.WithFormat(FormatSVG)
	a, err = NewRenderer(svgStyle, nil).Render(ChartSummaryPanel, table)
	require.NoError(t, err)
	assert.Contains(t, string(a.Data), "<svg")
}

func TestRender_ColorScaleIsLabelled(t *testing.T) {
	style, err := NewStyle(8, 4, "svg")
	require.NoError(t, err)
	r := NewRenderer(style, nil)
	table := tenSlots(t)

	tests := []struct {
		chart Chart
		label string
	}{
		{ChartTempHumidityScatter, "Pressure (hPa)"},
		{ChartWindRose, "Temperature (°C)"},
		{ChartCorrelation, "Pearson correlation"},
		{ChartHourlyHeatmap, "Mean temperature (°C)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.chart), func(t *testing.T) {
			a, err := r.Render(tt.chart, table)
			require.NoError(t, err)
			assert.Contains(t, string(a.Data), tt.label)
		})
	}

	a, err := r.Render(ChartTemperatureLine, table)
	require.NoError(t, err)
	assert.NotContains(t, string(a.Data), "Pressure (hPa)")
}

func TestRenderAll_SkipsChartsWithMissingColumns(t *testing.T) {
	style, err := NewStyle(6, 3, "png")
	require.NoError(t, err)
	r := NewRenderer(style, nil)

	artifacts, err := r.RenderAll(context.Background(), tenSlots(t).Without(forecasts.ColWindDirection))
	require.NoError(t, err)
	require.Len(t, artifacts, len(AllCharts)-1)
	for i, a := range artifacts {
		assert.NotEqual(t, ChartWindRose, a.Chart)
		assert.NotEmpty(t, a.Data)
		if i > 0 {
			assert.NotEqual(t, artifacts[i-1].Chart, a.Chart)
		}
	}

	_, err = r.RenderAll(context.Background(), forecasts.EmptyTable())
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestWriteBundle(t *testing.T) {
	artifacts := []Artifact{
		{Chart: ChartTemperatureLine, Format: FormatPNG, Data: []byte("\x89PNG fake")},
		{Chart: ChartWindRose, Format: FormatSVG, Data: []byte("<svg></svg>")},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteBundle(&buf, artifacts, start))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "temperature_line.png", zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)
	assert.Equal(t, "wind_rose.svg", zr.File[1].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "<svg></svg>", string(body))

	assert.Equal(t, "weather_charts_Paris_20240301.zip", BundleFileName("Paris", start))
}
