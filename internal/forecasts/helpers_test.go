package forecasts

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skyline/internal/types"
)

// base is 2024-03-01 00:00:00 UTC.
var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestProcessor() *Processor {
	return NewProcessor(time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decodeForecast(t *testing.T, body string) *types.ForecastPayload {
	t.Helper()
	var payload types.ForecastPayload
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	return &payload
}

// slot describes one forecast row for table-building helpers.
type slot struct {
	offset      time.Duration
	temperature float64
	humidity    float64
	pressure    float64
	wind        float64
	condition   string
}

func tableOf(slots ...slot) *Table {
	rows := make([]ForecastRow, len(slots))
	for i, s := range slots {
		rows[i] = newRow(types.ForecastPoint{
			Time:        base.Add(s.offset),
			Temperature: s.temperature,
			FeelsLike:   s.temperature - 1,
			TempMin:     s.temperature - 2,
			TempMax:     s.temperature + 2,
			Humidity:    s.humidity,
			Pressure:    s.pressure,
			WindSpeed:   s.wind,
			Condition:   s.condition,
			Description: "desc",
		}, time.UTC)
	}
	return NewTable(rows)
}

// series builds n rows three hours apart with temperature, humidity and
// pressure taken from the supplied functions of the row index.
func series(n int, temp, hum, pres func(i int) float64) *Table {
	slots := make([]slot, n)
	for i := range slots {
		slots[i] = slot{
			offset:      time.Duration(i) * 3 * time.Hour,
			temperature: temp(i),
			humidity:    hum(i),
			pressure:    pres(i),
			condition:   "Clear",
		}
	}
	return tableOf(slots...)
}

func constant(v float64) func(int) float64 { return func(int) float64 { return v } }
