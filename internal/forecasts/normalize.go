package forecasts

import (
	"fmt"
	"strings"
	"time"

	"skyline/internal/types"
)

// fieldReader extracts optional payload fields and remembers which required
// ones were absent.
type fieldReader struct {
	missing []string
}

func (f *fieldReader) float(v *float64, key string) float64 {
	if v == nil {
		f.missing = append(f.missing, key)
		return 0
	}
	return *v
}

func (f *fieldReader) unix(v *int64, key string) int64 {
	if v == nil {
		f.missing = append(f.missing, key)
		return 0
	}
	return *v
}

func (f *fieldReader) str(v *string, key string) string {
	if v == nil {
		f.missing = append(f.missing, key)
		return ""
	}
	return *v
}

// condition reads weather[0].main and weather[0].description.
func (f *fieldReader) condition(blocks []types.ConditionBlock) (main, description string) {
	if len(blocks) == 0 {
		f.missing = append(f.missing, "weather[0]")
		return "", ""
	}
	return f.str(blocks[0].Main, "weather[0].main"), f.str(blocks[0].Description, "weather[0].description")
}

func (f *fieldReader) err() error {
	if len(f.missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing key in weather data: %s", strings.Join(f.missing, ", "))
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func mainBlock(m *types.MainBlock) *types.MainBlock {
	if m == nil {
		return &types.MainBlock{}
	}
	return m
}

func windBlock(w *types.WindBlock) *types.WindBlock {
	if w == nil {
		return &types.WindBlock{}
	}
	return w
}

func cloudiness(c *types.CloudsBlock) float64 {
	if c == nil {
		return 0
	}
	return orZero(c.All)
}

func precip(b *types.PrecipBlock) float64 {
	if b == nil {
		return 0
	}
	return orZero(b.ThreeHour)
}

// NormalizeCurrent extracts a CurrentObservation from payload. It returns nil
// when the payload is nil or any required key is absent. Wind, clouds and
// visibility default to zero; visibility is converted from meters to km.
func (p *Processor) NormalizeCurrent(payload *types.CurrentPayload) *types.CurrentObservation {
	if payload == nil {
		return nil
	}

	var f fieldReader
	sys := payload.Sys
	if sys == nil {
		sys = &types.SysBlock{}
	}
	m := mainBlock(payload.Main)
	wind := windBlock(payload.Wind)
	condition, description := f.condition(payload.Weather)

	obs := &types.CurrentObservation{
		Location:      f.str(payload.Name, "name"),
		Country:       f.str(sys.Country, "sys.country"),
		ObservedAt:    p.timestamp(f.unix(payload.Dt, "dt")),
		Temperature:   f.float(m.Temp, "main.temp"),
		FeelsLike:     f.float(m.FeelsLike, "main.feels_like"),
		Humidity:      f.float(m.Humidity, "main.humidity"),
		Pressure:      f.float(m.Pressure, "main.pressure"),
		WindSpeed:     orZero(wind.Speed),
		WindDirection: orZero(wind.Deg),
		Cloudiness:    cloudiness(payload.Clouds),
		Condition:     condition,
		Description:   description,
		VisibilityKm:  orZero(payload.Visibility) / 1000,
		Sunrise:       p.timestamp(f.unix(sys.Sunrise, "sys.sunrise")),
		Sunset:        p.timestamp(f.unix(sys.Sunset, "sys.sunset")),
	}

	if err := f.err(); err != nil {
		p.logger.Warn("discarding current weather payload", "error", err)
		return nil
	}
	return obs
}

// NormalizeForecast converts every entry of payload into a table row, in the
// order the provider returned them. A nil payload or a missing or empty list
// yields an empty table. An entry missing a required key discards the whole
// payload, also yielding an empty table.
func (p *Processor) NormalizeForecast(payload *types.ForecastPayload) *Table {
	if payload == nil || len(payload.List) == 0 {
		return EmptyTable()
	}

	rows := make([]ForecastRow, 0, len(payload.List))
	for i, entry := range payload.List {
		point, err := p.forecastPoint(entry)
		if err != nil {
			p.logger.Warn("discarding forecast payload",
				"entry", i,
				"error", err,
			)
			return EmptyTable()
		}
		rows = append(rows, newRow(point, p.loc))
	}
	return NewTable(rows)
}

func (p *Processor) forecastPoint(entry types.ForecastEntry) (types.ForecastPoint, error) {
	var f fieldReader
	m := mainBlock(entry.Main)
	wind := windBlock(entry.Wind)
	condition, description := f.condition(entry.Weather)

	point := types.ForecastPoint{
		Time:            p.timestamp(f.unix(entry.Dt, "dt")),
		Temperature:     f.float(m.Temp, "main.temp"),
		FeelsLike:       f.float(m.FeelsLike, "main.feels_like"),
		TempMin:         f.float(m.TempMin, "main.temp_min"),
		TempMax:         f.float(m.TempMax, "main.temp_max"),
		Humidity:        f.float(m.Humidity, "main.humidity"),
		Pressure:        f.float(m.Pressure, "main.pressure"),
		WindSpeed:       orZero(wind.Speed),
		WindDirection:   orZero(wind.Deg),
		Cloudiness:      cloudiness(entry.Clouds),
		Condition:       condition,
		Description:     description,
		Precipitation3h: precip(entry.Rain) + precip(entry.Snow),
	}
	return point, f.err()
}

func (p *Processor) timestamp(unix int64) time.Time {
	return time.Unix(unix, 0).In(p.loc)
}
