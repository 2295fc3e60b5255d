package forecasts

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Trend is a coarse classification of a metric's direction over the table.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// TrendSlopeThreshold is the absolute per-row slope beyond which a metric is
// no longer considered stable.
const TrendSlopeThreshold = 0.1

// UnknownCondition is reported as the dominant condition of an empty table.
const UnknownCondition = "Unknown"

// PatternSummary holds scalar statistics over a forecast table.
type PatternSummary struct {
	AvgTemperature    float64 `json:"avg_temperature"`
	TemperatureRange  float64 `json:"temp_range"`
	TemperatureTrend  Trend   `json:"temp_trend"`
	AvgHumidity       float64 `json:"avg_humidity"`
	HumidityTrend     Trend   `json:"humidity_trend"`
	AvgPressure       float64 `json:"avg_pressure"`
	PressureTrend     Trend   `json:"pressure_trend"`
	AvgWindSpeed      float64 `json:"avg_wind_speed"`
	MaxWindSpeed      float64 `json:"max_wind_speed"`
	DominantCondition string  `json:"dominant_weather"`
	Samples           int     `json:"samples"`
}

// DetectPatterns computes averages, ranges and trend classifications. An empty
// table yields zero values, stable trends and the Unknown condition.
func (p *Processor) DetectPatterns(t *Table) PatternSummary {
	summary := PatternSummary{
		TemperatureTrend:  TrendStable,
		HumidityTrend:     TrendStable,
		PressureTrend:     TrendStable,
		DominantCondition: UnknownCondition,
	}
	if t.Empty() {
		return summary
	}

	temperature, _ := t.Floats(ColTemperature)
	humidity, _ := t.Floats(ColHumidity)
	pressure, _ := t.Floats(ColPressure)
	wind, _ := t.Floats(ColWindSpeed)

	summary.Samples = t.Len()
	summary.AvgTemperature = stat.Mean(temperature, nil)
	summary.TemperatureRange = floats.Max(temperature) - floats.Min(temperature)
	summary.TemperatureTrend = ClassifyTrend(temperature)
	summary.AvgHumidity = stat.Mean(humidity, nil)
	summary.HumidityTrend = ClassifyTrend(humidity)
	summary.AvgPressure = stat.Mean(pressure, nil)
	summary.PressureTrend = ClassifyTrend(pressure)
	summary.AvgWindSpeed = stat.Mean(wind, nil)
	summary.MaxWindSpeed = floats.Max(wind)

	if conditions, ok := t.Strings(ColWeatherMain); ok {
		summary.DominantCondition = dominant(conditions)
	}
	return summary
}

// ClassifyTrend fits an ordinary least-squares line of values against their
// index and buckets the slope. Fewer than two values are stable.
func ClassifyTrend(values []float64) Trend {
	slope, ok := Slope(values)
	switch {
	case !ok:
		return TrendStable
	case slope > TrendSlopeThreshold:
		return TrendIncreasing
	case slope < -TrendSlopeThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// Slope returns the least-squares slope of values against 0..n-1.
func Slope(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	_, beta := stat.LinearRegression(x, values, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, false
	}
	return beta, true
}

// dominant returns the most frequent label, preferring the one seen first on
// ties.
func dominant(labels []string) string {
	if len(labels) == 0 {
		return UnknownCondition
	}
	counts := make(map[string]int, len(labels))
	best, bestCount := "", 0
	for _, l := range labels {
		counts[l]++
	}
	for _, l := range labels {
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best
}
