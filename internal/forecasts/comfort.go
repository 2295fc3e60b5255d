package forecasts

import (
	"math"
	"slices"
)

// Comfort weights and normalization bounds.
const (
	comfortTempWeight     = 0.5
	comfortHumidityWeight = 0.3
	comfortWindWeight     = 0.2

	comfortTempFloor     = 10.0 // °C scoring 0
	comfortTempSpan      = 25.0 // °C from floor to a full score
	comfortHumidityIdeal = 50.0 // % scoring 1
	comfortWindCeiling   = 20.0 // m/s scoring 0
)

// ComfortScore combines temperature (°C), relative humidity (%) and wind speed
// (m/s) into a 0..100 score. The humidity term is not clipped, so humidity far
// outside 0..100 can push the result below zero.
func ComfortScore(temperature, humidity, windSpeed float64) float64 {
	tempScore := clip((temperature-comfortTempFloor)/comfortTempSpan, 0, 1)
	humidityScore := 1 - math.Abs(humidity-comfortHumidityIdeal)/comfortHumidityIdeal
	windScore := clip(1-windSpeed/comfortWindCeiling, 0, 1)

	return (tempScore*comfortTempWeight +
		humidityScore*comfortHumidityWeight +
		windScore*comfortWindWeight) * 100
}

// ComfortIndex returns a copy of t with the comfort_index column appended.
// The source table is left untouched.
func (p *Processor) ComfortIndex(t *Table) *Table {
	if t == nil {
		return EmptyTable()
	}
	rows := slices.Clone(t.rows)
	for i := range rows {
		rows[i].ComfortIndex = ComfortScore(rows[i].Temperature, rows[i].Humidity, rows[i].WindSpeed)
	}
	out := t.derive(rows)
	if !out.HasColumn(ColComfortIndex) {
		out.columns = append(out.columns, ColComfortIndex)
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
