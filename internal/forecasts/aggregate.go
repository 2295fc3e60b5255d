package forecasts

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DailyAggregate summarizes every forecast slot that falls on one calendar date.
// All values are rounded to two decimals.
type DailyAggregate struct {
	Date               string  `json:"date"`
	TemperatureMin     float64 `json:"temperature_min"`
	TemperatureMax     float64 `json:"temperature_max"`
	TemperatureMean    float64 `json:"temperature_mean"`
	HumidityMean       float64 `json:"humidity_mean"`
	PressureMean       float64 `json:"pressure_mean"`
	WindSpeedMean      float64 `json:"wind_speed_mean"`
	Precipitation3hSum float64 `json:"precipitation_3h_sum"`
	CloudinessMean     float64 `json:"cloudiness_mean"`
}

// dayBucket collects the per-date series that feed one DailyAggregate.
type dayBucket struct {
	temperature []float64
	humidity    []float64
	pressure    []float64
	windSpeed   []float64
	precip      []float64
	cloudiness  []float64
}

// DailyAggregates groups the table by calendar date, ordered by date. An empty
// table yields an empty slice.
func (p *Processor) DailyAggregates(t *Table) []DailyAggregate {
	if t.Empty() {
		return []DailyAggregate{}
	}

	buckets := make(map[string]*dayBucket)
	var dates []string
	for _, r := range t.rows {
		b, ok := buckets[r.Date]
		if !ok {
			b = &dayBucket{}
			buckets[r.Date] = b
			dates = append(dates, r.Date)
		}
		b.temperature = append(b.temperature, r.Temperature)
		b.humidity = append(b.humidity, r.Humidity)
		b.pressure = append(b.pressure, r.Pressure)
		b.windSpeed = append(b.windSpeed, r.WindSpeed)
		b.precip = append(b.precip, r.Precipitation3h)
		b.cloudiness = append(b.cloudiness, r.Cloudiness)
	}
	slices.Sort(dates)

	out := make([]DailyAggregate, 0, len(dates))
	for _, date := range dates {
		b := buckets[date]
		out = append(out, DailyAggregate{
			Date:               date,
			TemperatureMin:     round2(floats.Min(b.temperature)),
			TemperatureMax:     round2(floats.Max(b.temperature)),
			TemperatureMean:    round2(stat.Mean(b.temperature, nil)),
			HumidityMean:       round2(stat.Mean(b.humidity, nil)),
			PressureMean:       round2(stat.Mean(b.pressure, nil)),
			WindSpeedMean:      round2(stat.Mean(b.windSpeed, nil)),
			Precipitation3hSum: round2(floats.Sum(b.precip)),
			CloudinessMean:     round2(stat.Mean(b.cloudiness, nil)),
		})
	}
	return out
}

// round2 rounds half to even at two decimals.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
