package external

import (
	"time"

	"skyline/internal/types"
)

const absoluteZeroCelsius = 273.15

// KelvinToCelsius converts a Kelvin temperature to Celsius.
func KelvinToCelsius(k float64) float64 {
	return k - absoluteZeroCelsius
}

// KelvinToFahrenheit converts a Kelvin temperature to Fahrenheit.
func KelvinToFahrenheit(k float64) float64 {
	return (k-absoluteZeroCelsius)*9/5 + 32
}

// FormatTimestamp renders a unix timestamp as YYYY-MM-DD HH:MM:SS in loc.
// A nil loc means time.Local.
func FormatTimestamp(unix int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(unix, 0).In(loc).Format(types.TimestampLayout)
}
