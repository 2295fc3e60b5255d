package types

import "time"

// TimestampLayout is the wall-clock format used for every user-facing
// timestamp: exports, CLI output and chart annotations.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the calendar-date format used for daily grouping.
const DateLayout = "2006-01-02"

// Raw provider payloads.
//
// Every field the provider may omit is a pointer so that normalization can tell
// an absent key apart from a legitimate zero value. Unknown keys are ignored.

// CurrentPayload is the body returned by the provider's /weather endpoint.
type CurrentPayload struct {
	Name       *string          `json:"name"`
	Dt         *int64           `json:"dt"`
	Sys        *SysBlock        `json:"sys"`
	Main       *MainBlock       `json:"main"`
	Wind       *WindBlock       `json:"wind"`
	Clouds     *CloudsBlock     `json:"clouds"`
	Weather    []ConditionBlock `json:"weather"`
	Visibility *float64         `json:"visibility"` // meters
}

// ForecastPayload is the body returned by the provider's /forecast endpoint.
// List is nil when the key is absent.
type ForecastPayload struct {
	Cnt  int             `json:"cnt"`
	List []ForecastEntry `json:"list"`
	City *CityBlock      `json:"city"`
}

// ForecastEntry is a single 3-hour slot of a ForecastPayload.
type ForecastEntry struct {
	Dt      *int64           `json:"dt"`
	Main    *MainBlock       `json:"main"`
	Wind    *WindBlock       `json:"wind"`
	Clouds  *CloudsBlock     `json:"clouds"`
	Weather []ConditionBlock `json:"weather"`
	Rain    *PrecipBlock     `json:"rain"`
	Snow    *PrecipBlock     `json:"snow"`
	DtTxt   string           `json:"dt_txt"`
}

// SysBlock holds country and solar times (unix seconds).
type SysBlock struct {
	Country *string `json:"country"`
	Sunrise *int64  `json:"sunrise"`
	Sunset  *int64  `json:"sunset"`
}

// MainBlock holds the thermodynamic readings. Temperatures are in Celsius
// because every request is issued with units=metric.
type MainBlock struct {
	Temp      *float64 `json:"temp"`
	FeelsLike *float64 `json:"feels_like"`
	TempMin   *float64 `json:"temp_min"`
	TempMax   *float64 `json:"temp_max"`
	Humidity  *float64 `json:"humidity"`
	Pressure  *float64 `json:"pressure"`
}

// WindBlock holds wind speed (m/s) and meteorological direction (degrees).
type WindBlock struct {
	Speed *float64 `json:"speed"`
	Deg   *float64 `json:"deg"`
}

// CloudsBlock holds cloudiness in percent.
type CloudsBlock struct {
	All *float64 `json:"all"`
}

// ConditionBlock is one entry of the provider's "weather" array.
type ConditionBlock struct {
	ID          int     `json:"id"`
	Main        *string `json:"main"`
	Description *string `json:"description"`
	Icon        string  `json:"icon"`
}

// PrecipBlock holds a precipitation total for the last 3 hours (mm).
type PrecipBlock struct {
	ThreeHour *float64 `json:"3h"`
}

// CityBlock describes the resolved forecast location.
type CityBlock struct {
	Name     string `json:"name"`
	Country  string `json:"country"`
	Timezone int    `json:"timezone"`
}

// CurrentObservation is the normalized snapshot of current conditions.
type CurrentObservation struct {
	Location      string    `json:"city"`
	Country       string    `json:"country"`
	ObservedAt    time.Time `json:"datetime"`
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feels_like"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	Cloudiness    float64   `json:"cloudiness"`
	Condition     string    `json:"weather_main"`
	Description   string    `json:"weather_description"`
	VisibilityKm  float64   `json:"visibility"`
	Sunrise       time.Time `json:"sunrise"`
	Sunset        time.Time `json:"sunset"`
}

// ForecastPoint is one normalized forecast slot.
type ForecastPoint struct {
	Time            time.Time `json:"datetime"`
	Temperature     float64   `json:"temperature"`
	FeelsLike       float64   `json:"feels_like"`
	TempMin         float64   `json:"temp_min"`
	TempMax         float64   `json:"temp_max"`
	Humidity        float64   `json:"humidity"`
	Pressure        float64   `json:"pressure"`
	WindSpeed       float64   `json:"wind_speed"`
	WindDirection   float64   `json:"wind_direction"`
	Cloudiness      float64   `json:"cloudiness"`
	Condition       string    `json:"weather_main"`
	Description     string    `json:"weather_description"`
	Precipitation3h float64   `json:"precipitation_3h"`
}
