package forecasts

import (
	"slices"
	"strconv"
	"time"

	"skyline/internal/types"
)

// Column names, in the table's natural order.
const (
	ColDatetime           = "datetime"
	ColTemperature        = "temperature"
	ColFeelsLike          = "feels_like"
	ColTempMin            = "temp_min"
	ColTempMax            = "temp_max"
	ColHumidity           = "humidity"
	ColPressure           = "pressure"
	ColWindSpeed          = "wind_speed"
	ColWindDirection      = "wind_direction"
	ColCloudiness         = "cloudiness"
	ColWeatherMain        = "weather_main"
	ColWeatherDescription = "weather_description"
	ColPrecipitation3h    = "precipitation_3h"
	ColDate               = "date"
	ColHour               = "hour"
	ColDayOfWeek          = "day_of_week"
	ColIsDaytime          = "is_daytime"
	ColComfortIndex       = "comfort_index"
)

// baseColumns is the column set every normalized forecast table starts with.
var baseColumns = []string{
	ColDatetime, ColTemperature, ColFeelsLike, ColTempMin, ColTempMax,
	ColHumidity, ColPressure, ColWindSpeed, ColWindDirection, ColCloudiness,
	ColWeatherMain, ColWeatherDescription, ColPrecipitation3h,
	ColDate, ColHour, ColDayOfWeek, ColIsDaytime,
}

// Daytime is the inclusive hour window treated as daytime.
const (
	DaytimeStartHour = 6
	DaytimeEndHour   = 18
)

// ForecastRow is one forecast slot plus the fields derived from its timestamp.
type ForecastRow struct {
	types.ForecastPoint
	Date         string
	Hour         int
	DayOfWeek    string
	IsDaytime    bool
	ComfortIndex float64
}

// newRow derives the calendar fields of p in loc.
func newRow(p types.ForecastPoint, loc *time.Location) ForecastRow {
	p.Time = p.Time.In(loc)
	hour := p.Time.Hour()
	return ForecastRow{
		ForecastPoint: p,
		Date:          p.Time.Format(types.DateLayout),
		Hour:          hour,
		DayOfWeek:     p.Time.Weekday().String(),
		IsDaytime:     hour >= DaytimeStartHour && hour <= DaytimeEndHour,
	}
}

type columnKind int

const (
	kindTime columnKind = iota
	kindFloat
	kindInt
	kindString
	kindBool
)

// columnSpec describes how a named column reads from a row.
type columnSpec struct {
	kind  columnKind
	float func(r *ForecastRow) float64
	str   func(r *ForecastRow) string
	flag  func(r *ForecastRow) bool
}

func (c columnSpec) numeric() bool {
	return c.kind == kindFloat || c.kind == kindInt
}

var columnSpecs = map[string]columnSpec{
	ColDatetime:           {kind: kindTime, str: func(r *ForecastRow) string { return r.Time.Format(types.TimestampLayout) }},
	ColTemperature:        {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.Temperature }},
	ColFeelsLike:          {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.FeelsLike }},
	ColTempMin:            {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.TempMin }},
	ColTempMax:            {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.TempMax }},
	ColHumidity:           {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.Humidity }},
	ColPressure:           {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.Pressure }},
	ColWindSpeed:          {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.WindSpeed }},
	ColWindDirection:      {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.WindDirection }},
	ColCloudiness:         {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.Cloudiness }},
	ColWeatherMain:        {kind: kindString, str: func(r *ForecastRow) string { return r.Condition }},
	ColWeatherDescription: {kind: kindString, str: func(r *ForecastRow) string { return r.Description }},
	ColPrecipitation3h:    {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.Precipitation3h }},
	ColDate:               {kind: kindString, str: func(r *ForecastRow) string { return r.Date }},
	ColHour:               {kind: kindInt, float: func(r *ForecastRow) float64 { return float64(r.Hour) }},
	ColDayOfWeek:          {kind: kindString, str: func(r *ForecastRow) string { return r.DayOfWeek }},
	ColIsDaytime:          {kind: kindBool, flag: func(r *ForecastRow) bool { return r.IsDaytime }},
	ColComfortIndex:       {kind: kindFloat, float: func(r *ForecastRow) float64 { return r.ComfortIndex }},
}

// Table is an ordered collection of forecast rows with an explicit column set.
// Rows keep the order the provider returned them in. A Table is never mutated
// after construction; every transformation returns a new one.
type Table struct {
	rows    []ForecastRow
	columns []string
}

// NewTable builds a table over rows with the base column set.
func NewTable(rows []ForecastRow) *Table {
	return &Table{
		rows:    slices.Clone(rows),
		columns: slices.Clone(baseColumns),
	}
}

// EmptyTable returns a table with no rows.
func EmptyTable() *Table {
	return NewTable(nil)
}

func (t *Table) derive(rows []ForecastRow) *Table {
	return &Table{rows: rows, columns: slices.Clone(t.columns)}
}

// Len returns the number of rows. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Rows returns a copy of the table's rows.
func (t *Table) Rows() []ForecastRow {
	if t == nil {
		return nil
	}
	return slices.Clone(t.rows)
}

// Columns returns the table's column names in order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.columns)
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	return slices.Contains(t.columns, name)
}

// Without returns a table with the named columns removed.
func (t *Table) Without(names ...string) *Table {
	if t == nil {
		return EmptyTable()
	}
	out := t.derive(slices.Clone(t.rows))
	out.columns = slices.DeleteFunc(out.columns, func(c string) bool {
		return slices.Contains(names, c)
	})
	return out
}

// Floats returns the values of a numeric column. ok is false when the column
// is absent or not numeric.
func (t *Table) Floats(name string) (values []float64, ok bool) {
	spec, found := columnSpecs[name]
	if !found || !spec.numeric() || !t.HasColumn(name) {
		return nil, false
	}
	values = make([]float64, len(t.rows))
	for i := range t.rows {
		values[i] = spec.float(&t.rows[i])
	}
	return values, true
}

// Strings returns the values of a text column (including datetime and date).
func (t *Table) Strings(name string) (values []string, ok bool) {
	spec, found := columnSpecs[name]
	if !found || spec.str == nil || !t.HasColumn(name) {
		return nil, false
	}
	values = make([]string, len(t.rows))
	for i := range t.rows {
		values[i] = spec.str(&t.rows[i])
	}
	return values, true
}

// Times returns the row timestamps, or false when the datetime column is absent.
func (t *Table) Times() ([]time.Time, bool) {
	if !t.HasColumn(ColDatetime) {
		return nil, false
	}
	out := make([]time.Time, len(t.rows))
	for i := range t.rows {
		out[i] = t.rows[i].Time
	}
	return out, true
}

// NumericColumns returns the numeric columns present, in table order.
func (t *Table) NumericColumns() []string {
	var out []string
	for _, c := range t.Columns() {
		if columnSpecs[c].numeric() {
			out = append(out, c)
		}
	}
	return out
}

// cell renders one value as CSV text.
func cell(spec columnSpec, r *ForecastRow) string {
	switch spec.kind {
	case kindFloat:
		return strconv.FormatFloat(spec.float(r), 'f', -1, 64)
	case kindInt:
		return strconv.Itoa(int(spec.float(r)))
	case kindBool:
		if spec.flag(r) {
			return "True"
		}
		return "False"
	default:
		return spec.str(r)
	}
}

// value returns one cell as a JSON-encodable value.
func value(spec columnSpec, r *ForecastRow) any {
	switch spec.kind {
	case kindFloat:
		return spec.float(r)
	case kindInt:
		return int(spec.float(r))
	case kindBool:
		return spec.flag(r)
	default:
		return spec.str(r)
	}
}
