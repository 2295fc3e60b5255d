package charts

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"skyline/internal/forecasts"
)

var (
	// ErrMissingColumn is returned when a chart's required column is absent.
	ErrMissingColumn = errors.New("required column missing")

	// ErrNoData is returned when there are no rows to plot.
	ErrNoData = errors.New("no data to plot")
)

// CorrelationColumns are the metrics compared by the correlation heatmap.
var CorrelationColumns = []string{
	forecasts.ColTemperature,
	forecasts.ColFeelsLike,
	forecasts.ColHumidity,
	forecasts.ColPressure,
	forecasts.ColWindSpeed,
}

// Series is a single metric over time.
type Series struct {
	Times  []time.Time
	Values []float64
}

// floatsOf reads every named numeric column, failing on the first absent one.
func floatsOf(t *forecasts.Table, names ...string) ([][]float64, error) {
	if t.Empty() {
		return nil, ErrNoData
	}
	out := make([][]float64, len(names))
	for i, name := range names {
		values, ok := t.Floats(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		out[i] = values
	}
	return out, nil
}

func seriesOf(t *forecasts.Table, names ...string) ([]Series, error) {
	cols, err := floatsOf(t, names...)
	if err != nil {
		return nil, err
	}
	times, ok := t.Times()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, forecasts.ColDatetime)
	}
	out := make([]Series, len(cols))
	for i, values := range cols {
		out[i] = Series{Times: times, Values: values}
	}
	return out, nil
}

// TemperatureSeries returns the temperature and feels-like series.
func TemperatureSeries(t *forecasts.Table) (temperature, feelsLike Series, err error) {
	s, err := seriesOf(t, forecasts.ColTemperature, forecasts.ColFeelsLike)
	if err != nil {
		return Series{}, Series{}, err
	}
	return s[0], s[1], nil
}

// DailyRange is one bar group of the daily range chart.
type DailyRange struct {
	Label string // MM/DD
	Min   float64
	Max   float64
	Mean  float64
}

// DailyRanges groups temperatures by calendar date, ordered by date, rounding
// to one decimal.
func DailyRanges(t *forecasts.Table) ([]DailyRange, error) {
	cols, err := floatsOf(t, forecasts.ColTemperature)
	if err != nil {
		return nil, err
	}
	dates, ok := t.Strings(forecasts.ColDate)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, forecasts.ColDate)
	}

	groups := make(map[string][]float64)
	for i, d := range dates {
		groups[d] = append(groups[d], cols[0][i])
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]DailyRange, len(keys))
	for i, k := range keys {
		v := groups[k]
		out[i] = DailyRange{
			Label: monthDay(k),
			Min:   round1(floats.Min(v)),
			Max:   round1(floats.Max(v)),
			Mean:  round1(stat.Mean(v, nil)),
		}
	}
	return out, nil
}

// ScatterPoint is one temperature/humidity observation colored by pressure.
type ScatterPoint struct {
	Temperature float64
	Humidity    float64
	Pressure    float64
}

// TrendLine is a least-squares fit y = Intercept + Slope*x.
type TrendLine struct {
	Intercept float64
	Slope     float64
}

// At evaluates the line at x.
func (l TrendLine) At(x float64) float64 {
	return l.Intercept + l.Slope*x
}

// TempHumidity returns the scatter points and the humidity-on-temperature
// trend line. The line is nil when it cannot be fitted (fewer than two
// points or constant temperature).
func TempHumidity(t *forecasts.Table) ([]ScatterPoint, *TrendLine, error) {
	cols, err := floatsOf(t, forecasts.ColTemperature, forecasts.ColHumidity, forecasts.ColPressure)
	if err != nil {
		return nil, nil, err
	}
	temp, hum, pres := cols[0], cols[1], cols[2]

	points := make([]ScatterPoint, len(temp))
	for i := range temp {
		points[i] = ScatterPoint{Temperature: temp[i], Humidity: hum[i], Pressure: pres[i]}
	}

	if len(temp) < 2 || floats.Min(temp) == floats.Max(temp) {
		return points, nil, nil
	}
	alpha, beta := stat.LinearRegression(temp, hum, nil, false)
	return points, &TrendLine{Intercept: alpha, Slope: beta}, nil
}

// Matrix is a labelled square matrix.
type Matrix struct {
	Labels []string
	Values [][]float64
}

// CorrelationMatrix computes Pearson correlations between CorrelationColumns.
// Pairs involving a constant column are NaN.
func CorrelationMatrix(t *forecasts.Table) (*Matrix, error) {
	cols, err := floatsOf(t, CorrelationColumns...)
	if err != nil {
		return nil, err
	}

	n := len(cols)
	m := &Matrix{Labels: slices.Clone(CorrelationColumns), Values: make([][]float64, n)}
	for i := 0; i < n; i++ {
		m.Values[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			m.Values[i][j] = correlation(cols[i], cols[j])
		}
	}
	return m, nil
}

func correlation(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// WindPoint is a wind observation projected onto a compass plane: north is
// +Y and bearings increase clockwise.
type WindPoint struct {
	X           float64
	Y           float64
	Speed       float64
	Direction   float64
	Temperature float64
}

// WindRose projects wind speed and direction into polar coordinates.
func WindRose(t *forecasts.Table) ([]WindPoint, error) {
	cols, err := floatsOf(t, forecasts.ColWindDirection, forecasts.ColWindSpeed, forecasts.ColTemperature)
	if err != nil {
		return nil, err
	}
	dir, speed, temp := cols[0], cols[1], cols[2]

	out := make([]WindPoint, len(dir))
	for i := range dir {
		theta := dir[i] * math.Pi / 180
		out[i] = WindPoint{
			X:           speed[i] * math.Sin(theta),
			Y:           speed[i] * math.Cos(theta),
			Speed:       speed[i],
			Direction:   dir[i],
			Temperature: temp[i],
		}
	}
	return out, nil
}

// Pivot is an hour-by-day grid of mean temperatures. Values[h][d] is NaN
// when no slot falls on that hour and day.
type Pivot struct {
	Hours  []int
	Days   []string // MM/DD
	Values [][]float64
}

// HourlyPivot pivots mean temperature by hour of day (rows) and date (columns).
func HourlyPivot(t *forecasts.Table) (*Pivot, error) {
	cols, err := floatsOf(t, forecasts.ColTemperature, forecasts.ColHour)
	if err != nil {
		return nil, err
	}
	dates, ok := t.Strings(forecasts.ColDate)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, forecasts.ColDate)
	}
	temp, hours := cols[0], cols[1]

	type cellKey struct {
		hour int
		date string
	}
	sums := make(map[cellKey][]float64)
	var hourSet []int
	var dateSet []string
	for i := range temp {
		k := cellKey{hour: int(hours[i]), date: dates[i]}
		sums[k] = append(sums[k], temp[i])
		if !slices.Contains(hourSet, k.hour) {
			hourSet = append(hourSet, k.hour)
		}
		if !slices.Contains(dateSet, k.date) {
			dateSet = append(dateSet, k.date)
		}
	}
	slices.Sort(hourSet)
	slices.Sort(dateSet)

	p := &Pivot{Hours: hourSet, Days: make([]string, len(dateSet)), Values: make([][]float64, len(hourSet))}
	for d, date := range dateSet {
		p.Days[d] = monthDay(date)
	}
	for h, hour := range hourSet {
		p.Values[h] = make([]float64, len(dateSet))
		for d, date := range dateSet {
			if v, ok := sums[cellKey{hour, date}]; ok {
				p.Values[h][d] = stat.Mean(v, nil)
			} else {
				p.Values[h][d] = math.NaN()
			}
		}
	}
	return p, nil
}

// Panel is one tile of the summary chart.
type Panel struct {
	Title  string
	YLabel string
	Series Series
}

// SummaryPanels returns temperature, humidity, pressure and wind speed as four
// independent time series.
func SummaryPanels(t *forecasts.Table) ([4]Panel, error) {
	s, err := seriesOf(t,
		forecasts.ColTemperature,
		forecasts.ColHumidity,
		forecasts.ColPressure,
		forecasts.ColWindSpeed,
	)
	if err != nil {
		return [4]Panel{}, err
	}
	return [4]Panel{
		{Title: "Temperature Trend", YLabel: "Temperature (°C)", Series: s[0]},
		{Title: "Humidity Trend", YLabel: "Humidity (%)", Series: s[1]},
		{Title: "Pressure Trend", YLabel: "Pressure (hPa)", Series: s[2]},
		{Title: "Wind Speed Trend", YLabel: "Wind Speed (m/s)", Series: s[3]},
	}, nil
}

// monthDay turns YYYY-MM-DD into MM/DD.
func monthDay(date string) string {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return date
	}
	return parts[1] + "/" + parts[2]
}

func round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}
