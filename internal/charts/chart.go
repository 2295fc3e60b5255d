// Package charts shapes forecast tables into plot-ready data and renders
// them to PNG or SVG with gonum/plot.
package charts

import "strings"

// Chart names a renderable chart.
type Chart string

const (
	ChartTemperatureLine     Chart = "temperature_line"
	ChartDailyRange          Chart = "daily_range_bar"
	ChartTempHumidityScatter Chart = "temp_humidity_scatter"
	ChartCorrelation         Chart = "correlation_heatmap"
	ChartWindRose            Chart = "wind_rose"
	ChartHourlyHeatmap       Chart = "hourly_heatmap"
	ChartSummaryPanel        Chart = "summary_panel"
)

// AllCharts lists every chart in rendering order.
var AllCharts = []Chart{
	ChartTemperatureLine,
	ChartDailyRange,
	ChartTempHumidityScatter,
	ChartCorrelation,
	ChartWindRose,
	ChartHourlyHeatmap,
	ChartSummaryPanel,
}

// aliases are the short names offered by the chart selector.
var aliases = map[string]Chart{
	"line":    ChartTemperatureLine,
	"bar":     ChartDailyRange,
	"scatter": ChartTempHumidityScatter,
	"heatmap": ChartCorrelation,
	"wind":    ChartWindRose,
	"hourly":  ChartHourlyHeatmap,
	"summary": ChartSummaryPanel,
}

// ParseChart resolves a chart name or alias, case-insensitively.
func ParseChart(name string) (Chart, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := aliases[name]; ok {
		return c, true
	}
	for _, c := range AllCharts {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// Artifact is one rendered chart.
type Artifact struct {
	Chart  Chart
	Format Format
	Data   []byte
}

// FileName is the chart name with the format extension.
func (a Artifact) FileName() string {
	return string(a.Chart) + "." + string(a.Format)
}
