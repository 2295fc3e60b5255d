package charts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"skyline/internal/forecasts"
)

const paletteSize = 255

// colorBarShare is the fraction of the chart width given to a colour bar.
const colorBarShare = 0.12

// figure is a chart plot with an optional vertical colour bar to its right.
type figure struct {
	plot *plot.Plot
	bar  *plot.Plot
}

// Renderer draws charts from forecast tables. It holds only its Style and is
// safe for concurrent use.
type Renderer struct {
	style  Style
	logger *slog.Logger
}

// NewRenderer creates a Renderer bound to style.
func NewRenderer(style Style, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{style: style, logger: logger}
}

// Style returns the renderer's style.
func (r *Renderer) Style() Style {
	return r.style
}

// Render draws one chart. It returns ErrMissingColumn or ErrNoData, without an
// artifact, when the table cannot feed the chart.
func (r *Renderer) Render(c Chart, t *forecasts.Table) (a *Artifact, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			a, err = nil, fmt.Errorf("rendering %s: %v", c, rec)
		}
	}()

	var data []byte
	switch c {
	case ChartSummaryPanel:
		data, err = r.summaryPanel(t)
	default:
		var f figure
		f, err = r.build(c, t)
		if err != nil {
			return nil, err
		}
		data, err = r.encode(f)
	}
	if err != nil {
		return nil, err
	}
	return &Artifact{Chart: c, Format: r.style.format, Data: data}, nil
}

// RenderAll draws every chart concurrently, skipping charts whose columns are
// missing. Artifacts come back in AllCharts order.
func (r *Renderer) RenderAll(ctx context.Context, t *forecasts.Table) ([]Artifact, error) {
	if t.Empty() {
		return nil, ErrNoData
	}

	results := make([]*Artifact, len(AllCharts))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range AllCharts {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := r.Render(c, t)
			if errors.Is(err, ErrMissingColumn) || errors.Is(err, ErrNoData) {
				r.logger.Debug("skipping chart", "chart", string(c), "reason", err.Error())
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Artifact, 0, len(results))
	for _, a := range results {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *Renderer) build(c Chart, t *forecasts.Table) (figure, error) {
	var (
		p   *plot.Plot
		err error
	)
	switch c {
	case ChartTemperatureLine:
		p, err = r.temperatureLine(t)
	case ChartDailyRange:
		p, err = r.dailyRange(t)
	case ChartTempHumidityScatter:
		return r.tempHumidityScatter(t)
	case ChartCorrelation:
		return r.correlationHeatmap(t)
	case ChartWindRose:
		return r.windRose(t)
	case ChartHourlyHeatmap:
		return r.hourlyHeatmap(t)
	default:
		err = fmt.Errorf("unknown chart %q", c)
	}
	return figure{plot: p}, err
}

func (r *Renderer) encode(f figure) ([]byte, error) {
	w, h := r.style.Size()
	canvas, err := draw.NewFormattedCanvas(w, h, string(r.style.format))
	if err != nil {
		return nil, err
	}
	dc := draw.New(canvas)

	if f.bar == nil {
		f.plot.Draw(dc)
	} else {
		barWidth := vg.Length(float64(w) * colorBarShare)
		f.plot.Draw(draw.Crop(dc, 0, -barWidth, 0, 0))
		f.bar.Draw(draw.Crop(dc, w-barWidth, 0, 0, 0))
	}

	var buf bytes.Buffer
	if _, err := canvas.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// colorBar builds a vertical colour scale for cmap, labelled with the
// quantity the colours encode.
func colorBar(cmap palette.ColorMap, label string) *plot.Plot {
	p := plot.New()
	p.HideX()
	p.Y.Label.Text = label
	p.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})
	return p
}

func (r *Renderer) newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p
}

func (r *Renderer) grid() *plotter.Grid {
	g := plotter.NewGrid()
	g.Vertical.Color = r.style.gridColor
	g.Horizontal.Color = r.style.gridColor
	return g
}

func (r *Renderer) temperatureLine(t *forecasts.Table) (*plot.Plot, error) {
	temp, feels, err := TemperatureSeries(t)
	if err != nil {
		return nil, err
	}

	p := r.newPlot("Temperature Trend Over Time", "Date & Time", "Temperature (°C)")
	p.X.Tick.Marker = timeTicks(temp.Times, "01/02 15:04")

	line, points, err := plotter.NewLinePoints(seriesXYs(temp))
	if err != nil {
		return nil, err
	}
	line.LineStyle.Width = r.style.lineWidth
	line.LineStyle.Color = r.style.seriesColor(0)
	points.GlyphStyle.Color = r.style.seriesColor(0)
	points.GlyphStyle.Radius = vg.Points(1.5)

	feelsLine, err := plotter.NewLine(seriesXYs(feels))
	if err != nil {
		return nil, err
	}
	feelsLine.LineStyle.Width = r.style.lineWidth
	feelsLine.LineStyle.Color = r.style.seriesColor(1)
	feelsLine.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}

	p.Add(r.grid(), line, points, feelsLine)
	p.Legend.Add("Temperature", line, points)
	p.Legend.Add("Feels Like", feelsLine)
	p.Legend.Top = true
	return p, nil
}

func (r *Renderer) dailyRange(t *forecasts.Table) (*plot.Plot, error) {
	ranges, err := DailyRanges(t)
	if err != nil {
		return nil, err
	}

	mins := make(plotter.Values, len(ranges))
	maxs := make(plotter.Values, len(ranges))
	means := make(plotter.XYs, len(ranges))
	labels := make([]string, len(ranges))
	for i, d := range ranges {
		mins[i], maxs[i] = d.Min, d.Max
		means[i] = plotter.XY{X: float64(i), Y: d.Mean}
		labels[i] = d.Label
	}

	p := r.newPlot("Daily Temperature Range", "Date", "Temperature (°C)")
	width := vg.Points(18)

	minBars, err := plotter.NewBarChart(mins, width)
	if err != nil {
		return nil, err
	}
	minBars.Color = r.style.seriesColor(0)
	minBars.LineStyle.Width = 0
	minBars.Offset = -width / 2

	maxBars, err := plotter.NewBarChart(maxs, width)
	if err != nil {
		return nil, err
	}
	maxBars.Color = r.style.seriesColor(1)
	maxBars.LineStyle.Width = 0
	maxBars.Offset = width / 2

	meanMarks, err := plotter.NewScatter(means)
	if err != nil {
		return nil, err
	}
	meanMarks.GlyphStyle.Shape = draw.PlusGlyph{}
	meanMarks.GlyphStyle.Radius = vg.Points(4)

	minLabels, err := barLabels(mins, -width/2)
	if err != nil {
		return nil, err
	}
	maxLabels, err := barLabels(maxs, width/2)
	if err != nil {
		return nil, err
	}

	p.Add(r.grid(), minBars, maxBars, meanMarks, minLabels, maxLabels)
	p.Legend.Add("Min Temperature", minBars)
	p.Legend.Add("Max Temperature", maxBars)
	p.Legend.Add("Mean", meanMarks)
	p.Legend.Top = true
	p.NominalX(labels...)
	return p, nil
}

func barLabels(values plotter.Values, offset vg.Length) (*plotter.Labels, error) {
	xy := plotter.XYLabels{
		XYs:    make(plotter.XYs, len(values)),
		Labels: make([]string, len(values)),
	}
	for i, v := range values {
		xy.XYs[i] = plotter.XY{X: float64(i), Y: v}
		xy.Labels[i] = fmt.Sprintf("%.1f°C", v)
	}
	l, err := plotter.NewLabels(xy)
	if err != nil {
		return nil, err
	}
	l.Offset = vg.Point{X: offset}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = draw.XCenter
		l.TextStyle[i].YAlign = draw.YBottom
	}
	return l, nil
}

func (r *Renderer) tempHumidityScatter(t *forecasts.Table) (figure, error) {
	points, trend, err := TempHumidity(t)
	if err != nil {
		return figure{}, err
	}

	xy := make(plotter.XYs, len(points))
	pressure := make([]float64, len(points))
	for i, pt := range points {
		xy[i] = plotter.XY{X: pt.Temperature, Y: pt.Humidity}
		pressure[i] = pt.Pressure
	}

	cmap := moreland.Kindlmann()
	setRange(cmap, pressure)

	s, err := plotter.NewScatter(xy)
	if err != nil {
		return figure{}, err
	}
	glyph := draw.GlyphStyle{Shape: draw.CircleGlyph{}, Radius: vg.Points(4)}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		gs := glyph
		gs.Color = colorAt(cmap, pressure[i])
		return gs
	}

	p := r.newPlot("Temperature vs Humidity Relationship", "Temperature (°C)", "Humidity (%)")
	p.Add(r.grid(), s)

	if trend != nil {
		temps := make([]float64, len(points))
		for i, pt := range points {
			temps[i] = pt.Temperature
		}
		lo, hi := floats.Min(temps), floats.Max(temps)
		line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: trend.At(lo)}, {X: hi, Y: trend.At(hi)}})
		if err != nil {
			return figure{}, err
		}
		line.LineStyle.Width = r.style.lineWidth
		line.LineStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		p.Add(line)
		p.Legend.Add("Trend Line", line)
	}
	p.Legend.Top = true
	return figure{plot: p, bar: colorBar(cmap, "Pressure (hPa)")}, nil
}

// matrixGrid adapts a Matrix to plotter.GridXYZ.
type matrixGrid struct{ m *Matrix }

func (g matrixGrid) Dims() (c, r int)   { return len(g.m.Labels), len(g.m.Labels) }
func (g matrixGrid) Z(c, r int) float64 { return g.m.Values[r][c] }
func (g matrixGrid) X(c int) float64    { return float64(c) }
func (g matrixGrid) Y(r int) float64    { return float64(r) }

func (r *Renderer) correlationHeatmap(t *forecasts.Table) (figure, error) {
	m, err := CorrelationMatrix(t)
	if err != nil {
		return figure{}, err
	}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-1)
	cmap.SetMax(1)

	hm := plotter.NewHeatMap(matrixGrid{m}, cmap.Palette(paletteSize))
	hm.Min, hm.Max = -1, 1
	hm.NaN = color.Transparent

	annotations, err := gridLabels(matrixGrid{m}, "%.2f")
	if err != nil {
		return figure{}, err
	}

	p := r.newPlot("Weather Metrics Correlation Matrix", "", "")
	p.Add(hm, annotations)
	p.X.Tick.Marker = nominalTicks(m.Labels)
	p.Y.Tick.Marker = nominalTicks(m.Labels)
	return figure{plot: p, bar: colorBar(cmap, "Pearson correlation")}, nil
}

// pivotGrid adapts a Pivot to plotter.GridXYZ with days as columns.
type pivotGrid struct{ p *Pivot }

func (g pivotGrid) Dims() (c, r int)   { return len(g.p.Days), len(g.p.Hours) }
func (g pivotGrid) Z(c, r int) float64 { return g.p.Values[r][c] }
func (g pivotGrid) X(c int) float64    { return float64(c) }
func (g pivotGrid) Y(r int) float64    { return float64(r) }

func (r *Renderer) hourlyHeatmap(t *forecasts.Table) (figure, error) {
	pivot, err := HourlyPivot(t)
	if err != nil {
		return figure{}, err
	}

	var present []float64
	for _, row := range pivot.Values {
		for _, v := range row {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
	}
	if len(present) == 0 {
		return figure{}, ErrNoData
	}
	lo, hi := floats.Min(present), floats.Max(present)
	if lo == hi {
		hi = lo + 1
	}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(0)
	cmap.SetMax(1)

	grid := pivotGrid{pivot}
	hm := plotter.NewHeatMap(grid, cmap.Palette(paletteSize))
	hm.Min, hm.Max = lo, hi
	hm.NaN = color.Transparent

	annotations, err := gridLabels(grid, "%.1f")
	if err != nil {
		return figure{}, err
	}

	hours := make([]string, len(pivot.Hours))
	for i, h := range pivot.Hours {
		hours[i] = fmt.Sprintf("%02d", h)
	}

	p := r.newPlot("Hourly Temperature Patterns", "Date", "Hour of Day")
	p.Add(hm, annotations)
	p.X.Tick.Marker = nominalTicks(pivot.Days)
	p.Y.Tick.Marker = nominalTicks(hours)

	scale := moreland.SmoothBlueRed()
	scale.SetMin(lo)
	scale.SetMax(hi)
	return figure{plot: p, bar: colorBar(scale, "Mean temperature (°C)")}, nil
}

func (r *Renderer) windRose(t *forecasts.Table) (figure, error) {
	points, err := WindRose(t)
	if err != nil {
		return figure{}, err
	}

	xy := make(plotter.XYs, len(points))
	temps := make([]float64, len(points))
	radius := 0.0
	for i, pt := range points {
		xy[i] = plotter.XY{X: pt.X, Y: pt.Y}
		temps[i] = pt.Temperature
		radius = math.Max(radius, pt.Speed)
	}
	if radius == 0 {
		radius = 1
	}
	radius *= 1.1

	cmap := moreland.SmoothBlueRed()
	setRange(cmap, temps)

	s, err := plotter.NewScatter(xy)
	if err != nil {
		return figure{}, err
	}
	glyph := draw.GlyphStyle{Shape: draw.CircleGlyph{}, Radius: vg.Points(4)}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		gs := glyph
		gs.Color = colorAt(cmap, temps[i])
		return gs
	}

	p := r.newPlot("Wind Direction and Speed Distribution", "", "")
	for _, frac := range []float64{0.25, 0.5, 0.75, 1} {
		ring, err := plotter.NewLine(circle(radius * frac))
		if err != nil {
			return figure{}, err
		}
		ring.LineStyle.Color = r.style.gridColor
		p.Add(ring)
	}

	compass, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: 0, Y: radius}, {X: radius, Y: 0}, {X: 0, Y: -radius}, {X: -radius, Y: 0}},
		Labels: []string{"N", "E", "S", "W"},
	})
	if err != nil {
		return figure{}, err
	}
	for i := range compass.TextStyle {
		compass.TextStyle[i].XAlign = draw.XCenter
		compass.TextStyle[i].YAlign = draw.YCenter
	}

	p.Add(s, compass)
	p.X.Min, p.X.Max = -radius, radius
	p.Y.Min, p.Y.Max = -radius, radius
	p.X.Label.Text = "Wind speed (m/s), east-west"
	p.Y.Label.Text = "Wind speed (m/s), north-south"
	return figure{plot: p, bar: colorBar(cmap, "Temperature (°C)")}, nil
}

func circle(radius float64) plotter.XYs {
	const segments = 72
	xy := make(plotter.XYs, segments+1)
	for i := range xy {
		theta := 2 * math.Pi * float64(i) / segments
		xy[i] = plotter.XY{X: radius * math.Sin(theta), Y: radius * math.Cos(theta)}
	}
	return xy
}

func (r *Renderer) summaryPanel(t *forecasts.Table) ([]byte, error) {
	panels, err := SummaryPanels(t)
	if err != nil {
		return nil, err
	}

	const rows, cols = 2, 2
	plots := make([][]*plot.Plot, rows)
	for i := range plots {
		plots[i] = make([]*plot.Plot, cols)
	}
	for i, panel := range panels {
		p := r.newPlot(panel.Title, "", panel.YLabel)
		p.X.Tick.Marker = timeTicks(panel.Series.Times, "01/02")
		line, err := plotter.NewLine(seriesXYs(panel.Series))
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = r.style.lineWidth
		line.LineStyle.Color = r.style.seriesColor(i)
		p.Add(r.grid(), line)
		plots[i/cols][i%cols] = p
	}

	w, h := r.style.Size()
	h = h * 5 / 3
	canvas, err := draw.NewFormattedCanvas(w, h, string(r.style.format))
	if err != nil {
		return nil, err
	}
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 6,
		PadY:      vg.Millimeter * 6,
		PadTop:    vg.Millimeter * 3,
		PadBottom: vg.Millimeter * 3,
		PadLeft:   vg.Millimeter * 3,
		PadRight:  vg.Millimeter * 3,
	}
	canvases := plot.Align(plots, tiles, draw.New(canvas))
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	var buf bytes.Buffer
	if _, err := canvas.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func seriesXYs(s Series) plotter.XYs {
	xy := make(plotter.XYs, len(s.Values))
	for i, v := range s.Values {
		xy[i] = plotter.XY{X: float64(s.Times[i].Unix()), Y: v}
	}
	return xy
}

func timeTicks(times []time.Time, layout string) plot.TimeTicks {
	loc := time.Local
	if len(times) > 0 {
		loc = times[0].Location()
	}
	return plot.TimeTicks{Format: layout, Time: plot.UnixTimeIn(loc)}
}

func nominalTicks(labels []string) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(labels))
	for i, l := range labels {
		ticks[i] = plot.Tick{Value: float64(i), Label: l}
	}
	return ticks
}

// gridLabels annotates every non-NaN cell of g with its value.
func gridLabels(g plotter.GridXYZ, layout string) (*plotter.Labels, error) {
	c, r := g.Dims()
	var xy plotter.XYLabels
	for i := 0; i < c; i++ {
		for j := 0; j < r; j++ {
			z := g.Z(i, j)
			if math.IsNaN(z) {
				continue
			}
			xy.XYs = append(xy.XYs, plotter.XY{X: g.X(i), Y: g.Y(j)})
			xy.Labels = append(xy.Labels, fmt.Sprintf(layout, z))
		}
	}
	l, err := plotter.NewLabels(xy)
	if err != nil {
		return nil, err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = draw.XCenter
		l.TextStyle[i].YAlign = draw.YCenter
	}
	return l, nil
}

// setRange fits cmap to the span of values.
func setRange(cmap palette.ColorMap, values []float64) {
	lo, hi := floats.Min(values), floats.Max(values)
	if lo == hi {
		hi = lo + 1
	}
	cmap.SetMin(lo)
	cmap.SetMax(hi)
}

func colorAt(cmap palette.ColorMap, v float64) color.Color {
	c, err := cmap.At(v)
	if err != nil {
		return color.Black
	}
	return c
}
