package charts

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Format is an output image encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Style is the renderer's visual configuration. It is fixed at construction;
// use the With methods to derive a variant.
type Style struct {
	width     vg.Length
	height    vg.Length
	format    Format
	lineWidth vg.Length
	gridColor color.Color
}

// DefaultStyle is a 12x6 inch PNG.
func DefaultStyle() Style {
	return Style{
		width:     12 * vg.Inch,
		height:    6 * vg.Inch,
		format:    FormatPNG,
		lineWidth: vg.Points(2),
		gridColor: color.Gray{Y: 220},
	}
}

// NewStyle builds a style from inch dimensions and a format name.
func NewStyle(widthIn, heightIn float64, format string) (Style, error) {
	if widthIn <= 0 || heightIn <= 0 {
		return Style{}, fmt.Errorf("chart size must be positive, got %gx%g in", widthIn, heightIn)
	}
	f := Format(format)
	if f != FormatPNG && f != FormatSVG {
		return Style{}, fmt.Errorf("unsupported chart format %q", format)
	}
	s := DefaultStyle()
	s.width = vg.Length(widthIn) * vg.Inch
	s.height = vg.Length(heightIn) * vg.Inch
	s.format = f
	return s, nil
}

// WithFormat returns a copy of s that encodes to f.
func (s Style) WithFormat(f Format) Style {
	s.format = f
	return s
}

// Format returns the output encoding.
func (s Style) Format() Format { return s.format }

// Size returns the canvas width and height.
func (s Style) Size() (vg.Length, vg.Length) { return s.width, s.height }

// seriesColor returns the i-th palette color.
func (s Style) seriesColor(i int) color.Color {
	return plotutil.Color(i)
}
