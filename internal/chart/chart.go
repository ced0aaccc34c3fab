// Package chart rasterises aggregated series into PNG charts with
// acceptable-range reference lines.
package chart

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"facility-reports/internal/report"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 400

	maxXTicks = 12
	barWidth  = 0.7
)

// Palette is cycled through for series without an explicit color.
var Palette = []string{"#1f77b4", "#2ca02c", "#ff7f0e", "#9467bd", "#17becf", "#8c564b", "#e377c2", "#7f7f7f"}

// PaletteColor returns the palette entry for the i-th series.
func PaletteColor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

var (
	referenceColor = drawing.ColorFromHex("d62728")
	referenceDash  = []float64{6, 4}
)

// Options controls the canvas and default look of rendered charts.
type Options struct {
	Width  int
	Height int
	Kind   report.ChartKind
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if _, ok := report.ValidChartKinds[o.Kind]; !ok {
		o.Kind = report.ChartLine
	}
	return o
}

// Title combines parameter name and unit.
func Title(s report.ChartSeries) string {
	name := s.ParameterName
	if name == "" {
		name = s.MonitoringPointID
	}
	if s.Unit == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, s.Unit)
}

// Render draws one series as a PNG. An empty kind uses the default from opts.
// Output is deterministic for identical input.
func Render(s report.ChartSeries, kind report.ChartKind, opts Options) (img []byte, err error) {
	opts = opts.withDefaults()
	if _, ok := report.ValidChartKinds[kind]; !ok {
		kind = opts.Kind
	}

	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("render chart %s: %v", s.MonitoringPointID, r)
		}
	}()

	graph := build(s, kind, opts)
	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart %s: %w", s.MonitoringPointID, err)
	}
	return buf.Bytes(), nil
}

func build(s report.ChartSeries, kind report.ChartKind, opts Options) gochart.Chart {
	color := parseColor(s.Color)
	yMin, yMax := valueRange(s, kind)
	xMin, xMax := -0.5, math.Max(float64(len(s.Points)), 1)-0.5

	var series []gochart.Series
	switch kind {
	case report.ChartBar:
		series = barSeries(s, color, yMin)
	default:
		series = lineSeries(s, color, kind == report.ChartArea)
	}
	for _, ref := range referenceLines(s) {
		series = append(series, gochart.ContinuousSeries{
			Name: ref.Name,
			Style: gochart.Style{
				StrokeColor:     referenceColor,
				StrokeWidth:     1.5,
				StrokeDashArray: referenceDash,
			},
			XValues: []float64{xMin, xMax},
			YValues: []float64{ref.Value, ref.Value},
		})
	}
	if len(series) == 0 {
		// go-chart refuses to draw without a visible series.
		series = append(series, gochart.ContinuousSeries{
			Style:   gochart.Style{StrokeColor: drawing.ColorTransparent, StrokeWidth: 1},
			XValues: []float64{xMin, xMax},
			YValues: []float64{yMin, yMin},
		})
	}

	return gochart.Chart{
		Title:  Title(s),
		Width:  opts.Width,
		Height: opts.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{
			Range: &gochart.ContinuousRange{Min: xMin, Max: xMax},
			Ticks: ticks(s.Points, xMin, xMax),
		},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: yMin, Max: yMax},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: series,
	}
}

// ReferenceLine is a flat line at one bound of the acceptable range.
type ReferenceLine struct {
	Name  string
	Value float64
}

// referenceLines returns one line per bound present on s.
func referenceLines(s report.ChartSeries) []ReferenceLine {
	var out []ReferenceLine
	if s.MinValue != nil {
		out = append(out, ReferenceLine{Name: "min", Value: *s.MinValue})
	}
	if s.MaxValue != nil {
		out = append(out, ReferenceLine{Name: "max", Value: *s.MaxValue})
	}
	return out
}

// lineSeries splits the points into runs of consecutive values so that gaps
// are not bridged.
func lineSeries(s report.ChartSeries, color drawing.Color, fill bool) []gochart.Series {
	style := gochart.Style{StrokeColor: color, StrokeWidth: 2, DotColor: color, DotWidth: 3}
	if fill {
		style.FillColor = color.WithAlpha(80)
	}

	var out []gochart.Series
	var xs, ys []float64
	flush := func() {
		if len(xs) > 0 {
			out = append(out, gochart.ContinuousSeries{Name: s.ParameterName, Style: style, XValues: xs, YValues: ys})
		}
		xs, ys = nil, nil
	}
	for i, p := range s.Points {
		if p.Value == nil || !finite(*p.Value) {
			flush()
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, *p.Value)
	}
	flush()
	return out
}

// barSeries draws each value as a filled rectangle rising from base.
func barSeries(s report.ChartSeries, color drawing.Color, base float64) []gochart.Series {
	var out []gochart.Series
	half := barWidth / 2
	for i, p := range s.Points {
		if p.Value == nil || !finite(*p.Value) {
			continue
		}
		x, v := float64(i), *p.Value
		out = append(out, gochart.ContinuousSeries{
			Name:    p.Label,
			Style:   gochart.Style{StrokeColor: color, StrokeWidth: 1, FillColor: color.WithAlpha(200)},
			XValues: []float64{x - half, x - half, x + half, x + half},
			YValues: []float64{base, v, v, base},
		})
	}
	return out
}

// ticks labels at most maxXTicks points. go-chart takes the x range from the
// outermost ticks when any are set, so unlabeled ticks pin both ends.
func ticks(points []report.AggregatedPoint, xMin, xMax float64) []gochart.Tick {
	out := make([]gochart.Tick, 0, maxXTicks+2)
	out = append(out, gochart.Tick{Value: xMin})
	if len(points) > 0 {
		step := (len(points) + maxXTicks - 1) / maxXTicks
		for i := 0; i < len(points); i += step {
			out = append(out, gochart.Tick{Value: float64(i), Label: points[i].Label})
		}
	}
	return append(out, gochart.Tick{Value: xMax})
}

// valueRange spans the values and both bounds with a margin. Bars always
// include zero.
func valueRange(s report.ChartSeries, kind report.ChartKind) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	see := func(v float64) {
		if finite(v) {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	for _, p := range s.Points {
		if p.Value != nil {
			see(*p.Value)
		}
	}
	for _, ref := range referenceLines(s) {
		see(ref.Value)
	}
	if kind == report.ChartBar && !math.IsInf(lo, 1) {
		see(0)
	}

	switch {
	case math.IsInf(lo, 1):
		return 0, 1
	case lo == hi:
		pad := math.Max(math.Abs(lo)*0.1, 1)
		return lo - pad, hi + pad
	}
	pad := (hi - lo) * 0.1
	if kind == report.ChartBar && lo == 0 {
		return 0, hi + pad
	}
	return lo - pad, hi + pad
}

func parseColor(hex string) drawing.Color {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if !validHex(hex) {
		hex = strings.TrimPrefix(Palette[0], "#")
	}
	return drawing.ColorFromHex(hex)
}

func validHex(s string) bool {
	if len(s) != 3 && len(s) != 6 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
