package exporter

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"registrydash/pkg/contracts/domain"
)

var (
	// ErrEmptyChart is returned when a chart has nothing to draw.
	ErrEmptyChart = errors.New("chart has no drawable values")
	// ErrUnsupportedChart is returned for chart kinds without a PNG renderer.
	ErrUnsupportedChart = errors.New("unsupported chart kind")
)

// Default PNG size.
const (
	DefaultChartWidth  = 1024
	DefaultChartHeight = 576
)

// ChartRenderer draws dashboard charts as PNG images.
type ChartRenderer struct {
	Width  int
	Height int
}

// NewChartRenderer returns a renderer with the default size.
func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{Width: DefaultChartWidth, Height: DefaultChartHeight}
}

// RenderChartPNG draws cfg with the default renderer.
func RenderChartPNG(cfg domain.ChartConfig, w io.Writer) error {
	return NewChartRenderer().Render(cfg, w)
}

// Render writes cfg as a PNG. Single-series bars become a bar chart, line
// and multi-series charts become continuous series over the category index,
// and compositions become pie or donut charts.
func (r *ChartRenderer) Render(cfg domain.ChartConfig, w io.Writer) error {
	if len(cfg.Series) == 0 && len(cfg.Nodes) == 0 {
		return ErrEmptyChart
	}

	switch cfg.Kind {
	case domain.ChartBar:
		if len(cfg.Series) == 1 {
			return r.renderBar(cfg, w)
		}
		return r.renderLines(cfg, w)
	case domain.ChartGroupedBar, domain.ChartLine:
		return r.renderLines(cfg, w)
	case domain.ChartPie:
		return r.renderPie(cfg, w, false)
	case domain.ChartDonut, domain.ChartSunburst:
		return r.renderPie(cfg, w, true)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedChart, cfg.Kind)
	}
}

func (r *ChartRenderer) renderBar(cfg domain.ChartConfig, w io.Writer) error {
	series := cfg.Series[0]
	if len(series.Values) == 0 {
		return ErrEmptyChart
	}

	bars := make([]chart.Value, len(series.Values))
	for i, v := range series.Values {
		bars[i] = chart.Value{
			Label: categoryLabel(cfg.Categories, i),
			Value: v,
			Style: chart.Style{
				FillColor:   barColor(series.Color, v),
				StrokeColor: barColor(series.Color, v),
			},
		}
	}

	lo, hi := valueRange(series.Values)
	barWidth := (r.Width - 120) / (2 * len(bars))
	if barWidth < 8 {
		barWidth = 8
	}
	if barWidth > 80 {
		barWidth = 80
	}

	bc := chart.BarChart{
		Title:      cfg.Title,
		Width:      r.Width,
		Height:     r.Height,
		BarWidth:   barWidth,
		Bars:       bars,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.Style{StrokeWidth: 1},
		YAxis: chart.YAxis{
			Name:  cfg.YLabel,
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
	}
	if lo < 0 {
		bc.UseBaseValue = true
		bc.BaseValue = 0
	}
	return bc.Render(chart.PNG, w)
}

func (r *ChartRenderer) renderLines(cfg domain.ChartConfig, w io.Writer) error {
	n := len(cfg.Categories)
	var all []float64
	series := make([]chart.Series, 0, len(cfg.Series))
	for _, s := range cfg.Series {
		if len(s.Values) == 0 {
			continue
		}
		if len(s.Values) > n {
			n = len(s.Values)
		}
		xs := make([]float64, len(s.Values))
		for i := range xs {
			xs[i] = float64(i)
		}
		ys := s.Values
		if len(ys) == 1 {
			// A lone point is drawn as a flat segment across the padded axis.
			xs, ys = []float64{0, 1}, []float64{ys[0], ys[0]}
		}
		color := parseHexColor(s.Color, chart.GetDefaultColor(len(series)))
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: color, StrokeWidth: 2, DotColor: color, DotWidth: 4},
		})
		all = append(all, s.Values...)
	}
	if len(series) == 0 {
		return ErrEmptyChart
	}

	// go-chart takes the x-range from the ticks and rejects a zero-width one.
	ticks := make([]chart.Tick, max(n, 2))
	for i := range ticks {
		label := ""
		if i < n {
			label = categoryLabel(cfg.Categories, i)
		}
		ticks[i] = chart.Tick{Value: float64(i), Label: label}
	}
	lo, hi := valueRange(all)
	xMax := float64(len(ticks) - 1)

	ch := chart.Chart{
		Title:      cfg.Title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  cfg.XLabel,
			Range: &chart.ContinuousRange{Min: 0, Max: xMax},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:  cfg.YLabel,
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

func (r *ChartRenderer) renderPie(cfg domain.ChartConfig, w io.Writer, donut bool) error {
	var values []chart.Value
	if len(cfg.Nodes) > 0 {
		for _, n := range cfg.Nodes {
			if n.Value > 0 {
				values = append(values, chart.Value{Label: n.Label, Value: n.Value})
			}
		}
	} else {
		for i, v := range cfg.Series[0].Values {
			if v > 0 {
				values = append(values, chart.Value{Label: categoryLabel(cfg.Categories, i), Value: v})
			}
		}
	}
	if len(values) == 0 {
		return ErrEmptyChart
	}

	if donut {
		dc := chart.DonutChart{
			Title:  cfg.Title,
			Width:  r.Width,
			Height: r.Height,
			Values: values,
		}
		return dc.Render(chart.PNG, w)
	}
	pc := chart.PieChart{
		Title:  cfg.Title,
		Width:  r.Width,
		Height: r.Height,
		Values: values,
	}
	return pc.Render(chart.PNG, w)
}

// valueRange pads the data range so flat series still have a visible axis.
func valueRange(values []float64) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < 1 {
		hi = lo + 1
	}
	return lo, hi * 1.05
}

func categoryLabel(categories []string, i int) string {
	if i < len(categories) {
		return categories[i]
	}
	return fmt.Sprint(i + 1)
}

func barColor(hex string, v float64) drawing.Color {
	if hex == "" && v < 0 {
		return parseHexColor("#e74c3c", chart.ColorRed)
	}
	return parseHexColor(hex, chart.ColorBlue)
}

// parseHexColor accepts #rrggbb and falls back on anything else.
func parseHexColor(hex string, fallback drawing.Color) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return fallback
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return fallback
		}
	}
	return drawing.ColorFromHex(hex)
}
