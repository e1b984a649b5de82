package domain

import "time"

// ViewName identifies one of the dashboard views.
type ViewName string

const (
	ViewOverview     ViewName = "overview"
	ViewCreation     ViewName = "creation"
	ViewModification ViewName = "modification"
	ViewServices     ViewName = "services"
	ViewExecutive    ViewName = "executive"
)

// AllViews lists the views in navigation order.
var AllViews = []ViewName{ViewOverview, ViewCreation, ViewModification, ViewServices, ViewExecutive}

// Valid reports whether v names a known view.
func (v ViewName) Valid() bool {
	for _, known := range AllViews {
		if v == known {
			return true
		}
	}
	return false
}

// ChartKind tells the presentation layer how to draw a chart.
type ChartKind string

const (
	ChartBar        ChartKind = "bar"
	ChartGroupedBar ChartKind = "grouped_bar"
	ChartLine       ChartKind = "line"
	ChartPie        ChartKind = "pie"
	ChartDonut      ChartKind = "donut"
	ChartSunburst   ChartKind = "sunburst"
)

// ChartSeries is one named series aligned with ChartConfig.Categories.
type ChartSeries struct {
	Name   string    `json:"name"`
	Color  string    `json:"color,omitempty"`
	Values []float64 `json:"values"`
}

// ChartNode is one node of a hierarchical (sunburst) chart.
type ChartNode struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Parent string  `json:"parent,omitempty"`
	Value  float64 `json:"value"`
	Share  float64 `json:"share"`
}

// ChartConfig is a renderer-agnostic chart payload.
type ChartConfig struct {
	ID         string        `json:"id"`
	Kind       ChartKind     `json:"kind"`
	Title      string        `json:"title"`
	XLabel     string        `json:"x_label,omitempty"`
	YLabel     string        `json:"y_label,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Series     []ChartSeries `json:"series,omitempty"`
	Nodes      []ChartNode   `json:"nodes,omitempty"`
	Hole       float64       `json:"hole,omitempty"`
}

// SummaryCard is one headline number.
type SummaryCard struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Value        float64   `json:"value"`
	Display      string    `json:"display"`
	Previous     *float64  `json:"previous,omitempty"`
	ChangePct    *float64  `json:"change_pct,omitempty"`
	DeltaDisplay string    `json:"delta_display,omitempty"`
	Direction    Direction `json:"direction,omitempty"`
	Subtitle     string    `json:"subtitle,omitempty"`
}

// TablePanel is a tabular dump shown alongside charts.
type TablePanel struct {
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Headers []string          `json:"headers"`
	Records []OperationRecord `json:"records"`
}

// Insight is a short narrative line for the executive view.
type Insight struct {
	Kind  string  `json:"kind"`
	Text  string  `json:"text"`
	Label string  `json:"label,omitempty"`
	Value float64 `json:"value"`
}

// ViewResult is the full payload of one view.
type ViewResult struct {
	View        ViewName      `json:"view"`
	Title       string        `json:"title"`
	Selection   []string      `json:"selection"`
	Cards       []SummaryCard `json:"cards"`
	Charts      []ChartConfig `json:"charts"`
	Tables      []TablePanel  `json:"tables,omitempty"`
	Insights    []Insight     `json:"insights,omitempty"`
	Statistics  *Statistics   `json:"statistics,omitempty"`
	Warnings    []string      `json:"warnings"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Chart returns the chart with the given id.
func (v ViewResult) Chart(id string) (ChartConfig, bool) {
	for _, c := range v.Charts {
		if c.ID == id {
			return c, true
		}
	}
	return ChartConfig{}, false
}

// LabelInfo describes one selectable label.
type LabelInfo struct {
	OperationType string   `json:"operation_type"`
	Category      Category `json:"category"`
	IsSubtotal    bool     `json:"is_subtotal"`
	IsGrandTotal  bool     `json:"is_grand_total"`
}
