package dashboard

import (
	"fmt"

	"registrydash/internal/dataprocessing"
	"registrydash/pkg/contracts/domain"
)

// Palette shared by every view.
const (
	Color2024     = "#3498db"
	Color2025     = "#2c3e50"
	ColorIncrease = "#27ae60"
	ColorDecrease = "#e74c3c"
)

const (
	axisOperations = "عدد العمليات"
	axisOperation  = "نوع العملية"
	axisChangePct  = "النسبة المئوية للتغيير"
)

func yearSeries(table domain.Table) []domain.ChartSeries {
	v2024 := make([]float64, 0, table.Len())
	v2025 := make([]float64, 0, table.Len())
	for _, r := range table.Records {
		v2024 = append(v2024, r.Count2024)
		v2025 = append(v2025, r.Count2025)
	}
	return []domain.ChartSeries{
		{Name: "2024", Color: Color2024, Values: v2024},
		{Name: "2025", Color: Color2025, Values: v2025},
	}
}

// totalsChart is the two-bar 2024 vs 2025 comparison.
func totalsChart(id, title string, totals domain.Totals) domain.ChartConfig {
	return domain.ChartConfig{
		ID:         id,
		Kind:       domain.ChartBar,
		Title:      title,
		YLabel:     axisOperations,
		Categories: []string{"2024", "2025"},
		Series: []domain.ChartSeries{
			{Name: "total", Values: []float64{totals.Y2024, totals.Y2025}},
		},
	}
}

// groupedYearChart draws one bar per year for every row.
func groupedYearChart(id, title, xLabel, yLabel string, table domain.Table) domain.ChartConfig {
	return domain.ChartConfig{
		ID:         id,
		Kind:       domain.ChartGroupedBar,
		Title:      title,
		XLabel:     xLabel,
		YLabel:     yLabel,
		Categories: table.Labels(),
		Series:     yearSeries(table),
	}
}

// lineYearChart draws one line per year across rows.
func lineYearChart(id, title, xLabel, yLabel string, table domain.Table) domain.ChartConfig {
	c := groupedYearChart(id, title, xLabel, yLabel, table)
	c.Kind = domain.ChartLine
	return c
}

// changePctChart draws the per-row percent change.
func changePctChart(id, title string, table domain.Table) domain.ChartConfig {
	changes := dataprocessing.RowChanges(table)
	values := make([]float64, len(changes))
	for i, c := range changes {
		values[i] = c.ChangePct
	}
	return domain.ChartConfig{
		ID:         id,
		Kind:       domain.ChartBar,
		Title:      title,
		XLabel:     axisOperation,
		YLabel:     axisChangePct,
		Categories: table.Labels(),
		Series:     []domain.ChartSeries{{Name: "change_pct", Values: values}},
	}
}

// compositionChart is a pie, donut (hole > 0) or sunburst of one year.
func compositionChart(id, title string, kind domain.ChartKind, table domain.Table, year domain.Year) domain.ChartConfig {
	shares := dataprocessing.Share(table, year)
	values := make([]float64, table.Len())
	nodes := make([]domain.ChartNode, table.Len())
	for i, r := range table.Records {
		values[i] = r.Count(year)
		nodes[i] = domain.ChartNode{
			ID:    fmt.Sprintf("n%d", i),
			Label: r.OperationType,
			Value: r.Count(year),
			Share: shares[i],
		}
	}

	c := domain.ChartConfig{
		ID:         id,
		Kind:       kind,
		Title:      title,
		Categories: table.Labels(),
		Series:     []domain.ChartSeries{{Name: fmt.Sprint(int(year)), Values: values}},
	}
	switch kind {
	case domain.ChartDonut:
		c.Hole = 0.4
	case domain.ChartSunburst:
		c.Nodes = nodes
	}
	return c
}

// yearlyChangeChart plots the source yearly-change column. ok is false when
// no row carries a parsable value.
func yearlyChangeChart(id, title string, table domain.Table) (domain.ChartConfig, bool) {
	var (
		labels []string
		values []float64
	)
	for _, r := range table.Records {
		v, ok := dataprocessing.ParseYearlyChange(r.YearlyChange)
		if !ok {
			continue
		}
		labels = append(labels, r.OperationType)
		values = append(values, v)
	}
	if len(values) == 0 {
		return domain.ChartConfig{}, false
	}
	return domain.ChartConfig{
		ID:         id,
		Kind:       domain.ChartBar,
		Title:      title,
		XLabel:     axisOperation,
		YLabel:     axisChangePct,
		Categories: labels,
		Series:     []domain.ChartSeries{{Name: domain.ColumnYearlyChange, Values: values}},
	}, true
}

// topChart draws a single 2025 series for a ranked table.
func topChart(id, title string, kind domain.ChartKind, table domain.Table) domain.ChartConfig {
	if kind != domain.ChartBar {
		return compositionChart(id, title, kind, table, domain.Year2025)
	}
	values := make([]float64, 0, table.Len())
	for _, r := range table.Records {
		values = append(values, r.Count2025)
	}
	return domain.ChartConfig{
		ID:         id,
		Kind:       domain.ChartBar,
		Title:      title,
		XLabel:     axisOperation,
		YLabel:     "الحجم",
		Categories: table.Labels(),
		Series:     []domain.ChartSeries{{Name: "2025", Color: Color2025, Values: values}},
	}
}
