package dashboard

import (
	"errors"
	"fmt"
	"time"

	"registrydash/internal/dataprocessing"
	"registrydash/pkg/contracts/domain"
)

// ErrUnknownView is returned for a view name outside domain.AllViews.
var ErrUnknownView = errors.New("unknown view")

// Warning texts shown instead of charts.
const (
	WarnNoData           = "No data available to display"
	WarnNoFilteredData   = "No data available with current filters"
	WarnNoCreationData   = "No creation-related data available with current filters"
	WarnNoUpdateData     = "No update-related data available with current filters"
	WarnNoServiceData    = "لا توجد بيانات خدمات متاحة مع عوامل التصفية الحالية"
	WarnCreationFallback = "creation total row missing; creation card shows 0"
)

// Titles of the views, in navigation order.
var Titles = map[domain.ViewName]string{
	domain.ViewOverview:     "Business Registry Data Overview",
	domain.ViewCreation:     "Business Creation Analysis",
	domain.ViewModification: "Analysis of Business Records Modifications",
	domain.ViewServices:     "Additional Services Analysis",
	domain.ViewExecutive:    "Executive Summary",
}

// TopCount is the size of the executive ranking.
const TopCount = 5

// Builder composes metrics engine calls into view payloads. It holds no
// table state and is safe for concurrent use.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a view builder.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build computes one view over the full table and the selection.
func (b *Builder) Build(view domain.ViewName, full domain.Table, sel Selection) (domain.ViewResult, error) {
	switch view {
	case domain.ViewOverview:
		return b.overview(full, sel), nil
	case domain.ViewCreation:
		return b.creation(full, sel), nil
	case domain.ViewModification:
		return b.modification(full, sel), nil
	case domain.ViewServices:
		return b.services(full, sel), nil
	case domain.ViewExecutive:
		return b.executive(full, sel), nil
	default:
		return domain.ViewResult{}, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
}

func (b *Builder) newResult(view domain.ViewName, sel Selection) domain.ViewResult {
	return domain.ViewResult{
		View:        view,
		Title:       Titles[view],
		Selection:   append([]string{}, sel.Labels...),
		Cards:       []domain.SummaryCard{},
		Charts:      []domain.ChartConfig{},
		Warnings:    []string{},
		GeneratedAt: b.now().UTC(),
	}
}

func (b *Builder) overview(full domain.Table, sel Selection) domain.ViewResult {
	res := b.newResult(domain.ViewOverview, sel)
	if full.Empty() {
		res.Warnings = append(res.Warnings, WarnNoData)
		return res
	}

	totals := dataprocessing.TotalExcludingSubtotals(full)
	res.Cards = append(res.Cards,
		countCard("total_2024", "مجموع 2024", totals.Y2024, "إجمالي العمليات"),
		countCard("total_2025", "مجموع 2025", totals.Y2025, "إجمالي العمليات"),
		changeCard("yearly_change", "التغيير السنوي", totals, "مقارنة بالسنة السابقة"),
	)

	// The creation total is informative only; a missing row falls back to 0.
	var crea domain.Totals
	if r, err := dataprocessing.LookupRecord(full, domain.LabelTotalCreation); err == nil {
		crea = domain.Totals{Y2024: r.Count2024, Y2025: r.Count2025}
	} else {
		res.Warnings = append(res.Warnings, WarnCreationFallback)
	}
	res.Cards = append(res.Cards, yearCard("creation_total", domain.LabelTotalCreation, crea))

	res.Charts = append(res.Charts, totalsChart("totals", "مقارنة إجمالي العمليات بين 2024 و 2025", totals))

	filtered := sel.Apply(full)
	if filtered.Empty() {
		res.Warnings = append(res.Warnings, WarnNoFilteredData)
	}
	res.Tables = []domain.TablePanel{
		panel("filtered", "Filtered Data", filtered),
		panel("full", "Full Data", full),
	}
	return res
}

func (b *Builder) creation(full domain.Table, sel Selection) domain.ViewResult {
	res := b.newResult(domain.ViewCreation, sel)
	if full.Empty() {
		res.Warnings = append(res.Warnings, WarnNoData)
		return res
	}

	rows := categoryRows(sel.Scope(full), domain.CategoryCreation)
	if rows.Empty() {
		res.Warnings = append(res.Warnings, WarnNoCreationData)
		return res
	}

	totals := dataprocessing.Total(rows)
	res.Cards = append(res.Cards,
		countCard("creation_2024", "مجموع التأسيس 2024", totals.Y2024, ""),
		countCard("creation_2025", "مجموع التأسيس 2025", totals.Y2025, ""),
		changeCard("yearly_change", "التغيير السنوي", totals, ""),
	)
	res.Charts = append(res.Charts,
		groupedYearChart("by_type", "مقارنة عمليات التأسيس حسب النوع", axisOperation, "عدد عمليات التأسيس", rows),
		changePctChart("change_pct", "النسبة المئوية للتغيير في عمليات التأسيس", rows),
		compositionChart("composition_2025", "توزيع عمليات التأسيس لسنة 2025", domain.ChartDonut, rows, domain.Year2025),
	)
	res.Tables = []domain.TablePanel{panel("creation", "Creation Operations", rows)}
	return res
}

func (b *Builder) modification(full domain.Table, sel Selection) domain.ViewResult {
	res := b.newResult(domain.ViewModification, sel)
	if full.Empty() {
		res.Warnings = append(res.Warnings, WarnNoData)
		return res
	}

	rows := categoryRows(sel.Scope(full), domain.CategoryUpdate)
	if rows.Empty() {
		res.Warnings = append(res.Warnings, WarnNoUpdateData)
		return res
	}

	totals := dataprocessing.Total(rows)
	res.Cards = append(res.Cards,
		countCard("update_2024", "2024 التحيين", totals.Y2024, "إجمالي عمليات التحيين"),
		countCard("update_2025", "2025 التحيين", totals.Y2025, "إجمالي عمليات التحيين"),
		changeCard("yearly_change", "التغيير السنوي", totals, ""),
	)
	res.Charts = append(res.Charts,
		lineYearChart("trend", "اتجاهات تحديث الأعمال", "نوع التحديث", "عدد التحديثات", rows),
		changePctChart("change_pct", "النسبة المئوية للتغيير في عمليات التحديث", rows),
	)
	if c, ok := yearlyChangeChart("yearly_change", domain.ColumnYearlyChange, rows); ok {
		res.Charts = append(res.Charts, c)
	}
	res.Tables = []domain.TablePanel{panel("updates", "Update Operations", rows)}
	return res
}

func (b *Builder) services(full domain.Table, sel Selection) domain.ViewResult {
	res := b.newResult(domain.ViewServices, sel)
	if full.Empty() {
		res.Warnings = append(res.Warnings, WarnNoData)
		return res
	}

	rows := categoryRows(sel.Scope(full), domain.CategoryService)
	if rows.Empty() {
		res.Warnings = append(res.Warnings, WarnNoServiceData)
		return res
	}

	totals := dataprocessing.Total(rows)
	res.Cards = append(res.Cards,
		countCard("services_2024", "مجموع الخدمات 2024", totals.Y2024, ""),
		countCard("services_2025", "مجموع الخدمات 2025", totals.Y2025, ""),
		changeCard("yearly_change", "التغيير السنوي", totals, ""),
	)

	// rows is non-empty here, so the extremum searches cannot fail.
	if top, err := dataprocessing.MaxByYear(rows, domain.Year2025); err == nil {
		res.Cards = append(res.Cards, domain.SummaryCard{
			ID:       "most_requested",
			Title:    "الخدمة الأكثر طلباً",
			Value:    top.Count2025,
			Display:  top.OperationType,
			Subtitle: FormatCount(top.Count2025) + " طلب",
		})
	}
	if up, err := dataprocessing.BiggestMover(rows, domain.DirectionIncrease); err == nil {
		res.Cards = append(res.Cards, moverCard("biggest_increase", "أكبر زيادة", up))
	}
	if down, err := dataprocessing.BiggestMover(rows, domain.DirectionDecrease); err == nil {
		res.Cards = append(res.Cards, moverCard("biggest_decrease", "أكبر انخفاض", down))
	}

	res.Charts = append(res.Charts,
		lineYearChart("trend", "مقارنة خدمات التسجيل", "نوع الخدمة", "عدد الخدمات", rows),
		compositionChart("distribution_2025", "توزيع الخدمات الإظافية لسنة 2025", domain.ChartSunburst, rows, domain.Year2025),
	)
	res.Tables = []domain.TablePanel{panel("services", "Additional Services", rows)}
	return res
}

func (b *Builder) executive(full domain.Table, sel Selection) domain.ViewResult {
	res := b.newResult(domain.ViewExecutive, sel)
	if full.Empty() {
		res.Warnings = append(res.Warnings, WarnNoData)
		return res
	}

	summary := dataprocessing.WithoutGrandTotal(full)
	totals := dataprocessing.TotalExcludingSubtotals(full)
	crea := dataprocessing.Total(categoryRows(summary, domain.CategoryCreation))
	upd := dataprocessing.Total(categoryRows(summary, domain.CategoryUpdate))

	_, totalPct := dataprocessing.Change(totals)
	_, creaPct := dataprocessing.Change(crea)
	_, updPct := dataprocessing.Change(upd)

	res.Cards = append(res.Cards,
		yearCard("total_services", "مجموع الخدمات", totals),
		yearCard("total_creation", "مجموع التأسيس", crea),
		yearCard("total_update", "مجموع التحيين", upd),
		trendCard(totals),
	)

	res.Charts = append(res.Charts, domain.ChartConfig{
		ID:         "key_metrics",
		Kind:       domain.ChartGroupedBar,
		Title:      "Key Metrics Comparison",
		YLabel:     axisOperations,
		Categories: []string{"إجمالي العمليات", "التأسيس", "التحيين"},
		Series: []domain.ChartSeries{
			{Name: "2024", Color: Color2024, Values: []float64{totals.Y2024, crea.Y2024, upd.Y2024}},
			{Name: "2025", Color: Color2025, Values: []float64{totals.Y2025, crea.Y2025, upd.Y2025}},
		},
	})

	res.Insights = append(res.Insights,
		changeInsight("total_change", "إجمالي العمليات", totalPct),
		changeInsight("creation_change", "عمليات التأسيس", creaPct),
		changeInsight("update_change", "عمليات التحيين", updPct),
	)

	top, err := dataprocessing.TopN(summary, TopCount, domain.Year2025)
	if err != nil {
		res.Warnings = append(res.Warnings, WarnNoData)
		return res
	}
	res.Charts = append(res.Charts,
		topChart("top5", "أعلى 5 عمليات حسب الحجم", domain.ChartBar, top),
		topChart("top5_share", "حصة أعلى 5 عمليات لسنة 2025", domain.ChartPie, top),
	)
	if categories := dataprocessing.SubtotalsOnly(full); !categories.Empty() {
		res.Charts = append(res.Charts,
			groupedYearChart("main_categories", "الفئات الرئيسية", axisOperation, axisOperations, categories))
	}

	up, errUp := dataprocessing.BiggestMover(summary, domain.DirectionIncrease)
	down, errDown := dataprocessing.BiggestMover(summary, domain.DirectionDecrease)
	if errUp == nil && errDown == nil {
		res.Insights = append(res.Insights, highlightInsights(top.Records[0], up, down)...)
	}

	stats := dataprocessing.Describe(summary)
	res.Statistics = &stats
	return res
}

// categoryRows keeps the detail rows of one category.
func categoryRows(table domain.Table, category domain.Category) domain.Table {
	return dataprocessing.WithoutSubtotals(dataprocessing.FilterByCategory(table, category))
}

func panel(id, title string, table domain.Table) domain.TablePanel {
	records := table.Records
	if records == nil {
		records = []domain.OperationRecord{}
	}
	return domain.TablePanel{ID: id, Title: title, Headers: table.Headers, Records: records}
}

func directionOf(v float64) domain.Direction {
	if v < 0 {
		return domain.DirectionDecrease
	}
	return domain.DirectionIncrease
}

func countCard(id, title string, v float64, subtitle string) domain.SummaryCard {
	return domain.SummaryCard{ID: id, Title: title, Value: v, Display: FormatCount(v), Subtitle: subtitle}
}

func changeCard(id, title string, totals domain.Totals, subtitle string) domain.SummaryCard {
	delta, pct := dataprocessing.Change(totals)
	prev := totals.Y2024
	return domain.SummaryCard{
		ID:           id,
		Title:        title,
		Value:        pct,
		Display:      FormatPercent(pct),
		Previous:     &prev,
		ChangePct:    &pct,
		DeltaDisplay: FormatChange(delta),
		Direction:    directionOf(pct),
		Subtitle:     subtitle,
	}
}

// yearCard shows the 2025 value with the change against 2024.
func yearCard(id, title string, totals domain.Totals) domain.SummaryCard {
	_, pct := dataprocessing.Change(totals)
	prev := totals.Y2024
	return domain.SummaryCard{
		ID:           id,
		Title:        title,
		Value:        totals.Y2025,
		Display:      FormatCount(totals.Y2025),
		Previous:     &prev,
		ChangePct:    &pct,
		DeltaDisplay: FormatPercent(pct),
		Direction:    directionOf(pct),
	}
}

func trendCard(totals domain.Totals) domain.SummaryCard {
	card := domain.SummaryCard{
		ID:        "yearly_trend",
		Title:     "التغيير السنوي",
		Value:     totals.Y2025 - totals.Y2024,
		Display:   "2024 → 2025",
		Subtitle:  "Decline",
		Direction: domain.DirectionDecrease,
	}
	if totals.Y2025 > totals.Y2024 {
		card.Subtitle = "Growth"
		card.Direction = domain.DirectionIncrease
	}
	return card
}

func moverCard(id, title string, m domain.Mover) domain.SummaryCard {
	pct := m.ChangePct
	return domain.SummaryCard{
		ID:           id,
		Title:        title,
		Value:        pct,
		Display:      m.OperationType,
		ChangePct:    &pct,
		DeltaDisplay: FormatPercent(pct),
		Direction:    directionOf(pct),
	}
}
