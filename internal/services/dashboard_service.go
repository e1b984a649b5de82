package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"registrydash/internal/dashboard"
	"registrydash/internal/dataprocessing"
	apierrors "registrydash/internal/errors"
	"registrydash/internal/exporter"
	"registrydash/internal/infrastructure"
	ws "registrydash/internal/websocket"
	"registrydash/pkg/contracts/domain"
	"registrydash/pkg/contracts/events"
)

// Export formats and table scopes.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	ScopeFiltered = "filtered"
	ScopeFull     = "full"
)

// loadTimeout bounds a shared load. It is detached from the first caller's
// context so one cancelled request cannot fail the others waiting on it.
const loadTimeout = 2 * time.Minute

// TableLoader reads and parses a registry table.
type TableLoader interface {
	Load(ctx context.Context, src dataprocessing.Source) (domain.Table, error)
}

// DashboardOptions are the optional collaborators of a DashboardService.
type DashboardOptions struct {
	// Hub receives data:reloaded notifications. Nil disables them.
	Hub ws.HubInterface
	// Metrics may be nil.
	Metrics *infrastructure.BusinessMetrics
	// Tracer defaults to the global provider.
	Tracer trace.Tracer
	// DefaultLabels overrides dashboard.DefaultLabels.
	DefaultLabels []string
	Logger        *slog.Logger
}

// DatasetStatus describes the cached table.
type DatasetStatus struct {
	Loaded    bool      `json:"loaded"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// OperationsResult is a dump of the table in one scope.
type OperationsResult struct {
	Scope     string              `json:"scope"`
	Selection dashboard.Selection `json:"selection"`
	Table     domain.Table        `json:"table"`
	Warnings  []string            `json:"warnings"`
}

// Summary holds the headline figures of the cached table.
type Summary struct {
	Rows          int               `json:"rows"`
	Totals        domain.Totals     `json:"totals"`
	Change        float64           `json:"change"`
	ChangePct     float64           `json:"change_pct"`
	CreationTotal *domain.Totals    `json:"creation_total,omitempty"`
	Statistics    domain.Statistics `json:"statistics"`
	Warnings      []string          `json:"warnings"`
}

// DashboardService owns the cached operations table and computes views,
// exports and chart images over it.
type DashboardService struct {
	source  dataprocessing.Source
	loader  TableLoader
	builder *dashboard.Builder
	hub     ws.HubInterface
	metrics *infrastructure.BusinessMetrics
	tracer  trace.Tracer
	logger  *slog.Logger

	defaultSelection dashboard.Selection

	group singleflight.Group

	mu       sync.RWMutex
	table    domain.Table
	loaded   bool
	gen      uint64 // bumped by Reload; loads from older generations are not cached
	loadedAt time.Time
	lastErr  error
}

// NewDashboardService creates a service reading from source.
func NewDashboardService(source dataprocessing.Source, loader TableLoader, opts DashboardOptions) *DashboardService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.ServiceName)
	}
	if loader == nil {
		loader = dataprocessing.NewLoaderWithLogger(nil, logger)
	}

	return &DashboardService{
		source:           source,
		loader:           loader,
		builder:          dashboard.NewBuilder(),
		hub:              opts.Hub,
		metrics:          opts.Metrics,
		tracer:           tracer,
		logger:           logger.With(slog.String("component", "dashboard_service")),
		defaultSelection: dashboard.DefaultSelection(opts.DefaultLabels),
	}
}

type loadOutcome struct {
	table domain.Table
	err   error
}

// Table returns the cached table, loading it on first use. A failed load is
// cached too: the table is empty and the error, a *DataLoadError, is
// returned until the next Reload.
func (s *DashboardService) Table(ctx context.Context) (domain.Table, error) {
	s.mu.RLock()
	if s.loaded {
		table, err := s.table, s.lastErr
		s.mu.RUnlock()
		infrastructure.RecordCacheLookup(ctx, s.metrics, true)
		return table, err
	}
	gen := s.gen
	s.mu.RUnlock()

	infrastructure.RecordCacheLookup(ctx, s.metrics, false)
	return s.load(ctx, gen)
}

// Reload discards the cached table, loads it again and notifies websocket
// clients. A load already running when Reload starts is not reused: its data
// may predate the invalidation.
func (s *DashboardService) Reload(ctx context.Context) (events.DataReloaded, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard.reload")
	defer span.End()

	s.mu.Lock()
	s.gen++
	s.loaded = false
	gen := s.gen
	s.mu.Unlock()

	table, err := s.load(ctx, gen)
	if err != nil && !dataprocessing.IsDataLoadError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return events.DataReloaded{}, err
	}

	payload := events.DataReloaded{Status: "ok", Rows: table.Len(), Source: s.sourceName()}
	if err != nil {
		payload.Status = "error"
		payload.Error = err.Error()
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("dataset.rows", payload.Rows))

	s.logger.InfoContext(ctx, "Dataset reloaded",
		slog.String("status", payload.Status),
		slog.Int("rows", payload.Rows),
		slog.String("source", payload.Source))

	if s.hub != nil {
		s.hub.BroadcastDataReloaded(ctx, payload)
	}
	return payload, nil
}

// load runs one coalesced load per generation.
func (s *DashboardService) load(ctx context.Context, gen uint64) (domain.Table, error) {
	ch := s.group.DoChan("load-"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.doLoad(loadCtx, gen), nil
	})

	select {
	case res := <-ch:
		out := res.Val.(loadOutcome)
		return out.table, out.err
	case <-ctx.Done():
		return domain.Table{}, ctx.Err()
	}
}

func (s *DashboardService) doLoad(ctx context.Context, gen uint64) loadOutcome {
	ctx, span := s.tracer.Start(ctx, "dashboard.load",
		trace.WithAttributes(attribute.String("dataset.source", s.sourceName())))
	defer span.End()

	start := time.Now()
	table, err := s.loadTable(ctx)
	infrastructure.RecordDatasetLoad(ctx, s.metrics, s.sourceName(), table.Len(), time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "Dataset unavailable, serving empty table",
			slog.String("source", s.sourceName()),
			slog.String("error", err.Error()))
		table = domain.Table{}
	}
	span.SetAttributes(attribute.Int("dataset.rows", table.Len()))

	s.mu.Lock()
	if gen == s.gen {
		s.table = table
		s.lastErr = err
		s.loaded = true
		s.loadedAt = time.Now()
	}
	s.mu.Unlock()

	return loadOutcome{table: table, err: err}
}

func (s *DashboardService) loadTable(ctx context.Context) (domain.Table, error) {
	if s.source == nil {
		return domain.Table{}, &dataprocessing.DataLoadError{Source: "unconfigured", Err: dataprocessing.ErrUnsupportedSource}
	}
	table, err := s.loader.Load(ctx, s.source)
	if err != nil && !dataprocessing.IsDataLoadError(err) {
		err = &dataprocessing.DataLoadError{Source: s.source.Name(), Err: err}
	}
	return table, err
}

func (s *DashboardService) sourceName() string {
	if s.source == nil {
		return "unconfigured"
	}
	return s.source.Name()
}

// sourceError tags a load failure for endpoints that cannot degrade to an
// empty payload. Other errors pass through.
func (s *DashboardService) sourceError(err error) error {
	if !dataprocessing.IsDataLoadError(err) {
		return err
	}
	return apierrors.NewDataSourceError("registry source unavailable", err).
		WithContext("source", s.sourceName())
}

// Status reports the state of the cached table.
func (s *DashboardService) Status() DatasetStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := DatasetStatus{
		Loaded:   s.loaded,
		Source:   s.sourceName(),
		Rows:     s.table.Len(),
		LoadedAt: s.loadedAt,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// DefaultSelection returns the selection used when a request names no labels.
func (s *DashboardService) DefaultSelection() dashboard.Selection {
	return dashboard.Selection{Labels: append([]string(nil), s.defaultSelection.Labels...)}
}

// ResolveSelection turns decoded query labels into a selection.
func (s *DashboardService) ResolveSelection(labels []string, explicit bool) dashboard.Selection {
	if !explicit {
		return s.DefaultSelection()
	}
	return dashboard.ExplicitSelection(labels)
}

// dataset returns the table for endpoints that degrade to an empty state.
// Load failures become a warning; only context errors are returned.
func (s *DashboardService) dataset(ctx context.Context) (domain.Table, []string, error) {
	table, err := s.Table(ctx)
	switch {
	case err == nil:
		return table, nil, nil
	case dataprocessing.IsDataLoadError(err):
		return table, []string{fmt.Sprintf("Data unavailable: %v", err)}, nil
	default:
		return domain.Table{}, nil, err
	}
}

// View builds one view payload. An unavailable dataset yields the view's
// no-data state with a warning.
func (s *DashboardService) View(ctx context.Context, view domain.ViewName, sel dashboard.Selection) (domain.ViewResult, error) {
	if !view.Valid() {
		return domain.ViewResult{}, fmt.Errorf("%w: %q", dashboard.ErrUnknownView, view)
	}

	table, warnings, err := s.dataset(ctx)
	if err != nil {
		return domain.ViewResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "dashboard.view",
		trace.WithAttributes(
			attribute.String("view", string(view)),
			attribute.Int("selection.size", len(sel.Labels)),
		))
	defer span.End()

	start := time.Now()
	res, err := s.builder.Build(view, table, sel)
	infrastructure.RecordViewBuild(ctx, s.metrics, string(view), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ViewResult{}, err
	}

	res.Warnings = append(warnings, res.Warnings...)
	if res.Warnings == nil {
		res.Warnings = []string{}
	}

	s.logger.DebugContext(ctx, "View built",
		slog.String("view", string(view)),
		slog.Int("charts", len(res.Charts)),
		slog.Int("warnings", len(res.Warnings)),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

// Views lists the views in navigation order.
func (s *DashboardService) Views() []ViewInfo {
	out := make([]ViewInfo, 0, len(domain.AllViews))
	for _, v := range domain.AllViews {
		out = append(out, ViewInfo{Name: v, Title: dashboard.Titles[v]})
	}
	return out
}

// ViewInfo names one view.
type ViewInfo struct {
	Name  domain.ViewName `json:"name"`
	Title string          `json:"title"`
}

// Chart returns one chart of a view. Unlike View it requires data: an
// unavailable dataset is returned as the *DataLoadError.
func (s *DashboardService) Chart(ctx context.Context, view domain.ViewName, chartID string, sel dashboard.Selection) (domain.ChartConfig, error) {
	if !view.Valid() {
		return domain.ChartConfig{}, fmt.Errorf("%w: %q", dashboard.ErrUnknownView, view)
	}
	if _, err := s.Table(ctx); err != nil {
		return domain.ChartConfig{}, s.sourceError(err)
	}

	res, err := s.View(ctx, view, sel)
	if err != nil {
		return domain.ChartConfig{}, err
	}
	chart, ok := res.Chart(chartID)
	if !ok {
		return domain.ChartConfig{}, fmt.Errorf("%w: %s/%s", ErrChartNotFound, view, chartID)
	}
	return chart, nil
}

// RenderChart writes one chart of a view as a PNG.
func (s *DashboardService) RenderChart(ctx context.Context, view domain.ViewName, chartID string, sel dashboard.Selection, w io.Writer) error {
	chart, err := s.Chart(ctx, view, chartID, sel)
	if err != nil {
		return err
	}

	_, span := s.tracer.Start(ctx, "dashboard.render_chart",
		trace.WithAttributes(attribute.String("view", string(view)), attribute.String("chart", chartID)))
	defer span.End()

	err = exporter.RenderChartPNG(chart, w)
	infrastructure.RecordChartRender(ctx, s.metrics, string(view), chartID, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("render %s/%s: %w", view, chartID, err)
	}
	return nil
}

// scoped narrows table to scope.
func scoped(table domain.Table, scope string, sel dashboard.Selection) (domain.Table, error) {
	switch scope {
	case ScopeFull:
		return table.Clone(), nil
	case ScopeFiltered, "":
		return sel.Apply(table), nil
	default:
		return domain.Table{}, fmt.Errorf("%w: %q", ErrUnsupportedScope, scope)
	}
}

// Operations returns the table in the requested scope.
func (s *DashboardService) Operations(ctx context.Context, scope string, sel dashboard.Selection) (OperationsResult, error) {
	table, warnings, err := s.dataset(ctx)
	if err != nil {
		return OperationsResult{}, err
	}
	out, err := scoped(table, scope, sel)
	if err != nil {
		return OperationsResult{}, err
	}
	if scope == "" {
		scope = ScopeFiltered
	}
	if warnings == nil {
		warnings = []string{}
	}
	if out.Empty() && len(warnings) == 0 {
		warnings = append(warnings, dashboard.WarnNoFilteredData)
	}
	return OperationsResult{Scope: scope, Selection: sel, Table: out, Warnings: warnings}, nil
}

// Labels lists every label of the table with its classification.
func (s *DashboardService) Labels(ctx context.Context) ([]domain.LabelInfo, error) {
	table, _, err := s.dataset(ctx)
	if err != nil {
		return nil, err
	}
	labels := make([]domain.LabelInfo, 0, table.Len())
	for _, r := range table.Records {
		labels = append(labels, domain.LabelInfo{
			OperationType: r.OperationType,
			Category:      r.Category,
			IsSubtotal:    r.IsSubtotal,
			IsGrandTotal:  r.IsGrandTotal,
		})
	}
	return labels, nil
}

// Summary computes the headline totals of the full table. Subtotal rows are
// excluded from the totals; the creation total is looked up by label.
func (s *DashboardService) Summary(ctx context.Context) (Summary, error) {
	table, warnings, err := s.dataset(ctx)
	if err != nil {
		return Summary{}, err
	}
	if warnings == nil {
		warnings = []string{}
	}

	totals := dataprocessing.TotalExcludingSubtotals(table)
	delta, pct := dataprocessing.Change(totals)
	sum := Summary{
		Rows:       table.Len(),
		Totals:     totals,
		Change:     delta,
		ChangePct:  pct,
		Statistics: dataprocessing.Describe(dataprocessing.WithoutGrandTotal(table)),
		Warnings:   warnings,
	}

	if rec, err := dataprocessing.LookupRecord(table, domain.LabelTotalCreation); err == nil {
		sum.CreationTotal = &domain.Totals{Y2024: rec.Count2024, Y2025: rec.Count2025}
	} else if errors.Is(err, dataprocessing.ErrNotFound) && !table.Empty() {
		sum.Warnings = append(sum.Warnings, dashboard.WarnCreationFallback)
	}
	return sum, nil
}

// Export writes the table in scope as csv or xlsx. It requires data.
func (s *DashboardService) Export(ctx context.Context, format, scope string, sel dashboard.Selection, w io.Writer) error {
	if format != FormatCSV && format != FormatXLSX {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	table, err := s.Table(ctx)
	if err != nil {
		infrastructure.RecordExport(ctx, s.metrics, format, err)
		return s.sourceError(err)
	}
	out, err := scoped(table, scope, sel)
	if err != nil {
		return err
	}

	_, span := s.tracer.Start(ctx, "dashboard.export",
		trace.WithAttributes(attribute.String("format", format), attribute.Int("rows", out.Len())))
	defer span.End()

	if format == FormatXLSX {
		err = exporter.WriteTableXLSX(w, out, exporter.DefaultSheetName)
	} else {
		err = exporter.WriteTableCSV(w, out)
	}
	infrastructure.RecordExport(ctx, s.metrics, format, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return apierrors.NewExportError("write "+format, err).
			WithContext("scope", scope).
			WithContext("rows", out.Len())
	}

	s.logger.InfoContext(ctx, "Table exported",
		slog.String("format", format),
		slog.String("scope", scope),
		slog.Int("rows", out.Len()))
	return nil
}
