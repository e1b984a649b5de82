package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"registrydash/internal/config"
	apierrors "registrydash/internal/errors"
	"registrydash/internal/middleware"
	"registrydash/internal/services"
	"registrydash/pkg/contracts/domain"
)

const (
	pngSuffix = ".png"

	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePNG  = "image/png"
)

type viewCtxKey struct{}

// DashboardHandler serves the registry data and the dashboard views
type DashboardHandler struct {
	service      DashboardServiceInterface
	validator    *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	now          func() time.Time
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, validator *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
		now:          time.Now,
	}
}

// DataRoutes returns the routes mounted under /api/data
func (h *DashboardHandler) DataRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/operations", h.GetOperations)
	r.Get("/labels", h.GetLabels)
	r.Get("/selection/default", h.GetDefaultSelection)
	r.Get("/summary", h.GetSummary)
	r.Post("/reload", h.Reload)
	r.Get("/export", h.Export)

	return r
}

// ViewRoutes returns the routes mounted under /api/views
func (h *DashboardHandler) ViewRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.ListViews)
	r.Route("/{view}", func(r chi.Router) {
		r.Use(h.ViewCtx)
		r.Get("/", h.GetView)
		// {chart} or {chart}.png
		r.Get("/charts/{chart}", h.GetChart)
	})

	return r
}

// ViewCtx middleware resolves the view parameter
func (h *DashboardHandler) ViewCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		view := domain.ViewName(strings.ToLower(chi.URLParam(r, "view")))
		if !view.Valid() {
			h.errorHandler.HandleError(w, r, apierrors.ViewNotFoundError(string(view)))
			return
		}
		ctx := context.WithValue(r.Context(), viewCtxKey{}, view)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func viewFromContext(ctx context.Context) domain.ViewName {
	view, _ := ctx.Value(viewCtxKey{}).(domain.ViewName)
	return view
}

// ListViews handles GET /api/views
func (h *DashboardHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	views := h.service.Views()
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   views,
		"count":  len(views),
	})
}

// GetView handles GET /api/views/{view}
func (h *DashboardHandler) GetView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := viewFromContext(ctx)

	q := middleware.DecodeViewQuery(r, string(view))
	if !h.validator.Validate(w, r, q) {
		return
	}
	sel := h.service.ResolveSelection(q.Labels, q.ExplicitLabels)

	h.logger.InfoContext(ctx, "Building view",
		slog.String("view", string(view)),
		slog.Int("labels", len(sel.Labels)),
		slog.Bool("explicit", sel.Explicit),
		slog.String("request_id", middleware.GetReqID(ctx)))

	result, err := h.service.View(ctx, view, sel)
	if err != nil {
		h.handleServiceError(w, r, err, string(view), "")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// GetChart handles GET /api/views/{view}/charts/{chart}. A .png suffix
// returns the rendered image instead of the chart config.
func (h *DashboardHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := viewFromContext(ctx)

	chartID := chi.URLParam(r, "chart")
	asPNG := strings.HasSuffix(chartID, pngSuffix)
	chartID = strings.TrimSuffix(chartID, pngSuffix)

	q := middleware.ChartQuery{ViewQuery: middleware.DecodeViewQuery(r, string(view)), Chart: chartID}
	if !h.validator.Validate(w, r, q) {
		return
	}
	sel := h.service.ResolveSelection(q.Labels, q.ExplicitLabels)

	if !asPNG {
		cfg, err := h.service.Chart(ctx, view, chartID, sel)
		if err != nil {
			h.handleServiceError(w, r, err, string(view), chartID)
			return
		}
		render.JSON(w, r, map[string]interface{}{
			"status": "success",
			"data":   cfg,
		})
		return
	}

	h.logger.InfoContext(ctx, "Rendering chart",
		slog.String("view", string(view)),
		slog.String("chart", chartID),
		slog.String("request_id", middleware.GetReqID(ctx)))

	// Render fully before writing so failures still produce a problem response
	var buf bytes.Buffer
	if err := h.service.RenderChart(ctx, view, chartID, sel, &buf); err != nil {
		h.handleServiceError(w, r, err, string(view), chartID)
		return
	}

	w.Header().Set("Content-Type", contentTypePNG)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.ErrorContext(ctx, "Failed to write chart image",
			slog.String("chart", chartID),
			slog.String("error", err.Error()))
	}
}

// GetOperations handles GET /api/data/operations
func (h *DashboardHandler) GetOperations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := middleware.DecodeOperationsQuery(r)
	if !h.validator.Validate(w, r, q) {
		return
	}
	sel := h.service.ResolveSelection(q.Labels, q.ExplicitLabels)

	result, err := h.service.Operations(ctx, q.Scope, sel)
	if err != nil {
		h.handleServiceError(w, r, err, "", "")
		return
	}

	h.logger.InfoContext(ctx, "Operations retrieved",
		slog.String("scope", result.Scope),
		slog.Int("count", result.Table.Len()),
		slog.String("request_id", middleware.GetReqID(ctx)))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
		"count":  result.Table.Len(),
	})
}

// GetLabels handles GET /api/data/labels
func (h *DashboardHandler) GetLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := h.service.Labels(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "", "")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   labels,
		"count":  len(labels),
	})
}

// GetDefaultSelection handles GET /api/data/selection/default
func (h *DashboardHandler) GetDefaultSelection(w http.ResponseWriter, r *http.Request) {
	sel := h.service.DefaultSelection()
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   sel,
		"count":  len(sel.Labels),
	})
}

// GetSummary handles GET /api/data/summary
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "", "")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// Reload handles POST /api/data/reload
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.logger.InfoContext(ctx, "Reload requested",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("remote_addr", middleware.GetRealIP(r)))

	result, err := h.service.Reload(ctx)
	if err != nil {
		h.handleServiceError(w, r, err, "", "")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// Export handles GET /api/data/export
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := middleware.DecodeExportQuery(r)
	if !h.validator.Validate(w, r, q) {
		return
	}
	sel := h.service.ResolveSelection(q.Labels, q.ExplicitLabels)

	var buf bytes.Buffer
	if err := h.service.Export(ctx, q.Format, q.Scope, sel, &buf); err != nil {
		h.handleServiceError(w, r, err, "", "")
		return
	}

	contentType := contentTypeCSV
	if q.Format == services.FormatXLSX {
		contentType = contentTypeXLSX
	}
	filename := config.ExportFileName(q.Scope, q.Format, h.now())

	h.logger.InfoContext(ctx, "Serving export",
		slog.String("format", q.Format),
		slog.String("scope", q.Scope),
		slog.String("filename", filename),
		slog.Int("bytes", buf.Len()),
		slog.String("request_id", middleware.GetReqID(ctx)))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.ErrorContext(ctx, "Failed to write export",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
	}
}

// handleServiceError maps service sentinels to API errors before handing
// off to the RFC 7807 error handler.
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, view, chartID string) {
	switch {
	case errors.Is(err, services.ErrChartNotFound):
		err = apierrors.ChartNotFoundError(view, chartID)
	case errors.Is(err, services.ErrUnsupportedFormat):
		err = apierrors.ErrValidation(middleware.ParamFormat, err.Error())
	case errors.Is(err, services.ErrUnsupportedScope):
		err = apierrors.ErrValidation(middleware.ParamScope, err.Error())
	}
	h.errorHandler.HandleError(w, r, err)
}
