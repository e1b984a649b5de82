package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"registrydash/internal/dashboard"
	"registrydash/internal/dataprocessing"
	apierrors "registrydash/internal/errors"
	"registrydash/internal/middleware"
	"registrydash/internal/services"
	"registrydash/internal/shared/testutil"
	"registrydash/pkg/contracts/domain"
	"registrydash/pkg/contracts/events"
)

// MockDashboardService is a mock implementation of DashboardServiceInterface
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) View(ctx context.Context, view domain.ViewName, sel dashboard.Selection) (domain.ViewResult, error) {
	args := m.Called(view, sel)
	return args.Get(0).(domain.ViewResult), args.Error(1)
}

func (m *MockDashboardService) Views() []services.ViewInfo {
	args := m.Called()
	return args.Get(0).([]services.ViewInfo)
}

func (m *MockDashboardService) Chart(ctx context.Context, view domain.ViewName, chartID string, sel dashboard.Selection) (domain.ChartConfig, error) {
	args := m.Called(view, chartID, sel)
	return args.Get(0).(domain.ChartConfig), args.Error(1)
}

func (m *MockDashboardService) RenderChart(ctx context.Context, view domain.ViewName, chartID string, sel dashboard.Selection, w io.Writer) error {
	args := m.Called(view, chartID, sel)
	if args.Error(0) == nil {
		io.WriteString(w, args.String(1))
	}
	return args.Error(0)
}

func (m *MockDashboardService) Operations(ctx context.Context, scope string, sel dashboard.Selection) (services.OperationsResult, error) {
	args := m.Called(scope, sel)
	return args.Get(0).(services.OperationsResult), args.Error(1)
}

func (m *MockDashboardService) Labels(ctx context.Context) ([]domain.LabelInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LabelInfo), args.Error(1)
}

func (m *MockDashboardService) Summary(ctx context.Context) (services.Summary, error) {
	args := m.Called()
	return args.Get(0).(services.Summary), args.Error(1)
}

func (m *MockDashboardService) Reload(ctx context.Context) (events.DataReloaded, error) {
	args := m.Called()
	return args.Get(0).(events.DataReloaded), args.Error(1)
}

func (m *MockDashboardService) Export(ctx context.Context, format, scope string, sel dashboard.Selection, w io.Writer) error {
	args := m.Called(format, scope, sel)
	if args.Error(0) == nil {
		io.WriteString(w, args.String(1))
	}
	return args.Error(0)
}

func (m *MockDashboardService) DefaultSelection() dashboard.Selection {
	return dashboard.DefaultSelection(nil)
}

func (m *MockDashboardService) ResolveSelection(labels []string, explicit bool) dashboard.Selection {
	if !explicit {
		return m.DefaultSelection()
	}
	return dashboard.ExplicitSelection(labels)
}

func newTestRouter(t *testing.T, svc *MockDashboardService) (chi.Router, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)
	validator := middleware.NewValidationMiddleware(logger, errorHandler)

	h := NewDashboardHandler(svc, validator, logger, errorHandler)
	h.now = func() time.Time { return time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Mount("/api/data", h.DataRoutes())
	r.Mount("/api/views", h.ViewRoutes())
	return r, logs
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDashboardHandler_ListViews(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Views").Return([]services.ViewInfo{
		{Name: domain.ViewOverview, Title: "Overview"},
		{Name: domain.ViewExecutive, Title: "Executive"},
	})
	r, _ := newTestRouter(t, svc)

	w := serve(r, http.MethodGet, "/api/views")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(2), body["count"])
	svc.AssertExpectations(t)
}

func TestDashboardHandler_GetView(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setup          func(*MockDashboardService)
		expectedStatus int
		expectedType   string
	}{
		{
			name:   "default selection",
			target: "/api/views/overview",
			setup: func(m *MockDashboardService) {
				m.On("View", domain.ViewOverview, dashboard.DefaultSelection(nil)).
					Return(domain.ViewResult{View: domain.ViewOverview, Warnings: []string{}}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "explicit labels",
			target: "/api/views/creation?labels=a,b&labels=c",
			setup: func(m *MockDashboardService) {
				m.On("View", domain.ViewCreation, dashboard.Selection{Labels: []string{"a", "b", "c"}, Explicit: true}).
					Return(domain.ViewResult{View: domain.ViewCreation}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "view name is case insensitive",
			target: "/api/views/Executive",
			setup: func(m *MockDashboardService) {
				m.On("View", domain.ViewExecutive, mock.Anything).
					Return(domain.ViewResult{View: domain.ViewExecutive}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown view",
			target:         "/api/views/forecast",
			setup:          func(m *MockDashboardService) {},
			expectedStatus: http.StatusNotFound,
			expectedType:   "application/problem+json",
		},
		{
			name:           "control character in label",
			target:         "/api/views/services?labels=%07bell",
			setup:          func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "application/problem+json",
		},
		{
			name:   "request cancelled",
			target: "/api/views/overview",
			setup: func(m *MockDashboardService) {
				m.On("View", domain.ViewOverview, mock.Anything).
					Return(domain.ViewResult{}, context.DeadlineExceeded)
			},
			expectedStatus: http.StatusGatewayTimeout,
			expectedType:   "application/problem+json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setup(svc)
			r, _ := newTestRouter(t, svc)

			w := serve(r, http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, w.Header().Get("Content-Type"))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_GetView_LogsRequest(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("View", domain.ViewModification, mock.Anything).Return(domain.ViewResult{}, nil)
	r, logs := newTestRouter(t, svc)

	w := serve(r, http.MethodGet, "/api/views/modification")

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, logs.ContainsMessage("Building view"))
	assert.True(t, logs.ContainsAttr("view", "modification"))
	assert.True(t, logs.ContainsAttr("component", "dashboard_handler"))
}

func TestDashboardHandler_GetChart(t *testing.T) {
	sel := dashboard.DefaultSelection(nil)
	loadErr := &dataprocessing.DataLoadError{Source: "registry.xlsx", Err: dataprocessing.ErrSheetNotFound}

	tests := []struct {
		name           string
		target         string
		setup          func(*MockDashboardService)
		expectedStatus int
		expectedType   string
		expectedBody   string
	}{
		{
			name:   "chart config",
			target: "/api/views/overview/charts/totals",
			setup: func(m *MockDashboardService) {
				m.On("Chart", domain.ViewOverview, "totals", sel).
					Return(domain.ChartConfig{ID: "totals", Kind: domain.ChartBar}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedType:   "application/json",
		},
		{
			name:   "png",
			target: "/api/views/executive/charts/top5.png",
			setup: func(m *MockDashboardService) {
				m.On("RenderChart", domain.ViewExecutive, "top5", sel).Return(nil, "\x89PNG")
			},
			expectedStatus: http.StatusOK,
			expectedType:   "image/png",
			expectedBody:   "\x89PNG",
		},
		{
			name:   "unknown chart",
			target: "/api/views/executive/charts/nope.png",
			setup: func(m *MockDashboardService) {
				m.On("RenderChart", domain.ViewExecutive, "nope", sel).
					Return(fmt.Errorf("%w: executive/nope", services.ErrChartNotFound), "")
			},
			expectedStatus: http.StatusNotFound,
			expectedType:   "application/problem+json",
		},
		{
			name:   "data unavailable",
			target: "/api/views/overview/charts/totals.png",
			setup: func(m *MockDashboardService) {
				m.On("RenderChart", domain.ViewOverview, "totals", sel).Return(loadErr, "")
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedType:   "application/problem+json",
		},
		{
			name:           "invalid chart id",
			target:         "/api/views/overview/charts/Top-5.png",
			setup:          func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "application/problem+json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setup(svc)
			r, _ := newTestRouter(t, svc)

			w := serve(r, http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), tt.expectedType),
				"content type %q", w.Header().Get("Content-Type"))
			if tt.expectedBody != "" {
				assert.Equal(t, tt.expectedBody, w.Body.String())
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_GetChart_NotFoundDetails(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Chart", domain.ViewCreation, "missing", mock.Anything).
		Return(domain.ChartConfig{}, services.ErrChartNotFound)
	r, _ := newTestRouter(t, svc)

	w := serve(r, http.MethodGet, "/api/views/creation/charts/missing")

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, apierrors.CodeChartNotFound, body["error_code"])
}

func TestDashboardHandler_GetOperations(t *testing.T) {
	table := domain.Table{Records: []domain.OperationRecord{
		{OperationType: "ترسيم رهون", Count2024: 10, Count2025: 15},
	}}

	svc := new(MockDashboardService)
	svc.On("Operations", services.ScopeFull, dashboard.DefaultSelection(nil)).
		Return(services.OperationsResult{Scope: services.ScopeFull, Table: table, Warnings: []string{}}, nil)
	r, _ := newTestRouter(t, svc)

	w := serve(r, http.MethodGet, "/api/data/operations?scope=full")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["count"])
	svc.AssertExpectations(t)
}

func TestDashboardHandler_GetOperations_InvalidScope(t *testing.T) {
	svc := new(MockDashboardService)
	r, _ := newTestRouter(t, svc)

	w := serve(r, http.MethodGet, "/api/data/operations?scope=partial")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, apierrors.CodeValidationFailed, body["error_code"])
	svc.AssertNotCalled(t, "Operations", mock.Anything, mock.Anything)
}

func TestDashboardHandler_GetLabels(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Labels").Return([]domain.LabelInfo{
		{OperationType: domain.LabelTotalCreation, Category: domain.CategoryCreation, IsSubtotal: true},
		{OperationType: "المجموع", IsGrandTotal: true},
	}, nil)
	r, _ := newTestRouter(t, svc)

	w := serve(r, http.MethodGet, "/api/data/labels")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["count"])
}

func TestDashboardHandler_GetDefaultSelection(t *testing.T) {
	svc := new(MockDashboardService)
	r, _ := newTestRouter(t, svc)

	w := serve(r, http.MethodGet, "/api/data/selection/default")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(len(dashboard.DefaultLabels)), body["count"])
}

func TestDashboardHandler_GetSummary(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Summary").Return(services.Summary{
		Rows:      9,
		Totals:    domain.Totals{Y2024: 410, Y2025: 500},
		ChangePct: 21.95,
		Warnings:  []string{},
	}, nil)
	r, _ := newTestRouter(t, svc)

	w := serve(r, http.MethodGet, "/api/data/summary")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(9), data["rows"])
	totals := data["totals"].(map[string]interface{})
	assert.Equal(t, float64(410), totals["total_2024"])
}

func TestDashboardHandler_Reload(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Reload").Return(events.DataReloaded{Status: "ok", Rows: 9, Source: "registry.xlsx"}, nil)
	r, logs := newTestRouter(t, svc)

	w := serve(r, http.MethodPost, "/api/data/reload")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.True(t, logs.ContainsMessage("Reload requested"))

	w = serve(r, http.MethodGet, "/api/data/reload")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestDashboardHandler_Export(t *testing.T) {
	loadErr := &dataprocessing.DataLoadError{Source: "registry.xlsx", Err: dataprocessing.ErrEmptyInput}

	tests := []struct {
		name                string
		target              string
		setup               func(*MockDashboardService)
		expectedStatus      int
		expectedType        string
		expectedDisposition string
	}{
		{
			name:   "csv default",
			target: "/api/data/export",
			setup: func(m *MockDashboardService) {
				m.On("Export", "csv", "filtered", mock.Anything).Return(nil, "a,b\n")
			},
			expectedStatus:      http.StatusOK,
			expectedType:        "text/csv; charset=utf-8",
			expectedDisposition: `attachment; filename="statistiques_operations_filtered_20250301_103000.csv"`,
		},
		{
			name:   "xlsx full",
			target: "/api/data/export?format=XLSX&scope=full",
			setup: func(m *MockDashboardService) {
				m.On("Export", "xlsx", "full", mock.Anything).Return(nil, "PK")
			},
			expectedStatus:      http.StatusOK,
			expectedType:        contentTypeXLSX,
			expectedDisposition: `attachment; filename="statistiques_operations_full_20250301_103000.xlsx"`,
		},
		{
			name:           "unsupported format",
			target:         "/api/data/export?format=pdf",
			setup:          func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "application/problem+json",
		},
		{
			name:   "data unavailable",
			target: "/api/data/export",
			setup: func(m *MockDashboardService) {
				m.On("Export", "csv", "filtered", mock.Anything).Return(loadErr, "")
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedType:   "application/problem+json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setup(svc)
			r, _ := newTestRouter(t, svc)

			w := serve(r, http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedType, w.Header().Get("Content-Type"))
			if tt.expectedDisposition != "" {
				assert.Equal(t, tt.expectedDisposition, w.Header().Get("Content-Disposition"))
			}
			svc.AssertExpectations(t)
		})
	}
}
