package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrydash/internal/config"
	"registrydash/internal/services"
	"registrydash/internal/shared/testutil"
)

type stubDataset struct {
	status services.DatasetStatus
}

func (s stubDataset) Status() services.DatasetStatus { return s.status }

type stubCounter int

func (c stubCounter) ClientCount() int { return int(c) }

func newHealthRouter(t *testing.T, dataset services.DatasetStatusProvider) chi.Router {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	paths := &config.Paths{ExportsDir: t.TempDir()}
	svc := services.NewHealthService(services.BuildInfo{Version: "v1.0.0-test"}, paths, dataset, stubCounter(2), logger)

	h := NewHealthHandler(svc, logger)
	r := chi.NewRouter()
	r.Mount("/api/health", h.Routes())
	r.Get("/api/version", h.Version)
	return r
}

func TestHealthHandler_Endpoints(t *testing.T) {
	r := newHealthRouter(t, stubDataset{status: services.DatasetStatus{Loaded: true, Rows: 9, LoadedAt: time.Now()}})

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedField  string
		expectedValue  interface{}
	}{
		{"health", "/api/health", http.StatusOK, "status", "ok"},
		{"ready", "/api/health/ready", http.StatusOK, "status", "ready"},
		{"live", "/api/health/live", http.StatusOK, "status", "alive"},
		{"version", "/api/version", http.StatusOK, "version", "v1.0.0-test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.expectedValue, body[tt.expectedField])
		})
	}
}

func TestHealthHandler_NotReady(t *testing.T) {
	r := newHealthRouter(t, stubDataset{status: services.DatasetStatus{LastError: "load registry.xlsx: sheet not found"}})

	w := serve(r, http.MethodGet, "/api/health/ready")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "not_ready", body["status"])
}

func TestHealthHandler_Direct(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	svc := services.NewHealthService(services.BuildInfo{Version: "dev"}, nil, nil, nil, logger)
	h := NewHealthHandler(svc, logger)

	req := httptest.NewRequest(http.MethodGet, "/api/health/ready", nil).WithContext(context.Background())
	w := httptest.NewRecorder()
	h.ReadinessCheck(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.True(t, logs.ContainsMessage("Service not ready"))
}
