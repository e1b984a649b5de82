package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrydash/internal/config"
	"registrydash/internal/shared/testutil"
	"registrydash/pkg/contracts/events"
)

// newTestConfig returns a configuration rooted in a temp dir and reading the
// fixture workbook.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		BaseDir:    dir,
		DataDir:    filepath.Join(dir, "data"),
		ExportsDir: filepath.Join(dir, "data", "exports"),
		LogsDir:    filepath.Join(dir, "logs"),
	}
	cfg.Logging.Output = "console"
	cfg.Security.RateLimit.Enabled = false
	cfg.Data.SourcePath = testutil.WriteRegistryWorkbook(t, "", nil)
	return cfg
}

func newTestApplication(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	app, err := NewApplicationWithConfig(cfg, logger)
	require.NoError(t, err)

	app.WebSocketHub.Start()
	t.Cleanup(app.WebSocketHub.Stop)
	return app
}

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestNewApplicationWithConfig(t *testing.T) {
	app := newTestApplication(t, newTestConfig(t))

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.Dashboard)
	assert.NotNil(t, app.HealthService)
	assert.NotNil(t, app.WebSocketHub)
	assert.NotNil(t, app.OTelProviders)
	assert.NotNil(t, app.Metrics)
	assert.Equal(t, ":8080", app.Server.Addr)
	assert.DirExists(t, app.Paths.ExportsDir)
}

func TestNewApplicationWithConfig_BadSource(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Data.SourceType = "parquet"

	logger, _ := testutil.NewTestLogger(t)
	_, err := NewApplicationWithConfig(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize services")
}

func TestApplication_Routes(t *testing.T) {
	app := newTestApplication(t, newTestConfig(t))
	srv := httptest.NewServer(app.Router)
	defer srv.Close()

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedType   string
	}{
		{"health", "/api/health", http.StatusOK, "application/json"},
		{"ready", "/api/health/ready", http.StatusOK, "application/json"},
		{"live", "/api/health/live", http.StatusOK, "application/json"},
		{"version", "/api/version", http.StatusOK, "application/json"},
		{"views", "/api/views", http.StatusOK, "application/json"},
		{"overview", "/api/views/overview", http.StatusOK, "application/json"},
		{"executive", "/api/views/executive?labels=", http.StatusOK, "application/json"},
		{"trailing slash", "/api/views/creation/", http.StatusOK, "application/json"},
		{"chart config", "/api/views/overview/charts/totals", http.StatusOK, "application/json"},
		{"chart png", "/api/views/overview/charts/totals.png", http.StatusOK, "image/png"},
		{"operations", "/api/data/operations?scope=full", http.StatusOK, "application/json"},
		{"labels", "/api/data/labels", http.StatusOK, "application/json"},
		{"default selection", "/api/data/selection/default", http.StatusOK, "application/json"},
		{"summary", "/api/data/summary", http.StatusOK, "application/json"},
		{"csv export", "/api/data/export", http.StatusOK, "text/csv; charset=utf-8"},
		{"xlsx export", "/api/data/export?format=xlsx&scope=full", http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"unknown view", "/api/views/forecast", http.StatusNotFound, "application/problem+json"},
		{"unknown chart", "/api/views/overview/charts/nope.png", http.StatusNotFound, "application/problem+json"},
		{"unknown route", "/api/nope", http.StatusNotFound, "application/problem+json"},
		{"metrics", "/metrics", http.StatusOK, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), tt.expectedType),
				"content type %q", resp.Header.Get("Content-Type"))
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestApplication_SummaryFromWorkbook(t *testing.T) {
	app := newTestApplication(t, newTestConfig(t))
	srv := httptest.NewServer(app.Router)
	defer srv.Close()

	status, body := getJSON(t, srv.URL+"/api/data/summary")
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]interface{})
	totals := data["totals"].(map[string]interface{})
	assert.Equal(t, float64(410), totals["total_2024"])
	assert.Equal(t, float64(500), totals["total_2025"])
}

func TestApplication_MissingSource(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Data.SourcePath = filepath.Join(cfg.Paths.DataDir, "missing.xlsx")
	app := newTestApplication(t, cfg)
	srv := httptest.NewServer(app.Router)
	defer srv.Close()

	status, body := getJSON(t, srv.URL+"/api/views/overview")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["warnings"])

	status, _ = getJSON(t, srv.URL+"/api/data/export")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, body = getJSON(t, srv.URL+"/api/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not_ready", body["status"])
}

func TestApplication_ReloadBroadcasts(t *testing.T) {
	app := newTestApplication(t, newTestConfig(t))
	srv := httptest.NewServer(app.Router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var greeting events.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, events.MessageTypeSystemStatus, greeting.Type)

	resp, err := http.Post(srv.URL+"/api/data/reload", "application/json", nil)
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for {
		var msg events.WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != events.MessageTypeDataReloaded {
			continue
		}
		data := msg.Data.(map[string]interface{})
		assert.Equal(t, "ok", data["status"])
		assert.Equal(t, float64(9), data["rows"])
		return
	}
}

func TestApplication_WebSocketOrigin(t *testing.T) {
	app := newTestApplication(t, newTestConfig(t))
	srv := httptest.NewServer(app.Router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	t.Run("plain http request", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/ws")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	})
}

func TestApplication_originAllowed(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Security.AllowedOrigins = []string{"https://dash.example"}
	app := newTestApplication(t, cfg)

	tests := []struct {
		name    string
		origin  string
		host    string
		allowed bool
	}{
		{"no origin", "", "localhost:8080", true},
		{"same host", "http://localhost:8080", "localhost:8080", true},
		{"configured", "https://dash.example", "api.example", true},
		{"case insensitive", "HTTPS://DASH.EXAMPLE", "api.example", true},
		{"foreign", "https://evil.example", "api.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.allowed, app.originAllowed(r))
		})
	}
}

func TestApplication_getCORSConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Security.AllowedOrigins = []string{"https://dash.example"}

	app := newTestApplication(t, cfg)
	cors := app.getCORSConfig()
	assert.Equal(t, []string{"https://dash.example"}, cors.AllowedOrigins)
	assert.Contains(t, cors.ExposedHeaders, "Content-Disposition")

	app.Config.Logging.Development = true
	cors = app.getCORSConfig()
	assert.Contains(t, cors.AllowedOrigins, "http://localhost:3000")
	assert.Len(t, app.Config.Security.AllowedOrigins, 1)
}

func TestApplication_performStartupHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		app := newTestApplication(t, newTestConfig(t))
		assert.NoError(t, app.performStartupHealthCheck(context.Background()))
	})

	t.Run("missing source", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Data.SourcePath = filepath.Join(cfg.Paths.DataDir, "missing.xlsx")
		app := newTestApplication(t, cfg)

		err := app.performStartupHealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Source file not found")
	})
}

func TestApplication_StartStop(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := newTestConfig(t)
	cfg.Server.Port = port
	app := newTestApplication(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx, cancel))

	healthURL := "http://127.0.0.1:" + strconv.Itoa(port) + "/api/health"
	assert.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		return app.Dashboard.Status().Loaded
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, app.Stop(context.Background()))

	_, err = http.Get(healthURL)
	assert.Error(t, err)
}
