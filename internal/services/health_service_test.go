package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"registrydash/internal/config"
	"registrydash/internal/shared/testutil"
)

type mockDataset struct {
	mock.Mock
}

func (m *mockDataset) Status() DatasetStatus {
	return m.Called().Get(0).(DatasetStatus)
}

type fixedCounter int

func (c fixedCounter) ClientCount() int { return int(c) }

func TestHealthService_HealthAndLiveness(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	hs := NewHealthService(BuildInfo{Version: "1.2.0", BuildID: "abc"}, nil, nil, nil, logger)
	ctx := context.Background()

	health := hs.HealthCheck(ctx)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1.2.0", health.Version)

	live := hs.LivenessCheck(ctx)
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	v := hs.Version()
	assert.Equal(t, "1.2.0", v["version"])
	assert.Equal(t, "abc", v["build_id"])
	assert.NotContains(t, v, "build_time")
	assert.Equal(t, "v1", v["api_version"])

	testutil.AssertLogAttr(t, logs, "component", "health_service")
}

func TestHealthService_Readiness(t *testing.T) {
	exportsDir := t.TempDir()

	tests := []struct {
		name        string
		status      DatasetStatus
		exportsDir  string
		wantStatus  string
		wantDataset string
	}{
		{
			name:        "loaded",
			status:      DatasetStatus{Loaded: true, Rows: 9, Source: "registry.xlsx", LoadedAt: time.Now()},
			exportsDir:  exportsDir,
			wantStatus:  "ready",
			wantDataset: "ready",
		},
		{
			name:        "not loaded yet",
			status:      DatasetStatus{Source: "registry.xlsx"},
			exportsDir:  exportsDir,
			wantStatus:  "ready",
			wantDataset: "ready",
		},
		{
			name:        "last load failed",
			status:      DatasetStatus{Loaded: true, Source: "registry.xlsx", LastError: "load registry.xlsx: no such file"},
			exportsDir:  exportsDir,
			wantStatus:  "not_ready",
			wantDataset: "not_ready",
		},
		{
			name:        "exports dir missing",
			status:      DatasetStatus{Loaded: true, Rows: 9, Source: "registry.xlsx"},
			exportsDir:  "/nonexistent/exports",
			wantStatus:  "not_ready",
			wantDataset: "ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := new(mockDataset)
			ds.On("Status").Return(tt.status)

			paths := &config.Paths{ExportsDir: tt.exportsDir}
			hs := NewHealthService(BuildInfo{Version: "dev"}, paths, ds, fixedCounter(2), nil)

			ready := hs.ReadinessCheck(context.Background())
			assert.Equal(t, tt.wantStatus, ready.Status)

			dataset, ok := ready.Services["dataset"].(ServiceHealth)
			require.True(t, ok)
			assert.Equal(t, tt.wantDataset, dataset.Status)

			wsHealth := ready.Services["websocket"].(ServiceHealth)
			assert.Equal(t, "2 clients connected", wsHealth.Message)
			ds.AssertExpectations(t)
		})
	}
}

func TestHealthService_ReadinessWithoutDataset(t *testing.T) {
	hs := NewHealthService(BuildInfo{}, nil, nil, nil, nil)
	ready := hs.ReadinessCheck(context.Background())

	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "ready", ready.Services["websocket"].(ServiceHealth).Status)
	assert.Equal(t, "ready", ready.Services["exports"].(ServiceHealth).Status)
}

func TestHealthService_UsesDashboardStatus(t *testing.T) {
	svc := newWorkbookService(t, DashboardOptions{})
	_, err := svc.Table(context.Background())
	require.NoError(t, err)

	hs := NewHealthService(BuildInfo{}, nil, svc, nil, nil)
	dataset := hs.ReadinessCheck(context.Background()).Services["dataset"].(ServiceHealth)
	assert.Equal(t, "ready", dataset.Status)
	assert.Contains(t, dataset.Message, "9 rows")
}
