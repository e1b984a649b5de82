package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"registrydash/internal/infrastructure"
	"registrydash/internal/shared/testutil"
	"registrydash/pkg/contracts/domain"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	opts, err := parseFlags(args, io.Discard)
	require.NoError(t, err)

	var stdout bytes.Buffer
	err = run(context.Background(), opts, &stdout, infrastructure.NewLogger("error", io.Discard))
	return stdout.String(), err
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantErr      bool
		wantExplicit bool
		wantLabels   []string
	}{
		{name: "defaults", args: nil},
		{name: "explicit labels", args: []string{"-labels", "a,b"}, wantExplicit: true, wantLabels: []string{"a,b"}},
		{name: "explicit empty labels", args: []string{"-labels="}, wantExplicit: true, wantLabels: []string{""}},
		{name: "conflicting modes", args: []string{"-summary", "-export", "csv"}, wantErr: true},
		{name: "unknown flag", args: []string{"-nope"}, wantErr: true},
		{name: "version", args: []string{"-version"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExplicit, opts.explicit)
			assert.Equal(t, tt.wantLabels, opts.labels)
			assert.Equal(t, string(domain.ViewExecutive), opts.view)
		})
	}
}

func TestRun_View(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)

	out, err := runCLI(t, "-file", path, "-view", "overview")
	require.NoError(t, err)

	var res domain.ViewResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.ViewOverview, res.View)
	assert.NotEmpty(t, res.Cards)
	assert.NotEmpty(t, res.Charts)
}

func TestRun_ViewFromDataDir(t *testing.T) {
	path := testutil.WriteRegistryCSV(t, nil)

	out, err := runCLI(t, "-data", filepath.Dir(path), "-view", "executive")
	require.NoError(t, err)

	var res domain.ViewResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.ViewExecutive, res.View)
	require.NotNil(t, res.Statistics)
}

func TestRun_UnknownView(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)

	_, err := runCLI(t, "-file", path, "-view", "forecast")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown view")
}

func TestRun_Summary(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)

	out, err := runCLI(t, "-file", path, "-summary")
	require.NoError(t, err)

	var sum struct {
		Rows   int           `json:"rows"`
		Totals domain.Totals `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, len(testutil.RegistryRows())-2, sum.Rows)
	// Detail rows only: 100+50+30+20+10+200 and 120+40+45+20+15+260
	assert.Equal(t, domain.Totals{Y2024: 410, Y2025: 500}, sum.Totals)
}

func TestRun_ListLabels(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)

	out, err := runCLI(t, "-file", path, "-list-labels")
	require.NoError(t, err)

	var labels []domain.LabelInfo
	require.NoError(t, json.Unmarshal([]byte(out), &labels))
	require.Len(t, labels, len(testutil.RegistryRows())-2)
	assert.True(t, labels[len(labels)-1].IsGrandTotal)
}

func TestRun_ExportCSV(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)
	outPath := filepath.Join(t.TempDir(), "exports", "full.csv")

	_, err := runCLI(t, "-file", path, "-export", "csv", "-scope", "full", "-out", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, len(testutil.RegistryRows())-1)
}

func TestRun_ExportXLSXRequiresOut(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)

	_, err := runCLI(t, "-file", path, "-export", "xlsx")
	assert.Error(t, err)
}

func TestRun_ExportXLSX(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)
	outPath := filepath.Join(t.TempDir(), "filtered.xlsx")

	_, err := runCLI(t, "-file", path, "-export", "xlsx", "-labels", "ترسيم رهون,استخراج مضمون", "-out", outPath)
	require.NoError(t, err)

	f, err := excelize.OpenFile(outPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRun_ExportBadFormatRemovesFile(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)
	outPath := filepath.Join(t.TempDir(), "table.json")

	_, err := runCLI(t, "-file", path, "-export", "json", "-out", outPath)
	require.Error(t, err)
	assert.NoFileExists(t, outPath)
}

func TestRun_ChartPNG(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)
	outPath := filepath.Join(t.TempDir(), "top5.png")

	_, err := runCLI(t, "-file", path, "-view", "executive", "-chart", "top5", "-out", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data[:8])
}

func TestRun_ChartRequiresOut(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)

	_, err := runCLI(t, "-file", path, "-chart", "top5")
	assert.Error(t, err)
}

func TestRun_SourceErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := runCLI(t, "-file", filepath.Join(t.TempDir(), "missing.xlsx"))
		assert.Error(t, err)
	})

	t.Run("empty data dir", func(t *testing.T) {
		_, err := runCLI(t, "-data", t.TempDir())
		assert.Error(t, err)
	})

	t.Run("schema mismatch", func(t *testing.T) {
		path := testutil.WriteRegistryWorkbook(t, "", [][]string{{"a", "b"}, {"1", "2"}})
		_, err := runCLI(t, "-file", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema mismatch")
	})
}

func TestRun_LogsCarryRunTraceID(t *testing.T) {
	path := testutil.WriteRegistryWorkbook(t, "", nil)
	opts, err := parseFlags([]string{"-file", path, "-summary"}, io.Discard)
	require.NoError(t, err)

	var logs bytes.Buffer
	require.NoError(t, run(context.Background(), opts, io.Discard, infrastructure.NewLogger("info", &logs)))

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.NotEmpty(t, lines)
	var traceID string
	for _, line := range lines {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if id, ok := entry["trace_id"].(string); ok {
			if traceID == "" {
				traceID = id
			}
			assert.Equal(t, traceID, id)
		}
	}
	assert.NotEmpty(t, traceID)
}
