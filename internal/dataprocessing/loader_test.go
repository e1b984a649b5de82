package dataprocessing

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"registrydash/pkg/contracts/domain"
)

// writeWorkbook saves rows to a temp workbook and returns its path.
func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))

	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cellName, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cellName, v))
		}
	}

	path := filepath.Join(t.TempDir(), "operations.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func registryRows() [][]interface{} {
	return [][]interface{}{
		{"إحصائيات العمليات"},
		{},
		{domain.ColumnOperationType, domain.Column2024, domain.Column2025, domain.ColumnYearlyChange, domain.ColumnTotal},
		{"طلب تأسيس شركة", 100, 120, "20%", 220},
		{"ترسيم رهون", "1,500", "abc", "-100%", 1500},
		{nil, nil, nil, nil, nil},
		{"مجموع عمليات التأسيس", 100, 120, "20%", 220},
		{"طلب عمليات تحديث", 40, 30, "-25,0%", 70},
		{"المجموع", 1640, 150, "", 1790},
	}
}

func TestLoader_LoadXLSX(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", registryRows())
	loader := NewLoader(nil)

	table, err := loader.Load(context.Background(), &XLSXSource{Path: path})
	require.NoError(t, err)
	require.Equal(t, 5, table.Len(), "blank row dropped")

	assert.Equal(t, []string{
		domain.ColumnOperationType, domain.Column2024, domain.Column2025, domain.ColumnYearlyChange, domain.ColumnTotal,
	}, table.Headers)
	assert.Equal(t, []string{
		"طلب تأسيس شركة", "ترسيم رهون", "مجموع عمليات التأسيس", "طلب عمليات تحديث", "المجموع",
	}, table.Labels())

	first := table.Records[0]
	assert.Equal(t, 0, first.Row)
	assert.Equal(t, 100.0, first.Count2024)
	assert.Equal(t, 120.0, first.Count2025)
	assert.Equal(t, "20%", first.YearlyChange)
	assert.Equal(t, "220", first.Extra[domain.ColumnTotal])
	assert.Equal(t, domain.CategoryCreation, first.Category)

	services := table.Records[1]
	assert.Equal(t, 1500.0, services.Count2024, "thousands separator")
	assert.Equal(t, 0.0, services.Count2025, "malformed count coerced to zero")
	assert.Equal(t, domain.CategoryService, services.Category)

	subtotal := table.Records[2]
	assert.True(t, subtotal.IsSubtotal)
	assert.False(t, subtotal.IsGrandTotal)
	assert.Equal(t, domain.CategoryOther, subtotal.Category)

	assert.Equal(t, domain.CategoryUpdate, table.Records[3].Category)

	last := table.Records[4]
	assert.True(t, last.IsSubtotal)
	assert.True(t, last.IsGrandTotal)
}

func TestLoader_LoadXLSXNamedSheet(t *testing.T) {
	path := writeWorkbook(t, "Data", registryRows())

	table, err := NewLoader(nil).Load(context.Background(), &XLSXSource{Path: path, Sheet: "Data"})
	require.NoError(t, err)
	assert.Equal(t, 5, table.Len())

	table, err = NewLoader(nil).Load(context.Background(), &XLSXSource{Path: path, Sheet: "Missing"})
	require.Error(t, err)
	assert.True(t, table.Empty())
	assert.ErrorIs(t, err, ErrSheetNotFound)
}

func TestLoader_LoadXLSXReader(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", registryRows())
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	table, err := NewLoader(nil).Load(context.Background(), &XLSXSource{Reader: file})
	require.NoError(t, err)
	assert.Equal(t, 5, table.Len())
}

func TestLoader_LoadCSV(t *testing.T) {
	content := "\ufeff" + strings.Join([]string{
		domain.ColumnOperationType + "," + domain.Column2024 + "," + domain.Column2025 + ",ملاحظة",
		"ترسيم إيجار,10,12,أ",
		",,,",
		"استخراج مضمون,٣٠,25.5,",
	}, "\n")
	path := filepath.Join(t.TempDir(), "ops.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src, err := SourceFromPath(path, "")
	require.NoError(t, err)

	table, err := NewLoader(nil).Load(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "أ", table.Records[0].Extra["ملاحظة"])
	assert.Equal(t, 30.0, table.Records[1].Count2024, "arabic-indic digits")
	assert.Equal(t, 25.5, table.Records[1].Count2025)
}

func TestLoader_Failures(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.xlsx")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a workbook"), 0o644))

	wrongSchema := writeWorkbook(t, "Sheet1", [][]interface{}{
		{"name", "value"},
		{"a", 1},
	})

	tests := []struct {
		name   string
		source Source
		target error
	}{
		{name: "missing file", source: &XLSXSource{Path: filepath.Join(dir, "missing.xlsx")}},
		{name: "corrupt file", source: &XLSXSource{Path: corrupt}},
		{name: "schema mismatch", source: &XLSXSource{Path: wrongSchema}, target: ErrSchemaMismatch},
		{name: "missing csv", source: &CSVSource{Path: filepath.Join(dir, "missing.csv")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewLoader(nil).Load(context.Background(), tt.source)
			require.Error(t, err)
			assert.True(t, table.Empty())
			assert.True(t, IsDataLoadError(err))

			var loadErr *DataLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.source.Name(), loadErr.Source)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	table, err := NewLoader(nil).Load(ctx, &CSVSource{Reader: strings.NewReader("")})
	require.Error(t, err)
	assert.True(t, table.Empty())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSourceFromPath(t *testing.T) {
	src, err := SourceFromPath("data/a.XLSX", "S")
	require.NoError(t, err)
	assert.Equal(t, &XLSXSource{Path: "data/a.XLSX", Sheet: "S"}, src)

	src, err = SourceFromPath("a.csv", "")
	require.NoError(t, err)
	assert.IsType(t, &CSVSource{}, src)

	_, err = SourceFromPath("a.json", "")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"", 0},
		{"  42 ", 42},
		{"1,234", 1234},
		{"1,234,567", 1234567},
		{"12,5", 12.5},
		{"3.75", 3.75},
		{"١٢٣", 123},
		{"1 200", 1200},
		{"-5", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"n/a", 0},
		{"1e308", MaxCount},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCount(tt.input))
		})
	}
}

func TestParseYearlyChange(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"12,5%", 12.5, true},
		{"-25%", -25, true},
		{"7", 7, true},
		{"", 0, false},
		{"%", 0, false},
		{"n/a", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, ok := ParseYearlyChange(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, v, 1e-9)
		})
	}
}

func TestLoader_HugeCountsStayEncodable(t *testing.T) {
	rows := [][]string{
		{domain.ColumnOperationType, domain.Column2024, domain.Column2025},
		{"طلب تأسيس شركة", "1e308", "1e308"},
		{"إنشاء فرع", "1e308", "9e307"},
	}

	table, err := NewLoader(nil).Parse(rows)
	require.NoError(t, err)

	totals := TotalExcludingSubtotals(table)
	assert.Equal(t, domain.Totals{Y2024: 2 * MaxCount, Y2025: 2 * MaxCount}, totals)
	_, err = json.Marshal(totals)
	assert.NoError(t, err)
	_, err = json.Marshal(RowChanges(table))
	assert.NoError(t, err)
}
