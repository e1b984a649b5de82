package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"registrydash/pkg/contracts/domain"
)

// RegistryRows is a small registry export: a banner row, the header row,
// detail rows of every category, both subtotals and the grand total.
func RegistryRows() [][]string {
	return [][]string{
		{"إحصائيات عمليات السجل الوطني للمؤسسات"},
		{domain.ColumnOperationType, domain.Column2024, domain.Column2025, domain.ColumnYearlyChange},
		{"طلب تأسيس شركة", "100", "120", "20%"},
		{"إنشاء فرع", "50", "40", "-20%"},
		{"طلب عمليات تحوير", "30", "45", "50%"},
		{"تحديث عنوان", "20", "20", "0%"},
		{domain.LabelTotalCreation, "150", "160", ""},
		{domain.LabelTotalUpdate, "50", "65", ""},
		{"ترسيم رهون", "10", "15", ""},
		{"استخراج مضمون", "200", "260", ""},
		{"المجموع", "410", "500", ""},
	}
}

// WriteRegistryWorkbook writes rows to a single-sheet workbook in a temp
// directory and returns its path. A nil rows argument uses RegistryRows.
func WriteRegistryWorkbook(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	if rows == nil {
		rows = RegistryRows()
	}
	if sheet == "" {
		sheet = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("write row %d: %v", i, err)
		}
	}

	path := filepath.Join(t.TempDir(), "registry.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

// WriteRegistryCSV writes rows as CSV in a temp directory and returns its
// path. A nil rows argument uses RegistryRows.
func WriteRegistryCSV(t *testing.T, rows [][]string) string {
	t.Helper()
	if rows == nil {
		rows = RegistryRows()
	}

	path := filepath.Join(t.TempDir(), "registry.csv")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create csv: %v", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}
