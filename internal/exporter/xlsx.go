package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"registrydash/pkg/contracts/domain"
)

// DefaultSheetName is the worksheet written by WriteTableXLSX.
const DefaultSheetName = "العمليات"

// WriteTableXLSX writes the table as a right-to-left workbook with a bold
// header row.
func WriteTableXLSX(out io.Writer, table domain.Table, sheet string) error {
	f, err := buildWorkbook(table, sheet)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ExportTableXLSX saves the workbook under the exports directory and returns
// the full path.
func (w *CSVWriter) ExportTableXLSX(filePath string, table domain.Table) (string, error) {
	fullPath := w.resolvePath(filePath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := buildWorkbook(table, DefaultSheetName)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	w.logger.Info("Wrote XLSX export",
		slog.String("full_path", fullPath),
		slog.Int("record_count", table.Len()))
	return fullPath, nil
}

func buildWorkbook(table domain.Table, sheet string) (*excelize.File, error) {
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	rtl := true
	if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set sheet view: %w", err)
	}

	headers := exportHeaders(table)
	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to style headers: %w", err)
	}

	for r, rec := range table.Records {
		row := make([]interface{}, len(headers))
		for i, h := range headers {
			row[i] = cellValue(h, rec)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write record %d: %w", r, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 45); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
