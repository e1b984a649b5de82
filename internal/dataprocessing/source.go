package dataprocessing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Source yields the raw cell grid of a registry table.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string
	// ReadRows returns every row of the sheet, header rows included.
	ReadRows(ctx context.Context) ([][]string, error)
}

// SourceKind selects a Source implementation.
type SourceKind string

const (
	SourceXLSX   SourceKind = "xlsx"
	SourceCSV    SourceKind = "csv"
	SourceSheets SourceKind = "sheets"
)

// XLSXSource reads a worksheet from an Excel workbook on disk or from a
// reader. When Sheet is empty the first sheet carrying the required headers
// is used.
type XLSXSource struct {
	Path   string
	Reader io.Reader
	Sheet  string
}

func (s *XLSXSource) Name() string {
	if s.Path != "" {
		return s.Path
	}
	return "xlsx upload"
}

func (s *XLSXSource) ReadRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		f   *excelize.File
		err error
	)
	switch {
	case s.Reader != nil:
		f, err = excelize.OpenReader(s.Reader)
	case s.Path != "":
		f, err = excelize.OpenFile(s.Path)
	default:
		return nil, fmt.Errorf("xlsx source: no path or reader")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if s.Sheet != "" {
		if idx, _ := f.GetSheetIndex(s.Sheet); idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, s.Sheet)
		}
		return f.GetRows(s.Sheet)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrSheetNotFound
	}
	for _, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		if _, _, ok := findHeader(rows); ok {
			return rows, nil
		}
	}
	// Nothing matched; hand back the first sheet so the loader reports the
	// schema mismatch.
	return f.GetRows(sheets[0])
}

// CSVSource reads a comma separated file. A leading UTF-8 BOM is tolerated.
type CSVSource struct {
	Path   string
	Reader io.Reader
}

func (s *CSVSource) Name() string {
	if s.Path != "" {
		return s.Path
	}
	return "csv upload"
}

func (s *CSVSource) ReadRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := s.Reader
	if r == nil {
		if s.Path == "" {
			return nil, fmt.Errorf("csv source: no path or reader")
		}
		file, err := os.Open(s.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open csv: %w", err)
		}
		defer file.Close()
		r = file
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}

// SourceFromPath picks a file source from the extension of path.
func SourceFromPath(path, sheet string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx":
		return &XLSXSource{Path: path, Sheet: sheet}, nil
	case ".csv":
		return &CSVSource{Path: path}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, filepath.Ext(path))
	}
}
