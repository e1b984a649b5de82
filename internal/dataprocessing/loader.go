package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"registrydash/pkg/contracts/domain"
)

var requiredHeaders = []string{domain.ColumnOperationType, domain.Column2024, domain.Column2025}

var thousandsPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

// Loader turns a Source into a classified Table.
type Loader struct {
	classifier *Classifier
	logger     *slog.Logger
}

// NewLoader creates a loader using the default logger. A nil classifier
// means the built-in category mapping.
func NewLoader(classifier *Classifier) *Loader {
	return NewLoaderWithLogger(classifier, slog.Default())
}

// NewLoaderWithLogger creates a loader with an injected logger.
func NewLoaderWithLogger(classifier *Classifier, logger *slog.Logger) *Loader {
	if classifier == nil {
		classifier = NewClassifier(DefaultCategoryMapping())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		classifier: classifier,
		logger:     logger.With(slog.String("component", "loader")),
	}
}

// Load reads src. On any failure the returned Table is empty and the error
// is a *DataLoadError.
func (l *Loader) Load(ctx context.Context, src Source) (domain.Table, error) {
	start := time.Now()
	rows, err := src.ReadRows(ctx)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to read source",
			slog.String("source", src.Name()),
			slog.String("error", err.Error()))
		return domain.Table{}, &DataLoadError{Source: src.Name(), Err: err}
	}

	table, err := l.Parse(rows)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to parse source",
			slog.String("source", src.Name()),
			slog.String("error", err.Error()))
		return domain.Table{}, &DataLoadError{Source: src.Name(), Err: err}
	}

	l.logger.InfoContext(ctx, "Table loaded",
		slog.String("source", src.Name()),
		slog.Int("rows", table.Len()),
		slog.Duration("duration", time.Since(start)))
	return table, nil
}

// Parse builds a Table from a raw cell grid. The header row is located by
// content; rows empty across every column are dropped.
func (l *Loader) Parse(rows [][]string) (domain.Table, error) {
	headerRow, columns, ok := findHeader(rows)
	if !ok {
		return domain.Table{}, ErrSchemaMismatch
	}

	headers := make([]string, len(rows[headerRow]))
	for i, h := range rows[headerRow] {
		headers[i] = normalizeHeader(h)
	}
	// Trailing blank header cells carry no column.
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}

	labelIdx := columns[domain.ColumnOperationType]
	idx2024 := columns[domain.Column2024]
	idx2025 := columns[domain.Column2025]
	changeIdx, hasChange := columns[domain.ColumnYearlyChange]

	records := make([]domain.OperationRecord, 0, len(rows)-headerRow-1)
	for _, row := range rows[headerRow+1:] {
		if isBlankRow(row) {
			continue
		}

		rec := domain.OperationRecord{
			Row:           len(records),
			OperationType: cell(row, labelIdx),
			Count2024:     ParseCount(cell(row, idx2024)),
			Count2025:     ParseCount(cell(row, idx2025)),
		}
		if hasChange {
			rec.YearlyChange = cell(row, changeIdx)
		}
		for i, h := range headers {
			if h == "" || i == labelIdx || i == idx2024 || i == idx2025 {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[h] = cell(row, i)
		}
		records = append(records, rec)
	}

	l.classifier.Apply(records)
	return domain.Table{Headers: headers, Records: records}, nil
}

// findHeader returns the index of the first row holding every required
// header, with a header-to-column map.
func findHeader(rows [][]string) (int, map[string]int, bool) {
	for i, row := range rows {
		columns := make(map[string]int, len(row))
		for j, h := range row {
			name := normalizeHeader(h)
			if _, seen := columns[name]; name != "" && !seen {
				columns[name] = j
			}
		}
		found := true
		for _, h := range requiredHeaders {
			if _, ok := columns[h]; !ok {
				found = false
				break
			}
		}
		if found {
			return i, columns, true
		}
	}
	return -1, nil, false
}

func normalizeHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var digitReplacer = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٬", ",", "٫", ".", "\u00a0", "", " ", "",
)

// MaxCount bounds a single coerced count so sums over a sheet stay finite
// and JSON-encodable.
const MaxCount = 1e12

// ParseCount coerces a raw count cell. Malformed, negative and non-finite
// values become 0; values above MaxCount are clamped to it.
func ParseCount(raw string) float64 {
	s := digitReplacer.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	switch {
	case thousandsPattern.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ",") && !strings.Contains(s, "."):
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Min(v, MaxCount)
}

// ParseYearlyChange converts a yearly-change cell such as "12,5%" into a
// number. ok is false when the cell holds no number.
func ParseYearlyChange(raw string) (float64, bool) {
	s := digitReplacer.Replace(strings.TrimSpace(raw))
	s = strings.TrimSpace(strings.NewReplacer("%", "", "٪", "", ",", ".").Replace(s))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
