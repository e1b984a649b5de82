package exporter

import (
	"fmt"
	"strconv"

	"registrydash/pkg/contracts/domain"
)

// formatCount renders a count without trailing zeros: 12 stays "12", 12.5
// stays "12.5".
func formatCount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatFloat formats a percentage with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// exportHeaders returns the table headers, or the required columns when the
// table was built without any.
func exportHeaders(table domain.Table) []string {
	if len(table.Headers) > 0 {
		return table.Headers
	}
	return []string{domain.ColumnOperationType, domain.Column2024, domain.Column2025}
}

// cellValue returns the typed value of one column of a record. Count columns
// yield float64, everything else a string.
func cellValue(header string, rec domain.OperationRecord) interface{} {
	switch header {
	case domain.ColumnOperationType:
		return rec.OperationType
	case domain.Column2024:
		return rec.Count2024
	case domain.Column2025:
		return rec.Count2025
	case domain.ColumnYearlyChange:
		return rec.YearlyChange
	default:
		return rec.Extra[header]
	}
}

// recordCells renders a record in header order for CSV output.
func recordCells(headers []string, rec domain.OperationRecord) []string {
	cells := make([]string, len(headers))
	for i, h := range headers {
		switch v := cellValue(h, rec).(type) {
		case float64:
			cells[i] = formatCount(v)
		case string:
			cells[i] = v
		}
	}
	return cells
}
