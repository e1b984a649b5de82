// Package dataprocessing loads the business-registry operations table and
// provides the metrics engine computed over it.
//
// # Architecture
//
// The package is organized into three parts:
//
// 1. Sources and Loader: read an xlsx workbook, a CSV file or a Google
// Sheets range and turn the cell grid into a domain.Table
// 2. Classifier: derives category and subtotal flags once, at load time
// 3. Metrics: pure functions over a Table (totals, percent change,
// lookups, filters, biggest movers, rankings, describe statistics)
//
// # Usage
//
//	loader := dataprocessing.NewLoader(nil)
//	table, err := loader.Load(ctx, &dataprocessing.XLSXSource{Path: "data/operations.xlsx"})
//	if err != nil {
//	    // table is empty; render a "no data" state
//	}
//	totals := dataprocessing.TotalExcludingSubtotals(table)
//	pct := dataprocessing.PercentChange(totals.Y2024, totals.Y2025)
//
// # Error Handling
//
//   - Load failures return an empty Table and a *DataLoadError
//   - LookupValue returns ErrNotFound; LookupValueOr is the explicit fallback
//   - BiggestMover and TopN return ErrEmptyInput on zero rows
//   - PercentChange never fails: a zero baseline yields 0
//
// Tables are never modified in place. Filters return new Tables and per-row
// change columns are derived with RowChanges.
package dataprocessing
