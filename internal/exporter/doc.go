// Package exporter writes registry tables and dashboard charts to files.
//
// CSVWriter covers CSV output with a UTF-8 BOM for Excel, both as one-shot
// writes and through a StreamWriter, plus XLSX workbooks built with excelize
// (right-to-left sheet view, bold header). Relative paths land in the
// configured exports directory.
//
// ChartRenderer turns a domain.ChartConfig into a PNG with go-chart.
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(cfg.GetPaths(), logger)
//	path, err := writer.ExportTable("registry_operations_full.csv", table)
//
//	var buf bytes.Buffer
//	err = exporter.RenderChartPNG(view.Charts[0], &buf)
package exporter
