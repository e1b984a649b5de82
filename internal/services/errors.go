package services

import "errors"

// Dashboard service errors
var (
	// ErrChartNotFound is returned when a view has no chart with the requested id.
	ErrChartNotFound = errors.New("chart not found")

	// ErrUnsupportedFormat is returned for export formats other than csv and xlsx.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrUnsupportedScope is returned for table scopes other than filtered and full.
	ErrUnsupportedScope = errors.New("unsupported scope")
)
