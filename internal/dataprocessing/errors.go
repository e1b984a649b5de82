package dataprocessing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record carries the requested label.
	ErrNotFound = errors.New("operation label not found")

	// ErrEmptyInput is returned by extremum and ranking operations on zero rows.
	ErrEmptyInput = errors.New("empty input")

	// ErrSchemaMismatch is returned when the header row lacks a required column.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrSheetNotFound is returned when the requested worksheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrUnsupportedSource is returned for unknown source kinds.
	ErrUnsupportedSource = errors.New("unsupported source type")
)

// DataLoadError reports that a source could not be turned into a Table.
// The loader always pairs it with an empty Table.
type DataLoadError struct {
	Source string
	Err    error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// IsDataLoadError reports whether err is or wraps a *DataLoadError.
func IsDataLoadError(err error) bool {
	var loadErr *DataLoadError
	return errors.As(err, &loadErr)
}

func notFound(label string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, label)
}
