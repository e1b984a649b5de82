package services

import (
	"fmt"

	"registrydash/internal/config"
	"registrydash/internal/dataprocessing"
	apierrors "registrydash/internal/errors"
)

// SourceFromConfig builds the table source selected by the data config.
func SourceFromConfig(cfg config.DataConfig) (dataprocessing.Source, error) {
	switch kind := cfg.SourceKind(); kind {
	case config.SourceXLSX:
		return &dataprocessing.XLSXSource{Path: cfg.SourcePath, Sheet: cfg.Sheet}, nil
	case config.SourceCSV:
		return &dataprocessing.CSVSource{Path: cfg.SourcePath}, nil
	case config.SourceSheets:
		return dataprocessing.NewSheetsSource(cfg.SheetsID, cfg.SheetsRange, cfg.CredentialsFile), nil
	default:
		return nil, apierrors.NewConfigError(fmt.Sprintf("data source %q", kind), dataprocessing.ErrUnsupportedSource).
			WithContext("source_type", kind)
	}
}

// ClassifierFromConfig loads the category mapping file when one is set and
// applies the configured subtotal overrides.
func ClassifierFromConfig(cfg config.DataConfig) (*dataprocessing.Classifier, error) {
	mapping := dataprocessing.DefaultCategoryMapping()
	if cfg.CategoryMapFile != "" {
		m, err := dataprocessing.LoadCategoryMapping(cfg.CategoryMapFile)
		if err != nil {
			return nil, apierrors.NewConfigError("category mapping", err).
				WithContext("file", cfg.CategoryMapFile)
		}
		mapping = m
	}
	if len(cfg.SubtotalLabels) > 0 {
		mapping.SubtotalLabels = append([]string(nil), cfg.SubtotalLabels...)
	}
	if cfg.SubtotalMarker != "" {
		mapping.SubtotalMarker = cfg.SubtotalMarker
	}
	return dataprocessing.NewClassifier(mapping), nil
}
