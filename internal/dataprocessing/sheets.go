package dataprocessing

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSource reads a value range from a Google Sheets spreadsheet.
type SheetsSource struct {
	SpreadsheetID string
	Range         string
	// Options are passed to sheets.NewService; typically
	// option.WithCredentialsFile or option.WithAPIKey.
	Options []option.ClientOption
}

// NewSheetsSource builds a source authenticated with a service-account
// credentials file. An empty file falls back to application default
// credentials.
func NewSheetsSource(spreadsheetID, readRange, credentialsFile string) *SheetsSource {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return &SheetsSource{SpreadsheetID: spreadsheetID, Range: readRange, Options: opts}
}

func (s *SheetsSource) Name() string {
	return fmt.Sprintf("sheets:%s!%s", s.SpreadsheetID, s.Range)
}

func (s *SheetsSource) ReadRows(ctx context.Context) ([][]string, error) {
	if s.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets source: spreadsheet id is required")
	}

	srv, err := sheets.NewService(ctx, s.Options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	readRange := s.Range
	if readRange == "" {
		readRange = "A:Z"
	}
	resp, err := srv.Spreadsheets.Values.Get(s.SpreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read from sheets: %w", err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, values := range resp.Values {
		row := make([]string, len(values))
		for i, v := range values {
			if v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
