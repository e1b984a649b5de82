package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrydash/internal/config"
	"registrydash/pkg/contracts/domain"
)

// Setup test environment
func setupTestEnv(t *testing.T) (*CSVWriter, string) {
	t.Helper()

	tempDir := t.TempDir()
	writer := NewCSVWriter(&config.Paths{
		DataDir:    tempDir,
		ExportsDir: filepath.Join(tempDir, "exports"),
	}, nil)
	return writer, tempDir
}

func sampleTable() domain.Table {
	return domain.Table{
		Headers: []string{
			domain.ColumnOperationType, domain.Column2024, domain.Column2025, domain.ColumnYearlyChange, "ملاحظة",
		},
		Records: []domain.OperationRecord{
			{OperationType: "طلب تأسيس شركة", Count2024: 100, Count2025: 120, YearlyChange: "20%", Extra: map[string]string{"ملاحظة": "أ"}},
			{OperationType: "ترسيم رهون, فرعي", Count2024: 12.5, Count2025: 0},
		},
	}
}

// readCSV strips the BOM and parses the file.
func readCSV(t *testing.T, content []byte) [][]string {
	t.Helper()
	require.True(t, bytes.HasPrefix(content, utf8BOM), "missing BOM")
	records, err := csv.NewReader(bytes.NewReader(content[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	return records
}

func TestNewCSVWriter(t *testing.T) {
	paths := &config.Paths{}
	writer := NewCSVWriter(paths, nil)

	assert.NotNil(t, writer)
	assert.Equal(t, paths, writer.paths)
	assert.NotNil(t, writer.logger)
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	tests := []struct {
		name     string
		filePath string
		options  WriteOptions
		validate func(t *testing.T, content []byte)
	}{
		{
			name:     "basic write with headers",
			filePath: "test_basic.csv",
			options: WriteOptions{
				Headers: []string{"Name", "Count"},
				Records: [][]string{{"A", "1"}, {"B", "2"}},
			},
			validate: func(t *testing.T, content []byte) {
				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				assert.Equal(t, []string{"Name,Count", "A,1", "B,2"}, lines)
			},
		},
		{
			name:     "write with BOM prefix",
			filePath: "test_bom.csv",
			options: WriteOptions{
				Headers:   []string{domain.ColumnOperationType},
				Records:   [][]string{{"ترسيم رهون"}},
				BOMPrefix: true,
			},
			validate: func(t *testing.T, content []byte) {
				records := readCSV(t, content)
				assert.Equal(t, [][]string{{domain.ColumnOperationType}, {"ترسيم رهون"}}, records)
			},
		},
		{
			name:     "empty records",
			filePath: filepath.Join("nested", "test_empty.csv"),
			options:  WriteOptions{Headers: []string{"Col1", "Col2"}},
			validate: func(t *testing.T, content []byte) {
				assert.Equal(t, "Col1,Col2", strings.TrimSpace(string(content)))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, writer.WriteCSV(tt.filePath, tt.options))

			content, err := os.ReadFile(filepath.Join(tempDir, "exports", tt.filePath))
			require.NoError(t, err)
			tt.validate(t, content)
		})
	}
}

func TestCSVWriter_Append(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	require.NoError(t, writer.WriteCSV("append.csv", WriteOptions{
		Headers: []string{"Col1"},
		Records: [][]string{{"first"}},
	}))
	require.NoError(t, writer.WriteCSV("append.csv", WriteOptions{
		Headers: []string{"ignored"},
		Records: [][]string{{"second"}},
		Append:  true,
	}))

	content, err := os.ReadFile(filepath.Join(tempDir, "exports", "append.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Col1\nfirst\nsecond", strings.TrimSpace(string(content)))
}

func TestCSVWriter_ResolvePath(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	abs := filepath.Join(tempDir, "elsewhere", "file.csv")
	assert.Equal(t, abs, writer.resolvePath(abs))
	assert.Equal(t, filepath.Join(tempDir, "exports", "report.csv"), writer.resolvePath("report.csv"))

	bare := NewCSVWriter(nil, nil)
	assert.Equal(t, "report.csv", bare.resolvePath("report.csv"))
}

func TestCSVWriter_ExportTable(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	path, err := writer.ExportTable("ops.csv", sampleTable())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "exports", "ops.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	records := readCSV(t, content)

	require.Len(t, records, 3)
	assert.Equal(t, sampleTable().Headers, records[0])
	assert.Equal(t, []string{"طلب تأسيس شركة", "100", "120", "20%", "أ"}, records[1])
	assert.Equal(t, []string{"ترسيم رهون, فرعي", "12.5", "0", "", ""}, records[2])
}

func TestCSVWriter_ExportRowChanges(t *testing.T) {
	writer, _ := setupTestEnv(t)

	path, err := writer.ExportRowChanges("changes.csv", []domain.RowChange{
		{OperationType: "A", Count2024: 10, Count2025: 12, Change: 2, ChangePct: 20},
		{OperationType: "B", Count2024: 3, Count2025: 2, Change: -1, ChangePct: -100.0 / 3},
	})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	records := readCSV(t, content)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"A", "10", "12", "2", "20.00"}, records[1])
	assert.Equal(t, []string{"B", "3", "2", "-1", "-33.33"}, records[2])
}

func TestWriteTableCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTableCSV(&buf, sampleTable()))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 3)
	assert.Equal(t, "ترسيم رهون, فرعي", records[2][0], "commas quoted")
}

func TestWriteTableCSV_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	table := domain.Table{Records: []domain.OperationRecord{{OperationType: "A", Count2024: 1, Count2025: 2}}}
	require.NoError(t, WriteTableCSV(&buf, table))

	records := readCSV(t, buf.Bytes())
	assert.Equal(t, []string{domain.ColumnOperationType, domain.Column2024, domain.Column2025}, records[0])
	assert.Equal(t, []string{"A", "1", "2"}, records[1])
}

func TestStreamWriter(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	stream, err := writer.CreateStreamWriter("stream.csv", []string{"Name", "Value"})
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, stream.WriteRecord([]string{"row", "x"}))
	}
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(filepath.Join(tempDir, "exports", "stream.csv"))
	require.NoError(t, err)
	assert.Len(t, readCSV(t, content), 101)
}

func TestCSVWriter_ConcurrentExports(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	const numGoroutines = 8
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := filepath.Join("concurrent", "file_"+string(rune('A'+id))+".csv")
			if _, err := writer.ExportTable(name, sampleTable()); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	for i := 0; i < numGoroutines; i++ {
		assert.True(t, config.FileExists(filepath.Join(tempDir, "exports", "concurrent", "file_"+string(rune('A'+i))+".csv")))
	}
}

func TestCSVWriter_ErrorScenarios(t *testing.T) {
	writer, tempDir := setupTestEnv(t)

	blocker := filepath.Join(tempDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := writer.WriteCSV(filepath.Join(blocker, "test.csv"), WriteOptions{Headers: []string{"Test"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to")

	_, err = writer.ExportTable(filepath.Join(blocker, "ops.csv"), sampleTable())
	assert.Error(t, err)
}
