package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Paths contains the resolved directories and files used by the dashboard.
type Paths struct {
	BaseDir    string
	DataDir    string
	ExportsDir string
	LogsDir    string

	SourceFile      string
	CredentialsFile string
	CategoryMapFile string
}

// GetPaths returns the paths of a loaded configuration. Load resolves
// relative entries, so the values here are absolute.
func (c *Config) GetPaths() *Paths {
	return &Paths{
		BaseDir:         c.Paths.BaseDir,
		DataDir:         c.Paths.DataDir,
		ExportsDir:      c.Paths.ExportsDir,
		LogsDir:         c.Paths.LogsDir,
		SourceFile:      c.Data.SourcePath,
		CredentialsFile: c.Data.CredentialsFile,
		CategoryMapFile: c.Data.CategoryMapFile,
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.ExportsDir,
		p.LogsDir,
	}

	logger := slog.Default()

	for _, dir := range directories {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetExportPath returns the path for an export file
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetDataPath returns the path for a file in the data directory
func (p *Paths) GetDataPath(filename string) string {
	return filepath.Join(p.DataDir, filename)
}

// ExportFileName builds a timestamped export file name such as
// registry_operations_full_20250601_120000.csv.
func ExportFileName(scope, ext string, at time.Time) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "full"
	}
	return fmt.Sprintf("%s_%s_%s.%s", ExportBaseName, scope, at.Format("20060102_150405"), strings.TrimPrefix(ext, "."))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("exports", p.ExportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("source", p.SourceFile),
			slog.Bool("source_exists", p.SourceFile != "" && FileExists(p.SourceFile)),
			slog.String("credentials", p.CredentialsFile),
			slog.String("category_map", p.CategoryMapFile),
		))
}

// ValidateRequiredFiles checks that every configured file exists.
func (p *Paths) ValidateRequiredFiles() error {
	requiredFiles := map[string]string{
		"Source":       p.SourceFile,
		"Credentials":  p.CredentialsFile,
		"Category map": p.CategoryMapFile,
	}

	var missingFiles []string
	for name, path := range requiredFiles {
		if path == "" {
			continue
		}
		if !FileExists(path) {
			missingFiles = append(missingFiles, fmt.Sprintf("%s (%s)", name, path))
		}
	}

	if len(missingFiles) > 0 {
		sort.Strings(missingFiles)
		return fmt.Errorf("required files missing: %s", strings.Join(missingFiles, ", "))
	}

	return nil
}
