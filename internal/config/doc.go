// Package config provides centralized configuration management for the
// registry dashboard. It loads configuration from environment variables and an
// optional YAML file, validates it, and resolves every relative path.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// The YAML file is looked up in config.yaml, configs/config.yaml and the
// parent configs directories, unless REGDASH_CONFIG_FILE names one.
//
// # Environment Variables
//
// All environment variables follow the pattern REGDASH_<SECTION>_<FIELD>:
//
//	REGDASH_SERVER_PORT=8080
//	REGDASH_DATA_SOURCE_PATH=data/statistiques_operations_2024_2025.xlsx
//	REGDASH_DATA_SOURCE_TYPE=sheets
//	REGDASH_DATA_SHEETS_ID=1AbC...
//	REGDASH_LOGGING_LEVEL=debug
//	REGDASH_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Data Sources
//
// Data.SourceType selects xlsx, csv or sheets. When empty it is inferred from
// the extension of Data.SourcePath.
//
// # Path Management
//
// Relative paths are anchored at Paths.BaseDir, which defaults to the working
// directory. Config.GetPaths returns the resolved layout:
//
//	paths := cfg.GetPaths()
//	if err := paths.EnsureDirectories(); err != nil {
//	    return err
//	}
//	out := paths.GetExportPath(config.ExportFileName("full", "csv", time.Now()))
package config
