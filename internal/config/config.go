package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "REGDASH"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/dashboard.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// PathsConfig contains file system paths configuration. Relative entries
// are resolved against BaseDir, which defaults to the working directory.
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	ExportsDir string `yaml:"exports_dir" envconfig:"EXPORTS_DIR" default:"data/exports"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// DataConfig describes where the operations table comes from and how its
// rows are classified.
type DataConfig struct {
	SourceType       string   `yaml:"source_type" envconfig:"SOURCE_TYPE"`
	SourcePath       string   `yaml:"source_path" envconfig:"SOURCE_PATH" default:"data/statistiques_operations_2024_2025.xlsx"`
	Sheet            string   `yaml:"sheet" envconfig:"SHEET"`
	SheetsID         string   `yaml:"sheets_id" envconfig:"SHEETS_ID"`
	SheetsRange      string   `yaml:"sheets_range" envconfig:"SHEETS_RANGE" default:"A:Z"`
	CredentialsFile  string   `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	CategoryMapFile  string   `yaml:"category_map_file" envconfig:"CATEGORY_MAP_FILE"`
	DefaultSelection []string `yaml:"default_selection" envconfig:"DEFAULT_SELECTION"`
	SubtotalLabels   []string `yaml:"subtotal_labels" envconfig:"SUBTOTAL_LABELS"`
	SubtotalMarker   string   `yaml:"subtotal_marker" envconfig:"SUBTOTAL_MARKER"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"registry-dashboard"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1"`
}

// Source kinds accepted by Data.SourceType. An empty kind is inferred from
// the source path extension.
const (
	SourceXLSX   = "xlsx"
	SourceCSV    = "csv"
	SourceSheets = "sheets"
)

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config. envconfig fills every
// unset variable with its default, so an env value only wins over the file
// when it differs from that default.
func mergeConfigs(fileConfig, envConfig Config) Config {
	def := Default()

	// Server config
	envConfig.Server.Port = pick(envConfig.Server.Port, fileConfig.Server.Port, def.Server.Port)
	envConfig.Server.ReadTimeout = pick(envConfig.Server.ReadTimeout, fileConfig.Server.ReadTimeout, def.Server.ReadTimeout)
	envConfig.Server.WriteTimeout = pick(envConfig.Server.WriteTimeout, fileConfig.Server.WriteTimeout, def.Server.WriteTimeout)
	envConfig.Server.IdleTimeout = pick(envConfig.Server.IdleTimeout, fileConfig.Server.IdleTimeout, def.Server.IdleTimeout)
	envConfig.Server.MaxHeaderBytes = pick(envConfig.Server.MaxHeaderBytes, fileConfig.Server.MaxHeaderBytes, def.Server.MaxHeaderBytes)
	envConfig.Server.ShutdownTimeout = pick(envConfig.Server.ShutdownTimeout, fileConfig.Server.ShutdownTimeout, def.Server.ShutdownTimeout)
	envConfig.Server.RequestTimeout = pick(envConfig.Server.RequestTimeout, fileConfig.Server.RequestTimeout, def.Server.RequestTimeout)

	// Security config
	envConfig.Security.AllowedOrigins = pickList(envConfig.Security.AllowedOrigins, fileConfig.Security.AllowedOrigins, def.Security.AllowedOrigins)
	envConfig.Security.RateLimit.RPS = pick(envConfig.Security.RateLimit.RPS, fileConfig.Security.RateLimit.RPS, def.Security.RateLimit.RPS)
	envConfig.Security.RateLimit.Burst = pick(envConfig.Security.RateLimit.Burst, fileConfig.Security.RateLimit.Burst, def.Security.RateLimit.Burst)

	// Logging config
	envConfig.Logging.Level = pick(envConfig.Logging.Level, fileConfig.Logging.Level, def.Logging.Level)
	envConfig.Logging.Output = pick(envConfig.Logging.Output, fileConfig.Logging.Output, def.Logging.Output)
	envConfig.Logging.FilePath = pick(envConfig.Logging.FilePath, fileConfig.Logging.FilePath, def.Logging.FilePath)

	// Paths config
	envConfig.Paths.BaseDir = pick(envConfig.Paths.BaseDir, fileConfig.Paths.BaseDir, def.Paths.BaseDir)
	envConfig.Paths.DataDir = pick(envConfig.Paths.DataDir, fileConfig.Paths.DataDir, def.Paths.DataDir)
	envConfig.Paths.ExportsDir = pick(envConfig.Paths.ExportsDir, fileConfig.Paths.ExportsDir, def.Paths.ExportsDir)
	envConfig.Paths.LogsDir = pick(envConfig.Paths.LogsDir, fileConfig.Paths.LogsDir, def.Paths.LogsDir)

	// WebSocket config
	envConfig.WebSocket.ReadBufferSize = pick(envConfig.WebSocket.ReadBufferSize, fileConfig.WebSocket.ReadBufferSize, def.WebSocket.ReadBufferSize)
	envConfig.WebSocket.WriteBufferSize = pick(envConfig.WebSocket.WriteBufferSize, fileConfig.WebSocket.WriteBufferSize, def.WebSocket.WriteBufferSize)
	envConfig.WebSocket.PingPeriod = pick(envConfig.WebSocket.PingPeriod, fileConfig.WebSocket.PingPeriod, def.WebSocket.PingPeriod)
	envConfig.WebSocket.PongWait = pick(envConfig.WebSocket.PongWait, fileConfig.WebSocket.PongWait, def.WebSocket.PongWait)

	// Data config
	envConfig.Data.SourceType = pick(envConfig.Data.SourceType, fileConfig.Data.SourceType, def.Data.SourceType)
	envConfig.Data.SourcePath = pick(envConfig.Data.SourcePath, fileConfig.Data.SourcePath, def.Data.SourcePath)
	envConfig.Data.Sheet = pick(envConfig.Data.Sheet, fileConfig.Data.Sheet, def.Data.Sheet)
	envConfig.Data.SheetsID = pick(envConfig.Data.SheetsID, fileConfig.Data.SheetsID, def.Data.SheetsID)
	envConfig.Data.SheetsRange = pick(envConfig.Data.SheetsRange, fileConfig.Data.SheetsRange, def.Data.SheetsRange)
	envConfig.Data.CredentialsFile = pick(envConfig.Data.CredentialsFile, fileConfig.Data.CredentialsFile, def.Data.CredentialsFile)
	envConfig.Data.CategoryMapFile = pick(envConfig.Data.CategoryMapFile, fileConfig.Data.CategoryMapFile, def.Data.CategoryMapFile)
	envConfig.Data.DefaultSelection = pickList(envConfig.Data.DefaultSelection, fileConfig.Data.DefaultSelection, nil)
	envConfig.Data.SubtotalLabels = pickList(envConfig.Data.SubtotalLabels, fileConfig.Data.SubtotalLabels, nil)
	envConfig.Data.SubtotalMarker = pick(envConfig.Data.SubtotalMarker, fileConfig.Data.SubtotalMarker, def.Data.SubtotalMarker)

	// Telemetry config
	envConfig.Telemetry.ServiceName = pick(envConfig.Telemetry.ServiceName, fileConfig.Telemetry.ServiceName, def.Telemetry.ServiceName)
	envConfig.Telemetry.TraceExporter = pick(envConfig.Telemetry.TraceExporter, fileConfig.Telemetry.TraceExporter, def.Telemetry.TraceExporter)
	envConfig.Telemetry.MetricExporter = pick(envConfig.Telemetry.MetricExporter, fileConfig.Telemetry.MetricExporter, def.Telemetry.MetricExporter)
	envConfig.Telemetry.SampleRatio = pick(envConfig.Telemetry.SampleRatio, fileConfig.Telemetry.SampleRatio, def.Telemetry.SampleRatio)

	return envConfig
}

func pick[T comparable](env, file, def T) T {
	var zero T
	if (env == zero || env == def) && file != zero {
		return file
	}
	return env
}

func pickList(env, file, def []string) []string {
	if (len(env) == 0 || equalStrings(env, def)) && len(file) > 0 {
		return file
	}
	return env
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// resolvePaths anchors relative paths at the base directory.
func (c *Config) resolvePaths() error {
	if c.Paths.BaseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		c.Paths.BaseDir = wd
	}

	c.Paths.DataDir = c.resolve(c.Paths.DataDir)
	c.Paths.ExportsDir = c.resolve(c.Paths.ExportsDir)
	c.Paths.LogsDir = c.resolve(c.Paths.LogsDir)
	c.Logging.FilePath = c.resolve(c.Logging.FilePath)

	if c.Data.SourcePath != "" {
		c.Data.SourcePath = c.resolve(c.Data.SourcePath)
	}
	if c.Data.CredentialsFile != "" {
		c.Data.CredentialsFile = c.resolve(c.Data.CredentialsFile)
	}
	if c.Data.CategoryMapFile != "" {
		c.Data.CategoryMapFile = c.resolve(c.Data.CategoryMapFile)
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.BaseDir, p)
}

// SourceKind returns the configured source kind, inferring it from the
// source path extension when unset.
func (d DataConfig) SourceKind() string {
	if d.SourceType != "" {
		return strings.ToLower(d.SourceType)
	}
	if d.SheetsID != "" && d.SourcePath == "" {
		return SourceSheets
	}
	switch strings.ToLower(filepath.Ext(d.SourcePath)) {
	case ".csv":
		return SourceCSV
	default:
		return SourceXLSX
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	switch c.Data.SourceKind() {
	case SourceXLSX, SourceCSV:
		if c.Data.SourcePath == "" {
			return fmt.Errorf("data source path is required for %s sources", c.Data.SourceKind())
		}
	case SourceSheets:
		if c.Data.SheetsID == "" {
			return fmt.Errorf("sheets id is required for sheets sources")
		}
	default:
		return fmt.Errorf("unknown data source type: %q", c.Data.SourceType)
	}

	switch c.Telemetry.TraceExporter {
	case "none", "stdout", "":
	default:
		return fmt.Errorf("unknown trace exporter: %q", c.Telemetry.TraceExporter)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be within [0,1]: %v", c.Telemetry.SampleRatio)
	}

	// Logs are always structured JSON
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "both"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Paths.LogsDir, "dashboard.log")
	}

	return nil
}

// getConfigFilePath returns the path to the config file. REGDASH_CONFIG_FILE
// overrides the search.
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
		"../../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/dashboard.log",
		},
		Paths: PathsConfig{
			DataDir:    "data",
			ExportsDir: "data/exports",
			LogsDir:    "logs",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		Data: DataConfig{
			SourcePath:  DefaultSourcePath,
			SheetsRange: "A:Z",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1,
		},
	}
}
