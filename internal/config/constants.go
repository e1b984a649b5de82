package config

import "time"

// Application constants for the registry dashboard
const (
	// Application Info
	AppName        = "registry-dashboard"
	AppDisplayName = "Business Registry Dashboard"

	// File Paths (relative to the base directory)
	DefaultDataDir    = "data"
	DefaultExportsDir = "data/exports"
	DefaultLogsDir    = "logs"
	DefaultSourcePath = "data/statistiques_operations_2024_2025.xlsx"

	// Export file names
	ExportBaseName = "registry_operations"

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Dataset loading
	DataLoadTimeout = 2 * time.Minute

	// API Endpoints
	APIBasePath       = "/api"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
