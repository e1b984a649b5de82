package contracts

import "fmt"

const (
	// Version is the current version of the application
	Version = "1.0.0"

	// DataFormatVersion is the version of the view payload format
	DataFormatVersion = "v1"

	// APIVersion is the version of the HTTP API and WebSocket messages
	APIVersion = "v1"
)

var (
	// GitCommit is set during build using ldflags
	GitCommit = "unknown"

	// GitBranch is set during build using ldflags
	GitBranch = "unknown"
)

// GetVersionString returns a formatted version string
func GetVersionString() string {
	return fmt.Sprintf("Registry Dashboard v%s (%s)", Version, GitCommit)
}
