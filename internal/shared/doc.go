// Package shared holds helpers used by more than one layer of the dashboard.
//
// The testutil subpackage provides:
//
//   - BufferedSlogHandler, a slog.Handler that captures records (including
//     attributes added with logger.With) for assertions
//   - registry fixtures: default export rows plus XLSX and CSV writers that
//     put them in a temp directory
//
// Example usage:
//
//	func TestLoad(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    path := testutil.WriteRegistryWorkbook(t, "", nil)
//	    // ...
//	    testutil.AssertNoErrors(t, logs)
//	}
//
// Nothing here may import domain packages under internal/, so package-local
// tests everywhere can depend on it.
package shared
