// Package app wires the registry dashboard together and manages its
// lifecycle: configuration, logging, OpenTelemetry, the dataset service, the
// websocket hub, the HTTP router and graceful shutdown.
//
// # Initialization Flow
//
//  1. Load configuration from REGDASH_* variables and the optional YAML file
//  2. Initialize the logger and the OpenTelemetry providers
//  3. Build the data source, classifier and loader from the data section
//  4. Create the websocket hub, dashboard service and health service
//  5. Set up middleware, /api routes, /ws and /metrics
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Start warms the dataset cache in the background. A failed load is kept
// until the next reload and reported by /api/health/ready.
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then stops the HTTP server, closes
// websocket clients and flushes the telemetry providers. Initialization
// errors are returned to the caller; the package never calls os.Exit.
package app
