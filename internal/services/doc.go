// Package services implements the business logic layer of the dashboard.
// Handlers stay thin: they decode and validate the request, call a service
// and render the result.
//
// # Dashboard service
//
// DashboardService owns the memory-resident operations table. The table is
// loaded lazily on first use, cached behind a sync.RWMutex and treated as
// immutable; views derive new tables and never mutate it. Concurrent first
// loads and reloads are coalesced with singleflight.
//
// A failed load does not fail the endpoints that can degrade: the service
// caches an empty table with the *dataprocessing.DataLoadError, views and
// table dumps render their no-data state with a warning, and readiness
// reports the error. Endpoints that need real data (exports, chart images)
// return the error, which the HTTP layer maps to 503.
//
//	svc := services.NewDashboardService(source, nil, services.DashboardOptions{
//	    Hub:     hub,
//	    Metrics: metrics,
//	    Logger:  logger,
//	})
//	res, err := svc.View(ctx, domain.ViewOverview, svc.DefaultSelection())
//
// # Health service
//
// HealthService answers the liveness, readiness and version probes.
package services
