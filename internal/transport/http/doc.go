// Package http implements the HTTP handlers of the registry dashboard API.
// Handlers stay thin: they decode and validate query parameters, resolve the
// label selection, call the dashboard service and render the result.
//
// # Routes
//
//	/api/health, /api/health/ready, /api/health/live, /api/version
//	/api/data/operations, /labels, /selection/default, /summary, /export
//	POST /api/data/reload
//	/api/views, /api/views/{view}, /api/views/{view}/charts/{chart}[.png]
//	POST /api/log
//
// Successful JSON responses use the envelope
//
//	{"status": "success", "data": ..., "count": n}
//
// # Error Handling
//
// Errors go through errors.ErrorHandler and are written as RFC 7807
// application/problem+json:
//
//	{
//	    "type": "/errors/view/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "view \"forecast\" not found",
//	    "instance": "/api/views/forecast",
//	    "error_code": "VIEW_NOT_FOUND"
//	}
//
// Views degrade to an empty state with warnings when the dataset cannot be
// loaded. Exports and chart images need data and answer 503 instead.
package http
