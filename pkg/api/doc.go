// Package api is the campusgate HTTP surface.
//
// Every route is declared once in the route table (routes.go). Registration
// derives two things from each row: the gorilla/mux route under /api/v1 and
// the permission matrix grant for its path template. A route that is mounted
// but missing from the matrix is denied for every role.
//
// # Request Flow
//
// Protected routes run through a fixed middleware pipeline:
//
//	authenticate -> api key (optional) -> authorize -> validate body (optional) -> handler
//
// Public routes (register, login, refresh-token) skip the first three stages
// and are rate limited per client IP when a limiter is configured.
//
// # Usage
//
//	server, err := api.NewServer(api.Options{
//		Auth:      authService,
//		Academics: academicsService,
//		Cookies:   httputil.DefaultCookieConfig(),
//		Logger:    logger,
//		Metrics:   metrics,
//		Audit:     auditLogger,
//		Limiter:   limiter,
//	})
//	http.ListenAndServe(":8080", server)
//
// All responses use the httputil envelope. Listings that come back empty are
// reported as 404 with a "No <entity> found" message.
package api
