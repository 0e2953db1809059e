// Package middleware implements the campusgate request pipeline and rate
// limiting.
//
// # Pipeline
//
// A Pipeline is an ordered list of stages. Each stage either passes the
// request on, usually with new context values, or rejects it. The first
// rejection is written through the error writer and nothing after it runs.
//
//	protected := middleware.NewPipeline(httputil.WriteError,
//		middleware.Authenticate(tokens),
//		middleware.RequireAPIKey(authService),
//		middleware.Authorize(matrix),
//		middleware.ValidateBody(validation.CourseSchema),
//	)
//	router.Handle("/api/v1/courses", protected.Then(createCourse)).Methods(http.MethodPost)
//
// Authenticate needs both the access-token and refresh-token cookies and
// verifies only the access token. Authorize reads the matched route template
// from gorilla/mux, so /courses/{courseId}/materials is checked, never
// /courses/42/materials. Routes without a matrix entry are denied for
// every role.
//
// # Rate Limiting
//
// RateLimiter is an in-process token bucket per client (golang.org/x/time/rate).
// DistributedRateLimiter is a fixed window counter in Redis shared by every
// instance. Both plug into RateLimit, which answers 429 with X-RateLimit-*
// and Retry-After headers and fails open when the limiter errors.
package middleware
