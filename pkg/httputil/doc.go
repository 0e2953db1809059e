// Package httputil provides HTTP utilities for campusgate handlers.
//
// # Envelope
//
// Every response is wrapped as
//
//	{"statusCode": 200, "message": "...", "data": {...}, "success": true}
//
// where success is true exactly for 2xx statuses.
//
//	httputil.WriteSuccess(w, "Profile fetched", user)
//	httputil.WriteCreated(w, "Course created", course)
//	httputil.WriteError(w, r, err) // status chosen by StatusFor
//
// # Error Mapping
//
// StatusFor maps the auth error taxonomy and validation failures to statuses.
// Every token failure and missing cookie becomes the same 401 "Unauthorized"
// so clients cannot tell which check failed. Unknown errors become a 500 whose
// detail is logged, never returned.
//
// # Cookies
//
//	httputil.SetAuthCookies(w, cookieCfg, session.Tokens)
//	httputil.ClearAuthCookies(w, cookieCfg)
//
// Both cookies are HttpOnly, SameSite=Strict and Path=/.
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
