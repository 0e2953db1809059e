// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and graceful shutdown for campusgate.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("Login succeeded")
//
// Handlers retrieve the request-scoped logger with FromContext, which tags
// every entry with the request ID.
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	router.Use(metrics.HTTPMetricsMiddleware)
//	metrics.RecordAuthEvent("login", "success")
//
// Route labels use the matched route template, never the raw path.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "campusgate",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
