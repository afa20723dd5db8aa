// Package observability provides structured logging, Prometheus metrics, health checks and OpenTelemetry tracing.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger("info", observability.FormatJSON, os.Stdout)
//	logger.WithField("port", 8080).Info("Server started")
//
// Request scoped logging:
//
//	observability.LoggerFromContext(ctx, logger).WithError(err).Warn("cache lookup failed")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordCache("redis", "hit")
//	metrics.RecordRateLimit("contacts.list", "rejected")
//
// Recording helpers are no-ops on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.AddCheck("s3", avatars.HealthCheck)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "rolodex",
//	}, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
package observability
