// Package middleware provides store.Middleware implementations for
// observability.
//
// This package includes:
//   - OpenTelemetry tracing of every dispatch
//   - Prometheus metrics for dispatch counts, durations and slot errors
//   - Structured logging of dispatch outcomes with log/slog
//
// # OpenTelemetry
//
// Each dispatch becomes a span. For async actions the span covers the call
// and its settlement, and the span context is passed to the action, so
// transports that propagate context join the trace:
//
//	reg := store.New(
//	    store.WithMiddleware(
//	        middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	    ),
//	)
//
// # Prometheus Metrics
//
//   - vstore_dispatches_total: dispatches by store, action, kind and status
//   - vstore_dispatch_duration_seconds: dispatch duration histogram
//   - vstore_in_flight: async calls currently running
//   - vstore_slot_errors_total: slot errors by store, action and code
//
// Register the middleware and expose the registry:
//
//	metrics := middleware.Prometheus(middleware.WithNamespace("myapp"))
//	reg := store.New(store.WithMiddleware(metrics))
//	http.Handle("/metrics", promhttp.Handler())
//
// # Logging
//
//	store.New(store.WithMiddleware(middleware.Logging(logger)))
package middleware
