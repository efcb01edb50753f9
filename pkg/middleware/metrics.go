package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/vstore/pkg/store"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vstore").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vstore",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a store.Middleware that records Prometheus metrics.
type Metrics struct {
	dispatchesTotal  *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	inFlight         *prometheus.GaugeVec
	slotErrors       *prometheus.CounterVec
}

// Prometheus creates middleware that collects Prometheus metrics for store
// dispatches. The metrics are registered with the configured registry, so
// create it once per registry.
//
// Metrics collected:
//   - vstore_dispatches_total: Counter by store, action, kind and status
//   - vstore_dispatch_duration_seconds: Histogram by store, action and kind
//   - vstore_in_flight: Gauge of running async calls by store and action
//   - vstore_slot_errors_total: Counter of slot errors by store, action and code
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		dispatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatches_total",
			Help:        "Total number of store action dispatches",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "action", "kind", "status"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_duration_seconds",
			Help:        "Dispatch duration in seconds, from start to settlement",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"store", "action", "kind"}),

		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "in_flight",
			Help:        "Number of async calls currently running",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "action"}),

		slotErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "slot_errors_total",
			Help:        "Total number of async slot errors",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "action", "code"}),
	}
}

// Handle implements store.Middleware.
func (m *Metrics) Handle(ctx context.Context, call *store.Call, next func(context.Context) store.Outcome) store.Outcome {
	kind := call.Kind.String()
	if call.Kind == store.FieldAsync {
		gauge := m.inFlight.WithLabelValues(call.Store, call.Action)
		gauge.Inc()
		defer gauge.Dec()
	}

	start := time.Now()
	outcome := next(ctx)

	m.dispatchDuration.WithLabelValues(call.Store, call.Action, kind).Observe(time.Since(start).Seconds())
	m.dispatchesTotal.WithLabelValues(call.Store, call.Action, kind, outcome.Status.String()).Inc()
	if outcome.Status == store.StatusFailure {
		m.slotErrors.WithLabelValues(call.Store, call.Action, errorCode(outcome.Err)).Inc()
	}
	return outcome
}

// errorCode returns a low-cardinality label for a slot error.
func errorCode(v any) string {
	var ae *store.ActionError
	var pe *store.PanicError
	err, isErr := v.(error)
	switch {
	case isErr && errors.As(err, &ae):
		if ae.Status > 0 {
			return httpClass(ae.Status)
		}
		return ae.Code
	case isErr && errors.As(err, &pe):
		return "panic"
	case isErr:
		return "error"
	default:
		return "value"
	}
}

// httpClass collapses a status code to its class, e.g. "4xx".
func httpClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "other"
	}
}
