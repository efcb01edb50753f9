package middleware

import (
	"context"
	"fmt"

	"github.com/vango-dev/vstore/pkg/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "vstore"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "vstore").
	TracerName string

	// TracerProvider supplies the tracer. If nil, the global provider is
	// used.
	TracerProvider trace.TracerProvider

	// Filter determines which calls to trace.
	// Return true to trace the call, false to skip.
	// If nil, all calls are traced.
	Filter func(call *store.Call) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(call *store.Call) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithFilter sets a filter function for calls.
func WithFilter(filter func(call *store.Call) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(call *store.Call) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry creates middleware that traces every dispatch.
//
// The middleware:
//   - Creates a span named "vstore.<store>.<action>" for each call
//   - Passes the span context to the action, so transport calls become children
//   - Records slot errors and sets the span status
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it before creating the registry:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) store.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.TracerProvider != nil {
		tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return store.MiddlewareFunc(func(ctx context.Context, call *store.Call, next func(context.Context) store.Outcome) store.Outcome {
		if config.Filter != nil && !config.Filter(call) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("vstore.store", call.Store),
			attribute.String("vstore.action", call.Action),
			attribute.String("vstore.kind", call.Kind.String()),
			attribute.String("vstore.call_id", call.ID),
		}
		if call.Seq > 0 {
			attrs = append(attrs, attribute.Int64("vstore.seq", int64(call.Seq)))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(call)...)
		}

		spanCtx, span := tracer.Start(ctx, spanName(call),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(call.Started),
		)
		defer span.End()

		outcome := next(spanCtx)

		span.SetAttributes(attribute.String("vstore.status", outcome.Status.String()))
		if outcome.Status == store.StatusFailure {
			err := slotError(outcome.Err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return outcome
	})
}

func spanName(call *store.Call) string {
	return fmt.Sprintf("vstore.%s.%s", call.Store, call.Action)
}

// slotError returns v as an error, wrapping non-error values.
func slotError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}
