package middleware

import (
	"context"
	"time"

	"github.com/vango-dev/minirest/pkg/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "minirest"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "minirest").
	TracerName string

	// TracerProvider supplies the tracer.
	// Default: the global provider from otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// IncludeArgs records each query argument as a span attribute.
	// Arguments may carry user data, so this is disabled by default.
	IncludeArgs bool

	// Filter determines which calls to trace.
	// Return true to trace the call, false to skip.
	// If nil, all calls are traced.
	Filter func(call *router.Call) bool

	// AttributeExtractor adds custom attributes for each traced call.
	AttributeExtractor func(call *router.Call) []attribute.KeyValue
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

// WithIncludeArgs enables recording query arguments on spans.
func WithIncludeArgs(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeArgs = include
	}
}

// WithCallFilter sets a filter function for calls.
func WithCallFilter(filter func(call *router.Call) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(call *router.Call) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every dispatched command.
//
// The middleware:
//   - Starts a server span named "<METHOD> <path>" with the method, path
//     and body size as attributes
//   - Replaces the call context with the span context so handlers inherit
//     the trace
//   - Records the error code, and the error itself for failures
//
// Without a configured provider the global one is used, which is a no-op
// until the application installs an SDK:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) router.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(config.TracerName)

	return router.MiddlewareFunc(func(call *router.Call, next func() error) error {
		if config.Filter != nil && !config.Filter(call) {
			return next()
		}

		method := call.Method.String()
		attrs := []attribute.KeyValue{
			attribute.String("minirest.method", method),
			attribute.String("minirest.path", call.Path),
			attribute.Int("minirest.body_bytes", len(call.Body)),
		}
		if config.IncludeArgs {
			for name, value := range call.Args {
				attrs = append(attrs, attribute.String("minirest.arg."+name, value))
			}
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(call)...)
		}

		spanCtx, span := tracer.Start(
			call.Context(),
			method+" "+call.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(time.Now()),
		)
		defer span.End()

		call.SetContext(spanCtx)

		err := next()

		code := router.CodeOf(err)
		span.SetAttributes(attribute.String("minirest.error_code", code.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

// SpanFromCall returns the span started for call, or nil if the call is
// not traced.
//
// Example:
//
//	func handler(ctx context.Context, args router.Args, body []byte) (any, error) {
//	    trace.SpanFromContext(ctx).SetAttributes(attribute.Int("items", n))
//	    ...
//	}
func SpanFromCall(call *router.Call) trace.Span {
	span := trace.SpanFromContext(call.Context())
	if !span.SpanContext().IsValid() && !span.IsRecording() {
		return nil
	}
	return span
}

// TraceContext returns the context to propagate to downstream calls made
// on behalf of call.
func TraceContext(call *router.Call) context.Context {
	return call.Context()
}
