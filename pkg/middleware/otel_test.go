package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vango-dev/minirest/pkg/protocol"
	"github.com/vango-dev/minirest/pkg/router"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordingProvider hands out a tracer that keeps every span it starts.
type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{tracer: &recordingTracer{}}
}

func (p *recordingProvider) Tracer(name string, _ ...trace.TracerOption) trace.Tracer {
	p.tracer.name = name
	return p.tracer
}

type recordingTracer struct {
	noop.Tracer
	name  string
	mu    sync.Mutex
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordingSpan{
		name:  name,
		kind:  cfg.SpanKind(),
		attrs: append([]attribute.KeyValue(nil), cfg.Attributes()...),
	}
	t.mu.Lock()
	t.spans = append(t.spans, s)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, s), s
}

type recordingSpan struct {
	noop.Span
	name   string
	kind   trace.SpanKind
	attrs  []attribute.KeyValue
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordingSpan) IsRecording() bool { return !s.ended }

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.attrs = append(s.attrs, kv...)
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }

func (s *recordingSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOpenTelemetrySpan(t *testing.T) {
	tp := newRecordingProvider()
	mw := OpenTelemetry(
		WithTracerProvider(tp),
		WithTracerName("test"),
		WithIncludeArgs(true),
		WithAttributeExtractor(func(*router.Call) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)

	call := newCall(protocol.MethodPost, "/api/echo")
	call.Args = router.Args{"a": "1"}
	call.Body = []byte("hello")

	err := mw.Handle(call, func() error {
		if SpanFromCall(call) == nil {
			t.Error("expected SpanFromCall to return a span during execution")
		}
		if trace.SpanFromContext(TraceContext(call)) != SpanFromCall(call) {
			t.Error("TraceContext should carry the call span")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tp.tracer.name != "test" {
		t.Errorf("tracer name = %q, want test", tp.tracer.name)
	}
	if len(tp.tracer.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tp.tracer.spans))
	}
	span := tp.tracer.spans[0]
	if span.name != "POST /api/echo" {
		t.Errorf("span name = %q", span.name)
	}
	if span.kind != trace.SpanKindServer {
		t.Errorf("span kind = %v, want server", span.kind)
	}
	if !span.ended || span.status != codes.Ok {
		t.Errorf("ended=%v status=%v, want ended Ok", span.ended, span.status)
	}

	wantAttrs := map[string]attribute.Value{
		"minirest.method":     attribute.StringValue("POST"),
		"minirest.path":       attribute.StringValue("/api/echo"),
		"minirest.body_bytes": attribute.IntValue(5),
		"minirest.arg.a":      attribute.StringValue("1"),
		"minirest.error_code": attribute.StringValue("Ok"),
		"test.attr":           attribute.StringValue("ok"),
	}
	for key, want := range wantAttrs {
		got, ok := span.attr(key)
		if !ok {
			t.Errorf("attribute %s missing", key)
			continue
		}
		if got != want {
			t.Errorf("attribute %s = %v, want %v", key, got.Emit(), want.Emit())
		}
	}
}

func TestOpenTelemetryError(t *testing.T) {
	tp := newRecordingProvider()
	wantErr := errors.New("boom")

	call := newCall(protocol.MethodGet, "/api/fail")
	err := OpenTelemetry(WithTracerProvider(tp)).Handle(call, func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected error %v, got %v", wantErr, err)
	}

	span := tp.tracer.spans[0]
	if span.status != codes.Error {
		t.Errorf("status = %v, want Error", span.status)
	}
	if len(span.errs) != 1 || !errors.Is(span.errs[0], wantErr) {
		t.Errorf("recorded errors = %v", span.errs)
	}
	if v, _ := span.attr("minirest.error_code"); v.AsString() != "ExceptionCaught" {
		t.Errorf("error_code = %q", v.AsString())
	}
	if _, ok := span.attr("minirest.arg.a"); ok {
		t.Error("args recorded without WithIncludeArgs")
	}
}

func TestOpenTelemetryFilter(t *testing.T) {
	tp := newRecordingProvider()
	call := newCall(protocol.MethodGet, "/api/version")

	nextCalled := false
	err := OpenTelemetry(
		WithTracerProvider(tp),
		WithCallFilter(func(c *router.Call) bool { return c.Path != "/api/version" }),
	).Handle(call, func() error {
		nextCalled = true
		if SpanFromCall(call) != nil {
			t.Error("expected no span when filter skips tracing")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !nextCalled {
		t.Fatal("expected next to be called")
	}
	if len(tp.tracer.spans) != 0 {
		t.Fatalf("spans = %d, want 0", len(tp.tracer.spans))
	}
}

func TestOpenTelemetryThroughRouter(t *testing.T) {
	tp := newRecordingProvider()
	r := router.New(router.WithMiddleware(OpenTelemetry(WithTracerProvider(tp))))

	var handlerSpan trace.Span
	r.API(protocol.MethodGet, "/api/version", func(ctx context.Context, args router.Args, body []byte) (any, error) {
		handlerSpan = trace.SpanFromContext(ctx)
		return map[string]string{"version": "testing"}, nil
	})

	req := &protocol.Request{Method: protocol.MethodGet, URI: []byte("/api/version")}
	if res := r.Dispatch(context.Background(), req); !res.OK() {
		t.Fatalf("Dispatch() error = %v", res.Err)
	}
	if len(tp.tracer.spans) != 1 || handlerSpan != tp.tracer.spans[0] {
		t.Error("handler context should carry the middleware span")
	}
}

func TestSpanFromCallNoSpan(t *testing.T) {
	if SpanFromCall(newCall(protocol.MethodGet, "/test")) != nil {
		t.Fatal("expected nil span when the call is not traced")
	}
}

func TestOpenTelemetryDefaultProvider(t *testing.T) {
	// The global provider is a no-op until an SDK is installed.
	call := newCall(protocol.MethodGet, "/x")
	if err := OpenTelemetry().Handle(call, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
