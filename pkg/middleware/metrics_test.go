package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/vango-dev/minirest/pkg/protocol"
	"github.com/vango-dev/minirest/pkg/router"
	"github.com/vango-dev/minirest/pkg/server"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func newCall(method protocol.Method, path string) *router.Call {
	return &router.Call{Method: method, Path: path, Args: router.Args{}}
}

func TestMetricsHandle(t *testing.T) {
	t.Run("success counts ok code and duration", func(t *testing.T) {
		m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

		if err := m.Handle(newCall(protocol.MethodGet, "/api/version"), func() error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := metricCounterValue(t, m.commandsTotal.WithLabelValues("/api/version", "GET", "Ok")); got != 1 {
			t.Fatalf("commands_total(Ok)=%v, want 1", got)
		}
		if got := metricHistogramCount(t, m.commandDuration.WithLabelValues("/api/version")); got != 1 {
			t.Fatalf("command_duration_seconds count=%d, want 1", got)
		}
		if got := metricCounterValue(t, m.commandErrors.WithLabelValues("/api/version", "Ok")); got != 0 {
			t.Fatalf("command_errors_total=%v, want 0", got)
		}
	})

	t.Run("errors are labelled by code", func(t *testing.T) {
		m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
		call := newCall(protocol.MethodGet, "/api/sum")

		wantErr := router.InvalidArguments("missing argument")
		err := m.Handle(call, func() error { return wantErr })
		if !errors.Is(err, wantErr) {
			t.Fatalf("error = %v, want %v", err, wantErr)
		}
		_ = m.Handle(call, func() error { return errors.New("boom") })

		if got := metricCounterValue(t, m.commandErrors.WithLabelValues("/api/sum", "InvalidArguments")); got != 1 {
			t.Fatalf("command_errors_total(InvalidArguments)=%v, want 1", got)
		}
		if got := metricCounterValue(t, m.commandErrors.WithLabelValues("/api/sum", "ExceptionCaught")); got != 1 {
			t.Fatalf("command_errors_total(ExceptionCaught)=%v, want 1", got)
		}
		if got := metricCounterValue(t, m.commandsTotal.WithLabelValues("/api/sum", "GET", "ExceptionCaught")); got != 1 {
			t.Fatalf("commands_total(ExceptionCaught)=%v, want 1", got)
		}
	})

	t.Run("unknown commands share one path label", func(t *testing.T) {
		m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
		r := router.New(router.WithMiddleware(m))

		for _, uri := range []string{"/a", "/b", "/c?x=1"} {
			req := &protocol.Request{Method: protocol.MethodGet, URI: []byte(uri)}
			if res := r.Dispatch(context.Background(), req); res.OK() {
				t.Fatalf("Dispatch(%s) succeeded", uri)
			}
		}

		if got := metricCounterValue(t, m.commandErrors.WithLabelValues(unknownPathLabel, "UnknownCommand")); got != 3 {
			t.Fatalf("command_errors_total(unknown)=%v, want 3", got)
		}
	})
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	m.ConnAccepted()
	if got := metricGaugeValue(t, m.activeConnections); got != 1 {
		t.Fatalf("active_connections=%v, want 1", got)
	}
	m.ConnClosed(server.ConnStats{Outcome: server.OutcomeServed, BytesIn: 40, BytesOut: 60, Duration: time.Millisecond})

	m.ConnAccepted()
	m.ConnClosed(server.ConnStats{Outcome: server.OutcomeParseError, BytesIn: 10})

	if got := metricGaugeValue(t, m.activeConnections); got != 0 {
		t.Fatalf("active_connections=%v, want 0", got)
	}
	if got := metricCounterValue(t, m.connectionsTotal.WithLabelValues("served")); got != 1 {
		t.Fatalf("connections_total(served)=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.connectionsTotal.WithLabelValues("parse_error")); got != 1 {
		t.Fatalf("connections_total(parse_error)=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.bytesReceived); got != 50 {
		t.Fatalf("received_bytes_total=%v, want 50", got)
	}
	if got := metricCounterValue(t, m.bytesSent); got != 60 {
		t.Fatalf("sent_bytes_total=%v, want 60", got)
	}
	if got := metricHistogramCount(t, m.connectionDuration); got != 2 {
		t.Fatalf("connection_duration_seconds count=%d, want 2", got)
	}
}

func TestMetricsOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(
		WithRegistry(reg),
		WithNamespace("svc"),
		WithSubsystem("api"),
		WithConstLabels(prometheus.Labels{"env": "test"}),
		WithBuckets([]float64{0.1, 1}),
	)
	_ = m.Handle(newCall(protocol.MethodGet, "/x"), func() error { return nil })

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "svc_api_commands_total" {
			found = f
		}
	}
	if found == nil {
		t.Fatal("svc_api_commands_total not registered")
	}
	var hasEnv bool
	for _, lp := range found.GetMetric()[0].GetLabel() {
		if lp.GetName() == "env" && lp.GetValue() == "test" {
			hasEnv = true
		}
	}
	if !hasEnv {
		t.Error("const label env=test missing")
	}
}

func TestMetricsDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewMetrics(WithRegistry(reg))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	_ = Prometheus(WithRegistry(reg))
}
