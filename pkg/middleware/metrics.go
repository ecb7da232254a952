package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/minirest/pkg/router"
	"github.com/vango-dev/minirest/pkg/server"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "minirest").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for command and connection duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
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

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "minirest",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// unknownPathLabel replaces the path label of unrouted commands so that
// arbitrary request targets do not create new series.
const unknownPathLabel = "unknown"

// Metrics exports command and connection metrics to Prometheus.
//
// It is a router.Middleware (per-command metrics) and a server.Observer
// (per-connection metrics); attach the same instance to both.
//
// Metrics collected:
//   - minirest_commands_total: commands by path, method and error code
//   - minirest_command_duration_seconds: handler time by path
//   - minirest_command_errors_total: failed commands by path and error code
//   - minirest_connections_total: finished connections by outcome
//   - minirest_connection_duration_seconds: time from accept to close
//   - minirest_active_connections: 1 while a connection is in flight
//   - minirest_received_bytes_total, minirest_sent_bytes_total
type Metrics struct {
	commandsTotal      *prometheus.CounterVec
	commandDuration    *prometheus.HistogramVec
	commandErrors      *prometheus.CounterVec
	connectionsTotal   *prometheus.CounterVec
	connectionDuration prometheus.Histogram
	activeConnections  prometheus.Gauge
	bytesReceived      prometheus.Counter
	bytesSent          prometheus.Counter
}

// NewMetrics registers the metrics with the configured registry.
// It panics if they are already registered there, like promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commands_total",
			Help:        "Total number of API commands dispatched",
			ConstLabels: config.ConstLabels,
		}, []string{"path", "method", "code"}),

		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "command_duration_seconds",
			Help:        "Command processing duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"path"}),

		commandErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "command_errors_total",
			Help:        "Total number of failed commands",
			ConstLabels: config.ConstLabels,
		}, []string{"path", "code"}),

		connectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_total",
			Help:        "Total number of finished connections by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		connectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connection_duration_seconds",
			Help:        "Time from accept to close in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_connections",
			Help:        "Number of connections being processed",
			ConstLabels: config.ConstLabels,
		}),

		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "received_bytes_total",
			Help:        "Total request bytes read",
			ConstLabels: config.ConstLabels,
		}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sent_bytes_total",
			Help:        "Total response bytes written",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Prometheus is shorthand for NewMetrics(opts...) when only the router
// middleware is needed.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	r := router.New(router.WithMiddleware(middleware.Prometheus(middleware.WithRegistry(reg))))
func Prometheus(opts ...MetricsOption) router.Middleware {
	return NewMetrics(opts...)
}

// Handle implements router.Middleware.
func (m *Metrics) Handle(call *router.Call, next func() error) error {
	start := time.Now()
	err := next()
	duration := time.Since(start).Seconds()

	code := router.CodeOf(err)
	path := call.Path
	if code == router.CodeUnknownCommand {
		path = unknownPathLabel
	}

	m.commandDuration.WithLabelValues(path).Observe(duration)
	m.commandsTotal.WithLabelValues(path, call.Method.String(), code.String()).Inc()
	if err != nil {
		m.commandErrors.WithLabelValues(path, code.String()).Inc()
	}
	return err
}

// ConnAccepted implements server.Observer.
func (m *Metrics) ConnAccepted() {
	m.activeConnections.Inc()
}

// ConnClosed implements server.Observer.
func (m *Metrics) ConnClosed(stats server.ConnStats) {
	m.activeConnections.Dec()
	m.connectionsTotal.WithLabelValues(stats.Outcome.String()).Inc()
	m.connectionDuration.Observe(stats.Duration.Seconds())
	m.bytesReceived.Add(float64(stats.BytesIn))
	m.bytesSent.Add(float64(stats.BytesOut))
}

var (
	_ router.Middleware = (*Metrics)(nil)
	_ server.Observer   = (*Metrics)(nil)
)
