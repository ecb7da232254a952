package server

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome is how a connection ended.
type Outcome uint8

const (
	// OutcomeServed means a response was written.
	OutcomeServed Outcome = iota
	// OutcomeEmpty means the peer closed before sending anything.
	OutcomeEmpty
	// OutcomeReadError covers socket errors, timeouts and EOF mid-message.
	OutcomeReadError
	// OutcomeTooLarge means the message exceeded the size limit.
	OutcomeTooLarge
	// OutcomeParseError means the request was malformed.
	OutcomeParseError
	// OutcomeHandlerError means the handler panicked or returned nil.
	OutcomeHandlerError
	// OutcomeEncodeError means the response could not be serialized.
	OutcomeEncodeError
	// OutcomeWriteError means writing the response failed.
	OutcomeWriteError
)

// String returns the label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeServed:
		return "served"
	case OutcomeEmpty:
		return "empty"
	case OutcomeReadError:
		return "read_error"
	case OutcomeTooLarge:
		return "too_large"
	case OutcomeParseError:
		return "parse_error"
	case OutcomeHandlerError:
		return "handler_error"
	case OutcomeEncodeError:
		return "encode_error"
	case OutcomeWriteError:
		return "write_error"
	default:
		return "unknown"
	}
}

// ConnStats describes one finished connection.
type ConnStats struct {
	Outcome  Outcome
	BytesIn  int
	BytesOut int
	Duration time.Duration
	Remote   string
}

// Observer receives connection events from the loop. Calls happen on the
// loop goroutine, one connection at a time.
type Observer interface {
	// ConnAccepted is called after Accept returns a connection.
	ConnAccepted()
	// ConnClosed is called after the connection has been closed.
	ConnClosed(stats ConnStats)
}

// ServerMetrics is a point-in-time view of the loop counters.
type ServerMetrics struct {
	// Connections
	Accepted int64
	Served   int64
	Dropped  int64

	// Drops by cause
	ReadErrors    int64
	ParseErrors   int64
	TooLarge      int64
	HandlerErrors int64
	EncodeErrors  int64
	WriteErrors   int64

	// Network
	BytesReceived int64
	BytesSent     int64

	// Latency (microseconds)
	LatencyP50 int64
	LatencyP99 int64

	// Timestamp
	CollectedAt time.Time
}

// MetricsCollector counts connection outcomes. It implements Observer and
// is always attached to a Server.
type MetricsCollector struct {
	accepted      atomic.Int64
	served        atomic.Int64
	dropped       atomic.Int64
	readErrors    atomic.Int64
	parseErrors   atomic.Int64
	tooLarge      atomic.Int64
	handlerErrors atomic.Int64
	encodeErrors  atomic.Int64
	writeErrors   atomic.Int64
	bytesReceived atomic.Int64
	bytesSent     atomic.Int64

	latencyMu sync.Mutex
	latencies []int64
}

const maxLatencySamples = 1000

// NewMetricsCollector creates a new MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		latencies: make([]int64, 0, maxLatencySamples),
	}
}

// ConnAccepted implements Observer.
func (m *MetricsCollector) ConnAccepted() {
	m.accepted.Add(1)
}

// ConnClosed implements Observer.
func (m *MetricsCollector) ConnClosed(stats ConnStats) {
	m.bytesReceived.Add(int64(stats.BytesIn))
	m.bytesSent.Add(int64(stats.BytesOut))

	switch stats.Outcome {
	case OutcomeServed:
		m.served.Add(1)
		m.recordLatency(stats.Duration.Microseconds())
		return
	case OutcomeEmpty:
		// Not counted as a drop: nothing was asked.
		return
	case OutcomeReadError:
		m.readErrors.Add(1)
	case OutcomeTooLarge:
		m.tooLarge.Add(1)
	case OutcomeParseError:
		m.parseErrors.Add(1)
	case OutcomeHandlerError:
		m.handlerErrors.Add(1)
	case OutcomeEncodeError:
		m.encodeErrors.Add(1)
	case OutcomeWriteError:
		m.writeErrors.Add(1)
	}
	m.dropped.Add(1)
}

func (m *MetricsCollector) recordLatency(us int64) {
	m.latencyMu.Lock()
	defer m.latencyMu.Unlock()

	// Keep only recent samples
	if len(m.latencies) >= maxLatencySamples {
		m.latencies = append(m.latencies[:0], m.latencies[maxLatencySamples/2:]...)
	}
	m.latencies = append(m.latencies, us)
}

// Snapshot returns current metrics.
func (m *MetricsCollector) Snapshot() *ServerMetrics {
	metrics := &ServerMetrics{
		Accepted:      m.accepted.Load(),
		Served:        m.served.Load(),
		Dropped:       m.dropped.Load(),
		ReadErrors:    m.readErrors.Load(),
		ParseErrors:   m.parseErrors.Load(),
		TooLarge:      m.tooLarge.Load(),
		HandlerErrors: m.handlerErrors.Load(),
		EncodeErrors:  m.encodeErrors.Load(),
		WriteErrors:   m.writeErrors.Load(),
		BytesReceived: m.bytesReceived.Load(),
		BytesSent:     m.bytesSent.Load(),
		CollectedAt:   time.Now(),
	}
	metrics.LatencyP50, metrics.LatencyP99 = m.latencyPercentiles()
	return metrics
}

// latencyPercentiles calculates P50 and P99 latencies.
func (m *MetricsCollector) latencyPercentiles() (p50, p99 int64) {
	m.latencyMu.Lock()
	sorted := slices.Clone(m.latencies)
	m.latencyMu.Unlock()

	n := len(sorted)
	if n == 0 {
		return 0, 0
	}
	slices.Sort(sorted)
	return sorted[n/2], sorted[(n*99)/100]
}

// multiObserver fans events out to several observers.
type multiObserver []Observer

// Observers returns an Observer that notifies each non-nil obs in order.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (o multiObserver) ConnAccepted() {
	for _, obs := range o {
		obs.ConnAccepted()
	}
}

func (o multiObserver) ConnClosed(stats ConnStats) {
	for _, obs := range o {
		obs.ConnClosed(stats)
	}
}
