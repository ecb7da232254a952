package server

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeServed, "served"},
		{OutcomeEmpty, "empty"},
		{OutcomeReadError, "read_error"},
		{OutcomeTooLarge, "too_large"},
		{OutcomeParseError, "parse_error"},
		{OutcomeHandlerError, "handler_error"},
		{OutcomeEncodeError, "encode_error"},
		{OutcomeWriteError, "write_error"},
		{Outcome(200), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.outcome.String(); got != tc.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tc.outcome, got, tc.want)
		}
	}
}

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector()

	events := []ConnStats{
		{Outcome: OutcomeServed, BytesIn: 40, BytesOut: 19, Duration: 2 * time.Millisecond},
		{Outcome: OutcomeServed, BytesIn: 60, BytesOut: 30, Duration: 4 * time.Millisecond},
		{Outcome: OutcomeEmpty},
		{Outcome: OutcomeReadError},
		{Outcome: OutcomeTooLarge, BytesIn: 1024},
		{Outcome: OutcomeParseError, BytesIn: 10},
		{Outcome: OutcomeHandlerError},
		{Outcome: OutcomeEncodeError},
		{Outcome: OutcomeWriteError, BytesIn: 5, BytesOut: 3},
	}
	for _, ev := range events {
		m.ConnAccepted()
		m.ConnClosed(ev)
	}

	got := m.Snapshot()
	want := ServerMetrics{
		Accepted:      9,
		Served:        2,
		Dropped:       6,
		ReadErrors:    1,
		ParseErrors:   1,
		TooLarge:      1,
		HandlerErrors: 1,
		EncodeErrors:  1,
		WriteErrors:   1,
		BytesReceived: 40 + 60 + 1024 + 10 + 5,
		BytesSent:     19 + 30 + 3,
		LatencyP50:    4000,
		LatencyP99:    4000,
	}
	want.CollectedAt = got.CollectedAt
	if *got != want {
		t.Errorf("Snapshot() = %+v\nwant %+v", *got, want)
	}
}

func TestMetricsCollectorLatencyWindow(t *testing.T) {
	m := NewMetricsCollector()
	for i := 0; i < maxLatencySamples+10; i++ {
		m.ConnClosed(ConnStats{Outcome: OutcomeServed, Duration: time.Duration(i) * time.Microsecond})
	}

	m.latencyMu.Lock()
	n := len(m.latencies)
	m.latencyMu.Unlock()
	if n > maxLatencySamples {
		t.Errorf("kept %d samples, want at most %d", n, maxLatencySamples)
	}

	snap := m.Snapshot()
	if snap.LatencyP50 < maxLatencySamples/2 {
		t.Errorf("LatencyP50 = %d, want recent samples only", snap.LatencyP50)
	}
}

func TestMetricsCollectorEmpty(t *testing.T) {
	snap := NewMetricsCollector().Snapshot()
	if snap.LatencyP50 != 0 || snap.LatencyP99 != 0 || snap.Accepted != 0 {
		t.Errorf("empty snapshot = %+v", snap)
	}
}

func TestMultiObserver(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	obs := Observers(a, nil, b)

	obs.ConnAccepted()
	obs.ConnClosed(ConnStats{Outcome: OutcomeServed})

	for i, o := range []*recordingObserver{a, b} {
		accepted, closed := o.snapshot()
		if accepted != 1 || len(closed) != 1 {
			t.Errorf("observer %d: accepted=%d closed=%d", i, accepted, len(closed))
		}
	}
}

func TestConnError(t *testing.T) {
	err := NewConnError("10.0.0.1:5000", "read", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("ConnError should unwrap to its cause")
	}
	if got := err.Error(); got != "server: conn 10.0.0.1:5000: read: unexpected EOF" {
		t.Errorf("Error() = %q", got)
	}

	err = NewConnError("", "accept", io.EOF)
	if got := err.Error(); got != "server: accept: EOF" {
		t.Errorf("Error() = %q", got)
	}

	herr := &HandlerError{Remote: "r", Panic: "boom"}
	if !strings.Contains(herr.Error(), "boom") {
		t.Errorf("HandlerError.Error() = %q", herr.Error())
	}
}
