package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"runtime"
	"runtime/metrics"
	"strings"
	"time"

	"github.com/vango-dev/minirest/pkg/server"
)

type runtimeMetricsSnapshot struct {
	cpuTotalSeconds   float64
	cpuGCSeconds      float64
	heapAllocsBytes   uint64
	heapAllocsObjects uint64
}

func readRuntimeMetrics() runtimeMetricsSnapshot {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
		{Name: "/gc/heap/allocs:bytes"},
		{Name: "/gc/heap/allocs:objects"},
	}
	metrics.Read(samples)

	var out runtimeMetricsSnapshot
	for _, s := range samples {
		if s.Value.Kind() == metrics.KindBad {
			continue
		}
		switch s.Name {
		case "/cpu/classes/total:cpu-seconds":
			out.cpuTotalSeconds = s.Value.Float64()
		case "/cpu/classes/gc/total:cpu-seconds":
			out.cpuGCSeconds = s.Value.Float64()
		case "/gc/heap/allocs:bytes":
			out.heapAllocsBytes = s.Value.Uint64()
		case "/gc/heap/allocs:objects":
			out.heapAllocsObjects = s.Value.Uint64()
		}
	}
	return out
}

func cpuFraction(after, before runtimeMetricsSnapshot) float64 {
	total := after.cpuTotalSeconds - before.cpuTotalSeconds
	if total <= 0 {
		return 0
	}
	gc := after.cpuGCSeconds - before.cpuGCSeconds
	if gc < 0 {
		return 0
	}
	return gc / total
}

// percentile returns the nearest-rank percentile of sorted, p in [0, 1].
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func avgPause(after, before runtime.MemStats) time.Duration {
	gcCount := after.NumGC - before.NumGC
	if gcCount == 0 {
		return 0
	}
	return time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(gcCount))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type benchReport struct {
	Version    string         `json:"version"`
	Run        runInfo        `json:"run"`
	Workload   workloadInfo   `json:"workload"`
	LatencyMS  latencyInfo    `json:"latency_ms"`
	Throughput throughputInfo `json:"throughput"`
	GC         gcInfo         `json:"gc"`
	Protocol   protocolInfo   `json:"protocol"`
	Errors     errorInfo      `json:"errors"`
	Server     *serverInfo    `json:"server,omitempty"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
	GitCommit string `json:"git_commit,omitempty"`
}

type workloadInfo struct {
	Profile          string  `json:"profile"`
	Target           string  `json:"target"`
	Clients          int     `json:"clients"`
	DurationMS       int64   `json:"duration_ms"`
	RPSPerClient     float64 `json:"rps_per_client"`
	MaxProcs         int     `json:"max_procs"`
	MemLimitBytes    int64   `json:"mem_limit_bytes"`
	RequestTimeoutMS int64   `json:"request_timeout_ms"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	RequestsTotal        int64   `json:"requests_total"`
	ResponsesOK          int64   `json:"responses_ok"`
	RequestsPerSec       float64 `json:"requests_per_sec"`
	RequestsPerSecClient float64 `json:"requests_per_sec_per_client"`
}

type gcInfo struct {
	AllocMB       float64 `json:"alloc_mb"`
	HeapLiveMB    float64 `json:"heap_live_mb"`
	NumGC         uint32  `json:"num_gc"`
	PauseTotalMS  float64 `json:"pause_total_ms"`
	PauseAvgMS    float64 `json:"pause_avg_ms"`
	GCCPUFraction float64 `json:"gc_cpu_fraction"`
	AllocsObjects uint64  `json:"allocs_objects"`
}

type protocolInfo struct {
	BytesSent        int64   `json:"bytes_sent"`
	BytesReceived    int64   `json:"bytes_received"`
	AvgRequestBytes  float64 `json:"avg_request_bytes"`
	AvgResponseBytes float64 `json:"avg_response_bytes"`
}

type errorInfo struct {
	TotalErrors    int64 `json:"total_errors"`
	DialErrors     int64 `json:"dial_errors"`
	WriteErrors    int64 `json:"write_errors"`
	ReadErrors     int64 `json:"read_errors"`
	Timeouts       int64 `json:"timeouts"`
	ResponseErrors int64 `json:"response_errors"`
}

// serverInfo is filled in only for the in-process server.
type serverInfo struct {
	Accepted      int64 `json:"accepted"`
	Served        int64 `json:"served"`
	Dropped       int64 `json:"dropped"`
	LatencyP50US  int64 `json:"latency_p50_us"`
	LatencyP99US  int64 `json:"latency_p99_us"`
	BytesReceived int64 `json:"bytes_received"`
	BytesSent     int64 `json:"bytes_sent"`
}

func serverInfoFrom(m *server.ServerMetrics) *serverInfo {
	return &serverInfo{
		Accepted:      m.Accepted,
		Served:        m.Served,
		Dropped:       m.Dropped,
		LatencyP50US:  m.LatencyP50,
		LatencyP99US:  m.LatencyP99,
		BytesReceived: m.BytesReceived,
		BytesSent:     m.BytesSent,
	}
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	latencies []time.Duration,
	counters *benchCounters,
	errCounts *benchErrors,
	before runtime.MemStats,
	after runtime.MemStats,
	beforeMetrics runtimeMetricsSnapshot,
	afterMetrics runtimeMetricsSnapshot,
) benchReport {
	requests := counters.requestsSent.Load()
	ok := counters.responsesOK.Load()
	sent := counters.bytesSent.Load()
	received := counters.bytesReceived.Load()

	elapsedSeconds := math.Max(0.001, elapsed.Seconds())
	perSec := float64(ok) / elapsedSeconds
	perSecClient := perSec / float64(cfg.Clients)

	latency := latencyInfo{}
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}

	avgRequest := 0.0
	if requests > 0 {
		avgRequest = float64(sent) / float64(requests)
	}
	avgResponse := 0.0
	if requests > 0 {
		avgResponse = float64(received) / float64(requests)
	}

	target := cfg.Addr
	if target == "" {
		target = "in-process"
	}

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
			GitCommit: gitCommit(),
		},
		Workload: workloadInfo{
			Profile:          cfg.Profile,
			Target:           target,
			Clients:          cfg.Clients,
			DurationMS:       cfg.Duration.Milliseconds(),
			RPSPerClient:     cfg.RPS,
			MaxProcs:         cfg.MaxProcs,
			MemLimitBytes:    cfg.MemLimitBytes,
			RequestTimeoutMS: cfg.RequestTimeout.Milliseconds(),
		},
		LatencyMS: latency,
		Throughput: throughputInfo{
			RequestsTotal:        requests,
			ResponsesOK:          ok,
			RequestsPerSec:       perSec,
			RequestsPerSecClient: perSecClient,
		},
		GC: gcInfo{
			AllocMB:       float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:    float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:         after.NumGC - before.NumGC,
			PauseTotalMS:  ms(time.Duration(after.PauseTotalNs - before.PauseTotalNs)),
			PauseAvgMS:    ms(avgPause(after, before)),
			GCCPUFraction: cpuFraction(afterMetrics, beforeMetrics),
			AllocsObjects: afterMetrics.heapAllocsObjects - beforeMetrics.heapAllocsObjects,
		},
		Protocol: protocolInfo{
			BytesSent:        sent,
			BytesReceived:    received,
			AvgRequestBytes:  avgRequest,
			AvgResponseBytes: avgResponse,
		},
		Errors: errorInfo{
			TotalErrors:    errCounts.totalErrors.Load(),
			DialErrors:     errCounts.dialErrors.Load(),
			WriteErrors:    errCounts.writeErrors.Load(),
			ReadErrors:     errCounts.readErrors.Load(),
			Timeouts:       errCounts.timeoutErrors.Load(),
			ResponseErrors: errCounts.responseErrors.Load(),
		},
	}
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== minirest benchmark ===")
	fmt.Fprintf(w, "Profile: %s\n", report.Workload.Profile)
	fmt.Fprintf(w, "Target: %s\n", report.Workload.Target)
	fmt.Fprintf(w, "Clients: %d\n", report.Workload.Clients)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(report.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Target per-client rate: %.2f req/s\n", report.Workload.RPSPerClient)
	if report.Workload.MaxProcs > 0 {
		fmt.Fprintf(w, "GOMAXPROCS cap: %d\n", report.Workload.MaxProcs)
	}
	if report.Workload.MemLimitBytes > 0 {
		fmt.Fprintf(w, "GOMEMLIMIT cap: %.2f GiB\n", float64(report.Workload.MemLimitBytes)/float64(gib))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Requests: %d (%d ok)\n", report.Throughput.RequestsTotal, report.Throughput.ResponsesOK)
	fmt.Fprintf(w, "Throughput: %.1f req/s (%.2f per client)\n", report.Throughput.RequestsPerSec, report.Throughput.RequestsPerSecClient)
	fmt.Fprintf(w, "Errors: %d\n", report.Errors.TotalErrors)
	fmt.Fprintln(w)

	if report.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "RTT (connect -> request -> response closed):")
		fmt.Fprintf(w, "  min: %.2f ms\n", report.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.2f ms\n", report.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.2f ms\n", report.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.2f ms\n", report.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.2f ms\n", report.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Protocol (avg per request):")
	fmt.Fprintf(w, "  request bytes:  %.1f\n", report.Protocol.AvgRequestBytes)
	fmt.Fprintf(w, "  response bytes: %.1f\n", report.Protocol.AvgResponseBytes)
	fmt.Fprintln(w)

	if s := report.Server; s != nil {
		fmt.Fprintln(w, "Server loop:")
		fmt.Fprintf(w, "  accepted: %d\n", s.Accepted)
		fmt.Fprintf(w, "  served:   %d\n", s.Served)
		fmt.Fprintf(w, "  dropped:  %d\n", s.Dropped)
		fmt.Fprintf(w, "  p50:      %d us\n", s.LatencyP50US)
		fmt.Fprintf(w, "  p99:      %d us\n", s.LatencyP99US)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", report.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total)\n", report.GC.PauseTotalMS)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (avg)\n", report.GC.PauseAvgMS)
	fmt.Fprintf(w, "  gc_cpu:    %.2f%%\n", report.GC.GCCPUFraction*100)
}

func writeJSON(path string, report benchReport) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func gitCommit() string {
	if val := strings.TrimSpace(os.Getenv("MINIREST_GIT_COMMIT")); val != "" {
		return val
	}
	if val := strings.TrimSpace(os.Getenv("GIT_COMMIT")); val != "" {
		return val
	}
	out, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
