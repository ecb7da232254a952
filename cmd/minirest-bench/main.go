// Command minirest-bench drives a minirest server with concurrent clients
// and reports round-trip latency, throughput and GC cost.
//
// Without -addr it starts an in-process server on 127.0.0.1 with a small
// /api/sum route; with -addr it targets a running server, which must serve
// the same route. The JSON report goes to stdout, a file, or an S3 object
// when -json is an s3:// URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vango-dev/minirest/pkg/protocol"
	"github.com/vango-dev/minirest/pkg/router"
	"github.com/vango-dev/minirest/pkg/server"
)

const (
	gib = int64(1024 * 1024 * 1024)
)

type profile struct {
	Name          string
	Clients       int
	Duration      time.Duration
	RPS           float64
	MaxProcs      int
	MemLimitBytes int64
}

var profiles = map[string]profile{
	"fast": {
		Name:     "fast",
		Clients:  8,
		Duration: 5 * time.Second,
		RPS:      50,
	},
	"standard": {
		Name:     "standard",
		Clients:  32,
		Duration: 30 * time.Second,
		RPS:      100,
	},
	"stress": {
		Name:          "stress",
		Clients:       128,
		Duration:      60 * time.Second,
		RPS:           200,
		MaxProcs:      4,
		MemLimitBytes: 2 * gib,
	},
}

type benchConfig struct {
	Profile        string
	Addr           string
	Clients        int
	Duration       time.Duration
	RPS            float64
	MaxProcs       int
	MemLimitBytes  int64
	JSONOutput     string
	RequestTimeout time.Duration
}

func main() {
	log.SetFlags(0)

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
	if cfg.MemLimitBytes > 0 {
		debug.SetMemoryLimit(cfg.MemLimitBytes)
	}

	debug.SetGCPercent(100)

	report, err := runBench(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}

	writeSummary(os.Stderr, report)

	if isS3Target(cfg.JSONOutput) {
		key, err := publishS3(context.Background(), newS3Client(), cfg.JSONOutput, report)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("report published to %s", key)
		return
	}
	if err := writeJSON(cfg.JSONOutput, report); err != nil {
		log.Fatalf("write json: %v", err)
	}
}

// runBench runs the workload described by cfg and builds the report.
func runBench(ctx context.Context, cfg benchConfig) (benchReport, error) {
	addr := cfg.Addr
	var srv *server.Server
	if addr == "" {
		ln, err := net.Listen("tcp4", "127.0.0.1:0")
		if err != nil {
			return benchReport{}, fmt.Errorf("listen: %w", err)
		}
		srv = newLoadServer()
		go func() {
			_ = srv.Serve(ln)
		}()
		defer srv.Close()
		addr = ln.Addr().String()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	samplesCh := make(chan time.Duration, sampleBuffer(cfg.Clients))
	var samples []time.Duration
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for rtt := range samplesCh {
			samples = append(samples, rtt)
		}
	}()

	var counters benchCounters
	var errCounts benchErrors

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(cfg.Clients)
	for i := 0; i < cfg.Clients; i++ {
		clientID := i
		go func() {
			defer wg.Done()
			if err := runClient(ctx, addr, clientID, cfg, &counters, &errCounts, samplesCh); err != nil {
				errCounts.totalErrors.Add(1)
			}
		}()
	}

	wg.Wait()
	close(samplesCh)
	<-collectorDone

	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	latencies := samples
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	report := buildReport(cfg, elapsed, latencies, &counters, &errCounts, before, after, beforeMetrics, afterMetrics)
	if srv != nil {
		report.Server = serverInfoFrom(srv.Metrics())
	}
	return report, nil
}

// newLoadServer returns a quiet server with the /api/sum route.
func newLoadServer() *server.Server {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := router.New(router.WithLogger(quiet))
	r.API(protocol.MethodGet, "/api/sum", apiSum)

	cfg := server.DefaultServerConfig().WithLogger(quiet)
	return server.New(r, cfg)
}

type sumResult struct {
	Sum int64 `json:"sum"`
}

func apiSum(ctx context.Context, args router.Args, body []byte) (any, error) {
	var total int64
	for _, name := range []string{"a", "b"} {
		raw, err := args.Require(name)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, router.InvalidArguments(name + " is not an integer")
		}
		total += n
	}
	return sumResult{Sum: total}, nil
}

func sampleBuffer(clients int) int {
	if clients < 1 {
		return 1024
	}
	buf := clients * 4
	if buf < 1024 {
		buf = 1024
	}
	return buf
}

func parseConfig(args []string) (benchConfig, error) {
	fs := flag.NewFlagSet("minirest-bench", flag.ContinueOnError)
	profileFlag := fs.String("profile", "standard", "profile: fast|standard|stress")
	addrFlag := fs.String("addr", "", "address of a running server (default: start one in-process)")
	clientsFlag := fs.Int("clients", -1, "number of concurrent clients")
	durationFlag := fs.String("duration", "", "benchmark duration, e.g. 30s")
	rpsFlag := fs.Float64("rps", -1, "target requests/sec per client")
	maxProcsFlag := fs.Int("max-procs", -1, "GOMAXPROCS cap (0 to leave unchanged)")
	memLimitFlag := fs.String("mem-limit", "", "GOMEMLIMIT (e.g. 2GiB)")
	jsonFlag := fs.String("json", "-", "JSON output path ('-' for stdout, s3://bucket/key to upload)")
	if err := fs.Parse(args); err != nil {
		return benchConfig{}, err
	}

	name := strings.ToLower(strings.TrimSpace(*profileFlag))
	if name == "" {
		name = "standard"
	}

	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, fmt.Errorf("unknown profile %q", name)
	}

	cfg := benchConfig{
		Profile:       base.Name,
		Addr:          strings.TrimSpace(*addrFlag),
		Clients:       base.Clients,
		Duration:      base.Duration,
		RPS:           base.RPS,
		MaxProcs:      base.MaxProcs,
		MemLimitBytes: base.MemLimitBytes,
		JSONOutput:    strings.TrimSpace(*jsonFlag),
	}

	if *clientsFlag != -1 {
		cfg.Clients = *clientsFlag
	}
	if *durationFlag != "" {
		d, err := time.ParseDuration(*durationFlag)
		if err != nil {
			return benchConfig{}, fmt.Errorf("invalid -duration: %w", err)
		}
		cfg.Duration = d
	}
	if *rpsFlag != -1 {
		cfg.RPS = *rpsFlag
	}
	if *maxProcsFlag != -1 {
		cfg.MaxProcs = *maxProcsFlag
	}
	if *memLimitFlag != "" {
		limit, err := parseBytes(*memLimitFlag)
		if err != nil {
			return benchConfig{}, fmt.Errorf("invalid -mem-limit: %w", err)
		}
		cfg.MemLimitBytes = limit
	}
	if cfg.JSONOutput == "" {
		cfg.JSONOutput = "-"
	}

	if cfg.Clients <= 0 {
		return benchConfig{}, errors.New("-clients must be > 0")
	}
	if cfg.Duration <= 0 {
		return benchConfig{}, errors.New("-duration must be > 0")
	}
	if cfg.RPS <= 0 {
		return benchConfig{}, errors.New("-rps must be > 0")
	}
	if cfg.MaxProcs < 0 {
		return benchConfig{}, errors.New("-max-procs must be >= 0")
	}
	if cfg.MemLimitBytes < 0 {
		return benchConfig{}, errors.New("-mem-limit must be >= 0")
	}

	cfg.RequestTimeout = requestTimeout(cfg.RPS)
	return cfg, nil
}

// requestTimeout allows ten request periods, and at least two seconds
// since the server queues every client behind the others.
func requestTimeout(rps float64) time.Duration {
	if rps <= 0 {
		return 0
	}
	period := time.Duration(float64(time.Second) / rps)
	timeout := period * 10
	if timeout < 2*time.Second {
		timeout = 2 * time.Second
	}
	return timeout
}

func parseBytes(input string) (int64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, errors.New("empty size")
	}

	var i int
	for i < len(s) {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' {
			i++
			continue
		}
		break
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid size %q", input)
	}

	numPart := strings.TrimSpace(s[:i])
	suffix := strings.ToLower(strings.TrimSpace(s[i:]))

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, err
	}

	multiplier := float64(1)
	switch suffix {
	case "", "b":
		multiplier = 1
	case "kb":
		multiplier = 1e3
	case "mb":
		multiplier = 1e6
	case "gb":
		multiplier = 1e9
	case "kib":
		multiplier = 1024
	case "mib":
		multiplier = 1024 * 1024
	case "gib":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size suffix %q", suffix)
	}

	bytes := value * multiplier
	if bytes < 0 {
		return 0, fmt.Errorf("invalid size %q", input)
	}
	return int64(bytes + 0.5), nil
}
