package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/vango-dev/minirest/pkg/protocol"
)

var (
	statusOK         = []byte("HTTP/1.1 200 OK\r\n")
	headerTerminator = []byte("\r\n\r\n")
)

var errBadResponse = errors.New("unexpected response")

type benchCounters struct {
	requestsSent  atomic.Int64
	responsesOK   atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
}

type benchErrors struct {
	dialErrors     atomic.Int64
	writeErrors    atomic.Int64
	readErrors     atomic.Int64
	timeoutErrors  atomic.Int64
	responseErrors atomic.Int64
	totalErrors    atomic.Int64
}

// runClient issues requests at cfg.RPS until ctx is done. Each request uses
// a fresh connection since the server closes it after one response.
func runClient(ctx context.Context, addr string, clientID int, cfg benchConfig, counters *benchCounters, errCounts *benchErrors, samples chan<- time.Duration) error {
	interval := time.Duration(float64(time.Second) / cfg.RPS)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	enc := protocol.NewEncoder()
	dialer := net.Dialer{Timeout: cfg.RequestTimeout}

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		seq++
		raw, err := encodeSum(enc, seq, int64(clientID))
		if err != nil {
			return err
		}

		start := time.Now()
		err = roundTrip(ctx, &dialer, addr, raw, cfg.RequestTimeout, seq+int64(clientID), counters)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			recordError(errCounts, err)
			continue
		}
		counters.responsesOK.Add(1)

		select {
		case samples <- time.Since(start):
		default:
		}
	}
}

// encodeSum serializes GET /api/sum?a=<a>&b=<b> into enc.
func encodeSum(enc *protocol.Encoder, a, b int64) ([]byte, error) {
	uri := make([]byte, 0, 48)
	uri = append(uri, "/api/sum?a="...)
	uri = strconv.AppendInt(uri, a, 10)
	uri = append(uri, "&b="...)
	uri = strconv.AppendInt(uri, b, 10)

	req := protocol.Request{
		Method:  protocol.MethodGet,
		URI:     uri,
		Version: []byte("HTTP/1.1"),
	}
	req.Header.AddString("Host", "minirest-bench")
	req.Header.AddString("Accept", "application/json")
	return enc.Encode(&req)
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return e.stage + ": " + e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}

func roundTrip(ctx context.Context, dialer *net.Dialer, addr string, raw []byte, timeout time.Duration, want int64, counters *benchCounters) error {
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &stageError{stage: "dial", err: err}
	}
	defer conn.Close()

	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	n, err := conn.Write(raw)
	counters.bytesSent.Add(int64(n))
	if err != nil {
		return &stageError{stage: "write", err: err}
	}
	counters.requestsSent.Add(1)

	resp, err := io.ReadAll(conn)
	counters.bytesReceived.Add(int64(len(resp)))
	if err != nil {
		return &stageError{stage: "read", err: err}
	}
	if err := checkSum(resp, want); err != nil {
		return &stageError{stage: "response", err: err}
	}
	return nil
}

// checkSum validates a full response to /api/sum.
func checkSum(resp []byte, want int64) error {
	if !bytes.HasPrefix(resp, statusOK) {
		return fmt.Errorf("%w: bad status line", errBadResponse)
	}
	i := bytes.Index(resp, headerTerminator)
	if i < 0 {
		return fmt.Errorf("%w: no header terminator", errBadResponse)
	}

	var body struct {
		Sum     *int64 `json:"sum"`
		Message string `json:"error_string"`
	}
	if err := json.Unmarshal(resp[i+len(headerTerminator):], &body); err != nil {
		return fmt.Errorf("%w: %v", errBadResponse, err)
	}
	if body.Sum == nil {
		return fmt.Errorf("%w: error %q", errBadResponse, body.Message)
	}
	if *body.Sum != want {
		return fmt.Errorf("%w: sum %d, want %d", errBadResponse, *body.Sum, want)
	}
	return nil
}

func recordError(errCounts *benchErrors, err error) {
	errCounts.totalErrors.Add(1)

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		errCounts.timeoutErrors.Add(1)
		return
	}

	var se *stageError
	if !errors.As(err, &se) {
		return
	}
	switch se.stage {
	case "dial":
		errCounts.dialErrors.Add(1)
	case "write":
		errCounts.writeErrors.Add(1)
	case "read":
		errCounts.readErrors.Add(1)
	case "response":
		errCounts.responseErrors.Add(1)
	}
}
