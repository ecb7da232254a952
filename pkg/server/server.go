package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/vango-dev/minirest/pkg/protocol"
)

// Server accepts connections one at a time and answers a single request
// on each.
//
// Connections are processed strictly in sequence: the next Accept happens
// only after the previous connection has been closed. The receive buffer,
// the request and the send buffer are reused across connections.
type Server struct {
	config  *ServerConfig
	handler Handler
	logger  *slog.Logger

	reader  *protocol.MessageReader
	encoder *protocol.Encoder
	req     protocol.Request

	metrics  *MetricsCollector
	observer Observer

	mu       sync.Mutex
	listener net.Listener
	active   net.Conn
	closed   bool
	serving  bool
	done     chan struct{}
	baseCtx  context.Context
}

// New creates a new Server with the given handler and configuration.
// A nil handler uses DefaultHandler; a nil config uses DefaultServerConfig.
func New(handler Handler, config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		config = config.Clone()
	}
	config.applyDefaults()

	if handler == nil {
		handler = DefaultHandler{Logger: config.Logger}
	}

	metrics := NewMetricsCollector()
	var observer Observer = metrics
	if config.Observer != nil {
		observer = multiObserver{metrics, config.Observer}
	}

	return &Server{
		config:   config,
		handler:  handler,
		logger:   config.Logger,
		reader:   protocol.NewMessageReader(config.Limits),
		encoder:  protocol.NewEncoderWithCap(config.SendBufferSize),
		metrics:  metrics,
		observer: observer,
		baseCtx:  context.Background(),
	}
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Metrics returns a snapshot of the connection counters.
func (s *Server) Metrics() *ServerMetrics {
	return s.metrics.Snapshot()
}

// Addr returns the listener address, or nil if not serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, the server is closed, or Accept fails. Cancellation and Close
// return ErrServerClosed.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.config.ValidateConfig(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return NewConnError("", "listen", err)
	}

	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = s.Close()
	})
	defer stop()

	return s.Serve(ln)
}

// Run serves until SIGINT or SIGTERM, then waits up to ShutdownTimeout for
// the connection in flight.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe(context.Background())
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancelShutdown()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Serve accepts connections on ln and processes each one fully before
// accepting the next. It always closes ln before returning.
//
// An Accept failure closes the listener and is returned. After Close or
// Shutdown, Serve returns ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	if s.serving {
		s.mu.Unlock()
		return ErrServerRunning
	}
	s.serving = true
	s.listener = ln
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	defer func() {
		_ = ln.Close()
		s.mu.Lock()
		s.serving = false
		s.mu.Unlock()
		close(done)
	}()

	s.logger.Info("server starting", "address", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			s.logger.Error("accept failed", "error", err)
			return NewConnError("", "accept", err)
		}
		s.serveConn(conn)
	}
}

// Close stops the server immediately: the listener and any connection in
// flight are closed.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	if s.active != nil {
		_ = s.active.Close()
	}
	return err
}

// Shutdown stops accepting connections and waits for the connection in
// flight to finish. If ctx expires first, the connection is closed and
// ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	done := s.done
	serving := s.serving
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	if !serving || done == nil {
		s.logger.Info("server shutdown complete")
		return nil
	}

	select {
	case <-done:
		s.logger.Info("server shutdown complete")
		return nil
	case <-ctx.Done():
		_ = s.Close()
		s.logger.Error("shutdown error", "error", ctx.Err())
		return ctx.Err()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) setActive(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = conn
}

func (s *Server) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// serveConn runs one request/response exchange and closes conn.
func (s *Server) serveConn(conn net.Conn) {
	start := time.Now()
	remote := conn.RemoteAddr().String()
	stats := ConnStats{Remote: remote}

	s.setActive(conn)
	s.observer.ConnAccepted()

	defer func() {
		if p := recover(); p != nil {
			herr := &HandlerError{Remote: remote, Panic: p, Stack: debug.Stack()}
			s.logger.Error("handler panic", "error", herr, "stack", string(herr.Stack))
			stats.Outcome = OutcomeHandlerError
		}
		s.req.Reset()
		_ = conn.Close()
		s.setActive(nil)
		stats.Duration = time.Since(start)
		s.observer.ConnClosed(stats)
	}()

	stats.Outcome, stats.BytesIn, stats.BytesOut = s.exchange(conn, remote)
}

// exchange reads, parses, handles and writes. It returns the outcome and
// byte counts; errors are logged here.
func (s *Server) exchange(conn net.Conn, remote string) (Outcome, int, int) {
	if s.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	buf, err := s.reader.ReadMessage(conn)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			s.logger.Debug("connection closed before request", "remote", remote)
			return OutcomeEmpty, 0, 0
		case errors.Is(err, protocol.ErrMessageTooLarge):
			s.logger.Warn("request too large", "error", NewConnError(remote, "read", err))
			return OutcomeTooLarge, s.reader.Cap(), 0
		default:
			s.logger.Error("can't read request", "error", NewConnError(remote, "read", err))
			return OutcomeReadError, 0, 0
		}
	}
	in := len(buf)

	if err := s.req.Parse(buf); err != nil {
		s.logger.Warn("can't parse request", "error", NewConnError(remote, "parse", err))
		return OutcomeParseError, in, 0
	}

	resp := s.handler.ServeRequest(s.context(), &s.req)
	if resp == nil {
		s.logger.Error("no response", "error", NewConnError(remote, "handle", ErrNilResponse))
		return OutcomeHandlerError, in, 0
	}

	out, err := s.encoder.Encode(resp)
	if err != nil {
		s.logger.Error("can't serialize response", "error", NewConnError(remote, "encode", err))
		return OutcomeEncodeError, in, 0
	}

	if s.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	n, err := conn.Write(out)
	if err != nil {
		s.logger.Error("can't send response", "error", NewConnError(remote, "write", err))
		return OutcomeWriteError, in, n
	}
	return OutcomeServed, in, n
}
