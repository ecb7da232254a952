// Package admin serves the operational HTTP endpoints of a minirest
// process on a side address: Prometheus metrics, a health probe, the
// route table and a WebSocket feed of connection events.
//
// The admin server is independent of the request loop. It runs net/http
// with a chi router so it can answer while the loop is busy with a slow
// client.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/minirest/pkg/router"
)

// Server is the admin HTTP server.
type Server struct {
	addr     string
	gatherer prometheus.Gatherer
	routes   func() []router.RouteInfo
	health   func() error
	events   *EventHub
	logger   *slog.Logger
	mux      chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the registry exposed on /metrics.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithRouter lists r's routes on /routes.
func WithRouter(r *router.Router) Option {
	return func(s *Server) {
		s.routes = r.Routes
	}
}

// WithHealthCheck sets the check behind /healthz. A non-nil error
// answers 503.
func WithHealthCheck(check func() error) Option {
	return func(s *Server) {
		s.health = check
	}
}

// WithEvents streams h's connection events on /events.
func WithEvents(h *EventHub) Option {
	return func(s *Server) {
		s.events = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an admin server for addr.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		gatherer: prometheus.DefaultGatherer,
		routes:   func() []router.RouteInfo { return nil },
		logger:   slog.Default().With("component", "admin"),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", s.handleHealth)
	r.Get("/routes", s.handleRoutes)
	if s.events != nil {
		r.Method(http.MethodGet, "/events", s.events)
	}
	s.mux = r
	return s
}

// Handler returns the HTTP handler of the admin endpoints.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if s.events != nil {
		srv.RegisterOnShutdown(s.events.Close)
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	s.logger.Info("admin server starting", "address", ln.Addr().String())
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type healthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, healthStatus{Status: "ok"}
	if s.health != nil {
		if err := s.health(); err != nil {
			status, body = http.StatusServiceUnavailable, healthStatus{Status: "unavailable", Error: err.Error()}
		}
	}
	writeJSON(w, status, body)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes := s.routes()
	if routes == nil {
		routes = []router.RouteInfo{}
	}
	writeJSON(w, http.StatusOK, routes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
