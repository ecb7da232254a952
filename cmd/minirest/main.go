package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/vango-dev/minirest/internal/config"
	clierrors "github.com/vango-dev/minirest/internal/errors"
	"github.com/vango-dev/minirest/pkg/admin"
	"github.com/vango-dev/minirest/pkg/middleware"
	"github.com/vango-dev/minirest/pkg/router"
	"github.com/vango-dev/minirest/pkg/server"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		clierrors.PrintError(stderr, err)
		return clierrors.ExitCode(err)
	}
	return 0
}

// serveOptions holds the flag values of the root command.
type serveOptions struct {
	configPath     string
	host           string
	metricsAddr    string
	logLevel       string
	logFormat      string
	readTimeout    string
	canonicalPaths bool
}

func newRootCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "minirest <port>",
		Short: "A minimal HTTP/1.x REST server",
		Long: `minirest serves JSON commands over plain HTTP/1.x.

Connections are handled one at a time: each one carries a single request
and is closed after the response. Every response is 200 OK with a JSON
body; failures are reported inside the body as error_code/error_string.

Routes:
  GET /api/version     {"version":"testing"}
  GET /api/exception   always fails with "Sample exception"`,
		Args:          portArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args[0])
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cmd, opts, port)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to "+config.ConfigFileName+" (default: ./"+config.ConfigFileName+" if present)")
	f.StringVar(&opts.host, "host", "", "interface to listen on (default: all)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "address of the admin server with /metrics, /healthz, /routes and /events (default: disabled)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	f.StringVar(&opts.readTimeout, "read-timeout", "", "time allowed to receive a request, e.g. 10s (default: none)")
	f.BoolVar(&opts.canonicalPaths, "canonical-paths", false, "normalize command paths before routing (collapse //, resolve . and ..)")

	cmd.AddCommand(
		versionCmd(),
		initCmd(),
	)
	return cmd
}

// portArgs requires exactly one positional argument.
func portArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return clierrors.New("E200").
			WithDetail("Usage: " + cmd.UseLine()).
			WithSuggestion("Pass the port to listen on, e.g. 'minirest 8080'")
	}
	return nil
}

// parsePort validates the port argument.
func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, clierrors.New("E201").
			WithDetail(strconv.Quote(s) + " is not a decimal number")
	}
	if port == 0 {
		return 0, clierrors.New("E202").
			WithSuggestion("Pass a port between 1 and 65535")
	}
	if port < 0 || port > 65535 {
		return 0, clierrors.New("E203").
			WithDetail(s + " is not between 1 and 65535")
	}
	return port, nil
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(cmd *cobra.Command, opts serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.LoadOrDefault(".")
	}
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host = opts.host
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if f.Changed("read-timeout") {
		cfg.ReadTimeout = opts.readTimeout
	}
	if f.Changed("canonical-paths") {
		cfg.CanonicalPaths = opts.canonicalPaths
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. format is "text" or "json".
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// serve runs the connection loop, and the admin server if configured,
// until SIGINT or SIGTERM.
func serve(ctx context.Context, cmd *cobra.Command, opts serveOptions, port int) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	level, _ := cfg.LogLevel()
	logger := newLogger(cmd.ErrOrStderr(), level, cfg.Log.Format)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(middleware.WithRegistry(reg))

	routerOpts := []router.Option{
		router.WithLogger(logger.With("component", "router")),
		router.WithMiddleware(
			middleware.OpenTelemetry(middleware.WithTracerName(cfg.TracerName)),
			metrics,
		),
	}
	if cfg.CanonicalPaths {
		routerOpts = append(routerOpts, router.WithCanonicalPaths())
	}
	r := router.New(routerOpts...)
	registerRoutes(r)

	srvCfg, err := cfg.ServerConfig(port)
	if err != nil {
		return err
	}
	var events *admin.EventHub
	if cfg.MetricsAddr != "" {
		events = admin.NewEventHub(logger.With("component", "events"))
		srvCfg.Observer = server.Observers(metrics, events)
	} else {
		srvCfg.Observer = metrics
	}
	srvCfg.Logger = logger.With("component", "server")
	srv := server.New(r, srvCfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	adminErr := make(chan error, 1)
	if cfg.MetricsAddr != "" {
		adm := admin.New(cfg.MetricsAddr,
			admin.WithGatherer(reg),
			admin.WithRouter(r),
			admin.WithEvents(events),
			admin.WithHealthCheck(func() error {
				if srv.Addr() == nil {
					return errors.New("not accepting connections")
				}
				return nil
			}),
			admin.WithLogger(logger.With("component", "admin")),
		)
		go func() {
			if err := adm.ListenAndServe(ctx); err != nil {
				logger.Error("admin server failed", "error", err)
				adminErr <- err
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(context.Background()) }()

	select {
	case err = <-serveErr:
	case err = <-adminErr:
		_ = srv.Close()
		<-serveErr
		return clierrors.New("E204").
			WithDetail("Admin server on " + cfg.MetricsAddr + " failed").
			Wrap(err)
	case <-ctx.Done():
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		err = <-serveErr
	}

	return serveError(err, srvCfg.Address)
}

// serveError maps the loop's final error to a CLI error.
func serveError(err error, addr string) error {
	if err == nil || errors.Is(err, server.ErrServerClosed) {
		return nil
	}
	var connErr *server.ConnError
	if errors.As(err, &connErr) && connErr.Op == "listen" {
		return clierrors.New("E204").
			WithDetail(fmt.Sprintf("Cannot listen on %s", addr)).
			Wrap(err)
	}
	return clierrors.FromError(err, "E205")
}
