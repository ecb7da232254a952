// Package middleware provides observability middleware for the minirest
// router and connection loop.
//
// # OpenTelemetry
//
// OpenTelemetry starts a server span for every dispatched command. The
// span context replaces the call context, so handlers and the clients they
// use inherit the trace:
//
//	r := router.New(router.WithMiddleware(
//	    middleware.OpenTelemetry(
//	        middleware.WithTracerName("my-service"),
//	        middleware.WithCallFilter(func(c *router.Call) bool {
//	            return c.Path != "/api/version"
//	        }),
//	    ),
//	))
//
// # Prometheus
//
// Metrics counts commands per path, method and error code, and finished
// connections per outcome. One instance serves as router middleware and as
// the server observer:
//
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//	r := router.New(router.WithMiddleware(m))
//	srv := server.New(r, server.DefaultServerConfig().WithObserver(m))
//
// Expose the registry with promhttp on a separate port; see package admin.
package middleware
