package main

import (
	"context"

	"github.com/vango-dev/minirest/pkg/protocol"
	"github.com/vango-dev/minirest/pkg/router"
)

// registerRoutes installs the sample API.
func registerRoutes(r *router.Router) {
	r.API(protocol.MethodGet, "/api/version", apiVersion)
	r.API(protocol.MethodGet, "/api/exception", apiException)
}

func apiVersion(ctx context.Context, args router.Args, body []byte) (any, error) {
	return map[string]string{"version": "testing"}, nil
}

// apiException fails on purpose to show how handler panics are reported.
func apiException(ctx context.Context, args router.Args, body []byte) (any, error) {
	panic("Sample exception")
}
