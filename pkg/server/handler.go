package server

import (
	"context"
	"log/slog"

	"github.com/vango-dev/minirest/pkg/protocol"
)

// Handler produces the response for a parsed request.
//
// The request and every slice inside it alias the server's receive
// buffer; they must not be retained after ServeRequest returns. The
// returned response is serialized before the next connection is accepted,
// so its Body may reference memory owned by the handler until then.
type Handler interface {
	ServeRequest(ctx context.Context, req *protocol.Request) *protocol.Response
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, req *protocol.Request) *protocol.Response

// ServeRequest implements Handler.
func (f HandlerFunc) ServeRequest(ctx context.Context, req *protocol.Request) *protocol.Response {
	return f(ctx, req)
}

// DefaultHandler logs each request and answers HTTP/1.1 200 OK with no
// headers and no body.
type DefaultHandler struct {
	Logger *slog.Logger
}

// ServeRequest implements Handler.
func (h DefaultHandler) ServeRequest(ctx context.Context, req *protocol.Request) *protocol.Response {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if logger.Enabled(ctx, slog.LevelInfo) {
		attrs := make([]any, 0, 8)
		attrs = append(attrs,
			"method", req.Method.String(),
			"uri", string(req.URI),
			"version", string(req.Version),
			"body_bytes", len(req.Body),
		)
		logger.InfoContext(ctx, "request", attrs...)
		for _, f := range req.Header.Fields() {
			logger.DebugContext(ctx, "header", "name", string(f.Name), "value", string(f.Value))
		}
	}
	return protocol.NewResponse(protocol.StatusOK)
}
