package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"

	"github.com/vango-dev/minirest/pkg/protocol"
	"github.com/vango-dev/minirest/pkg/routepath"
)

// ContentTypeJSON is the Content-Type of every routed response.
const ContentTypeJSON = "application/json"

// Router maps a command path and method to a Handler.
//
// Routes are registered before serving starts; the table is not safe for
// registration concurrent with dispatch.
type Router struct {
	routes     map[string]map[protocol.Method]Handler
	formatter  ErrorFormatter
	middleware []Middleware
	logger     *slog.Logger
	canonical  bool
}

// Option configures a Router.
type Option func(*Router)

// WithErrorFormatter replaces the formatter used for failed dispatches.
func WithErrorFormatter(f ErrorFormatter) Option {
	return func(r *Router) {
		if f != nil {
			r.formatter = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMiddleware appends middleware run around every dispatch.
func WithMiddleware(mw ...Middleware) Option {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// WithCanonicalPaths makes the router normalize command paths before
// lookup, so "/api//version/" reaches "/api/version". Registered paths
// are normalized the same way. A request path that cannot be normalized
// fails with CodeInvalidArguments.
func WithCanonicalPaths() Option {
	return func(r *Router) {
		r.canonical = true
	}
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{
		routes:    make(map[string]map[protocol.Method]Handler),
		formatter: DefaultErrorFormatter,
		logger:    slog.Default().With("component", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddAPI registers a handler for a path and method, replacing any previous
// handler for the same pair. With WithCanonicalPaths, AddAPI panics on a
// path that cannot be normalized.
func (r *Router) AddAPI(path string, method protocol.Method, handler Handler) {
	if r.canonical {
		res, err := routepath.Canonicalize(path)
		if err != nil {
			panic(fmt.Sprintf("router: invalid route path %q: %v", path, err))
		}
		path = res.Path
	}
	methods, ok := r.routes[path]
	if !ok {
		methods = make(map[protocol.Method]Handler)
		r.routes[path] = methods
	}
	methods[method] = handler
}

// API registers a handler for a method and path.
// Method comes first to match natural reading order ("GET /api/version").
//
// Example:
//
//	r.API(protocol.MethodGet, "/api/version", versionHandler)
func (r *Router) API(method protocol.Method, path string, handler Handler) {
	r.AddAPI(path, method, handler)
}

// Use appends middleware run around every dispatch.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// RouteInfo describes one registered route.
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Routes lists the registered routes sorted by path then method.
func (r *Router) Routes() []RouteInfo {
	out := make([]RouteInfo, 0, len(r.routes))
	for path, methods := range r.routes {
		for m := range methods {
			out = append(out, RouteInfo{Method: m.String(), Path: path})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Result is the outcome of a dispatch: either a handler value or an error.
type Result struct {
	Value any
	Err   *Error
}

// OK reports whether the dispatch succeeded.
func (res Result) OK() bool {
	return res.Err == nil
}

// Dispatch routes req to its handler. Lookup failures, handler errors and
// handler panics are all returned in Result.Err; Dispatch itself never
// panics on behalf of a handler.
func (r *Router) Dispatch(ctx context.Context, req *protocol.Request) Result {
	path, args := SplitURI(string(req.URI))

	var pathErr error
	if r.canonical {
		res, err := routepath.Canonicalize(path)
		if err != nil {
			r.logger.Error("invalid path", "path", path, "error", err)
			pathErr = InvalidArguments("invalid path \"" + path + "\": " + err.Error())
		} else {
			path = res.Path
		}
	}

	call := &Call{
		Method: req.Method,
		Path:   path,
		Args:   args,
		Body:   req.Body,
		ctx:    ctx,
	}

	err := ComposeMiddleware(call, r.middleware, func() error {
		if pathErr != nil {
			return pathErr
		}
		return r.invoke(call)
	})
	if err != nil {
		return Result{Err: asError(err)}
	}
	return Result{Value: call.Value}
}

// invoke looks up and runs the handler for call. It is the single place
// where handler panics are recovered.
func (r *Router) invoke(call *Call) (err error) {
	methods, ok := r.routes[call.Path]
	if !ok {
		r.logger.Error("unknown command", "path", call.Path)
		return unknownCommand(call.Path)
	}
	handler, ok := methods[call.Method]
	if !ok {
		r.logger.Error("unknown method", "method", call.Method.String(), "path", call.Path)
		return unknownMethod(call.Method.String(), call.Path)
	}

	r.logger.Info("requested command", "path", call.Path, "method", call.Method.String())

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panic",
				"path", call.Path,
				"panic", p,
				"stack", string(debug.Stack()))
			err = NewError(CodeExceptionCaught, fmt.Sprint(p))
		}
	}()

	value, err := handler(call.Context(), call.Args, call.Body)
	if err != nil {
		r.logger.Error("received exception", "path", call.Path, "error", err)
		return err
	}
	call.Value = value
	return nil
}

// Route dispatches req and returns the value to encode: the handler
// result, or the formatter's rendering of the error.
func (r *Router) Route(ctx context.Context, req *protocol.Request) any {
	res := r.Dispatch(ctx, req)
	if res.Err != nil {
		return r.formatter(res.Err.Code, res.Err.Message)
	}
	return res.Value
}

// ServeRequest routes req and wraps the JSON result in a 200 response.
// Errors are reported inside the JSON body, never through the status.
func (r *Router) ServeRequest(ctx context.Context, req *protocol.Request) *protocol.Response {
	body, err := json.Marshal(r.Route(ctx, req))
	if err != nil {
		r.logger.Error("encode result", "error", err)
		body, err = json.Marshal(r.formatter(CodeExceptionCaught, err.Error()))
		if err != nil {
			body = []byte("null")
		}
	}

	resp := protocol.NewResponse(protocol.StatusOK)
	resp.Header.AddString("Content-Type", ContentTypeJSON)
	resp.Body = body
	return resp
}
