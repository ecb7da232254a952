package router

import (
	"context"

	"github.com/vango-dev/minirest/pkg/protocol"
)

// Args holds the query arguments of a request target.
// A name that appears more than once keeps its last value.
type Args map[string]string

// Get returns the value of name, or "" if absent.
func (a Args) Get(name string) string {
	return a[name]
}

// Require returns the value of name or an InvalidArguments error.
func (a Args) Require(name string) (string, error) {
	v, ok := a[name]
	if !ok {
		return "", InvalidArguments("missing argument \"" + name + "\"")
	}
	return v, nil
}

// Handler serves one API command. The returned value is encoded as JSON.
// A returned *Error keeps its code; any other error becomes
// CodeExceptionCaught. body aliases the connection buffer and must not be
// retained after the handler returns.
type Handler func(ctx context.Context, args Args, body []byte) (any, error)

// Call is the state of one dispatch as seen by middleware.
type Call struct {
	// Method is the request method.
	Method protocol.Method

	// Path is the command path with the query string removed.
	Path string

	// Args are the parsed query arguments.
	Args Args

	// Body is the request body that arrived with the headers.
	Body []byte

	// Value is the handler result, set once the handler returns.
	Value any

	ctx context.Context
}

// Context returns the context for the call.
func (c *Call) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// SetContext replaces the context passed on to later middleware and the
// handler.
func (c *Call) SetContext(ctx context.Context) {
	c.ctx = ctx
}

// Middleware wraps command dispatch.
type Middleware interface {
	// Handle processes the call and optionally calls next.
	// Return an error to stop the chain and report an error.
	// Return nil without calling next to stop the chain without error.
	Handle(call *Call, next func() error) error
}

// MiddlewareFunc is a function adapter for Middleware.
type MiddlewareFunc func(call *Call, next func() error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(call *Call, next func() error) error {
	return f(call, next)
}
