package router

// ComposeMiddleware builds a handler chain from middleware and a final handler.
// Middleware is executed in order (first to last), with the handler at the end.
func ComposeMiddleware(call *Call, mw []Middleware, handler func() error) error {
	if len(mw) == 0 {
		return handler()
	}

	chain := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		next := chain
		chain = func() error {
			return m.Handle(call, next)
		}
	}

	return chain()
}

// Chain creates a middleware that combines multiple middleware in order.
func Chain(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(call *Call, next func() error) error {
		return ComposeMiddleware(call, middleware, next)
	})
}

// Skip bypasses mw when condition is true.
func Skip(condition func(call *Call) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(call *Call, next func() error) error {
		if condition(call) {
			return next()
		}
		return mw.Handle(call, next)
	})
}

// Only runs mw only when condition is true.
func Only(condition func(call *Call) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(call *Call, next func() error) error {
		if !condition(call) {
			return next()
		}
		return mw.Handle(call, next)
	})
}

// ForPath runs mw only for calls to path.
func ForPath(path string, mw Middleware) Middleware {
	return Only(func(call *Call) bool { return call.Path == path }, mw)
}
