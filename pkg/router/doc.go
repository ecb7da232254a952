// Package router dispatches parsed requests to REST command handlers.
//
// Routes are exact paths with a handler per method:
//
//	r := router.New()
//	r.API(protocol.MethodGet, "/api/version", func(ctx context.Context, args router.Args, body []byte) (any, error) {
//	    return map[string]string{"version": "1.0"}, nil
//	})
//
// The query string is split off the request target with SplitURI and
// passed to the handler as Args.
//
// # Results
//
// Dispatch returns a Result holding either the handler value or an *Error.
// Unknown paths give CodeUnknownCommand, a known path without the request
// method gives CodeInvalidMethod, and any handler error or panic gives
// CodeExceptionCaught unless the handler returned an *Error of its own.
//
// ServeRequest always answers HTTP 200 with a JSON body. Failures are
// rendered by the ErrorFormatter, which defaults to
//
//	{"error_code": 1, "error_string": "Unknown command \"/x\"."}
//
// # Middleware
//
// Middleware wraps every dispatch, including failed lookups, and sees the
// outcome as the error returned from next:
//
//	r := router.New(router.WithMiddleware(
//	    router.MiddlewareFunc(func(call *router.Call, next func() error) error {
//	        err := next()
//	        log.Println(call.Path, router.CodeOf(err))
//	        return err
//	    }),
//	))
package router
