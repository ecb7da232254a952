// Package resttest provides testing helpers for minirest handlers.
//
// It builds requests the way a client sends them, runs them through a
// server.Handler such as *router.Router without opening a socket, and
// asserts on the JSON that comes back.
//
// # Quick Start
//
//	func TestVersion(t *testing.T) {
//	    r := router.New()
//	    r.API(protocol.MethodGet, "/api/version", apiVersion)
//
//	    resp := resttest.Get("/api/version").Do(r)
//	    resttest.ExpectJSON(t, resp, `{"version":"testing"}`)
//	}
//
// # Request Builder
//
//	req := resttest.Post("/api/items").
//	    WithArg("id", "7").
//	    WithHeader("X-Trace", "abc").
//	    WithJSON(item).
//	    Build()
//
// Build serializes the request and parses it back, so handlers see the
// same aliased views they get from the connection loop.
//
// # Error Assertions
//
//	resp := resttest.Get("/api/missing").Do(r)
//	msg := resttest.ExpectErrorCode(t, resp, router.CodeUnknownCommand)
package resttest
