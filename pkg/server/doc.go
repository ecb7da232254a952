// Package server implements the minirest connection loop.
//
// A Server listens on a TCP address and handles connections strictly one
// after another. For each accepted connection it:
//
//  1. Reads until the header terminator CRLF CRLF has arrived
//  2. Parses the bytes into a protocol.Request
//  3. Calls the Handler for a protocol.Response
//  4. Serializes the response into a reusable send buffer and writes it
//  5. Closes the connection
//
// There is no keep-alive. A malformed request, a read error or a response
// that cannot be serialized closes the connection without a response; the
// cause is logged and reported to the Observer. None of these stop the
// loop. Only an Accept failure, Close or Shutdown ends Serve.
//
// # Usage
//
//	srv := server.New(router, server.DefaultServerConfig().WithAddress(":8080"))
//	if err := srv.ListenAndServe(ctx); !errors.Is(err, server.ErrServerClosed) {
//	    log.Fatal(err)
//	}
//
// # Buffers
//
// The receive buffer, the parsed Request and the send buffer belong to the
// Server and are reused for every connection. The Request passed to a
// Handler is only valid during the call.
//
// # Timeouts
//
// ReadTimeout and WriteTimeout are off by default. Without a read timeout
// a client that connects and sends nothing blocks the loop until it goes
// away.
package server
