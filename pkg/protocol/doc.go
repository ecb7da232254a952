// Package protocol implements the HTTP/1.x message codec used by minirest.
//
// The codec works directly on byte buffers. Parsed messages do not copy
// their text: methods, targets, versions, header names and values and the
// body are sub-slices of the buffer the message was parsed from.
//
// # Wire Format
//
// Requests:
//
//	METHOD SP TARGET [SP VERSION] CRLF
//	NAME ": " VALUE CRLF
//	...
//	CRLF
//	BODY
//
// The version token is optional; "GET /page\r\n" is accepted as a
// pre-HTTP/1.0 request with an empty version.
//
// Responses:
//
//	VERSION SP STATUS SP REASON CRLF
//	NAME ": " VALUE CRLF
//	...
//	CRLF
//	BODY
//
// # Framing
//
// A message is complete as soon as the four bytes CRLF CRLF have been seen
// on the stream. Nothing after that point is read. Body bytes that arrived
// in the same read as the terminator are handed to the parser; anything the
// peer sends later is ignored. There is no Content-Length or chunked
// handling.
//
// # Lifetimes
//
// Every slice inside a parsed Request aliases the buffer passed to Parse.
// The buffer must stay alive and unmodified while the Request is in use,
// and a Request must not be kept after the buffer is reused:
//
//	buf, err := reader.ReadMessage(conn)
//	if err != nil {
//	    return err
//	}
//	var req protocol.Request
//	if err := req.Parse(buf); err != nil {
//	    return err
//	}
//	// req is valid until the next reader.ReadMessage call.
//
// # Serialization
//
// Header, Request and Response share the same two-step contract:
// SerializedSize computes the exact byte count (failing with
// ErrSizeOverflow if it does not fit in an int) and SerializeTo writes
// exactly that many bytes into a caller-provided buffer. The Encoder type
// wraps both steps and checks that they agree.
//
// # File Structure
//
//   - header.go: header block parse and serialize
//   - method.go: request methods
//   - request.go: request line parse and serialize
//   - status.go: status codes and reason phrases
//   - response.go: response serialize
//   - frame.go: CRLF CRLF terminator scanning and message reading
//   - encoder.go: reusable output buffer
//   - limits.go: buffer sizes and size arithmetic
//   - error.go: errors
package protocol
