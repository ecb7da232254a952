package protocol

import (
	"bytes"
	"errors"
)

// Request is a parsed HTTP request.
//
// URI, Version, the header fields and Body all alias the buffer given to
// Parse. Version is empty for a version-less request line.
type Request struct {
	Method  Method
	URI     []byte
	Version []byte
	Header  Header
	Body    []byte
}

// Reset clears the request for reuse, keeping header capacity.
func (r *Request) Reset() {
	r.Method = MethodNone
	r.URI = nil
	r.Version = nil
	r.Header.Clear()
	r.Body = nil
}

// Parse parses a complete request from buf. Any previous contents of r are
// discarded. On error r is left reset.
func (r *Request) Parse(buf []byte) error {
	r.Reset()
	if err := r.parse(buf); err != nil {
		r.Reset()
		return err
	}
	return nil
}

func (r *Request) parse(buf []byte) error {
	sp := bytes.IndexByte(buf, ' ')
	if sp < 0 {
		return parseError("method", 0, ErrMissingMethodSeparator)
	}
	method := ParseMethod(buf[:sp])
	if method == MethodNone {
		return parseError("method", 0, ErrUnknownMethod)
	}

	pos := sp + 1
	line := buf[pos:]
	eol := bytes.Index(line, crlf)
	if eol < 0 {
		return parseError("request line", pos, ErrMissingRequestLineCRLF)
	}

	target := line[:eol]
	var version []byte
	if i := bytes.IndexByte(target, ' '); i >= 0 {
		version = target[i+1:]
		target = target[:i]
	}

	pos += eol + len(crlf)
	n, err := r.Header.Parse(buf[pos:])
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Offset += pos
		}
		return err
	}
	pos += n

	r.Method = method
	r.URI = target
	r.Version = version
	if pos < len(buf) {
		r.Body = buf[pos:]
	}
	return nil
}

// SerializedSize returns the exact number of bytes SerializeTo writes.
func (r *Request) SerializedSize() (int, error) {
	size, err := addSize(0, len(r.Method.String()), 1, len(r.URI), 1, len(r.Version), len(crlf))
	if err != nil {
		return 0, err
	}
	hdr, err := r.Header.SerializedSize()
	if err != nil {
		return 0, err
	}
	return addSize(size, hdr, len(r.Body))
}

// SerializeTo writes the request line, the header block and the body to
// buf, which must hold SerializedSize() bytes. The request line always has
// both separators, so a version-less request is written with a trailing
// space before CRLF.
func (r *Request) SerializeTo(buf []byte) int {
	n := copy(buf, r.Method.String())
	buf[n] = ' '
	n++
	n += copy(buf[n:], r.URI)
	buf[n] = ' '
	n++
	n += copy(buf[n:], r.Version)
	n += copy(buf[n:], crlf)
	n += r.Header.SerializeTo(buf[n:])
	n += copy(buf[n:], r.Body)
	return n
}
