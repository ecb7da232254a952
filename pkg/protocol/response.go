package protocol

import "strconv"

// Version11 is the protocol version written by NewResponse.
var Version11 = []byte("HTTP/1.1")

// Response is an HTTP response ready to be serialized.
// Body may alias memory owned by the caller.
type Response struct {
	Status  StatusCode
	Version []byte
	Header  Header
	Body    []byte
}

// NewResponse returns an HTTP/1.1 response with the given status.
func NewResponse(status StatusCode) *Response {
	return &Response{Status: status, Version: Version11}
}

// SerializedSize returns the exact number of bytes SerializeTo writes.
func (r *Response) SerializedSize() (int, error) {
	size, err := addSize(0,
		len(r.Version), 1,
		decimalDigits(uint64(r.Status)), 1,
		len(r.Status.Reason()), len(crlf),
	)
	if err != nil {
		return 0, err
	}
	hdr, err := r.Header.SerializedSize()
	if err != nil {
		return 0, err
	}
	return addSize(size, hdr, len(r.Body))
}

// SerializeTo writes the status line, header block and body to buf and
// returns the number of bytes written. buf must hold SerializedSize() bytes.
func (r *Response) SerializeTo(buf []byte) int {
	n := copy(buf, r.Version)
	buf[n] = ' '
	n++
	n += len(strconv.AppendUint(buf[n:n], uint64(r.Status), 10))
	buf[n] = ' '
	n++
	n += copy(buf[n:], r.Status.Reason())
	n += copy(buf[n:], crlf)
	n += r.Header.SerializeTo(buf[n:])
	n += copy(buf[n:], r.Body)
	return n
}

// AppendTo appends the serialized response to dst.
func (r *Response) AppendTo(dst []byte) ([]byte, error) {
	size, err := r.SerializedSize()
	if err != nil {
		return dst, err
	}
	start := len(dst)
	dst = grow(dst, size)
	if n := r.SerializeTo(dst[start:]); n != size {
		return dst[:start], ErrSizeMismatch
	}
	return dst, nil
}
