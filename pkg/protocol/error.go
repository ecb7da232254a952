package protocol

import (
	"errors"
	"fmt"
)

// Syntax errors returned by the parsers.
var (
	ErrMissingMethodSeparator = errors.New("protocol: missing space after method")
	ErrUnknownMethod          = errors.New("protocol: unknown method")
	ErrMissingRequestLineCRLF = errors.New("protocol: missing CRLF after request line")
	ErrMissingHeaderDelimiter = errors.New("protocol: missing header delimiter")
	ErrMissingHeaderCRLF      = errors.New("protocol: missing CRLF after header value")
	ErrEmptyHeaderBlock       = errors.New("protocol: empty header block")
)

// Size and framing errors.
var (
	ErrSizeOverflow    = errors.New("protocol: serialized size overflows int")
	ErrSizeMismatch    = errors.New("protocol: serialized size mismatch")
	ErrMessageTooLarge = errors.New("protocol: message exceeds size limit")
)

// ParseError wraps a syntax error with the part of the message being parsed
// and the byte offset where parsing stopped.
type ParseError struct {
	Op     string // "method", "request line", "header"
	Offset int
	Err    error
}

// Error returns the error message with position context.
func (e *ParseError) Error() string {
	return fmt.Sprintf("protocol: %s at offset %d: %v", e.Op, e.Offset, e.Err)
}

// Unwrap returns the underlying sentinel error for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsSyntaxError reports whether err came from parsing malformed input.
func IsSyntaxError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func parseError(op string, offset int, err error) *ParseError {
	return &ParseError{Op: op, Offset: offset, Err: err}
}
