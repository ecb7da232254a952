package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for server lifecycle conditions.
var (
	// ErrServerClosed is returned by Serve and ListenAndServe after Close,
	// Shutdown or cancellation of the ListenAndServe context.
	ErrServerClosed = errors.New("server: server closed")

	// ErrServerRunning is returned when Serve is called on a server that is
	// already serving. The loop owns a single set of buffers.
	ErrServerRunning = errors.New("server: already serving")

	// ErrNilResponse is recorded when a handler returns no response.
	ErrNilResponse = errors.New("server: handler returned nil response")
)

// ConnError wraps a failure on one connection with its remote address and
// the stage that failed.
type ConnError struct {
	Remote string
	Op     string // "read", "parse", "handle", "encode", "write"
	Err    error
}

// Error returns the error message with connection context.
func (e *ConnError) Error() string {
	if e.Remote == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: conn %s: %s: %v", e.Remote, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// NewConnError creates a new ConnError.
func NewConnError(remote, op string, err error) *ConnError {
	return &ConnError{
		Remote: remote,
		Op:     op,
		Err:    err,
	}
}

// HandlerError wraps a panic raised by a Handler.
type HandlerError struct {
	Remote string
	Panic  any
	Stack  []byte
}

// Error returns the error message.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("server: handler panic on conn %s: %v", e.Remote, e.Panic)
}
