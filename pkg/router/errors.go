package router

import (
	"errors"
	"fmt"
)

// ErrorCode is the code carried in the error envelope.
type ErrorCode int

const (
	CodeOK               ErrorCode = 0
	CodeUnknownCommand   ErrorCode = 1
	CodeInvalidArguments ErrorCode = 2
	CodeExceptionCaught  ErrorCode = 3
	CodeInvalidMethod    ErrorCode = 4
)

// String returns the code name.
func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "Ok"
	case CodeUnknownCommand:
		return "UnknownCommand"
	case CodeInvalidArguments:
		return "InvalidArguments"
	case CodeExceptionCaught:
		return "ExceptionCaught"
	case CodeInvalidMethod:
		return "InvalidMethod"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Error is a dispatch failure with the code reported to the client.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("router: %s: %s", e.Code, e.Message)
}

// NewError creates an Error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// InvalidArguments creates a CodeInvalidArguments error. Handlers return it
// to reject their arguments.
func InvalidArguments(message string) *Error {
	return NewError(CodeInvalidArguments, message)
}

func unknownCommand(path string) *Error {
	return NewError(CodeUnknownCommand, "Unknown command \""+path+"\".")
}

func unknownMethod(method, path string) *Error {
	return NewError(CodeInvalidMethod, "Unknown method \""+method+"\" for command \""+path+"\".")
}

// asError converts any handler error to an *Error. Errors that are not
// *Error become CodeExceptionCaught carrying their text.
func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return NewError(CodeExceptionCaught, err.Error())
}

// CodeOf returns the envelope code err would be reported with.
// A nil error is CodeOK.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	return asError(err).Code
}

// ErrorEnvelope is the default JSON body for a failed dispatch.
type ErrorEnvelope struct {
	Code    ErrorCode `json:"error_code"`
	Message string    `json:"error_string"`
}

// ErrorFormatter turns a dispatch error into the value sent to the client.
// It is only called for failures.
type ErrorFormatter func(code ErrorCode, message string) any

// DefaultErrorFormatter returns an ErrorEnvelope.
func DefaultErrorFormatter(code ErrorCode, message string) any {
	return ErrorEnvelope{Code: code, Message: message}
}
