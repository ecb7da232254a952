// Package errors provides structured, actionable errors for the minirest
// command line.
//
// Each error has a code that maps to a short message, a longer detail and
// the process exit code the CLI uses for it:
//
//   - E1xx: configuration (minirest.json, flag values)
//   - E2xx: command line usage and startup
//
// # Usage
//
//	err := errors.New("E202").
//	    WithDetail("Port 0 is reserved").
//	    WithSuggestion("Pass a port between 1 and 65535")
//
//	errors.PrintError(os.Stderr, err)
//	// ERROR E202: Port must not be zero
//	//
//	//   Port 0 is reserved
//	//
//	//   Hint: Pass a port between 1 and 65535
//	os.Exit(errors.ExitCode(err))
package errors
