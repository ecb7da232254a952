// Package routepath normalizes command paths before route lookup.
package routepath

import (
	"errors"
	"strings"
)

// Path canonicalization errors.
var (
	ErrBackslashInPath      = errors.New("path contains backslash")
	ErrNullByteInPath       = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("path escapes root via ..")
)

// Result is a canonicalized path.
type Result struct {
	Path string

	// Changed reports whether Path differs from the input.
	Changed bool
}

// Canonicalize normalizes a command path:
//   - a leading "/" is added when missing
//   - runs of "/" collapse to one
//   - "." segments are dropped and ".." pops the previous segment
//   - a trailing "/" is removed, except for the root
//
// Paths with a backslash, a NUL byte (raw or %00), a malformed percent
// escape or a ".." above the root are rejected. Percent escapes are
// validated but not decoded.
func Canonicalize(path string) (Result, error) {
	if path == "" {
		return Result{Path: "/", Changed: true}, nil
	}
	if strings.IndexByte(path, '\\') >= 0 {
		return Result{}, ErrBackslashInPath
	}
	if strings.IndexByte(path, 0) >= 0 || strings.Contains(path, "%00") {
		return Result{}, ErrNullByteInPath
	}
	if strings.IndexByte(path, '%') >= 0 {
		if err := validatePercentEscapes(path); err != nil {
			return Result{}, err
		}
	}
	if isCanonical(path) {
		return Result{Path: path}, nil
	}

	segments := make([]string, 0, strings.Count(path, "/")+1)
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return Result{}, ErrPathEscapesRoot
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	out := "/" + strings.Join(segments, "/")
	return Result{Path: out, Changed: out != path}, nil
}

// isCanonical reports whether path needs no rewriting. Most requests take
// this path.
func isCanonical(path string) bool {
	if path[0] != '/' {
		return false
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		return false
	}
	segStart := 1
	for i := 1; i <= len(path); i++ {
		if i < len(path) && path[i] != '/' {
			continue
		}
		switch path[segStart:i] {
		case ".", "..":
			return false
		case "":
			if i < len(path) {
				return false
			}
		}
		segStart = i + 1
	}
	return true
}

// validatePercentEscapes checks that every '%' is followed by two hex digits.
func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
