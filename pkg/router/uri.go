package router

import "strings"

// SplitURI separates a request target into the command path and its query
// arguments.
//
// Without a '?' the whole target is the path. Otherwise the path ends at
// the '?' and starts at index 1 when the first '/' is at index 1 (so
// "a/b?x=1" has path "/b"), else at index 0.
//
// Arguments are name=value pairs separated by '&'. The first name runs
// from the '?' to the first '=' after it, even across an '&'. The scan
// stops at the first segment with no '=' left in the target. Values are
// not unescaped.
func SplitURI(uri string) (string, Args) {
	args := Args{}

	target := strings.IndexByte(uri, '?')
	if target < 0 {
		return uri, args
	}

	start := 0
	if strings.IndexByte(uri, '/') == 1 {
		start = 1
	}
	var path string
	if start <= target {
		path = uri[start:target]
	} else {
		path = uri[start:]
	}

	sep := indexFrom(uri, '=', target)
	if sep < 0 {
		return path, args
	}
	args[uri[target+1:sep]] = uri[sep+1 : valueEnd(uri, sep)]

	target = indexFrom(uri, '&', target)
	for target >= 0 {
		sep = indexFrom(uri, '=', target)
		if sep < 0 {
			return path, args
		}
		next := indexFrom(uri, '&', sep+1)
		args[uri[target+1:sep]] = uri[sep+1 : valueEnd(uri, sep)]
		target = next
	}

	return path, args
}

// indexFrom returns the index of c in s at or after from, or -1.
func indexFrom(s string, c byte, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.IndexByte(s[from:], c)
	if i < 0 {
		return -1
	}
	return from + i
}

// valueEnd returns where the value after the '=' at sep ends.
func valueEnd(s string, sep int) int {
	if end := indexFrom(s, '&', sep+1); end >= 0 {
		return end
	}
	return len(s)
}
