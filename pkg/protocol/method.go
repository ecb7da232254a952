package protocol

// Method is an HTTP request method.
type Method uint8

const (
	MethodNone Method = iota
	MethodOptions
	MethodGet
	MethodHead
	MethodPost
	MethodPut
	MethodPatch
	MethodDelete
	MethodTrace
	MethodConnect
)

// String returns the method token as it appears on the wire.
// MethodNone returns "None".
func (m Method) String() string {
	switch m {
	case MethodOptions:
		return "OPTIONS"
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodPatch:
		return "PATCH"
	case MethodDelete:
		return "DELETE"
	case MethodTrace:
		return "TRACE"
	case MethodConnect:
		return "CONNECT"
	default:
		return "None"
	}
}

// ParseMethod maps a method token to a Method. Matching is exact and
// case-sensitive; unknown tokens return MethodNone.
func ParseMethod(token []byte) Method {
	switch string(token) {
	case "OPTIONS":
		return MethodOptions
	case "GET":
		return MethodGet
	case "HEAD":
		return MethodHead
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "PATCH":
		return MethodPatch
	case "DELETE":
		return MethodDelete
	case "TRACE":
		return MethodTrace
	case "CONNECT":
		return MethodConnect
	default:
		return MethodNone
	}
}

// MethodFromString is ParseMethod for strings.
func MethodFromString(s string) Method {
	return ParseMethod([]byte(s))
}
