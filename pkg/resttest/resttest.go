package resttest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/vango-dev/minirest/pkg/protocol"
	"github.com/vango-dev/minirest/pkg/router"
	"github.com/vango-dev/minirest/pkg/server"
)

// RequestBuilder allows fluent construction of test requests.
type RequestBuilder struct {
	method  protocol.Method
	path    string
	args    [][2]string
	headers [][2]string
	body    []byte
	version string
}

// NewRequest creates a request builder for method and path.
//
// Example:
//
//	req := resttest.NewRequest(protocol.MethodGet, "/api/sum").
//	    WithArg("a", "1").
//	    WithArg("b", "2").
//	    Build()
func NewRequest(method protocol.Method, path string) *RequestBuilder {
	return &RequestBuilder{method: method, path: path, version: "HTTP/1.1"}
}

// Get is a shorthand for NewRequest(protocol.MethodGet, path).
func Get(path string) *RequestBuilder {
	return NewRequest(protocol.MethodGet, path)
}

// Post is a shorthand for NewRequest(protocol.MethodPost, path).
func Post(path string) *RequestBuilder {
	return NewRequest(protocol.MethodPost, path)
}

// WithArg appends a query argument. Names and values are escaped.
func (b *RequestBuilder) WithArg(name, value string) *RequestBuilder {
	b.args = append(b.args, [2]string{name, value})
	return b
}

// WithHeader appends a header field.
func (b *RequestBuilder) WithHeader(name, value string) *RequestBuilder {
	b.headers = append(b.headers, [2]string{name, value})
	return b
}

// WithBody sets the request body.
func (b *RequestBuilder) WithBody(body []byte) *RequestBuilder {
	b.body = body
	return b
}

// WithJSON sets the body to the JSON encoding of v and adds a
// Content-Type header. It panics if v cannot be encoded.
func (b *RequestBuilder) WithJSON(v any) *RequestBuilder {
	body, err := json.Marshal(v)
	if err != nil {
		panic("resttest: " + err.Error())
	}
	b.headers = append(b.headers, [2]string{"Content-Type", router.ContentTypeJSON})
	b.body = body
	return b
}

// WithoutVersion builds a version-less request line.
func (b *RequestBuilder) WithoutVersion() *RequestBuilder {
	b.version = ""
	return b
}

// URI returns the request target.
func (b *RequestBuilder) URI() string {
	if len(b.args) == 0 {
		return b.path
	}
	var sb strings.Builder
	sb.WriteString(b.path)
	for i, kv := range b.args {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(kv[0]))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv[1]))
	}
	return sb.String()
}

// Bytes returns the serialized request as a client would send it.
func (b *RequestBuilder) Bytes() []byte {
	req := protocol.Request{
		Method:  b.method,
		URI:     []byte(b.URI()),
		Version: []byte(b.version),
		Body:    b.body,
	}
	for _, kv := range b.headers {
		req.Header.AddString(kv[0], kv[1])
	}
	out, err := protocol.NewEncoder().Encode(&req)
	if err != nil {
		panic("resttest: " + err.Error())
	}
	return bytes.Clone(out)
}

// Build returns the request parsed back from Bytes, so every field
// aliases a private buffer just as it would in the server loop.
func (b *RequestBuilder) Build() *protocol.Request {
	req := new(protocol.Request)
	if err := req.Parse(b.Bytes()); err != nil {
		panic("resttest: " + err.Error())
	}
	return req
}

// Do sends the built request to h and returns the response.
//
// Example:
//
//	resp := resttest.Get("/api/version").Do(r)
//	resttest.ExpectJSON(t, resp, `{"version":"testing"}`)
func (b *RequestBuilder) Do(h server.Handler) *protocol.Response {
	return h.ServeRequest(context.Background(), b.Build())
}

// ExpectJSON asserts that resp is a 200 response whose body is JSON
// equal to want, ignoring formatting and key order.
func ExpectJSON(t testing.TB, resp *protocol.Response, want string) {
	t.Helper()
	if !expectOK(t, resp) {
		return
	}
	var got, exp any
	if err := json.Unmarshal(resp.Body, &got); err != nil {
		t.Errorf("response body is not JSON: %v\n%s", err, truncate(string(resp.Body), 500))
		return
	}
	if err := json.Unmarshal([]byte(want), &exp); err != nil {
		t.Fatalf("resttest: bad expected JSON %q: %v", want, err)
	}
	if !reflect.DeepEqual(got, exp) {
		t.Errorf("body = %s, want %s", truncate(string(resp.Body), 500), want)
	}
}

// ExpectErrorCode asserts that resp carries an error envelope with code.
// It returns the error message for further checks.
func ExpectErrorCode(t testing.TB, resp *protocol.Response, code router.ErrorCode) string {
	t.Helper()
	if !expectOK(t, resp) {
		return ""
	}
	var env struct {
		Code    *router.ErrorCode `json:"error_code"`
		Message string            `json:"error_string"`
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil || env.Code == nil {
		t.Errorf("expected error envelope with %v, got:\n%s", code, truncate(string(resp.Body), 500))
		return ""
	}
	if *env.Code != code {
		t.Errorf("error code = %v, want %v (%s)", *env.Code, code, env.Message)
	}
	return env.Message
}

// ExpectContains asserts that the response body contains expected.
func ExpectContains(t testing.TB, resp *protocol.Response, expected string) {
	t.Helper()
	if resp == nil {
		t.Error("nil response")
		return
	}
	if !strings.Contains(string(resp.Body), expected) {
		t.Errorf("expected body to contain %q, got:\n%s", expected, truncate(string(resp.Body), 500))
	}
}

// ExpectHeader asserts that resp has a header field name with value.
func ExpectHeader(t testing.TB, resp *protocol.Response, name, value string) {
	t.Helper()
	if resp == nil {
		t.Error("nil response")
		return
	}
	got, ok := resp.Header.Get(name)
	if !ok {
		t.Errorf("missing header %s", name)
		return
	}
	if string(got) != value {
		t.Errorf("header %s = %q, want %q", name, got, value)
	}
}

func expectOK(t testing.TB, resp *protocol.Response) bool {
	t.Helper()
	if resp == nil {
		t.Error("nil response")
		return false
	}
	if resp.Status != protocol.StatusOK {
		t.Errorf("status = %d, want %d", resp.Status, protocol.StatusOK)
		return false
	}
	return true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
