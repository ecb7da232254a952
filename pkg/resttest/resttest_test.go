package resttest_test

import (
	"context"
	"testing"

	"github.com/vango-dev/minirest/pkg/protocol"
	"github.com/vango-dev/minirest/pkg/resttest"
	"github.com/vango-dev/minirest/pkg/router"
)

func newRouter() *router.Router {
	r := router.New()
	r.API(protocol.MethodGet, "/api/hello", func(ctx context.Context, args router.Args, body []byte) (any, error) {
		name, err := args.Require("name")
		if err != nil {
			return nil, err
		}
		return map[string]string{"hello": name}, nil
	})
	r.API(protocol.MethodPost, "/api/echo", func(ctx context.Context, args router.Args, body []byte) (any, error) {
		return map[string]string{"body": string(body)}, nil
	})
	return r
}

func TestNewRequest_Bytes(t *testing.T) {
	raw := resttest.Get("/api/hello").
		WithArg("name", "a b").
		WithHeader("Host", "example").
		Bytes()

	want := "GET /api/hello?name=a+b HTTP/1.1\r\nHost: example\r\n\r\n"
	if string(raw) != want {
		t.Errorf("Bytes() = %q, want %q", raw, want)
	}
}

func TestNewRequest_WithoutVersion(t *testing.T) {
	req := resttest.Get("/x").WithoutVersion().Build()

	if len(req.Version) != 0 {
		t.Errorf("Version = %q, want empty", req.Version)
	}
	if string(req.URI) != "/x" {
		t.Errorf("URI = %q, want /x", req.URI)
	}
}

func TestNewRequest_Build(t *testing.T) {
	req := resttest.Post("/api/echo").
		WithJSON(map[string]int{"n": 1}).
		Build()

	if req.Method != protocol.MethodPost {
		t.Errorf("Method = %v, want POST", req.Method)
	}
	if string(req.Body) != `{"n":1}` {
		t.Errorf("Body = %q", req.Body)
	}
	ct, ok := req.Header.Get("Content-Type")
	if !ok || string(ct) != router.ContentTypeJSON {
		t.Errorf("Content-Type = %q, %v", ct, ok)
	}
}

func TestDo(t *testing.T) {
	r := newRouter()

	resp := resttest.Get("/api/hello").WithArg("name", "ada").Do(r)
	resttest.ExpectJSON(t, resp, `{ "hello" : "ada" }`)
	resttest.ExpectHeader(t, resp, "Content-Type", router.ContentTypeJSON)
	resttest.ExpectContains(t, resp, `"ada"`)

	resp = resttest.Post("/api/echo").WithBody([]byte("ping")).Do(r)
	resttest.ExpectJSON(t, resp, `{"body":"ping"}`)
}

func TestExpectErrorCode(t *testing.T) {
	r := newRouter()

	tests := []struct {
		name string
		req  *resttest.RequestBuilder
		code router.ErrorCode
	}{
		{"unknown path", resttest.Get("/api/nope"), router.CodeUnknownCommand},
		{"missing arg", resttest.Get("/api/hello"), router.CodeInvalidArguments},
		{"wrong method", resttest.Post("/api/hello"), router.CodeInvalidMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := resttest.ExpectErrorCode(t, tt.req.Do(r), tt.code)
			if msg == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestExpect_Failures(t *testing.T) {
	r := newRouter()
	ok := resttest.Get("/api/hello").WithArg("name", "x").Do(r)

	tests := []struct {
		name  string
		check func(t testing.TB)
	}{
		{"json mismatch", func(t testing.TB) { resttest.ExpectJSON(t, ok, `{"hello":"y"}`) }},
		{"not an error", func(t testing.TB) { resttest.ExpectErrorCode(t, ok, router.CodeUnknownCommand) }},
		{"missing text", func(t testing.TB) { resttest.ExpectContains(t, ok, "absent") }},
		{"missing header", func(t testing.TB) { resttest.ExpectHeader(t, ok, "X-None", "1") }},
		{"nil response", func(t testing.TB) { resttest.ExpectJSON(t, nil, `{}`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{TB: t}
			tt.check(rec)
			if !rec.failed {
				t.Error("expected assertion to fail")
			}
		})
	}
}

// recorder captures failures instead of failing the enclosing test.
type recorder struct {
	testing.TB
	failed bool
}

func (r *recorder) Helper() {}

func (r *recorder) Errorf(format string, args ...any) { r.failed = true }

func (r *recorder) Error(args ...any) { r.failed = true }

func (r *recorder) Fatalf(format string, args ...any) { r.failed = true }
