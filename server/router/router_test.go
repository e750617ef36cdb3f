package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s00inx/sockblog/server/protocol"
)

// handler stub that answers with its own name
func named(name string) HandlerFunc {
	return func(req *protocol.Request) (*protocol.Response, error) {
		return protocol.Plain(200, name), nil
	}
}

func request(method, path string) *protocol.Request {
	return &protocol.Request{Method: method, Path: path, Params: map[string]string{}}
}

func TestRouterMatch(t *testing.T) {
	r := NewHTTPRouter()

	r.Get("/", named("home"))
	r.Get("/api/v1/user", named("user"))
	r.Get("/api/v1/order", named("order"))
	r.Get("/api/v1/user/{id}", named("user-id"))
	r.Get("/api/users/{user_id}/posts/{post_id}", named("user-post"))
	r.Post("/api/v1/user", named("user-create"))

	tests := []struct {
		name       string
		method     string
		path       string
		want       string
		wantParams map[string]string
	}{
		{"Root", "GET", "/", "home", map[string]string{}},
		{"Static Match", "GET", "/api/v1/user", "user", map[string]string{}},
		{"Static Match Order", "GET", "/api/v1/order", "order", map[string]string{}},
		{"Param Match", "GET", "/api/v1/user/123", "user-id", map[string]string{"id": "123"}},
		{"Two Params", "GET", "/api/users/7/posts/9", "user-post", map[string]string{"user_id": "7", "post_id": "9"}},
		{"Method Selects Route", "POST", "/api/v1/user", "user-create", map[string]string{}},
		{"No Match", "GET", "/api/v1/unknown", "", nil},
		{"Partial Match", "GET", "/api/v1", "", nil},
		{"Prefix Is Not Enough", "GET", "/api/v1/user/123/extra", "", nil},
		{"Trailing Slash Differs", "GET", "/api/v1/user/", "", nil},
		{"Empty Param Segment", "GET", "/api/users//posts/9", "", nil},
		{"Method Mismatch", "DELETE", "/api/v1/user", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(tt.method, tt.path)
			h, ok := r.Resolve(req)

			if tt.want == "" {
				assert.False(t, ok)
				assert.Nil(t, h)
				assert.Empty(t, req.Params)
				return
			}

			require.True(t, ok)
			resp, err := h.Serve(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(resp.Body))
			assert.Equal(t, tt.wantParams, req.Params)
		})
	}
}

// registration order, not specificity, picks the winner
func TestRouterRegistrationOrderWins(t *testing.T) {
	r := NewHTTPRouter()
	r.Get("/posts/{post_id}", named("detail"))
	r.Get("/posts/new", named("new"))

	req := request("GET", "/posts/new")
	resp, err := r.Dispatch(req)
	require.NoError(t, err)
	assert.Equal(t, "detail", string(resp.Body))
	assert.Equal(t, "new", req.Param("post_id"))

	// literal first, then it shadows the placeholder for that one path
	r2 := NewHTTPRouter()
	r2.Get("/posts/new", named("new"))
	r2.Get("/posts/{post_id}", named("detail"))

	resp, err = r2.Dispatch(request("GET", "/posts/new"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(resp.Body))

	resp, err = r2.Dispatch(request("GET", "/posts/42"))
	require.NoError(t, err)
	assert.Equal(t, "detail", string(resp.Body))
}

func TestRouterDispatchNotFound(t *testing.T) {
	r := NewHTTPRouter()
	r.Get("/exists", named("x"))

	resp, err := r.Dispatch(request("GET", "/missing"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Get("Content-Type"))
}

func TestRouterDispatchPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	r := NewHTTPRouter()
	r.Register("get", "/fail", HandlerFunc(func(*protocol.Request) (*protocol.Response, error) {
		return nil, boom
	}))

	_, err := r.Dispatch(request("GET", "/fail"))
	assert.ErrorIs(t, err, boom)
}

func TestRouterNilParams(t *testing.T) {
	r := NewHTTPRouter()
	r.Get("/a/{x}", named("a"))

	req := &protocol.Request{Method: "GET", Path: "/a/1"}
	_, ok := r.Resolve(req)
	require.True(t, ok)
	assert.Equal(t, "1", req.Param("x"))
}

func TestRoutes(t *testing.T) {
	r := NewHTTPRouter()
	r.Get("/a", named("a"))
	r.Post("/b/{id}", named("b"))

	assert.Equal(t, []string{"GET /a", "POST /b/{id}"}, r.Routes())
}

func BenchmarkRouterMatchStatic(b *testing.B) {
	r := NewHTTPRouter()
	r.Get("/api/v1/user/profile/settings", named("x"))
	req := request("GET", "/api/v1/user/profile/settings")

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		r.Resolve(req)
	}
}

func BenchmarkRouterMatchParam(b *testing.B) {
	r := NewHTTPRouter()
	r.Get("/api/v1/user/{id}/posts/{post_id}", named("x"))
	req := request("GET", "/api/v1/user/123/posts/456")

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		r.Resolve(req)
	}
}
