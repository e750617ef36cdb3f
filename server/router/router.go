package router

import (
	"strings"

	"github.com/s00inx/sockblog/server/protocol"
)

// Handler answers one decoded request. A returned error is turned
// into a generic 500 by the server, its text never reaches the client.
type Handler interface {
	Serve(req *protocol.Request) (*protocol.Response, error)
}

// adapter so plain funcs can be registered
type HandlerFunc func(req *protocol.Request) (*protocol.Response, error)

func (f HandlerFunc) Serve(req *protocol.Request) (*protocol.Response, error) {
	return f(req)
}

type route struct {
	method  string
	pat     pattern
	handler Handler
}

// HTTPRouter is an ordered route table. Routes are appended at startup
// and only read afterwards, so lookups need no lock.
// First registered match wins, there is no overlap detection.
type HTTPRouter struct {
	routes []route
}

// init a new router
func NewHTTPRouter() *HTTPRouter {
	return &HTTPRouter{}
}

// Register adds a route. {name} segments bind one path segment.
func (r *HTTPRouter) Register(method, path string, h Handler) {
	r.routes = append(r.routes, route{
		method:  strings.ToUpper(method),
		pat:     compile(path),
		handler: h,
	})
}

func (r *HTTPRouter) Get(path string, h HandlerFunc) {
	r.Register("GET", path, h)
}

func (r *HTTPRouter) Post(path string, h HandlerFunc) {
	r.Register("POST", path, h)
}

// Resolve finds the first route for req and fills req.Params.
func (r *HTTPRouter) Resolve(req *protocol.Request) (Handler, bool) {
	for i := range r.routes {
		rt := &r.routes[i]
		if rt.method != req.Method {
			continue
		}
		if req.Params == nil {
			req.Params = make(map[string]string)
		}
		if rt.pat.match(req.Path, req.Params) {
			return rt.handler, true
		}
	}
	return nil, false
}

// Dispatch resolves and calls the handler, unresolved requests get 404.
func (r *HTTPRouter) Dispatch(req *protocol.Request) (*protocol.Response, error) {
	h, ok := r.Resolve(req)
	if !ok {
		return protocol.NotFound(), nil
	}
	return h.Serve(req)
}

// Routes lists "METHOD pattern" in registration order.
func (r *HTTPRouter) Routes() []string {
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.method + " " + rt.pat.raw
	}
	return out
}
