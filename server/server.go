// Package server wires engine, protocol and router into the connection
// handler: read, decode, dispatch, encode, write, close.
package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/s00inx/sockblog/server/config"
	"github.com/s00inx/sockblog/server/engine"
	"github.com/s00inx/sockblog/server/metrics"
	"github.com/s00inx/sockblog/server/protocol"
	"github.com/s00inx/sockblog/server/router"
	"github.com/s00inx/sockblog/server/static"
)

type Server struct {
	cfg     config.Config
	router  *router.HTTPRouter
	static  *static.Responder
	metrics *metrics.Collector
	reg     *metrics.Registry
	log     *zap.Logger
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithRegistry turns on prometheus connection counters.
func WithRegistry(r *metrics.Registry) Option {
	return func(s *Server) { s.reg = r }
}

// WithStatic replaces the responder built from cfg.StaticRoot, nil disables it.
func WithStatic(st *static.Responder) Option {
	return func(s *Server) { s.static = st }
}

// New builds a server around a fully registered router. The router must
// not be changed once Serve runs. mc receives one sample per connection.
func New(cfg config.Config, r *router.HTTPRouter, mc *metrics.Collector, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		router:  r,
		static:  static.New(cfg.StaticRoot),
		metrics: mc,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListenAndServe binds cfg.Host:cfg.Port and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := engine.Listen(s.cfg.Host, s.cfg.Port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the worker pool on ln. It returns engine.ErrServerClosed
// once ctx is done and all in-flight connections are closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	e := engine.New(ln, engine.Options{
		Workers:        s.cfg.Workers,
		QueueSize:      s.cfg.QueueSize,
		MaxRequestSize: s.cfg.MaxRequestSize,
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		Logger:         s.log,
	}, s.handle)

	s.log.Info("server started",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", s.cfg.Workers),
		zap.Int("routes", len(s.router.Routes())),
	)
	err := e.Serve(ctx)
	s.log.Info("server stopped", zap.Error(err))
	return err
}

// handle owns one connection. Whatever happens, one metric sample is
// recorded; a response is written whenever the client sent anything.
func (s *Server) handle(ctx context.Context, c *engine.Conn) {
	start := time.Now()
	status := 0
	if s.reg != nil {
		s.reg.ConnOpened()
	}
	defer func() {
		s.metrics.Record(time.Since(start), c.In, c.Out)
		if s.reg != nil {
			s.reg.ConnClosed(status, c.In, c.Out)
		}
	}()

	log := s.log.With(zap.String("conn_id", c.ID), zap.String("remote_addr", c.RemoteAddr()))

	raw, err := c.ReadRequest(protocol.Complete)
	if err != nil {
		log.Debug("read ended early", zap.Int("bytes_in", len(raw)), zap.Error(err))
	}
	if len(raw) == 0 {
		return
	}

	req, resp := s.respond(raw, c.RemoteAddr(), log)
	status = resp.Status

	if _, err := c.WriteBuf(func(dst []byte) []byte {
		return protocol.BuildResp(resp, dst)
	}); err != nil {
		log.Warn("write failed", zap.Error(err))
		return
	}

	log.Info("request",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
		zap.Int("bytes_in", c.In),
		zap.Int("bytes_out", c.Out),
	)
}

// respond never fails: handler errors and panics become a generic 500,
// details stay in the log.
func (s *Server) respond(raw []byte, addr string, log *zap.Logger) (req *protocol.Request, resp *protocol.Response) {
	req = &protocol.Request{RemoteAddr: addr}
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked",
				zap.String("path", req.Path),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			resp = protocol.InternalError()
		}
	}()

	req = protocol.Decode(raw, addr)

	var err error
	if s.static != nil && s.static.Match(req.Path) {
		resp, err = s.static.Serve(req.Path)
	} else {
		resp, err = s.router.Dispatch(req)
	}

	switch {
	case err != nil:
		log.Error("handler failed", zap.String("method", req.Method), zap.String("path", req.Path), zap.Error(err))
		return req, protocol.InternalError()
	case resp == nil:
		log.Error("handler returned no response", zap.String("method", req.Method), zap.String("path", req.Path))
		return req, protocol.InternalError()
	}
	return req, resp
}
