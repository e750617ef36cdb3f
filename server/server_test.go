package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/s00inx/sockblog/server/config"
	"github.com/s00inx/sockblog/server/engine"
	"github.com/s00inx/sockblog/server/metrics"
	"github.com/s00inx/sockblog/server/protocol"
	"github.com/s00inx/sockblog/server/router"
)

type fixture struct {
	addr    string
	metrics *metrics.Collector
	logs    *observer.ObservedLogs
}

func start(t *testing.T, r *router.HTTPRouter, opts ...Option) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Workers = 2
	cfg.QueueSize = 8
	cfg.ReadTimeout = 200 * time.Millisecond
	cfg.StaticRoot = t.TempDir()

	core, logs := observer.New(zap.DebugLevel)
	mc := metrics.NewCollector(time.Minute)
	opts = append([]Option{WithLogger(zap.New(core))}, opts...)
	s := New(cfg, r, mc, opts...)

	ln, err := engine.Listen("127.0.0.1", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, engine.ErrServerClosed)
	})

	return &fixture{addr: ln.Addr().String(), metrics: mc, logs: logs}
}

func send(t *testing.T, addr, raw string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	if raw != "" {
		_, err = conn.Write([]byte(raw))
		require.NoError(t, err)
	} else {
		conn.(*net.TCPConn).CloseWrite()
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(out)
}

// wait until the handler has recorded n samples
func waitSamples(t *testing.T, mc *metrics.Collector, n int) metrics.Snapshot {
	t.Helper()
	var snap metrics.Snapshot
	require.Eventually(t, func() bool {
		snap = mc.Snapshot()
		return snap.SampleCount >= n
	}, 2*time.Second, 10*time.Millisecond)
	return snap
}

func TestServeEndToEnd(t *testing.T) {
	r := router.NewHTTPRouter()
	r.Get("/posts/{post_id}", func(req *protocol.Request) (*protocol.Response, error) {
		return protocol.JSON(200, map[string]string{
			"id": req.Param("post_id"),
			"q":  req.Query["q"],
		}), nil
	})
	f := start(t, r)

	out := send(t, f.addr, "GET /posts/7?q=go HTTP/1.1\r\nHost: x\r\n\r\n")

	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"), out)
	assert.Contains(t, out, "Content-Type: application/json; charset=utf-8\r\n")
	assert.Contains(t, out, "Connection: close\r\n")
	assert.Contains(t, out, "Server: "+protocol.ServerName+"\r\n")
	assert.True(t, strings.HasSuffix(out, `{"id":"7","q":"go"}`), out)

	snap := waitSamples(t, f.metrics, 1)
	assert.Equal(t, 1, snap.SampleCount)
}

func TestServeNotFound(t *testing.T) {
	f := start(t, router.NewHTTPRouter())

	out := send(t, f.addr, "GET /nope HTTP/1.1\r\n\r\n")
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 404 Not Found\r\n"), out)
	assert.True(t, strings.HasSuffix(out, "resource not found"))
}

func TestServeHandlerFailures(t *testing.T) {
	r := router.NewHTTPRouter()
	r.Get("/err", func(*protocol.Request) (*protocol.Response, error) {
		return nil, errors.New("db is on fire")
	})
	r.Get("/panic", func(*protocol.Request) (*protocol.Response, error) {
		panic("boom")
	})
	r.Get("/nil", func(*protocol.Request) (*protocol.Response, error) {
		return nil, nil
	})
	f := start(t, r)

	for _, p := range []string{"/err", "/panic", "/nil"} {
		t.Run(p, func(t *testing.T) {
			out := send(t, f.addr, "GET "+p+" HTTP/1.1\r\n\r\n")
			assert.True(t, strings.HasPrefix(out, "HTTP/1.1 500 Internal Server Error\r\n"), out)
			assert.True(t, strings.HasSuffix(out, "internal server error"))
			// internals never reach the client
			assert.NotContains(t, out, "fire")
			assert.NotContains(t, out, "boom")
		})
	}

	waitSamples(t, f.metrics, 3)
	assert.Equal(t, 1, f.logs.FilterMessage("handler panicked").Len())
	assert.Equal(t, 1, f.logs.FilterMessage("handler failed").Len())
}

func TestServeEmptyConnRecordsSample(t *testing.T) {
	f := start(t, router.NewHTTPRouter())

	assert.Equal(t, "", send(t, f.addr, ""))

	snap := waitSamples(t, f.metrics, 1)
	assert.Equal(t, 1, snap.SampleCount)
}

func TestServeBodyAcrossReads(t *testing.T) {
	r := router.NewHTTPRouter()
	r.Post("/echo", func(req *protocol.Request) (*protocol.Response, error) {
		return protocol.Plain(200, req.Value("title")), nil
	})
	f := start(t, r)

	conn, err := net.Dial("tcp", f.addr)
	require.NoError(t, err)
	defer conn.Close()

	body := `{"title":"split"}`
	head := "POST /echo HTTP/1.1\r\nContent-Type: application/json\r\nContent-Length: 17\r\n\r\n"
	require.Len(t, body, 17)

	_, err = conn.Write([]byte(head))
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = conn.Write([]byte(body))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "\r\n\r\nsplit"), string(out))
}

func TestServeStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0o644))

	cfg := config.Default()
	cfg.StaticRoot = dir
	s := New(cfg, router.NewHTTPRouter(), metrics.NewCollector(time.Minute))

	_, resp := s.respond([]byte("GET /static/app.css HTTP/1.1\r\n\r\n"), "", zap.NewNop())
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "body{}", string(resp.Body))
	assert.Contains(t, resp.Get("Content-Type"), "text/css")

	_, resp = s.respond([]byte("GET /static/../../etc/passwd HTTP/1.1\r\n\r\n"), "", zap.NewNop())
	assert.Equal(t, 404, resp.Status)
}

func TestServeRegistryCounts(t *testing.T) {
	r := router.NewHTTPRouter()
	r.Get("/", func(*protocol.Request) (*protocol.Response, error) {
		return protocol.Text(200, "hi"), nil
	})

	mc := metrics.NewCollector(time.Minute)
	reg := metrics.NewRegistry(mc)

	cfg := config.Default()
	cfg.Workers = 1
	s := New(cfg, r, mc, WithRegistry(reg))

	ln, err := engine.Listen("127.0.0.1", 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	send(t, ln.Addr().String(), "GET / HTTP/1.1\r\n\r\n")
	waitSamples(t, mc, 1)

	cancel()
	require.ErrorIs(t, <-done, engine.ErrServerClosed)

	text, err := reg.Render()
	require.NoError(t, err)
	assert.Contains(t, string(text), `sockblog_responses_total{code="200"} 1`)
}
