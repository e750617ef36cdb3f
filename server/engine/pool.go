// worker pool and accept loop
package engine

import (
	"context"
	"errors"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultQueue   = 1024
	defaultBufSize = 1<<16 - 1
	maxAcceptDelay = time.Second
)

// callback for one accepted connection; the engine closes the socket
// and reclaims the buffer after it returns
type ConnFunc func(ctx context.Context, c *Conn)

type Options struct {
	Workers        int // fixed number of connection workers
	QueueSize      int // accepted conns waiting for a worker, full queue blocks accept
	MaxRequestSize int // read buffer per connection

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger *zap.Logger
}

// Engine accepts on ln and hands every connection to exactly one worker.
type Engine struct {
	ln   net.Listener
	opts Options
	cb   ConnFunc
	log  *zap.Logger

	// read buffers, one per connection in flight
	bufPool sync.Pool
	wg      sync.WaitGroup
}

// response buffers shared by all engines
var outPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 4096)
		return &b
	},
}

func New(ln net.Listener, opts Options, cb ConnFunc) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = defaultQueue
	}
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = defaultBufSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := &Engine{ln: ln, opts: opts, cb: cb, log: opts.Logger}
	size := opts.MaxRequestSize
	e.bufPool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return e
}

func (e *Engine) Addr() net.Addr {
	return e.ln.Addr()
}

// Serve runs the accept loop until ctx is done or the listener fails.
// On return every accepted connection has been handled and closed.
// After cancellation the error is ErrServerClosed.
func (e *Engine) Serve(ctx context.Context) error {
	jobs := make(chan net.Conn, e.opts.QueueSize)
	e.startWorkerPool(ctx, jobs)

	// closing the listener is what unblocks Accept
	stop := context.AfterFunc(ctx, func() { e.ln.Close() })
	defer stop()

	err := e.acceptLoop(ctx, jobs)

	close(jobs)
	e.wg.Wait()

	if ctx.Err() != nil {
		return ErrServerClosed
	}
	return err
}

func (e *Engine) acceptLoop(ctx context.Context, jobs chan<- net.Conn) error {
	var delay time.Duration
	for {
		nc, err := e.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			// out of fds and friends, back off and retry
			delay = min(max(2*delay, 5*time.Millisecond), maxAcceptDelay)
			e.log.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", delay))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		select {
		case jobs <- nc:
		case <-ctx.Done():
			nc.Close()
			return nil
		}
	}
}

// start fixed worker pool for handling connections
func (e *Engine) startWorkerPool(ctx context.Context, jobs <-chan net.Conn) {
	for range e.opts.Workers {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for nc := range jobs {
				e.serveConn(ctx, nc)
			}
		}()
	}
}

// one conn: buffer from pool -> callback -> close & put buffer back
func (e *Engine) serveConn(ctx context.Context, nc net.Conn) {
	bp := e.bufPool.Get().(*[]byte)
	c := &Conn{
		ID:           uuid.NewString(),
		nc:           nc,
		buf:          *bp,
		readTimeout:  e.opts.ReadTimeout,
		writeTimeout: e.opts.WriteTimeout,
	}

	defer func() {
		// a panicking callback must not take the worker down
		if r := recover(); r != nil {
			e.log.Error("connection callback panicked",
				zap.String("conn_id", c.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
		if err := nc.Close(); err != nil {
			e.log.Debug("close failed", zap.String("conn_id", c.ID), zap.Error(err))
		}
		e.bufPool.Put(bp) // closing socket BEFORE putting buffer to pool
	}()

	e.cb(ctx, c)
}
