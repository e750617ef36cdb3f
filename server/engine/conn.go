package engine

import (
	"errors"
	"io"
	"net"
	"time"
)

// Conn is one accepted socket owned by one worker from accept to close.
// buf comes from the engine pool and is only valid inside the callback.
type Conn struct {
	ID string

	nc  net.Conn
	buf []byte

	readTimeout  time.Duration
	writeTimeout time.Duration

	// bytes moved over the socket
	In, Out int
}

func (c *Conn) RemoteAddr() string {
	if a := c.nc.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// ReadRequest reads into the connection buffer until done reports a whole
// request, the peer closes, the buffer is full or the read deadline fires.
// The deadline covers the whole request, not each read.
// Bytes read so far are always returned, also together with an error.
func (c *Conn) ReadRequest(done func([]byte) bool) ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.nc.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}

	off := 0
	for off < len(c.buf) {
		n, err := c.nc.Read(c.buf[off:])
		off += n
		c.In = off

		if n > 0 && done(c.buf[:off]) {
			return c.buf[:off], nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return c.buf[:off], nil
			}
			return c.buf[:off], err
		}
	}
	return c.buf[:off], ErrRequestTooLarge
}
