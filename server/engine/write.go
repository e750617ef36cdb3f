package engine

import "time"

// larger response buffers are left to gc
const maxPooledOut = 1 << 20

// func that builds resp into dst, engine works only w bytes, no HTTP logic
type buildFunc func(dst []byte) []byte

// WriteBuf gets a buffer from pool, builds the response into it, writes
// it under the write deadline and puts the buffer back,
// so we don't alloc new bufs for every resp
func (c *Conn) WriteBuf(cb buildFunc) (int, error) {
	bp := outPool.Get().(*[]byte)
	defer outPool.Put(bp)

	out := cb((*bp)[:0])
	// keep grown buffer for next time, unless a big file blew it up
	if cap(out) <= maxPooledOut {
		*bp = out[:0]
	}

	return c.Write(out)
}

// Write sends p in full or fails.
func (c *Conn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}

	n, err := c.nc.Write(p)
	c.Out += n
	return n, err
}
