// Package metrics aggregates per-connection samples over a sliding window.
package metrics

import (
	"math"
	"sync"
	"time"
)

// span floor so a single sample doesn't divide by zero
const minSpan = time.Microsecond

type Sample struct {
	At       time.Time
	Latency  time.Duration
	BytesIn  int
	BytesOut int
}

// Snapshot is the aggregate over samples still inside the window.
type Snapshot struct {
	WindowSeconds  float64 `json:"window_seconds"`
	SampleCount    int     `json:"sample_count"`
	LatencyAvgMs   float64 `json:"latency_ms_avg"`
	LatencyMaxMs   float64 `json:"latency_ms_max"`
	LatencyMinMs   float64 `json:"latency_ms_min"`
	RTTAvgMs       float64 `json:"rtt_ms_avg"`
	ThroughputKBps float64 `json:"throughput_kbps"`
	RequestsPerSec float64 `json:"requests_per_sec"`
}

// Collector keeps samples in arrival order, so the queue is time ordered
// and eviction only ever pops from the front. One mutex guards both calls.
type Collector struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	samples []Sample
}

type Option func(*Collector)

func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

func NewCollector(window time.Duration, opts ...Option) *Collector {
	c := &Collector{window: window, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Collector) Window() time.Duration {
	return c.window
}

// Record appends a sample stamped now and drops the stale ones.
// The clock is read under the lock so arrival order is timestamp order.
func (c *Collector) Record(latency time.Duration, bytesIn, bytesOut int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	c.samples = append(c.samples, Sample{At: now, Latency: latency, BytesIn: bytesIn, BytesOut: bytesOut})
	c.trimLocked(now)
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	c.trimLocked(now)

	snap := Snapshot{WindowSeconds: c.window.Seconds()}
	n := len(c.samples)
	if n == 0 {
		return snap
	}

	var total time.Duration
	var bytesOut int
	lo, hi := time.Duration(math.MaxInt64), time.Duration(0)
	for _, s := range c.samples {
		total += s.Latency
		bytesOut += s.BytesOut
		lo = min(lo, s.Latency)
		hi = max(hi, s.Latency)
	}

	span := max(c.samples[n-1].At.Sub(c.samples[0].At), minSpan).Seconds()

	snap.SampleCount = n
	snap.LatencyAvgMs = ms(total) / float64(n)
	snap.LatencyMaxMs = ms(hi)
	snap.LatencyMinMs = ms(lo)
	snap.RTTAvgMs = snap.LatencyAvgMs
	snap.ThroughputKBps = float64(bytesOut) / 1024 / span
	snap.RequestsPerSec = float64(n) / span
	return snap
}

// drop everything older than now - window from the front
func (c *Collector) trimLocked(now time.Time) {
	cutoff := now.Add(-c.window)
	i := 0
	for i < len(c.samples) && c.samples[i].At.Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	// copy down so the backing array doesn't grow forever
	n := copy(c.samples, c.samples[i:])
	clear(c.samples[n:])
	c.samples = c.samples[:n]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
