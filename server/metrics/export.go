package metrics

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

const namespace = "sockblog"

// TextContentType is the prometheus text exposition content type.
const TextContentType = "text/plain; version=0.0.4; charset=utf-8"

// Exporter publishes the current window snapshot as gauges on every scrape.
type Exporter struct {
	c *Collector

	count, avg, maxLat, minLat, kbps, rps *prometheus.Desc
}

func NewExporter(c *Collector) *Exporter {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "requests_window", name), help, nil, nil)
	}
	return &Exporter{
		c:      c,
		count:  desc("count", "Requests inside the sliding window."),
		avg:    desc("latency_avg_ms", "Average request latency in the window, ms."),
		maxLat: desc("latency_max_ms", "Max request latency in the window, ms."),
		minLat: desc("latency_min_ms", "Min request latency in the window, ms."),
		kbps:   desc("throughput_kbps", "Bytes sent per second over the window span, KB/s."),
		rps:    desc("per_second", "Requests per second over the window span."),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.count
	ch <- e.avg
	ch <- e.maxLat
	ch <- e.minLat
	ch <- e.kbps
	ch <- e.rps
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.c.Snapshot()

	ch <- prometheus.MustNewConstMetric(e.count, prometheus.GaugeValue, float64(s.SampleCount))
	ch <- prometheus.MustNewConstMetric(e.avg, prometheus.GaugeValue, s.LatencyAvgMs)
	ch <- prometheus.MustNewConstMetric(e.maxLat, prometheus.GaugeValue, s.LatencyMaxMs)
	ch <- prometheus.MustNewConstMetric(e.minLat, prometheus.GaugeValue, s.LatencyMinMs)
	ch <- prometheus.MustNewConstMetric(e.kbps, prometheus.GaugeValue, s.ThroughputKBps)
	ch <- prometheus.MustNewConstMetric(e.rps, prometheus.GaugeValue, s.RequestsPerSec)
}

// Registry bundles the window exporter with process level collectors
// and the connection counters the server updates.
type Registry struct {
	reg *prometheus.Registry

	responses *prometheus.CounterVec
	active    prometheus.Gauge
	bytesIn   prometheus.Counter
	bytesOut  prometheus.Counter
}

func NewRegistry(c *Collector) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses written, by status code.",
		}, []string{"code"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently owned by a worker.",
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "Request bytes read from sockets.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_bytes_total",
			Help:      "Response bytes written to sockets.",
		}),
	}

	r.reg.MustRegister(
		NewExporter(c),
		r.responses,
		r.active,
		r.bytesIn,
		r.bytesOut,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ConnOpened and ConnClosed track connections held by workers.
func (r *Registry) ConnOpened() { r.active.Inc() }

// ConnClosed accounts a finished connection. code 0 means nothing was written.
func (r *Registry) ConnClosed(code, in, out int) {
	r.active.Dec()
	r.bytesIn.Add(float64(in))
	r.bytesOut.Add(float64(out))
	if code > 0 {
		r.responses.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

// Render gathers everything in prometheus text format.
func (r *Registry) Render() ([]byte, error) {
	mfs, err := r.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}
