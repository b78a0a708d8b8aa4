// Package telemetry exposes live run metrics to Prometheus.
package telemetry

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/radclient"
	"github.com/openradius/authstorm/internal/scenario"
)

const namespace = "authstorm"

// Collector records every attempt into Prometheus vectors labelled by phase.
// It is a metrics.Sink and a scenario.Listener.
type Collector struct {
	registry *prometheus.Registry
	phase    atomic.Value

	attempts *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	active   *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Authentication attempts by phase and outcome",
			},
			[]string{"phase", "outcome"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Failed attempts by phase and error class",
			},
			[]string{"phase", "class"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Authentication attempt latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"phase"},
		),
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "phase_active",
				Help:      "1 while the labelled phase is running",
			},
			[]string{"phase"},
		),
	}
	c.phase.Store("")
	c.registry.MustRegister(c.attempts, c.errors, c.latency, c.active)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record implements metrics.Sink.
func (c *Collector) Record(r metrics.Result) {
	phase := c.phase.Load().(string)
	c.attempts.WithLabelValues(phase, r.Outcome.String()).Inc()
	c.latency.WithLabelValues(phase).Observe(r.Latency.Seconds())
	if r.Outcome == metrics.OutcomeError {
		c.errors.WithLabelValues(phase, metrics.ClassifyError(r.Err)).Inc()
	}
}

func (c *Collector) OnPhaseStart(p scenario.Phase, _ *metrics.LiveStats) {
	c.phase.Store(string(p.Kind))
	c.active.WithLabelValues(string(p.Kind)).Set(1)
}

func (c *Collector) OnPhaseEnd(p scenario.Phase, _ metrics.PhaseSummary) {
	c.active.WithLabelValues(string(p.Kind)).Set(0)
}

// RegisterPacketCounters exports the client's packet counters.
func (c *Collector) RegisterPacketCounters(counters *radclient.Counters) {
	if counters == nil {
		return
	}
	counter := func(name, help string, read func(radclient.CounterSnapshot) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return float64(read(counters.Snapshot())) },
		)
	}
	c.registry.MustRegister(
		counter("packets_sent_total", "Access-Request packets sent",
			func(s radclient.CounterSnapshot) int64 { return s.PacketsSent }),
		counter("packets_received_total", "Reply packets received",
			func(s radclient.CounterSnapshot) int64 { return s.PacketsReceived }),
		counter("bytes_sent_total", "Bytes sent on the wire",
			func(s radclient.CounterSnapshot) int64 { return s.BytesSent }),
		counter("bytes_received_total", "Bytes received on the wire",
			func(s radclient.CounterSnapshot) int64 { return s.BytesReceived }),
		counter("timeouts_total", "Requests that got no reply in time",
			func(s radclient.CounterSnapshot) int64 { return s.Timeouts }),
	)
}
