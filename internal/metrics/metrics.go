// Package l2tpmetrics exposes the control protocol's Prometheus
// metrics.
package l2tpmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "esl2tpd"

// Collector holds the protocol counters and gauges.  All methods are
// safe to call on a nil receiver, which makes metrics strictly
// optional for the protocol engine.
type Collector struct {
	controlRx      *prometheus.CounterVec
	controlTx      *prometheus.CounterVec
	retransmits    *prometheus.CounterVec
	digestFailures *prometheus.CounterVec
	protocolErrors *prometheus.CounterVec
	connections    prometheus.Gauge
	sessions       prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with the
// given registerer.  A nil registerer selects the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		controlRx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_rx_total",
			Help:      "Control messages received, by peer address.",
		}, []string{"peer"}),
		controlTx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_tx_total",
			Help:      "Control messages transmitted, by peer address.",
		}, []string{"peer"}),
		retransmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retransmits_total",
			Help:      "Control message retransmissions, by peer address.",
		}, []string{"peer"}),
		digestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digest_failures_total",
			Help:      "Control messages dropped due to digest verification failure.",
		}, []string{"peer"}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Malformed or unexpected control messages, by peer address.",
		}, []string{"peer"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Control connections currently tracked.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Sessions currently tracked.",
		}),
	}

	reg.MustRegister(
		c.controlRx,
		c.controlTx,
		c.retransmits,
		c.digestFailures,
		c.protocolErrors,
		c.connections,
		c.sessions,
	)
	return c
}

func (c *Collector) ControlRx(peer string) {
	if c == nil {
		return
	}
	c.controlRx.WithLabelValues(peer).Inc()
}

func (c *Collector) ControlTx(peer string) {
	if c == nil {
		return
	}
	c.controlTx.WithLabelValues(peer).Inc()
}

func (c *Collector) Retransmit(peer string) {
	if c == nil {
		return
	}
	c.retransmits.WithLabelValues(peer).Inc()
}

func (c *Collector) DigestFailure(peer string) {
	if c == nil {
		return
	}
	c.digestFailures.WithLabelValues(peer).Inc()
}

func (c *Collector) ProtocolError(peer string) {
	if c == nil {
		return
	}
	c.protocolErrors.WithLabelValues(peer).Inc()
}

func (c *Collector) ConnectionUp() {
	if c == nil {
		return
	}
	c.connections.Inc()
}

func (c *Collector) ConnectionDown() {
	if c == nil {
		return
	}
	c.connections.Dec()
}

func (c *Collector) SessionUp() {
	if c == nil {
		return
	}
	c.sessions.Inc()
}

func (c *Collector) SessionDown() {
	if c == nil {
		return
	}
	c.sessions.Dec()
}
