package comm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Eviction reasons.
const (
	ReasonCapacity         = "capacity"
	ReasonSuperseded       = "superseded"
	ReasonClosed           = "closed"
	ReasonConnectFailed    = "connect_failed"
	ReasonIdentityMismatch = "identity_mismatch"
)

// Propagation results.
const (
	ResultDelivered = "delivered"
	ResultDropped   = "dropped"
	ResultUnreached = "unreached"
)

// Metrics exposes Prometheus metrics for the peer registry. A nil *Metrics
// records nothing.
type Metrics struct {
	connected   prometheus.Gauge
	evicted     *prometheus.CounterVec
	propagation *prometheus.CounterVec
}

// NewMetrics registers the registry metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blocknet_peers_connected",
			Help: "Number of peers with a live communication handle",
		}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocknet_peers_evicted_total",
			Help: "Peers removed from the registry grouped by reason",
		}, []string{"reason"}),
		propagation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocknet_propagation_total",
			Help: "Propagation attempts grouped by kind and result",
		}, []string{"kind", "result"}),
	}

	if reg != nil {
		reg.MustRegister(m.connected, m.evicted, m.propagation)
	}

	return m
}

// SetConnected records the number of live handles.
func (m *Metrics) SetConnected(n int) {
	if m == nil {
		return
	}
	m.connected.Set(float64(n))
}

// ObserveEviction counts a handle removed for reason.
func (m *Metrics) ObserveEviction(reason string) {
	if m == nil {
		return
	}
	m.evicted.WithLabelValues(reason).Inc()
}

// ObservePropagation counts one delivery attempt.
func (m *Metrics) ObservePropagation(kind, result string) {
	if m == nil {
		return
	}
	m.propagation.WithLabelValues(kind, result).Inc()
}
