// Package metrics exposes Prometheus counters for the device protocol.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts protocol requests by endpoint and outcome. The outcome
// label carries "ok" or the wire error code, so retry storms and auth
// failures are visible per endpoint.
type Metrics struct {
	requests *prometheus.CounterVec
}

// New registers the collectors on reg and returns the Metrics handle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantguard",
			Subsystem: "protocol",
			Name:      "requests_total",
			Help:      "Protocol requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}
	reg.MustRegister(m.requests)
	return m
}

// Observe counts one finished request.
func (m *Metrics) Observe(endpoint, outcome string) {
	m.requests.WithLabelValues(endpoint, outcome).Inc()
}
