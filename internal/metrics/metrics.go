// Package metrics exposes the resolver's Prometheus surface: gauges and
// counters updated by Monitor/Resolver as connections come online,
// elections are served, and delegate chains form. A single
// promauto-registered container plus a package-level default instance.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the resolver's Prometheus metric container.
type Metrics struct {
	ConnectionsOnline *prometheus.GaugeVec
	ElectionTotal     *prometheus.CounterVec
	DelegateCount     *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// Init registers the resolver's metric families under namespace.
func Init(namespace string) *Metrics {
	m := &Metrics{
		ConnectionsOnline: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connections_online",
				Help:      "Number of upstream connections currently online, by service and network",
			},
			[]string{"service", "network"},
		),
		ElectionTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "election_total",
				Help:      "Total number of election queries served, by service and outcome",
			},
			[]string{"service", "result"},
		),
		DelegateCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "delegate_count",
				Help:      "Number of connections acting as a delegate owner, by service and network",
			},
			[]string{"service", "network"},
		),
	}
	defaultMetrics = m
	return m
}

// Get returns the package-level metrics instance, initializing it with
// the default namespace on first use.
func Get() *Metrics {
	if defaultMetrics == nil {
		return Init("resolver")
	}
	return defaultMetrics
}

// RecordElection records one election outcome for service: "hit" when a
// node was returned, "miss" otherwise.
func (m *Metrics) RecordElection(service string, hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	m.ElectionTotal.WithLabelValues(service, result).Inc()
}

// SetConnectionsOnline sets the online-connection gauge for (service, network).
func (m *Metrics) SetConnectionsOnline(service, network string, count int) {
	m.ConnectionsOnline.WithLabelValues(service, network).Set(float64(count))
}

// SetDelegateCount sets the delegate-owner gauge for (service, network).
func (m *Metrics) SetDelegateCount(service, network string, count int) {
	m.DelegateCount.WithLabelValues(service, network).Set(float64(count))
}

// Handler returns the HTTP handler serving the /metrics surface.
func Handler() http.Handler {
	return promhttp.Handler()
}
