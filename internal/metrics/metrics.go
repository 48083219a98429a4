// Package metrics exports coordination events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dfs-go/internal/dfs"
)

// Prometheus is the Prometheus implementation of dfs.Metrics.
type Prometheus struct {
	peerCalls    *prometheus.CounterVec // dfs_peer_calls_total{peer,op,status}
	items        *prometheus.CounterVec // dfs_batch_items_total{op,status}
	healthyPeers prometheus.Gauge       // dfs_healthy_peers
}

// NewRegistry creates a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New registers the coordination metrics with reg.
func New(reg prometheus.Registerer) *Prometheus {
	return &Prometheus{
		peerCalls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dfs_peer_calls_total",
			Help: "Calls to storage peers by peer, operation and status",
		}, []string{"peer", "op", "status"}),

		items: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dfs_batch_items_total",
			Help: "Items of batch operations by operation and status",
		}, []string{"op", "status"}),

		healthyPeers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dfs_healthy_peers",
			Help: "Peers that passed their latest health check",
		}),
	}
}

func (m *Prometheus) PeerCall(peerID, op string, err error) {
	m.peerCalls.WithLabelValues(peerID, op, status(err)).Inc()
}

func (m *Prometheus) ItemResult(op string, err error) {
	m.items.WithLabelValues(op, status(err)).Inc()
}

func (m *Prometheus) HealthyPeers(n int) {
	m.healthyPeers.Set(float64(n))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Compile-time check that Prometheus implements dfs.Metrics
var _ dfs.Metrics = (*Prometheus)(nil)
