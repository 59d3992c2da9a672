package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-wide Prometheus metrics.
type Metrics struct {
	RequestLatency   *prometheus.HistogramVec
	CollaboratorUp   *prometheus.GaugeVec
	ContentFetchMiss prometheus.Counter
}

// New creates and registers all application-wide metrics.
func New() *Metrics {
	return &Metrics{
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bvc_registry_request_duration_seconds",
			Help:    "HTTP request latency by route and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		CollaboratorUp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bvc_registry_collaborator_up",
			Help: "Last observed reachability of an external collaborator (1 up, 0 down)",
		}, []string{"collaborator"}),
		ContentFetchMiss: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bvc_registry_content_fetch_misses_total",
			Help: "Content bodies that could not be fetched on a read path",
		}),
	}
}
