package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registry slice's Prometheus metrics.
type Metrics struct {
	VulnerabilitiesCreated prometheus.Counter
	VersionsAppended       prometheus.Counter
	StatusToggles          prometheus.Counter
	DuplicatesRejected     prometheus.Counter
}

// New creates and registers the registry metrics.
func New() *Metrics {
	return &Metrics{
		VulnerabilitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bvc_registry_vulnerabilities_created_total",
			Help: "Logical vulnerabilities registered (version 1 submissions)",
		}),
		VersionsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bvc_registry_versions_appended_total",
			Help: "Versions appended to existing vulnerabilities",
		}),
		StatusToggles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bvc_registry_status_toggles_total",
			Help: "Active-flag changes",
		}),
		DuplicatesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bvc_registry_duplicates_rejected_total",
			Help: "Submissions rejected by the duplicate-content guard",
		}),
	}
}
