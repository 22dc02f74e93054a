package telemetry

import "github.com/prometheus/client_golang/prometheus"

var PagesFetchedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "selectortrace",
		Subsystem: "harvest",
		Name:      "pages_fetched_total",
		Help:      "Total number of paginated upstream responses fetched, by source.",
	},
	[]string{"source"},
)

var SignaturesInsertedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "selectortrace",
		Subsystem: "harvest",
		Name:      "signatures_inserted_total",
		Help:      "Total number of new signatures inserted, by kind.",
	},
	[]string{"kind"},
)

var ProvenanceEdgesInsertedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "selectortrace",
		Subsystem: "harvest",
		Name:      "provenance_edges_inserted_total",
		Help:      "Total number of new signature provenance edges inserted, by source.",
	},
	[]string{"source"},
)

var CredentialRotationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "selectortrace",
		Subsystem: "harvest",
		Name:      "credential_rotations_total",
		Help:      "Total number of credential pool rotations, by reason.",
	},
	[]string{"reason"},
)

var RepositoriesMarkedDeletedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "selectortrace",
		Subsystem: "harvest",
		Name:      "repositories_marked_deleted_total",
		Help:      "Total number of repositories marked deleted after a resource-unavailable response.",
	},
)

var HTTPRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "selectortrace",
		Subsystem: "harvest",
		Name:      "http_retries_total",
		Help:      "Total number of HTTP request retries, by classification.",
	},
	[]string{"classification"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "selectortrace",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds, by route and status.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"route", "method", "status"},
)

// All returns every selectortrace-specific metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		PagesFetchedTotal,
		SignaturesInsertedTotal,
		ProvenanceEdgesInsertedTotal,
		CredentialRotationsTotal,
		RepositoriesMarkedDeletedTotal,
		HTTPRetriesTotal,
		HTTPRequestDuration,
	}
}

// NewMetricsRegistry builds a Prometheus registry with the standard Go and
// process collectors plus the given extra collectors.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
