package metrics

import "github.com/prometheus/client_golang/prometheus"

// Self-monitoring metrics for the exporter itself. These use the
// "gcore_dns_exporter_" prefix to distinguish them from the gcore_dns_*
// business metrics.
//
// All metrics are pre-registered via RegisterSelfMetrics and updated
// imperatively by the poller.
var (
	// PollDuration tracks the duration of each polling cycle.
	PollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gcore_dns_exporter_poll_duration_seconds",
		Help:    "Duration of a complete polling cycle in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	// APIErrors counts failed G-Core API calls per endpoint.
	APIErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcore_dns_exporter_api_errors_total",
		Help: "Total number of failed G-Core DNS API calls, partitioned by endpoint.",
	}, []string{"endpoint"})

	// ZonesTotalAmount reports the zone count announced by the zone list endpoint.
	ZonesTotalAmount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gcore_dns_exporter_zones_total_amount",
		Help: "Number of zones reported by the G-Core DNS API in the last successful zone list.",
	})

	// LastSuccess is the unix time of the last cycle that published at least one statistic.
	LastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gcore_dns_exporter_last_success_timestamp_seconds",
		Help: "Unix timestamp of the last polling cycle that fetched at least one statistic.",
	})

	// PersistDuration tracks the duration of snapshot persist operations.
	PersistDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gcore_dns_exporter_persist_duration_seconds",
		Help:    "Duration of snapshot persist operations in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

// RegisterSelfMetrics registers all self-monitoring metrics with the given
// Prometheus registry.
func RegisterSelfMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		PollDuration,
		APIErrors,
		ZonesTotalAmount,
		LastSuccess,
		PersistDuration,
	)
}
