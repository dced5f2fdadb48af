package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kanzifucius/gcore-dns-exporter/pkg/store"
)

const namespace = "gcore_dns"

var (
	zoneRequestsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "zone_requests"),
		"Amount of requests per zone since midnight",
		[]string{"zone"},
		nil,
	)

	allZonesRequestsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "all_zones_requests"),
		"Amount of requests from all zones since midnight",
		nil,
		nil,
	)
)

// ZoneCollector implements prometheus.Collector for the G-Core DNS request
// counters held in the store. Each scrape reads one consistent snapshot.
type ZoneCollector struct {
	store store.Store
}

// NewZoneCollector creates a new ZoneCollector.
func NewZoneCollector(s store.Store) *ZoneCollector {
	return &ZoneCollector{store: s}
}

// Describe sends the metric descriptors to the channel.
func (c *ZoneCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- zoneRequestsDesc
	ch <- allZonesRequestsDesc
}

// Collect emits one gauge per zone plus the all-zones gauge once it has been fetched.
func (c *ZoneCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.store.Snapshot()

	for zone, requests := range snap.Zones {
		m, err := prometheus.NewConstMetric(
			zoneRequestsDesc,
			prometheus.GaugeValue,
			float64(requests),
			zone,
		)
		if err != nil {
			slog.Error("failed to create zone_requests metric", "zone", zone, "error", err)
			continue
		}
		ch <- m
	}

	if !snap.HasAggregate {
		return
	}
	m, err := prometheus.NewConstMetric(
		allZonesRequestsDesc,
		prometheus.GaugeValue,
		float64(snap.Aggregate),
	)
	if err != nil {
		slog.Error("failed to create all_zones_requests metric", "error", err)
		return
	}
	ch <- m
}
