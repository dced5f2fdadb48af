// Package poller periodically fetches G-Core DNS statistics and updates the store.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kanzifucius/gcore-dns-exporter/pkg/config"
	"github.com/kanzifucius/gcore-dns-exporter/pkg/gcore"
	"github.com/kanzifucius/gcore-dns-exporter/pkg/metrics"
	"github.com/kanzifucius/gcore-dns-exporter/pkg/store"
)

// API is the subset of gcore.Client used by the Poller.
type API interface {
	ListZones(ctx context.Context, limit int) (*gcore.ZoneList, error)
	ZoneStatistic(ctx context.Context, zone string, w gcore.Window) (uint64, error)
	AllZonesStatistic(ctx context.Context, w gcore.Window) (uint64, error)
}

// Poller runs poll cycles one after another, sleeping the configured interval
// between them. Cycles never overlap.
type Poller struct {
	api   API
	cfg   *config.Config
	store store.Store
	now   func() time.Time

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a new Poller. Every statistics request is preceded by a pause
// of cfg.RequestDelay().
func New(api API, cfg *config.Config, s store.Store) *Poller {
	return &Poller{
		api:   api,
		cfg:   cfg,
		store: s,
		now:   time.Now,
		ready: make(chan struct{}),
	}
}

// Ready is closed once the first poll cycle has finished, whatever its outcome.
func (p *Poller) Ready() <-chan struct{} { return p.ready }

// Run starts the polling loop. It blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		p.poll(ctx)
		p.readyOnce.Do(func() { close(p.ready) })

		timer := time.NewTimer(p.cfg.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("poller shutting down")
			return
		case <-timer.C:
		}
	}
}

// DayWindow returns the reporting window [local midnight of now's day, now).
func DayWindow(now time.Time) gcore.Window {
	y, m, d := now.Date()
	return gcore.Window{
		From: time.Date(y, m, d, 0, 0, 0, 0, now.Location()),
		To:   now,
	}
}

// poll executes a single polling cycle: list zones, fetch each zone's
// statistic, then the all-zones statistic. Individual failures are logged
// and skipped.
func (p *Poller) poll(ctx context.Context) {
	slog.Debug("polling cycle started")
	start := time.Now()
	defer func() { metrics.PollDuration.Observe(time.Since(start).Seconds()) }()

	window := DayWindow(p.now())

	list, err := p.api.ListZones(ctx, p.cfg.ZonesLimit)
	if err != nil {
		metrics.APIErrors.WithLabelValues(gcore.EndpointZones).Inc()
		slog.Error("failed to list zones, keeping last known metrics",
			"endpoint", gcore.EndpointZones,
			"error", err,
		)
		return
	}

	metrics.ZonesTotalAmount.Set(float64(list.TotalAmount))
	slog.Info("zones listed",
		"total_amount", list.TotalAmount,
		"returned", len(list.Zones),
		"limit", p.cfg.ZonesLimit,
	)
	if list.TotalAmount > len(list.Zones) {
		slog.Warn("zone list truncated, raise GCORE_DNS_API_ZONES_LIMIT to export every zone",
			"total_amount", list.TotalAmount,
			"limit", p.cfg.ZonesLimit,
		)
	}

	names := make([]string, 0, len(list.Zones))
	for _, z := range list.Zones {
		if z.Name == "" {
			slog.Warn("skipping zone without a name")
			continue
		}
		names = append(names, z.Name)
	}

	p.resetZones(names)

	var fetched, failed int
	for _, zone := range names {
		if err := p.pause(ctx); err != nil {
			slog.Info("polling cycle interrupted", "error", err)
			return
		}
		requests, err := p.api.ZoneStatistic(ctx, zone, window)
		if err != nil {
			failed++
			metrics.APIErrors.WithLabelValues(gcore.EndpointZoneStats).Inc()
			slog.Error("failed to fetch zone statistics",
				"endpoint", gcore.EndpointZoneStats,
				"zone", zone,
				"error", err,
			)
			continue
		}
		p.store.SetZone(zone, requests)
		fetched++
		slog.Debug("zone statistics updated", "zone", zone, "requests", requests)
	}

	if err := p.pause(ctx); err != nil {
		slog.Info("polling cycle interrupted", "error", err)
		return
	}
	if total, err := p.api.AllZonesStatistic(ctx, window); err != nil {
		metrics.APIErrors.WithLabelValues(gcore.EndpointAllZonesStats).Inc()
		slog.Error("failed to fetch all zones statistics, keeping last known value",
			"endpoint", gcore.EndpointAllZonesStats,
			"error", err,
		)
	} else {
		p.store.SetAggregate(total)
		fetched++
		slog.Debug("all zones statistics updated", "requests", total)
	}

	if fetched > 0 {
		metrics.LastSuccess.Set(float64(p.now().Unix()))
	} else {
		slog.Warn("no statistics fetched in this cycle")
	}

	if ps, ok := p.store.(store.PersistentStore); ok {
		persistStart := time.Now()
		if err := ps.Persist(ctx); err != nil {
			slog.Error("failed to persist snapshot", "error", err)
		} else {
			metrics.PersistDuration.Observe(time.Since(persistStart).Seconds())
		}
	}

	slog.Info("polling cycle complete",
		"zones", len(names),
		"failed", failed,
		"exported_zones", p.store.ZoneCount(),
		"window_from", window.From.Unix(),
		"window_to", window.To.Unix(),
		"duration", time.Since(start).String(),
	)
}

// pause waits for the configured request delay, counted from the end of the
// previous request. It returns early with ctx's error.
func (p *Poller) pause(ctx context.Context) error {
	d := p.cfg.RequestDelay()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resetZones applies the configured zone reset policy before zones are re-fetched.
func (p *Poller) resetZones(listed []string) {
	switch p.cfg.ZoneResetPolicy {
	case config.PolicyClear:
		p.store.ClearZones()
	case config.PolicyZero:
		p.store.ZeroZones()
	default:
		if removed := p.store.PruneZones(listed); removed > 0 {
			slog.Info("removed zones no longer listed by the API", "count", removed)
		}
	}
}
