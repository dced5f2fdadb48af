package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kanzifucius/gcore-dns-exporter/pkg/store"
)

// ZoneDTO is the JSON representation of a single zone counter.
type ZoneDTO struct {
	Name     string `json:"name"`
	Requests uint64 `json:"requests"`
}

// ZonesResponse is the top-level JSON response for the /zones endpoint.
type ZonesResponse struct {
	Zones       []ZoneDTO `json:"zones"`
	AllZones    *uint64   `json:"allZonesRequests"` // null until first successful fetch
	UpdatedAt   string    `json:"updatedAt,omitempty"`
	GeneratedAt string    `json:"generatedAt"`
}

// zonesHandler returns an http.HandlerFunc that serves the current snapshot as JSON.
func zonesHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := s.Snapshot()

		zones := make([]ZoneDTO, 0, len(snap.Zones))
		for _, name := range snap.ZoneNames() {
			zones = append(zones, ZoneDTO{Name: name, Requests: snap.Zones[name]})
		}

		resp := ZonesResponse{
			Zones:       zones,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if snap.HasAggregate {
			total := snap.Aggregate
			resp.AllZones = &total
		}
		if !snap.UpdatedAt.IsZero() {
			resp.UpdatedAt = snap.UpdatedAt.UTC().Format(time.RFC3339)
		}

		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error("failed to marshal zones response", "error", err)
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(data)
	}
}
