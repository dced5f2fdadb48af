// Package store provides thread-safe in-memory storage for the latest known
// G-Core DNS request counters.
package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the interface for the metric snapshot.
// Implementations must be safe for concurrent use.
type Store interface {
	SetZone(zone string, requests uint64)
	ClearZones()
	ZeroZones()
	PruneZones(keep []string) int
	SetAggregate(requests uint64)
	Snapshot() Snapshot
	ZoneCount() int
}

// PersistentStore extends Store with durable persistence capabilities.
// Implementations wrap a MemoryStore, delegate all Store methods to it,
// and add persistence after each poll cycle plus one-time restore on startup.
type PersistentStore interface {
	Store
	Persist(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Snapshot is a point-in-time copy of the store. It is also the
// serialisation envelope used by every PersistentStore backend.
type Snapshot struct {
	Zones        map[string]uint64 `json:"zones"`
	Aggregate    uint64            `json:"aggregate"`
	HasAggregate bool              `json:"hasAggregate"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// ZoneNames returns the zone names of the snapshot in sorted order.
func (s Snapshot) ZoneNames() []string {
	names := make([]string, 0, len(s.Zones))
	for name := range s.Zones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MemoryStore is a thread-safe in-memory implementation of Store.
// All public methods are safe for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	zones        map[string]uint64
	aggregate    uint64
	hasAggregate bool
	updatedAt    time.Time

	now func() time.Time
}

// New creates a new empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		zones: make(map[string]uint64),
		now:   time.Now,
	}
}

// SetZone upserts the request counter of a zone.
func (s *MemoryStore) SetZone(zone string, requests uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[zone] = requests
	s.updatedAt = s.now()
}

// ClearZones removes every zone counter. The aggregate is left untouched.
func (s *MemoryStore) ClearZones() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.zones)
	s.updatedAt = s.now()
}

// ZeroZones sets every known zone counter to 0 while keeping the zones.
func (s *MemoryStore) ZeroZones() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for zone := range s.zones {
		s.zones[zone] = 0
	}
	s.updatedAt = s.now()
}

// PruneZones removes zones that are not in keep and returns how many were removed.
func (s *MemoryStore) PruneZones(keep []string) int {
	wanted := make(map[string]struct{}, len(keep))
	for _, z := range keep {
		wanted[z] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for zone := range s.zones {
		if _, ok := wanted[zone]; !ok {
			delete(s.zones, zone)
			removed++
		}
	}
	if removed > 0 {
		s.updatedAt = s.now()
	}
	return removed
}

// SetAggregate overwrites the all-zones request counter.
func (s *MemoryStore) SetAggregate(requests uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregate = requests
	s.hasAggregate = true
	s.updatedAt = s.now()
}

// Snapshot returns a deep copy of the current state.
func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zones := make(map[string]uint64, len(s.zones))
	for zone, v := range s.zones {
		zones[zone] = v
	}
	return Snapshot{
		Zones:        zones,
		Aggregate:    s.aggregate,
		HasAggregate: s.hasAggregate,
		UpdatedAt:    s.updatedAt,
	}
}

// ZoneCount returns the number of zones currently held.
func (s *MemoryStore) ZoneCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.zones)
}

// Load replaces the whole state with snap. Used by persistent backends on restore.
func (s *MemoryStore) Load(snap Snapshot) {
	zones := make(map[string]uint64, len(snap.Zones))
	for zone, v := range snap.Zones {
		zones[zone] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = zones
	s.aggregate = snap.Aggregate
	s.hasAggregate = snap.HasAggregate
	s.updatedAt = snap.UpdatedAt
}
