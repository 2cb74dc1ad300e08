package zone

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry wraps a Repository with an in-memory cache keyed by zone address.
//
// All public methods are thread-safe. Returned zones are copies.
type Registry struct {
	repo    Repository
	cache   map[rnet.ZoneID]Zone
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new zone registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[rnet.ZoneID]Zone),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SeedZones registers configured zones. Zones that already exist keep
// their stored name and state.
func (r *Registry) SeedZones(ctx context.Context, zones []Zone) error {
	created := 0
	for i := range zones {
		ok, err := r.repo.CreateIfNotExists(ctx, &zones[i])
		if err != nil {
			return fmt.Errorf("seeding zone %s: %w", zones[i].ID(), err)
		}
		if ok {
			created++
		}
	}
	r.logger.Info("zones seeded", "configured", len(zones), "created", created)
	return nil
}

// RefreshCache reloads all zones from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	zones, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading zones: %w", err)
	}

	cache := make(map[rnet.ZoneID]Zone, len(zones))
	for _, z := range zones {
		cache[z.ID()] = cloneZone(z)
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.logger.Info("zone cache refreshed", "count", len(zones))
	return nil
}

// GetZone returns a zone by address.
func (r *Registry) GetZone(ctx context.Context, id rnet.ZoneID) (*Zone, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		z := cloneZone(cached)
		return &z, nil
	}

	z, err := r.repo.Get(ctx, id.Controller, id.Zone)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = cloneZone(*z)
	r.cacheMu.Unlock()
	return z, nil
}

// ListZones returns every cached zone ordered by address.
func (r *Registry) ListZones() []Zone {
	r.cacheMu.RLock()
	zones := make([]Zone, 0, len(r.cache))
	for _, z := range r.cache {
		zones = append(zones, cloneZone(z))
	}
	r.cacheMu.RUnlock()

	sort.Slice(zones, func(i, j int) bool {
		if zones[i].Controller != zones[j].Controller {
			return zones[i].Controller < zones[j].Controller
		}
		return zones[i].Zone < zones[j].Zone
	})
	return zones
}

// ZoneIDs returns the addresses of every cached zone, ordered.
func (r *Registry) ZoneIDs() []rnet.ZoneID {
	zones := r.ListZones()
	ids := make([]rnet.ZoneID, len(zones))
	for i, z := range zones {
		ids[i] = z.ID()
	}
	return ids
}

// SetState persists a zone's last-known state and updates the cache.
// Zones seen on the bus but not configured are added unnamed.
func (r *Registry) SetState(ctx context.Context, id rnet.ZoneID, state State) error {
	if err := r.repo.SetState(ctx, id.Controller, id.Zone, state); err != nil {
		return err
	}

	now := time.Now().UTC()
	r.cacheMu.Lock()
	z, ok := r.cache[id]
	if !ok {
		z = Zone{Controller: id.Controller, Zone: id.Zone, CreatedAt: now}
	}
	z.State = state.Clone()
	z.UpdatedAt = now
	r.cache[id] = z
	r.cacheMu.Unlock()

	r.logger.Debug("zone state updated", "zone", id.String())
	return nil
}

func cloneZone(z Zone) Zone {
	z.State = z.State.Clone()
	return z
}
