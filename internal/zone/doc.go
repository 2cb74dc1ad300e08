// Package zone provides the zone registry for the RNet bridge.
//
// A zone is one output of a Russound controller, addressed by a
// (controller, zone) pair. The registry holds the configured zones with
// their display names and the last-known state decoded from the bus. Only
// the current state is kept; there is no history.
//
// # Key Types
//
//   - Zone: a configured or observed zone with its current State
//   - State: power, volume, source and when they last changed
//   - Repository: persistence interface, implemented by SQLiteRepository
//   - Registry: cached, thread-safe access used by the bridge and API
//
// # Usage
//
//	repo := zone.NewSQLiteRepository(db.DB)
//	registry := zone.NewRegistry(repo)
//	if err := registry.SeedZones(ctx, configured); err != nil {
//	    return err
//	}
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
package zone
