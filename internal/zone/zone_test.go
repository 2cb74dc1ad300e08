package zone

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
	"github.com/nerrad567/gray-logic-rnet/migrations"
)

// setupTestRepo opens a migrated SQLite database in a temp dir.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "zones.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func ptr[T any](v T) *T { return &v }

func TestStateApply(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := State{Power: ptr(true), Volume: ptr(20)}

	tests := []struct {
		name        string
		changes     []rnet.StateChange
		wantChanged bool
		wantPower   *bool
		wantVolume  *int
		wantSource  *int
	}{
		{
			name:        "same volume is not a change",
			changes:     []rnet.StateChange{rnet.VolumeChange(20)},
			wantChanged: false,
			wantPower:   ptr(true),
			wantVolume:  ptr(20),
		},
		{
			name:        "new volume",
			changes:     []rnet.StateChange{rnet.VolumeChange(30)},
			wantChanged: true,
			wantPower:   ptr(true),
			wantVolume:  ptr(30),
		},
		{
			name:        "first source report",
			changes:     []rnet.StateChange{rnet.SourceChange(2)},
			wantChanged: true,
			wantPower:   ptr(true),
			wantVolume:  ptr(20),
			wantSource:  ptr(2),
		},
		{
			name:        "snapshot replaces everything",
			changes:     []rnet.StateChange{rnet.SnapshotChange(false, 5, 3)},
			wantChanged: true,
			wantPower:   ptr(false),
			wantVolume:  ptr(5),
			wantSource:  ptr(3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, changed := base.Apply(tt.changes, now)
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if !equalPtr(next.Power, tt.wantPower) || !equalPtr(next.Volume, tt.wantVolume) || !equalPtr(next.Source, tt.wantSource) {
				t.Errorf("state = %+v", next)
			}
			if changed && (next.UpdatedAt == nil || !next.UpdatedAt.Equal(now)) {
				t.Errorf("UpdatedAt = %v, want %v", next.UpdatedAt, now)
			}
			if !changed && next.UpdatedAt != nil {
				t.Errorf("UpdatedAt should stay nil when nothing changed")
			}
		})
	}

	if *base.Volume != 20 {
		t.Error("Apply mutated the receiver")
	}
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func TestSQLiteRepository_CreateIfNotExists(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateIfNotExists(ctx, &Zone{Controller: 1, Zone: 1, Name: "Kitchen"})
	if err != nil || !created {
		t.Fatalf("first create = (%v, %v), want (true, nil)", created, err)
	}

	created, err = repo.CreateIfNotExists(ctx, &Zone{Controller: 1, Zone: 1, Name: "Renamed"})
	if err != nil || created {
		t.Fatalf("second create = (%v, %v), want (false, nil)", created, err)
	}

	z, err := repo.Get(ctx, 1, 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if z.Name != "Kitchen" {
		t.Errorf("Name = %q, want existing name kept", z.Name)
	}
	if !z.State.IsEmpty() {
		t.Errorf("new zone state = %+v, want empty", z.State)
	}

	if _, err := repo.CreateIfNotExists(ctx, &Zone{Controller: 0, Zone: 1}); !errors.Is(err, ErrInvalidZone) {
		t.Errorf("invalid zone error = %v, want ErrInvalidZone", err)
	}
}

func TestSQLiteRepository_GetNotFound(t *testing.T) {
	repo := setupTestRepo(t)
	if _, err := repo.Get(context.Background(), 2, 3); !errors.Is(err, ErrZoneNotFound) {
		t.Errorf("Get() error = %v, want ErrZoneNotFound", err)
	}
}

func TestSQLiteRepository_SetState(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	if _, err := repo.CreateIfNotExists(ctx, &Zone{Controller: 1, Zone: 2, Name: "Lounge"}); err != nil {
		t.Fatal(err)
	}

	state := State{Power: ptr(true), Volume: ptr(0), Source: ptr(4), UpdatedAt: &at}
	if err := repo.SetState(ctx, 1, 2, state); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	// Unconfigured zone gets an unnamed row.
	if err := repo.SetState(ctx, 2, 1, State{Volume: ptr(10)}); err != nil {
		t.Fatalf("SetState() unconfigured error = %v", err)
	}

	z, err := repo.Get(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if z.Name != "Lounge" {
		t.Errorf("Name = %q, want Lounge", z.Name)
	}
	if !equalPtr(z.State.Power, ptr(true)) || !equalPtr(z.State.Volume, ptr(0)) || !equalPtr(z.State.Source, ptr(4)) {
		t.Errorf("state = %+v", z.State)
	}
	if z.State.UpdatedAt == nil || !z.State.UpdatedAt.Equal(at) {
		t.Errorf("state UpdatedAt = %v, want %v", z.State.UpdatedAt, at)
	}

	zones, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != 2 || zones[0].ID() != (rnet.ZoneID{Controller: 1, Zone: 2}) || zones[1].ID() != (rnet.ZoneID{Controller: 2, Zone: 1}) {
		t.Errorf("List() = %+v", zones)
	}
	if zones[1].State.Power != nil {
		t.Error("unreported power should stay NULL")
	}
}

func TestRegistry(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	reg := NewRegistry(repo)

	err := reg.SeedZones(ctx, []Zone{
		{Controller: 1, Zone: 2, Name: "Lounge"},
		{Controller: 1, Zone: 1, Name: "Kitchen"},
	})
	if err != nil {
		t.Fatalf("SeedZones() error = %v", err)
	}
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	ids := reg.ZoneIDs()
	want := []rnet.ZoneID{{Controller: 1, Zone: 1}, {Controller: 1, Zone: 2}}
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Fatalf("ZoneIDs() = %v, want %v", ids, want)
	}

	id := rnet.ZoneID{Controller: 1, Zone: 1}
	if err := reg.SetState(ctx, id, State{Volume: ptr(33)}); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	z, err := reg.GetZone(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if z.Name != "Kitchen" || !equalPtr(z.State.Volume, ptr(33)) {
		t.Errorf("GetZone() = %+v", z)
	}

	// Returned copies must not alias the cache.
	*z.State.Volume = 99
	again, _ := reg.GetZone(ctx, id)
	if *again.State.Volume != 33 {
		t.Error("cache mutated through returned zone")
	}

	// Persisted, so a fresh registry sees it.
	fresh := NewRegistry(repo)
	if err := fresh.RefreshCache(ctx); err != nil {
		t.Fatal(err)
	}
	z, err = fresh.GetZone(ctx, id)
	if err != nil || !equalPtr(z.State.Volume, ptr(33)) {
		t.Errorf("fresh GetZone() = %+v, %v", z, err)
	}

	if _, err := fresh.GetZone(ctx, rnet.ZoneID{Controller: 5, Zone: 5}); !errors.Is(err, ErrZoneNotFound) {
		t.Errorf("unknown zone error = %v", err)
	}
}
