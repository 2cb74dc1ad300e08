package zone

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for zone persistence operations.
type Repository interface {
	// CreateIfNotExists inserts z unless the address already exists.
	// Existing rows, including their names, are left untouched.
	CreateIfNotExists(ctx context.Context, z *Zone) (bool, error)
	Get(ctx context.Context, controller, zone int) (*Zone, error)
	List(ctx context.Context) ([]Zone, error)
	// SetState stores the last-known state, creating an unnamed row for
	// zones that were not configured.
	SetState(ctx context.Context, controller, zone int, state State) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed zone repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const zoneColumns = `controller, zone, name, power, volume, source, state_updated_at, created_at, updated_at`

// CreateIfNotExists inserts a zone row if it does not already exist.
func (r *SQLiteRepository) CreateIfNotExists(ctx context.Context, z *Zone) (bool, error) {
	if err := z.Validate(); err != nil {
		return false, err
	}
	now := formatTime(time.Now())
	const query = `INSERT OR IGNORE INTO zones (controller, zone, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, z.Controller, z.Zone, z.Name, now, now)
	if err != nil {
		return false, fmt.Errorf("inserting zone %d:%d: %w", z.Controller, z.Zone, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting zone %d:%d: %w", z.Controller, z.Zone, err)
	}
	return n > 0, nil
}

// Get returns a single zone.
func (r *SQLiteRepository) Get(ctx context.Context, controller, zone int) (*Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones WHERE controller = ? AND zone = ?`
	z, err := scanZone(r.db.QueryRowContext(ctx, query, controller, zone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting zone %d:%d: %w", controller, zone, err)
	}
	return z, nil
}

// List returns all zones ordered by controller then zone.
func (r *SQLiteRepository) List(ctx context.Context) ([]Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones ORDER BY controller, zone`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning zone row: %w", err)
		}
		zones = append(zones, *z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zone rows: %w", err)
	}
	return zones, nil
}

// SetState upserts the zone's last-known state.
func (r *SQLiteRepository) SetState(ctx context.Context, controller, zone int, state State) error {
	z := Zone{Controller: controller, Zone: zone}
	if err := z.Validate(); err != nil {
		return err
	}

	now := formatTime(time.Now())
	stateAt := sql.NullString{}
	if state.UpdatedAt != nil {
		stateAt = sql.NullString{String: formatTime(*state.UpdatedAt), Valid: true}
	}

	const query = `INSERT INTO zones (controller, zone, name, power, volume, source, state_updated_at, created_at, updated_at)
		VALUES (?, ?, '', ?, ?, ?, ?, ?, ?)
		ON CONFLICT (controller, zone) DO UPDATE SET
			power = excluded.power,
			volume = excluded.volume,
			source = excluded.source,
			state_updated_at = excluded.state_updated_at,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query, controller, zone,
		nullBool(state.Power), nullInt(state.Volume), nullInt(state.Source), stateAt, now, now)
	if err != nil {
		return fmt.Errorf("updating state for zone %d:%d: %w", controller, zone, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanZone(row rowScanner) (*Zone, error) {
	var (
		z                    Zone
		power                sql.NullBool
		volume, source       sql.NullInt64
		stateAt              sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&z.Controller, &z.Zone, &z.Name, &power, &volume, &source, &stateAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if power.Valid {
		v := power.Bool
		z.State.Power = &v
	}
	if volume.Valid {
		v := int(volume.Int64)
		z.State.Volume = &v
	}
	if source.Valid {
		v := int(source.Int64)
		z.State.Source = &v
	}
	if stateAt.Valid {
		t := parseTime(stateAt.String)
		z.State.UpdatedAt = &t
	}
	z.CreatedAt = parseTime(createdAt)
	z.UpdatedAt = parseTime(updatedAt)
	return &z, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime returns the zero time for malformed values.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
