// Package audit records operator commands sent to the bus and provides
// paged queries over that history.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Command results.
const (
	ResultOK          = "ok"
	ResultUnreachable = "unreachable"
	ResultError       = "error"
)

// Entry is one command log row.
type Entry struct {
	ID         int64     `json:"id"`
	CommandID  string    `json:"command_id"`
	Command    string    `json:"command"`
	Controller int       `json:"controller"`
	Zone       int       `json:"zone"`
	Value      int       `json:"value"`
	Source     string    `json:"source"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter controls which entries List returns. Zero values match everything.
type Filter struct {
	Command    string
	Controller int
	Zone       int
	Source     string
	Limit      int // default 50, max 200
	Offset     int
}

// ListResult contains a page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the command log operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the command log in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry and sets its ID. CreatedAt is set if zero.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (command_id, command, controller, zone, value, source, result, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CommandID, e.Command, e.Controller, e.Zone, e.Value,
		e.Source, e.Result, nullableString(e.Error),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting command log entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading command log id: %w", err)
	}
	e.ID = id
	return nil
}

// nullableString returns nil for empty strings so the column stays NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.Controller > 0 {
		conditions = append(conditions, "controller = ?")
		args = append(args, filter.Controller)
	}
	if filter.Zone > 0 {
		conditions = append(conditions, "zone = ?")
		args = append(args, filter.Zone)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_log %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, command_id, command, controller, zone, value, source, result, error, created_at
		 FROM command_log %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var errText sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.CommandID, &e.Command, &e.Controller, &e.Zone,
			&e.Value, &e.Source, &e.Result, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log entry: %w", err)
		}
		e.Error = errText.String

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
