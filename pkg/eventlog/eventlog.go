// Package eventlog persists and queries the assistant's append-only
// SQLite event log. The processing loop writes through Writer; the
// logs command and the dashboard read through Reader without blocking
// the writer, via WAL.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"codeme/pkg/protocol"
)

// Writer appends lifecycle events to the runtime database.
type Writer struct {
	db *sql.DB
}

// NewWriter wraps an open database handle. The schema must already be
// applied.
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// Append records one event. Timestamps come from SQLite so readers and
// the writer agree on ordering.
func (w *Writer) Append(ctx context.Context, eventType string, source protocol.Source, planID, project, payload string) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO events (type, source, plan_id, project, payload) VALUES (?, ?, ?, ?, ?)`,
		eventType, string(source), planID, project, payload)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// QueryOpts filters event queries.
type QueryOpts struct {
	// EventType restricts to one event type.
	EventType string

	// PlanID restricts to one plan's lifecycle.
	PlanID string

	// Project restricts to events tagged with a project.
	Project string

	// After keeps events created at or after this time.
	After *time.Time

	// Limit caps the result count, newest first. 0 means no cap.
	Limit int
}

// Reader provides read-only access to an existing event log.
type Reader struct {
	db *sql.DB
}

// NewReader opens the database read-only. Opening a log that does not
// exist yet is an error rather than an implicit create.
func NewReader(dbPath string) (*Reader, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("event log not found: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping event log: %w", err)
	}
	return &Reader{db: db}, nil
}

// Close releases the database connection. Safe to call twice.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Query returns events matching opts, newest first.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]protocol.Event, error) {
	query, args := buildQuery(opts)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []protocol.Event
	for rows.Next() {
		var e protocol.Event
		var planID, project, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &planID, &project, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.PlanID = planID.String
		e.Project = project.String
		e.Payload = payload.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := "SELECT id, type, source, plan_id, project, payload, created_at FROM events"
	if opts.EventType != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.EventType)
	}
	if opts.PlanID != "" {
		conditions = append(conditions, "plan_id = ?")
		args = append(args, opts.PlanID)
	}
	if opts.Project != "" {
		conditions = append(conditions, "project = ?")
		args = append(args, opts.Project)
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.UTC().Format("2006-01-02 15:04:05"))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	return query, args
}
