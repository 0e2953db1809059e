package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

// DBLogger stores audit events in the audit_events table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger. The table is created by
// the storage migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

const insertEventQuery = `
	INSERT INTO audit_events (
		id, occurred_at, event_type, status,
		user_id, email, role, resource_id,
		ip_address, user_agent, request_id, method, path,
		message, metadata
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// Log implements Logger
func (l *DBLogger) Log(ctx context.Context, e *Event) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}

	_, err := l.db.ExecContext(ctx, insertEventQuery,
		e.ID, e.Timestamp, string(e.Type), string(e.Status),
		nullString(e.UserID), nullString(e.Email), nullString(string(e.Role)), nullString(e.ResourceID),
		nullString(e.IPAddress), nullString(e.UserAgent), nullString(e.RequestID), nullString(e.Method), nullString(e.Path),
		nullString(e.Message), metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the connection pool belongs to the caller
func (l *DBLogger) Close() error {
	return nil
}

// SearchFilter narrows Search results. Zero values match everything.
type SearchFilter struct {
	UserID    string
	EventType EventType
	Since     time.Time
	Limit     int
}

// Search returns matching events, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.EventType != "" {
		add("event_type = $%d", string(filter.EventType))
	}
	if !filter.Since.IsZero() {
		add("occurred_at >= $%d", filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, occurred_at, event_type, status,
		COALESCE(user_id, ''), COALESCE(email, ''), COALESCE(role, ''), COALESCE(resource_id, ''),
		COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''),
		COALESCE(method, ''), COALESCE(path, ''), COALESCE(message, ''), metadata
		FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT %d", limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e        Event
			eType    string
			status   string
			role     string
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &eType, &status,
			&e.UserID, &e.Email, &role, &e.ResourceID,
			&e.IPAddress, &e.UserAgent, &e.RequestID,
			&e.Method, &e.Path, &e.Message, &metadata); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Type = EventType(eType)
		e.Status = EventStatus(status)
		e.Role = auth.Role(role)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
