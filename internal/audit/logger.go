// Package audit persists supervisor lifecycle events to a sqlite database so
// that process launches, terminations, and unexpected exits can be inspected
// after the fact.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// EventType represents the type of lifecycle event
type EventType string

const (
	EventLaunch    EventType = "launch"
	EventReady     EventType = "ready"
	EventTerminate EventType = "terminate"
	EventKill      EventType = "kill"
	EventExit      EventType = "exit"
)

// Event represents a lifecycle log entry in the database. Seq is assigned by
// the database on insert and is the insertion-order tiebreaker: timestamps
// have millisecond resolution, and terminate/exit pairs routinely land in the
// same millisecond.
type Event struct {
	Seq       int64  `db:"seq"`
	ID        string `db:"id"`
	EventType string `db:"event_type"`
	Timestamp int64  `db:"timestamp"`
	Role      string `db:"role"`
	PID       int    `db:"pid"`
	Detail    string `db:"detail"`
}

// Logger handles lifecycle logging for supervised backend processes
type Logger struct {
	db *sqlx.DB
}

// NewLogger creates a new lifecycle logger instance
func NewLogger(db *sqlx.DB) (*Logger, error) {
	if err := DBInit(db); err != nil {
		return nil, err
	}
	return &Logger{
		db: db,
	}, nil
}

// Open connects to the sqlite database at path and initializes the schema.
func Open(path string) (*Logger, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database %s: %w", path, err)
	}
	logger, err := NewLogger(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return logger, nil
}

// DBInit initializes the lifecycle events database table
func DBInit(db *sqlx.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS process_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		role TEXT NOT NULL,
		pid INTEGER,
		detail TEXT
	)
	`)
	if err != nil {
		return err
	}

	// Create indexes for common queries
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_process_events_timestamp ON process_events(timestamp)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_process_events_role ON process_events(role)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_process_events_event_type ON process_events(event_type)`)
	return err
}

// Record inserts a lifecycle event for the given role and PID.
func (l *Logger) Record(eventType EventType, role string, pid int, detail string) error {
	event := &Event{
		ID:        uuid.New().String(),
		EventType: string(eventType),
		Timestamp: time.Now().UnixMilli(),
		Role:      role,
		PID:       pid,
		Detail:    detail,
	}
	_, err := l.db.Exec(`
	INSERT INTO process_events (id, event_type, timestamp, role, pid, detail)
	VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.EventType, event.Timestamp, event.Role, event.PID, event.Detail)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// EventsByRole returns all events for the given role in insertion order,
// oldest first.
func (l *Logger) EventsByRole(role string) ([]Event, error) {
	var events []Event
	err := l.db.Select(&events, `
	SELECT seq, id, event_type, timestamp, role, pid, detail
	FROM process_events WHERE role = ? ORDER BY seq ASC`, role)
	return events, err
}

// EventsByType returns all events of the given type in insertion order,
// oldest first.
func (l *Logger) EventsByType(eventType EventType) ([]Event, error) {
	var events []Event
	err := l.db.Select(&events, `
	SELECT seq, id, event_type, timestamp, role, pid, detail
	FROM process_events WHERE event_type = ? ORDER BY seq ASC`, string(eventType))
	return events, err
}

// RecentEvents returns the most recent events up to limit, newest first.
func (l *Logger) RecentEvents(limit int) ([]Event, error) {
	var events []Event
	err := l.db.Select(&events, `
	SELECT seq, id, event_type, timestamp, role, pid, detail
	FROM process_events ORDER BY seq DESC LIMIT ?`, limit)
	return events, err
}

// Close closes the underlying database connection.
func (l *Logger) Close() error {
	return l.db.Close()
}
