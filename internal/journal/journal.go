// Package journal records reconciliation outcomes in a local SQLite
// database.
//
// Every sync decision (upload, download, delete, skip, conflict) is
// appended as one row, giving operators an audit trail (`planner-bridge
// history`) and the dashboard its statistics. The journal is advisory:
// a journal write failure is logged by callers, never allowed to abort
// a sync operation.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Action is the reconciliation decision being journaled.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionDelete   Action = "delete"
	ActionSkip     Action = "skip"
	ActionConflict Action = "conflict"
)

// Outcome is how the action ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeError   Outcome = "error"
	OutcomeDropped Outcome = "dropped" // coalesced behind an in-flight op
)

// Entry is one journaled reconciliation event.
type Entry struct {
	ID        string    `json:"id"` // ULID, sortable by time
	TaskID    string    `json:"task_id"`
	PlannerID string    `json:"planner_id,omitempty"`
	Action    Action    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	ETag      string    `json:"etag,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Stats aggregates journal counts for the status command and dashboard.
type Stats struct {
	Total     int            `json:"total"`
	ByAction  map[Action]int `json:"by_action"`
	ByOutcome map[Outcome]int `json:"by_outcome"`
}

// Journal wraps the SQLite connection.
type Journal struct {
	conn *sql.DB
	path string

	// entMu guards entropy; MonotonicEntropy is not safe for
	// concurrent use and Record runs from many goroutines.
	entMu   sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open creates or opens the journal database at path.
//
// The database runs in WAL mode with a busy timeout so the history CLI
// can read while the sync daemon writes. The caller must Close().
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	j := &Journal{
		conn:    conn,
		path:    path,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := j.initSchema(context.Background()); err != nil {
		_ = j.Close()
		return nil, err
	}

	return j, nil
}

// Close closes the journal, checkpointing the WAL first.
func (j *Journal) Close() error {
	if j.conn == nil {
		return nil
	}
	if _, err := j.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint journal WAL: %v\n", err)
	}
	if err := j.conn.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	j.conn = nil
	return nil
}

// initSchema creates the entries table. Idempotent.
func (j *Journal) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		planner_id TEXT,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		etag TEXT,
		detail TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_task ON entries(task_id);
	CREATE INDEX IF NOT EXISTS idx_entries_at ON entries(at);
	CREATE INDEX IF NOT EXISTS idx_entries_action ON entries(action);
	`

	if _, err := j.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return nil
}

// Record appends one entry. The ID and timestamp are filled in if empty.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		j.entMu.Lock()
		e.ID = ulid.MustNew(ulid.Timestamp(time.Now()), j.entropy).String()
		j.entMu.Unlock()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	query := `
	INSERT INTO entries (id, task_id, planner_id, action, outcome, etag, detail, at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.conn.ExecContext(ctx, query,
		e.ID, e.TaskID, e.PlannerID, string(e.Action), string(e.Outcome),
		e.ETag, e.Detail, e.At.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record journal entry for %s: %w", e.TaskID, err)
	}
	return nil
}

// Recent returns the newest n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	query := `
	SELECT id, task_id, planner_id, action, outcome, etag, detail, at
	FROM entries ORDER BY id DESC LIMIT ?
	`
	return j.query(ctx, query, n)
}

// ByTask returns the newest n entries for one task, newest first.
func (j *Journal) ByTask(ctx context.Context, taskID string, n int) ([]Entry, error) {
	query := `
	SELECT id, task_id, planner_id, action, outcome, etag, detail, at
	FROM entries WHERE task_id = ? ORDER BY id DESC LIMIT ?
	`
	return j.query(ctx, query, taskID, n)
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.PlannerID, (*string)(&e.Action),
			(*string)(&e.Outcome), &e.ETag, &e.Detail, &at); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if ts, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			e.At = ts
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal rows: %w", err)
	}
	return entries, nil
}

// GetStats aggregates counts across the whole journal.
func (j *Journal) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByAction:  make(map[Action]int),
		ByOutcome: make(map[Outcome]int),
	}

	rows, err := j.conn.QueryContext(ctx,
		`SELECT action, outcome, COUNT(*) FROM entries GROUP BY action, outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action, outcome string
		var count int
		if err := rows.Scan(&action, &outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.Total += count
		stats.ByAction[Action(action)] += count
		stats.ByOutcome[Outcome(outcome)] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats rows: %w", err)
	}
	return stats, nil
}
