// Package task defines the Annika task document.
package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the Annika task lifecycle state.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is the Annika representation of a work item: a flat JSON document
// keyed by a stable ID that is never reused. Fields are last-write-wins;
// UpdatedAt and LastSyncedAt drive the sync engine's change detection.
type Task struct {
	// ===== Core identification =====
	ID string `json:"id"`

	// ===== Content =====
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`

	// ===== Progress =====
	Status          Status  `json:"status"`
	PercentComplete float64 `json:"percent_complete"` // 0.0–1.0
	Priority        int     `json:"priority"`

	// ===== Scheduling =====
	StartDate *time.Time `json:"start_date,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`

	// ===== Assignment =====
	AssignedTo string `json:"assigned_to,omitempty"` // display name or directory object ID

	// ===== Planner linkage =====
	PlannerID   string `json:"planner_id,omitempty"`
	PlannerETag string `json:"planner_etag,omitempty"` // last-seen remote ETag

	// ===== Structure =====
	SubtaskIDs []string `json:"subtask_ids,omitempty"`

	// ===== Agent output (folded into Planner notes on upload) =====
	Reasoning string `json:"reasoning,omitempty"`
	Output    string `json:"output,omitempty"`

	// ===== Timestamps =====
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastSyncedAt time.Time `json:"last_synced_at,omitempty"`
}

// dateLayouts are the accepted formats for the schedule fields. Agent
// writers emit RFC3339; humans and older documents sometimes produce
// bare dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// parseDate parses a schedule field. A malformed value returns nil: the
// field is treated as absent, never as a document-level failure.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			u := ts.UTC()
			return &u
		}
	}
	return nil
}

// UnmarshalJSON decodes the stored document, parsing the schedule fields
// tolerantly. Task documents are written by several producers; a bad
// date string in one field must not make the whole task unreadable.
func (t *Task) UnmarshalJSON(data []byte) error {
	type alias Task
	aux := struct {
		*alias
		StartDate string `json:"start_date,omitempty"`
		DueDate   string `json:"due_date,omitempty"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	t.StartDate = parseDate(aux.StartDate)
	t.DueDate = parseDate(aux.DueDate)
	return nil
}

// Validate checks the fields the sync engine depends on. Title may be
// empty here; the adapter substitutes the ID on upload.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if t.PercentComplete < 0 || t.PercentComplete > 1 {
		return fmt.Errorf("percent_complete must be in [0,1] (got %g)", t.PercentComplete)
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusNotStarted
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
}

// Touch sets UpdatedAt to the current time. Call whenever a field changes
// locally so the next reconciliation pass sees the task as dirty.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

// Dirty reports whether the task has local modifications that have not
// been uploaded yet.
func (t *Task) Dirty() bool {
	return t.LastSyncedAt.IsZero() || t.UpdatedAt.After(t.LastSyncedAt)
}

// Marshal serializes the task as the JSON document stored in Redis.
func (t *Task) Marshal() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task %s: %w", t.ID, err)
	}
	return data, nil
}

// Unmarshal parses a stored JSON document into a Task and validates it.
func Unmarshal(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse task document: %w", err)
	}
	t.SetDefaults()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task document: %w", err)
	}
	return &t, nil
}

// ChangeAction identifies the kind of local change carried by a Signal.
type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// Signal is a change notification published on the task update channel.
// Both local edits and webhook-origin remote edits are funneled through
// this one shape so the sync engine is agnostic to the trigger source.
type Signal struct {
	Action ChangeAction `json:"action"`
	TaskID string       `json:"task_id"`
	Task   *Task        `json:"task,omitempty"`
}
