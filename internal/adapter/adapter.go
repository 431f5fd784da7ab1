// Package adapter converts between the Annika task document and the
// Microsoft Planner task representation.
//
// The adapter is pure mapping logic: it performs no network or storage I/O
// beyond the injected identity lookup. Malformed fields are treated as
// absent rather than failing the whole conversion, so partial data never
// blocks sync of the rest of a task.
package adapter

import (
	"context"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/annikahq/planner-bridge/internal/graph"
	"github.com/annikahq/planner-bridge/internal/task"
)

// IdentityResolver maps a human-readable assignee to a directory object
// ID. Resolution is best-effort: a failed lookup leaves the task
// unassigned rather than failing the conversion.
type IdentityResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Adapter holds the conversion configuration.
type Adapter struct {
	resolver IdentityResolver // nil disables assignment resolution
	logger   *log.Logger
}

// New creates an Adapter. resolver may be nil; logger nil defaults to stderr.
func New(resolver IdentityResolver, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.New(os.Stderr, "[adapter] ", log.LstdFlags)
	}
	return &Adapter{resolver: resolver, logger: logger}
}

// LocalToRemote builds a Planner-shaped payload from an Annika task.
//
// current, when non-nil, is the latest remote snapshot; it supplies the
// remote start date for schedule-bounds checks on partial payloads that
// carry a due date but no local start.
func (a *Adapter) LocalToRemote(ctx context.Context, t *task.Task, current *graph.PlannerTask) *graph.TaskPayload {
	payload := &graph.TaskPayload{
		Title: titleFor(t),
	}

	pct := percentToRemote(t.PercentComplete)
	payload.PercentComplete = &pct

	if t.Priority != 0 {
		prio := clampInt(t.Priority, 0, 10)
		payload.Priority = &prio
	}

	start, due := scheduleBounds(t.StartDate, t.DueDate, remoteStart(current))
	if start != nil {
		s := formatGraphTime(*start)
		payload.StartDateTime = &s
	}
	if due != nil {
		d := formatGraphTime(*due)
		payload.DueDateTime = &d
	}

	if t.AssignedTo != "" && a.resolver != nil {
		if userID, err := a.resolver.Resolve(ctx, t.AssignedTo); err != nil {
			// Best-effort: an unresolved name leaves assignments empty.
			a.logger.Printf("Warning: could not resolve assignee %q for %s: %v", t.AssignedTo, t.ID, err)
		} else if userID != "" {
			assignment := graph.NewAssignment()
			payload.Assignments = map[string]*graph.Assignment{userID: &assignment}
		}
	}

	return payload
}

// RemoteToLocal builds an Annika task from a Planner task and its optional
// details sub-resource. Unknown remote fields were already dropped by the
// JSON decode; malformed dates are treated as absent.
func (a *Adapter) RemoteToLocal(pt *graph.PlannerTask, details *graph.PlannerTaskDetails) *task.Task {
	t := &task.Task{
		ID:              "", // caller fills from the ID mapping
		Title:           pt.Title,
		PercentComplete: percentToLocal(pt.PercentComplete),
		Status:          statusFromPercent(pt.PercentComplete),
		Priority:        pt.Priority,
		PlannerID:       pt.ID,
		PlannerETag:     pt.ETag,
	}

	if ts, ok := parseGraphTime(pt.StartDateTime); ok {
		t.StartDate = &ts
	}
	if ts, ok := parseGraphTime(pt.DueDateTime); ok {
		t.DueDate = &ts
	}

	// Keep due >= start on download too; human edits in the Planner UI can
	// leave inverted ranges when only one side changed.
	if t.StartDate != nil && t.DueDate != nil && t.DueDate.Before(*t.StartDate) {
		due := *t.StartDate
		t.DueDate = &due
	}

	for userID := range pt.Assignments {
		t.AssignedTo = userID
		break // Planner allows several; Annika tracks one
	}

	if details != nil {
		notes, reasoning, output := SplitNotes(details.Description)
		t.Notes = notes
		t.Reasoning = reasoning
		t.Output = output
	}

	t.SetDefaults()
	return t
}

// ChecklistFor builds the checklist patch mirroring a task's subtasks.
// Map keys are the subtask IDs so successive syncs address the same
// remote items; an entry for a subtask the parent no longer references
// is removed with a null value, the Graph convention for map deletions.
// A nil return means the remote checklist already matches.
func (a *Adapter) ChecklistFor(subtasks []*task.Task, existing map[string]graph.ChecklistItem) map[string]*graph.ChecklistItem {
	patch := make(map[string]*graph.ChecklistItem)
	keep := make(map[string]bool, len(subtasks))

	for _, st := range subtasks {
		keep[st.ID] = true
		item := graph.NewChecklistItem(titleFor(st), st.Status == task.StatusCompleted)
		if cur, ok := existing[st.ID]; ok {
			if cur.Title == item.Title && cur.IsChecked == item.IsChecked {
				continue
			}
			item.OrderHint = "" // keep the remote ordering on update
		}
		patch[st.ID] = &item
	}

	for key := range existing {
		if !keep[key] {
			patch[key] = nil
		}
	}

	if len(patch) == 0 {
		return nil
	}
	return patch
}

// titleFor returns the upload title. Planner rejects empty titles; the
// stable ID is substituted so the task stays traceable.
func titleFor(t *task.Task) string {
	if strings.TrimSpace(t.Title) == "" {
		return t.ID
	}
	return t.Title
}

// percentToRemote converts a 0.0–1.0 fraction to Planner's 0–100 integer.
// Out-of-range values are clamped.
func percentToRemote(f float64) int {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return int(math.Round(f * 100))
}

// percentToLocal is the inverse of percentToRemote.
func percentToLocal(pct int) float64 {
	return float64(clampInt(pct, 0, 100)) / 100
}

// statusFromPercent derives the Annika status from Planner progress.
func statusFromPercent(pct int) task.Status {
	switch {
	case pct >= 100:
		return task.StatusCompleted
	case pct > 0:
		return task.StatusInProgress
	default:
		return task.StatusNotStarted
	}
}

// scheduleBounds enforces due >= start. If the local start is missing,
// the due date is bounded against the remote start instead, supporting
// partial-update payloads that don't carry the full record.
func scheduleBounds(start, due, remoteStart *time.Time) (*time.Time, *time.Time) {
	if due == nil {
		return start, nil
	}

	bound := start
	if bound == nil {
		bound = remoteStart
	}
	if bound != nil && due.Before(*bound) {
		// Planner rejects inverted ranges; pull the due date forward.
		corrected := *bound
		return start, &corrected
	}
	return start, due
}

// remoteStart extracts the parsed start date from a remote snapshot.
func remoteStart(current *graph.PlannerTask) *time.Time {
	if current == nil {
		return nil
	}
	if ts, ok := parseGraphTime(current.StartDateTime); ok {
		return &ts
	}
	return nil
}

// clampInt bounds v to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// graphTimeLayouts are accepted inbound date formats. Graph emits RFC3339
// with fractional seconds; humans and older payloads sometimes produce
// bare dates.
var graphTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// parseGraphTime parses a Graph timestamp. A malformed value reports
// !ok; the field is treated as absent, not as a task-level failure.
func parseGraphTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range graphTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// formatGraphTime renders a timestamp the way Graph expects.
func formatGraphTime(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05Z")
}
