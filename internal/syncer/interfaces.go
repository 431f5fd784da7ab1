package syncer

import (
	"context"

	"github.com/annikahq/planner-bridge/internal/graph"
	"github.com/annikahq/planner-bridge/internal/journal"
)

// GraphClient is the Planner surface the engine consumes. Satisfied by
// *graph.Client; tests substitute a scripted fake.
type GraphClient interface {
	GetTask(ctx context.Context, taskID, etag string) (*graph.PlannerTask, error)
	CreateTask(ctx context.Context, payload *graph.TaskPayload) (*graph.PlannerTask, error)
	UpdateTask(ctx context.Context, taskID, etag string, payload *graph.TaskPayload) (*graph.PlannerTask, error)
	DeleteTask(ctx context.Context, taskID, etag string) error
	GetTaskDetails(ctx context.Context, taskID string) (*graph.PlannerTaskDetails, error)
	UpdateTaskDetails(ctx context.Context, taskID, etag string, payload *graph.DetailsPayload) error
}

// TokenControl lets the engine reset token-preference memory at the start
// of a discovery sweep and invalidate cached tokens after an auth
// rejection. Satisfied by *auth.Preferrer.
type TokenControl interface {
	Reset()
	Invalidate()
}

// Recorder receives journal entries. Satisfied by *journal.Journal; nil
// disables journaling.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Event is a live sync notification for the dashboard.
type Event struct {
	TaskID    string `json:"task_id"`
	PlannerID string `json:"planner_id,omitempty"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
}

// EventSink receives live events. Satisfied by *dashboard.Server; nil
// disables broadcasting.
type EventSink interface {
	SyncEvent(ev Event)
	SweepComplete(report *Report)
}
