// Package graph is a thin client for the Microsoft Planner task resources
// of the Graph REST API. It exposes ETag-aware conditional reads and
// precondition-guarded writes; deciding what to sync is the caller's job.
package graph

import "encoding/json"

// PlannerTask mirrors the Graph plannerTask resource. Unknown remote fields
// are dropped on decode, which keeps the client forward-compatible with
// Graph API additions.
type PlannerTask struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	PercentComplete int                   `json:"percentComplete"` // 0–100
	Priority        int                   `json:"priority"`
	StartDateTime   string                `json:"startDateTime,omitempty"`
	DueDateTime     string                `json:"dueDateTime,omitempty"`
	PlanID          string                `json:"planId,omitempty"`
	BucketID        string                `json:"bucketId,omitempty"`
	Assignments     map[string]Assignment `json:"assignments,omitempty"`
	ETag            string                `json:"@odata.etag,omitempty"`
	CreatedDateTime string                `json:"createdDateTime,omitempty"`
}

// Assignment is the per-user metadata inside a plannerTask's assignments map.
type Assignment struct {
	ODataType  string `json:"@odata.type,omitempty"`
	OrderHint  string `json:"orderHint,omitempty"`
	AssignedBy string `json:"assignedBy,omitempty"`
}

// NewAssignment returns the boilerplate Graph expects when adding a user
// to a task's assignments map.
func NewAssignment() Assignment {
	return Assignment{
		ODataType: "#microsoft.graph.plannerAssignment",
		OrderHint: " !",
	}
}

// PlannerTaskDetails mirrors the plannerTaskDetails sub-resource, which
// carries the free-text description and checklist.
type PlannerTaskDetails struct {
	ID          string                   `json:"id,omitempty"`
	Description string                   `json:"description,omitempty"`
	Checklist   map[string]ChecklistItem `json:"checklist,omitempty"`
	ETag        string                   `json:"@odata.etag,omitempty"`
}

// ChecklistItem is one entry in a task's checklist map.
type ChecklistItem struct {
	ODataType string `json:"@odata.type,omitempty"`
	Title     string `json:"title"`
	IsChecked bool   `json:"isChecked"`
	OrderHint string `json:"orderHint,omitempty"`
}

// NewChecklistItem returns the boilerplate Graph expects when adding an
// entry to a task's checklist map.
func NewChecklistItem(title string, checked bool) ChecklistItem {
	return ChecklistItem{
		ODataType: "#microsoft.graph.plannerChecklistItem",
		Title:     title,
		IsChecked: checked,
		OrderHint: " !",
	}
}

// TaskPayload is the write shape for POST/PATCH on task resources. Nil
// pointer fields are omitted so a PATCH only touches what changed;
// Planner merges partial payloads server-side.
type TaskPayload struct {
	PlanID          string                 `json:"planId,omitempty"`
	BucketID        string                 `json:"bucketId,omitempty"`
	Title           string                 `json:"title,omitempty"`
	PercentComplete *int                   `json:"percentComplete,omitempty"`
	Priority        *int                   `json:"priority,omitempty"`
	StartDateTime   *string                `json:"startDateTime,omitempty"`
	DueDateTime     *string                `json:"dueDateTime,omitempty"`
	Assignments     map[string]*Assignment `json:"assignments,omitempty"`
}

// DetailsPayload is the write shape for PATCH on the details sub-resource.
type DetailsPayload struct {
	Description *string                   `json:"description,omitempty"`
	Checklist   map[string]*ChecklistItem `json:"checklist,omitempty"`
}

// Encode marshals the payload, surfacing encoding problems early rather
// than inside the HTTP round trip.
func (p *TaskPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}
