// Package store persists Annika task documents, the Planner ID mapping
// table, and the ETag cache in Redis, and carries change signals over
// Redis pub/sub.
//
// The one hard invariant is the mapping pair: the annika→planner and
// planner→annika keys are always written and deleted together. Leaving one
// half behind makes the sync engine treat a task as simultaneously synced
// and unsynced.
package store

import (
	"context"
	"errors"

	"github.com/annikahq/planner-bridge/internal/task"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence surface the sync engine depends on.
// Implemented by Redis for production and Memory for tests.
type Store interface {
	// ===== Task documents =====

	// GetTask loads a task document by Annika ID.
	GetTask(ctx context.Context, id string) (*task.Task, error)

	// PutTask stores a task document.
	PutTask(ctx context.Context, t *task.Task) error

	// DeleteTask removes a task document. Missing tasks are not an error.
	DeleteTask(ctx context.Context, id string) error

	// ListTaskIDs returns all Annika task IDs, for sweep passes.
	ListTaskIDs(ctx context.Context) ([]string, error)

	// ===== ID mapping pairs =====

	// PutMapping writes both halves of the annika↔planner pair atomically.
	PutMapping(ctx context.Context, annikaID, plannerID string) error

	// DeleteMapping removes both halves atomically. Missing halves are
	// not an error (idempotent).
	DeleteMapping(ctx context.Context, annikaID, plannerID string) error

	// GetPlannerID resolves an Annika ID to its Planner ID.
	GetPlannerID(ctx context.Context, annikaID string) (string, error)

	// GetAnnikaID resolves a Planner ID back to its Annika ID.
	GetAnnikaID(ctx context.Context, plannerID string) (string, error)

	// ListMappedPlannerIDs returns all Planner IDs with a mapping entry,
	// for orphan detection during sweeps.
	ListMappedPlannerIDs(ctx context.Context) ([]string, error)

	// ===== ETag cache =====

	// GetETag returns the last observed ETag for a Planner task.
	GetETag(ctx context.Context, plannerID string) (string, error)

	// PutETag records a freshly observed ETag.
	PutETag(ctx context.Context, plannerID, etag string) error

	// DeleteETag drops the cache entry, typically alongside DeleteMapping.
	DeleteETag(ctx context.Context, plannerID string) error

	// ===== Change signals =====

	// PublishChange announces a local task change on the update channel.
	PublishChange(ctx context.Context, sig *task.Signal) error

	// Subscribe delivers change signals until ctx is canceled. The
	// returned channel is closed on cancellation.
	Subscribe(ctx context.Context) (<-chan *task.Signal, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
