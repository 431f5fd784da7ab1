// Package syncer reconciles the Annika task store with Microsoft Planner.
//
// The engine consumes change signals (local edits published on the update
// channel, plus periodic sweeps that catch webhook-origin remote edits)
// and decides per task whether to upload, download, delete, or skip.
// Conditional fetches against the cached ETag keep unchanged tasks off
// the wire; writes carry an If-Match precondition so a concurrent edit
// surfaces as a conflict instead of a silent overwrite.
//
// Per task ID the flow is IDLE → CHECKING → {UPLOADING | DOWNLOADING |
// DELETING | SKIPPED} → IDLE, with an in-flight set guaranteeing at most
// one concurrent operation per ID. Failures are scoped to the task that
// hit them; the loop never stops for other IDs.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/annikahq/planner-bridge/internal/adapter"
	"github.com/annikahq/planner-bridge/internal/graph"
	"github.com/annikahq/planner-bridge/internal/journal"
	"github.com/annikahq/planner-bridge/internal/store"
	"github.com/annikahq/planner-bridge/internal/task"
)

// Defaults for operational knobs.
const (
	defaultOpTimeout     = 30 * time.Second
	defaultSweepInterval = 5 * time.Minute
)

// Config wires the engine's collaborators.
type Config struct {
	Store   store.Store
	Graph   GraphClient
	Adapter *adapter.Adapter

	// Tokens resets preference memory per sweep; nil skips token control.
	Tokens TokenControl

	// Journal records outcomes; nil disables journaling.
	Journal Recorder

	// Events receives live notifications; nil disables broadcasting.
	Events EventSink

	// PlanID and BucketID place newly created Planner tasks.
	PlanID   string
	BucketID string

	// OpTimeout bounds each per-task operation (default 30s).
	OpTimeout time.Duration

	// SweepInterval is how often Run performs a full sweep (default 5m).
	SweepInterval time.Duration

	// Logger for engine activity. Nil uses a stderr logger.
	Logger *log.Logger
}

// Report summarizes one sweep.
type Report struct {
	Duration  time.Duration `json:"duration"`
	Scanned   int           `json:"scanned"`
	Uploads   int           `json:"uploads"`
	Downloads int           `json:"downloads"`
	Deletes   int           `json:"deletes"`
	Skips     int           `json:"skips"`
	Conflicts int           `json:"conflicts"`
	Errors    int           `json:"errors"`
	Coalesced int64         `json:"coalesced"`
}

// counters accumulate across the engine lifetime; reports are deltas.
type counters struct {
	uploads   int
	downloads int
	deletes   int
	skips     int
	conflicts int
	errors    int
}

// Engine is the change detector and reconciliation loop.
type Engine struct {
	store   store.Store
	graph   GraphClient
	adapter *adapter.Adapter
	tokens  TokenControl
	journal Recorder
	events  EventSink

	planID   string
	bucketID string

	opTimeout     time.Duration
	sweepInterval time.Duration
	logger        *log.Logger

	inflight   *inflightSet
	intervalCh chan time.Duration

	statsMu sync.Mutex
	stats   counters

	wg sync.WaitGroup
}

// NewEngine creates an Engine from cfg. Store, Graph, and Adapter are
// required; everything else has defaults or is optional.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Graph == nil {
		return nil, fmt.Errorf("graph client is required")
	}
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}

	opTimeout := cfg.OpTimeout
	if opTimeout == 0 {
		opTimeout = defaultOpTimeout
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval == 0 {
		sweepInterval = defaultSweepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}

	return &Engine{
		store:         cfg.Store,
		graph:         cfg.Graph,
		adapter:       cfg.Adapter,
		tokens:        cfg.Tokens,
		journal:       cfg.Journal,
		events:        cfg.Events,
		planID:        cfg.PlanID,
		bucketID:      cfg.BucketID,
		opTimeout:     opTimeout,
		sweepInterval: sweepInterval,
		logger:        logger,
		inflight:      newInflightSet(),
		intervalCh:    make(chan time.Duration, 1),
	}, nil
}

// SetEvents installs the event sink. Must be called before Run.
func (e *Engine) SetEvents(sink EventSink) {
	e.events = sink
}

// SetSweepInterval applies a new sweep interval to a running loop, used
// for config hot-reload. A zero or negative value is ignored.
func (e *Engine) SetSweepInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case e.intervalCh <- d:
	default:
	}
}

// Run is the watch loop: an initial sweep, then change signals from the
// update channel plus periodic sweeps, until ctx is canceled. In-flight
// operations are drained on shutdown; a cycle abandoned mid-flight leaves
// state the next sweep re-reconciles.
func (e *Engine) Run(ctx context.Context) error {
	signals, err := e.store.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to change signals: %w", err)
	}

	if _, err := e.RunOnce(ctx); err != nil {
		return fmt.Errorf("initial sweep failed: %w", err)
	}

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	e.logger.Printf("Watching for changes (sweep every %s)", e.sweepInterval)

	for {
		select {
		case <-ctx.Done():
			e.logger.Println("Shutdown signal received, draining in-flight operations")
			e.wg.Wait()
			return nil

		case sig, ok := <-signals:
			if !ok {
				e.wg.Wait()
				return nil
			}
			if sig.TaskID == "" {
				continue
			}
			e.wg.Add(1)
			go func(id string) {
				defer e.wg.Done()
				e.SyncTask(ctx, id)
			}(sig.TaskID)

		case d := <-e.intervalCh:
			e.sweepInterval = d
			ticker.Reset(d)
			e.logger.Printf("Sweep interval changed to %s", d)

		case <-ticker.C:
			if _, err := e.RunOnce(ctx); err != nil {
				e.logger.Printf("Warning: sweep failed: %v", err)
			}
		}
	}
}

// RunOnce performs one full sweep: every local task plus every mapped
// Planner ID is reconciled. Individual task failures are journaled and
// do not stop the sweep.
func (e *Engine) RunOnce(ctx context.Context) (*Report, error) {
	start := time.Now()

	// A new discovery phase always re-attempts the application token.
	if e.tokens != nil {
		e.tokens.Reset()
	}

	ids, err := e.store.ListTaskIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for sweep: %w", err)
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	// Mapped Planner IDs whose local task is gone still need a pass so
	// the remote side and the mapping pair get cleaned up.
	plannerIDs, err := e.store.ListMappedPlannerIDs(ctx)
	if err != nil {
		e.logger.Printf("Warning: failed to list mappings for orphan scan: %v", err)
	} else {
		for _, pid := range plannerIDs {
			annikaID, merr := e.store.GetAnnikaID(ctx, pid)
			if merr != nil {
				continue
			}
			if _, ok := seen[annikaID]; !ok {
				seen[annikaID] = struct{}{}
				ids = append(ids, annikaID)
			}
		}
	}

	before := e.snapshot()
	coalescedBefore := e.inflight.coalescedCount()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(taskID string) {
			defer wg.Done()
			e.SyncTask(ctx, taskID)
		}(id)
	}
	wg.Wait()

	after := e.snapshot()
	report := &Report{
		Duration:  time.Since(start),
		Scanned:   len(ids),
		Uploads:   after.uploads - before.uploads,
		Downloads: after.downloads - before.downloads,
		Deletes:   after.deletes - before.deletes,
		Skips:     after.skips - before.skips,
		Conflicts: after.conflicts - before.conflicts,
		Errors:    after.errors - before.errors,
		Coalesced: e.inflight.coalescedCount() - coalescedBefore,
	}

	e.logger.Printf("Sweep complete: scanned=%d uploads=%d downloads=%d deletes=%d skips=%d conflicts=%d errors=%d (%.2fs)",
		report.Scanned, report.Uploads, report.Downloads, report.Deletes,
		report.Skips, report.Conflicts, report.Errors, report.Duration.Seconds())

	if e.events != nil {
		e.events.SweepComplete(report)
	}
	return report, nil
}

// SyncTask reconciles a single task ID. Concurrent calls for the same ID
// coalesce onto the in-flight operation.
func (e *Engine) SyncTask(ctx context.Context, taskID string) {
	if !e.inflight.tryAcquire(taskID) {
		e.finish(ctx, journal.Entry{
			TaskID:  taskID,
			Action:  journal.ActionSkip,
			Outcome: journal.OutcomeDropped,
			Detail:  "operation already in flight",
		})
		return
	}
	defer e.inflight.release(taskID)

	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	e.reconcile(opCtx, taskID)
}

// reconcile runs the per-task state machine: CHECKING, then exactly one
// of UPLOADING, DOWNLOADING, DELETING, or SKIPPED.
func (e *Engine) reconcile(ctx context.Context, taskID string) {
	t, err := e.store.GetTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		// Local task gone. A surviving mapping means the remote copy
		// still needs deleting.
		plannerID, merr := e.store.GetPlannerID(ctx, taskID)
		if errors.Is(merr, store.ErrNotFound) {
			e.finish(ctx, journal.Entry{TaskID: taskID, Action: journal.ActionSkip,
				Outcome: journal.OutcomeOK, Detail: "no local task, no mapping"})
			return
		}
		if merr != nil {
			e.fail(ctx, taskID, "", journal.ActionDelete, merr)
			return
		}
		e.deleteRemote(ctx, taskID, plannerID)
		return
	}
	if err != nil {
		e.fail(ctx, taskID, "", journal.ActionSkip, err)
		return
	}

	plannerID, err := e.store.GetPlannerID(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		// Never synced. Clean tasks with no mapping have nothing to push
		// (typically a task closed out after its remote copy was deleted).
		if !t.Dirty() {
			e.finish(ctx, journal.Entry{TaskID: taskID, Action: journal.ActionSkip,
				Outcome: journal.OutcomeOK, Detail: "unmapped and unmodified"})
			return
		}
		e.createRemote(ctx, t)
		return
	}
	if err != nil {
		e.fail(ctx, taskID, "", journal.ActionSkip, err)
		return
	}

	cachedETag, err := e.store.GetETag(ctx, plannerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.fail(ctx, taskID, plannerID, journal.ActionSkip, err)
		return
	}

	remote, err := e.graph.GetTask(ctx, plannerID, cachedETag)
	switch {
	case errors.Is(err, graph.ErrNotModified):
		// Remote unchanged since our last observation.
		if t.Dirty() {
			e.updateRemote(ctx, t, plannerID, cachedETag, nil)
			return
		}
		e.finish(ctx, journal.Entry{TaskID: taskID, PlannerID: plannerID,
			Action: journal.ActionSkip, Outcome: journal.OutcomeOK, ETag: cachedETag,
			Detail: "not modified"})
		return

	case errors.Is(err, graph.ErrNotFound):
		// Mapped but gone remotely: authoritative deletion signal.
		e.handleRemoteDeletion(ctx, t, plannerID)
		return

	case errors.Is(err, graph.ErrUnauthorized):
		if e.tokens != nil {
			e.tokens.Invalidate()
		}
		e.fail(ctx, taskID, plannerID, journal.ActionSkip, err)
		return

	case err != nil:
		// Transient or unexpected: abort this cycle, retry on the next
		// signal or sweep. No state mutation.
		e.fail(ctx, taskID, plannerID, journal.ActionSkip, err)
		return
	}

	switch {
	case t.Dirty():
		// Local modification since last sync: local wins, with the fresh
		// remote ETag as the write precondition so a second writer's
		// concurrent change is detected rather than overwritten.
		e.updateRemote(ctx, t, plannerID, remote.ETag, remote)

	case remote.ETag != cachedETag:
		// Remote changed, local did not: pull.
		e.download(ctx, t, plannerID, remote)

	default:
		e.finish(ctx, journal.Entry{TaskID: taskID, PlannerID: plannerID,
			Action: journal.ActionSkip, Outcome: journal.OutcomeOK, ETag: cachedETag})
	}
}

// createRemote materializes a local task in Planner and establishes the
// mapping pair.
func (e *Engine) createRemote(ctx context.Context, t *task.Task) {
	// A stale remote ID on the task means an old mapping may linger;
	// remove the pair before creating a fresh remote task.
	if t.PlannerID != "" {
		if err := e.store.DeleteMapping(ctx, t.ID, t.PlannerID); err != nil {
			e.fail(ctx, t.ID, t.PlannerID, journal.ActionUpload, err)
			return
		}
		if err := e.store.DeleteETag(ctx, t.PlannerID); err != nil {
			e.logger.Printf("Warning: failed to drop stale etag for %s: %v", t.PlannerID, err)
		}
	}

	payload := e.adapter.LocalToRemote(ctx, t, nil)
	payload.PlanID = e.planID
	payload.BucketID = e.bucketID

	created, err := e.graph.CreateTask(ctx, payload)
	if err != nil {
		e.fail(ctx, t.ID, "", journal.ActionUpload, err)
		return
	}

	if err := e.store.PutMapping(ctx, t.ID, created.ID); err != nil {
		e.fail(ctx, t.ID, created.ID, journal.ActionUpload, err)
		return
	}
	if err := e.store.PutETag(ctx, created.ID, created.ETag); err != nil {
		e.fail(ctx, t.ID, created.ID, journal.ActionUpload, err)
		return
	}

	if err := e.syncDetails(ctx, t, created.ID); err != nil {
		e.logger.Printf("Warning: failed to sync details for %s: %v", t.ID, err)
	}

	e.commitLocal(ctx, t, created.ID, created.ETag)
	e.finish(ctx, journal.Entry{TaskID: t.ID, PlannerID: created.ID,
		Action: journal.ActionUpload, Outcome: journal.OutcomeOK, ETag: created.ETag,
		Detail: "created"})
	e.logger.Printf("Created Planner task %s for %s", created.ID, t.ID)
}

// updateRemote pushes local state over the existing remote task. On a
// precondition failure the remote is re-fetched and the write re-evaluated
// once with fresh data; a second failure is journaled as a conflict and
// the task stays pending for the next cycle.
func (e *Engine) updateRemote(ctx context.Context, t *task.Task, plannerID, etag string, remote *graph.PlannerTask) {
	payload := e.adapter.LocalToRemote(ctx, t, remote)

	updated, err := e.graph.UpdateTask(ctx, plannerID, etag, payload)
	if errors.Is(err, graph.ErrPreconditionFailed) {
		fresh, ferr := e.graph.GetTask(ctx, plannerID, "")
		if errors.Is(ferr, graph.ErrNotFound) {
			e.handleRemoteDeletion(ctx, t, plannerID)
			return
		}
		if ferr != nil {
			e.fail(ctx, t.ID, plannerID, journal.ActionUpload, ferr)
			return
		}

		// Re-evaluate against the fresh snapshot, then retry exactly once.
		payload = e.adapter.LocalToRemote(ctx, t, fresh)
		updated, err = e.graph.UpdateTask(ctx, plannerID, fresh.ETag, payload)
		if errors.Is(err, graph.ErrPreconditionFailed) {
			e.finish(ctx, journal.Entry{TaskID: t.ID, PlannerID: plannerID,
				Action: journal.ActionConflict, Outcome: journal.OutcomeError,
				Detail: "concurrent edits, deferred to next cycle"})
			return
		}
	}
	if errors.Is(err, graph.ErrNotFound) {
		e.handleRemoteDeletion(ctx, t, plannerID)
		return
	}
	if err != nil {
		if errors.Is(err, graph.ErrUnauthorized) && e.tokens != nil {
			e.tokens.Invalidate()
		}
		e.fail(ctx, t.ID, plannerID, journal.ActionUpload, err)
		return
	}

	if err := e.store.PutETag(ctx, plannerID, updated.ETag); err != nil {
		e.fail(ctx, t.ID, plannerID, journal.ActionUpload, err)
		return
	}

	if err := e.syncDetails(ctx, t, plannerID); err != nil {
		e.logger.Printf("Warning: failed to sync details for %s: %v", t.ID, err)
	}

	e.commitLocal(ctx, t, plannerID, updated.ETag)
	e.finish(ctx, journal.Entry{TaskID: t.ID, PlannerID: plannerID,
		Action: journal.ActionUpload, Outcome: journal.OutcomeOK, ETag: updated.ETag})
}

// download pulls remote state into the local document.
func (e *Engine) download(ctx context.Context, local *task.Task, plannerID string, remote *graph.PlannerTask) {
	details, err := e.graph.GetTaskDetails(ctx, plannerID)
	if err != nil {
		// Details are additive; sync the core fields without them.
		e.logger.Printf("Warning: failed to fetch details for %s: %v", plannerID, err)
		details = nil
	}

	t := e.adapter.RemoteToLocal(remote, details)
	t.ID = local.ID
	t.CreatedAt = local.CreatedAt
	t.SubtaskIDs = local.SubtaskIDs
	t.PlannerID = plannerID

	now := time.Now().UTC()
	t.UpdatedAt = now
	t.LastSyncedAt = now

	if err := e.store.PutTask(ctx, t); err != nil {
		e.fail(ctx, local.ID, plannerID, journal.ActionDownload, err)
		return
	}
	if err := e.store.PutETag(ctx, plannerID, remote.ETag); err != nil {
		e.fail(ctx, local.ID, plannerID, journal.ActionDownload, err)
		return
	}

	e.finish(ctx, journal.Entry{TaskID: local.ID, PlannerID: plannerID,
		Action: journal.ActionDownload, Outcome: journal.OutcomeOK, ETag: remote.ETag})
	e.logger.Printf("Downloaded Planner task %s into %s", plannerID, local.ID)
}

// handleRemoteDeletion reacts to a 404 on a mapped task: the mapping pair
// and ETag entry go as one unit, and the local task is closed out.
func (e *Engine) handleRemoteDeletion(ctx context.Context, t *task.Task, plannerID string) {
	if err := e.store.DeleteMapping(ctx, t.ID, plannerID); err != nil {
		e.fail(ctx, t.ID, plannerID, journal.ActionDelete, err)
		return
	}
	if err := e.store.DeleteETag(ctx, plannerID); err != nil {
		e.fail(ctx, t.ID, plannerID, journal.ActionDelete, err)
		return
	}

	// Local policy: mark completed rather than deleting, preserving the
	// agent's history. LastSyncedAt is advanced so the task is not
	// re-uploaded as a new Planner task on the next sweep.
	now := time.Now().UTC()
	t.Status = task.StatusCompleted
	t.PercentComplete = 1
	t.PlannerID = ""
	t.PlannerETag = ""
	t.UpdatedAt = now
	t.LastSyncedAt = now

	if err := e.store.PutTask(ctx, t); err != nil {
		e.fail(ctx, t.ID, plannerID, journal.ActionDelete, err)
		return
	}

	e.finish(ctx, journal.Entry{TaskID: t.ID, PlannerID: plannerID,
		Action: journal.ActionDelete, Outcome: journal.OutcomeOK,
		Detail: "remote deleted, local marked completed"})
	e.logger.Printf("Planner task %s was deleted remotely; closed %s", plannerID, t.ID)
}

// deleteRemote propagates a local deletion to Planner and removes the
// mapping pair and ETag entry.
func (e *Engine) deleteRemote(ctx context.Context, taskID, plannerID string) {
	etag, err := e.store.GetETag(ctx, plannerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.fail(ctx, taskID, plannerID, journal.ActionDelete, err)
		return
	}

	if err := e.graph.DeleteTask(ctx, plannerID, etag); err != nil {
		// Keep the mapping so the deletion is retried next cycle.
		e.fail(ctx, taskID, plannerID, journal.ActionDelete, err)
		return
	}

	if err := e.store.DeleteMapping(ctx, taskID, plannerID); err != nil {
		e.fail(ctx, taskID, plannerID, journal.ActionDelete, err)
		return
	}
	if err := e.store.DeleteETag(ctx, plannerID); err != nil {
		e.fail(ctx, taskID, plannerID, journal.ActionDelete, err)
		return
	}

	e.finish(ctx, journal.Entry{TaskID: taskID, PlannerID: plannerID,
		Action: journal.ActionDelete, Outcome: journal.OutcomeOK,
		Detail: "local deletion propagated"})
	e.logger.Printf("Deleted Planner task %s for removed task %s", plannerID, taskID)
}

// syncDetails pushes the composed notes (human + agent sections) and the
// subtask checklist to the details sub-resource when there is anything
// to write.
func (e *Engine) syncDetails(ctx context.Context, t *task.Task, plannerID string) error {
	if t.Notes == "" && t.Reasoning == "" && t.Output == "" && len(t.SubtaskIDs) == 0 {
		return nil
	}

	details, err := e.graph.GetTaskDetails(ctx, plannerID)
	if err != nil {
		return fmt.Errorf("failed to fetch task details: %w", err)
	}

	payload := &graph.DetailsPayload{}
	composed := adapter.ComposeNotes(t.Notes, t.Reasoning, t.Output, details.Description)
	if composed != details.Description {
		payload.Description = &composed
	}
	payload.Checklist = e.adapter.ChecklistFor(e.loadSubtasks(ctx, t), details.Checklist)
	if payload.Description == nil && payload.Checklist == nil {
		return nil
	}

	if err := e.graph.UpdateTaskDetails(ctx, plannerID, details.ETag, payload); err != nil {
		return fmt.Errorf("failed to update task details: %w", err)
	}
	return nil
}

// loadSubtasks resolves a task's subtask references from the store. A
// dangling reference still yields an item so the remote checklist shows
// it; other store errors drop the entry for this cycle with a warning.
func (e *Engine) loadSubtasks(ctx context.Context, t *task.Task) []*task.Task {
	subs := make([]*task.Task, 0, len(t.SubtaskIDs))
	for _, id := range t.SubtaskIDs {
		st, err := e.store.GetTask(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			subs = append(subs, &task.Task{ID: id})
			continue
		}
		if err != nil {
			e.logger.Printf("Warning: failed to load subtask %s of %s: %v", id, t.ID, err)
			continue
		}
		subs = append(subs, st)
	}
	return subs
}

// commitLocal records a successful upload on the local document. The
// store is re-read so an edit made while the upload was in flight is
// never overwritten with the stale snapshot; only the sync bookkeeping
// fields are patched.
func (e *Engine) commitLocal(ctx context.Context, t *task.Task, plannerID, etag string) {
	current, err := e.store.GetTask(ctx, t.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted while uploading; the next cycle propagates it.
			return
		}
		e.logger.Printf("Warning: failed to re-read %s after upload: %v", t.ID, err)
		current = t
	}

	current.PlannerID = plannerID
	current.PlannerETag = etag
	if current.UpdatedAt.After(t.UpdatedAt) {
		// Edited mid-flight. Mark only the uploaded snapshot as synced
		// so the task stays dirty and re-uploads next cycle.
		current.LastSyncedAt = t.UpdatedAt
	} else {
		current.LastSyncedAt = time.Now().UTC()
		if current.LastSyncedAt.Before(current.UpdatedAt) {
			current.LastSyncedAt = current.UpdatedAt
		}
	}

	*t = *current
	if err := e.store.PutTask(ctx, t); err != nil {
		e.logger.Printf("Warning: failed to persist sync bookkeeping for %s: %v", t.ID, err)
	}
}

// fail journals an error outcome for a task-scoped failure.
func (e *Engine) fail(ctx context.Context, taskID, plannerID string, action journal.Action, err error) {
	e.logger.Printf("Warning: %s failed for %s: %v", action, taskID, err)
	e.finish(ctx, journal.Entry{
		TaskID:    taskID,
		PlannerID: plannerID,
		Action:    action,
		Outcome:   journal.OutcomeError,
		Detail:    err.Error(),
	})
}

// finish updates counters, journals, and broadcasts one terminal outcome.
func (e *Engine) finish(ctx context.Context, entry journal.Entry) {
	e.statsMu.Lock()
	switch {
	case entry.Outcome == journal.OutcomeError && entry.Action == journal.ActionConflict:
		e.stats.conflicts++
	case entry.Outcome == journal.OutcomeError:
		e.stats.errors++
	case entry.Action == journal.ActionUpload:
		e.stats.uploads++
	case entry.Action == journal.ActionDownload:
		e.stats.downloads++
	case entry.Action == journal.ActionDelete:
		e.stats.deletes++
	case entry.Action == journal.ActionSkip && entry.Outcome != journal.OutcomeDropped:
		e.stats.skips++
	}
	e.statsMu.Unlock()

	if e.journal != nil {
		if err := e.journal.Record(ctx, entry); err != nil {
			e.logger.Printf("Warning: failed to journal %s for %s: %v", entry.Action, entry.TaskID, err)
		}
	}
	if e.events != nil {
		e.events.SyncEvent(Event{
			TaskID:    entry.TaskID,
			PlannerID: entry.PlannerID,
			Action:    string(entry.Action),
			Outcome:   string(entry.Outcome),
			Detail:    entry.Detail,
		})
	}
}

// snapshot copies the counters under lock.
func (e *Engine) snapshot() counters {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// InFlight returns the number of operations currently running.
func (e *Engine) InFlight() int {
	return e.inflight.len()
}
