package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/annikahq/planner-bridge/internal/task"
)

func TestMemoryTaskCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	tk := &task.Task{ID: "Task-1", Title: "First", Status: task.StatusNotStarted}
	tk.SetDefaults()

	if err := m.PutTask(ctx, tk); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}

	got, err := m.GetTask(ctx, "Task-1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Title != "First" {
		t.Errorf("expected title First, got %q", got.Title)
	}

	// Returned copy must not alias the stored document.
	got.Title = "mutated"
	again, _ := m.GetTask(ctx, "Task-1")
	if again.Title != "First" {
		t.Error("GetTask returned an aliased pointer")
	}

	if err := m.DeleteTask(ctx, "Task-1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, err := m.GetTask(ctx, "Task-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMappingPairInvariant(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.PutMapping(ctx, "Task-1", "p1"); err != nil {
		t.Fatalf("PutMapping failed: %v", err)
	}
	if err := m.PutMapping(ctx, "Task-2", "p2"); err != nil {
		t.Fatalf("PutMapping failed: %v", err)
	}

	if !m.MappingConsistent() {
		t.Fatal("mapping pair invariant violated after inserts")
	}

	pid, err := m.GetPlannerID(ctx, "Task-1")
	if err != nil || pid != "p1" {
		t.Errorf("GetPlannerID = %q, %v; want p1", pid, err)
	}
	aid, err := m.GetAnnikaID(ctx, "p2")
	if err != nil || aid != "Task-2" {
		t.Errorf("GetAnnikaID = %q, %v; want Task-2", aid, err)
	}

	if err := m.DeleteMapping(ctx, "Task-2", "p2"); err != nil {
		t.Fatalf("DeleteMapping failed: %v", err)
	}
	if !m.MappingConsistent() {
		t.Fatal("mapping pair invariant violated after delete")
	}

	if _, err := m.GetPlannerID(ctx, "Task-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("forward mapping survived delete: %v", err)
	}
	if _, err := m.GetAnnikaID(ctx, "p2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("reverse mapping survived delete: %v", err)
	}

	// Deleting an already-removed pair is idempotent.
	if err := m.DeleteMapping(ctx, "Task-2", "p2"); err != nil {
		t.Errorf("repeat DeleteMapping failed: %v", err)
	}
}

func TestETagCache(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.GetETag(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unseen task, got %v", err)
	}

	if err := m.PutETag(ctx, "p1", `W/"etag-old"`); err != nil {
		t.Fatalf("PutETag failed: %v", err)
	}
	etag, err := m.GetETag(ctx, "p1")
	if err != nil || etag != `W/"etag-old"` {
		t.Errorf("GetETag = %q, %v", etag, err)
	}

	if err := m.PutETag(ctx, "p1", `W/"etag-new"`); err != nil {
		t.Fatalf("PutETag overwrite failed: %v", err)
	}
	etag, _ = m.GetETag(ctx, "p1")
	if etag != `W/"etag-new"` {
		t.Errorf("expected overwritten etag, got %q", etag)
	}

	if err := m.DeleteETag(ctx, "p1"); err != nil {
		t.Fatalf("DeleteETag failed: %v", err)
	}
	if _, err := m.GetETag(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("etag survived delete: %v", err)
	}
}

func TestPubSub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()

	ch, err := m.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	sig := &task.Signal{Action: task.ActionUpdated, TaskID: "Task-1"}
	if err := m.PublishChange(ctx, sig); err != nil {
		t.Fatalf("PublishChange failed: %v", err)
	}

	select {
	case got := <-ch:
		if got.TaskID != "Task-1" || got.Action != task.ActionUpdated {
			t.Errorf("unexpected signal %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestListTaskIDs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, id := range []string{"Task-1", "Task-2", "Task-3"} {
		tk := &task.Task{ID: id, Status: task.StatusNotStarted}
		tk.SetDefaults()
		if err := m.PutTask(ctx, tk); err != nil {
			t.Fatalf("PutTask failed: %v", err)
		}
	}

	ids, err := m.ListTaskIDs(ctx)
	if err != nil {
		t.Fatalf("ListTaskIDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 ids, got %d", len(ids))
	}
}
