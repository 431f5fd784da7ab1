package store

import (
	"context"
	"sync"

	"github.com/annikahq/planner-bridge/internal/task"
)

// Memory is an in-process Store for tests and dry runs. It mirrors the
// Redis implementation's semantics, including mapping-pair atomicity.
type Memory struct {
	mu       sync.Mutex
	tasks    map[string]*task.Task
	toRemote map[string]string // annikaID → plannerID
	toLocal  map[string]string // plannerID → annikaID
	etags    map[string]string

	subsMu sync.Mutex
	subs   []chan *task.Signal
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tasks:    make(map[string]*task.Task),
		toRemote: make(map[string]string),
		toLocal:  make(map[string]string),
		etags:    make(map[string]string),
	}
}

func (m *Memory) GetTask(ctx context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) PutTask(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *Memory) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *Memory) ListTaskIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) PutMapping(ctx context.Context, annikaID, plannerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toRemote[annikaID] = plannerID
	m.toLocal[plannerID] = annikaID
	return nil
}

func (m *Memory) DeleteMapping(ctx context.Context, annikaID, plannerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.toRemote, annikaID)
	delete(m.toLocal, plannerID)
	return nil
}

func (m *Memory) GetPlannerID(ctx context.Context, annikaID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.toRemote[annikaID]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *Memory) GetAnnikaID(ctx context.Context, plannerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.toLocal[plannerID]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *Memory) ListMappedPlannerIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.toLocal))
	for id := range m.toLocal {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) GetETag(ctx context.Context, plannerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	etag, ok := m.etags[plannerID]
	if !ok {
		return "", ErrNotFound
	}
	return etag, nil
}

func (m *Memory) PutETag(ctx context.Context, plannerID, etag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags[plannerID] = etag
	return nil
}

func (m *Memory) DeleteETag(ctx context.Context, plannerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.etags, plannerID)
	return nil
}

func (m *Memory) PublishChange(ctx context.Context, sig *task.Signal) error {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- sig:
		default: // slow subscriber, drop
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context) (<-chan *task.Signal, error) {
	ch := make(chan *task.Signal, 64)

	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		m.subsMu.Lock()
		for i, c := range m.subs {
			if c == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				break
			}
		}
		m.subsMu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// MappingConsistent reports whether every forward entry has its reverse
// and vice versa. Test helper for the pair invariant.
func (m *Memory) MappingConsistent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.toRemote) != len(m.toLocal) {
		return false
	}
	for a, p := range m.toRemote {
		if m.toLocal[p] != a {
			return false
		}
	}
	return true
}
