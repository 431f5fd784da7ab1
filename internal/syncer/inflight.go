package syncer

import "sync"

// inflightSet tracks task IDs with a sync operation currently running.
// A signal for an ID already in the set is coalesced: dropped, relying
// on the running operation to pick up the latest state. This prevents
// rapid repeated edits from producing duplicate Planner tasks.
type inflightSet struct {
	mu        sync.Mutex
	ids       map[string]struct{}
	coalesced int64
}

func newInflightSet() *inflightSet {
	return &inflightSet{ids: make(map[string]struct{})}
}

// tryAcquire registers id and returns true, or returns false if an
// operation for that id is already in flight.
func (s *inflightSet) tryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.ids[id]; busy {
		s.coalesced++
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// release removes id from the set.
func (s *inflightSet) release(id string) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

// len returns the number of operations in flight.
func (s *inflightSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// coalescedCount returns how many signals were dropped onto in-flight
// operations since startup.
func (s *inflightSet) coalescedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coalesced
}
