package bridge

import (
	"sync"

	"github.com/c360/printbridge/telemetry"
)

// Store holds the latest snapshot for local observers. The supervisor is the
// only writer; observers read via Latest or register a callback with
// Subscribe. Callbacks run synchronously on the supervisor goroutine, so they
// must be fast and must not block.
type Store struct {
	mu          sync.RWMutex
	latest      telemetry.Snapshot
	valid       bool
	nextID      int
	subscribers map[int]func(telemetry.Snapshot)
}

// NewStore creates an empty snapshot store
func NewStore() *Store {
	return &Store{
		subscribers: make(map[int]func(telemetry.Snapshot)),
	}
}

// Latest returns the most recent snapshot and whether one has been set.
func (s *Store) Latest() (telemetry.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.valid
}

// Subscribe registers a callback invoked on every snapshot update. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func(telemetry.Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Update replaces the stored snapshot and notifies subscribers.
func (s *Store) Update(snapshot telemetry.Snapshot) {
	s.mu.Lock()
	s.latest = snapshot
	s.valid = true
	callbacks := make([]func(telemetry.Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		callbacks = append(callbacks, fn)
	}
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(snapshot)
	}
}
