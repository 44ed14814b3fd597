package store

import (
	"sync"

	"github.com/rickgao/binance-meta/internal/model"
)

// Store holds the thread-safe latest-snapshot cache, one slot per resource
// kind. Snapshots are immutable once created, so handing out shallow copies
// is safe.
type Store struct {
	mu     sync.RWMutex
	latest map[model.ResourceKind]model.Snapshot
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		latest: make(map[model.ResourceKind]model.Snapshot),
	}
}

// Update installs snap as the latest for its kind. It returns false and leaves
// the slot untouched when the slot already holds an equal or greater sequence;
// a retried or reordered publish can never roll the store backwards.
func (s *Store) Update(snap model.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.latest[snap.Kind]
	if ok && prev.Sequence >= snap.Sequence {
		return false
	}
	s.latest[snap.Kind] = snap
	return true
}

// Read returns the latest snapshot for kind, or false if the kind has not
// completed a successful poll yet.
func (s *Store) Read(kind model.ResourceKind) (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.latest[kind]
	return snap, ok
}

// Kinds returns the kinds holding a committed snapshot, in fixed order.
func (s *Store) Kinds() []model.ResourceKind {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var kinds []model.ResourceKind
	for _, k := range model.AllKinds() {
		if _, ok := s.latest[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
