package workspace

import "sync/atomic"

// Store is the single shared, atomically swappable reference to the
// current snapshot. Readers never block; writers install a new snapshot
// only if the reference has not moved since they read it.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store holding the initial snapshot.
func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Current returns the current snapshot; lock-free.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// CompareAndSwap installs next only if the current snapshot is still
// expected. Returns false when another writer raced in first.
func (s *Store) CompareAndSwap(expected, next *Snapshot) bool {
	return s.current.CompareAndSwap(expected, next)
}

// Replace installs next unconditionally. Used for the initial load only;
// concurrent synchronization always goes through CompareAndSwap.
func (s *Store) Replace(next *Snapshot) {
	s.current.Store(next)
}
