package catalog

import (
	"sync/atomic"
)

// Provider hands out the catalog snapshot a scan should read.
type Provider interface {
	Current() (*Snapshot, bool)
}

// Store holds the current snapshot behind an atomic pointer.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store, optionally seeded with a snapshot.
func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	if initial != nil {
		s.current.Store(initial)
	}
	return s
}

// Current returns the active snapshot, false when nothing is loaded yet.
func (s *Store) Current() (*Snapshot, bool) {
	snap := s.current.Load()
	return snap, snap != nil
}

// Replace installs snap and returns the snapshot it replaced.
func (s *Store) Replace(snap *Snapshot) *Snapshot {
	return s.current.Swap(snap)
}
